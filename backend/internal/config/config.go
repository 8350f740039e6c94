package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSqlite = "sqlite"
	BackendMysql  = "mysql"
)

type Config struct {
	Running struct {
		Port int    `mapstructure:"Port"`
		Mode string `mapstructure:"Mode"`
	} `mapstructure:"Running"`
	Cors struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"Cors"`
	Stats struct {
		Backend  string `mapstructure:"backend"`
		Atomic   bool   `mapstructure:"atomic"`
		FilePath string `mapstructure:"filePath"`
		// Cache 为 true 时在 sqlite/mysql 前面挂 Redis 文档缓存
		Cache bool `mapstructure:"cache"`
	} `mapstructure:"Stats"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
		DB       int      `mapstructure:"db"`
	} `mapstructure:"Redis"`
	Sqlite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"Sqlite"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"Mysql"`
	Kafka struct {
		Brokers       []string `mapstructure:"brokers"`
		Topic         string   `mapstructure:"topic"`
		QueueSize     int      `mapstructure:"queueSize"`
		Workers       int      `mapstructure:"workers"`
		MaxRetry      int      `mapstructure:"maxRetry"`
		BaseBackoffMs int      `mapstructure:"baseBackoffMs"`
		MaxBackoffMs  int      `mapstructure:"maxBackoffMs"`
	} `mapstructure:"Kafka"`
	Client struct {
		BaseURL        string `mapstructure:"baseURL"`
		LikesPath      string `mapstructure:"likesPath"`
		RefreshSeconds int    `mapstructure:"refreshSeconds"`
		Live           bool   `mapstructure:"live"`
	} `mapstructure:"Client"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Running.Port", 8080)
	v.SetDefault("Running.Mode", "release")
	v.SetDefault("Cors.enabled", true)
	v.SetDefault("Stats.backend", BackendFile)
	v.SetDefault("Stats.atomic", false)
	v.SetDefault("Stats.filePath", "data/stats.json")
	v.SetDefault("Stats.cache", false)
	v.SetDefault("Redis.addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("Redis.password", "")
	v.SetDefault("Redis.db", 0)
	v.SetDefault("Sqlite.path", "data/stats.db")
	v.SetDefault("Mysql.dsn", "")
	v.SetDefault("Kafka.brokers", []string{})
	v.SetDefault("Kafka.topic", "post-stats")
	//  Go 允许在数字里用下划线做分隔符，方便阅读
	v.SetDefault("Kafka.queueSize", 10_000)
	v.SetDefault("Kafka.workers", 4)
	v.SetDefault("Kafka.maxRetry", 3)
	v.SetDefault("Kafka.baseBackoffMs", 50)
	v.SetDefault("Kafka.maxBackoffMs", 1000)
	v.SetDefault("Client.baseURL", "http://127.0.0.1:8080")
	v.SetDefault("Client.likesPath", "data/likes.toml")
	v.SetDefault("Client.refreshSeconds", 30)
	v.SetDefault("Client.live", false)
}

// Load 读取 statsConfig.yaml；path 非空时只读这个文件
// 找不到配置文件不算错误，使用默认值；环境变量前缀 POSTSTATS_
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("POSTSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("statsConfig")
		v.SetConfigType("yaml")
		// 兼容从项目根目录或 backend 目录启动
		v.AddConfigPath("./backend/config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Stats.Backend = strings.ToLower(strings.TrimSpace(c.Stats.Backend))
	switch c.Stats.Backend {
	case BackendFile, BackendMemory, BackendRedis, BackendSqlite, BackendMysql:
	default:
		return fmt.Errorf("unknown stats backend %q", c.Stats.Backend)
	}
	if c.Stats.Backend == BackendMysql && c.Mysql.DSN == "" {
		return errors.New("mysql backend needs Mysql.dsn")
	}
	if c.Client.RefreshSeconds <= 0 {
		c.Client.RefreshSeconds = 30
	}
	return nil
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Client.RefreshSeconds) * time.Second
}

func (c *Config) KafkaBaseBackoff() time.Duration {
	return time.Duration(c.Kafka.BaseBackoffMs) * time.Millisecond
}

func (c *Config) KafkaMaxBackoff() time.Duration {
	return time.Duration(c.Kafka.MaxBackoffMs) * time.Millisecond
}
