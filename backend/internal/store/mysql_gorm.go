package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

type MySQLStore struct {
	db *gorm.DB
}

var _ repo.AtomicStatsStore = (*MySQLStore)(nil)

// InitMySQL 打开连接并建表
// DSN 先交给驱动解析：强制 parseTime，否则 updated_at 扫描会失败
func InitMySQL(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{DSN: cfg.FormatDSN(), DSNConfig: cfg}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.AutoMigrate(&entity.PostStats{}); err != nil {
		return nil, fmt.Errorf("migrate post_stats: %w", err)
	}
	return NewMySQLStore(db), nil
}

func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (r *MySQLStore) Read(ctx context.Context) entity.StatsDocument {
	var rows []entity.PostStats
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		log.Printf("read post_stats failed: %v", err)
		return entity.NewStatsDocument()
	}
	doc := entity.NewStatsDocument()
	for _, row := range rows {
		doc.Put(row)
	}
	return doc
}

func (r *MySQLStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	if len(doc.Posts) == 0 {
		return nil
	}
	rows := make([]entity.PostStats, 0, len(doc.Posts))
	for slug, st := range doc.Posts {
		st.Slug = slug
		rows = append(rows, st)
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"views", "likes", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert post_stats: %w", err)
	}
	return nil
}

// Apply 行锁 (SELECT ... FOR UPDATE) 内完成读-改-写
func (r *MySQLStore) Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	var out entity.PostStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 不存在则先插入零值行，重复插入直接忽略
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.PostStats{Slug: slug}).Error; err != nil {
			var mysqlErr *mysql.MySQLError
			if !errors.As(err, &mysqlErr) || mysqlErr.Number != 1062 {
				return err
			}
		}
		var cur entity.PostStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("slug = ?", slug).First(&cur).Error; err != nil {
			return err
		}
		next := action.Apply(cur)
		if err := tx.Model(&entity.PostStats{}).Where("slug = ?", slug).
			Updates(map[string]any{"views": next.Views, "likes": next.Likes}).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return entity.PostStats{}, fmt.Errorf("apply %s to %s: %w", action, slug, err)
	}
	return out, nil
}
