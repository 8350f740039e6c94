package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"post-stats-service/backend/internal/handler"
	"post-stats-service/backend/internal/ws"
)

type RouterOptions struct {
	Cors bool
	Hub  *ws.Hub
}

// NewRouter 挂载 /stats、/stats/ws、/healthz
func NewRouter(svc handler.StatsService, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	if opts.Cors {
		router.Use(cors.New(cors.Config{
			// 允许任意来源（包含 file:// 场景的 Origin: null）
			AllowOriginFunc:  func(origin string) bool { return true },
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r := router.Group("/stats")
	{
		handler.NewStatsHandler(svc).Register(r)
		if opts.Hub != nil {
			r.GET("/ws", ws.NewManager(opts.Hub).WebSocketConnect)
		}
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	return router
}
