package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/stats"
)

// StatsService handler 需要的业务契约，*stats.Service 实现了它
type StatsService interface {
	GetStats(ctx context.Context, slug string) entity.PostStats
	GetAll(ctx context.Context) entity.StatsDocument
	RecordAction(ctx context.Context, slug string, action string) (entity.PostStats, error)
}

var _ StatsService = (*stats.Service)(nil)

type StatsHandler struct {
	svc StatsService
}

func NewStatsHandler(svc StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

type statsReq struct {
	Slug   string `json:"slug"`
	Action string `json:"action"`
}

type statsResp struct {
	Views uint64 `json:"views"`
	Likes uint64 `json:"likes"`
}

func toResp(s entity.PostStats) statsResp {
	return statsResp{Views: s.Views, Likes: s.Likes}
}

// Register 挂到 /stats 路由组上
func (h *StatsHandler) Register(r gin.IRouter) {
	r.GET("", h.GetStats())
	r.POST("", h.RecordAction())
}

// GET /stats?slug=<id>  -> {views, likes}，未知 slug 返回零值
// GET /stats            -> {posts: {...}}
func (h *StatsHandler) GetStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Query("slug")
		if slug == "" {
			c.JSON(http.StatusOK, h.svc.GetAll(c.Request.Context()))
			return
		}
		c.JSON(http.StatusOK, toResp(h.svc.GetStats(c.Request.Context(), slug)))
	}
}

// POST /stats {slug, action}
func (h *StatsHandler) RecordAction() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statsReq
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		st, err := h.svc.RecordAction(c.Request.Context(), req.Slug, req.Action)
		if err != nil {
			switch {
			case errors.Is(err, stats.ErrMissingParameter):
				c.JSON(http.StatusBadRequest, gin.H{"error": stats.ErrMissingParameter.Error()})
			case errors.Is(err, stats.ErrUnsupportedAction):
				c.JSON(http.StatusBadRequest, gin.H{"error": stats.ErrUnsupportedAction.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": stats.ErrPersistFailure.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, toResp(st))
	}
}
