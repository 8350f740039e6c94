package repo

import (
	"context"

	"post-stats-service/backend/internal/entity"
)

// StatsStore 整份文档的读写契约
// - Read 永远不失败：文档不存在、读不到或内容损坏都返回空文档
// - Write 失败返回错误，调用方必须把本次修改视为没有生效
// - 不提供锁、版本号或 CAS，读-改-写的原子性由调用方负责
type StatsStore interface {
	Read(ctx context.Context) entity.StatsDocument
	Write(ctx context.Context, doc entity.StatsDocument) error
}

// AtomicStatsStore 按 key 原子更新的可选能力
// 开启 stats.atomic 后 Service 走这条路径，并发 view 不会丢计数
type AtomicStatsStore interface {
	StatsStore
	Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error)
}
