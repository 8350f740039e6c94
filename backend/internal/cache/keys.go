package cache

import "fmt"

// 键语义：
// - PostStats:{slug:<slug>}  单篇文章计数（Hash: views / likes）
// - PostStats:index          出现过的 slug 集合（Set），GET /stats 全量读取时用
//
// {} 是 cluster 的 hash tag：同一篇文章的键落在同一个 slot 上，Lua 脚本只碰这一个 slot

const (
	PostStatsKey      = "PostStats:{slug:%s}"
	PostStatsIndexKey = "PostStats:index"

	fieldViews = "views"
	fieldLikes = "likes"
)

func GetPostStatsKey(slug string) string { return fmt.Sprintf(PostStatsKey, slug) }
