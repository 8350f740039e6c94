package entity

import (
	"time"
)

// PostStats 单篇文章的计数
// Slug 不出现在 HTTP 响应体里：GET /stats?slug= 只返回 {views, likes}
type PostStats struct {
	Slug      string    `json:"-" db:"slug" gorm:"primaryKey;type:varchar(191)"`
	Views     uint64    `json:"views" db:"views" gorm:"not null;default:0"`
	Likes     uint64    `json:"likes" db:"likes" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"-" db:"-" gorm:"autoUpdateTime"`
}

func (PostStats) TableName() string { return "post_stats" }

// StatsDocument 整份统计文档，持久化的最小单位
// 布局：{ "posts": { "<slug>": {"views": 1, "likes": 0} } }
type StatsDocument struct {
	Posts map[string]PostStats `json:"posts"`
}

func NewStatsDocument() StatsDocument {
	return StatsDocument{Posts: make(map[string]PostStats)}
}

// Get 返回 slug 对应的计数；不存在时返回零值，不会写入文档
func (d StatsDocument) Get(slug string) PostStats {
	if s, ok := d.Posts[slug]; ok {
		s.Slug = slug
		return s
	}
	return PostStats{Slug: slug}
}

// Put 写入（或覆盖）一条记录
func (d *StatsDocument) Put(s PostStats) {
	if d.Posts == nil {
		d.Posts = make(map[string]PostStats)
	}
	d.Posts[s.Slug] = s
}

// Clone 深拷贝，调用方可以放心修改返回值
func (d StatsDocument) Clone() StatsDocument {
	out := StatsDocument{Posts: make(map[string]PostStats, len(d.Posts))}
	for k, v := range d.Posts {
		v.Slug = k
		out.Posts[k] = v
	}
	return out
}

// Equal 只比较计数，忽略 UpdatedAt
func (d StatsDocument) Equal(o StatsDocument) bool {
	if len(d.Posts) != len(o.Posts) {
		return false
	}
	for k, v := range d.Posts {
		w, ok := o.Posts[k]
		if !ok || v.Views != w.Views || v.Likes != w.Likes {
			return false
		}
	}
	return true
}
