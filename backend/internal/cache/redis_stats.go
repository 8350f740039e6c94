package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

type RedisStore struct {
	rdb redis.UniversalClient
}

// 确保 RedisStore 实现了 repo.AtomicStatsStore 接口
var _ repo.AtomicStatsStore = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// 将 any 类型转换为 int64 类型， 无法转换返回错误
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case uint64:
		if x > uint64(^uint64(0)>>1) {
			return 0, errors.New("integer overflow")
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type: %T", v)
	}
}

// 把 Lua 返回的 {views, likes} 转成 PostStats，负数按 0 处理
func evalStatsResult(slug string, res any) (entity.PostStats, error) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return entity.PostStats{}, errors.New("invalid result")
	}
	v, err := toInt64(arr[0])
	if err != nil {
		return entity.PostStats{}, errors.New("invalid result")
	}
	l, err := toInt64(arr[1])
	if err != nil {
		return entity.PostStats{}, errors.New("invalid result")
	}
	if v < 0 {
		v = 0
	}
	if l < 0 {
		l = 0
	}
	return entity.PostStats{Slug: slug, Views: uint64(v), Likes: uint64(l)}, nil
}

func parseCount(v any) uint64 {
	n, err := toInt64(v)
	if err != nil || n < 0 {
		return 0
	}
	return uint64(n)
}

// Read 先取 slug 索引，再用 pipeline 批量 HMGET
func (r *RedisStore) Read(ctx context.Context) entity.StatsDocument {
	doc := entity.NewStatsDocument()
	slugs, err := r.rdb.SMembers(ctx, PostStatsIndexKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read stats index failed: %v", err)
		}
		return doc
	}
	if len(slugs) == 0 {
		return doc
	}

	cmds := make([]*redis.SliceCmd, 0, len(slugs))
	pipe := r.rdb.Pipeline()
	for _, slug := range slugs {
		cmds = append(cmds, pipe.HMGet(ctx, GetPostStatsKey(slug), fieldViews, fieldLikes))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("read stats failed: %v", err)
		return entity.NewStatsDocument()
	}
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 2 {
			continue
		}
		doc.Put(entity.PostStats{Slug: slugs[i], Views: parseCount(vals[0]), Likes: parseCount(vals[1])})
	}
	return doc
}

// Write 覆盖文档里每一条记录；不在文档里的 slug 不删除
func (r *RedisStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	if len(doc.Posts) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for slug, st := range doc.Posts {
		pipe.HSet(ctx, GetPostStatsKey(slug), fieldViews, st.Views, fieldLikes, st.Likes)
		pipe.SAdd(ctx, PostStatsIndexKey, slug)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

// views/likes 自增；unlike 兜底不让 likes 变成负数
const applyScript = `
local field = ARGV[1]
local delta = tonumber(ARGV[2])
local cnt = redis.call("HINCRBY", KEYS[1], field, delta)
if cnt < 0 then
	redis.call("HSET", KEYS[1], field, 0)
end
local v = redis.call("HGET", KEYS[1], "views")
local l = redis.call("HGET", KEYS[1], "likes")
if not v then v = 0 else v = tonumber(v) end
if not l then l = 0 else l = tonumber(l) end
return {v, l}
`

var applyLua = redis.NewScript(applyScript)

func (r *RedisStore) Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	var field string
	var delta int64
	switch action {
	case entity.ActionView:
		field, delta = fieldViews, 1
	case entity.ActionLike:
		field, delta = fieldLikes, 1
	case entity.ActionUnlike:
		field, delta = fieldLikes, -1
	default:
		return entity.PostStats{}, fmt.Errorf("unsupported action %q", action)
	}

	res, err := applyLua.Run(ctx, r.rdb, []string{GetPostStatsKey(slug)}, field, delta).Result()
	if err != nil {
		return entity.PostStats{}, fmt.Errorf("apply %s to %s: %w", action, slug, err)
	}
	// 索引在另一个 slot，单独写；失败只影响全量列表，计数本身已经生效
	if err := r.rdb.SAdd(ctx, PostStatsIndexKey, slug).Err(); err != nil {
		log.Printf("index slug %s failed: %v", slug, err)
	}
	return evalStatsResult(slug, res)
}
