package store

import (
	"context"
	"embed"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore 每个 slug 一行
type SQLiteStore struct {
	db *sqlx.DB
}

var _ repo.AtomicStatsStore = (*SQLiteStore)(nil)

// OpenSQLite 打开（或创建）数据库文件并执行全部迁移
// WAL + 单连接，写入天然串行
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(ctx context.Context) entity.StatsDocument {
	var rows []entity.PostStats
	if err := s.db.SelectContext(ctx, &rows, `SELECT slug, views, likes FROM post_stats`); err != nil {
		log.Printf("read post_stats failed: %v", err)
		return entity.NewStatsDocument()
	}
	doc := entity.NewStatsDocument()
	for _, r := range rows {
		doc.Put(r)
	}
	return doc
}

const upsertSQL = `
INSERT INTO post_stats (slug, views, likes, updated_at)
VALUES (:slug, :views, :likes, CURRENT_TIMESTAMP)
ON CONFLICT(slug) DO UPDATE SET
	views = excluded.views,
	likes = excluded.likes,
	updated_at = CURRENT_TIMESTAMP`

// Write 在一个事务里 upsert 文档中的每一条记录；文档里没有的行保持不变
func (s *SQLiteStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for slug, st := range doc.Posts {
		st.Slug = slug
		if _, err := tx.NamedExecContext(ctx, upsertSQL, st); err != nil {
			return fmt.Errorf("upserting %s: %w", slug, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var applySQL = map[entity.Action]string{
	entity.ActionView:   `UPDATE post_stats SET views = views + 1, updated_at = CURRENT_TIMESTAMP WHERE slug = ?`,
	entity.ActionLike:   `UPDATE post_stats SET likes = likes + 1, updated_at = CURRENT_TIMESTAMP WHERE slug = ?`,
	entity.ActionUnlike: `UPDATE post_stats SET likes = MAX(likes - 1, 0), updated_at = CURRENT_TIMESTAMP WHERE slug = ?`,
}

// Apply 单条 UPDATE 完成自增，不经过应用层的读-改-写
func (s *SQLiteStore) Apply(ctx context.Context, slug string, action entity.Action) (entity.PostStats, error) {
	stmt, ok := applySQL[action]
	if !ok {
		return entity.PostStats{}, fmt.Errorf("unsupported action %q", action)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return entity.PostStats{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO post_stats (slug) VALUES (?)`, slug); err != nil {
		return entity.PostStats{}, fmt.Errorf("creating %s: %w", slug, err)
	}
	if _, err := tx.ExecContext(ctx, stmt, slug); err != nil {
		return entity.PostStats{}, fmt.Errorf("applying %s to %s: %w", action, slug, err)
	}
	var st entity.PostStats
	if err := tx.GetContext(ctx, &st, `SELECT slug, views, likes FROM post_stats WHERE slug = ?`, slug); err != nil {
		return entity.PostStats{}, fmt.Errorf("reading %s: %w", slug, err)
	}
	if err := tx.Commit(); err != nil {
		return entity.PostStats{}, fmt.Errorf("commit tx: %w", err)
	}
	return st, nil
}
