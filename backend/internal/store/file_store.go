package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"post-stats-service/backend/internal/entity"
	"post-stats-service/backend/internal/repo"
)

const DefaultFilePath = "data/stats.json"

// FileStore 把整份文档存成一个 JSON 文件，和站点原来的 data/stats.json 布局一致
type FileStore struct {
	path string
}

var _ repo.StatsStore = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

// Read 文件不存在、为空或者不是合法 JSON 时都返回空文档
func (f *FileStore) Read(ctx context.Context) entity.StatsDocument {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("read stats file %s failed: %v", f.path, err)
		}
		return entity.NewStatsDocument()
	}
	var doc entity.StatsDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		log.Printf("stats file %s is corrupt, starting empty: %v", f.path, err)
		return entity.NewStatsDocument()
	}
	if doc.Posts == nil {
		doc.Posts = make(map[string]entity.PostStats)
	}
	return doc.Clone()
}

// Write 先写临时文件再 rename，避免进程中途退出留下半个文件
func (f *FileStore) Write(ctx context.Context, doc entity.StatsDocument) error {
	if doc.Posts == nil {
		doc.Posts = make(map[string]entity.PostStats)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".stats-*.json")
	if err != nil {
		return fmt.Errorf("create temp stats file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close stats: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace stats file: %w", err)
	}
	return nil
}
