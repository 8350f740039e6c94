package likestate

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultLikesPath = "~/.config/post-stats/likes.toml"

type likesFile struct {
	LikedPosts map[string]bool `toml:"liked_posts"`
}

// FileStore 点赞记录存在 TOML 文件里，例如
//
//	[liked_posts]
//	hello-world = true
type FileStore struct {
	mu    sync.RWMutex
	path  string
	liked map[string]bool
}

var _ Store = (*FileStore)(nil)

func DefaultPath() string {
	return defaultLikesPath
}

// OpenFileStore 文件不存在或读不了时退化成空记录，不返回错误
func OpenFileStore(path string) (*FileStore, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	fs := &FileStore{path: resolved, liked: make(map[string]bool)}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("read like record %s: %v", resolved, err)
		}
		return fs, nil
	}
	var f likesFile
	if err := toml.Unmarshal(data, &f); err != nil {
		log.Printf("parse like record %s: %v", resolved, err)
		return fs, nil // 降级为空记录
	}
	for slug, liked := range f.LikedPosts {
		if liked {
			fs.liked[slug] = true
		}
	}
	return fs, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) HasLiked(slug string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.liked[slug]
}

func (f *FileStore) SetLiked(slug string, liked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make(map[string]bool, len(f.liked)+1)
	for s := range f.liked {
		next[s] = true
	}
	if liked {
		next[slug] = true
	} else {
		delete(next, slug)
	}
	if err := f.save(next); err != nil {
		return err
	}
	f.liked = next
	return nil
}

func (f *FileStore) save(liked map[string]bool) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create like record dir: %w", err)
	}
	bytes, err := toml.Marshal(likesFile{LikedPosts: liked})
	if err != nil {
		return fmt.Errorf("marshal like record: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".likes-*.toml")
	if err != nil {
		return fmt.Errorf("write like record: %w", err)
	}
	if _, err := tmp.Write(bytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write like record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write like record: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write like record: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultLikesPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
