package likestate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	if s.HasLiked("a") {
		t.Fatal("fresh store reports liked")
	}
	if err := s.SetLiked("a", true); err != nil {
		t.Fatalf("SetLiked: %v", err)
	}
	if !s.HasLiked("a") || s.HasLiked("b") {
		t.Fatal("like for a should not leak to b")
	}
	if err := s.SetLiked("a", false); err != nil {
		t.Fatalf("SetLiked: %v", err)
	}
	if s.HasLiked("a") {
		t.Fatal("unlike did not clear")
	}
	if err := s.SetLiked("a", false); err != nil {
		t.Fatalf("clearing twice: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
	if !NewMemoryStore("x").HasLiked("x") {
		t.Fatal("seeded slug should be liked")
	}
}

func TestFileStore(t *testing.T) {
	fs, err := OpenFileStore(filepath.Join(t.TempDir(), "likes.toml"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	testStoreContract(t, fs)
}

func TestFileStore_PersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "likes.toml")
	first, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := first.SetLiked("hello-world", true); err != nil {
		t.Fatalf("SetLiked: %v", err)
	}
	if err := first.SetLiked("other", true); err != nil {
		t.Fatalf("SetLiked: %v", err)
	}
	if err := first.SetLiked("other", false); err != nil {
		t.Fatalf("SetLiked: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "[liked_posts]") || !strings.Contains(string(data), "hello-world = true") {
		t.Fatalf("file = %s", data)
	}

	second, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !second.HasLiked("hello-world") || second.HasLiked("other") {
		t.Fatal("like record did not survive reopen")
	}
}

func TestFileStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "likes.toml")
	if err := os.WriteFile(path, []byte("liked_posts = [not toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if fs.HasLiked("liked_posts") {
		t.Fatal("corrupt file should yield empty record")
	}
}

func TestFileStore_FailedSaveKeepsState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := OpenFileStore(filepath.Join(blocker, "likes.toml"))
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if err := fs.SetLiked("a", true); err == nil {
		t.Fatal("SetLiked under a regular file should fail")
	}
	if fs.HasLiked("a") {
		t.Fatal("failed save must not change in-memory state")
	}
}

func TestExpandPath(t *testing.T) {
	if _, err := expandPath("  "); err == nil {
		t.Fatal("empty path should fail")
	}
	got, err := resolvePath("")
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join(".config", "post-stats", "likes.toml")) {
		t.Fatalf("default path = %q", got)
	}
}
