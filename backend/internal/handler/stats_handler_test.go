package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"post-stats-service/backend/internal/stats"
	"post-stats-service/backend/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := store.NewMemoryStore()
	r := gin.New()
	NewStatsHandler(stats.NewService(mem, stats.Options{})).Register(r.Group("/stats"))
	return r, mem
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestGetStats_UnknownSlugIsZero(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/stats?slug=nope", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"views":0,"likes":0}` {
		t.Fatalf("body = %s", got)
	}
}

func TestGetStats_AllPosts(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := do(r, http.MethodGet, "/stats", ""); strings.TrimSpace(w.Body.String()) != `{"posts":{}}` {
		t.Fatalf("empty body = %s", w.Body.String())
	}

	do(r, http.MethodPost, "/stats", `{"slug":"a","action":"view"}`)
	do(r, http.MethodPost, "/stats", `{"slug":"b","action":"like"}`)

	w := do(r, http.MethodGet, "/stats", "")
	var got struct {
		Posts map[string]struct {
			Views uint64 `json:"views"`
			Likes uint64 `json:"likes"`
		} `json:"posts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Posts) != 2 || got.Posts["a"].Views != 1 || got.Posts["b"].Likes != 1 {
		t.Fatalf("posts = %+v", got.Posts)
	}
}

func TestRecordAction_ViewThenGet(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/stats", `{"slug":"hello-world","action":"view"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST status = %d body = %s", w.Code, w.Body.String())
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"views":1,"likes":0}` {
		t.Fatalf("POST body = %s", got)
	}

	w = do(r, http.MethodGet, "/stats?slug=hello-world", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"views":1,"likes":0}` {
		t.Fatalf("GET body = %s", got)
	}
}

func TestRecordAction_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unsupported action", `{"slug":"hello-world","action":"bogus"}`, "unsupported action"},
		{"missing slug", `{"action":"view"}`, "missing slug or action"},
		{"missing action", `{"slug":"hello-world"}`, "missing slug or action"},
		{"empty body", ``, "missing slug or action"},
		{"malformed json", `{"slug":`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mem := newTestRouter(t)
			w := do(r, http.MethodPost, "/stats", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decode(t, w)["error"]; got != tt.wantErr {
				t.Fatalf("error = %v, want %q", got, tt.wantErr)
			}
			if doc := mem.Read(context.Background()); len(doc.Posts) != 0 {
				t.Fatalf("store changed: %v", doc.Posts)
			}
		})
	}
}

func TestRecordAction_PersistFailureIs500(t *testing.T) {
	r, mem := newTestRouter(t)
	mem.FailWrites = errors.New("disk full")

	w := do(r, http.MethodPost, "/stats", `{"slug":"p","action":"like"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if got := decode(t, w)["error"]; got != "failed to update stats" {
		t.Fatalf("error = %v", got)
	}
}
