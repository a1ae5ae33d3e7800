package service_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shorts-studio/app/apiclient"
	"shorts-studio/app/config"
	"shorts-studio/app/logger"
	"shorts-studio/app/realtime"
)

// fakeBackend 模拟排行短视频后端的 REST 接口
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu             sync.Mutex
	hits           map[string]int
	searchStatuses []string
	projectStatus  string
	generateStatus int
	bodies         map[string]json.RawMessage
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{
		t:              t,
		hits:           make(map[string]int),
		bodies:         make(map[string]json.RawMessage),
		projectStatus:  "draft",
		generateStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": "s1", "keyword": "goals", "status": "processing"})
	}))
	mux.HandleFunc("GET /api/v1/search/s1/status", b.record(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := "completed"
		if len(b.searchStatuses) > 0 {
			status = b.searchStatuses[0]
			b.searchStatuses = b.searchStatuses[1:]
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": status})
	}))
	mux.HandleFunc("GET /api/v1/search/s1", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "s1", "keyword": "goals", "status": "completed", "total_found": 2,
			"videos": []map[string]any{{"id": "v1", "title": "first"}, {"id": "v2", "title": "second"}},
		})
	}))
	mux.HandleFunc("POST /api/v1/projects", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": "p1", "title": "Ranking - goals", "status": "draft"})
	}))
	mux.HandleFunc("POST /api/v1/projects/p1/videos", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"added": 3})
	}))
	mux.HandleFunc("GET /api/v1/projects/p1", b.record(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.projectStatus
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "p1", "title": "Ranking - goals", "status": status, "task_id": "t1"})
	}))
	mux.HandleFunc("GET /api/v1/projects/p1/status", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"project_id": "p1", "status": "completed", "render_progress": 100})
	}))
	mux.HandleFunc("POST /api/v1/projects/p1/generate", b.record(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status := b.generateStatus
		b.mu.Unlock()
		if status != http.StatusOK {
			writeJSON(w, status, map[string]any{"detail": "Project has no videos"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"project_id": "p1", "task_id": "t1", "status": "queued"})
	}))
	mux.HandleFunc("POST /api/v1/videos/download-batch", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"queued": 3})
	}))
	mux.HandleFunc("GET /api/v1/videos/stats/summary", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"total": 12, "downloaded": 4})
	}))
	mux.HandleFunc("GET /api/v1/videos/{id}", b.record(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "title": "clip"})
	}))
	mux.HandleFunc("DELETE /api/v1/videos/{id}", b.record(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

// record 统计每个路由的调用次数并保存请求体
func (b *fakeBackend) record(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		var body json.RawMessage
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		b.mu.Lock()
		b.hits[key]++
		if len(body) > 0 {
			b.bodies[key] = body
		}
		b.mu.Unlock()

		h(w, r)
	}
}

func (b *fakeBackend) setSearchStatuses(statuses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.searchStatuses = statuses
}

func (b *fakeBackend) setProjectStatus(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projectStatus = status
}

func (b *fakeBackend) setGenerateStatus(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generateStatus = code
}

func (b *fakeBackend) hitCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) body(key string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[key]
}

func (b *fakeBackend) client() *apiclient.Client {
	c := apiclient.New(config.APIConfig{BaseURL: b.srv.URL + "/api/v1", Timeout: 2 * time.Second}, logger.Nop())
	b.t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// nopChannel 不连接任何服务端的实时通道
type nopChannel struct {
	mu   sync.Mutex
	subs map[string]realtime.TaskCallback
}

func (c *nopChannel) Connect() {}

func (c *nopChannel) SubscribeTask(taskID string, cb realtime.TaskCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]realtime.TaskCallback)
	}
	c.subs[taskID] = cb
}

func (c *nopChannel) UnsubscribeTask(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, taskID)
}

func requireDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "tracker did not finish")
	}
}
