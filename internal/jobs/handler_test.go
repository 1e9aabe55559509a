package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(store *Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(store)
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestGetJobReturnsSnapshot(t *testing.T) {
	store := NewStore()
	if _, err := store.Create("job-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.SetResult("job-1", map[string]any{"rows": 10})

	r := newTestRouter(store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if job.ID != "job-1" || job.Status != StatusCompleted || job.Progress != 100 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.Result["rows"].(float64) != 10 {
		t.Fatalf("unexpected result: %+v", job.Result)
	}
}

func TestGetUnknownJobReturns404(t *testing.T) {
	r := newTestRouter(NewStore())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	store := NewStore()
	for _, id := range []string{"a", "b"} {
		if _, err := store.Create(id); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	r := newTestRouter(store)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(body.Jobs))
	}
}
