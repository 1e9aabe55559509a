package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"datachat-backend/internal/analyst"
	"datachat-backend/internal/datasets"
	"datachat-backend/internal/ingest"
	"datachat-backend/internal/jobs"
	"datachat-backend/internal/shared/config"
	localstore "datachat-backend/internal/shared/storage/object/local"
)

type fakeLLM struct {
	reply string
}

func (f fakeLLM) GenerateCode(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

func newTestApp(t *testing.T, llmReply string) (http.Handler, *jobs.Store) {
	t.Helper()

	store := jobs.NewStore()
	runner := jobs.NewRunner(store, 2, 8)
	t.Cleanup(runner.Close)

	objects := localstore.New(t.TempDir())
	repo := datasets.NewMemoryRepo()

	ingestSvc := &ingest.Service{
		Jobs:     store,
		Runner:   runner,
		Objects:  objects,
		Datasets: repo,
		TempDir:  t.TempDir(),
		MaxBytes: 1 << 20,
	}
	analystSvc := &analyst.Service{
		Jobs:     store,
		Runner:   runner,
		Objects:  objects,
		Datasets: repo,
		LLM:      fakeLLM{reply: llmReply},
	}

	router := NewRouter(RouterDeps{
		Config:         config.Config{CORSAllowOrigin: []string{"http://localhost:5173"}},
		IngestHandler:  ingest.NewHandler(ingestSvc),
		AnalystHandler: analyst.NewHandler(analystSvc),
		JobsHandler:    jobs.NewHandler(store),
	})
	return router, store
}

func waitForTerminal(t *testing.T, store *jobs.Store, jobID string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := store.Get(jobID)
		if ok && (job.Status == jobs.StatusCompleted || job.Status == jobs.StatusFailed) {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return jobs.Job{}
}

func uploadCSV(t *testing.T, router http.Handler, name, contents string) string {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(contents)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.JobID == "" {
		t.Fatalf("missing jobId in response: %s", w.Body.String())
	}
	return resp.JobID
}

const peopleCSV = "dept,salary\neng,1000\neng,2000\nsales,500\n"

func TestUploadThenAskRoundTrip(t *testing.T) {
	router, store := newTestApp(t, "result = mean(salary)")

	fileID := uploadCSV(t, router, "people.csv", peopleCSV)
	job := waitForTerminal(t, store, fileID)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("ingest failed: %s", job.Error)
	}

	// Poll the HTTP surface once to confirm the snapshot shape.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+fileID, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 polling job, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"completed"`) {
		t.Fatalf("unexpected poll body: %s", w.Body.String())
	}

	askBody := `{"fileId":"` + fileID + `","question":"average salary?"}`
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(askBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var askResp struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &askResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	answerJob := waitForTerminal(t, store, askResp.JobID)
	if answerJob.Status != jobs.StatusCompleted {
		t.Fatalf("analysis failed: %s", answerJob.Error)
	}
	if answerJob.Result["answer"] != "1166.6666666666667" {
		t.Fatalf("unexpected answer: %v", answerJob.Result["answer"])
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	router, _ := newTestApp(t, "result = count()")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	router, _ := newTestApp(t, "result = count()")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/ask", strings.NewReader(`{"fileId":"x","question":""}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestApp(t, "result = count()")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestApp(t, "result = count()")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ingest_started_total") {
		t.Fatalf("metrics output missing counters: %s", w.Body.String())
	}
}
