package analyst

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"datachat-backend/internal/datasets"
	"datachat-backend/internal/jobs"
	localstore "datachat-backend/internal/shared/storage/object/local"
	"datachat-backend/internal/table"
	"datachat-backend/internal/table/parquetio"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) GenerateCode(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

const salariesCSV = `dept,salary
eng,1000
eng,2000
sales,500
`

func newService(t *testing.T, reply string) (*Service, *jobs.Store) {
	t.Helper()
	store := jobs.NewStore()
	runner := jobs.NewRunner(store, 2, 8)
	t.Cleanup(runner.Close)

	objects := localstore.New(t.TempDir())
	repo := datasets.NewMemoryRepo()

	tbl, err := table.DecodeCSV(strings.NewReader(salariesCSV))
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	var buf bytes.Buffer
	if err := parquetio.Encode(&buf, tbl); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := objects.Save(context.Background(), "datasets/ds-1.parquet", &buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err = repo.Create(context.Background(), datasets.Dataset{
		ID:          "ds-1",
		FileName:    "salaries.csv",
		ArtifactKey: "datasets/ds-1.parquet",
		Rows:        3,
		Columns:     []string{"dept", "salary"},
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create dataset: %v", err)
	}

	return &Service{
		Jobs:     store,
		Runner:   runner,
		Objects:  objects,
		Datasets: repo,
		LLM:      fakeLLM{reply: reply},
	}, store
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

func TestAskScalarResult(t *testing.T) {
	svc, store := newService(t, "result = mean(salary)")

	jobID, err := svc.Ask(context.Background(), "ds-1", "what is the average salary?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if got := job.Result["answer"]; got != "1166.6666666666667" {
		t.Fatalf("unexpected answer %v", got)
	}
	if got := job.Result["generatedCode"]; got != "result = mean(salary)" {
		t.Fatalf("unexpected generated code %v", got)
	}
}

func TestAskTableResultWithFencedReply(t *testing.T) {
	reply := "```\nresult = groupby(dept, mean(salary)) | sort(mean_salary, desc)\n```"
	svc, store := newService(t, reply)

	jobID, err := svc.Ask(context.Background(), "ds-1", "mean salary by dept?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
	}
	if job.Result["answer"] != tableAnswer {
		t.Fatalf("unexpected answer %v", job.Result["answer"])
	}
	data := job.Result["data"].(map[string]any)
	records := data["records"].([]map[string]any)
	if len(records) != 2 || records[0]["dept"] != "eng" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestAskUnknownDatasetFails(t *testing.T) {
	svc, store := newService(t, "result = count()")

	jobID, err := svc.Ask(context.Background(), "missing", "how many rows?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error != missingDatasetMessage {
		t.Fatalf("unexpected error %q", job.Error)
	}
}

func TestAskInvalidCodeIncludesSnippet(t *testing.T) {
	svc, store := newService(t, "result = exec('rm -rf /')")

	jobID, err := svc.Ask(context.Background(), "ds-1", "do something weird")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Error, "exec") {
		t.Fatalf("expected error to include the offending code, got %q", job.Error)
	}
}

func TestAskMissingResultAssignmentIsDistinct(t *testing.T) {
	svc, store := newService(t, "x = mean(salary)")

	jobID, err := svc.Ask(context.Background(), "ds-1", "average?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Error, "no result produced") {
		t.Fatalf("expected the no-result message, got %q", job.Error)
	}
}

func TestAskValidation(t *testing.T) {
	svc, _ := newService(t, "result = count()")

	if _, err := svc.Ask(context.Background(), "ds-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty question, got %v", err)
	}
	if _, err := svc.Ask(context.Background(), "", "hello"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty fileId, got %v", err)
	}
}

func TestAskLLMFailureFailsJob(t *testing.T) {
	svc, store := newService(t, "")
	svc.LLM = fakeLLM{err: errors.New("provider unavailable")}

	jobID, err := svc.Ask(context.Background(), "ds-1", "average?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	job := waitForTerminal(t, store, jobID)
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if !strings.Contains(job.Error, "code generation failed") {
		t.Fatalf("unexpected error %q", job.Error)
	}
}
