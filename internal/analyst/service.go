package analyst

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"datachat-backend/internal/analyst/query"
	"datachat-backend/internal/datasets"
	"datachat-backend/internal/jobs"
	"datachat-backend/internal/llm"
	"datachat-backend/internal/shared/metrics"
	"datachat-backend/internal/shared/storage/object"
	"datachat-backend/internal/shared/telemetry"
	"datachat-backend/internal/table"
	"datachat-backend/internal/table/parquetio"
)

const missingDatasetMessage = "dataset not found, please upload again"

const tableAnswer = "here are the results of your query"

// Service owns the analysis pipeline: question in, job out, with the LLM
// round trip and query evaluation happening on the runner.
type Service struct {
	Jobs     *jobs.Store
	Runner   *jobs.Runner
	Objects  object.ObjectStore
	Datasets datasets.Repo
	LLM      llm.Client
}

// Ask registers an analysis job for the dataset and schedules the background
// stage. Returns the job ID.
func (s *Service) Ask(ctx context.Context, fileID, question string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("%w: fileId is required", ErrInvalidInput)
	}
	if question == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	jobID := uuid.NewString()
	if _, err := s.Jobs.Create(jobID); err != nil {
		return "", err
	}

	task := func(ctx context.Context) error {
		return s.process(ctx, jobID, fileID, question)
	}
	if err := s.Runner.Submit(jobID, task); err != nil {
		s.Jobs.SetError(jobID, "server is busy, please retry")
		return "", err
	}

	telemetry.Info("analysis.accepted", map[string]any{
		"job_id":  jobID,
		"file_id": fileID,
	})
	return jobID, nil
}

// process is the background analysis stage.
func (s *Service) process(ctx context.Context, jobID, fileID, question string) error {
	metrics.IncAnalysisStarted()
	started := time.Now()

	failed := func(err error) error {
		metrics.IncAnalysisFailed()
		metrics.ObserveJobDurationMs(float64(time.Since(started).Milliseconds()))
		return err
	}

	s.Jobs.Update(jobID, jobs.StatusProcessing, "loading dataset", intPtr(10))
	tbl, err := s.loadDataset(ctx, fileID)
	if err != nil {
		return failed(err)
	}

	s.Jobs.Update(jobID, "", "generating analysis code", intPtr(30))
	raw, err := s.LLM.GenerateCode(ctx, buildPrompt(tbl, question))
	if err != nil {
		return failed(fmt.Errorf("code generation failed: %w", err))
	}
	code := stripCodeFences(raw)

	s.Jobs.Update(jobID, "", "executing analysis", intPtr(60))
	q, err := query.Parse(code)
	if err != nil {
		if errors.Is(err, query.ErrNoResult) {
			return failed(err)
		}
		return failed(fmt.Errorf("generated code is invalid: %v (code: %s)", err, code))
	}
	res, err := query.Eval(q, tbl)
	if err != nil {
		return failed(fmt.Errorf("generated code failed to execute: %v (code: %s)", err, code))
	}

	s.Jobs.Update(jobID, "", "finalizing results", intPtr(90))
	answer, data := normalize(res)
	s.Jobs.SetResult(jobID, map[string]any{
		"answer":        answer,
		"generatedCode": code,
		"data":          data,
	})

	metrics.IncAnalysisCompleted()
	metrics.ObserveJobDurationMs(float64(time.Since(started).Milliseconds()))
	telemetry.Info("analysis.completed", map[string]any{
		"job_id":  jobID,
		"file_id": fileID,
	})
	return nil
}

// loadDataset resolves the artifact through the registry and decodes it.
func (s *Service) loadDataset(ctx context.Context, fileID string) (*table.Table, error) {
	ds, err := s.Datasets.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, datasets.ErrNotFound) {
			return nil, errors.New(missingDatasetMessage)
		}
		return nil, fmt.Errorf("resolve dataset: %w", err)
	}

	rc, err := s.Objects.Open(ctx, ds.ArtifactKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, errors.New(missingDatasetMessage)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	tbl, err := parquetio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return tbl, nil
}

// normalize converts an evaluation result into the job result payload: a
// scalar becomes the answer string, a table becomes records plus a fixed
// placeholder answer.
func normalize(res query.Result) (string, any) {
	if res.IsScalar() {
		return formatScalar(res.Scalar), nil
	}

	t := res.Table
	records := make([]map[string]any, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := make(map[string]any, t.NumCols())
		for c := range t.Columns {
			col := &t.Columns[c]
			row[col.Name] = col.CellValue(i)
		}
		records[i] = row
	}
	return tableAnswer, map[string]any{
		"columns": t.ColumnNames(),
		"records": records,
	}
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "no data matched your question"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func intPtr(v int) *int {
	return &v
}
