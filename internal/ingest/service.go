package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"datachat-backend/internal/datasets"
	"datachat-backend/internal/jobs"
	"datachat-backend/internal/shared/metrics"
	"datachat-backend/internal/shared/storage/object"
	"datachat-backend/internal/shared/telemetry"
	"datachat-backend/internal/shared/util"
	"datachat-backend/internal/table"
	"datachat-backend/internal/table/parquetio"
)

const (
	copyChunkSize   = 1 << 20
	previewRowLimit = 5
	artifactPrefix  = "datasets/"
)

// Service owns the ingestion pipeline: the synchronous accept path that
// stages the upload on disk, and the background stage that cleans, profiles
// and persists it.
type Service struct {
	Jobs     *jobs.Store
	Runner   *jobs.Runner
	Objects  object.ObjectStore
	Datasets datasets.Repo
	TempDir  string
	MaxBytes int64
}

// AcceptResult is the metadata returned to the client alongside the job ID.
type AcceptResult struct {
	JobID    string
	FileName string
	Size     int64
	Columns  []string
}

// Accept validates and stages an uploaded CSV, registers a job, and schedules
// the background processing stage. The upload is streamed to a temp file in
// fixed-size chunks with a running byte count, so oversized bodies are cut
// off even when Content-Length lies.
func (s *Service) Accept(ctx context.Context, fileName string, r io.Reader) (AcceptResult, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return AcceptResult{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return AcceptResult{}, fmt.Errorf("%w: only .csv files are accepted", ErrInvalidInput)
	}
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("%w: invalid file name", ErrInvalidInput)
	}

	jobID := uuid.NewString()
	if _, err := s.Jobs.Create(jobID); err != nil {
		return AcceptResult{}, err
	}

	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		s.Jobs.SetError(jobID, "unable to stage upload")
		return AcceptResult{}, fmt.Errorf("mkdir temp dir: %w", err)
	}
	tempPath := filepath.Join(s.TempDir, jobID+"_"+sanitized)

	size, err := s.stageToTemp(tempPath, r)
	if err != nil {
		os.Remove(tempPath)
		s.Jobs.SetError(jobID, err.Error())
		return AcceptResult{}, err
	}

	columns, err := previewColumns(tempPath)
	if err != nil {
		os.Remove(tempPath)
		s.Jobs.SetError(jobID, err.Error())
		return AcceptResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	task := func(ctx context.Context) error {
		return s.process(ctx, jobID, fileName, tempPath)
	}
	if err := s.Runner.Submit(jobID, task); err != nil {
		os.Remove(tempPath)
		s.Jobs.SetError(jobID, "server is busy, please retry")
		return AcceptResult{}, err
	}

	telemetry.Info("ingest.accepted", map[string]any{
		"job_id":    jobID,
		"file_name": fileName,
		"size":      size,
	})

	return AcceptResult{
		JobID:    jobID,
		FileName: fileName,
		Size:     size,
		Columns:  columns,
	}, nil
}

// stageToTemp copies the upload to tempPath, aborting once the running count
// passes MaxBytes.
func (s *Service) stageToTemp(tempPath string, r io.Reader) (int64, error) {
	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if s.MaxBytes > 0 && written > s.MaxBytes {
				out.Close()
				return written, ErrTooLarge
			}
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return written, fmt.Errorf("write temp file: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return written, fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	return written, nil
}

func previewColumns(tempPath string) ([]string, error) {
	f, err := os.Open(tempPath)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()
	return table.PreviewCSV(f, previewRowLimit)
}

// process is the background ingestion stage.
func (s *Service) process(ctx context.Context, jobID, fileName, tempPath string) error {
	metrics.IncIngestStarted()
	started := time.Now()
	defer os.Remove(tempPath)

	failed := func(err error) error {
		metrics.IncIngestFailed()
		metrics.ObserveJobDurationMs(float64(time.Since(started).Milliseconds()))
		return err
	}

	s.Jobs.Update(jobID, jobs.StatusProcessing, "loading data", intPtr(10))
	f, err := os.Open(tempPath)
	if err != nil {
		return failed(fmt.Errorf("open staged file: %w", err))
	}
	tbl, err := table.DecodeCSV(f)
	f.Close()
	if err != nil {
		return failed(fmt.Errorf("parse csv: %w", err))
	}

	s.Jobs.Update(jobID, "", "cleaning data", intPtr(30))
	cleaned, duplicatesRemoved := table.Clean(tbl)

	s.Jobs.Update(jobID, "", "generating profile", intPtr(60))
	profile := table.BuildProfile(cleaned, duplicatesRemoved)

	s.Jobs.Update(jobID, "", "saving results", intPtr(90))
	var buf bytes.Buffer
	if err := parquetio.Encode(&buf, cleaned); err != nil {
		return failed(fmt.Errorf("encode artifact: %w", err))
	}

	artifactKey := artifactPrefix + jobID + ".parquet"
	if _, err := s.Objects.Save(ctx, artifactKey, &buf); err != nil {
		return failed(fmt.Errorf("save artifact: %w", err))
	}

	ds := datasets.Dataset{
		ID:          jobID,
		FileName:    fileName,
		ArtifactKey: artifactKey,
		Rows:        cleaned.NumRows(),
		Columns:     cleaned.ColumnNames(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Datasets.Create(ctx, ds); err != nil {
		if delErr := s.Objects.Delete(ctx, artifactKey); delErr != nil {
			telemetry.Error("ingest.artifact_cleanup", map[string]any{
				"job_id": jobID,
				"error":  delErr.Error(),
			})
		}
		return failed(fmt.Errorf("register dataset: %w", err))
	}

	s.Jobs.SetResult(jobID, map[string]any{
		"datasetId":   ds.ID,
		"artifactKey": ds.ArtifactKey,
		"profile":     profile,
		"columns":     ds.Columns,
		"rows":        ds.Rows,
	})

	metrics.IncIngestCompleted()
	metrics.ObserveJobDurationMs(float64(time.Since(started).Milliseconds()))
	telemetry.Info("ingest.completed", map[string]any{
		"job_id": jobID,
		"rows":   ds.Rows,
	})
	return nil
}

func intPtr(v int) *int {
	return &v
}
