package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"datachat-backend/internal/analyst"
	"datachat-backend/internal/datasets"
	"datachat-backend/internal/ingest"
	"datachat-backend/internal/jobs"
	"datachat-backend/internal/llm"
	openaillm "datachat-backend/internal/llm/openai"
	"datachat-backend/internal/shared/config"
	"datachat-backend/internal/shared/server"
	"datachat-backend/internal/shared/storage/db"
	"datachat-backend/internal/shared/storage/object"
	localstore "datachat-backend/internal/shared/storage/object/local"
	s3store "datachat-backend/internal/shared/storage/object/s3"
)

// App holds the wired dependency graph. Everything is constructed here and
// injected explicitly; nothing hangs off package globals.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	JobStore *jobs.Store
	Runner   *jobs.Runner
	Objects  object.ObjectStore
	Datasets datasets.Repo
	LLM      llm.Client

	IngestService  *ingest.Service
	AnalystService *analyst.Service

	IngestHandler  *ingest.Handler
	AnalystHandler *analyst.Handler
	JobsHandler    *jobs.Handler
}

// Build constructs the full application from configuration.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	var datasetsRepo datasets.Repo
	if sqlDB != nil {
		datasetsRepo = &datasets.PGRepo{DB: sqlDB}
	} else {
		datasetsRepo = datasets.NewMemoryRepo()
	}

	jobStore := jobs.NewStore()
	runner := jobs.NewRunner(jobStore, cfg.JobWorkers, cfg.JobQueueSize)

	ingestSvc := &ingest.Service{
		Jobs:     jobStore,
		Runner:   runner,
		Objects:  objects,
		Datasets: datasetsRepo,
		TempDir:  cfg.TempDir,
		MaxBytes: cfg.MaxUploadBytes,
	}
	analystSvc := &analyst.Service{
		Jobs:     jobStore,
		Runner:   runner,
		Objects:  objects,
		Datasets: datasetsRepo,
		LLM:      llmClient,
	}

	app := &App{
		Config:         cfg,
		DB:             sqlDB,
		JobStore:       jobStore,
		Runner:         runner,
		Objects:        objects,
		Datasets:       datasetsRepo,
		LLM:            llmClient,
		IngestService:  ingestSvc,
		AnalystService: analystSvc,
		IngestHandler:  ingest.NewHandler(ingestSvc),
		AnalystHandler: analyst.NewHandler(analystSvc),
		JobsHandler:    &jobs.Handler{Store: jobStore},
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		IngestHandler:  app.IngestHandler,
		AnalystHandler: app.AnalystHandler,
		JobsHandler:    app.JobsHandler,
	})

	return app, nil
}

// Close drains the runner and releases the database connection.
func (a *App) Close() {
	if a.Runner != nil {
		a.Runner.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; dataset registry is in-memory")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; dataset registry is in-memory: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildObjectStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai", "groq":
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			log.Printf("bootstrap: OPENAI_API_KEY empty; analysis requests will fail until configured")
			return llm.PlaceholderClient{}, nil
		}
		timeout := time.Duration(cfg.LLMTimeoutSecs) * time.Second
		return openaillm.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, timeout)
	default:
		return llm.PlaceholderClient{}, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
