package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"datachat-backend/internal/analyst"
	"datachat-backend/internal/ingest"
	"datachat-backend/internal/jobs"
	"datachat-backend/internal/shared/config"
	"datachat-backend/internal/shared/metrics"
	"datachat-backend/internal/shared/server/middleware"
	"datachat-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config         config.Config
	IngestHandler  *ingest.Handler
	AnalystHandler *analyst.Handler
	JobsHandler    *jobs.Handler
}

// statusPollRule throttles the polling endpoints per client IP. Clients are
// expected to poll about once a second; the burst absorbs page loads that
// fetch several jobs at once.
var statusPollRule = middleware.RateLimitRule{Rate: rate.Limit(5), Burst: 20}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.IngestHandler != nil {
		deps.IngestHandler.RegisterRoutes(api)
	}
	if deps.AnalystHandler != nil {
		deps.AnalystHandler.RegisterRoutes(api)
	}
	if deps.JobsHandler != nil {
		status := api.Group("")
		status.Use(middleware.RateLimit(middleware.NewRateLimiter(statusPollRule)))
		deps.JobsHandler.RegisterRoutes(status)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
