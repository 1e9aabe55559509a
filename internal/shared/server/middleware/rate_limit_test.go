package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func newLimitedRouter(rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(rule)))
	router.GET("/api/v1/jobs/abc", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestRateLimitAllowsWithinBurst(t *testing.T) {
	router := newLimitedRouter(RateLimitRule{Rate: rate.Limit(1), Burst: 3})

	for i := 0; i < 3; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
	}
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	router := newLimitedRouter(RateLimitRule{Rate: rate.Limit(0.001), Burst: 1})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRateLimitZeroRuleDisablesLimiting(t *testing.T) {
	router := newLimitedRouter(RateLimitRule{})

	for i := 0; i < 10; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.Code)
		}
	}
}
