package jobs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datachat-backend/internal/shared/server/respond"
)

// Handler exposes the job polling surface.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
}

func (h *Handler) get(c *gin.Context) {
	jobID := c.Param("id")
	if jobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "job id is required", nil)
		return
	}

	job, ok := h.Store.Get(jobID)
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
		return
	}
	c.Set("jobId", job.ID)

	respond.OK(c, job)
}

func (h *Handler) list(c *gin.Context) {
	respond.OK(c, gin.H{"jobs": h.Store.List()})
}
