package analyst

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"datachat-backend/internal/jobs"
	"datachat-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat/ask", h.ask)
}

type askRequest struct {
	FileID   string `json:"fileId"`
	Question string `json:"question"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileID = strings.TrimSpace(req.FileID)
	req.Question = strings.TrimSpace(req.Question)

	jobID, err := h.Svc.Ask(c.Request.Context(), req.FileID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, jobs.ErrQueueFull):
			respond.Error(c, http.StatusServiceUnavailable, "server_busy", "server is busy, please retry", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to accept question", nil)
		}
		return
	}

	c.Set("jobId", jobID)
	c.Set("fileId", req.FileID)
	respond.Accepted(c, gin.H{
		"jobId":   jobID,
		"message": "question accepted, analysis started",
	})
}
