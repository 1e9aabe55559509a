package ingest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"datachat-backend/internal/jobs"
	"datachat-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the ingestion service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files/upload", h.upload)
}

func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	res, err := h.Svc.Accept(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", ErrTooLarge.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, jobs.ErrQueueFull):
			respond.Error(c, http.StatusServiceUnavailable, "server_busy", "server is busy, please retry", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to accept upload", nil)
		}
		return
	}

	c.Set("jobId", res.JobID)
	c.Set("fileId", res.JobID)
	respond.Accepted(c, gin.H{
		"jobId":    res.JobID,
		"fileId":   res.JobID,
		"fileName": res.FileName,
		"size":     res.Size,
		"columns":  res.Columns,
		"message":  "file accepted, processing started",
	})
}
