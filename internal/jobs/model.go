package jobs

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents a tracked unit of asynchronous work.
type Job struct {
	ID        string         `json:"jobId"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (j Job) snapshot() Job {
	out := j
	if j.Result != nil {
		result := make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			result[k] = v
		}
		out.Result = result
	}
	return out
}
