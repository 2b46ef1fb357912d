package job

import (
	"time"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

type Status string

const (
	// StatusPending is part of the vocabulary but records are created as
	// processing; there is no separate queued state.
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

func (s Status) order() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// Input holds the parameters a job was submitted with. It never changes
// after the record is created.
type Input struct {
	Niche       string `json:"niche"`
	ItemCount   int    `json:"itemCount"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	AutoPublish bool   `json:"autoPublish"`
}

// Record is one pipeline run. The store owns the canonical copy; everything
// handed out is a clone.
type Record struct {
	ID string `json:"id"`
	Input
	Status    Status             `json:"status"`
	Message   string             `json:"message"`
	ResultURL string             `json:"resultUrl,omitempty"`
	Metadata  *pipeline.Metadata `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (r *Record) Clone() *Record {
	cp := *r
	if r.Metadata != nil {
		md := r.Metadata.Clone()
		cp.Metadata = &md
	}
	return &cp
}

// Snapshot is the read-only view returned to status callers.
type Snapshot struct {
	ID        string             `json:"jobId"`
	Status    Status             `json:"status"`
	Message   string             `json:"message"`
	ResultURL string             `json:"resultUrl,omitempty"`
	Metadata  *pipeline.Metadata `json:"metadata,omitempty"`
	Request   Input              `json:"request"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (r *Record) Snapshot() Snapshot {
	c := r.Clone()
	return Snapshot{
		ID:        c.ID,
		Status:    c.Status,
		Message:   c.Message,
		ResultURL: c.ResultURL,
		Metadata:  c.Metadata,
		Request:   c.Input,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
