package job

import (
	"fmt"
	"strings"

	"github.com/ahmethakanbesel/ranking-api/internal/apperror"
)

type SubmitRequest struct {
	Niche       string
	ItemCount   int
	Title       string
	Description string
	AutoPublish bool
}

// Validate checks a request whose defaults have already been applied.
func (r SubmitRequest) Validate(maxCount int) *apperror.AppError {
	if strings.TrimSpace(r.Niche) == "" {
		return apperror.New(apperror.BadRequest, "niche is required")
	}
	if r.ItemCount < 1 || r.ItemCount > maxCount {
		return apperror.New(apperror.BadRequest, fmt.Sprintf("itemCount must be between 1 and %d", maxCount))
	}
	return nil
}

func (r SubmitRequest) input() Input {
	return Input{
		Niche:       strings.TrimSpace(r.Niche),
		ItemCount:   r.ItemCount,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		AutoPublish: r.AutoPublish,
	}
}

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if strings.TrimSpace(r.ID) == "" {
		return apperror.New(apperror.BadRequest, "job id is required")
	}
	return nil
}

type ListJobsRequest struct {
	Status string
	Niche  string
	Limit  int
}

func (r ListJobsRequest) Validate() *apperror.AppError {
	if r.Status != "" && !Status(r.Status).Valid() {
		return apperror.New(apperror.BadRequest, "status must be one of pending, processing, completed, error")
	}
	if r.Limit < 0 {
		return apperror.New(apperror.BadRequest, "limit must not be negative")
	}
	return nil
}

type CancelJobRequest struct {
	ID string
}

func (r CancelJobRequest) Validate() *apperror.AppError {
	return GetJobRequest(r).Validate()
}
