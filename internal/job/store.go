package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmethakanbesel/ranking-api/internal/apperror"
)

var (
	ErrNotFound    = apperror.New(apperror.NotFound, "job not found")
	ErrDuplicateID = apperror.New(apperror.Conflict, "job id already exists")
	ErrTerminal    = apperror.New(apperror.Conflict, "job already finished")

	ErrInvalidRecord = errors.New("invalid job record")
)

// Store is the registry of job records.
//
// Update applies fn to a private copy of the current record and commits the
// result as a single replace, so readers observe either the old or the new
// record and never a mix of both.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, id string, fn func(r *Record)) (*Record, error)
	List(ctx context.Context, f ListFilter) ([]Record, error)
	// FailInterrupted moves every non-terminal record to the error state and
	// returns how many were changed.
	FailInterrupted(ctx context.Context, message string) (int64, error)
}

type ListFilter struct {
	Status Status
	Niche  string
	Limit  int
}

const defaultListLimit = 100

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > defaultListLimit {
		return defaultListLimit
	}
	return f.Limit
}

// Matches reports whether r passes the filter.
func (f ListFilter) Matches(r *Record) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Niche != "" && r.Niche != f.Niche {
		return false
	}
	return true
}

// Validate checks the invariants that hold for every stored record.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	}
	if (r.Status == StatusCompleted) != (r.ResultURL != "") {
		return fmt.Errorf("%w: result url must be set exactly when completed", ErrInvalidRecord)
	}
	if r.Status != StatusPending && r.Message == "" {
		return fmt.Errorf("%w: message is required once processing", ErrInvalidRecord)
	}
	return nil
}

// CheckTransition validates next as the successor of prev.
func CheckTransition(prev, next *Record) error {
	if prev.Status.Terminal() {
		return ErrTerminal
	}
	if next.ID != prev.ID || next.Input != prev.Input || !next.CreatedAt.Equal(prev.CreatedAt) {
		return fmt.Errorf("%w: immutable fields changed", ErrInvalidRecord)
	}
	if next.Status.order() < prev.Status.order() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRecord, prev.Status, next.Status)
	}
	return next.Validate()
}

// ApplyUpdate runs fn against a clone of prev and returns the validated
// successor. Store implementations share it so they enforce the same rules.
func ApplyUpdate(prev *Record, fn func(r *Record)) (*Record, error) {
	next := prev.Clone()
	fn(next)
	if err := CheckTransition(prev, next); err != nil {
		return nil, err
	}
	return next, nil
}
