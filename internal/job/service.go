package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/ranking-api/internal/apperror"
)

// JobDispatcher hands a created job to background execution.
type JobDispatcher interface {
	Dispatch(id string, in Input) error
	Cancel(id string) bool
}

type Service struct {
	store        Store
	dispatcher   JobDispatcher
	newID        func() string
	defaultCount int
	maxCount     int
}

type ServiceOption func(*Service)

// WithItemCounts sets the count used when a request omits it and the
// largest count accepted.
func WithItemCounts(defaultCount, maxCount int) ServiceOption {
	return func(s *Service) {
		if maxCount > 0 {
			s.maxCount = maxCount
		}
		if defaultCount > 0 {
			s.defaultCount = defaultCount
		}
	}
}

// WithIDGenerator replaces the uuid-based identifier source.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

func NewService(store Store, dispatcher JobDispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		dispatcher:   dispatcher,
		newID:        uuid.NewString,
		defaultCount: 5,
		maxCount:     50,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates req, records a new processing job and starts it in the
// background. It returns as soon as the job is recorded.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.ItemCount == 0 {
		req.ItemCount = s.defaultCount
	}
	if err := req.Validate(s.maxCount); err != nil {
		return "", err
	}

	in := req.input()
	r := &Record{
		ID:      s.newID(),
		Input:   in,
		Status:  StatusProcessing,
		Message: MsgInitializing,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if err := s.dispatcher.Dispatch(r.ID, in); err != nil {
		// The caller still gets the id; the failure shows up when polling.
		msg := "Error: " + err.Error()
		if _, uerr := s.store.Update(context.WithoutCancel(ctx), r.ID, func(rec *Record) {
			rec.Status = StatusError
			rec.Message = msg
		}); uerr != nil {
			slog.Error("record dispatch failure", "job", r.ID, "error", uerr)
		}
	}

	slog.Info("job submitted", "job", r.ID, "niche", in.Niche, "count", in.ItemCount, "autoPublish", in.AutoPublish)
	return r.ID, nil
}

func (s *Service) Get(ctx context.Context, req GetJobRequest) (*Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	snap := r.Snapshot()
	return &snap, nil
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx, ListFilter{
		Status: Status(req.Status),
		Niche:  req.Niche,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, len(records))
	for i := range records {
		out[i] = records[i].Snapshot()
	}
	return out, nil
}

// Cancel asks a running job to stop. The job records the cancellation
// itself once its current stage returns.
func (s *Service) Cancel(ctx context.Context, req CancelJobRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	r, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return err
	}
	if r.Status.Terminal() {
		return ErrTerminal
	}
	if !s.dispatcher.Cancel(req.ID) {
		return apperror.New(apperror.Conflict, "job is not running")
	}
	slog.Info("job cancellation requested", "job", req.ID)
	return nil
}

// RecoverInterruptedJobs fails records left unfinished by an earlier
// process sharing the same store.
func (s *Service) RecoverInterruptedJobs(ctx context.Context) error {
	n, err := s.store.FailInterrupted(ctx, "Error: interrupted by service restart")
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("marked interrupted jobs as failed", "count", n)
	}
	return nil
}
