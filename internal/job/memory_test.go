package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/ranking-api/internal/apperror"
	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := &Record{ID: "a", Input: Input{Niche: "gaming", ItemCount: 3}, Status: StatusProcessing, Message: MsgInitializing}
	require.NoError(t, s.Create(ctx, r))
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "gaming", got.Niche)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, r.CreatedAt, got.UpdatedAt)
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

	err := s.Create(context.Background(), &Record{ID: "a", Status: StatusProcessing, Message: "m"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.True(t, apperror.Is(err, apperror.Conflict))
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, "missing", func(r *Record) { r.Message = "x" })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

	_, err := s.Update(ctx, "a", func(r *Record) {
		r.Status = StatusCompleted
		r.ResultURL = "/download/a.mp4"
		r.Message = MsgGenerated
		r.Metadata = &pipeline.Metadata{Title: "t", Tags: []string{"one"}}
	})
	require.NoError(t, err)

	got, _ := s.Get(ctx, "a")
	got.Message = "tampered"
	got.Metadata.Tags[0] = "tampered"

	again, _ := s.Get(ctx, "a")
	assert.Equal(t, MsgGenerated, again.Message)
	assert.Equal(t, "one", again.Metadata.Tags[0])
}

func TestMemoryStore_TerminalIsFinal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

	_, err := s.Update(ctx, "a", func(r *Record) {
		r.Status = StatusError
		r.Message = "Error: discovery stage failed: boom"
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, "a", func(r *Record) {
		r.Status = StatusCompleted
		r.ResultURL = "/download/x.mp4"
		r.Message = MsgGenerated
	})
	assert.ErrorIs(t, err, ErrTerminal)

	got, _ := s.Get(ctx, "a")
	assert.Equal(t, StatusError, got.Status)
	assert.Empty(t, got.ResultURL)
}

func TestMemoryStore_RejectsInvalidUpdates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *Record)
	}{
		{"completed without result", func(r *Record) { r.Status = StatusCompleted }},
		{"result while processing", func(r *Record) { r.ResultURL = "/download/x.mp4" }},
		{"empty message", func(r *Record) { r.Message = "" }},
		{"back to pending", func(r *Record) { r.Status = StatusPending }},
		{"input changed", func(r *Record) { r.Niche = "other" }},
		{"unknown status", func(r *Record) { r.Status = "paused" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

			_, err := s.Update(context.Background(), "a", tt.fn)
			assert.ErrorIs(t, err, ErrInvalidRecord)

			got, _ := s.Get(context.Background(), "a")
			assert.Equal(t, StatusProcessing, got.Status)
			assert.Equal(t, MsgInitializing, got.Message)
		})
	}
}

// Readers racing a writer must only ever see committed, consistent records.
func TestMemoryStore_ReadersNeverSeeTornRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				r, err := s.Get(ctx, "a")
				if err != nil {
					t.Error(err)
					return
				}
				if err := r.Validate(); err != nil {
					t.Errorf("observed invalid record: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := s.Update(ctx, "a", func(r *Record) { r.Message = MsgPreparing })
		require.NoError(t, err)
	}
	_, err := s.Update(ctx, "a", func(r *Record) {
		r.Status = StatusCompleted
		r.Message = MsgGenerated
		r.ResultURL = "/download/x.mp4"
	})
	require.NoError(t, err)

	close(stop)
	wg.Wait()
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seeds := []struct{ id, niche string }{{"a", "gaming"}, {"b", "cooking"}, {"c", "gaming"}}
	for i, sd := range seeds {
		require.NoError(t, s.Create(ctx, &Record{
			ID:        sd.id,
			Input:     Input{Niche: sd.niche, ItemCount: 1},
			Status:    StatusProcessing,
			Message:   MsgInitializing,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	_, err := s.Update(ctx, "c", func(r *Record) {
		r.Status = StatusError
		r.Message = "Error: x"
	})
	require.NoError(t, err)

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	gaming, _ := s.List(ctx, ListFilter{Niche: "gaming"})
	assert.Len(t, gaming, 2)

	failed, _ := s.List(ctx, ListFilter{Status: StatusError})
	require.Len(t, failed, 1)
	assert.Equal(t, "c", failed[0].ID)

	limited, _ := s.List(ctx, ListFilter{Limit: 1})
	assert.Len(t, limited, 1)
}

func TestMemoryStore_FailInterruptedNoop(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "a", Input{Niche: "x", ItemCount: 1})

	n, err := s.FailInterrupted(context.Background(), "Error: restart")
	require.NoError(t, err)
	assert.Zero(t, n)
}
