package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// recordingStore remembers every committed record in order.
type recordingStore struct {
	*MemoryStore
	mu      sync.Mutex
	commits []Record
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) Update(ctx context.Context, id string, fn func(r *Record)) (*Record, error) {
	r, err := s.MemoryStore.Update(ctx, id, fn)
	if err == nil {
		s.mu.Lock()
		s.commits = append(s.commits, *r)
		s.mu.Unlock()
	}
	return r, err
}

func (s *recordingStore) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commits))
	for i, c := range s.commits {
		out[i] = c.Message
	}
	return out
}

// rejectingStore fails every update whose mutator moves a record to status.
type rejectingStore struct {
	*MemoryStore
	status Status
	err    error
}

func (s *rejectingStore) Update(ctx context.Context, id string, fn func(r *Record)) (*Record, error) {
	var probe Record
	fn(&probe)
	if probe.Status == s.status {
		return nil, s.err
	}
	return s.MemoryStore.Update(ctx, id, fn)
}

type fakeStages struct {
	mu        sync.Mutex
	published int
	prepared  []string
	compiled  []pipeline.Clip
}

func (f *fakeStages) stages() pipeline.Stages {
	return pipeline.Stages{
		Discoverer: pipeline.DiscoverFunc(func(_ context.Context, niche string, count int) ([]pipeline.Candidate, error) {
			out := make([]pipeline.Candidate, count)
			for i := range out {
				out[i] = pipeline.Candidate{
					ID:    fmt.Sprintf("video_%d", i+1),
					Title: fmt.Sprintf("%s - Example %d", niche, i+1),
				}
			}
			return out, nil
		}),
		Preparer: pipeline.PrepareFunc(func(_ context.Context, c pipeline.Candidate, rank int) (pipeline.Clip, error) {
			f.mu.Lock()
			f.prepared = append(f.prepared, c.ID)
			f.mu.Unlock()
			return pipeline.Clip{Path: fmt.Sprintf("/clips/clip_%d.mp4", rank)}, nil
		}),
		Compiler: pipeline.CompileFunc(func(_ context.Context, clips []pipeline.Clip, count int) (string, error) {
			f.mu.Lock()
			f.compiled = append([]pipeline.Clip(nil), clips...)
			f.mu.Unlock()
			return fmt.Sprintf("/tmp/videos/ranking_top%d_1700000000000.mp4", count), nil
		}),
		Metadata: pipeline.MetadataFunc(func(_ context.Context, req pipeline.MetadataRequest) (pipeline.Metadata, error) {
			return pipeline.Metadata{
				Title:       fmt.Sprintf("Top %d %s You Need to See!", req.Count, req.Niche),
				Description: "generated",
				Tags:        []string{req.Niche, "ranking"},
				CategoryID:  "24",
			}, nil
		}),
		Publisher: pipeline.PublishFunc(func(_ context.Context, _ string, _ pipeline.Metadata) (string, error) {
			f.mu.Lock()
			f.published++
			f.mu.Unlock()
			return "https://www.youtube.com/watch?v=yt_1", nil
		}),
	}
}

func seed(t *testing.T, s Store, id string, in Input) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &Record{
		ID:      id,
		Input:   in,
		Status:  StatusProcessing,
		Message: MsgInitializing,
	}))
}

// waitTerminal polls s until job id reaches a terminal state.
func waitTerminal(t *testing.T, s Store, id string) *Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

// compileBlocking returns a compiler that signals entered and then waits for
// its context to end.
func compileBlocking(entered chan<- struct{}) pipeline.CompileFunc {
	return func(ctx context.Context, _ []pipeline.Clip, _ int) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	}
}

// compileGate signals entered and waits for gate before delegating to next.
func compileGate(entered chan<- struct{}, gate <-chan struct{}, next pipeline.Compiler) pipeline.CompileFunc {
	return func(ctx context.Context, clips []pipeline.Clip, count int) (string, error) {
		close(entered)
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return next.Compile(ctx, clips, count)
	}
}
