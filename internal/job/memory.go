package job

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// entry holds one record. Writers serialize on mu; readers load cur without
// locking. A stored *Record is never mutated after it is published.
type entry struct {
	mu  sync.Mutex
	cur atomic.Pointer[Record]
}

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*entry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	return e, ok
}

func (s *MemoryStore) Create(_ context.Context, r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	r.UpdatedAt = r.CreatedAt
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[r.ID]; ok {
		return ErrDuplicateID
	}
	e := &entry{}
	e.cur.Store(r.Clone())
	s.jobs[r.ID] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return e.cur.Load().Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(r *Record)) (*Record, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := ApplyUpdate(e.cur.Load(), fn)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	e.cur.Store(next)
	return next.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]Record, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		r := e.cur.Load()
		if f.Matches(r) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// FailInterrupted is a no-op: a fresh MemoryStore never holds records from
// an earlier process.
func (s *MemoryStore) FailInterrupted(_ context.Context, _ string) (int64, error) {
	return 0, nil
}
