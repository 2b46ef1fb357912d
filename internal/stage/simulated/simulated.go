// Package simulated provides stage implementations that do no real media
// work. They produce placeholder clips and artifacts with realistic timing
// so the pipeline can run without external services.
package simulated

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// Stages bundles the simulated collaborators.
type Stages struct {
	outputDir    string
	compileDelay time.Duration
	publishDelay time.Duration
	now          func() time.Time
}

type Option func(*Stages)

// WithOutputDir sets where compiled artifacts are reported to live.
func WithOutputDir(dir string) Option {
	return func(s *Stages) { s.outputDir = dir }
}

// WithCompileDelay sets how long Compile pretends to work.
func WithCompileDelay(d time.Duration) Option {
	return func(s *Stages) { s.compileDelay = d }
}

// WithPublishDelay sets how long Publish pretends to upload.
func WithPublishDelay(d time.Duration) Option {
	return func(s *Stages) { s.publishDelay = d }
}

// WithClock replaces time.Now for artifact and video ids.
func WithClock(now func() time.Time) Option {
	return func(s *Stages) { s.now = now }
}

func New(opts ...Option) *Stages {
	s := &Stages{
		outputDir:    "/tmp/videos",
		compileDelay: 2 * time.Second,
		publishDelay: 3 * time.Second,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Discover returns count mock videos. Stats are pseudo-random but stable for
// a given niche so repeated runs rank the same way.
func (s *Stages) Discover(_ context.Context, niche string, count int) ([]pipeline.Candidate, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(niche))
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(count)))

	out := make([]pipeline.Candidate, count)
	for i := range out {
		n := i + 1
		views := rng.Int64N(1_000_000)
		out[i] = pipeline.Candidate{
			ID:              fmt.Sprintf("video_%d", n),
			Title:           fmt.Sprintf("%s - Example %d", niche, n),
			SourceURL:       fmt.Sprintf("https://youtube.com/watch?v=example%d", n),
			DurationSeconds: rng.IntN(300) + 60,
			Views:           views,
			Likes:           rng.Int64N(views/10 + 1),
			ThumbnailURL:    fmt.Sprintf("https://i.ytimg.com/vi/example%d/hqdefault.jpg", n),
		}
	}
	return out, nil
}

func (s *Stages) Prepare(_ context.Context, _ pipeline.Candidate, rank int) (pipeline.Clip, error) {
	return pipeline.Clip{Path: fmt.Sprintf("/clips/clip_%d.mp4", rank)}, nil
}

func (s *Stages) Compile(ctx context.Context, _ []pipeline.Clip, count int) (string, error) {
	if err := sleep(ctx, s.compileDelay); err != nil {
		return "", err
	}
	name := fmt.Sprintf("ranking_top%d_%d.mp4", count, s.now().UnixMilli())
	return filepath.Join(s.outputDir, name), nil
}

func (s *Stages) Publish(ctx context.Context, _ string, _ pipeline.Metadata) (string, error) {
	if err := sleep(ctx, s.publishDelay); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://www.youtube.com/watch?v=yt_%d", s.now().UnixMilli()), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
