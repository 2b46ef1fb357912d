// Package pipeline defines the stage contracts a ranking job is built from.
//
// Each stage is an independent, replaceable strategy. The job executor calls
// them in order: discover, prepare, compile, metadata and, optionally, publish.
package pipeline

import (
	"context"
	"errors"
)

// Candidate is one discovered source video.
type Candidate struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	SourceURL       string `json:"sourceUrl"`
	DurationSeconds int    `json:"durationSeconds"`
	Views           int64  `json:"views"`
	Likes           int64  `json:"likes"`
	ThumbnailURL    string `json:"thumbnailUrl"`
}

// Clip is a prepared, locally stored unit ready for compilation.
// Rank 1 is the most preferred clip.
type Clip struct {
	Candidate Candidate `json:"candidate"`
	Path      string    `json:"path"`
	Rank      int       `json:"rank"`
}

// Metadata describes a compiled artifact for publishing.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"categoryId"`
}

// Clone returns a copy that shares no slices with m.
func (m Metadata) Clone() Metadata {
	if m.Tags != nil {
		m.Tags = append([]string(nil), m.Tags...)
	}
	return m
}

// MetadataRequest carries the inputs of the metadata stage. Title and
// Description are caller overrides; empty means "synthesize".
type MetadataRequest struct {
	Niche       string
	Title       string
	Description string
	Count       int
	// ClipTitles lists prepared clip titles in rank order.
	ClipTitles []string
}

type Discoverer interface {
	Discover(ctx context.Context, niche string, count int) ([]Candidate, error)
}

type Preparer interface {
	Prepare(ctx context.Context, c Candidate, rank int) (Clip, error)
}

type Compiler interface {
	Compile(ctx context.Context, clips []Clip, count int) (string, error)
}

type MetadataGenerator interface {
	Generate(ctx context.Context, req MetadataRequest) (Metadata, error)
}

// Publisher uploads an artifact and returns where it can be found.
type Publisher interface {
	Publish(ctx context.Context, artifact string, md Metadata) (string, error)
}

type DiscoverFunc func(ctx context.Context, niche string, count int) ([]Candidate, error)

func (f DiscoverFunc) Discover(ctx context.Context, niche string, count int) ([]Candidate, error) {
	return f(ctx, niche, count)
}

type PrepareFunc func(ctx context.Context, c Candidate, rank int) (Clip, error)

func (f PrepareFunc) Prepare(ctx context.Context, c Candidate, rank int) (Clip, error) {
	return f(ctx, c, rank)
}

type CompileFunc func(ctx context.Context, clips []Clip, count int) (string, error)

func (f CompileFunc) Compile(ctx context.Context, clips []Clip, count int) (string, error) {
	return f(ctx, clips, count)
}

type MetadataFunc func(ctx context.Context, req MetadataRequest) (Metadata, error)

func (f MetadataFunc) Generate(ctx context.Context, req MetadataRequest) (Metadata, error) {
	return f(ctx, req)
}

type PublishFunc func(ctx context.Context, artifact string, md Metadata) (string, error)

func (f PublishFunc) Publish(ctx context.Context, artifact string, md Metadata) (string, error) {
	return f(ctx, artifact, md)
}

// Stages bundles one strategy per stage.
type Stages struct {
	Discoverer Discoverer
	Preparer   Preparer
	Compiler   Compiler
	Metadata   MetadataGenerator
	Publisher  Publisher
}

func (s Stages) Validate() error {
	var errs []error
	if s.Discoverer == nil {
		errs = append(errs, errors.New("discovery stage is not configured"))
	}
	if s.Preparer == nil {
		errs = append(errs, errors.New("prepare stage is not configured"))
	}
	if s.Compiler == nil {
		errs = append(errs, errors.New("compile stage is not configured"))
	}
	if s.Metadata == nil {
		errs = append(errs, errors.New("metadata stage is not configured"))
	}
	if s.Publisher == nil {
		errs = append(errs, errors.New("publish stage is not configured"))
	}
	return errors.Join(errs...)
}
