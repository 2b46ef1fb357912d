package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/ranking-api/internal/pipeline"
)

// Progress messages committed before each step.
const (
	MsgInitializing = "Initializing video generation..."
	MsgDiscovering  = "Searching for videos in niche..."
	MsgPreparing    = "Processing video clips..."
	MsgCompiling    = "Compiling ranking video..."
	MsgMetadata     = "Generating metadata..."
	MsgPublishing   = "Uploading to YouTube..."
	MsgPublished    = "Successfully published to YouTube!"
	MsgGenerated    = "Video generated successfully (not published)"
)

// DownloadPrefix is prepended to the artifact name when a job finishes
// without publishing.
const DownloadPrefix = "/download/"

// Executor drives one job record through the pipeline stages.
type Executor struct {
	store          Store
	stages         pipeline.Stages
	ranker         *pipeline.Ranker
	prepareWorkers int
	stageTimeout   time.Duration
}

type ExecutorOption func(*Executor)

// WithRanker orders candidates by score before preparation. Without it
// candidates keep their discovery order.
func WithRanker(r pipeline.Ranker) ExecutorOption {
	return func(e *Executor) { e.ranker = &r }
}

// WithPrepareWorkers bounds concurrent Prepare calls within one job.
func WithPrepareWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.prepareWorkers = n
		}
	}
}

// WithStageTimeout limits every individual stage call. Zero disables it.
func WithStageTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.stageTimeout = d }
}

func NewExecutor(store Store, stages pipeline.Stages, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:          store,
		stages:         stages,
		prepareWorkers: 4,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type outcome struct {
	resultURL string
	message   string
	metadata  pipeline.Metadata
}

// Run executes the pipeline for job id and commits exactly one terminal
// state. The returned error is informational; the store already reflects it.
func (e *Executor) Run(ctx context.Context, id string, in Input) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = e.fail(ctx, id, fmt.Errorf("internal error: %v", r))
		}
	}()

	out, err := e.execute(ctx, id, in)
	if err != nil {
		return e.fail(ctx, id, err)
	}

	_, err = e.store.Update(context.WithoutCancel(ctx), id, func(r *Record) {
		md := out.metadata.Clone()
		r.Status = StatusCompleted
		r.Message = out.message
		r.ResultURL = out.resultURL
		r.Metadata = &md
	})
	if err != nil {
		return e.fail(ctx, id, fmt.Errorf("commit result: %w", err))
	}

	slog.Info("executor: job completed", "job", id, "result", out.resultURL, "duration", time.Since(start).String())
	return nil
}

func (e *Executor) execute(ctx context.Context, id string, in Input) (outcome, error) {
	// Cancelled before any stage ran, e.g. while queued for a slot.
	if ctx.Err() != nil {
		return outcome{}, pipeline.ErrCancelled
	}
	if err := e.advance(ctx, id, pipeline.StageDiscovery, MsgDiscovering); err != nil {
		return outcome{}, err
	}
	candidates, err := e.discover(ctx, in)
	if err != nil {
		return outcome{}, err
	}

	if err := e.advance(ctx, id, pipeline.StagePrepare, MsgPreparing); err != nil {
		return outcome{}, err
	}
	clips, err := e.prepare(ctx, candidates)
	if err != nil {
		return outcome{}, err
	}

	if err := e.advance(ctx, id, pipeline.StageCompile, MsgCompiling); err != nil {
		return outcome{}, err
	}
	artifact, err := e.compile(ctx, clips, in.ItemCount)
	if err != nil {
		return outcome{}, err
	}

	if err := e.advance(ctx, id, pipeline.StageMetadata, MsgMetadata); err != nil {
		return outcome{}, err
	}
	md, err := e.metadata(ctx, in, clips)
	if err != nil {
		return outcome{}, err
	}

	if !in.AutoPublish {
		return outcome{
			resultURL: DownloadPrefix + filepath.Base(artifact),
			message:   MsgGenerated,
			metadata:  md,
		}, nil
	}

	if err := e.advance(ctx, id, pipeline.StagePublish, MsgPublishing); err != nil {
		return outcome{}, err
	}
	dest, err := e.publish(ctx, artifact, md)
	if err != nil {
		return outcome{}, err
	}
	return outcome{resultURL: dest, message: MsgPublished, metadata: md}, nil
}

// advance commits the message for the step about to start.
func (e *Executor) advance(ctx context.Context, id string, stage pipeline.Stage, message string) error {
	if ctx.Err() != nil {
		return pipeline.Fail(stage, pipeline.ErrCancelled)
	}
	if _, err := e.store.Update(ctx, id, func(r *Record) {
		r.Status = StatusProcessing
		r.Message = message
	}); err != nil {
		return fmt.Errorf("record %s progress: %w", stage, err)
	}
	slog.Debug("executor: stage started", "job", id, "stage", stage)
	return nil
}

func (e *Executor) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.stageTimeout > 0 {
		return context.WithTimeout(ctx, e.stageTimeout)
	}
	return context.WithCancel(ctx)
}

// stageErr attributes err to stage, reporting cancellation of the job itself
// rather than whatever error the collaborator surfaced for it.
func stageErr(ctx context.Context, stage pipeline.Stage, err error) error {
	if ctx.Err() != nil {
		return pipeline.Fail(stage, pipeline.ErrCancelled)
	}
	return pipeline.Fail(stage, err)
}

func (e *Executor) discover(ctx context.Context, in Input) ([]pipeline.Candidate, error) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()

	candidates, err := e.stages.Discoverer.Discover(sctx, in.Niche, in.ItemCount)
	if err != nil {
		return nil, stageErr(ctx, pipeline.StageDiscovery, err)
	}
	if len(candidates) != in.ItemCount {
		return nil, pipeline.Fail(pipeline.StageDiscovery,
			fmt.Errorf("expected %d candidates, got %d", in.ItemCount, len(candidates)))
	}
	return candidates, nil
}

func (e *Executor) prepare(ctx context.Context, candidates []pipeline.Candidate) ([]pipeline.Clip, error) {
	var ranked []pipeline.Ranked
	if e.ranker != nil {
		ranked = e.ranker.Rank(candidates)
	} else {
		ranked = pipeline.InDiscoveryOrder(candidates)
	}

	sctx, cancel := e.stageContext(ctx)
	defer cancel()

	clips := make([]pipeline.Clip, len(ranked))
	g, gctx := errgroup.WithContext(sctx)
	g.SetLimit(e.prepareWorkers)
	for i, rc := range ranked {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("candidate %s: panic: %v", rc.Candidate.ID, r)
				}
			}()
			clip, err := e.stages.Preparer.Prepare(gctx, rc.Candidate, rc.Rank)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", rc.Candidate.ID, err)
			}
			if clip.Path == "" {
				return fmt.Errorf("candidate %s: no clip produced", rc.Candidate.ID)
			}
			clip.Candidate = rc.Candidate
			clip.Rank = rc.Rank
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stageErr(ctx, pipeline.StagePrepare, err)
	}
	return clips, nil
}

func (e *Executor) compile(ctx context.Context, clips []pipeline.Clip, count int) (string, error) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()

	artifact, err := e.stages.Compiler.Compile(sctx, clips, count)
	if err != nil {
		return "", stageErr(ctx, pipeline.StageCompile, err)
	}
	if artifact == "" {
		return "", pipeline.Fail(pipeline.StageCompile, errors.New("no artifact produced"))
	}
	return artifact, nil
}

func (e *Executor) metadata(ctx context.Context, in Input, clips []pipeline.Clip) (pipeline.Metadata, error) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()

	titles := make([]string, len(clips))
	for i, c := range clips {
		titles[i] = c.Candidate.Title
	}
	md, err := e.stages.Metadata.Generate(sctx, pipeline.MetadataRequest{
		Niche:       in.Niche,
		Title:       in.Title,
		Description: in.Description,
		Count:       in.ItemCount,
		ClipTitles:  titles,
	})
	if err != nil {
		return pipeline.Metadata{}, stageErr(ctx, pipeline.StageMetadata, err)
	}

	// Caller-supplied values always win over generated ones.
	if in.Title != "" {
		md.Title = in.Title
	}
	if in.Description != "" {
		md.Description = in.Description
	}
	if md.Title == "" {
		return pipeline.Metadata{}, pipeline.Fail(pipeline.StageMetadata, errors.New("empty title"))
	}
	return md, nil
}

func (e *Executor) publish(ctx context.Context, artifact string, md pipeline.Metadata) (string, error) {
	sctx, cancel := e.stageContext(ctx)
	defer cancel()

	dest, err := e.stages.Publisher.Publish(sctx, artifact, md.Clone())
	if err != nil {
		return "", stageErr(ctx, pipeline.StagePublish, err)
	}
	if dest == "" {
		return "", pipeline.Fail(pipeline.StagePublish, errors.New("no destination returned"))
	}
	return dest, nil
}

// fail commits the error state for id. It runs detached from ctx so a
// cancelled job still records why it stopped.
func (e *Executor) fail(ctx context.Context, id string, cause error) error {
	msg := "Error: " + cause.Error()
	_, err := e.store.Update(context.WithoutCancel(ctx), id, func(r *Record) {
		r.Status = StatusError
		r.Message = msg
		r.ResultURL = ""
		r.Metadata = nil
	})
	if err != nil {
		slog.Error("executor: record failure", "job", id, "cause", cause, "error", err)
		return errors.Join(cause, err)
	}

	stage, _ := pipeline.StageOf(cause)
	slog.Warn("executor: job failed", "job", id, "stage", stage, "error", cause)
	return cause
}
