package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageDiscovery Stage = "discovery"
	StagePrepare   Stage = "prepare"
	StageCompile   Stage = "compile"
	StageMetadata  Stage = "metadata"
	StagePublish   Stage = "publish"
)

var (
	ErrDiscovery = errors.New("discovery failure")
	ErrPrepare   = errors.New("prepare failure")
	ErrCompile   = errors.New("compile failure")
	ErrMetadata  = errors.New("metadata failure")
	ErrPublish   = errors.New("publish failure")

	// ErrCancelled marks a job stopped through its cancellation token.
	ErrCancelled = errors.New("cancelled")
)

var stageSentinels = map[Stage]error{
	StageDiscovery: ErrDiscovery,
	StagePrepare:   ErrPrepare,
	StageCompile:   ErrCompile,
	StageMetadata:  ErrMetadata,
	StagePublish:   ErrPublish,
}

// StageError records which stage failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

// Fail wraps err as a failure of stage. A nil err yields nil.
func Fail(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s stage failed: timed out", e.Stage)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	if s, ok := stageSentinels[e.Stage]; ok {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
