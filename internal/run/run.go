// Package run wires loading, profiling and rule evaluation into one call and
// tags every fatal error with the stage that produced it.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"xtract/internal/alert"
	"xtract/internal/metrics"
	"xtract/internal/profile"
	"xtract/internal/rules"
	"xtract/internal/table"
)

// Stage names a pipeline step.
type Stage string

const (
	StageLoad    Stage = "load"
	StageProfile Stage = "profile"
	StageCompile Stage = "compile"
	StageExecute Stage = "execute"
)

// StageError is a fatal error annotated with the failing stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s failed: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Wrap tags err with stage. A nil err stays nil.
func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage of err, or "" if it carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Input is one dataset and, optionally, the rules to evaluate on it.
type Input struct {
	Table      *table.Table
	DataSource string
	Rules      *rules.Document
}

// Options selects the steps to run. A nil Profiler skips profiling; a nil
// Evaluator or nil Input.Rules skips alerting.
type Options struct {
	Profiler  *profile.Profiler
	Evaluator *alert.Evaluator
	Logger    *zap.Logger
}

// Result holds whatever the enabled steps produced.
type Result struct {
	Profile *profile.DatasetProfile
	Report  *alert.Report
}

// Run profiles in.Table and then evaluates in.Rules. A profiling failure
// stops the run before any rule executes and yields no profile.
func Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	res := &Result{}

	if opts.Profiler != nil {
		p, err := opts.Profiler.Profile(ctx, in.Table, in.DataSource)
		if err != nil {
			return nil, Wrap(StageProfile, err)
		}
		res.Profile = p
	}

	if opts.Evaluator != nil && in.Rules != nil {
		rep, err := opts.Evaluator.Evaluate(ctx, in.Table, in.Rules)
		if err != nil {
			return nil, Wrap(StageExecute, err)
		}
		res.Report = rep
		for _, f := range rep.Failures {
			log.Warn("rule failed", zap.String("stage", string(stageOfFailure(f))), zap.Error(f))
		}
	}

	log.Debug("run finished",
		zap.String("datasource", in.DataSource),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// ParseRules decodes a rules document, tagging failures with StageCompile.
func ParseRules(r io.Reader) (*rules.Document, error) {
	start := time.Now()
	doc, err := rules.Parse(r)
	metrics.ObserveStep(string(StageCompile), start, err)
	if err != nil {
		return nil, Wrap(StageCompile, err)
	}
	return doc, nil
}

func stageOfFailure(err error) Stage {
	var se *rules.SyntaxError
	if errors.As(err, &se) {
		return StageCompile
	}
	return StageExecute
}
