// Package alert evaluates rule documents against a table and turns match
// counts into alert records.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"xtract/internal/metrics"
	"xtract/internal/rules"
	"xtract/internal/table"
)

// Alert is one rule outcome. Deleted is only set by the catalog.
type Alert struct {
	ID            string `json:"id,omitempty"`
	DataReference string `json:"data"`
	Rule          string `json:"rule,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// Message formats a match count the way alerts report it.
func Message(n int64) string {
	return fmt.Sprintf("%d elements triggered alert", n)
}

// QueryExecutionError records a rule whose query failed. The rule counts as
// zero matches.
type QueryExecutionError struct {
	Rule  string
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("rule %q: query failed: %v", e.Rule, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// Report is the result of one evaluation. Failures hold *rules.SyntaxError
// and *QueryExecutionError values in rule order.
type Report struct {
	Alerts   []Alert
	Failures []error
	// Skipped names rules without conditions.
	Skipped []string
}

// Engine is the part of engine.Engine the evaluator needs.
type Engine interface {
	Dialect() rules.Dialect
	Relation() string
	Register(ctx context.Context, t *table.Table) error
	Count(ctx context.Context, query string, args ...any) (int64, error)
}

type Evaluator struct {
	eng    Engine
	legacy bool
	logger *zap.Logger
}

type Option func(*Evaluator)

// WithLegacyConcat evaluates rules with rules.CompileLegacy.
func WithLegacyConcat(on bool) Option {
	return func(e *Evaluator) { e.legacy = on }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(eng Engine, opts ...Option) *Evaluator {
	e := &Evaluator{eng: eng, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate registers t and runs every rule of doc in order. Only a failure
// to register the table is returned as an error; per-rule problems end up in
// Report.Failures.
func (e *Evaluator) Evaluate(ctx context.Context, t *table.Table, doc *rules.Document) (_ *Report, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStep("alerts", start, err) }()

	if err := e.eng.Register(ctx, t); err != nil {
		return nil, fmt.Errorf("register table: %w", err)
	}

	rep := &Report{}
	for _, r := range doc.Rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.Empty() {
			e.logger.Debug("skipping rule without conditions", zap.String("rule", r.Name))
			rep.Skipped = append(rep.Skipped, r.Name)
			countRule("skipped")
			continue
		}

		expr, err := e.compile(r)
		if err != nil {
			e.logger.Warn("rule rejected", zap.String("rule", r.Name), zap.Error(err))
			rep.Failures = append(rep.Failures, err)
			countRule("syntax_error")
			continue
		}

		q, args := rules.Query(e.eng.Relation(), expr, e.eng.Dialect())
		n, err := e.eng.Count(ctx, q, args...)
		status := "ok"
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			qerr := &QueryExecutionError{Rule: r.Name, Query: q, Err: err}
			e.logger.Warn("rule query failed", zap.String("rule", r.Name), zap.String("query", q), zap.Error(err))
			rep.Failures = append(rep.Failures, qerr)
			n, status = 0, "exec_error"
		}
		countRule(status)

		e.logger.Debug("rule evaluated", zap.String("rule", r.Name), zap.Int64("matches", n))
		rep.Alerts = append(rep.Alerts, Alert{DataReference: Message(n), Rule: r.Name})
		metrics.IncCounter(metrics.AlertsTotal, 1, nil)
	}
	return rep, nil
}

func (e *Evaluator) compile(r rules.Rule) (rules.Expr, error) {
	if e.legacy {
		return rules.CompileLegacy(r)
	}
	return rules.Compile(r)
}

func countRule(status string) {
	metrics.IncCounter(metrics.RulesTotal, 1, metrics.Labels{"status": status})
}

// SyntaxErrors returns the compile failures of rep.
func (rep *Report) SyntaxErrors() []*rules.SyntaxError {
	var out []*rules.SyntaxError
	for _, err := range rep.Failures {
		var se *rules.SyntaxError
		if errors.As(err, &se) {
			out = append(out, se)
		}
	}
	return out
}
