// Package profile turns a table into a DatasetProfile: per-column statistics,
// content hashes, uniqueness, categorical flags and semantic type counts.
//
// Columns are routed by declared type. Integer and Float columns get numeric
// features and a histogram; String columns get text features and semantic
// classification. Any other type aborts the whole run, as does any column
// error: a profile is produced for every column or not at all.
package profile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xtract/internal/fingerprint"
	"xtract/internal/metrics"
	"xtract/internal/semantic"
	"xtract/internal/stats"
	"xtract/internal/table"
)

var (
	// ErrUnsupportedColumnType is returned for columns that are neither
	// numeric nor string.
	ErrUnsupportedColumnType = errors.New("unsupported column type")

	// ErrNoRows is returned when categorical classification is asked for a
	// table without rows.
	ErrNoRows = errors.New("no rows")
)

// CategoricalThreshold is the unique/rows ratio below which a column is
// categorical.
const CategoricalThreshold = 0.2

// Categorical reports whether unique distinct values over rows rows make a
// categorical column.
func Categorical(unique, rows int) (bool, error) {
	if rows <= 0 {
		return false, ErrNoRows
	}
	return float64(unique)/float64(rows) < CategoricalThreshold, nil
}

// ProgressFunc receives the percentage (0..100) of a column's values that
// have been scanned. Calls for one column are non-decreasing and end at 100.
// With more than one worker, calls for different columns may interleave.
type ProgressFunc func(column string, percent int)

// Profiler computes dataset profiles. The zero value is not usable; use New.
type Profiler struct {
	workers  int
	progress ProgressFunc
	logger   *zap.Logger
}

type Option func(*Profiler)

// WithWorkers profiles up to n columns concurrently. n <= 1 is sequential.
func WithWorkers(n int) Option {
	return func(p *Profiler) {
		if n > 1 {
			p.workers = n
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(p *Profiler) { p.progress = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(opts ...Option) *Profiler {
	p := &Profiler{workers: 1, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Profile profiles every column of t and names the result after datasource.
func (p *Profiler) Profile(ctx context.Context, t *table.Table, datasource string) (_ *DatasetProfile, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStep("profile", start, err) }()

	for _, c := range t.Columns() {
		if !supported(c.Type()) {
			return nil, fmt.Errorf("profile column %q: %w: %s", c.Name(), ErrUnsupportedColumnType, c.Type())
		}
	}

	cols := t.Columns()
	results := make([]ColumnProfile, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, c := range cols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cp, err := p.Column(c, t.Rows())
			if err != nil {
				return fmt.Errorf("profile column %q: %w", c.Name(), err)
			}
			results[i] = cp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &DatasetProfile{
		Profile: Summary{
			Rows:    t.Rows(),
			Cols:    len(cols),
			Columns: make(map[string]ColumnProfile, len(cols)),
			Order:   t.Names(),
		},
	}
	hashes := make([]string, len(cols))
	for i, c := range cols {
		out.Profile.Columns[c.Name()] = results[i]
		hashes[i] = results[i].Hash
	}
	out.Hash = fingerprint.Combine(hashes)
	out.SetDataSource(datasource)

	metrics.IncCounter(metrics.RowsTotal, float64(t.Rows()), nil)
	p.logger.Debug("profiled dataset",
		zap.String("datasource", datasource),
		zap.Int("rows", t.Rows()),
		zap.Int("cols", len(cols)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

func supported(t table.Type) bool {
	return t == table.Integer || t == table.Float || t == table.String
}

// Column profiles a single column of a table with rows rows.
func (p *Profiler) Column(c *table.Column, rows int) (ColumnProfile, error) {
	cp := ColumnProfile{
		Rows:   rows,
		Nulls:  c.NullCount(),
		Unique: c.UniqueCount(),
	}

	var err error
	switch c.Type() {
	case table.Integer, table.Float:
		err = p.numeric(c, &cp)
	case table.String:
		err = p.text(c, &cp)
	default:
		return ColumnProfile{}, fmt.Errorf("%w: %s", ErrUnsupportedColumnType, c.Type())
	}
	if err != nil {
		return ColumnProfile{}, err
	}

	cp.Categorical, err = Categorical(cp.Unique, rows)
	if err != nil {
		return ColumnProfile{}, err
	}

	metrics.IncCounter(metrics.ColumnsTotal, 1, metrics.Labels{"type": c.Type().String()})
	p.report(c.Name(), 100)
	return cp, nil
}

func (p *Profiler) numeric(c *table.Column, cp *ColumnProfile) error {
	hash, err := p.hashWithProgress(c)
	if err != nil {
		return err
	}
	values, err := c.Numbers()
	if err != nil {
		return err
	}
	summary, err := stats.Summarize(values)
	if err != nil {
		return err
	}
	cp.Hash = hash
	cp.Features = fromStats(summary)
	cp.Types = semantic.Counts{}
	return nil
}

func (p *Profiler) text(c *table.Column, cp *ColumnProfile) error {
	hash, err := p.hashWithProgress(c)
	if err != nil {
		return err
	}
	values, err := c.Strings()
	if err != nil {
		return err
	}
	summary, err := stats.SummarizeText(values)
	if err != nil {
		return err
	}
	cp.Hash = hash
	cp.Features = fromText(summary)
	cp.Types = semantic.Count(values)

	p.logger.Debug("string column",
		zap.String("column", c.Name()),
		zap.Float64("mean_bytes", summary.MeanBytes))
	return nil
}

// hashWithProgress fingerprints c. The hash pass is the one full scan that
// drives progress reporting.
func (p *Profiler) hashWithProgress(c *table.Column) (string, error) {
	if err := fingerprint.Supported(c); err != nil {
		return "", err
	}
	h := fingerprint.New()
	for v := range track(p, c.Name(), c.Len(), fingerprint.Rows(c)) {
		if err := h.WriteValue(v); err != nil {
			return "", fmt.Errorf("column %q: %w", c.Name(), err)
		}
	}
	return h.Sum(), nil
}

func (p *Profiler) report(column string, percent int) {
	if p.progress != nil {
		p.progress(column, percent)
	}
}

// track wraps seq so that progress is reported at most once per percent of
// total. It stops at 99; Column reports 100 once all features are done.
func track[T any](p *Profiler, column string, total int, seq iter.Seq[T]) iter.Seq[T] {
	if p.progress == nil || total <= 0 {
		return seq
	}
	return func(yield func(T) bool) {
		p.report(column, 0)
		n, last := 0, 0
		for v := range seq {
			n++
			if pct := min(n*100/total, 99); pct > last {
				last = pct
				p.report(column, pct)
			}
			if !yield(v) {
				return
			}
		}
	}
}
