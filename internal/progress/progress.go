// Package progress draws per-column profiling progress.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/term"

	"xtract/internal/profile"
)

const defaultWidth = 40

// Bar renders `Column: <name> ▕####----▏ 42%` lines on a terminal. When the
// output is not a terminal it logs coarse progress at debug level instead.
type Bar struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	width int
	log   *zap.Logger
	last  map[string]int
}

// New returns a bar writing to w. tty selects drawing over logging.
func New(w io.Writer, tty bool, log *zap.Logger) *Bar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bar{w: w, tty: tty, width: defaultWidth, log: log, last: map[string]int{}}
}

// Stderr returns a bar on os.Stderr, drawing only if it is a terminal.
func Stderr(log *zap.Logger) *Bar {
	return New(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), log)
}

// Func adapts b to the profiler callback.
func (b *Bar) Func() profile.ProgressFunc { return b.Update }

// Update records percent for column. Repeated values are dropped.
func (b *Bar) Update(column string, percent int) {
	percent = max(0, min(100, percent))

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, seen := b.last[column]
	if seen && prev == percent {
		return
	}
	b.last[column] = percent

	if !b.tty {
		if !seen || percent/10 != prev/10 {
			b.log.Debug("profiling column", zap.String("column", column), zap.Int("percent", percent))
		}
		return
	}
	fmt.Fprintf(b.w, "\r%s", Render(column, percent, b.width))
	if percent == 100 {
		fmt.Fprintln(b.w)
	}
}

// Render formats one bar line.
func Render(column string, percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	return fmt.Sprintf("Column: %s ▕%s%s▏ %d%%",
		column, strings.Repeat("#", filled), strings.Repeat("-", width-filled), percent)
}
