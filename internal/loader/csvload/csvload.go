// Package csvload decodes delimited text into a table.
package csvload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"xtract/internal/loader"
	"xtract/internal/table"
)

// ErrNoHeader is returned for empty input.
var ErrNoHeader = errors.New("csv: missing header row")

// Options controls decoding.
type Options struct {
	// Delimiter separates fields. Zero sniffs it from the header line.
	Delimiter rune
	// Charset names the input encoding ("windows-1250", "latin1", ...).
	// Empty means UTF-8. A byte order mark always wins.
	Charset string
	// InferBooleans types true/false columns as Boolean.
	InferBooleans bool
	// Strict fails on rows whose field count differs from the header.
	// Otherwise such rows are skipped and counted in Stats.Skipped.
	Strict bool
}

// Stats describes one decode.
type Stats struct {
	Rows    int
	Skipped int
	Comma   rune
}

// Decode reads r into a table. Cells are trimmed; empty cells are null.
func Decode(r io.Reader, opts Options) (*table.Table, Stats, error) {
	var st Stats

	dec, err := decoder(opts.Charset)
	if err != nil {
		return nil, st, err
	}
	r = transform.NewReader(r, unicode.BOMOverride(dec))

	comma := opts.Delimiter
	if comma == 0 {
		var sniffed rune
		if r, sniffed, err = sniff(r); err != nil {
			return nil, st, err
		}
		comma = sniffed
	}
	st.Comma = comma

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1 // we validate manually
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, st, ErrNoHeader
	}
	if err != nil {
		return nil, st, fmt.Errorf("read header: %w", err)
	}
	headers := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, 1024)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, st, fmt.Errorf("csv read: %w", err)
		}
		if len(rec) != len(headers) {
			if opts.Strict {
				line, _ := cr.FieldPos(0)
				return nil, st, fmt.Errorf("line %d: got %d fields, want %d", line, len(rec), len(headers))
			}
			st.Skipped++
			continue
		}
		row := make([]string, len(rec))
		for i := range rec {
			row[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row)
	}
	st.Rows = len(rows)

	t, err := loader.Build(headers, rows, loader.InferOptions{Booleans: opts.InferBooleans})
	if err != nil {
		return nil, st, err
	}
	return t, st, nil
}

func decoder(charset string) (transform.Transformer, error) {
	if charset == "" {
		return unicode.UTF8.NewDecoder(), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}
	return enc.NewDecoder(), nil
}

var candidates = []rune{',', ';', '\t', '|'}

// sniff picks the candidate delimiter that occurs most often in the first
// line, defaulting to comma. It returns a reader that still yields the
// whole input.
func sniff(r io.Reader) (io.Reader, rune, error) {
	buf := make([]byte, 64*1024)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, 0, fmt.Errorf("read sample: %w", err)
	}
	buf = buf[:n]

	line := buf
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', 0
	for _, c := range candidates {
		if n := bytes.Count(line, []byte(string(c))); n > bestN {
			best, bestN = c, n
		}
	}
	return io.MultiReader(bytes.NewReader(buf), r), best, nil
}
