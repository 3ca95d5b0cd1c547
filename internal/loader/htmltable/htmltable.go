// Package htmltable decodes an HTML <table> into a table.
package htmltable

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"xtract/internal/loader"
	"xtract/internal/table"
)

// ErrNoTable is returned when the selector matches no <table>.
var ErrNoTable = errors.New("html: no matching table")

// Options controls decoding.
type Options struct {
	// Selector picks the table. The first match is used. Empty means "table".
	Selector string
	// InferBooleans types true/false columns as Boolean.
	InferBooleans bool
	// DecodeEmails replaces obfuscated e-mail links in cells with the
	// plain address.
	DecodeEmails bool
}

// Decode reads the first table matching opts.Selector. Headers come from
// th cells of the first row, or from its td cells when there are no th.
// Rows shorter than the header are padded with nulls; extra cells are
// dropped.
func Decode(r io.Reader, opts Options) (*table.Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	selector := opts.Selector
	if selector == "" {
		selector = "table"
	}
	tbl := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "table"
	}).First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, selector)
	}

	var records [][]string
	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Skip rows of nested tables.
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}
		var rec []string
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			rec = append(rec, cellText(cell, opts.DecodeEmails))
		})
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no rows", ErrNoTable, selector)
	}

	headers := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(headers))
		copy(row, rec)
		rows = append(rows, row)
	}
	return loader.Build(headers, rows, loader.InferOptions{Booleans: opts.InferBooleans})
}

func cellText(cell *goquery.Selection, decodeEmails bool) string {
	if decodeEmails {
		if v := emailFromCell(cell); v != "" {
			return v
		}
	}
	return strings.Join(strings.Fields(cell.Text()), " ")
}
