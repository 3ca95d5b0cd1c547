// Package rules reads alerting rule documents and compiles each rule's
// any/all/not conditions into a typed predicate that query engines render
// into their own SQL dialect.
package rules

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ErrEmptyRule is returned by Compile for a rule without conditions. Such
// rules are skipped: no query runs and no alert is produced.
var ErrEmptyRule = errors.New("rule has no conditions")

// Conditions groups SQL boolean conditions. Every group may be empty.
type Conditions struct {
	Any []string `json:"any,omitempty"`
	All []string `json:"all,omitempty"`
	Not []string `json:"not,omitempty"`
}

// Len returns the number of conditions across all groups.
func (c Conditions) Len() int { return len(c.Any) + len(c.All) + len(c.Not) }

// Rule is a named set of conditions.
type Rule struct {
	Name       string     `json:"rulename"`
	Conditions Conditions `json:"conditions"`
}

// Empty reports whether the rule has no conditions at all.
func (r Rule) Empty() bool { return r.Conditions.Len() == 0 }

// Document is a rules file.
type Document struct {
	Rules []Rule `json:"rules"`
}

// Parse decodes a rules document from r.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}
	return &doc, nil
}

// SyntaxError reports a condition that is not a supported predicate.
type SyntaxError struct {
	Rule      string
	Condition string
	Err       error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("rule %q: invalid condition %q: %v", e.Rule, e.Condition, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }
