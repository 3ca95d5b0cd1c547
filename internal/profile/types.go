package profile

import (
	"fmt"

	"github.com/goccy/go-json"

	"xtract/internal/fingerprint"
	"xtract/internal/semantic"
	"xtract/internal/stats"
)

// Features is the type-specific part of a column profile. It is either
// NumericFeatures or TextFeatures.
type Features interface {
	featuresKind() string
}

// NumericFeatures describe an Integer or Float column.
type NumericFeatures struct {
	Min      float64         `json:"min"`
	Max      float64         `json:"max"`
	Mean     float64         `json:"mean"`
	Variance float64         `json:"variance"`
	Std      float64         `json:"std"`
	Hist     stats.Histogram `json:"hist"`
}

// TextFeatures describe a String column.
type TextFeatures struct {
	MinLen       int     `json:"min_len"`
	MaxLen       int     `json:"max_len"`
	AvgLen       float64 `json:"avg_len"`
	NCapitalized int     `json:"n_capitalized"`
	NLowercase   int     `json:"n_lowercase"`
	NUppercase   int     `json:"n_uppercase"`
}

func (NumericFeatures) featuresKind() string { return "Numeric" }
func (TextFeatures) featuresKind() string    { return "String" }

// ColumnProfile is the summary of one column.
type ColumnProfile struct {
	Hash        string
	Unique      int
	Rows        int
	Nulls       int
	Categorical bool
	Features    Features
	// Types counts semantic kinds. Empty for numeric columns.
	Types semantic.Counts
}

// featuresJSON is the externally tagged wire form of Features:
// {"Numeric": {...}} or {"String": {...}}.
type featuresJSON struct {
	Numeric *NumericFeatures `json:"Numeric,omitempty"`
	String  *TextFeatures    `json:"String,omitempty"`
}

type columnJSON struct {
	Hash        string          `json:"hash"`
	Unique      int             `json:"nunique"`
	Rows        int             `json:"count"`
	Nulls       int             `json:"null_count"`
	Categorical bool            `json:"categorical"`
	Features    featuresJSON    `json:"features"`
	Types       semantic.Counts `json:"types"`
}

func (c ColumnProfile) MarshalJSON() ([]byte, error) {
	w := columnJSON{
		Hash:        c.Hash,
		Unique:      c.Unique,
		Rows:        c.Rows,
		Nulls:       c.Nulls,
		Categorical: c.Categorical,
		Types:       c.Types,
	}
	if w.Types == nil {
		w.Types = semantic.Counts{}
	}
	switch f := c.Features.(type) {
	case NumericFeatures:
		w.Features.Numeric = &f
	case TextFeatures:
		w.Features.String = &f
	case nil:
	default:
		return nil, fmt.Errorf("profile: unknown features type %T", f)
	}
	return json.Marshal(w)
}

func (c *ColumnProfile) UnmarshalJSON(b []byte) error {
	var w columnJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = ColumnProfile{
		Hash:        w.Hash,
		Unique:      w.Unique,
		Rows:        w.Rows,
		Nulls:       w.Nulls,
		Categorical: w.Categorical,
		Types:       w.Types,
	}
	switch {
	case w.Features.Numeric != nil && w.Features.String != nil:
		return fmt.Errorf("profile: features carry both Numeric and String")
	case w.Features.Numeric != nil:
		c.Features = *w.Features.Numeric
	case w.Features.String != nil:
		c.Features = *w.Features.String
	}
	return nil
}

// Summary is the dataset-level body of a profile.
type Summary struct {
	DataID  string                   `json:"data_id"`
	Rows    int                      `json:"nrows"`
	Cols    int                      `json:"ncols"`
	Columns map[string]ColumnProfile `json:"columns"`
	// Order lists column names in table order.
	Order []string `json:"-"`
}

// DatasetProfile is the document produced for one dataset.
type DatasetProfile struct {
	DataSource string  `json:"datasource"`
	Hash       string  `json:"hash"`
	Profile    Summary `json:"profile"`
}

// SetDataSource records the source name and derives the data id from it.
func (p *DatasetProfile) SetDataSource(name string) {
	p.DataSource = name
	p.Profile.DataID = fingerprint.Name(name)
}

// Marshal renders the profile as indented JSON.
func (p *DatasetProfile) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Unmarshal parses a profile document. Order is rebuilt in name order since
// JSON objects carry none.
func Unmarshal(b []byte) (*DatasetProfile, error) {
	var p DatasetProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	p.Profile.Order = sortedKeys(p.Profile.Columns)
	return &p, nil
}

func fromStats(n stats.Numeric) NumericFeatures {
	return NumericFeatures{
		Min:      n.Min,
		Max:      n.Max,
		Mean:     n.Mean,
		Variance: n.Variance,
		Std:      n.Std,
		Hist:     n.Hist,
	}
}

func fromText(t stats.Text) TextFeatures {
	return TextFeatures{
		MinLen:       t.MinLen,
		MaxLen:       t.MaxLen,
		AvgLen:       t.AvgLen,
		NCapitalized: t.NCapitalized,
		NLowercase:   t.NLowercase,
		NUppercase:   t.NUppercase,
	}
}
