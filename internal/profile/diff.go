package profile

import "sort"

// ChangeKind classifies a column difference between two profiles.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	// Modified means the content hash changed.
	Modified ChangeKind = "modified"
)

// Change is one column-level difference.
type Change struct {
	Column string     `json:"column"`
	Kind   ChangeKind `json:"kind"`
}

// Diff compares two profiles column by column using content hashes. The
// result is sorted by column name.
func Diff(old, cur *DatasetProfile) []Change {
	var out []Change
	for name, oc := range old.Profile.Columns {
		nc, ok := cur.Profile.Columns[name]
		switch {
		case !ok:
			out = append(out, Change{Column: name, Kind: Removed})
		case nc.Hash != oc.Hash:
			out = append(out, Change{Column: name, Kind: Modified})
		}
	}
	for name := range cur.Profile.Columns {
		if _, ok := old.Profile.Columns[name]; !ok {
			out = append(out, Change{Column: name, Kind: Added})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
