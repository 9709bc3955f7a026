package validation

import (
	"sort"

	"sheetbridge/internal/domain/reference"
)

// Report is the structured outcome of one validation run.
type Report struct {
	RunID        string                                  `json:"run_id,omitempty"`
	Fingerprint  string                                  `json:"fingerprint,omitempty"`
	DuplicateIDs map[string][]string                     `json:"duplicate_ids"`
	MissingFK    map[string][]reference.MissingReference `json:"missing_fk"`
	Unrecognized []reference.Unrecognized                `json:"unrecognized,omitempty"`
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{
		DuplicateIDs: map[string][]string{},
		MissingFK:    map[string][]reference.MissingReference{},
	}
}

// Has reports whether category has findings.
func (r *Report) Has(c Category) bool {
	if c == CategoryDuplicateIDs {
		return len(r.DuplicateIDs) > 0
	}
	return len(r.MissingFK) > 0
}

// Clean reports whether neither category has findings.
func (r *Report) Clean() bool {
	return !r.Has(CategoryDuplicateIDs) && !r.Has(CategoryMissingFK)
}

// Summary condenses one category into sheet -> column -> values (missing_fk) or
// sheet -> ids (duplicate_ids), which reads well in a single log line.
func (r *Report) Summary(c Category) map[string]any {
	out := make(map[string]any)
	if c == CategoryDuplicateIDs {
		for sheet, ids := range r.DuplicateIDs {
			out[sheet] = ids
		}
		return out
	}
	for sheet, refs := range r.MissingFK {
		cols := make(map[string][]string, len(refs))
		for _, mr := range refs {
			cols[mr.Column] = mr.MissingValues
		}
		out[sheet] = cols
	}
	return out
}

// Sheets returns every sheet name with findings, sorted.
func (r *Report) Sheets() []string {
	seen := make(map[string]struct{})
	for s := range r.DuplicateIDs {
		seen[s] = struct{}{}
	}
	for s := range r.MissingFK {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
