// Package reportdiff compares two stored audit reports section by section, for
// spotting drift between runs of the same table pair.
package reportdiff

// Result is the top-level output of a report comparison.
type Result struct {
	Sections []SectionComparison `json:"sections"`
	AllMatch bool                `json:"all_match"`
	Summary  string              `json:"summary"`
}

// SectionComparison records the comparison for a single report section.
type SectionComparison struct {
	Section   string `json:"section"`
	Baseline  string `json:"baseline"`
	Candidate string `json:"candidate"`
	Match     bool   `json:"match"`
	DiffLines string `json:"diff_lines,omitempty"`
}

// Sections are the report keys compared, in output order. comparison_date is
// excluded since two runs never share it.
var Sections = []string{
	"source_table",
	"target_table",
	"column_summary",
	"columns_in_source_only",
	"columns_in_target_only",
	"schema_differences",
	"row_summary",
	"row_comparison",
	"row_match_summary",
}
