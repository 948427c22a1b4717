package reportdiff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Compare compares two serialized audit reports and produces a Result.
func Compare(baselineJSON, candidateJSON []byte) (*Result, error) {
	var baseline, candidate map[string]any
	if err := json.Unmarshal(baselineJSON, &baseline); err != nil {
		return nil, fmt.Errorf("parse baseline report: %w", err)
	}
	if err := json.Unmarshal(candidateJSON, &candidate); err != nil {
		return nil, fmt.Errorf("parse candidate report: %w", err)
	}

	var comparisons []SectionComparison
	allMatch := true

	for _, section := range Sections {
		baseVal, _ := json.MarshalIndent(normalize(baseline[section]), "", "  ") // safe: values came from Unmarshal
		candVal, _ := json.MarshalIndent(normalize(candidate[section]), "", "  ")

		match := string(baseVal) == string(candVal)
		if !match {
			allMatch = false
		}

		sc := SectionComparison{
			Section:   section,
			Baseline:  string(baseVal),
			Candidate: string(candVal),
			Match:     match,
		}
		if !match {
			sc.DiffLines = lineDiff(string(baseVal), string(candVal))
		}
		comparisons = append(comparisons, sc)
	}

	summary := "all sections match"
	if !allMatch {
		var divergent []string
		for _, c := range comparisons {
			if !c.Match {
				divergent = append(divergent, c.Section)
			}
		}
		summary = fmt.Sprintf("divergence in: %s", strings.Join(divergent, ", "))
	}

	return &Result{
		Sections: comparisons,
		AllMatch: allMatch,
		Summary:  summary,
	}, nil
}

// CompareReports is Compare for reports already in memory.
func CompareReports(baseline, candidate domain.AuditReport) (*Result, error) {
	a, err := json.Marshal(baseline)
	if err != nil {
		return nil, fmt.Errorf("marshal baseline report: %w", err)
	}
	b, err := json.Marshal(candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate report: %w", err)
	}
	return Compare(a, b)
}

// normalize maps a JSON null list to an empty one so a report written with
// omitted sections compares equal to one with empty sections.
func normalize(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

// lineDiff returns a basic line-by-line diff indicator.
func lineDiff(a, b string) string {
	aLines := strings.Split(a, "\n")
	bLines := strings.Split(b, "\n")
	var diffs []string

	for i := range max(len(aLines), len(bLines)) {
		aLine := ""
		if i < len(aLines) {
			aLine = aLines[i]
		}
		bLine := ""
		if i < len(bLines) {
			bLine = bLines[i]
		}
		if aLine != bLine {
			diffs = append(diffs, fmt.Sprintf("line %d:\n  baseline:  %s\n  candidate: %s", i+1, aLine, bLine))
		}
	}
	return strings.Join(diffs, "\n")
}
