package domain

import (
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_\-$]+$`)

// TableBuilder assembles a TableDescriptor step by step and validates it on Build.
type TableBuilder struct {
	t TableDescriptor
}

// NewTable starts a descriptor for the given environment with table type TABLE.
func NewTable(env Environment) *TableBuilder {
	return &TableBuilder{t: TableDescriptor{Environment: env, TableType: TableTypeTable}}
}

func (b *TableBuilder) Project(id string) *TableBuilder {
	b.t.ProjectID = id
	return b
}

func (b *TableBuilder) Dataset(id string) *TableBuilder {
	b.t.DatasetID = id
	return b
}

func (b *TableBuilder) Name(name string) *TableBuilder {
	b.t.TableName = name
	return b
}

func (b *TableBuilder) Type(tt TableType) *TableBuilder {
	b.t.TableType = tt
	return b
}

// Build validates and returns the descriptor.
func (b *TableBuilder) Build() (TableDescriptor, error) {
	if err := ValidateTableDescriptor(b.t); err != nil {
		return TableDescriptor{}, err
	}
	return b.t, nil
}

// ValidateTableDescriptor checks required fields on a TableDescriptor.
func ValidateTableDescriptor(t TableDescriptor) error {
	if !t.Environment.Valid() {
		return fmt.Errorf("invalid environment: %q", t.Environment)
	}
	if t.TableName == "" {
		return fmt.Errorf("table_name is required")
	}
	if !identPattern.MatchString(t.TableName) {
		return fmt.Errorf("invalid table_name: %q", t.TableName)
	}
	if t.DatasetID != "" && !identPattern.MatchString(t.DatasetID) {
		return fmt.Errorf("invalid dataset_id: %q", t.DatasetID)
	}
	if t.ProjectID != "" && !identPattern.MatchString(t.ProjectID) {
		return fmt.Errorf("invalid project_id: %q", t.ProjectID)
	}
	if !t.TableType.Valid() {
		return fmt.Errorf("invalid table_type: %q", t.TableType)
	}
	return nil
}

// ValidateColumnMatch checks the match-rate bounds and the rate formula.
func ValidateColumnMatch(m ColumnMatch) error {
	if m.MatchRate < 0 || m.MatchRate > 1 {
		return fmt.Errorf("match_rate must be between 0 and 1, got %f", m.MatchRate)
	}
	if m.Matches < 0 || m.Mismatches < 0 || m.KnownDiffs < 0 {
		return fmt.Errorf("negative counts on column %q", m.SourceColumnName)
	}
	if want := MatchRate(m.Matches, m.Mismatches); want != m.MatchRate {
		return fmt.Errorf("match_rate for %q is %f, want %f", m.SourceColumnName, m.MatchRate, want)
	}
	return nil
}

// MatchRate is matches/(matches+mismatches), and 1.0 when nothing was compared.
func MatchRate(matches, mismatches int) float64 {
	total := matches + mismatches
	if total == 0 {
		return 1.0
	}
	return float64(matches) / float64(total)
}

// ValidateDecision checks an AuditDecision.
func ValidateDecision(d AuditDecision) error {
	if !d.Verdict.Valid() {
		return fmt.Errorf("invalid verdict: %q", d.Verdict)
	}
	return nil
}

// ValidateThresholds checks that rates are ordered and counts are non-negative.
func ValidateThresholds(t Thresholds) error {
	if t.MinMatchRate < 0 || t.MinMatchRate > 1 {
		return fmt.Errorf("min_match_rate must be between 0 and 1, got %v", t.MinMatchRate)
	}
	if t.WarnMatchRate < t.MinMatchRate || t.WarnMatchRate > 1 {
		return fmt.Errorf("warn_match_rate must be between min_match_rate and 1, got %v", t.WarnMatchRate)
	}
	if t.MaxRowsOnly < 0 || t.MaxDuplicates < 0 {
		return fmt.Errorf("max_rows_only and max_duplicates must be non-negative")
	}
	return nil
}
