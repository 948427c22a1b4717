package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaConflict marks malformed column or row input on one side of a comparison.
	ErrSchemaConflict = errors.New("schema conflict")
	// ErrInvariantViolation marks an internal consistency failure detected before a
	// report is emitted. It signals an engine bug, not bad input.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrEmptyInput marks an empty row set. It is a warning: the report is still built.
	ErrEmptyInput = errors.New("empty input")
	// ErrRowLimit marks a table larger than the configured fetch cap.
	ErrRowLimit = errors.New("row limit exceeded")
)

// Side names which table of a comparison an error refers to.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// SchemaConflictError describes malformed input on one side.
type SchemaConflictError struct {
	Side   Side
	Column string
	Reason string
}

func (e *SchemaConflictError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema conflict in %s: %s", e.Side, e.Reason)
	}
	return fmt.Sprintf("schema conflict in %s column %q: %s", e.Side, e.Column, e.Reason)
}

func (e *SchemaConflictError) Unwrap() error { return ErrSchemaConflict }

// InvariantViolationError reports a cross-field check that failed.
type InvariantViolationError struct {
	Field string
	Want  int
	Got   int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s: want %d, got %d", e.Field, e.Want, e.Got)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// EmptyInputWarning reports that a side had no rows.
type EmptyInputWarning struct {
	Side Side
}

func (e *EmptyInputWarning) Error() string {
	return fmt.Sprintf("empty input: %s table has no rows", e.Side)
}

func (e *EmptyInputWarning) Unwrap() error { return ErrEmptyInput }

// RowLimitError reports a table that would be truncated by the fetch cap.
type RowLimitError struct {
	Table string
	Limit int
}

func (e *RowLimitError) Error() string {
	return fmt.Sprintf("row limit exceeded: %s has more than %d rows", e.Table, e.Limit)
}

func (e *RowLimitError) Unwrap() error { return ErrRowLimit }
