// Package reconcile compares a source and a target table and assembles the
// gdw_tables_auditing report. It performs no I/O: callers hand it materialized
// columns and rows and persist the returned report themselves.
//
// Column names are matched case-insensitively and reported in their declared
// case. Duplicate rows are counted as excess occurrences (total minus distinct
// identities) per side.
package reconcile
