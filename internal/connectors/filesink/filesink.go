// Package filesink writes audit reports as JSON files under a local directory
// and reads them back.
package filesink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Sink stores reports at <dir>/<report key>.
type Sink struct {
	dir string
}

func New(dir string) *Sink {
	return &Sink{dir: dir}
}

// Path returns where a report is written.
func (s *Sink) Path(report domain.AuditReport) string {
	return filepath.Join(s.dir, filepath.FromSlash(report.Key()))
}

// Write stores the report through a temp file and rename, so readers never see
// a partial report.
func (s *Sink) Write(_ context.Context, report domain.AuditReport) error {
	p := s.Path(report)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("filesink: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("filesink: encode: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("filesink: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("filesink: %w", err)
	}
	return nil
}

// ReadReport loads a report JSON file.
func ReadReport(path string) (domain.AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("filesink: %w", err)
	}
	var r domain.AuditReport
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.AuditReport{}, fmt.Errorf("filesink: decode %s: %w", path, err)
	}
	return r, nil
}
