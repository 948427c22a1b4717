// Package gcs archives audit reports as JSON objects in Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// ObjectWriter opens a writer for one object. The object is committed on Close.
type ObjectWriter interface {
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
}

type clientWriter struct {
	client *storage.Client
}

func (c clientWriter) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

// Sink writes each report to gs://bucket/prefix/<report key>.
type Sink struct {
	w      ObjectWriter
	bucket string
	prefix string
}

// New creates a Sink with its own storage client. An empty credentials path
// uses application default credentials.
func New(ctx context.Context, bucket, prefix, credentialsFile string) (*Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return NewFromWriter(clientWriter{client: client}, bucket, prefix), nil
}

// NewFromWriter creates a Sink over an explicit writer (for testing).
func NewFromWriter(w ObjectWriter, bucket, prefix string) *Sink {
	return &Sink{w: w, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Object returns the object name a report is written to.
func (s *Sink) Object(report domain.AuditReport) string {
	return path.Join(s.prefix, report.Key())
}

// Write uploads the report as indented JSON.
func (s *Sink) Write(ctx context.Context, report domain.AuditReport) error {
	obj := s.Object(report)
	w := s.w.NewWriter(ctx, s.bucket, obj)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: encode gs://%s/%s: %w", s.bucket, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: upload gs://%s/%s: %w", s.bucket, obj, err)
	}
	return nil
}
