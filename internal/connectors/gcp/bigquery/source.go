// Package bigquery reads warehouse tables from BigQuery and writes audit
// reports to the gdw_tables_auditing table.
package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/gdw-platform/gdw-audit/internal/connectors/sqlquery"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// RowIterator yields query result rows.
type RowIterator interface {
	Next(dst any) error
}

// Reader is the subset of BigQuery a Source needs.
type Reader interface {
	Metadata(ctx context.Context, t domain.TableDescriptor) (*bigquery.TableMetadata, error)
	Query(ctx context.Context, sql string) (RowIterator, error)
}

// NewClient creates a BigQuery client. An empty credentials path falls back to
// application default credentials.
func NewClient(ctx context.Context, project, credentialsFile string) (*bigquery.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: new client: %w", err)
	}
	return client, nil
}

type clientReader struct {
	client   *bigquery.Client
	location string
}

// NewReader adapts a client. Queries run in location.
func NewReader(client *bigquery.Client, location string) Reader {
	return &clientReader{client: client, location: location}
}

func (r *clientReader) Metadata(ctx context.Context, t domain.TableDescriptor) (*bigquery.TableMetadata, error) {
	return r.client.DatasetInProject(t.ProjectID, t.DatasetID).Table(t.TableName).Metadata(ctx)
}

func (r *clientReader) Query(ctx context.Context, sql string) (RowIterator, error) {
	q := r.client.Query(sql)
	q.Location = r.location
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Source materializes BigQuery tables.
type Source struct {
	reader Reader
}

// NewSource creates a Source over reader.
func NewSource(reader Reader) *Source {
	return &Source{reader: reader}
}

// Fetch reads the table's schema from metadata, then its rows with a query.
// The descriptor's table type is taken from the metadata.
func (s *Source) Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
	sql, err := sqlquery.Select(sqlquery.BigQuery, req)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("bigquery: %w", err)
	}

	md, err := s.reader.Metadata(ctx, req.Table)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("bigquery: metadata %s: %w", req.Table.FullID(), err)
	}
	table := req.Table
	if tt := domain.TableType(md.Type); tt.Valid() {
		table.TableType = tt
	}

	cols := make([]domain.ColumnDescriptor, len(md.Schema))
	for i, f := range md.Schema {
		cols[i] = domain.ColumnDescriptor{Name: f.Name, DataType: fieldType(f)}
	}

	it, err := s.reader.Query(ctx, sql)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("bigquery: query %s: %w", req.Table.FullID(), err)
	}

	var rows [][]any
	for {
		var vals []bigquery.Value
		err := it.Next(&vals)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.TableData{}, fmt.Errorf("bigquery: read %s: %w", req.Table.FullID(), err)
		}
		if len(vals) != len(cols) {
			return domain.TableData{}, fmt.Errorf("bigquery: read %s: row has %d values, schema has %d columns",
				req.Table.FullID(), len(vals), len(cols))
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i], err = convert(v)
			if err != nil {
				return domain.TableData{}, fmt.Errorf("bigquery: column %s: %w", cols[i].Name, err)
			}
		}
		rows = append(rows, row)
	}

	return domain.TableData{Table: table, Columns: cols, Rows: rows}, nil
}

// fieldType renders the GoogleSQL type of a schema field.
func fieldType(f *bigquery.FieldSchema) string {
	t := string(f.Type)
	if f.Type == bigquery.RecordFieldType {
		t = "STRUCT"
	}
	if f.Repeated {
		return "ARRAY<" + t + ">"
	}
	return t
}

// convert maps a BigQuery value onto something the comparator canonicalizes.
// Repeated and record values are compared as their JSON encoding.
func convert(v bigquery.Value) (any, error) {
	switch v.(type) {
	case []bigquery.Value, map[string]bigquery.Value:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
