// Package athena materializes Glue catalog tables through the AWS Athena API.
package athena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ath "github.com/aws/aws-sdk-go-v2/service/athena"
	athtypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/gdw-platform/gdw-audit/internal/connectors/sqlquery"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	pollTimeout         = 10 * time.Minute
	pageSize            = 1000
)

// API is the subset of the Athena client used by this package.
type API interface {
	StartQueryExecution(ctx context.Context, params *ath.StartQueryExecutionInput, optFns ...func(*ath.Options)) (*ath.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *ath.GetQueryExecutionInput, optFns ...func(*ath.Options)) (*ath.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *ath.GetQueryResultsInput, optFns ...func(*ath.Options)) (*ath.GetQueryResultsOutput, error)
}

// Source reads tables via Athena. The table's dataset is the Glue database.
type Source struct {
	api          API
	workgroup    string
	outputLoc    string
	pollInterval time.Duration
}

// New creates a Source from an AWS config.
func New(cfg aws.Config, workgroup, outputLoc string) *Source {
	return NewFromAPI(ath.NewFromConfig(cfg), workgroup, outputLoc)
}

// NewFromAPI creates a Source from an explicit API implementation (for testing).
func NewFromAPI(api API, workgroup, outputLoc string) *Source {
	return &Source{
		api:          api,
		workgroup:    workgroup,
		outputLoc:    outputLoc,
		pollInterval: defaultPollInterval,
	}
}

// Fetch runs SELECT * over the requested table and pages through the results.
func (s *Source) Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
	sql, err := sqlquery.Select(sqlquery.ANSI, req)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("athena: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	queryID, err := s.execute(ctx, sql, req.Table.DatasetID)
	if err != nil {
		return domain.TableData{}, err
	}

	cols, rows, err := s.readResults(ctx, queryID)
	if err != nil {
		return domain.TableData{}, err
	}
	return domain.TableData{Table: req.Table, Columns: cols, Rows: rows}, nil
}

// execute starts the query and polls until it reaches a terminal state.
func (s *Source) execute(ctx context.Context, sql, database string) (*string, error) {
	in := &ath.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		WorkGroup:   aws.String(s.workgroup),
		ResultConfiguration: &athtypes.ResultConfiguration{
			OutputLocation: aws.String(s.outputLoc),
		},
	}
	if database != "" {
		in.QueryExecutionContext = &athtypes.QueryExecutionContext{Database: aws.String(database)}
	}
	startOut, err := s.api.StartQueryExecution(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("athena: start query: %w", err)
	}
	queryID := startOut.QueryExecutionId

	// Poll until complete, respecting context cancellation.
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		execOut, err := s.api.GetQueryExecution(ctx, &ath.GetQueryExecutionInput{
			QueryExecutionId: queryID,
		})
		if err != nil {
			return nil, fmt.Errorf("athena: get query execution: %w", err)
		}

		status := execOut.QueryExecution.Status
		switch status.State {
		case athtypes.QueryExecutionStateSucceeded:
			return queryID, nil
		case athtypes.QueryExecutionStateFailed:
			reason := ""
			if status.StateChangeReason != nil {
				reason = *status.StateChangeReason
			}
			return nil, fmt.Errorf("athena: query failed: %s", reason)
		case athtypes.QueryExecutionStateCancelled:
			return nil, fmt.Errorf("athena: query was cancelled")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("athena: query %s: %w", aws.ToString(queryID), ctx.Err())
		case <-ticker.C:
		}
	}
}

// readResults pages through GetQueryResults. Column names and types come from
// the result metadata; the first row of the first page repeats the header.
func (s *Source) readResults(ctx context.Context, queryID *string) ([]domain.ColumnDescriptor, [][]any, error) {
	var (
		cols  []domain.ColumnDescriptor
		types []string
		rows  [][]any
		token *string
		first = true
	)
	for {
		out, err := s.api.GetQueryResults(ctx, &ath.GetQueryResultsInput{
			QueryExecutionId: queryID,
			MaxResults:       aws.Int32(pageSize),
			NextToken:        token,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("athena: get query results: %w", err)
		}
		if out.ResultSet == nil {
			break
		}

		if first {
			if md := out.ResultSet.ResultSetMetadata; md != nil {
				for _, ci := range md.ColumnInfo {
					cols = append(cols, domain.ColumnDescriptor{
						Name:     aws.ToString(ci.Name),
						DataType: strings.ToUpper(aws.ToString(ci.Type)),
					})
					types = append(types, strings.ToLower(aws.ToString(ci.Type)))
				}
			}
		}

		data := out.ResultSet.Rows
		if first && len(data) > 0 && isHeader(data[0], cols) {
			data = data[1:]
		}
		first = false

		for _, r := range data {
			row := make([]any, len(cols))
			for i := range cols {
				if i < len(r.Data) {
					row[i] = parseValue(types[i], r.Data[i].VarCharValue)
				}
			}
			rows = append(rows, row)
		}

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		token = out.NextToken
	}
	return cols, rows, nil
}

func isHeader(r athtypes.Row, cols []domain.ColumnDescriptor) bool {
	if len(r.Data) != len(cols) {
		return false
	}
	for i, d := range r.Data {
		if aws.ToString(d.VarCharValue) != cols[i].Name {
			return false
		}
	}
	return true
}
