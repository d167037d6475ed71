// Package results archives executed query results as parquet objects. Each
// answer becomes one parquet file keyed by database and date, so downstream
// tooling can query past answers without replaying the pipeline.
package results

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlscribe/sqlscribe/internal/executor"
	"github.com/sqlscribe/sqlscribe/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// EncodeResultToParquet renders a query result as a parquet file. Result
// schemas are only known at runtime, so every column is written as an
// optional string; NULLs stay NULL, everything else goes through fmt.
func EncodeResultToParquet(result executor.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result columns are required")
	}

	group := parquet.Group{}
	for _, column := range result.Columns {
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result", group)

	rows := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) != len(result.Columns) {
			return nil, fmt.Errorf("row has %d values, want %d", len(row), len(result.Columns))
		}
		encoded := make(map[string]any, len(row))
		for i, value := range row {
			if value == nil {
				continue
			}
			encoded[result.Columns[i]] = fmt.Sprint(value)
		}
		rows = append(rows, encoded)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Stager writes encoded results to the object store. A nil Stager (or one
// without a store) is a no-op so staging stays optional.
type Stager struct {
	Store storage.ObjectStore
}

type StagedResult struct {
	Key  string
	Size int64
	ETag string
}

func (s *Stager) Enabled() bool {
	return s != nil && s.Store != nil
}

func (s *Stager) Stage(ctx context.Context, database, answerID string, askedAt time.Time, result executor.Result) (StagedResult, error) {
	if !s.Enabled() {
		return StagedResult{}, fmt.Errorf("result staging is not configured")
	}

	data, err := EncodeResultToParquet(result)
	if err != nil {
		return StagedResult{}, err
	}
	key, err := storage.BuildResultFilePath(database, answerID, askedAt)
	if err != nil {
		return StagedResult{}, err
	}

	info, err := s.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: parquetContentType})
	if err != nil {
		return StagedResult{}, fmt.Errorf("stage result %q: %w", key, err)
	}
	return StagedResult{Key: key, Size: info.Size, ETag: info.ETag}, nil
}
