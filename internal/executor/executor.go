// Package executor runs SQL text against the connected data source. It
// executes statements exactly as given; the pipeline owns all trust decisions
// about the text it hands over.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Failure reports an execution error together with the statement that caused
// it. Message carries the driver text verbatim so the repair prompt can quote
// it unmodified.
type Failure struct {
	SQL     string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("execute query: %s", f.Message)
}

type Runner interface {
	Execute(ctx context.Context, sqlText string) (Result, error)
}

type Executor struct {
	db *sql.DB
}

func New(db *sql.DB) *Executor {
	return &Executor{db: db}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (Result, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, &Failure{SQL: sqlText, Message: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, &Failure{SQL: sqlText, Message: err.Error()}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, &Failure{SQL: sqlText, Message: err.Error()}
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, &Failure{SQL: sqlText, Message: err.Error()}
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
