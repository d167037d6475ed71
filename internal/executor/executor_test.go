package executor

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestExecuteReturnsNormalizedRows(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := New(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, total FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "total"}).
			AddRow([]byte("alice"), int64(3)).
			AddRow("bob", int64(5)))

	result, err := exec.Execute(context.Background(), "SELECT name, total FROM orders")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "name" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "alice" {
		t.Fatalf("Rows[0][0] = %#v, want []byte normalized to string", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestExecuteFailureCarriesDriverMessageVerbatim(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := New(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WillReturnError(errors.New(`syntax error at or near "SELECT"`))

	_, err := exec.Execute(context.Background(), "SELECT")
	if err == nil {
		t.Fatal("Execute() error = nil, want failure")
	}
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("error type = %T", err)
	}
	if failure.SQL != "SELECT" {
		t.Fatalf("Failure.SQL = %q", failure.SQL)
	}
	if failure.Message != `syntax error at or near "SELECT"` {
		t.Fatalf("Failure.Message = %q", failure.Message)
	}
}

func TestExecuteEmptyResult(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := New(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM empty_table")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := exec.Execute(context.Background(), "SELECT id FROM empty_table")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 0 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
}

func TestOpenRejectsUnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), Config{Engine: "oracle"})
	if err == nil {
		t.Fatal("Open() error = nil for unsupported engine")
	}
}

func TestOpenTrinoRequiresCatalog(t *testing.T) {
	_, err := Open(context.Background(), Config{Engine: "trino", Database: "sales", Host: "localhost", Port: 8080})
	if err == nil {
		t.Fatal("Open() error = nil without catalog")
	}
}
