package results

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlscribe/sqlscribe/internal/executor"
	"github.com/sqlscribe/sqlscribe/internal/storage"
)

func TestEncodeResultToParquetRoundTrip(t *testing.T) {
	result := executor.Result{
		Columns: []string{"name", "total"},
		Rows: [][]any{
			{"alice", int64(3)},
			{"bob", nil},
		},
	}

	data, err := EncodeResultToParquet(result)
	if err != nil {
		t.Fatalf("EncodeResultToParquet() error = %v", err)
	}

	schema := parquet.NewSchema("result", parquet.Group{
		"name":  parquet.Optional(parquet.String()),
		"total": parquet.Optional(parquet.String()),
	})
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data), schema)
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]any, 2)
	for i := range rows {
		rows[i] = map[string]any{}
	}
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("rows read = %d, want 2", n)
	}
	if got := rows[0]["name"]; got != "alice" {
		t.Fatalf("rows[0][name] = %#v", got)
	}
	if got := rows[0]["total"]; got != "3" {
		t.Fatalf("rows[0][total] = %#v, want stringified value", got)
	}
	if got := rows[1]["total"]; got != nil {
		t.Fatalf("rows[1][total] = %#v, want NULL preserved", got)
	}
}

func TestEncodeResultToParquetRequiresColumns(t *testing.T) {
	if _, err := EncodeResultToParquet(executor.Result{}); err == nil {
		t.Fatal("EncodeResultToParquet() error = nil for empty columns")
	}
}

type capturingStore struct {
	key         string
	contentType string
	size        int64
	err         error
}

func (c *capturingStore) Put(_ context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if c.err != nil {
		return storage.ObjectInfo{}, c.err
	}
	c.key = key
	c.contentType = opts.ContentType
	c.size = size
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (c *capturingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (c *capturingStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (c *capturingStore) Delete(context.Context, string) error { return nil }

func TestStagerWritesDatePartitionedKey(t *testing.T) {
	store := &capturingStore{}
	stager := &Stager{Store: store}

	askedAt := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	staged, err := stager.Stage(context.Background(), "sales", "q-42", askedAt, executor.Result{
		Columns: []string{"total"},
		Rows:    [][]any{{int64(9)}},
	})
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if staged.Key != "sales/results/date=2026-03-02/answer-q-42.parquet" {
		t.Fatalf("Key = %q", staged.Key)
	}
	if store.contentType != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", store.contentType)
	}
	if store.size == 0 || staged.Size != store.size {
		t.Fatalf("size = %d, staged = %d", store.size, staged.Size)
	}
}

func TestStagerDisabledWithoutStore(t *testing.T) {
	var stager *Stager
	if stager.Enabled() {
		t.Fatal("nil stager reports enabled")
	}
	if (&Stager{}).Enabled() {
		t.Fatal("stager without store reports enabled")
	}
	_, err := (&Stager{}).Stage(context.Background(), "sales", "q", time.Now(), executor.Result{Columns: []string{"a"}})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("Stage() error = %v, want not-configured", err)
	}
}
