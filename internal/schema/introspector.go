// Package schema introspects the connected data source and renders its
// tables, columns, and key constraints as the compact bracketed strings the
// prompt templates embed verbatim.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MetadataSchema is never introspected when aggregating across schemas.
const MetadataSchema = "information_schema"

// BindStyle selects the placeholder syntax of the connected driver.
type BindStyle int

const (
	BindDollar   BindStyle = iota // postgres
	BindQuestion                  // trino, duckdb
)

const (
	schemasQuery = `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`
	tablesQuery  = `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`
	columnsQuery = `SELECT column_name FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position`

	foreignKeysQuery = `SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND kcu.ordinal_position = 1
ORDER BY kcu.table_name`

	primaryKeysQuery = `SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND kcu.ordinal_position = 1
ORDER BY kcu.table_name`
)

type Introspector struct {
	db   *sql.DB
	bind BindStyle
}

func NewIntrospector(db *sql.DB, bind BindStyle) *Introspector {
	return &Introspector{db: db, bind: bind}
}

// Fields renders every table as a "Table <name>, columns = [...]" line. When
// dbName names a known schema only that schema is inspected; otherwise all
// schemas except the metadata schema are aggregated. Returns the literal "[]"
// when nothing was found.
func (in *Introspector) Fields(ctx context.Context, dbName string) (string, error) {
	targets, err := in.targetSchemas(ctx, dbName)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, schemaName := range targets {
		tables, err := in.tablesInSchema(ctx, schemaName)
		if err != nil {
			return "", err
		}
		for _, tableName := range tables {
			columns, err := in.Columns(ctx, schemaName, tableName)
			if err != nil {
				return "", err
			}
			out.WriteString("Table " + tableName + ", columns = [" + strings.Join(columns, ",") + "]\n")
		}
	}
	return orEmptySentinel(out.String()), nil
}

// ForeignKeys renders "[t.col = ref.col,...]"; "[]" when there are none.
func (in *Introspector) ForeignKeys(ctx context.Context, dbName string) (string, error) {
	targets, err := in.targetSchemas(ctx, dbName)
	if err != nil {
		return "", err
	}

	var entries []string
	for _, schemaName := range targets {
		rows, err := in.db.QueryContext(ctx, in.rebind(foreignKeysQuery), schemaName)
		if err != nil {
			return "", fmt.Errorf("query foreign keys for schema %q: %w", schemaName, err)
		}
		for rows.Next() {
			var tableName, columnName, referredTable, referredColumn string
			if err := rows.Scan(&tableName, &columnName, &referredTable, &referredColumn); err != nil {
				_ = rows.Close()
				return "", fmt.Errorf("scan foreign key: %w", err)
			}
			entries = append(entries, fmt.Sprintf("%s.%s = %s.%s", tableName, columnName, referredTable, referredColumn))
		}
		if err := closeRows(rows); err != nil {
			return "", err
		}
	}
	return orEmptySentinel("[" + strings.Join(entries, ",") + "]"), nil
}

// PrimaryKeys renders "t.col,...]\n". The missing opening bracket is the
// format the prompt templates were written against; do not "fix" it.
func (in *Introspector) PrimaryKeys(ctx context.Context, dbName string) (string, error) {
	targets, err := in.targetSchemas(ctx, dbName)
	if err != nil {
		return "", err
	}

	var entries []string
	for _, schemaName := range targets {
		rows, err := in.db.QueryContext(ctx, in.rebind(primaryKeysQuery), schemaName)
		if err != nil {
			return "", fmt.Errorf("query primary keys for schema %q: %w", schemaName, err)
		}
		for rows.Next() {
			var tableName, columnName string
			if err := rows.Scan(&tableName, &columnName); err != nil {
				_ = rows.Close()
				return "", fmt.Errorf("scan primary key: %w", err)
			}
			entries = append(entries, tableName+"."+columnName)
		}
		if err := closeRows(rows); err != nil {
			return "", err
		}
	}
	return orEmptySentinel(strings.Join(entries, ",") + "]\n"), nil
}

// Tables lists the tables of the schema named dbName; an unknown schema
// yields an empty list, not an error.
func (in *Introspector) Tables(ctx context.Context, dbName string) ([]string, error) {
	schemas, err := in.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	for _, schemaName := range schemas {
		if schemaName == dbName {
			return in.tablesInSchema(ctx, schemaName)
		}
	}
	return nil, nil
}

func (in *Introspector) Columns(ctx context.Context, dbName, tableName string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, in.rebind(columnsQuery), dbName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns for %q.%q: %w", dbName, tableName, err)
	}
	return scanStrings(rows, "column")
}

func (in *Introspector) Schemas(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, schemasQuery)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	return scanStrings(rows, "schema")
}

func (in *Introspector) targetSchemas(ctx context.Context, dbName string) ([]string, error) {
	schemas, err := in.Schemas(ctx)
	if err != nil {
		return nil, err
	}
	if dbName != "" {
		for _, schemaName := range schemas {
			if schemaName == dbName {
				return []string{dbName}, nil
			}
		}
	}
	targets := make([]string, 0, len(schemas))
	for _, schemaName := range schemas {
		if schemaName != MetadataSchema {
			targets = append(targets, schemaName)
		}
	}
	return targets, nil
}

func (in *Introspector) tablesInSchema(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, in.rebind(tablesQuery), schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables for schema %q: %w", schemaName, err)
	}
	return scanStrings(rows, "table")
}

func (in *Introspector) rebind(query string) string {
	if in.bind != BindQuestion {
		return query
	}
	replaced := query
	for i := 1; i <= 2; i++ {
		replaced = strings.ReplaceAll(replaced, fmt.Sprintf("$%d", i), "?")
	}
	return replaced
}

func scanStrings(rows *sql.Rows, what string) ([]string, error) {
	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan %s name: %w", what, err)
		}
		values = append(values, value)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return values, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate rows: %w", err)
	}
	return rows.Close()
}

// orEmptySentinel applies the fixed "no entries" sentinel the prompt
// templates rely on: any rendering at most two bytes long collapses to "[]".
func orEmptySentinel(out string) string {
	if len(out) > 2 {
		return out
	}
	return "[]"
}
