package executor

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/trinodb/trino-go-client/trino"

	"github.com/sqlscribe/sqlscribe/internal/schema"
)

// Config describes how to reach the data source. The classic mode builds an
// {engine}://user:password@host:port/database connection; engine "trino"
// selects the managed-query-service mode, which addresses a catalog and
// schema on a coordinator instead of a database by credentials.
type Config struct {
	Engine   string
	User     string
	Password string
	Host     string
	Port     int
	Database string

	// Trino mode only.
	Catalog string
}

// Connection bundles the opened handle with the facts downstream stages
// need: the dialect name for the clean prompt and the driver's bind style
// for introspection.
type Connection struct {
	DB      *sql.DB
	Dialect string
	Bind    schema.BindStyle
}

func Open(ctx context.Context, cfg Config) (Connection, error) {
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))

	var (
		driver  string
		dsn     string
		dialect string
		bind    schema.BindStyle
	)
	switch engine {
	case "postgres", "postgresql":
		if cfg.Database == "" {
			return Connection{}, fmt.Errorf("database name is required")
		}
		driver = "pgx"
		dsn = fmt.Sprintf("%s://%s:%s@%s:%d/%s", engine, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		dialect = engine
		bind = schema.BindDollar
	case "duckdb":
		driver = "duckdb"
		dsn = cfg.Database
		dialect = "duckdb"
		bind = schema.BindQuestion
	case "trino":
		if cfg.Catalog == "" {
			return Connection{}, fmt.Errorf("trino catalog is required")
		}
		if cfg.Database == "" {
			return Connection{}, fmt.Errorf("trino schema (database name) is required")
		}
		user := cfg.User
		if user == "" {
			user = "sqlscribe"
		}
		driver = "trino"
		dsn = fmt.Sprintf("http://%s@%s:%d?catalog=%s&schema=%s", user, cfg.Host, cfg.Port, url.QueryEscape(cfg.Catalog), url.QueryEscape(cfg.Database))
		dialect = "presto"
		bind = schema.BindQuestion
	default:
		return Connection{}, fmt.Errorf("unsupported database engine %q", cfg.Engine)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("open %s connection: %w", engine, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return Connection{}, fmt.Errorf("ping %s: %w", engine, err)
	}

	return Connection{DB: db, Dialect: dialect, Bind: bind}, nil
}
