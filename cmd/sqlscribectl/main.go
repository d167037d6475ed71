package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sqlscribe/sqlscribe/internal/cli/sqlscribectl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("SQLSCRIBE_CLI_TIMEOUT")), 120*time.Second)
	options := sqlscribectl.Options{
		BaseURL:  envOr("SQLSCRIBE_API_URL", "http://localhost:8080"),
		APIKey:   strings.TrimSpace(os.Getenv("SQLSCRIBE_API_KEY")),
		Database: strings.TrimSpace(os.Getenv("SQLSCRIBE_DATABASE")),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	code := sqlscribectl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid SQLSCRIBE_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
