// Package source exposes the ActivityTracker database as a read-only table
// provider. Two engines are supported: modernc SQLite opened in read-only
// mode, and an in-memory DuckDB that attaches the SQLite file through its
// sqlite extension. Both share the same scan and count implementation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
)

const (
	EngineSQLite = "sqlite"
	EngineDuckDB = "duckdb"
)

// Column describes one table column.
type Column struct {
	Name string
	Type string
}

// SchemaProvider lists tables and their columns in provider order.
type SchemaProvider interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]Column, error)
}

// Selection narrows a table scan. The zero value selects every column of
// every row in storage order.
type Selection struct {
	Columns []string
	// Where is an SQL predicate without the WHERE keyword, built against
	// the provider's Dialect.
	Where   string
	Args    []any
	OrderBy string
}

// Provider is a read-only table source.
type Provider interface {
	SchemaProvider
	Dialect() Dialect
	Count(ctx context.Context, table string, sel Selection) (int64, error)
	// Scan calls fn for each row. A non-nil error from fn stops the scan and
	// is returned as is.
	Scan(ctx context.Context, table string, sel Selection, fn func(Row) error) error
	// View runs fn against a provider bound to one read transaction, so all
	// calls inside fn observe the same database state.
	View(ctx context.Context, fn func(ctx context.Context, p Provider) error) error
	Close() error
}

// Options configures Open.
type Options struct {
	Engine      string
	Path        string
	BusyTimeout time.Duration
}

// Opener opens a provider. It lets callers substitute fakes in tests.
type Opener func(ctx context.Context, opts Options) (Provider, error)

// Open checks that the source file exists and opens it with the configured
// engine.
func Open(ctx context.Context, opts Options) (Provider, error) {
	if _, err := Discover(opts.Path); err != nil {
		return nil, err
	}

	switch opts.Engine {
	case "", EngineSQLite:
		return OpenSQLite(ctx, opts.Path, opts.BusyTimeout)
	case EngineDuckDB:
		return OpenDuckDB(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown source engine %q", opts.Engine)
	}
}

// Discover returns path when it names an existing file, or an error wrapping
// common.ErrSourceNotFound that includes the expected location.
func Discover(path string) (string, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && fi.IsDir()) {
		return "", fmt.Errorf("%w at %s: ensure ActivityTracker is installed and has generated data", common.ErrSourceNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return path, nil
}
