package source

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

const attachAlias = "activity_src"

var duckSchema = schemaQueries{
	tables: `SELECT table_name FROM information_schema.tables
		WHERE table_catalog = '` + attachAlias + `' ORDER BY table_name`,
	columns: `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_catalog = '` + attachAlias + `' AND table_name = ? ORDER BY ordinal_position`,
}

// OpenDuckDB attaches path read-only into an in-memory DuckDB. Every SQLite
// column is loaded as VARCHAR so values keep the text form the agent wrote.
func OpenDuckDB(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// attachments and settings are per connection
	db.SetMaxOpenConns(1)

	if err := loadSQLiteExtension(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load sqlite extension: %w", err)
	}

	stmts := []string{
		"SET sqlite_all_varchar = true",
		fmt.Sprintf("ATTACH '%s' AS %s (TYPE SQLITE, READ_ONLY)", escapeLiteral(filepath.ToSlash(path)), attachAlias),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			_ = db.Close()
			return nil, mapError(fmt.Errorf("attach %s: %w", filepath.Base(path), err))
		}
	}

	return newDB(db, duckDialect{catalog: attachAlias}, duckSchema), nil
}

func loadSQLiteExtension(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "LOAD sqlite"); err == nil {
		return nil
	}
	if _, err := db.ExecContext(ctx, "INSTALL sqlite"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "LOAD sqlite")
	return err
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
