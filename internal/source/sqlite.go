package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteSchema = schemaQueries{
	tables:  `SELECT name FROM sqlite_master WHERE type = 'table'`,
	columns: `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`,
}

// OpenSQLite opens path read-only. Lock waits are bounded by busyTimeout;
// past it, queries fail with common.ErrSourceBusy.
func OpenSQLite(ctx context.Context, path string, busyTimeout time.Duration) (*DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// read the schema so a held lock surfaces here rather than mid-export
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		_ = db.Close()
		return nil, mapError(fmt.Errorf("open sqlite %s: %w", filepath.Base(path), err))
	}

	return newDB(db, sqliteDialect{}, sqliteSchema), nil
}

func sqliteDSN(path string, busyTimeout time.Duration) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		escaped, busyTimeout.Milliseconds())
}

// mapError translates engine lock errors into common.ErrSourceBusy. Other
// errors pass through unchanged.
func mapError(err error) error {
	if err == nil || errors.Is(err, common.ErrSourceBusy) {
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %w", common.ErrSourceBusy, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "could not set lock") {
		return fmt.Errorf("%w: %w", common.ErrSourceBusy, err)
	}
	return err
}
