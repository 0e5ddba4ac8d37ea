package source

import (
	"context"
	"os"
	"testing"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DuckDB needs to download its sqlite extension on first use.
func requireDuckDB(t *testing.T) {
	t.Helper()
	if os.Getenv("ACTIVITY_DUCKDB_TESTS") != "1" {
		t.Skip("set ACTIVITY_DUCKDB_TESTS=1 to run DuckDB provider tests")
	}
}

func TestOpenDuckDB_MatchesSQLiteProvider(t *testing.T) {
	requireDuckDB(t)
	ctx := context.Background()

	p, err := Open(ctx, Options{Engine: EngineDuckDB, Path: newFixtureDB(t)})
	require.NoError(t, err)
	defer p.Close()

	tbl, err := FindActivityTable(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "activity_logs", tbl.Name)

	sel := Selection{
		Columns: []string{"start_time", "duration_seconds"},
		Where:   p.Dialect().Text(common.StartTimeColumn) + " >= ?",
		Args:    []any{"2024-01-15"},
		OrderBy: "start_time",
	}
	n, err := p.Count(ctx, tbl.Name, sel)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var durations []string
	require.NoError(t, p.Scan(ctx, tbl.Name, sel, func(r Row) error {
		durations = append(durations, r.String("duration_seconds"))
		return nil
	}))
	assert.Equal(t, []string{"3600", "1800", "600"}, durations)
}

func TestDuckDialect(t *testing.T) {
	d := duckDialect{catalog: attachAlias}
	assert.Equal(t, `"activity_src"."activity_logs"`, d.Table("activity_logs"))
	assert.Equal(t, `CAST("start_time" AS VARCHAR)`, d.Text("start_time"))
	assert.Equal(t, `"we""ird"`, quote(`we"ird`))
}
