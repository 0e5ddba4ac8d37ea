package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/sampledb"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	listedFor *string
	listed    bool
	multi     []string
	patch     *settings.Patch
	closed    bool
	st        settings.Settings
}

func (f *fakeBackend) DiscoverSource(context.Context) (dashboard.SourceInfo, error) {
	return dashboard.SourceInfo{Path: "/t/local_activity.db", Engine: "sqlite", Tables: []string{"settings"}}, nil
}

func (f *fakeBackend) ExportAll(_ context.Context, onProgress func(export.Progress)) (export.Result, error) {
	onProgress(export.Progress{Status: export.StatusStarting})
	onProgress(export.Progress{Status: export.StatusExporting, Percent: 50, TableName: "activity_logs", Current: 2, Total: 4})
	onProgress(export.Progress{Status: export.StatusCompleted, Percent: 100})
	return export.Result{Path: "/t/activity.json", Tables: 2, Rows: 4, Duration: timex.Duration{Duration: 1234 * time.Millisecond}}, nil
}

func (f *fakeBackend) Cancel(context.Context) (bool, error) { return false, nil }

func (f *fakeBackend) ListAvailableDates(_ context.Context, id *string) ([]string, error) {
	f.listed = true
	f.listedFor = id
	return []string{"2024-01-16", "2024-01-15"}, nil
}

func (f *fakeBackend) AnalyzeSingleDate(_ context.Context, date string) (analysis.DailyAnalysis, error) {
	return analysis.DailyAnalysis{
		Date: date, TotalHours: 1.5, ActiveHours: 1, InactiveHours: 0.5, AFKHours: 0.5,
		ActivityRate: 66.7, StartTime: "9:00 AM", EndTime: "10:30 AM",
		ProductivityLevel: analysis.LevelNeedsImprovement, ProductivityEmoji: "🔴",
	}, nil
}

func (f *fakeBackend) AnalyzeMultiDate(_ context.Context, dates []string) (analysis.MultiDayAnalysis, error) {
	f.multi = dates
	return analysis.MultiDayAnalysis{TotalDays: 1, DailyBreakdown: []analysis.DayBreakdown{{Date: dates[0], ActiveHours: 2, TotalHours: 2, ActivityRate: 100}}}, nil
}

func (f *fakeBackend) GetConfig(context.Context) (settings.Settings, error) { return f.st, nil }

func (f *fakeBackend) SetConfig(_ context.Context, p settings.Patch) (settings.Settings, error) {
	f.patch = &p
	f.st = p.Apply(f.st)
	return f.st, nil
}

func (f *fakeBackend) InitializeConfig(context.Context) (settings.Settings, error) { return f.st, nil }

func (f *fakeBackend) Refresh(context.Context) (dashboard.RefreshResult, error) {
	return dashboard.RefreshResult{Dates: []string{"2024-01-15"}}, nil
}

func (f *fakeBackend) SnapshotTable(context.Context, string) ([]map[string]any, error) {
	return []map[string]any{{"key": "agent", "value": "1.2.3"}, {"key": "mode", "value": "auto"}}, nil
}

func (f *fakeBackend) SnapshotTables(context.Context) ([]string, error) {
	return []string{"settings", "activity_logs"}, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

// run executes args against fb and returns the output.
func run(t *testing.T, fb *fakeBackend, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"--data", t.TempDir()}, args...)
	err := Execute(context.Background(), args,
		WithIO(strings.NewReader(in), &out),
		WithBackend(func(context.Context, *App) (Backend, error) { return fb, nil }))
	return out.String(), err
}

func TestExpandRange(t *testing.T) {
	dates, err := expandRange("2024-01-30", "2024-02-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}, dates)

	dates, err = expandRange("2024-02-29", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-29"}, dates)

	_, err = expandRange("2024-02-02", "2024-01-30")
	assert.ErrorIs(t, err, common.ErrInvalidDate)

	_, err = expandRange("2023-02-29", "2023-03-01")
	assert.ErrorIs(t, err, common.ErrInvalidDate)

	_, err = expandRange("2020-01-01", "2024-01-01")
	assert.ErrorContains(t, err, "range longer than")
}

func TestDayCommand(t *testing.T) {
	fb := &fakeBackend{}
	out, err := run(t, fb, "", "day", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "Date:          2024-01-15")
	assert.Contains(t, out, "Activity rate: 66.7%")
	assert.Contains(t, out, "🔴 needs-improvement")
	assert.True(t, fb.closed, "backend is closed after the command")
}

func TestDayCommand_JSON(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "", "--json", "day", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, `"activityRate": 66.7`)
	assert.Contains(t, out, `"productivity": "needs-improvement"`)
}

func TestRangeAndDaysCommands(t *testing.T) {
	fb := &fakeBackend{}
	out, err := run(t, fb, "", "range", "2024-01-14", "2024-01-16")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-14", "2024-01-15", "2024-01-16"}, fb.multi)
	assert.Contains(t, out, "Days with activity: 1")
	assert.Contains(t, out, "2024-01-14")

	_, err = run(t, fb, "", "days", "2024-01-20", "2024-01-18")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-20", "2024-01-18"}, fb.multi)

	_, err = run(t, fb, "", "range", "2024-01-16")
	require.Error(t, err)
}

func TestDatesCommand_EmployeeFlag(t *testing.T) {
	fb := &fakeBackend{}
	out, err := run(t, fb, "", "dates")
	require.NoError(t, err)
	assert.True(t, fb.listed)
	assert.Nil(t, fb.listedFor)
	assert.Equal(t, "2024-01-16\n2024-01-15\n", out)

	_, err = run(t, fb, "", "dates", "--employee", "")
	require.NoError(t, err)
	require.NotNil(t, fb.listedFor, "an explicit empty identifier matches all")
	assert.Equal(t, "", *fb.listedFor)
}

func TestExportCommand_PrintsProgress(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "[  0%] starting")
	assert.Contains(t, out, "[ 50%] activity_logs")
	assert.Contains(t, out, "2/4 rows")
	assert.Contains(t, out, "Exported 4 rows from 2 tables in 1.234s")
}

func TestConfigSet(t *testing.T) {
	key := cryptox.GenerateKey()

	t.Run("only changed flags", func(t *testing.T) {
		fb := &fakeBackend{st: settings.Settings{EmployeeID: "OLD"}}
		_, err := run(t, fb, "", "config", "set", "--db-path", "/x/local_activity.db")
		require.NoError(t, err)
		require.NotNil(t, fb.patch)
		assert.Nil(t, fb.patch.DecryptionKey)
		assert.Nil(t, fb.patch.EmployeeID)
		assert.Equal(t, "OLD", fb.st.EmployeeID)
		assert.Equal(t, "/x/local_activity.db", fb.st.DBPath)
	})

	t.Run("prompted key", func(t *testing.T) {
		fb := &fakeBackend{}
		out, err := run(t, fb, key+"\n", "config", "set", "--prompt-key")
		require.NoError(t, err)
		assert.Equal(t, key, fb.st.DecryptionKey)
		assert.NotContains(t, out, key)
		assert.Contains(t, out, cryptox.Fingerprint(key))
	})

	t.Run("bad key rejected", func(t *testing.T) {
		fb := &fakeBackend{}
		_, err := run(t, fb, "", "config", "set", "--key", "not-a-key")
		require.Error(t, err)
		assert.Nil(t, fb.patch)
	})

	t.Run("nothing to set", func(t *testing.T) {
		_, err := run(t, &fakeBackend{}, "", "config", "set")
		require.ErrorContains(t, err, "nothing to set")
	})

	t.Run("key and prompt exclusive", func(t *testing.T) {
		_, err := run(t, &fakeBackend{}, "", "config", "set", "--key", key, "--prompt-key")
		require.Error(t, err)
	})
}

func TestConfigShow_HidesKey(t *testing.T) {
	key := cryptox.GenerateKey()
	out, err := run(t, &fakeBackend{st: settings.Settings{DecryptionKey: key, EmployeeID: "HOST-007"}}, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Employee: HOST-007")
	assert.Contains(t, out, "fingerprint "+cryptox.Fingerprint(key))
	assert.NotContains(t, out, key)

	out, err = run(t, &fakeBackend{}, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "plaintext")
}

func TestTableCommand_JSONLines(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "", "table", "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"key":"agent","value":"1.2.3"}`+"\n"+`{"key":"mode","value":"auto"}`+"\n", out)
}

func TestTableCommand_ListsTables(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "", "table")
	require.NoError(t, err)
	assert.Equal(t, "settings\nactivity_logs\n", out)
}

func TestCancelCommand(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "", "cancel")
	require.NoError(t, err)
	assert.Contains(t, out, "No export running")
}

func TestFlagsReachConfig(t *testing.T) {
	var got *config.Config
	dir := t.TempDir()
	var out bytes.Buffer
	err := Execute(context.Background(), []string{"--data", dir, "--mode", "direct", "--engine", "duckdb", "discover"},
		WithIO(strings.NewReader(""), &out),
		WithBackend(func(_ context.Context, a *App) (Backend, error) {
			got = a.cfg
			return &fakeBackend{}, nil
		}))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, dir, got.DataDir)
	assert.Equal(t, config.ModeDirect, got.Mode)
	assert.Equal(t, config.EngineDuckDB, got.Engine)

	err = Execute(context.Background(), []string{"--data", dir, "--engine", "postgres", "discover"},
		WithIO(strings.NewReader(""), &out),
		WithBackend(func(context.Context, *App) (Backend, error) { return &fakeBackend{}, nil }))
	require.Error(t, err)
}

func TestGetSecret(t *testing.T) {
	var out bytes.Buffer
	v, err := GetSecret(strings.NewReader("  piped-key \n"), &out, "Key")
	require.NoError(t, err)
	assert.Equal(t, "piped-key", string(v))
	assert.Contains(t, out.String(), "Key: ")

	origRead, origTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = origRead, origTerm })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("typed"), nil }

	v, err = GetSecret(os.Stdin, &out, "Key")
	require.NoError(t, err)
	assert.Equal(t, "typed", string(v))
}

// TestLocalBackend_SampleDatabase drives the in-process backend against a
// generated tracker database.
func TestLocalBackend_SampleDatabase(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tracker", "local_activity.db")
	sum, err := sampledb.Generate(context.Background(), sampledb.Options{
		Path: src, Employee: "HOST-007", Days: 2, Sessions: 3, Seed: 1,
	}, logging.Discard())
	require.NoError(t, err)

	data := filepath.Join(dir, "data")
	exec := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		err := Execute(context.Background(), append([]string{"--data", data, "--source", src}, args...),
			WithIO(strings.NewReader(""), &out))
		require.NoError(t, err, out.String())
		return out.String()
	}

	exec("config", "set", "--key", sum.Key, "--employee", "HOST-007")
	assert.Contains(t, exec("discover"), "Activity table: activity_logs")
	assert.Contains(t, exec("export"), "Snapshot: "+filepath.Join(data, "activity.json"))
	assert.Len(t, strings.Split(strings.TrimSpace(exec("table", "activity_logs")), "\n"), 6)

	dates := strings.Fields(exec("dates"))
	require.Len(t, dates, 2)
	assert.Equal(t, sum.To, dates[0])

	assert.Contains(t, exec("day", sum.To), "Date:          "+sum.To)
	assert.Contains(t, exec("range", sum.From, sum.To), "Days with activity: 2")
}
