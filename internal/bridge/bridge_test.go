package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge/auth"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var secret = []byte("bridge-secret")

// fakeCore records calls and returns canned values.
type fakeCore struct {
	mu        sync.Mutex
	patch     settings.Patch
	listedFor *string
	dates     []string

	daily     analysis.DailyAnalysis
	dailyErr  error
	progress  []export.Progress
	result    export.Result
	exportErr error
}

func (f *fakeCore) DiscoverSource(context.Context) (dashboard.SourceInfo, error) {
	return dashboard.SourceInfo{Path: "/data/local_activity.db", Engine: "sqlite", Tables: []string{"activity_logs"}, ActivityTable: "activity_logs"}, nil
}

func (f *fakeCore) ExportAll(_ context.Context, onProgress func(export.Progress)) (export.Result, error) {
	for _, p := range f.progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return f.result, f.exportErr
}

func (f *fakeCore) Cancel() bool { return true }

func (f *fakeCore) ListAvailableDates(context.Context) ([]string, error) {
	return f.dates, nil
}

func (f *fakeCore) ListAvailableDatesFor(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	f.listedFor = &id
	f.mu.Unlock()
	return []string{"2024-01-15"}, nil
}

func (f *fakeCore) AnalyzeSingleDate(_ context.Context, date string) (analysis.DailyAnalysis, error) {
	if f.dailyErr != nil {
		return analysis.DailyAnalysis{}, common.WrapDate("analyze single date", date, f.dailyErr)
	}
	return f.daily, nil
}

func (f *fakeCore) AnalyzeMultiDate(_ context.Context, dates []string) (analysis.MultiDayAnalysis, error) {
	out := analysis.MultiDayAnalysis{TotalDays: len(dates), DailyBreakdown: []analysis.DayBreakdown{}}
	for _, d := range dates {
		out.DailyBreakdown = append(out.DailyBreakdown, analysis.DayBreakdown{Date: d, ActiveHours: 1})
	}
	return out, nil
}

func (f *fakeCore) GetConfig(context.Context) settings.Settings {
	return settings.Settings{EmployeeID: "HOST-007"}
}

func (f *fakeCore) SetConfig(_ context.Context, p settings.Patch) (settings.Settings, error) {
	f.mu.Lock()
	f.patch = p
	f.mu.Unlock()
	return p.Apply(settings.Settings{EmployeeID: "HOST-007", DecryptionKey: "old"}), nil
}

func (f *fakeCore) InitializeConfig(context.Context) (settings.Settings, error) {
	return settings.Settings{EmployeeID: "HOST-007", DecryptionKey: "k"}, nil
}

func (f *fakeCore) Refresh(context.Context, func(export.Progress)) (dashboard.RefreshResult, error) {
	return dashboard.RefreshResult{Export: &f.result, Dates: []string{"2024-01-15"}}, nil
}

func (f *fakeCore) SnapshotTable(_ context.Context, table string) ([]map[string]any, error) {
	if table != "settings" {
		return []map[string]any{}, nil
	}
	return []map[string]any{{"key": "agent", "value": "1.2.3"}}, nil
}

func (f *fakeCore) SnapshotTables(context.Context) ([]string, error) {
	return nil, fmt.Errorf("list snapshot tables: %w", common.ErrSnapshotMissing)
}

// startBridge serves core on an in-memory listener and returns a client
// authenticated with token.
func startBridge(t *testing.T, core Core, token string) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet", core, secret, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c, err := NewClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.GenerateToken("ui", secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestBridge_RejectsMissingAndBadTokens(t *testing.T) {
	expired, err := auth.GenerateToken("ui", secret, -time.Second)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken("ui", []byte("other"), time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{"missing": "", "expired": expired, "foreign": foreign} {
		t.Run(name, func(t *testing.T) {
			c := startBridge(t, &fakeCore{}, tok)
			ctx := context.Background()

			_, err := c.GetConfig(ctx)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))

			_, err = c.ExportAll(ctx, nil)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestBridge_UnaryCalls(t *testing.T) {
	core := &fakeCore{
		dates: []string{"2024-01-16", "2024-01-15"},
		daily: analysis.DailyAnalysis{
			Date: "2024-01-15", TotalHours: 1.5, ActiveHours: 1, InactiveHours: 0.5, AFKHours: 0.5,
			ActivityRate: 66.7, StartTime: "9:00 AM", EndTime: "10:30 AM",
			ProductivityLevel: analysis.LevelNeedsImprovement, ProductivityEmoji: "🔴",
		},
	}
	c := startBridge(t, core, validToken(t))
	ctx := context.Background()

	info, err := c.DiscoverSource(ctx)
	require.NoError(t, err)
	assert.Equal(t, "activity_logs", info.ActivityTable)

	daily, err := c.AnalyzeSingleDate(ctx, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, core.daily, daily)

	multi, err := c.AnalyzeMultiDate(ctx, []string{"2024-01-15", "2024-01-16"})
	require.NoError(t, err)
	assert.Equal(t, 2, multi.TotalDays)
	assert.Equal(t, "2024-01-16", multi.DailyBreakdown[1].Date)

	dates, err := c.ListAvailableDates(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, core.dates, dates)
	assert.Nil(t, core.listedFor)

	id := "HOST"
	_, err = c.ListAvailableDates(ctx, &id)
	require.NoError(t, err)
	require.NotNil(t, core.listedFor)
	assert.Equal(t, "HOST", *core.listedFor)

	cancelled, err := c.Cancel(ctx)
	require.NoError(t, err)
	assert.True(t, cancelled)

	st, err := c.InitializeConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{EmployeeID: "HOST-007", DecryptionKey: "k"}, st)

	rows, err := c.SnapshotTable(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"key": "agent", "value": "1.2.3"}}, rows)

	rows, err = c.SnapshotTable(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = c.SnapshotTables(ctx)
	assert.ErrorIs(t, err, common.ErrSnapshotMissing)

	ref, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-15"}, ref.Dates)
}

func TestBridge_SetConfigSendsOnlyGivenFields(t *testing.T) {
	core := &fakeCore{}
	c := startBridge(t, core, validToken(t))

	key := "new-key"
	st, err := c.SetConfig(context.Background(), settings.Patch{DecryptionKey: &key})
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{EmployeeID: "HOST-007", DecryptionKey: "new-key"}, st)

	require.NotNil(t, core.patch.DecryptionKey)
	assert.Nil(t, core.patch.EmployeeID)
	assert.Nil(t, core.patch.DBPath)
}

func TestBridge_ErrorsTravelInEnvelope(t *testing.T) {
	core := &fakeCore{dailyErr: common.ErrNoDataForDate}
	c := startBridge(t, core, validToken(t))
	ctx := context.Background()

	_, err := c.AnalyzeSingleDate(ctx, "2024-01-15")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoDataForDate)
	assert.Equal(t, codes.Unknown, status.Code(err), "not a transport error")

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "NO_DATA_FOR_DATE", remote.Code)
	assert.Contains(t, remote.Message, "2024-01-15")
}

func TestBridge_InvalidRequestShape(t *testing.T) {
	c := startBridge(t, &fakeCore{}, validToken(t))
	ctx := context.Background()

	err := c.Call(ctx, MethodAnalyzeMultiDate, map[string]any{"dates": "2024-01-15"}, nil)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, CodeInvalidRequest, remote.Code)

	err = c.Call(ctx, MethodAnalyzeSingleDate, map[string]any{"date": 20240115}, nil)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, CodeInvalidRequest, remote.Code)

	err = c.Call(ctx, MethodSetConfig, map[string]any{"employeeId": true}, nil)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, CodeInvalidRequest, remote.Code)
}

func TestBridge_ExportAllStreamsProgressThenResult(t *testing.T) {
	core := &fakeCore{
		progress: []export.Progress{
			{Status: export.StatusStarting, RunID: "run-1"},
			{Status: export.StatusExporting, Percent: 50, Total: 4, Current: 2, TableName: "activity_logs", RunID: "run-1"},
			{Status: export.StatusCompleted, Percent: 100, Total: 4, Current: 4, RunID: "run-1"},
		},
		result: export.Result{Path: "/data/activity.json", RunID: "run-1", Tables: 2, Rows: 4, Duration: timex.Duration{Duration: 1500 * time.Millisecond}},
	}
	c := startBridge(t, core, validToken(t))

	var seen []export.Progress
	res, err := c.ExportAll(context.Background(), func(p export.Progress) { seen = append(seen, p) })
	require.NoError(t, err)

	assert.Equal(t, core.result, res)

	// reports may be coalesced but keep their order and end with the last one
	require.NotEmpty(t, seen)
	assert.Equal(t, core.progress[len(core.progress)-1], seen[len(seen)-1])
	next := 0
	for _, p := range seen {
		for next < len(core.progress) && core.progress[next] != p {
			next++
		}
		require.Less(t, next, len(core.progress), "report out of order: %+v", p)
		next++
	}
}

func TestBridge_ExportAllFailure(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{fmt.Errorf("export: %w", common.ErrOperationCancelled), common.ErrOperationCancelled},
		{fmt.Errorf("%w: database is locked", common.ErrSourceBusy), common.ErrSourceBusy},
	}
	for _, tt := range tests {
		t.Run(common.Code(tt.want), func(t *testing.T) {
			c := startBridge(t, &fakeCore{exportErr: tt.err}, validToken(t))
			_, err := c.ExportAll(context.Background(), nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0", &fakeCore{}, secret, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestServer_RunBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:99999", &fakeCore{}, secret, logging.Discard())
	require.Error(t, srv.Run(context.Background()))
}
