package cli

import (
	"context"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
)

// Backend is what the commands call. bridge.Client satisfies it directly;
// local adapts an in-process dashboard.Service.
type Backend interface {
	DiscoverSource(ctx context.Context) (dashboard.SourceInfo, error)
	ExportAll(ctx context.Context, onProgress func(export.Progress)) (export.Result, error)
	Cancel(ctx context.Context) (bool, error)
	ListAvailableDates(ctx context.Context, identifier *string) ([]string, error)
	AnalyzeSingleDate(ctx context.Context, date string) (analysis.DailyAnalysis, error)
	AnalyzeMultiDate(ctx context.Context, dates []string) (analysis.MultiDayAnalysis, error)
	GetConfig(ctx context.Context) (settings.Settings, error)
	SetConfig(ctx context.Context, p settings.Patch) (settings.Settings, error)
	InitializeConfig(ctx context.Context) (settings.Settings, error)
	Refresh(ctx context.Context) (dashboard.RefreshResult, error)
	SnapshotTable(ctx context.Context, table string) ([]map[string]any, error)
	SnapshotTables(ctx context.Context) ([]string, error)
	Close() error
}

var _ Backend = (*bridge.Client)(nil)

type local struct {
	svc        *dashboard.Service
	onProgress func(export.Progress)
}

func (l *local) DiscoverSource(ctx context.Context) (dashboard.SourceInfo, error) {
	return l.svc.DiscoverSource(ctx)
}

func (l *local) ExportAll(ctx context.Context, onProgress func(export.Progress)) (export.Result, error) {
	return l.svc.ExportAll(ctx, onProgress)
}

// Cancel only finds a run started by this process, which has none by the
// time a cancel command executes.
func (l *local) Cancel(context.Context) (bool, error) {
	return l.svc.Cancel(), nil
}

func (l *local) ListAvailableDates(ctx context.Context, identifier *string) ([]string, error) {
	if identifier == nil {
		return l.svc.ListAvailableDates(ctx)
	}
	return l.svc.ListAvailableDatesFor(ctx, *identifier)
}

func (l *local) AnalyzeSingleDate(ctx context.Context, date string) (analysis.DailyAnalysis, error) {
	return l.svc.AnalyzeSingleDate(ctx, date)
}

func (l *local) AnalyzeMultiDate(ctx context.Context, dates []string) (analysis.MultiDayAnalysis, error) {
	return l.svc.AnalyzeMultiDate(ctx, dates)
}

func (l *local) GetConfig(ctx context.Context) (settings.Settings, error) {
	return l.svc.GetConfig(ctx), nil
}

func (l *local) SetConfig(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	return l.svc.SetConfig(ctx, p)
}

func (l *local) InitializeConfig(ctx context.Context) (settings.Settings, error) {
	return l.svc.InitializeConfig(ctx)
}

func (l *local) Refresh(ctx context.Context) (dashboard.RefreshResult, error) {
	return l.svc.Refresh(ctx, l.onProgress)
}

func (l *local) SnapshotTable(ctx context.Context, table string) ([]map[string]any, error) {
	return l.svc.SnapshotTable(ctx, table)
}

func (l *local) SnapshotTables(ctx context.Context) ([]string, error) {
	return l.svc.SnapshotTables(ctx)
}

func (l *local) Close() error { return nil }
