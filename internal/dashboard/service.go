// Package dashboard wires the exporter, the record stores, the analyzer and
// the settings store into the operations exposed to the UI bridge and the
// CLI.
package dashboard

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/query"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/snapshot"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
)

// SourceInfo describes the discovered ActivityTracker database.
type SourceInfo struct {
	Path          string   `json:"path"`
	Engine        string   `json:"engine"`
	Tables        []string `json:"tables"`
	ActivityTable string   `json:"activityTable"`
}

// RefreshResult is an export followed by the refreshed date list.
type RefreshResult struct {
	Export *export.Result `json:"export,omitempty"`
	Dates  []string       `json:"dates"`
}

// Service is the dashboard core. Construct it with New; it is safe for
// concurrent use.
type Service struct {
	cfg       *config.Config
	settings  *settings.Store
	open      source.Opener
	snapshots *snapshot.Reader
	exporter  *export.Exporter
	store     query.Store
	analyzer  *analysis.Analyzer
	hostname  func() (string, error)
	logger    logging.Logger
}

// Options customizes New. Zero values select the production defaults.
type Options struct {
	Opener   source.Opener
	Location *time.Location
	Hostname func() (string, error)
}

// New builds a Service from cfg. Settings and the snapshot live under
// cfg.DataDir.
func New(cfg *config.Config, logger logging.Logger, opts Options) *Service {
	if opts.Opener == nil {
		opts.Opener = source.Open
	}
	if opts.Hostname == nil {
		opts.Hostname = os.Hostname
	}

	s := &Service{
		cfg:       cfg,
		settings:  settings.NewStore(cfg.SettingsPath(), logger),
		open:      opts.Opener,
		snapshots: snapshot.NewReader(cfg.SnapshotPath()),
		hostname:  opts.Hostname,
		logger:    logger.With("module", "dashboard"),
	}

	s.exporter = export.NewExporter(s.open, s.snapshots, export.Options{
		ResolveSource:    s.sourceOptions,
		SnapshotPath:     cfg.SnapshotPath(),
		RetentionDays:    cfg.RetentionDays,
		BatchSize:        cfg.BatchSize,
		SinkBuffer:       cfg.SinkBuffer,
		ProgressInterval: cfg.ProgressInterval,
	}, logger)

	if cfg.Mode == config.ModeDirect {
		s.store = query.NewDirectStore(func(ctx context.Context) (source.Provider, error) {
			return s.open(ctx, s.sourceOptions(ctx))
		}, logger)
	} else {
		s.store = query.NewSnapshotStore(s.snapshots, logger)
	}
	s.analyzer = analysis.NewAnalyzer(s.store, opts.Location, logger)

	return s
}

// sourceOptions resolves the source location, preferring the dbPath
// setting over the configured default.
func (s *Service) sourceOptions(ctx context.Context) source.Options {
	path := s.cfg.SourcePath
	if p := s.settings.Get(ctx).DBPath; p != "" {
		path = p
	}
	return source.Options{Engine: s.cfg.Engine, Path: path, BusyTimeout: s.cfg.BusyTimeout}
}

// Mode returns "snapshot" or "direct".
func (s *Service) Mode() string { return s.cfg.Mode }

// DiscoverSource locates the source database and reads its schema. A
// source without an activity table is reported with an empty
// ActivityTable, not as an error.
func (s *Service) DiscoverSource(ctx context.Context) (SourceInfo, error) {
	opts := s.sourceOptions(ctx)
	if _, err := source.Discover(opts.Path); err != nil {
		return SourceInfo{}, err
	}

	p, err := s.open(ctx, opts)
	if err != nil {
		return SourceInfo{}, err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			s.logger.Warn(ctx, "close source", "error", cerr)
		}
	}()

	info := SourceInfo{Path: opts.Path, Engine: opts.Engine}
	if info.Engine == "" {
		info.Engine = source.EngineSQLite
	}
	info.Tables, err = p.Tables(ctx)
	if err != nil {
		return SourceInfo{}, common.Wrap("discover source", err)
	}

	tbl, err := source.FindActivityTable(ctx, p)
	switch {
	case err == nil:
		info.ActivityTable = tbl.Name
	case errors.Is(err, common.ErrNoActivityTable):
		s.logger.Warn(ctx, "no activity table in source", "path", opts.Path)
	default:
		return SourceInfo{}, err
	}

	s.logger.Info(ctx, "source discovered", "path", info.Path, "tables", len(info.Tables), "activity_table", info.ActivityTable)
	return info, nil
}

// ExportAll snapshots the source, joining an export already in flight.
func (s *Service) ExportAll(ctx context.Context, onProgress func(export.Progress)) (export.Result, error) {
	return s.exporter.ExportAll(ctx, onProgress)
}

// Cancel stops the export in flight and reports whether there was one.
func (s *Service) Cancel() bool {
	return s.exporter.Cancel()
}

// ListAvailableDates returns the distinct dates with records for the
// configured employee, newest first.
func (s *Service) ListAvailableDates(ctx context.Context) ([]string, error) {
	return s.ListAvailableDatesFor(ctx, s.settings.Get(ctx).EmployeeID)
}

// ListAvailableDatesFor is ListAvailableDates for an explicit identifier.
// An empty identifier matches every record.
func (s *Service) ListAvailableDatesFor(ctx context.Context, identifier string) ([]string, error) {
	dates, err := s.store.Dates(ctx, identifier)
	if err != nil {
		return nil, common.Wrap("list available dates", err)
	}
	return dates, nil
}

// AnalyzeSingleDate reports on one date with the configured employee and
// decryption key.
func (s *Service) AnalyzeSingleDate(ctx context.Context, date string) (analysis.DailyAnalysis, error) {
	st := s.settings.Get(ctx)
	return s.analyzer.AnalyzeSingleDate(ctx, date, st.EmployeeID, st.DecryptionKey)
}

// AnalyzeMultiDate reports on several dates; dates without records are
// left out of the breakdown.
func (s *Service) AnalyzeMultiDate(ctx context.Context, dates []string) (analysis.MultiDayAnalysis, error) {
	st := s.settings.Get(ctx)
	return s.analyzer.AnalyzeMultiDate(ctx, dates, st.EmployeeID, st.DecryptionKey)
}

func (s *Service) GetConfig(ctx context.Context) settings.Settings {
	return s.settings.Get(ctx)
}

// SetConfig merges p into the stored settings. Changing the source path
// drops the cached snapshot so the next read reloads it.
func (s *Service) SetConfig(ctx context.Context, p settings.Patch) (settings.Settings, error) {
	out, err := s.settings.Set(ctx, p)
	if err != nil {
		return settings.Settings{}, err
	}
	if p.DBPath != nil {
		s.snapshots.Invalidate()
	}
	return out, nil
}

// InitializeConfig fills the employee identifier from the host name and
// the decryption key from the agent key file when they are unset.
func (s *Service) InitializeConfig(ctx context.Context) (settings.Settings, error) {
	return s.settings.Initialize(ctx, s.hostname, s.cfg.KeyFile)
}

// Refresh re-exports the source (snapshot mode only) and lists dates.
func (s *Service) Refresh(ctx context.Context, onProgress func(export.Progress)) (RefreshResult, error) {
	var out RefreshResult
	if s.cfg.Mode != config.ModeDirect {
		res, err := s.exporter.ExportAll(ctx, onProgress)
		if err != nil {
			return RefreshResult{}, err
		}
		out.Export = &res
	}

	dates, err := s.ListAvailableDates(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	out.Dates = dates
	return out, nil
}

// SnapshotTable returns the exported rows of table, or no rows when the
// snapshot does not contain it.
func (s *Service) SnapshotTable(ctx context.Context, table string) ([]map[string]any, error) {
	snap, err := s.snapshots.Load()
	if err != nil {
		return nil, common.WrapTable("read snapshot table", table, err)
	}
	rows, ok := snap.Table(table)
	if !ok {
		s.logger.Debug(ctx, "table not in snapshot", "table", table)
		return []map[string]any{}, nil
	}
	return rows, nil
}

// SnapshotTables returns the table names of the current snapshot.
func (s *Service) SnapshotTables(_ context.Context) ([]string, error) {
	snap, err := s.snapshots.Load()
	if err != nil {
		return nil, common.Wrap("list snapshot tables", err)
	}
	return snap.TableNames(), nil
}
