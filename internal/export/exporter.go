// Package export copies the ActivityTracker database into the JSON snapshot.
//
// At most one export runs at a time. Concurrent ExportAll callers join the
// run in flight, receive its progress reports and get the same result.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/query"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/snapshot"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/timex"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Options configures an Exporter.
type Options struct {
	Source source.Options
	// ResolveSource, when set, supplies the source options at the start of
	// each run instead of Source.
	ResolveSource    func(ctx context.Context) source.Options
	SnapshotPath     string
	RetentionDays    int
	BatchSize        int
	SinkBuffer       int
	ProgressInterval time.Duration
}

// Result describes a completed export.
type Result struct {
	Path     string         `json:"path"`
	RunID    string         `json:"runId"`
	Tables   int            `json:"tables"`
	Rows     int64          `json:"rows"`
	Duration timex.Duration `json:"duration"`
}

// SnapshotRemover deletes the current snapshot.
type SnapshotRemover interface {
	Remove() error
}

// Exporter runs snapshot exports.
type Exporter struct {
	open      source.Opener
	snapshots SnapshotRemover
	opts      Options
	logger    logging.Logger
	now       func() time.Time

	group singleflight.Group

	mu  sync.Mutex
	cur *run
}

func NewExporter(open source.Opener, snapshots SnapshotRemover, opts Options, logger logging.Logger) *Exporter {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	if opts.RetentionDays < 1 {
		opts.RetentionDays = 30
	}
	return &Exporter{
		open:      open,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger.With("module", "exporter"),
		now:       time.Now,
	}
}

// run is one export in flight and the callers waiting on it.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	pace   *rate.Sometimes
	// prev is a cancelled run still shutting down when this one started.
	prev *run
	done chan struct{}

	mu      sync.Mutex
	subs    map[int]func(Progress)
	nextSub int
	waiters int
	closed  bool
	last    *Progress
}

// subscribe adds a caller. It fails once the run has been cancelled.
func (r *run) subscribe(fn func(Progress)) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.ctx.Err() != nil {
		return 0, false
	}
	r.waiters++
	id := r.nextSub
	r.nextSub++
	if fn == nil {
		return id, true
	}
	r.subs[id] = fn
	if r.last != nil {
		fn(*r.last)
	}
	return id, true
}

// leave removes a caller. The run is cancelled once nobody waits on it.
func (r *run) leave(id int) {
	r.mu.Lock()
	delete(r.subs, id)
	r.waiters--
	idle := r.waiters == 0
	if idle {
		r.closed = true
	}
	r.mu.Unlock()
	if idle {
		r.cancel()
	}
}

// stop cancels the run and turns away new callers.
func (r *run) stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
}

func (r *run) emit(p Progress) {
	r.mu.Lock()
	r.last = &p
	subs := make([]func(Progress), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}

// ExportAll exports the source into the snapshot, or joins the export in
// flight. onProgress may be nil. If ctx ends the caller stops waiting; the
// run is cancelled only when no other caller waits on it. A run that has
// already been cancelled is never joined: the caller starts a new run,
// which waits for the old one to wind down before touching the snapshot.
func (e *Exporter) ExportAll(ctx context.Context, onProgress func(Progress)) (Result, error) {
	e.mu.Lock()
	r := e.cur
	sub, ok := 0, false
	if r != nil {
		sub, ok = r.subscribe(onProgress)
	}
	if !ok {
		r = e.newRun(ctx, r)
		e.cur = r
		sub, _ = r.subscribe(onProgress)
	}
	// e.cur == r here, so r's export has not reached finish and its
	// singleflight key is still live: DoChan joins, never re-runs.
	ch := e.group.DoChan(r.id, func() (any, error) {
		defer e.finish(r)
		return e.export(r)
	})
	e.mu.Unlock()

	select {
	case res := <-ch:
		r.leave(sub)
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		r.leave(sub)
		return Result{}, fmt.Errorf("%w: %w", common.ErrOperationCancelled, ctx.Err())
	}
}

func (e *Exporter) newRun(ctx context.Context, prev *run) *run {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &run{
		id:     uuid.NewString(),
		ctx:    runCtx,
		cancel: cancel,
		pace:   e.pace(),
		prev:   prev,
		done:   make(chan struct{}),
		subs:   make(map[int]func(Progress)),
	}
}

// pace limits batch progress reports to one per ProgressInterval, or lets
// every batch through when no interval is set.
func (e *Exporter) pace() *rate.Sometimes {
	if e.opts.ProgressInterval <= 0 {
		return &rate.Sometimes{Every: 1}
	}
	return &rate.Sometimes{Interval: e.opts.ProgressInterval}
}

func (e *Exporter) finish(r *run) {
	e.mu.Lock()
	if e.cur == r {
		e.cur = nil
	}
	e.mu.Unlock()
	r.stop()
	close(r.done)
}

// Cancel stops the export in flight. It reports whether there was one that
// had not already been cancelled.
func (e *Exporter) Cancel() bool {
	e.mu.Lock()
	r := e.cur
	e.mu.Unlock()
	if r == nil || r.ctx.Err() != nil {
		return false
	}
	e.logger.Info(r.ctx, "export cancel requested", "run_id", r.id)
	r.stop()
	return true
}

// Running reports whether an export is in flight, including one that is
// still winding down after a cancel.
func (e *Exporter) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur != nil
}

func (e *Exporter) export(r *run) (Result, error) {
	ctx := r.ctx
	stats := &Stats{RunID: r.id, StartTime: e.now()}
	logger := e.logger.With("run_id", r.id)

	// prev is already cancelled; runs never overlap on the snapshot file
	if r.prev != nil {
		<-r.prev.done
		r.prev = nil
	}
	r.emit(stats.progress(StatusStarting, ""))

	err := e.copySource(ctx, r, stats, logger)
	stats.EndTime = e.now()

	switch {
	case err == nil:
		res := Result{
			Path:     e.opts.SnapshotPath,
			RunID:    r.id,
			Tables:   stats.Tables,
			Rows:     stats.Processed,
			Duration: timex.Duration{Duration: stats.Duration()},
		}
		p := stats.progress(StatusCompleted, "")
		p.Percent = 100
		r.emit(p)
		logger.Info(ctx, "export completed",
			"tables", res.Tables,
			"rows", res.Rows,
			"duration", res.Duration.Duration,
			"rows_per_second", stats.RowsPerSecond(),
		)
		return res, nil

	case ctx.Err() != nil || errors.Is(err, common.ErrOperationCancelled):
		r.emit(stats.progress(StatusCancelled, ""))
		logger.Info(ctx, "export cancelled", "processed", stats.Processed, "total", stats.Total)
		return Result{}, fmt.Errorf("export: %w", common.ErrOperationCancelled)

	default:
		p := stats.progress(StatusFailed, "")
		p.Error = err.Error()
		r.emit(p)
		logger.Error(ctx, "export failed", "error", err)
		return Result{}, err
	}
}

// plannedTable is a table with the selection that restricts it to the
// retention window.
type plannedTable struct {
	name  string
	sel   source.Selection
	count int64
}

func (e *Exporter) copySource(ctx context.Context, r *run, stats *Stats, logger logging.Logger) error {
	if ctx.Err() != nil {
		return common.ErrOperationCancelled
	}
	if err := e.snapshots.Remove(); err != nil {
		return fmt.Errorf("remove previous snapshot: %w", err)
	}

	srcOpts := e.opts.Source
	if e.opts.ResolveSource != nil {
		srcOpts = e.opts.ResolveSource(ctx)
	}
	p, err := e.open(ctx, srcOpts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			logger.Warn(ctx, "close source", "error", cerr)
		}
	}()

	return p.View(ctx, func(ctx context.Context, v source.Provider) error {
		cutoff := e.now().AddDate(0, 0, -e.opts.RetentionDays).Format(query.DateLayout)

		plan, activity, err := e.plan(ctx, v, cutoff, logger)
		if err != nil {
			return err
		}
		for _, t := range plan {
			stats.Total += t.count
		}
		stats.Tables = len(plan)

		logger.Info(ctx, "export started", "tables", len(plan), "rows", stats.Total, "cutoff", cutoff)

		w, err := snapshot.NewWriter(e.opts.SnapshotPath, snapshot.Header{
			RunID:         r.id,
			ExportedAt:    stats.StartTime.UTC(),
			Cutoff:        cutoff,
			Source:        srcOpts.Path,
			ActivityTable: activity,
		}, e.opts.SinkBuffer)
		if err != nil {
			return err
		}

		for _, t := range plan {
			if err := e.copyTable(ctx, v, w, t, r, stats); err != nil {
				w.Abort()
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			w.Abort()
			return common.ErrOperationCancelled
		}
		if stalls := w.Stalls(); stalls > 0 {
			logger.Debug(ctx, "snapshot writer applied backpressure", "stalls", stalls)
		}
		return w.Commit()
	})
}

func (e *Exporter) plan(ctx context.Context, v source.Provider, cutoff string, logger logging.Logger) ([]plannedTable, string, error) {
	names, err := v.Tables(ctx)
	if err != nil {
		return nil, "", common.Wrap("list tables", err)
	}

	activity := ""
	tbl, err := source.FindActivityTable(ctx, v)
	switch {
	case err == nil:
		activity = tbl.Name
	case errors.Is(err, common.ErrNoActivityTable):
		logger.Warn(ctx, "no activity table in source", "tables", len(names))
	default:
		return nil, "", err
	}

	plan := make([]plannedTable, 0, len(names))
	for _, name := range names {
		cols, err := v.Columns(ctx, name)
		if err != nil {
			return nil, "", common.WrapTable("read columns", name, err)
		}
		t := plannedTable{name: name}
		if (source.Table{Name: name, Columns: cols}).Timestamped() {
			t.sel.Where, t.sel.Args = query.Filter{Since: cutoff}.SQL(v.Dialect())
		}
		t.count, err = v.Count(ctx, name, t.sel)
		if err != nil {
			return nil, "", common.WrapTable("count rows", name, err)
		}
		plan = append(plan, t)
	}
	return plan, activity, nil
}

func (e *Exporter) copyTable(ctx context.Context, v source.Provider, w *snapshot.Writer, t plannedTable, r *run, stats *Stats) error {
	if ctx.Err() != nil {
		return common.ErrOperationCancelled
	}
	if err := w.BeginTable(ctx, t.name); err != nil {
		return common.WrapTable("write table", t.name, err)
	}
	r.emit(stats.progress(StatusExporting, t.name))

	batch := int64(e.opts.BatchSize)
	err := v.Scan(ctx, t.name, t.sel, func(row source.Row) error {
		if ctx.Err() != nil {
			return common.ErrOperationCancelled
		}
		if err := w.Append(ctx, row); err != nil {
			return err
		}
		stats.Processed++
		if stats.Processed%batch == 0 {
			r.pace.Do(func() { r.emit(stats.progress(StatusExporting, t.name)) })
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, common.ErrOperationCancelled) {
			return common.ErrOperationCancelled
		}
		return common.WrapTable("export table", t.name, err)
	}

	if err := w.EndTable(ctx); err != nil {
		return common.WrapTable("write table", t.name, err)
	}
	r.emit(stats.progress(StatusExporting, t.name))
	return nil
}
