package query

import (
	"context"
	"errors"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/snapshot"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
)

// Store returns activity records ordered by start time. A source without an
// activity table yields no records and no error.
type Store interface {
	Records(ctx context.Context, f Filter) ([]ActivityRecord, error)
	Dates(ctx context.Context, identifier string) ([]string, error)
}

// SnapshotLoader provides the current snapshot.
type SnapshotLoader interface {
	Load() (*snapshot.Snapshot, error)
}

// SnapshotStore reads records from the exported snapshot.
type SnapshotStore struct {
	loader SnapshotLoader
	logger logging.Logger
}

func NewSnapshotStore(l SnapshotLoader, logger logging.Logger) *SnapshotStore {
	return &SnapshotStore{loader: l, logger: logger.With("module", "snapshot_store")}
}

func (s *SnapshotStore) Records(ctx context.Context, f Filter) ([]ActivityRecord, error) {
	rows, err := s.activityRows(ctx)
	if err != nil {
		return nil, err
	}

	out := []ActivityRecord{}
	for _, m := range rows {
		rec := RecordFromMap(m)
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	SortByStart(out)
	return out, nil
}

func (s *SnapshotStore) Dates(ctx context.Context, identifier string) ([]string, error) {
	recs, err := s.Records(ctx, Filter{Identifier: identifier})
	if err != nil {
		return nil, err
	}
	return AvailableDates(recs), nil
}

// ActivityTable returns the activity table recorded in the snapshot, or
// the first table whose rows carry both the identifier and the start-time
// column.
func ActivityTable(snap *snapshot.Snapshot) (string, error) {
	if snap.ActivityTable != "" {
		return snap.ActivityTable, nil
	}
	for _, name := range snap.TableNames() {
		rows, _ := snap.Table(name)
		if len(rows) == 0 {
			continue
		}
		_, hasID := rows[0][common.IdentifierColumn]
		_, hasTS := rows[0][common.StartTimeColumn]
		if hasID && hasTS {
			return name, nil
		}
	}
	return "", common.ErrNoActivityTable
}

func (s *SnapshotStore) activityRows(ctx context.Context) ([]map[string]any, error) {
	snap, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	name, err := ActivityTable(snap)
	if errors.Is(err, common.ErrNoActivityTable) {
		s.logger.Warn(ctx, "snapshot has no activity table")
		return nil, nil
	}
	rows, _ := snap.Table(name)
	return rows, nil
}

// DirectStore queries the source database on every call. The provider is
// opened and closed per call.
type DirectStore struct {
	open   func(ctx context.Context) (source.Provider, error)
	logger logging.Logger
}

func NewDirectStore(open func(ctx context.Context) (source.Provider, error), logger logging.Logger) *DirectStore {
	return &DirectStore{open: open, logger: logger.With("module", "direct_store")}
}

var recordColumns = []string{
	common.IdentifierColumn,
	common.StartTimeColumn,
	common.DurationColumn,
	common.AFKColumn,
}

func (s *DirectStore) Records(ctx context.Context, f Filter) (out []ActivityRecord, err error) {
	p, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tbl, err := source.FindActivityTable(ctx, p)
	if errors.Is(err, common.ErrNoActivityTable) {
		s.logger.Warn(ctx, "no valid activity table found")
		return []ActivityRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(recordColumns))
	for _, c := range recordColumns {
		if tbl.Has(c) {
			cols = append(cols, c)
		}
	}

	where, args := f.SQL(p.Dialect())
	sel := source.Selection{Columns: cols, Where: where, Args: args, OrderBy: common.StartTimeColumn}

	out = []ActivityRecord{}
	err = p.Scan(ctx, tbl.Name, sel, func(r source.Row) error {
		out = append(out, RecordFromRow(r))
		return nil
	})
	if err != nil {
		return nil, common.WrapTable("query records", tbl.Name, err)
	}
	return out, nil
}

func (s *DirectStore) Dates(ctx context.Context, identifier string) ([]string, error) {
	recs, err := s.Records(ctx, Filter{Identifier: identifier})
	if err != nil {
		return nil, err
	}
	return AvailableDates(recs), nil
}
