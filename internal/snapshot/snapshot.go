// Package snapshot stores exported tables as one JSON document on disk.
//
// A snapshot is written to "<path>.partial" and renamed into place only
// after a completion marker has been written and the file synced, so a
// reader either sees a whole export or nothing.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// Header is known before the first row is written.
type Header struct {
	Version       int       `json:"version"`
	RunID         string    `json:"runId"`
	ExportedAt    time.Time `json:"exportedAt"`
	Cutoff        string    `json:"cutoff"`
	Source        string    `json:"source"`
	ActivityTable string    `json:"activityTable"`
}

// Trailer is written on commit.
type Trailer struct {
	Order     []string         `json:"tableNames"`
	RowCounts map[string]int64 `json:"rowCounts"`
	Complete  bool             `json:"complete"`
}

// Snapshot is a fully loaded export.
type Snapshot struct {
	Header
	Trailer
	tables map[string][]map[string]any
}

type document struct {
	Header
	Tables map[string][]map[string]any `json:"tables"`
	Trailer
}

// Table returns the rows of name.
func (s *Snapshot) Table(name string) ([]map[string]any, bool) {
	rows, ok := s.tables[name]
	return rows, ok
}

// TableNames returns table names in export order.
func (s *Snapshot) TableNames() []string {
	return append([]string(nil), s.Order...)
}

// Load reads the snapshot at path. A missing, unreadable or incomplete
// file yields an error wrapping common.ErrSnapshotMissing.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrSnapshotMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var doc document
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrSnapshotMissing, path, err)
	}
	if !doc.Complete {
		return nil, fmt.Errorf("%w: %s is incomplete", common.ErrSnapshotMissing, path)
	}
	if doc.Tables == nil {
		doc.Tables = map[string][]map[string]any{}
	}

	return &Snapshot{Header: doc.Header, Trailer: doc.Trailer, tables: doc.Tables}, nil
}
