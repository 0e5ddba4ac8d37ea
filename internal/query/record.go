// Package query selects activity records by identifier and date, either
// from the exported snapshot or straight from the source database.
package query

import (
	"sort"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
)

// DateLayout is the calendar date format used for filtering and grouping.
const DateLayout = "2006-01-02"

// ActivityRecord is one row of the activity table. Duration and AFK may be
// plaintext or an encrypted envelope.
type ActivityRecord struct {
	Identifier string `json:"employee_id"`
	StartTime  string `json:"start_time"`
	Duration   string `json:"duration_seconds"`
	IsAFK      string `json:"is_afk"`
}

// Date returns the calendar date part of the record's start time.
func (r ActivityRecord) Date() string { return DatePart(r.StartTime) }

// RecordFromRow maps a scanned row.
func RecordFromRow(r source.Row) ActivityRecord {
	return ActivityRecord{
		Identifier: r.String(common.IdentifierColumn),
		StartTime:  r.String(common.StartTimeColumn),
		Duration:   r.String(common.DurationColumn),
		IsAFK:      r.String(common.AFKColumn),
	}
}

// RecordFromMap maps a snapshot row.
func RecordFromMap(m map[string]any) ActivityRecord {
	return ActivityRecord{
		Identifier: source.Text(m[common.IdentifierColumn]),
		StartTime:  source.Text(m[common.StartTimeColumn]),
		Duration:   source.Text(m[common.DurationColumn]),
		IsAFK:      source.Text(m[common.AFKColumn]),
	}
}

// DatePart returns the first 10 characters of a timestamp.
func DatePart(ts string) string {
	if len(ts) < len(DateLayout) {
		return ts
	}
	return ts[:len(DateLayout)]
}

// ValidateDate checks that d is a real calendar date in YYYY-MM-DD form.
func ValidateDate(d string) error {
	if len(d) != len(DateLayout) {
		return common.WrapDate("validate", d, common.ErrInvalidDate)
	}
	if _, err := time.Parse(DateLayout, d); err != nil {
		return common.WrapDate("validate", d, common.ErrInvalidDate)
	}
	return nil
}

// AvailableDates returns the distinct record dates, newest first.
func AvailableDates(records []ActivityRecord) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		d := r.Date()
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// SortByStart orders records by start time, keeping ties in input order.
func SortByStart(records []ActivityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime < records[j].StartTime
	})
}
