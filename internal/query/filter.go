package query

import (
	"strings"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/source"
)

// Filter restricts activity records. Empty fields do not restrict.
//
// The identifier matches a stored value that equals it or contains it, so
// a configured host name "HOST-007" matches "HOST-007.domain.local". Date
// conditions compare the first 10 characters of the start time.
type Filter struct {
	Identifier string
	Dates      []string
	From, To   string
	// Since keeps start times at or after this value (string comparison).
	Since string
}

// MatchIdentifier reports whether stored matches the configured identifier.
func MatchIdentifier(stored, configured string) bool {
	return stored == configured || strings.Contains(stored, configured)
}

// Match applies the filter to an in-memory record.
func (f Filter) Match(r ActivityRecord) bool {
	if f.Identifier != "" && !MatchIdentifier(r.Identifier, f.Identifier) {
		return false
	}
	date := r.Date()
	if len(f.Dates) > 0 && !contains(f.Dates, date) {
		return false
	}
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	if f.Since != "" && r.StartTime < f.Since {
		return false
	}
	return true
}

// SQL renders the filter as a predicate for d, with the same semantics as
// Match. instr is used instead of LIKE: LIKE treats % and _ as wildcards
// and ignores ASCII case in SQLite.
func (f Filter) SQL(d source.Dialect) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	ts := d.Text(common.StartTimeColumn)
	day := "substr(" + ts + ", 1, 10)"

	if f.Identifier != "" {
		id := d.Text(common.IdentifierColumn)
		clauses = append(clauses, "("+id+" = ? OR instr("+id+", ?) > 0)")
		args = append(args, f.Identifier, f.Identifier)
	}
	if len(f.Dates) > 0 {
		clauses = append(clauses, day+" IN ("+placeholders(len(f.Dates))+")")
		for _, dt := range f.Dates {
			args = append(args, dt)
		}
	}
	if f.From != "" {
		clauses = append(clauses, day+" >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, day+" <= ?")
		args = append(args, f.To)
	}
	if f.Since != "" {
		clauses = append(clauses, ts+" >= ?")
		args = append(args, f.Since)
	}

	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
