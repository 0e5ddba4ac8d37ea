package query

import (
	"testing"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchIdentifier(t *testing.T) {
	assert.True(t, MatchIdentifier("HOST-007", "HOST-007"))
	assert.True(t, MatchIdentifier("HOST-007.domain.local", "HOST-007"))
	assert.False(t, MatchIdentifier("HOST-007", "HOST-007.domain.local"))
	assert.False(t, MatchIdentifier("host-007.domain.local", "HOST-007"))
}

func TestFilter_Match(t *testing.T) {
	rec := ActivityRecord{Identifier: "HOST-007.domain.local", StartTime: "2024-01-15T09:00:00"}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"identifier substring", Filter{Identifier: "HOST-007"}, true},
		{"other identifier", Filter{Identifier: "HOST-008"}, false},
		{"date list hit", Filter{Dates: []string{"2024-01-14", "2024-01-15"}}, true},
		{"date list miss", Filter{Dates: []string{"2024-01-16"}}, false},
		{"range inclusive", Filter{From: "2024-01-15", To: "2024-01-15"}, true},
		{"range before", Filter{From: "2024-01-16"}, false},
		{"range after", Filter{To: "2024-01-14"}, false},
		{"since day", Filter{Since: "2024-01-15"}, true},
		{"since later", Filter{Since: "2024-01-15T10"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Match(rec))
		})
	}
}

type plainDialect struct{}

func (plainDialect) Table(n string) string  { return n }
func (plainDialect) Column(n string) string { return n }
func (plainDialect) Text(n string) string   { return n }

func TestFilter_SQL(t *testing.T) {
	where, args := Filter{}.SQL(plainDialect{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = Filter{
		Identifier: "HOST-007",
		Dates:      []string{"2024-01-15", "2024-01-16"},
		Since:      "2024-01-01",
	}.SQL(plainDialect{})
	assert.Equal(t,
		"(employee_id = ? OR instr(employee_id, ?) > 0) AND substr(start_time, 1, 10) IN (?, ?) AND start_time >= ?",
		where)
	assert.Equal(t, []any{"HOST-007", "HOST-007", "2024-01-15", "2024-01-16", "2024-01-01"}, args)

	where, args = Filter{From: "2024-01-01", To: "2024-01-31"}.SQL(plainDialect{})
	assert.Equal(t, "substr(start_time, 1, 10) >= ? AND substr(start_time, 1, 10) <= ?", where)
	assert.Equal(t, []any{"2024-01-01", "2024-01-31"}, args)
}

func TestDatePartAndValidate(t *testing.T) {
	assert.Equal(t, "2024-01-15", DatePart("2024-01-15T09:00:00.123"))
	assert.Equal(t, "2024-01-15", DatePart("2024-01-15 09:00:00"))
	assert.Equal(t, "2024", DatePart("2024"))

	require.NoError(t, ValidateDate("2024-02-29"))
	for _, bad := range []string{"2023-02-29", "2024-1-5", "15/01/2024", "", "2024-01-15T00"} {
		require.ErrorIs(t, ValidateDate(bad), common.ErrInvalidDate, bad)
	}
}

func TestAvailableDates(t *testing.T) {
	recs := []ActivityRecord{
		{StartTime: "2024-01-14T10:00:00"},
		{StartTime: "2024-01-16T10:00:00"},
		{StartTime: "2024-01-14T11:00:00"},
		{StartTime: ""},
		{StartTime: "2024-01-15T08:00:00"},
	}
	assert.Equal(t, []string{"2024-01-16", "2024-01-15", "2024-01-14"}, AvailableDates(recs))
	assert.Equal(t, []string{}, AvailableDates(nil))
}
