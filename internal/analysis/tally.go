package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/query"
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// tally accumulates seconds for one date.
type tally struct {
	total, active, afk float64
	first, last        time.Time
	timed              bool
	skipped            int
}

// decode opens and parses one record's duration and AFK flag. Both fields
// are decoded before anything is counted, so a record is either fully
// counted or not at all.
func decode(dec *cryptox.Decrypter, r query.ActivityRecord) (seconds float64, afk bool, err error) {
	durText, err := dec.Open(r.Duration)
	if err != nil {
		return 0, false, fmt.Errorf("duration: %w", err)
	}
	seconds, err = strconv.ParseFloat(strings.TrimSpace(durText), 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse duration %q: %w", durText, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false, fmt.Errorf("parse duration %q: not a finite number", durText)
	}

	afkText, err := dec.Open(r.IsAFK)
	if err != nil {
		return 0, false, fmt.Errorf("afk flag: %w", err)
	}
	return seconds, isAFK(afkText), nil
}

func isAFK(v string) bool {
	return v == "1" || v == "true" || v == "True"
}

func (t *tally) add(seconds float64, afk bool) {
	t.total += seconds
	if afk {
		t.afk += seconds
	} else {
		t.active += seconds
	}
}

// span extends the observed time range with a record starting at start and
// lasting seconds.
func (t *tally) span(start time.Time, seconds float64) {
	end := start.Add(time.Duration(seconds * float64(time.Second)))
	if !t.timed || start.Before(t.first) {
		t.first = start
	}
	if !t.timed || end.After(t.last) {
		t.last = end
	}
	t.timed = true
}

// daily converts the tally into a report. Rounding happens here only.
func (t *tally) daily(date string, loc *time.Location, withTimes bool) DailyAnalysis {
	total := t.total / 3600
	active := t.active / 3600
	afk := t.afk / 3600
	inactive := total - active
	rate := Rate(active, total)
	p := Classify(rate, total)

	d := DailyAnalysis{
		Date:              date,
		TotalHours:        Round2(total),
		ActiveHours:       Round2(active),
		InactiveHours:     Round2(inactive),
		AFKHours:          Round2(afk),
		ActivityRate:      Round1(rate),
		StartTime:         NotAvailable,
		EndTime:           NotAvailable,
		ProductivityLevel: p.Level,
		ProductivityEmoji: p.Emoji,
	}
	if withTimes && t.timed {
		d.StartTime = formatClock(t.first, loc)
		d.EndTime = formatClock(t.last, loc)
	}
	return d
}

func formatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 PM")
}

// parseStart parses a stored start time. Values without a zone are read in
// loc.
func parseStart(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
