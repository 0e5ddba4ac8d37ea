package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/query"
	"golang.org/x/sync/errgroup"
)

// Analyzer computes reports from a record store. It holds no per-query
// state and is safe for concurrent use.
type Analyzer struct {
	store  query.Store
	loc    *time.Location
	logger logging.Logger
}

// NewAnalyzer returns an Analyzer that formats clock times in loc
// (time.Local when nil).
func NewAnalyzer(store query.Store, loc *time.Location, logger logging.Logger) *Analyzer {
	if loc == nil {
		loc = time.Local
	}
	return &Analyzer{store: store, loc: loc, logger: logger.With("module", "analyzer")}
}

// AnalyzeSingleDate reports on one date. It fails with
// common.ErrNoDataForDate when the date has no records and with a
// decryption error if any record cannot be opened: a single-day report is
// all or nothing.
func (a *Analyzer) AnalyzeSingleDate(ctx context.Context, date, identifier, key string) (DailyAnalysis, error) {
	const op = "analyze single date"

	if err := query.ValidateDate(date); err != nil {
		return DailyAnalysis{}, err
	}

	records, err := a.store.Records(ctx, query.Filter{Identifier: identifier, Dates: []string{date}})
	if err != nil {
		return DailyAnalysis{}, common.WrapDate(op, date, err)
	}
	if len(records) == 0 {
		a.logger.Warn(ctx, "no data found for date", "date", date)
		return DailyAnalysis{}, common.WrapDate(op, date, common.ErrNoDataForDate)
	}

	dec := cryptox.NewDecrypter(key)
	var t tally
	for i, r := range records {
		seconds, afk, err := decode(dec, r)
		if err != nil {
			return DailyAnalysis{}, common.WrapDate(op, date, fmt.Errorf("record %d: %w", i, err))
		}
		t.add(seconds, afk)
		if start, ok := parseStart(r.StartTime, a.loc); ok {
			t.span(start, seconds)
		}
	}

	return t.daily(date, a.loc, true), nil
}

// AnalyzeMultiDate reports on several dates. Records that fail to decode
// are skipped and counted, never failing the report; dates without records
// are omitted. Breakdown entries follow the requested order.
//
// Totals are sums of the already rounded daily values, rounded again.
func (a *Analyzer) AnalyzeMultiDate(ctx context.Context, dates []string, identifier, key string) (MultiDayAnalysis, error) {
	const op = "analyze multi date"

	dates = dedupe(dates)
	for _, d := range dates {
		if err := query.ValidateDate(d); err != nil {
			return MultiDayAnalysis{}, err
		}
	}
	if len(dates) == 0 {
		return rollup(nil), nil
	}

	records, err := a.store.Records(ctx, query.Filter{Identifier: identifier, Dates: dates})
	if err != nil {
		return MultiDayAnalysis{}, common.Wrap(op, err)
	}

	byDate := make(map[string][]query.ActivityRecord, len(dates))
	for _, r := range records {
		byDate[r.Date()] = append(byDate[r.Date()], r)
	}

	dec := cryptox.NewDecrypter(key)
	days := make([]*DailyAnalysis, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, date := range dates {
		recs := byDate[date]
		if len(recs) == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var t tally
			for _, r := range recs {
				seconds, afk, err := decode(dec, r)
				if err != nil {
					t.skipped++
					continue
				}
				t.add(seconds, afk)
			}
			if t.skipped > 0 {
				a.logger.Debug(gctx, "skipped undecodable records", "date", date, "skipped", t.skipped, "records", len(recs))
			}
			d := t.daily(date, a.loc, false)
			days[i] = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return MultiDayAnalysis{}, common.Wrap(op, common.ErrOperationCancelled)
		}
		return MultiDayAnalysis{}, common.Wrap(op, err)
	}

	return rollup(days), nil
}

func rollup(days []*DailyAnalysis) MultiDayAnalysis {
	out := MultiDayAnalysis{DailyBreakdown: []DayBreakdown{}}

	var active, tracked, inactive float64
	for _, d := range days {
		if d == nil {
			continue
		}
		active += d.ActiveHours
		tracked += d.TotalHours
		inactive += d.InactiveHours
		out.DailyBreakdown = append(out.DailyBreakdown, DayBreakdown{
			Date:          d.Date,
			ActiveHours:   d.ActiveHours,
			InactiveHours: d.InactiveHours,
			TotalHours:    d.TotalHours,
			ActivityRate:  d.ActivityRate,
		})
	}

	n := len(out.DailyBreakdown)
	out.TotalDays = n
	out.TotalActiveHours = Round2(active)
	out.TotalTrackedHours = Round2(tracked)
	out.TotalInactiveHours = Round2(inactive)
	if n > 0 {
		out.AverageActiveHours = Round2(active / float64(n))
		out.AverageTotalHours = Round2(tracked / float64(n))
		out.AverageInactiveHours = Round2(inactive / float64(n))
	}
	out.OverallActivityRate = Round1(Rate(active, tracked))
	return out
}

func dedupe(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
