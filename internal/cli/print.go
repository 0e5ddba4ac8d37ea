package cli

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/analysis"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/export"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
)

func (a *App) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

// printRows writes one JSON object per line.
func (a *App) printRows(rows []map[string]any) error {
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(a.out, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) printProgress(p export.Progress) {
	if a.asJSON {
		return
	}
	switch p.Status {
	case export.StatusExporting:
		fmt.Fprintf(a.out, "[%3d%%] %-24s %d/%d rows\n", p.Percent, p.TableName, p.Current, p.Total)
	case export.StatusFailed:
		fmt.Fprintf(a.out, "[%3d%%] failed: %s\n", p.Percent, p.Error)
	default:
		fmt.Fprintf(a.out, "[%3d%%] %s\n", p.Percent, p.Status)
	}
}

func (a *App) printDates(dates []string) {
	if len(dates) == 0 {
		fmt.Fprintln(a.out, "No dates with activity")
		return
	}
	for _, d := range dates {
		fmt.Fprintln(a.out, d)
	}
}

func (a *App) printDaily(d analysis.DailyAnalysis) {
	fmt.Fprintf(a.out, "Date:          %s\n", d.Date)
	fmt.Fprintf(a.out, "Tracked:       %.2f h (%s - %s)\n", d.TotalHours, d.StartTime, d.EndTime)
	fmt.Fprintf(a.out, "Active:        %.2f h\n", d.ActiveHours)
	fmt.Fprintf(a.out, "Inactive:      %.2f h (AFK %.2f h)\n", d.InactiveHours, d.AFKHours)
	fmt.Fprintf(a.out, "Activity rate: %.1f%%\n", d.ActivityRate)
	fmt.Fprintf(a.out, "Productivity:  %s %s\n", d.ProductivityEmoji, d.ProductivityLevel)
}

func (a *App) printMulti(m analysis.MultiDayAnalysis) {
	fmt.Fprintf(a.out, "Days with activity: %d\n", m.TotalDays)
	fmt.Fprintf(a.out, "Tracked:  %.2f h (avg %.2f h)\n", m.TotalTrackedHours, m.AverageTotalHours)
	fmt.Fprintf(a.out, "Active:   %.2f h (avg %.2f h)\n", m.TotalActiveHours, m.AverageActiveHours)
	fmt.Fprintf(a.out, "Inactive: %.2f h (avg %.2f h)\n", m.TotalInactiveHours, m.AverageInactiveHours)
	fmt.Fprintf(a.out, "Activity rate: %.1f%%\n", m.OverallActivityRate)
	if len(m.DailyBreakdown) == 0 {
		return
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "%-10s  %8s  %8s  %8s  %6s\n", "date", "active", "inactive", "total", "rate")
	for _, d := range m.DailyBreakdown {
		fmt.Fprintf(a.out, "%-10s  %8.2f  %8.2f  %8.2f  %5.1f%%\n", d.Date, d.ActiveHours, d.InactiveHours, d.TotalHours, d.ActivityRate)
	}
}

// printSettings never prints the key itself.
func (a *App) printSettings(st settings.Settings) error {
	key := "(not set, values are read as plaintext)"
	if st.DecryptionKey != "" {
		if fp := cryptox.Fingerprint(st.DecryptionKey); fp != "" {
			key = "fingerprint " + fp
		} else {
			key = "(invalid key)"
		}
	}

	if a.asJSON {
		return a.printJSON(map[string]string{
			"employeeId":    st.EmployeeID,
			"dbPath":        st.DBPath,
			"decryptionKey": key,
		})
	}
	fmt.Fprintf(a.out, "Employee: %s\n", st.EmployeeID)
	fmt.Fprintf(a.out, "Key:      %s\n", key)
	if st.DBPath != "" {
		fmt.Fprintf(a.out, "Database: %s\n", st.DBPath)
	}
	return nil
}
