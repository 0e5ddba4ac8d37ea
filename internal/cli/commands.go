package cli

import (
	"fmt"
	"time"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/query"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/settings"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/shared"
	"github.com/spf13/cobra"
)

// maxRangeDays bounds the dates expanded by the range command.
const maxRangeDays = 366

func (a *App) discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Locate the ActivityTracker database and its activity table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.backend.DiscoverSource(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(info)
			}
			fmt.Fprintf(a.out, "Database:       %s\n", info.Path)
			fmt.Fprintf(a.out, "Engine:         %s\n", info.Engine)
			fmt.Fprintf(a.out, "Tables:         %v\n", info.Tables)
			if info.ActivityTable == "" {
				fmt.Fprintln(a.out, "Activity table: none found")
			} else {
				fmt.Fprintf(a.out, "Activity table: %s\n", info.ActivityTable)
			}
			return nil
		},
	}
}

func (a *App) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export the recent window of the database to the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.backend.ExportAll(cmd.Context(), a.printProgress)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(res)
			}
			fmt.Fprintf(a.out, "Exported %d rows from %d tables in %s\n", res.Rows, res.Tables, res.Duration.Round(time.Millisecond))
			fmt.Fprintf(a.out, "Snapshot: %s\n", res.Path)
			return nil
		},
	}
}

func (a *App) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the export running in activityd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cancelled, err := a.backend.Cancel(cmd.Context())
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Fprintln(a.out, "Export cancelled")
			} else {
				fmt.Fprintln(a.out, "No export running")
			}
			return nil
		},
	}
}

func (a *App) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Export, then list the available dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.backend.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(res)
			}
			if res.Export != nil {
				fmt.Fprintf(a.out, "Exported %d rows in %s\n", res.Export.Rows, res.Export.Duration.Round(time.Millisecond))
			}
			a.printDates(res.Dates)
			return nil
		},
	}
}

func (a *App) datesCmd() *cobra.Command {
	var employee string
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List dates that have activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var id *string
			if cmd.Flags().Changed("employee") {
				id = &employee
			}
			dates, err := a.backend.ListAvailableDates(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(dates)
			}
			a.printDates(dates)
			return nil
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "employee identifier (default: configured employee)")
	return cmd
}

func (a *App) dayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "Report one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.backend.AnalyzeSingleDate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(d)
			}
			a.printDaily(d)
			return nil
		},
	}
}

func (a *App) rangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <from> <to>",
		Short: "Report every day from one date to another, inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dates, err := expandRange(args[0], args[1])
			if err != nil {
				return err
			}
			return a.analyzeDays(cmd, dates)
		},
	}
}

func (a *App) daysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "days <date>...",
		Short: "Report several days",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyzeDays(cmd, args)
		},
	}
}

func (a *App) analyzeDays(cmd *cobra.Command, dates []string) error {
	m, err := a.backend.AnalyzeMultiDate(cmd.Context(), dates)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(m)
	}
	a.printMulti(m)
	return nil
}

// expandRange lists the dates from..to inclusive.
func expandRange(from, to string) ([]string, error) {
	start, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", common.ErrInvalidDate, from, to)
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if len(dates) == maxRangeDays {
			return nil, fmt.Errorf("range longer than %d days", maxRangeDays)
		}
		dates = append(dates, d.Format(query.DateLayout))
	}
	return dates, nil
}

func parseDate(s string) (time.Time, error) {
	if err := query.ValidateDate(s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(query.DateLayout, s)
}

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the dashboard settings",
	}
	cmd.AddCommand(a.configShowCmd(), a.configSetCmd(), a.configInitCmd())
	return cmd
}

func (a *App) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the settings; the key is shown as a fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.backend.GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSettings(st)
		},
	}
}

func (a *App) configSetCmd() *cobra.Command {
	var (
		key, employee, dbPath string
		promptKey             bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change individual settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p settings.Patch
			flags := cmd.Flags()
			if flags.Changed("key") {
				p.DecryptionKey = &key
			}
			if flags.Changed("employee") {
				p.EmployeeID = &employee
			}
			if flags.Changed("db-path") {
				p.DBPath = &dbPath
			}
			if promptKey {
				secret, err := GetSecret(a.in, a.out, "Decryption key")
				if err != nil {
					return err
				}
				k := string(secret)
				shared.WipeByteArray(secret)
				p.DecryptionKey = &k
			}
			if p.DecryptionKey != nil && *p.DecryptionKey != "" {
				if _, _, err := cryptox.DecodeKey(*p.DecryptionKey); err != nil {
					return err
				}
			}
			if p == (settings.Patch{}) {
				return fmt.Errorf("nothing to set: use --key, --prompt-key, --employee or --db-path")
			}

			st, err := a.backend.SetConfig(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.printSettings(st)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Fernet decryption key (empty stores plaintext mode)")
	cmd.Flags().BoolVar(&promptKey, "prompt-key", false, "read the decryption key without echo")
	cmd.Flags().StringVar(&employee, "employee", "", "employee identifier")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "ActivityTracker database path override")
	cmd.MarkFlagsMutuallyExclusive("key", "prompt-key")
	return cmd
}

func (a *App) configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Fill missing settings from the host name and the agent key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.backend.InitializeConfig(cmd.Context())
			if err != nil {
				return err
			}
			return a.printSettings(st)
		},
	}
}

func (a *App) tableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "table [name]",
		Short: "Print the rows of one snapshot table as JSON lines, or list the tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				names, err := a.backend.SnapshotTables(cmd.Context())
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(names)
				}
				for _, n := range names {
					fmt.Fprintln(a.out, n)
				}
				return nil
			}

			rows, err := a.backend.SnapshotTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(rows)
			}
			return a.printRows(rows)
		},
	}
}
