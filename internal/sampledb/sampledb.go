// Package sampledb writes sample ActivityTracker databases: the tracker's
// schema, a settings table and a few weeks of encrypted activity sessions
// for one or more employees. The generator is deterministic for a given
// seed apart from the random IVs of the encrypted values.
package sampledb

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/common"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/cryptox"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dbx"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/filex"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/sampledb/migrations"
	_ "modernc.org/sqlite"
)

const (
	AgentVersion = "2.4.1"

	timestampLayout = "2006-01-02T15:04:05"
	afkShare        = 0.2
)

var apps = []struct{ name, title string }{
	{"code.exe", "main.go - activity-dashboard"},
	{"chrome.exe", "Pull requests"},
	{"outlook.exe", "Inbox"},
	{"teams.exe", "Daily standup"},
	{"excel.exe", "Q3 timesheet.xlsx"},
}

// Options controls Generate.
type Options struct {
	Path string
	// Key is the Fernet key for the encrypted columns. Generated when empty
	// unless Plaintext is set.
	Key string
	// KeyFile, when set, receives the key the way ActivityTracker stores it.
	KeyFile   string
	Plaintext bool
	Overwrite bool

	Employee string
	Others   []string
	Days     int
	Sessions int
	Seed     int64
	Now      time.Time
}

func (o *Options) defaults() {
	if o.Employee == "" {
		o.Employee = "SAMPLE-HOST"
	}
	if o.Days <= 0 {
		o.Days = 14
	}
	if o.Sessions <= 0 {
		o.Sessions = 12
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
}

// Summary describes a generated database.
type Summary struct {
	Path string
	Key  string
	Rows int
	From string
	To   string
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations creates the tracker schema on db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

type session struct {
	id       string
	employee string
	start    time.Time
	seconds  int
	afk      bool
	app      int
}

// plan lays out the sessions for every employee and day, oldest first.
func plan(opts Options) []session {
	rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)>>1|1))
	employees := append([]string{opts.Employee}, opts.Others...)

	y, m, d := opts.Now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, opts.Now.Location())

	var out []session
	for back := opts.Days - 1; back >= 0; back-- {
		day := today.AddDate(0, 0, -back)
		for _, emp := range employees {
			cursor := day.Add(8*time.Hour + time.Duration(rng.IntN(90))*time.Minute)
			for range opts.Sessions {
				s := session{
					id:       uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d/%s/%d", opts.Seed, emp, len(out))).String(),
					employee: emp,
					start:    cursor,
					seconds:  300 + rng.IntN(2400),
					afk:      rng.Float64() < afkShare,
					app:      rng.IntN(len(apps)),
				}
				out = append(out, s)
				cursor = cursor.Add(time.Duration(s.seconds+rng.IntN(300)) * time.Second)
			}
		}
	}
	return out
}

// Generate writes a sample database at opts.Path.
func Generate(ctx context.Context, opts Options, logger logging.Logger) (Summary, error) {
	opts.defaults()
	log := logger.With("module", "sampledb")

	exists, err := filex.Exists(opts.Path)
	if err != nil {
		return Summary{}, err
	}
	if exists {
		if !opts.Overwrite {
			return Summary{}, fmt.Errorf("%s already exists", opts.Path)
		}
		if err := filex.RemoveIfExists(opts.Path); err != nil {
			return Summary{}, err
		}
	}
	if _, err := filex.EnsureDir(filepath.Dir(opts.Path)); err != nil {
		return Summary{}, err
	}

	key := opts.Key
	if !opts.Plaintext {
		if key == "" {
			key = cryptox.GenerateKey()
		}
		if _, _, err := cryptox.DecodeKey(key); err != nil {
			return Summary{}, err
		}
	}

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(opts.Path))
	if err != nil {
		return Summary{}, err
	}
	defer db.Close()

	if err := RunMigrations(ctx, db); err != nil {
		return Summary{}, fmt.Errorf("migrate sample database: %w", err)
	}

	sessions := plan(opts)
	seal := func(v string) (string, error) {
		if opts.Plaintext {
			return v, nil
		}
		return cryptox.Encrypt(v, key, opts.Now)
	}

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		settings := [][2]string{
			{"agent_version", AgentVersion},
			{common.IdentifierColumn, opts.Employee},
			{"tracking_interval", "60"},
		}
		for _, kv := range settings {
			if _, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
				return fmt.Errorf("insert setting %s: %w", kv[0], err)
			}
		}

		for _, s := range sessions {
			dur, err := seal(strconv.Itoa(s.seconds))
			if err != nil {
				return err
			}
			afk := "0"
			if s.afk {
				afk = "1"
			}
			if afk, err = seal(afk); err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `INSERT INTO activity_logs
				(id, employee_id, start_time, duration_seconds, is_afk, app_name, window_title)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.id, s.employee, s.start.Format(timestampLayout), dur, afk, apps[s.app].name, apps[s.app].title)
			if err != nil {
				return fmt.Errorf("insert session %s: %w", s.id, err)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if opts.KeyFile != "" && key != "" {
		if err := filex.WriteFileAtomic(opts.KeyFile, []byte(key+"\n"), 0o600); err != nil {
			return Summary{}, fmt.Errorf("write key file: %w", err)
		}
	}

	sum := Summary{Path: opts.Path, Key: key, Rows: len(sessions)}
	if len(sessions) > 0 {
		sum.From = sessions[0].start.Format(time.DateOnly)
		sum.To = sessions[len(sessions)-1].start.Format(time.DateOnly)
	}

	log.Info(ctx, "sample database written", "path", sum.Path, "rows", sum.Rows, "from", sum.From, "to", sum.To)
	return sum, nil
}
