package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/bridge"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/config"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/dashboard"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
	"github.com/spf13/cobra"
)

// BackendFactory builds the backend for one command invocation.
type BackendFactory func(ctx context.Context, a *App) (Backend, error)

// App holds the state shared by all commands of one invocation.
type App struct {
	cfg     *config.Config
	logger  logging.Logger
	closer  io.Closer
	backend Backend

	in  io.Reader
	out io.Writer

	newBackend BackendFactory

	// persistent flags
	configFile string
	dataDir    string
	sourcePath string
	engine     string
	mode       string
	logLevel   string
	remote     string
	token      string
	asJSON     bool
}

// Option customizes Execute.
type Option func(*App)

// WithBackend replaces backend construction, which tests use to run the
// commands against a fake.
func WithBackend(f BackendFactory) Option {
	return func(a *App) { a.newBackend = f }
}

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// Execute runs the command line args and releases the backend and log
// file afterwards, whether or not the command failed.
func Execute(ctx context.Context, args []string, opts ...Option) error {
	root, a := newRootCommand(opts...)
	defer a.teardown()

	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(opts ...Option) (*cobra.Command, *App) {
	a := &App{in: os.Stdin, out: os.Stdout, newBackend: defaultBackend}
	for _, o := range opts {
		o(a)
	}

	root := &cobra.Command{
		Use:   "activity",
		Short: "Inspect ActivityTracker data",
		Long: `activity exports the local ActivityTracker database to a snapshot and
reports active, inactive and AFK time per day or over a range of days.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "JSON runtime config file")
	pf.StringVar(&a.dataDir, "data", "", "application data directory")
	pf.StringVar(&a.sourcePath, "source", "", "ActivityTracker database path")
	pf.StringVar(&a.engine, "engine", "", "table provider: sqlite or duckdb")
	pf.StringVar(&a.mode, "mode", "", "query mode: snapshot or direct")
	pf.StringVar(&a.logLevel, "log-level", "", "log level")
	pf.StringVar(&a.remote, "remote", "", "address of a running activityd")
	pf.StringVar(&a.token, "token", os.Getenv("ACTIVITY_TOKEN"), "activityd session token")
	pf.BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.discoverCmd(),
		a.exportCmd(),
		a.cancelCmd(),
		a.refreshCmd(),
		a.datesCmd(),
		a.dayCmd(),
		a.rangeCmd(),
		a.daysCmd(),
		a.configCmd(),
		a.tableCmd(),
	)
	return root, a
}

// configArgs turns the changed persistent flags into arguments for
// config.Load, so the CLI shares the daemon's defaults, JSON overlay and
// flag precedence.
func (a *App) configArgs(cmd *cobra.Command) []string {
	var args []string
	for _, f := range []struct{ flag, arg, value string }{
		{"config", "-c", a.configFile},
		{"data", "-data", a.dataDir},
		{"source", "-source", a.sourcePath},
		{"engine", "-engine", a.engine},
		{"mode", "-mode", a.mode},
		{"log-level", "-log-level", a.logLevel},
	} {
		if cmd.Flags().Changed(f.flag) {
			args = append(args, f.arg, f.value)
		}
	}
	return args
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configArgs(cmd))
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closer, err := logging.New(logging.Options{Dir: cfg.LogDir(), Level: cfg.LogLevel, Stderr: cfg.LogStderr})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logger = logger.With("cmd", cmd.CommandPath())
	a.closer = closer

	a.backend, err = a.newBackend(cmd.Context(), a)
	return err
}

func (a *App) teardown() {
	if a.backend != nil {
		_ = a.backend.Close()
		a.backend = nil
	}
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}

func defaultBackend(_ context.Context, a *App) (Backend, error) {
	if a.remote != "" {
		return bridge.NewClient(a.remote, a.token)
	}
	svc := dashboard.New(a.cfg, a.logger, dashboard.Options{})
	return &local{svc: svc, onProgress: a.printProgress}, nil
}
