package config

import (
	"flag"
	"io"

	"github.com/robiparvez/activity-tracker-desktop-app/internal/flagx"
)

// Flags understood by parseFlags. Anything else in args is left for the
// caller.
var knownFlags = []string{
	"-data", "-source", "-key-file", "-engine", "-mode", "-busy",
	"-days", "-batch", "-buffer", "-a", "-secret", "-log-level", "-log-stderr",
}

// parseFlags populates Config fields from command-line flags.
//
//	-data string        application data directory
//	-source string      ActivityTracker database path
//	-key-file string    agent key file
//	-engine string      sqlite | duckdb
//	-mode string        snapshot | direct
//	-busy duration      source lock wait (e.g. 5s)
//	-days int           export window in days
//	-batch int          rows per progress batch
//	-buffer int         rows buffered ahead of the snapshot writer
//	-a string           bridge listen address
//	-secret string      bridge token secret
//	-log-level string   debug | info | warn | error
//	-log-stderr         also log to stderr
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "application data directory")
	fs.StringVar(&cfg.SourcePath, "source", cfg.SourcePath, "ActivityTracker database path")
	fs.StringVar(&cfg.KeyFile, "key-file", cfg.KeyFile, "agent key file")
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "table provider: sqlite or duckdb")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "query mode: snapshot or direct")
	fs.DurationVar(&cfg.BusyTimeout, "busy", cfg.BusyTimeout, "source lock wait")
	fs.IntVar(&cfg.RetentionDays, "days", cfg.RetentionDays, "export window in days")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "rows per progress batch")
	fs.IntVar(&cfg.SinkBuffer, "buffer", cfg.SinkBuffer, "rows buffered ahead of the snapshot writer")
	fs.StringVar(&cfg.BridgeAddr, "a", cfg.BridgeAddr, "bridge listen address")
	fs.StringVar(&cfg.BridgeSecret, "secret", cfg.BridgeSecret, "bridge token secret")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.LogStderr, "log-stderr", cfg.LogStderr, "also log to stderr")

	return fs.Parse(filtered)
}
