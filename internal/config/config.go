// Package config handles runtime configuration for the dashboard daemon and
// CLI: defaults, an optional JSON overlay and command-line flags, applied in
// that order.
package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	EngineSQLite = "sqlite"
	EngineDuckDB = "duckdb"

	ModeSnapshot = "snapshot"
	ModeDirect   = "direct"
)

const (
	appDirName      = "ActivityDashboard"
	trackerDirName  = "ActivityTracker"
	sourceFileName  = "local_activity.db"
	agentKeyName    = "agent.key"
	snapshotName    = "activity.json"
	settingsName    = "app-config.json"
	logDirName      = "logs"
	defaultBatch    = 1000
	defaultSinkBuf  = 256
	defaultWindow   = 30
	defaultBusyWait = 5 * time.Second
)

// Config holds runtime settings.
//
// Fields:
//   - DataDir: application data directory (snapshot, settings, logs).
//   - SourcePath: ActivityTracker database; settings.dbPath overrides it.
//   - KeyFile: agent key file read by settings initialization.
//   - Engine: table provider, "sqlite" or "duckdb".
//   - Mode: "snapshot" reads the exported snapshot, "direct" queries the source.
//   - BusyTimeout: how long to wait on a locked source before SourceBusy.
//   - RetentionDays: rolling export window.
//   - BatchSize: rows between progress reports.
//   - SinkBuffer: rows buffered ahead of the snapshot writer.
//   - ProgressInterval: minimum spacing of batch progress reports.
//   - BridgeAddr / BridgeSecret / TokenTTL: gRPC bridge listener and session tokens.
//   - LogLevel / LogStderr: logger settings.
type Config struct {
	DataDir          string
	SourcePath       string
	KeyFile          string
	Engine           string
	Mode             string
	BusyTimeout      time.Duration
	RetentionDays    int
	BatchSize        int
	SinkBuffer       int
	ProgressInterval time.Duration
	BridgeAddr       string
	BridgeSecret     string
	TokenTTL         time.Duration
	LogLevel         string
	LogStderr        bool
}

// LoadDefaults populates c with defaults rooted at the user config directory
// (%AppData% on Windows).
func (c *Config) LoadDefaults() {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}

	c.DataDir = filepath.Join(base, appDirName)
	c.SourcePath = filepath.Join(base, trackerDirName, sourceFileName)
	c.KeyFile = filepath.Join(base, trackerDirName, agentKeyName)
	c.Engine = EngineSQLite
	c.Mode = ModeSnapshot
	c.BusyTimeout = defaultBusyWait
	c.RetentionDays = defaultWindow
	c.BatchSize = defaultBatch
	c.SinkBuffer = defaultSinkBuf
	c.ProgressInterval = 250 * time.Millisecond
	c.BridgeAddr = "127.0.0.1:50551"
	c.BridgeSecret = ""
	c.TokenTTL = 12 * time.Hour
	c.LogLevel = "info"
	c.LogStderr = false
}

// SnapshotPath is where the export writes its snapshot.
func (c *Config) SnapshotPath() string { return filepath.Join(c.DataDir, snapshotName) }

// SettingsPath is the persisted user settings file.
func (c *Config) SettingsPath() string { return filepath.Join(c.DataDir, settingsName) }

// LogDir receives rotating log files.
func (c *Config) LogDir() string { return filepath.Join(c.DataDir, logDirName) }

// Load builds a Config from defaults, the JSON file named by -c/-config in
// args, and the flags in args. Later sources take precedence.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args. It panics on invalid configuration.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}
