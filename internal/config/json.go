package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/flagx"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations use timex.Duration so
// they can be written as "5s" or as integer nanoseconds. Pointer fields
// distinguish "absent" from the zero value.
type JsonConfig struct {
	DataDir          *string         `json:"data_dir"`
	SourcePath       *string         `json:"source_path"`
	KeyFile          *string         `json:"key_file"`
	Engine           *string         `json:"engine"`
	Mode             *string         `json:"mode"`
	BusyTimeout      *timex.Duration `json:"busy_timeout"`
	RetentionDays    *int            `json:"retention_days"`
	BatchSize        *int            `json:"batch_size"`
	SinkBuffer       *int            `json:"sink_buffer"`
	ProgressInterval *timex.Duration `json:"progress_interval"`
	BridgeAddr       *string         `json:"bridge_addr"`
	BridgeSecret     *string         `json:"bridge_secret"`
	TokenTTL         *timex.Duration `json:"token_ttl"`
	LogLevel         *string         `json:"log_level"`
	LogStderr        *bool           `json:"log_stderr"`
}

// parseJson overlays cfg with the JSON file named by -c/-config in args.
// No file flag means no change.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.SourcePath, jc.SourcePath)
	setString(&cfg.KeyFile, jc.KeyFile)
	setString(&cfg.Engine, jc.Engine)
	setString(&cfg.Mode, jc.Mode)
	setString(&cfg.BridgeAddr, jc.BridgeAddr)
	setString(&cfg.BridgeSecret, jc.BridgeSecret)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.BusyTimeout != nil {
		cfg.BusyTimeout = jc.BusyTimeout.Duration
	}
	if jc.ProgressInterval != nil {
		cfg.ProgressInterval = jc.ProgressInterval.Duration
	}
	if jc.TokenTTL != nil {
		cfg.TokenTTL = jc.TokenTTL.Duration
	}
	if jc.RetentionDays != nil {
		cfg.RetentionDays = *jc.RetentionDays
	}
	if jc.BatchSize != nil {
		cfg.BatchSize = *jc.BatchSize
	}
	if jc.SinkBuffer != nil {
		cfg.SinkBuffer = *jc.SinkBuffer
	}
	if jc.LogStderr != nil {
		cfg.LogStderr = *jc.LogStderr
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
