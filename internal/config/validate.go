package config

import (
	"errors"
	"fmt"
)

// Validate checks enumerations and numeric bounds.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine != EngineSQLite && c.Engine != EngineDuckDB {
		errs = append(errs, fmt.Errorf("engine must be %q or %q, got %q", EngineSQLite, EngineDuckDB, c.Engine))
	}
	if c.Mode != ModeSnapshot && c.Mode != ModeDirect {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeSnapshot, ModeDirect, c.Mode))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.SinkBuffer <= 0 {
		errs = append(errs, fmt.Errorf("sink buffer must be positive, got %d", c.SinkBuffer))
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("retention days must be positive, got %d", c.RetentionDays))
	}
	if c.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("busy timeout must not be negative, got %s", c.BusyTimeout))
	}
	return errors.Join(errs...)
}
