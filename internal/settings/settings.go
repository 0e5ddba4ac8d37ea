// Package settings persists the user-editable dashboard settings
// (decryption key, employee identifier and source override) as JSON in the
// application data directory.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/filex"
	"github.com/robiparvez/activity-tracker-desktop-app/internal/logging"
)

// Settings is the persisted configuration.
type Settings struct {
	DecryptionKey string `json:"decryptionKey"`
	EmployeeID    string `json:"employeeId"`
	DBPath        string `json:"dbPath,omitempty"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	DecryptionKey *string `json:"decryptionKey,omitempty"`
	EmployeeID    *string `json:"employeeId,omitempty"`
	DBPath        *string `json:"dbPath,omitempty"`
}

// Apply returns s with the non-nil fields of p applied.
func (p Patch) Apply(s Settings) Settings {
	if p.DecryptionKey != nil {
		s.DecryptionKey = *p.DecryptionKey
	}
	if p.EmployeeID != nil {
		s.EmployeeID = *p.EmployeeID
	}
	if p.DBPath != nil {
		s.DBPath = *p.DBPath
	}
	return s
}

// Store reads and writes settings at a fixed path. Updates are serialized
// within the process.
type Store struct {
	path   string
	logger logging.Logger
	mu     sync.Mutex
}

func NewStore(path string, logger logging.Logger) *Store {
	return &Store{path: path, logger: logger.With("module", "settings")}
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Get returns the stored settings, or defaults when the file is missing or
// unreadable.
func (s *Store) Get(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

func (s *Store) read(ctx context.Context) Settings {
	var out Settings

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out
	}
	if err != nil {
		s.logger.Warn(ctx, "read settings, using defaults", "path", s.path, "error", err)
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn(ctx, "parse settings, using defaults", "path", s.path, "error", err)
		return Settings{}
	}
	return out
}

// Set merges p into the stored settings and persists the result.
func (s *Store) Set(ctx context.Context, p Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Apply(s.read(ctx))
	if err := s.write(next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

func (s *Store) write(v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Initialize fills unset fields and persists them when anything changed:
// the employee identifier from hostname, and the decryption key from the
// trimmed content of keyFile. Detection failures are logged and skipped.
func (s *Store) Initialize(ctx context.Context, hostname func() (string, error), keyFile string) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.read(ctx)
	updated := false

	if cur.EmployeeID == "" && hostname != nil {
		if h, err := hostname(); err != nil {
			s.logger.Warn(ctx, "detect hostname", "error", err)
		} else if h != "" {
			cur.EmployeeID = h
			updated = true
			s.logger.Info(ctx, "employee id detected from hostname", "employee_id", h)
		}
	}

	if cur.DecryptionKey == "" && keyFile != "" {
		key, err := os.ReadFile(keyFile)
		switch {
		case err != nil:
			s.logger.Warn(ctx, "agent key not found or inaccessible", "path", keyFile)
		case strings.TrimSpace(string(key)) != "":
			cur.DecryptionKey = strings.TrimSpace(string(key))
			updated = true
			s.logger.Info(ctx, "decryption key detected from agent key file", "path", keyFile)
		}
	}

	if updated {
		if err := s.write(cur); err != nil {
			return Settings{}, err
		}
	}
	return cur, nil
}
