// Package settings persists the runtime configuration document: debounce
// interval, retention policy, and mirror config. Writes go through
// github.com/google/renameio for atomic temp-file-rename rather than
// hand-rolling os.CreateTemp plus os.Rename.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio"

	"github.com/confvault/confvault/pkg/core"
)

// Filename is the settings document's name at the config root.
const Filename = "confvault-settings.json"

// wireShape mirrors core.Settings' JSON fields plus an Extra bucket used to
// round-trip unknown fields untouched.
type wireShape struct {
	DebounceSeconds int                `json:"debounce_seconds"`
	RetentionOn     bool               `json:"retention_enabled"`
	RetentionValue  int                `json:"retention_value"`
	RetentionUnit   core.RetentionUnit `json:"retention_unit"`
	Mirror          core.MirrorConfig  `json:"mirror"`
}

// Store loads and atomically persists Settings at a fixed path.
type Store struct {
	path string

	mu       sync.RWMutex
	settings core.Settings
}

// Open loads the document at <root>/Filename, seeding documented defaults
// if it does not yet exist.
func Open(root string) (*Store, error) {
	s := &Store{path: root + string(os.PathSeparator) + Filename}
	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.settings = core.DefaultSettings()
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var shape wireShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}

	var extra map[string]json.RawMessage
	if err := json.Unmarshal(raw, &extra); err == nil {
		delete(extra, "debounce_seconds")
		delete(extra, "retention_enabled")
		delete(extra, "retention_value")
		delete(extra, "retention_unit")
		delete(extra, "mirror")
		if len(extra) > 0 {
			if b, mErr := json.Marshal(extra); mErr == nil {
				s.settings.Extra = b
			}
		}
	}

	s.settings.DebounceSeconds = shape.DebounceSeconds
	s.settings.RetentionOn = shape.RetentionOn
	s.settings.RetentionValue = shape.RetentionValue
	s.settings.RetentionUnit = shape.RetentionUnit
	s.settings.Mirror = shape.Mirror
	return nil
}

// Get returns a snapshot copy of the current settings.
func (s *Store) Get() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Validate enforces the documented constraints: debounce interval >= 0,
// retention value >= 1, retention unit and mirror cadence from their closed
// enumerations.
func Validate(s core.Settings) error {
	if s.DebounceSeconds < 0 {
		return fmt.Errorf("debounce_seconds must be >= 0, got %d", s.DebounceSeconds)
	}
	if s.RetentionValue < 1 {
		return fmt.Errorf("retention_value must be >= 1, got %d", s.RetentionValue)
	}
	if !s.RetentionUnit.Valid() {
		return fmt.Errorf("retention_unit %q is not one of hours/days/weeks/months", s.RetentionUnit)
	}
	if !s.Mirror.Cadence.Valid() {
		return fmt.Errorf("mirror cadence %q is not one of manual/every-commit/hourly/daily", s.Mirror.Cadence)
	}
	return nil
}

// Update validates and atomically persists next, merging forward any
// unknown fields this version does not recognize.
func (s *Store) Update(next core.Settings) error {
	if err := Validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	extra := s.settings.Extra

	merged := map[string]json.RawMessage{}
	if len(extra) > 0 {
		_ = json.Unmarshal(extra, &merged)
	}

	shape := wireShape{
		DebounceSeconds: next.DebounceSeconds,
		RetentionOn:     next.RetentionOn,
		RetentionValue:  next.RetentionValue,
		RetentionUnit:   next.RetentionUnit,
		Mirror:          next.Mirror,
	}
	known, err := json.Marshal(shape)
	if err != nil {
		return err
	}
	var knownFields map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownFields); err != nil {
		return err
	}
	for k, v := range knownFields {
		merged[k] = v
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, out, 0644); err != nil {
		return err
	}

	// Preserve the unknown fields across this update so a later Update call
	// (which seeds from s.settings.Extra) still carries them forward.
	for k := range knownFields {
		delete(merged, k)
	}
	if len(merged) > 0 {
		if b, mErr := json.Marshal(merged); mErr == nil {
			next.Extra = b
		}
	} else {
		next.Extra = nil
	}

	s.settings = next
	return nil
}
