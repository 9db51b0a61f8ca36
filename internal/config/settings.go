package config

import (
	"fmt"
	"time"
)

// Settings is the typed scheduling configuration consumed by the updater.
// It is a value type; the updater swaps the whole value on reconfiguration
// so in-flight cycles keep the settings they started with.
type Settings struct {
	Enabled       bool
	CheckInterval time.Duration
	InitialDelay  time.Duration
	StaggerDelay  time.Duration
}

// DefaultSettings returns the scheduling defaults: hourly checks, a 30s
// grace period for registrations to settle before the first cycle, and 10s
// between repository groups.
func DefaultSettings() Settings {
	return Settings{
		Enabled:       true,
		CheckInterval: time.Hour,
		InitialDelay:  30 * time.Second,
		StaggerDelay:  10 * time.Second,
	}
}

// Settings converts the raw YAML fields into typed settings, merge-applied
// over DefaultSettings: only fields present in the config override defaults.
func (u UpdatesConfig) Settings() (Settings, error) {
	s := DefaultSettings()
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	var err error
	if s.CheckInterval, err = mergeDuration("updates.check_interval", u.CheckInterval, s.CheckInterval); err != nil {
		return s, err
	}
	if s.InitialDelay, err = mergeDuration("updates.initial_delay", u.InitialDelay, s.InitialDelay); err != nil {
		return s, err
	}
	if s.StaggerDelay, err = mergeDuration("updates.stagger_delay", u.StaggerDelay, s.StaggerDelay); err != nil {
		return s, err
	}
	return s, nil
}

func mergeDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return fallback, fmt.Errorf("%s: duration must not be negative", field)
	}
	return d, nil
}
