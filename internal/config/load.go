//go:build !tinygo

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"watch/hal"
)

// file is the on-disk shape. Durations are strings ("1s", "500ms"); empty
// fields keep their defaults.
type file struct {
	LogLevel string `yaml:"log_level"`
	Watchdog struct {
		Enabled *bool  `yaml:"enabled"`
		Period  string `yaml:"period"`
	} `yaml:"watchdog"`
	Sched struct {
		Idle             *bool  `yaml:"idle"`
		Profile          *bool  `yaml:"profile"`
		ProfilePeriod    string `yaml:"profile_period"`
		ProfileIterative *bool  `yaml:"profile_iterative"`
	} `yaml:"sched"`
	Watch struct {
		Alarm struct {
			Enabled *bool  `yaml:"enabled"`
			Time    string `yaml:"time"`
			Ring    string `yaml:"ring"`
		} `yaml:"alarm"`
		TempPeriod string  `yaml:"temp_period"`
		Heartbeat  string  `yaml:"heartbeat"`
		Greeting   *string `yaml:"greeting"`
	} `yaml:"watch"`
	Debug struct {
		StallAfter string `yaml:"stall_after"`
		StallTask  string `yaml:"stall_task"`
	} `yaml:"debug"`
}

// Load reads the YAML file at path over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if err := f.apply(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (f *file) apply(cfg *Config) error {
	if f.LogLevel != "" {
		lvl, ok := hal.ParseLogLevel(f.LogLevel)
		if !ok {
			return fmt.Errorf("log_level: unknown level %q", f.LogLevel)
		}
		cfg.LogLevel = lvl
	}

	setBool(&cfg.Watchdog.Enabled, f.Watchdog.Enabled)
	setBool(&cfg.Sched.Idle, f.Sched.Idle)
	setBool(&cfg.Sched.Profile, f.Sched.Profile)
	setBool(&cfg.Sched.ProfileIterative, f.Sched.ProfileIterative)
	setBool(&cfg.Watch.Alarm.Enabled, f.Watch.Alarm.Enabled)
	if f.Watch.Greeting != nil {
		cfg.Watch.Greeting = *f.Watch.Greeting
	}
	if f.Debug.StallTask != "" {
		cfg.Debug.StallTask = f.Debug.StallTask
	}

	durations := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"watchdog.period", f.Watchdog.Period, &cfg.Watchdog.Period},
		{"sched.profile_period", f.Sched.ProfilePeriod, &cfg.Sched.ProfilePeriod},
		{"watch.alarm.ring", f.Watch.Alarm.Ring, &cfg.Watch.Alarm.Ring},
		{"watch.temp_period", f.Watch.TempPeriod, &cfg.Watch.TempPeriod},
		{"watch.heartbeat", f.Watch.Heartbeat, &cfg.Watch.Heartbeat},
		{"debug.stall_after", f.Debug.StallAfter, &cfg.Debug.StallAfter},
	}
	for _, d := range durations {
		v, err := ParseDurationOrDefault(d.path, d.raw, *d.dst)
		if err != nil {
			return err
		}
		*d.dst = v
	}

	if t := strings.TrimSpace(f.Watch.Alarm.Time); t != "" {
		h, m, err := ParseClock(t)
		if err != nil {
			return fmt.Errorf("watch.alarm.time: %w", err)
		}
		cfg.Watch.Alarm.Hour, cfg.Watch.Alarm.Minute = h, m
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// ParseDurationField parses raw; empty means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty input.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return ParseDurationField(path, raw)
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
