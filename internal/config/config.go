// Package config holds the firmware build/boot settings. Defaults match the
// release build; the host can override them from a YAML file.
package config

import (
	"errors"
	"fmt"
	"time"

	"watch/hal"
)

// Config is the complete firmware configuration.
type Config struct {
	LogLevel hal.LogLevel
	Watchdog Watchdog
	Sched    Sched
	Watch    Watch
	Debug    Debug
}

// Watchdog configures the independent watchdog.
type Watchdog struct {
	Enabled bool
	// Period is the hardware timeout. Every participant reports well within
	// it.
	Period time.Duration
}

// Sched configures the scheduler.
type Sched struct {
	// Idle sleeps the CPU when no task is ready; otherwise the loop polls.
	Idle bool
	// Profile turns on the scheduler profiler, printed every ProfilePeriod.
	Profile       bool
	ProfilePeriod time.Duration
	// ProfileIterative restarts the measurement after every report.
	ProfileIterative bool
}

// Watch configures the watch application.
type Watch struct {
	Alarm Alarm
	// TempPeriod is the time between two temperature conversions; at least
	// TempConversion.
	TempPeriod time.Duration
	// Heartbeat is the LED blink half-period; 0 disables the heartbeat.
	Heartbeat time.Duration
	// Greeting is shown on the display during boot.
	Greeting string
}

// Alarm is the daily alarm.
type Alarm struct {
	Enabled bool
	Hour    int
	Minute  int
	// Ring is how long the buzzer beeps unless silenced.
	Ring time.Duration
}

// Debug holds fault injection knobs.
type Debug struct {
	// StallAfter, when non-zero, makes StallTask stop reporting to the
	// watchdog that long after boot.
	StallAfter time.Duration
	StallTask  string
}

const (
	// TempConversion is the worst case DS18B20 12-bit conversion time.
	TempConversion = 750 * time.Millisecond
	// ClockPeriod is the refresh period of the clock screen. The clock task
	// reports to the watchdog at this rate.
	ClockPeriod = 250 * time.Millisecond
)

// Default returns the release configuration.
func Default() Config {
	return Config{
		LogLevel: hal.LogInfo,
		Watchdog: Watchdog{
			Enabled: true,
			Period:  1000 * time.Millisecond,
		},
		Sched: Sched{
			Idle:          true,
			ProfilePeriod: 5000 * time.Millisecond,
		},
		Watch: Watch{
			Alarm: Alarm{
				Hour:   7,
				Minute: 30,
				Ring:   30 * time.Second,
			},
			TempPeriod: 5 * time.Second,
			Heartbeat:  500 * time.Millisecond,
			Greeting:   "Poc Watch",
		},
		Debug: Debug{StallTask: "clock"},
	}
}

var ErrInvalid = errors.New("config: invalid")

// Validate checks ranges. It reports the first problem found.
func (c Config) Validate() error {
	if c.LogLevel > hal.LogDebug {
		return fmt.Errorf("%w: log level %d", ErrInvalid, c.LogLevel)
	}
	if c.Watchdog.Enabled {
		// The IWDG reaches 26 s at the slowest prescaler. Every participant
		// must report at least twice per period.
		if c.Watchdog.Period < 2*ClockPeriod || c.Watchdog.Period > 26*time.Second {
			return fmt.Errorf("%w: watchdog period %v out of [%v, 26s]", ErrInvalid, c.Watchdog.Period, 2*ClockPeriod)
		}
		if 2*c.Watch.Heartbeat > c.Watchdog.Period {
			return fmt.Errorf("%w: heartbeat %v too slow for watchdog period %v", ErrInvalid, c.Watch.Heartbeat, c.Watchdog.Period)
		}
	}
	if c.Sched.Profile && c.Sched.ProfilePeriod < time.Second {
		return fmt.Errorf("%w: profiler period %v below 1s", ErrInvalid, c.Sched.ProfilePeriod)
	}
	a := c.Watch.Alarm
	if a.Hour < 0 || a.Hour > 23 || a.Minute < 0 || a.Minute > 59 {
		return fmt.Errorf("%w: alarm time %02d:%02d", ErrInvalid, a.Hour, a.Minute)
	}
	if a.Ring <= 0 {
		return fmt.Errorf("%w: alarm ring %v", ErrInvalid, a.Ring)
	}
	if c.Watch.TempPeriod < TempConversion {
		return fmt.Errorf("%w: temperature period %v below conversion time %v", ErrInvalid, c.Watch.TempPeriod, TempConversion)
	}
	if c.Watch.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat %v", ErrInvalid, c.Watch.Heartbeat)
	}
	if c.Debug.StallAfter < 0 {
		return fmt.Errorf("%w: stall after %v", ErrInvalid, c.Debug.StallAfter)
	}
	if c.Debug.StallAfter > 0 && c.Debug.StallTask == "" {
		return fmt.Errorf("%w: stall task not set", ErrInvalid)
	}
	return nil
}
