// Package wdt kicks the hardware watchdog only while every registered
// periodic task keeps reporting.
//
// Each participant reports once per period. The checking task kicks the
// watchdog when all of them have reported since the previous kick. If any
// participant starves, the kicks stop and the hardware resets the MCU. With
// no participants at all the watchdog is never kicked.
package wdt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"watch/hal"
	"watch/kernel/sched"
)

const (
	// MaxEntries is the number of participants; one bit each.
	MaxEntries = 32
	// TaskName is the scheduler task that checks the reports.
	TaskName = "wdt_task"
)

// Handle identifies a participant: its bit position plus one.
type Handle uint8

var (
	ErrEmptyName     = errors.New("wdt: empty name")
	ErrDuplicateName = errors.New("wdt: duplicate name")
	ErrTableFull     = errors.New("wdt: table full")
	ErrInvalidHandle = errors.New("wdt: invalid handle")
)

// Tracker collects liveness reports and feeds the hardware watchdog.
type Tracker struct {
	s    *sched.Scheduler
	hw   hal.Watchdog
	task sched.TaskID

	names      [MaxEntries]string
	registered atomic.Uint32
	reported   atomic.Uint32
	kicks      atomic.Uint32

	backup hal.Backup
	stored uint32
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithBackup keeps the set of participants that have not reported yet in
// battery-backed registers, so it survives the reset a starving task
// causes. Read it back at boot with Starving.
func WithBackup(b hal.Backup) Option {
	return func(t *Tracker) { t.backup = b }
}

// New configures and starts the hardware watchdog with the given timeout and
// adds the checking task to s.
func New(s *sched.Scheduler, hw hal.Watchdog, period time.Duration, opts ...Option) (*Tracker, error) {
	t := &Tracker{s: s, hw: hw}
	for _, opt := range opts {
		opt(t)
	}
	if t.backup != nil {
		t.stored = Starving(t.backup)
	}

	if err := hw.Configure(period); err != nil {
		return nil, fmt.Errorf("wdt: configure %v: %w", period, err)
	}
	task, err := s.AddTask(TaskName, t.check, nil)
	if err != nil {
		return nil, fmt.Errorf("wdt: add task: %w", err)
	}
	t.task = task
	if err := hw.Start(); err != nil {
		s.RemoveTask(task)
		return nil, fmt.Errorf("wdt: start: %w", err)
	}
	return t, nil
}

// Register adds a participant. It must report before the next kick can
// happen.
func (t *Tracker) Register(name string) (Handle, error) {
	if name == "" {
		return 0, ErrEmptyName
	}
	slot := -1
	for i, n := range t.names {
		if n == "" {
			if slot < 0 {
				slot = i
			}
			continue
		}
		if n == name {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	if slot < 0 {
		return 0, ErrTableFull
	}

	t.names[slot] = name
	bit := uint32(1) << slot
	clearBits(&t.reported, bit)
	setBits(&t.registered, bit)
	return Handle(slot + 1), nil
}

// Unregister removes a participant.
func (t *Tracker) Unregister(h Handle) error {
	if h == 0 || int(h) > MaxEntries || t.names[h-1] == "" {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	bit := uint32(1) << (h - 1)
	clearBits(&t.registered, bit)
	clearBits(&t.reported, bit)
	t.names[h-1] = ""
	return nil
}

// Report attests that the participant h ran this period, and wakes the
// checking task. An unknown handle is a programming error and panics.
func (t *Tracker) Report(h Handle) {
	if h == 0 || int(h) > MaxEntries || t.names[h-1] == "" {
		panic("wdt: Report: invalid handle")
	}
	setBits(&t.reported, uint32(1)<<(h-1))
	t.s.MarkReady(t.task)
}

// Kick reloads the hardware watchdog unconditionally. Prefer reports.
func (t *Tracker) Kick() {
	t.hw.Update()
	t.kicks.Add(1)
}

// Kicks returns how many times the watchdog was reloaded.
func (t *Tracker) Kicks() uint32 { return t.kicks.Load() }

// Name returns the name of participant h, or "".
func (t *Tracker) Name(h Handle) string {
	if h == 0 || int(h) > MaxEntries {
		return ""
	}
	return t.names[h-1]
}

// Pending names the participants that have not reported since the last
// kick.
func (t *Tracker) Pending() []string {
	return t.namesOf(t.registered.Load() &^ t.reported.Load())
}

func (t *Tracker) namesOf(mask uint32) []string {
	var names []string
	for i := 0; i < MaxEntries; i++ {
		if mask&(1<<i) != 0 && t.names[i] != "" {
			names = append(names, t.names[i])
		}
	}
	return names
}

func (t *Tracker) check(any) {
	reg := t.registered.Load()
	rep := t.reported.Load()
	// Stray report bits of unregistered slots do not count.
	if reg != 0 && rep&reg == reg {
		t.Kick()
		// Only the reports seen here are consumed; one that raced in after
		// the load counts for the next period.
		clearBits(&t.reported, rep)
		t.remember(0)
		return
	}
	t.remember(reg &^ rep)
}

func setBits(w *atomic.Uint32, bits uint32) {
	for {
		old := w.Load()
		if old&bits == bits || w.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

func clearBits(w *atomic.Uint32, bits uint32) {
	for {
		old := w.Load()
		if old&bits == 0 || w.CompareAndSwap(old, old&^bits) {
			return
		}
	}
}
