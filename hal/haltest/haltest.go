// Package haltest provides single-threaded fakes of the hal interfaces for
// kernel and app tests.
package haltest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"watch/hal"
)

// CPU counts critical sections and idle waits. OnWait, when set, runs inside
// WaitForInterrupt the way a pending interrupt would.
type CPU struct {
	Depth    int
	Sections int
	Waits    int
	OnWait   func()
}

func (c *CPU) DisableInterrupts() hal.IRQState {
	c.Depth++
	c.Sections++
	return hal.IRQState(c.Depth - 1)
}

func (c *CPU) RestoreInterrupts(state hal.IRQState) {
	if int(state) != c.Depth-1 {
		panic(fmt.Sprintf("haltest: restore state %d at depth %d", state, c.Depth))
	}
	c.Depth--
}

func (c *CPU) WaitForInterrupt() {
	if c.Depth == 0 {
		panic("haltest: WaitForInterrupt with interrupts enabled")
	}
	c.Waits++
	if c.OnWait != nil {
		c.OnWait()
	}
}

// Interrupts is an interrupt controller whose lines fire on demand.
type Interrupts struct {
	enabled [hal.NumIRQ]bool
	handler func(hal.IRQ)
	// EnableErr, when set, is returned by Enable.
	EnableErr error
}

func (ic *Interrupts) Enable(line hal.IRQ) error {
	if ic.EnableErr != nil {
		return ic.EnableErr
	}
	if line >= hal.NumIRQ {
		return errors.New("haltest: bad line")
	}
	ic.enabled[line] = true
	return nil
}

func (ic *Interrupts) Disable(line hal.IRQ) {
	if line < hal.NumIRQ {
		ic.enabled[line] = false
	}
}

func (ic *Interrupts) SetHandler(fn func(line hal.IRQ)) { ic.handler = fn }

func (ic *Interrupts) Enabled(line hal.IRQ) bool {
	return line < hal.NumIRQ && ic.enabled[line]
}

// Fire delivers line if it is enabled and reports whether it was.
func (ic *Interrupts) Fire(line hal.IRQ) bool {
	if !ic.Enabled(line) || ic.handler == nil {
		return false
	}
	ic.handler(line)
	return true
}

// TickTimer is a timer whose overflows are produced by Tick.
type TickTimer struct {
	IC   *Interrupts
	Line hal.IRQ

	Prescaler, Reload uint32
	Running           bool
	Resets            int

	update  bool
	capture bool
}

func (t *TickTimer) Reset() {
	*t = TickTimer{IC: t.IC, Line: t.Line, Resets: t.Resets + 1}
}

func (t *TickTimer) Configure(prescaler, reload uint32) error {
	if prescaler > 0xFFFF || reload > 0xFFFF {
		return errors.New("haltest: 16-bit timer")
	}
	t.Prescaler, t.Reload = prescaler, reload
	return nil
}

func (t *TickTimer) Start()               { t.Running = true }
func (t *TickTimer) Stop()                { t.Running = false }
func (t *TickTimer) UpdatePending() bool  { return t.update }
func (t *TickTimer) ClearUpdate()         { t.update = false }
func (t *TickTimer) ClockHz() uint32      { return 72_000_000 }
func (t *TickTimer) CapturePending() bool { return t.capture }

// Tick overflows the timer n times, raising the line after each overflow.
func (t *TickTimer) Tick(n int) {
	for i := 0; i < n; i++ {
		if !t.Running {
			return
		}
		t.update = true
		t.IC.Fire(t.Line)
	}
}

// Capture raises the line for a capture/compare event only.
func (t *TickTimer) Capture() {
	t.capture = true
	t.IC.Fire(t.Line)
}

// Watchdog counts kicks.
type Watchdog struct {
	Timeout time.Duration
	Started bool
	Kicks   int
}

func (w *Watchdog) Configure(timeout time.Duration) error {
	if timeout <= 0 {
		return errors.New("haltest: bad timeout")
	}
	w.Timeout = timeout
	return nil
}

func (w *Watchdog) Start() error {
	if w.Timeout == 0 {
		return errors.New("haltest: watchdog not configured")
	}
	w.Started = true
	return nil
}

func (w *Watchdog) Update() { w.Kicks++ }

// Backup is a bank of ten backup registers.
type Backup struct {
	Regs [10]uint16
}

func (b *Backup) Len() int { return len(b.Regs) }

func (b *Backup) Load(i int) uint16 {
	if i < 0 || i >= len(b.Regs) {
		return 0
	}
	return b.Regs[i]
}

func (b *Backup) Store(i int, v uint16) {
	if i >= 0 && i < len(b.Regs) {
		b.Regs[i] = v
	}
}

// ResetFlags holds latched reset cause bits.
type ResetFlags struct {
	Bits uint32
}

func (r *ResetFlags) Flags() uint32 { return r.Bits }
func (r *ResetFlags) Clear()        { r.Bits = 0 }

// Logger records every line. It also implements hal.LevelLogger.
type Logger struct {
	mu    sync.Mutex
	Lines []string
}

func (l *Logger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, s)
}

func (l *Logger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *Logger) WriteLevel(level hal.LogLevel, component, msg string) {
	if component != "" {
		msg = component + ": " + msg
	}
	l.WriteLineString("<" + level.String() + "> " + msg)
}

// Contains reports whether any line contains substr.
func (l *Logger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.Lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// PlainLogger records lines without level information.
type PlainLogger struct {
	Lines []string
}

func (l *PlainLogger) WriteLineString(s string) { l.Lines = append(l.Lines, s) }
func (l *PlainLogger) WriteLineBytes(b []byte)  { l.WriteLineString(string(b)) }
