package hal

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

// LogLevel mirrors the syslog severities used by the firmware console.
type LogLevel uint8

const (
	LogEmerg LogLevel = iota
	LogAlert
	LogCrit
	LogErr
	LogWarning
	LogNotice
	LogInfo
	LogDebug
)

var logLevelNames = [...]string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

func (l LogLevel) String() string {
	if int(l) < len(logLevelNames) {
		return logLevelNames[l]
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// ParseLogLevel accepts the syslog names ("err", "warning", ...) and a few
// common aliases.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogErr, true
	case "warn":
		return LogWarning, true
	case "emergency":
		return LogEmerg, true
	case "critical":
		return LogCrit, true
	}
	for i, name := range logLevelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return LogLevel(i), true
		}
	}
	return 0, false
}

// LevelLogger is implemented by sinks that keep the severity structured
// instead of flattening it into the line.
type LevelLogger interface {
	Logger
	WriteLevel(level LogLevel, component, msg string)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

var (
	ErrNotImplemented = errors.New("not implemented")

	// ErrWatchdogReset is the cause attached to a system stopped by the
	// (simulated) independent watchdog.
	ErrWatchdogReset = errors.New("watchdog reset")
)

// IRQ is an interrupt line number in the NVIC vector table.
type IRQ uint16

const (
	// IRQButtons is EXTI9_5, shared by the SET and NEXT buttons.
	IRQButtons IRQ = 23
	// IRQTickTimer is TIM2, the software timer base.
	IRQTickTimer IRQ = 28

	// NumIRQ bounds the interrupt line numbers.
	NumIRQ = 64
)

// IRQState is the interrupt mask saved by CPU.DisableInterrupts.
type IRQState uintptr

// CPU exposes the interrupt mask and the low-power wait.
type CPU interface {
	// DisableInterrupts masks interrupts and returns the previous state.
	DisableInterrupts() IRQState
	// RestoreInterrupts restores a state saved by DisableInterrupts.
	RestoreInterrupts(state IRQState)
	// WaitForInterrupt sleeps until an interrupt is pending. It is called
	// with interrupts disabled; a pending interrupt wakes it immediately.
	WaitForInterrupt()
}

// InterruptController arms and disarms interrupt lines and delivers them to
// a single sink.
type InterruptController interface {
	Enable(line IRQ) error
	Disable(line IRQ)
	// SetHandler installs the function called (in interrupt context) for
	// every enabled line that fires.
	SetHandler(fn func(line IRQ))
}

// TickTimer is a general purpose up-counting timer with an update interrupt.
type TickTimer interface {
	// Reset puts the peripheral back into its power-on state.
	Reset()
	Configure(prescaler, reload uint32) error
	Start()
	Stop()
	// UpdatePending reports whether the overflow (update) flag is set.
	UpdatePending() bool
	ClearUpdate()
	// ClockHz is the timer input clock before the prescaler.
	ClockHz() uint32
}

// Watchdog is the independent hardware watchdog.
type Watchdog interface {
	Configure(timeout time.Duration) error
	Start() error
	// Update reloads the watchdog counter ("kick").
	Update()
}

// Backup is a small bank of registers that survive a system reset.
type Backup interface {
	Len() int
	Load(i int) uint16
	Store(i int, v uint16)
}

// Reset flags, in the order the clock controller reports them.
const (
	ResetFlagPin uint32 = 1 << iota
	ResetFlagPowerOn
	ResetFlagSoftware
	ResetFlagIndependentWatchdog
	ResetFlagWindowWatchdog
	ResetFlagLowPower
)

// ResetFlags exposes the latched reset cause flags.
type ResetFlags interface {
	Flags() uint32
	Clear()
}

// CharDisplay is a character LCD. The method set matches the HD44780 driver.
type CharDisplay interface {
	Size() (w, h int16)
	SetCursor(x, y uint8)
	Write(data []byte) (int, error)
	ClearDisplay()
	Display() error
}

// RTC is a battery-backed real-time clock.
type RTC interface {
	ReadTime() (time.Time, error)
	SetTime(t time.Time) error
	// ReadTemperature returns the die temperature in milli-degrees Celsius.
	ReadTemperature() (int32, error)
}

// Thermometer is a two-phase temperature sensor: request a conversion, then
// read it back once it is done (up to 750 ms later).
type Thermometer interface {
	RequestTemperature()
	// ReadTemperature returns milli-degrees Celsius.
	ReadTemperature() (int32, error)
}

// Buzzer is a piezo buzzer on a GPIO pin.
type Buzzer interface {
	On() error
	Off() error
	Toggle() error
}

// Buttons are push buttons wired to edge-triggered external interrupt lines.
type Buttons interface {
	Count() int
	Name(i int) string
	// Line returns the interrupt line the button raises.
	Line(i int) IRQ
	// TakePending returns and clears the edge pending flag of button i.
	TakePending(i int) bool
}

// HAL provides the only contact point between the kernel and the board.
type HAL interface {
	Logger() Logger
	LED() LED
	GPIO() GPIO
	CPU() CPU
	Interrupts() InterruptController
	TickTimer() TickTimer
	Watchdog() Watchdog
	Backup() Backup
	ResetFlags() ResetFlags
	Display() CharDisplay
	RTC() RTC
	Thermometer() Thermometer
	Buzzer() Buzzer
	Buttons() Buttons
}
