//go:build !tinygo

package hal

import (
	"io"
	"sync"
	"time"

	"tinygo.org/x/drivers/ds3231"
)

// HostConfig tunes the simulated board.
type HostConfig struct {
	// Out receives the console log. Defaults to stdout.
	Out     io.Writer
	NoColor bool
	// EchoLCD logs every LCD change; headless runs have no other view of it.
	EchoLCD bool
	// Console, when set, is read for button presses ("s", "n").
	Console io.Reader
	// MaxResets bounds the watchdog resets before the runner gives up.
	// Zero means unlimited.
	MaxResets int
	// Now is the RTC time source at power-on. Defaults to time.Now.
	Now func() time.Time
}

type hostHAL struct {
	board   *board
	logger  *hostLogger
	led     *hostLED
	gpio    GPIO
	cpu     *hostCPU
	tim     *hostTickTimer
	wdg     *hostWatchdog
	lcd     *hostLCD
	rtc     *ds3231.Device
	therm   Thermometer
	buzzer  *hostBuzzer
	buttons *hostButtons

	resetMu sync.Mutex
	onReset func()
}

// newHostHAL powers the MCU up on b. The battery domain of b is shared with
// earlier and later boots.
func newHostHAL(b *board, cfg HostConfig) *hostHAL {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := newHostLogger(cfg.Out, cfg.NoColor)
	cpu := newHostCPU()
	led := &hostLED{}
	rtc := ds3231.New(&hostI2C{rtc: b.rtc})

	h := &hostHAL{
		board:   b,
		logger:  logger,
		led:     led,
		cpu:     cpu,
		tim:     newHostTickTimer(cpu, IRQTickTimer),
		lcd:     newHostLCD(logger, cfg.EchoLCD),
		rtc:     &rtc,
		therm:   newDS18B20(newHostOneWire(now), nil),
		buzzer:  &hostBuzzer{logger: logger},
		buttons: newHostButtons(cpu, "SET", "NEXT"),
	}
	h.gpio = newPinSet(
		newLEDPin("LED", led),
		// DS3231 INT/SQW in 1 Hz square-wave mode.
		newSquareWave("SQW", time.Second, now),
	)
	h.wdg = newHostWatchdog(h.watchdogExpired)
	return h
}

func (h *hostHAL) Logger() Logger                  { return h.logger }
func (h *hostHAL) LED() LED                        { return h.led }
func (h *hostHAL) GPIO() GPIO                      { return h.gpio }
func (h *hostHAL) CPU() CPU                        { return h.cpu }
func (h *hostHAL) Interrupts() InterruptController { return h.cpu.ic }
func (h *hostHAL) TickTimer() TickTimer            { return h.tim }
func (h *hostHAL) Watchdog() Watchdog              { return h.wdg }
func (h *hostHAL) Backup() Backup                  { return &h.board.backup }
func (h *hostHAL) ResetFlags() ResetFlags          { return &h.board.reset }
func (h *hostHAL) Display() CharDisplay            { return h.lcd }
func (h *hostHAL) RTC() RTC                        { return h.rtc }
func (h *hostHAL) Thermometer() Thermometer        { return h.therm }
func (h *hostHAL) Buzzer() Buzzer                  { return h.buzzer }
func (h *hostHAL) Buttons() Buttons                { return h.buttons }

func (h *hostHAL) setResetHook(fn func()) {
	h.resetMu.Lock()
	h.onReset = fn
	h.resetMu.Unlock()
}

func (h *hostHAL) watchdogExpired() {
	h.board.watchdogReset()
	h.resetMu.Lock()
	fn := h.onReset
	h.resetMu.Unlock()
	if fn != nil {
		fn()
	}
}

// powerOff stops every free-running peripheral so nothing outlives the boot.
func (h *hostHAL) powerOff() {
	h.tim.Stop()
	h.wdg.halt()
	h.buzzer.Off()
	h.cpu.kick()
}

// hostLED keeps the heartbeat LED state; the window draws it.
type hostLED struct {
	mu sync.Mutex
	on bool
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = true
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
}

func (l *hostLED) isOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}
