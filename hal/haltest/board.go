package haltest

import (
	"errors"
	"time"

	"watch/hal"
)

// RTC returns T, or Err.
type RTC struct {
	T    time.Time
	Err  error
	Sets int
}

func (r *RTC) ReadTime() (time.Time, error) {
	if r.Err != nil {
		return time.Time{}, r.Err
	}
	return r.T, nil
}

func (r *RTC) SetTime(t time.Time) error {
	r.T = t
	r.Sets++
	return nil
}

func (r *RTC) ReadTemperature() (int32, error) { return 25250, r.Err }

// Thermometer converts to MilliC, or fails with Err.
type Thermometer struct {
	MilliC   int32
	Err      error
	Requests int
	Reads    int
}

func (t *Thermometer) RequestTemperature() { t.Requests++ }

func (t *Thermometer) ReadTemperature() (int32, error) {
	t.Reads++
	if t.Err != nil {
		return 0, t.Err
	}
	return t.MilliC, nil
}

// Display is a 16x2 character display.
type Display struct {
	ddram   [2][16]byte
	x, y    int
	Updates int
	Clears  int
}

func (d *Display) Size() (w, h int16) { return 16, 2 }

func (d *Display) SetCursor(x, y uint8) { d.x, d.y = int(x), int(y) }

func (d *Display) Write(data []byte) (int, error) {
	for _, b := range data {
		if d.y >= len(d.ddram) {
			return 0, errors.New("haltest: display overflow")
		}
		d.ddram[d.y][d.x] = b
		d.x++
		if d.x == len(d.ddram[0]) {
			d.x, d.y = 0, d.y+1
		}
	}
	return len(data), nil
}

func (d *Display) ClearDisplay() {
	for y := range d.ddram {
		for x := range d.ddram[y] {
			d.ddram[y][x] = ' '
		}
	}
	d.x, d.y = 0, 0
	d.Clears++
}

func (d *Display) Display() error {
	d.Updates++
	return nil
}

// Line returns row y as a string.
func (d *Display) Line(y int) string { return string(d.ddram[y][:]) }

// Buzzer keeps its state and counts toggles.
type Buzzer struct {
	Sounding bool
	Toggles  int
}

func (b *Buzzer) On() error  { b.Sounding = true; return nil }
func (b *Buzzer) Off() error { b.Sounding = false; return nil }

func (b *Buzzer) Toggle() error {
	b.Sounding = !b.Sounding
	b.Toggles++
	return nil
}

// Buttons all raise IRQ on IC.
type Buttons struct {
	IC      *Interrupts
	IRQ     hal.IRQ
	Names   []string
	pending []bool
}

func (b *Buttons) Count() int         { return len(b.Names) }
func (b *Buttons) Name(i int) string  { return b.Names[i] }
func (b *Buttons) Line(i int) hal.IRQ { return b.IRQ }

func (b *Buttons) TakePending(i int) bool {
	if i >= len(b.pending) {
		return false
	}
	p := b.pending[i]
	b.pending[i] = false
	return p
}

// Press latches an edge on the named button and raises its line.
func (b *Buttons) Press(name string) {
	if b.pending == nil {
		b.pending = make([]bool, len(b.Names))
	}
	for i, n := range b.Names {
		if n == name {
			b.pending[i] = true
		}
	}
	b.IC.Fire(b.IRQ)
}

// LED records its level.
type LED struct{ On bool }

func (l *LED) High() { l.On = true }
func (l *LED) Low()  { l.On = false }

// Pin is a GPIO pin holding Level.
type Pin struct {
	ID     string
	Level  bool
	Mode   hal.GPIOMode
	Writes int
}

func (p *Pin) Name() string { return p.ID }

func (p *Pin) Caps() hal.GPIOCaps { return hal.GPIOCapInput | hal.GPIOCapOutput }

func (p *Pin) Configure(mode hal.GPIOMode, pull hal.GPIOPull) error {
	p.Mode = mode
	return nil
}

func (p *Pin) Read() (bool, error) { return p.Level, nil }

func (p *Pin) Write(level bool) error {
	if p.Mode != hal.GPIOModeOutput {
		return errors.New("haltest: pin not an output")
	}
	p.Level = level
	p.Writes++
	return nil
}

// GPIO is a list of pins.
type GPIO struct{ Pins []*Pin }

func (g *GPIO) PinCount() int { return len(g.Pins) }

func (g *GPIO) Pin(id int) hal.GPIOPin {
	if id < 0 || id >= len(g.Pins) {
		return nil
	}
	return g.Pins[id]
}

// Board is a complete hal.HAL built from the fakes in this package.
type Board struct {
	Log   *Logger
	CPUs  *CPU
	IC    *Interrupts
	Timer *TickTimer
	WDG   *Watchdog
	BKP   *Backup
	Reset *ResetFlags
	LCD   *Display
	Clock *RTC
	Therm *Thermometer
	Buzz  *Buzzer
	Btns  *Buttons
	Light *LED
	Pins  *GPIO
}

// NewBoard returns a board with a SET and a NEXT button, an "LED" and an
// "SQW" pin, and the clock at t.
func NewBoard(t time.Time) *Board {
	ic := &Interrupts{}
	return &Board{
		Log:   &Logger{},
		CPUs:  &CPU{},
		IC:    ic,
		Timer: &TickTimer{IC: ic, Line: hal.IRQTickTimer},
		WDG:   &Watchdog{},
		BKP:   &Backup{},
		Reset: &ResetFlags{Bits: hal.ResetFlagPowerOn | hal.ResetFlagPin},
		LCD:   &Display{},
		Clock: &RTC{T: t},
		Therm: &Thermometer{MilliC: 21500},
		Buzz:  &Buzzer{},
		Btns:  &Buttons{IC: ic, IRQ: hal.IRQButtons, Names: []string{"SET", "NEXT"}},
		Light: &LED{},
		Pins:  &GPIO{Pins: []*Pin{{ID: "LED"}, {ID: "SQW", Level: true}}},
	}
}

func (b *Board) Logger() hal.Logger                  { return b.Log }
func (b *Board) LED() hal.LED                        { return b.Light }
func (b *Board) GPIO() hal.GPIO                      { return b.Pins }
func (b *Board) CPU() hal.CPU                        { return b.CPUs }
func (b *Board) Interrupts() hal.InterruptController { return b.IC }
func (b *Board) TickTimer() hal.TickTimer            { return b.Timer }
func (b *Board) Watchdog() hal.Watchdog              { return b.WDG }
func (b *Board) Backup() hal.Backup                  { return b.BKP }
func (b *Board) ResetFlags() hal.ResetFlags          { return b.Reset }
func (b *Board) Display() hal.CharDisplay            { return b.LCD }
func (b *Board) RTC() hal.RTC                        { return b.Clock }
func (b *Board) Thermometer() hal.Thermometer        { return b.Therm }
func (b *Board) Buzzer() hal.Buzzer                  { return b.Buzz }
func (b *Board) Buttons() hal.Buttons                { return b.Btns }
