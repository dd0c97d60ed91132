package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
)

// GPIO is the set of named spare pins of the board (heartbeat LED, RTC
// square wave). Pins driven by a peripheral driver are not part of it.
type GPIO interface {
	PinCount() int
	Pin(id int) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
}

// FindPin returns the pin of g called name, or nil.
func FindPin(g GPIO, name string) GPIOPin {
	if g == nil {
		return nil
	}
	for i := 0; i < g.PinCount(); i++ {
		if p := g.Pin(i); p != nil && p.Name() == name {
			return p
		}
	}
	return nil
}

var errFloating = errors.New("input floating")

// pinSet is a fixed list of pins; nil entries are skipped.
type pinSet []GPIOPin

func newPinSet(pins ...GPIOPin) pinSet {
	s := make(pinSet, 0, len(pins))
	for _, p := range pins {
		if p != nil {
			s = append(s, p)
		}
	}
	return s
}

func (s pinSet) PinCount() int { return len(s) }

func (s pinSet) Pin(id int) GPIOPin {
	if id < 0 || id >= len(s) {
		return nil
	}
	return s[id]
}

// squareWave is the DS3231 INT/SQW output in square-wave mode: open drain,
// 50% duty. Without a pull-up the line floats.
type squareWave struct {
	mu     sync.Mutex
	name   string
	period time.Duration
	t0     time.Time
	now    func() time.Time
	pull   GPIOPull
	input  bool
}

func newSquareWave(name string, period time.Duration, now func() time.Time) *squareWave {
	if now == nil {
		now = time.Now
	}
	if period <= 0 {
		period = time.Second
	}
	return &squareWave{name: name, period: period, now: now, t0: now()}
}

func (p *squareWave) Name() string   { return p.name }
func (p *squareWave) Caps() GPIOCaps { return GPIOCapInput | GPIOCapPullUp }

func (p *squareWave) Configure(mode GPIOMode, pull GPIOPull) error {
	if mode != GPIOModeInput {
		return fmt.Errorf("gpio: pin %s: driven by the rtc", p.name)
	}
	if pull == GPIOPullDown {
		return fmt.Errorf("gpio: pin %s: pull-down unsupported", p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input, p.pull = true, pull
	return nil
}

func (p *squareWave) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.input:
		return false, fmt.Errorf("gpio: pin %s: not configured", p.name)
	case p.pull != GPIOPullUp:
		return false, fmt.Errorf("gpio: pin %s: %w", p.name, errFloating)
	}
	elapsed := p.now().Sub(p.t0)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return elapsed%p.period < p.period/2, nil
}

func (p *squareWave) Write(bool) error {
	return fmt.Errorf("gpio: pin %s: driven by the rtc", p.name)
}

// ledPin drives an LED and remembers the level it was set to.
type ledPin struct {
	mu     sync.Mutex
	led    LED
	name   string
	output bool
	level  bool
}

func newLEDPin(name string, led LED) GPIOPin {
	if led == nil {
		return nil
	}
	return &ledPin{led: led, name: name}
}

func (p *ledPin) Name() string   { return p.name }
func (p *ledPin) Caps() GPIOCaps { return GPIOCapOutput }

func (p *ledPin) Configure(mode GPIOMode, pull GPIOPull) error {
	if mode != GPIOModeOutput || pull != GPIOPullNone {
		return fmt.Errorf("gpio: pin %s: push-pull output only", p.name)
	}
	p.mu.Lock()
	p.output = true
	p.mu.Unlock()
	return p.Write(false)
}

func (p *ledPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

func (p *ledPin) Write(level bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.output {
		return fmt.Errorf("gpio: pin %s: not configured", p.name)
	}
	p.level = level
	if level {
		p.led.High()
	} else {
		p.led.Low()
	}
	return nil
}
