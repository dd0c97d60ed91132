//go:build !tinygo

package hal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/drivers/ds3231"
)

// hostI2C is an I2C bus with a simulated DS3231 at its usual address.
type hostI2C struct {
	rtc *ds3231Regs
}

func (b *hostI2C) Tx(addr uint16, w, r []byte) error {
	if addr != ds3231.Address || b.rtc == nil {
		return fmt.Errorf("i2c: no device at 0x%02x", addr)
	}
	if len(w) == 0 {
		return errors.New("i2c: empty write")
	}
	return b.rtc.tx(w[0], w[1:], r)
}

// ds3231Regs is the DS3231 register file. The time registers track a base
// time plus the host monotonic clock.
type ds3231Regs struct {
	mu   sync.Mutex
	now  func() time.Time
	base time.Time
	at   time.Time
	regs [0x13]byte
}

func newDS3231Regs(now func() time.Time) *ds3231Regs {
	if now == nil {
		now = time.Now
	}
	r := &ds3231Regs{now: now}
	t := now()
	r.base, r.at = t.UTC().Truncate(time.Second), t
	// 25.25 C die temperature.
	r.regs[ds3231.REG_TEMP] = 25
	r.regs[ds3231.REG_TEMP+1] = 0x40
	return r
}

func (r *ds3231Regs) tx(reg byte, w, rd []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(reg)+len(w) > len(r.regs) || int(reg)+len(rd) > len(r.regs) {
		return fmt.Errorf("ds3231: register 0x%02x out of range", reg)
	}
	if len(w) > 0 {
		copy(r.regs[reg:], w)
		if reg <= ds3231.REG_TIMEDATE+6 {
			r.base, r.at = r.decodeTime(), r.now()
		}
	}
	if len(rd) > 0 {
		if reg <= ds3231.REG_TIMEDATE+6 {
			r.encodeTime()
		}
		copy(rd, r.regs[reg:])
	}
	return nil
}

func (r *ds3231Regs) encodeTime() {
	t := r.base.Add(r.now().Sub(r.at))
	r.regs[0] = toBCD(t.Second())
	r.regs[1] = toBCD(t.Minute())
	r.regs[2] = toBCD(t.Hour())
	r.regs[3] = toBCD(int(t.Weekday()))
	r.regs[4] = toBCD(t.Day())
	month := toBCD(int(t.Month()))
	year := t.Year() - 2000
	if year >= 100 {
		year -= 100
		month |= 1 << 7
	}
	r.regs[5] = month
	r.regs[6] = toBCD(year)
}

func (r *ds3231Regs) decodeTime() time.Time {
	year := fromBCD(r.regs[6]) + 2000
	if r.regs[5]&(1<<7) != 0 {
		year += 100
	}
	return time.Date(year, time.Month(fromBCD(r.regs[5]&0x7F)), fromBCD(r.regs[4]),
		fromBCD(r.regs[2]&0x3F), fromBCD(r.regs[1]), fromBCD(r.regs[0]&0x7F), 0, time.UTC)
}

func toBCD(v int) byte   { return byte(v/10<<4 | v%10) }
func fromBCD(b byte) int { return int(b>>4)*10 + int(b&0x0F) }

// hostOneWire is a one-wire bus with a single simulated DS18B20.
type hostOneWire struct {
	mu      sync.Mutex
	now     func() time.Time
	scratch [9]byte
	pos     int
	milliC  int32
}

func newHostOneWire(now func() time.Time) *hostOneWire {
	if now == nil {
		now = time.Now
	}
	b := &hostOneWire{now: now}
	b.pos = len(b.scratch)
	return b
}

func (b *hostOneWire) Select(rom []uint8) error {
	if len(rom) != 0 && len(rom) != 8 {
		return errors.New("onewire: bad rom id")
	}
	return nil
}

func (b *hostOneWire) Write(cmd uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch cmd {
	case 0x44: // convert T
		// Drift slowly around 22 C so the display has something to show.
		step := int32(b.now().Unix()/10) % 8
		b.milliC = 22000 + step*625/10
	case 0xBE: // read scratchpad
		raw := uint16(int16(b.milliC * 16 / 1000))
		b.scratch = [9]byte{byte(raw), byte(raw >> 8), 0x4B, 0x46, 0x7F, 0xFF, 0x0C, 0x10}
		b.scratch[8] = b.Сrc8(b.scratch[:8])
		b.pos = 0
	}
}

func (b *hostOneWire) Read() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos >= len(b.scratch) {
		return 0xFF
	}
	v := b.scratch[b.pos]
	b.pos++
	return v
}

// Сrc8 is the Dallas/Maxim CRC-8 (x^8 + x^5 + x^4 + 1).
func (b *hostOneWire) Сrc8(buf []uint8) uint8 {
	var crc uint8
	for _, v := range buf {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// hostBuzzer logs state changes instead of making noise.
type hostBuzzer struct {
	mu     sync.Mutex
	on     bool
	logger Logger
}

func (b *hostBuzzer) set(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.on == on {
		return nil
	}
	b.on = on
	if on {
		b.logger.WriteLineString("buzzer: on")
	} else {
		b.logger.WriteLineString("buzzer: off")
	}
	return nil
}

func (b *hostBuzzer) On() error  { return b.set(true) }
func (b *hostBuzzer) Off() error { return b.set(false) }

func (b *hostBuzzer) Toggle() error {
	b.mu.Lock()
	on := b.on
	b.mu.Unlock()
	return b.set(!on)
}

func (b *hostBuzzer) isOn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// hostButtons latches presses as EXTI pending bits and raises the shared
// line.
type hostButtons struct {
	cpu     *hostCPU
	names   []string
	pending []bool
	mu      sync.Mutex
}

func newHostButtons(cpu *hostCPU, names ...string) *hostButtons {
	return &hostButtons{cpu: cpu, names: names, pending: make([]bool, len(names))}
}

func (b *hostButtons) Count() int        { return len(b.names) }
func (b *hostButtons) Name(i int) string { return b.names[i] }
func (b *hostButtons) Line(i int) IRQ    { return IRQButtons }

func (b *hostButtons) TakePending(i int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pending[i]
	b.pending[i] = false
	return p
}

// press simulates a falling edge on the button called name.
func (b *hostButtons) press(name string) bool {
	for i, n := range b.names {
		if !strings.EqualFold(n, name) {
			continue
		}
		b.mu.Lock()
		b.pending[i] = true
		b.mu.Unlock()
		b.cpu.raise(b.Line(i))
		return true
	}
	return false
}
