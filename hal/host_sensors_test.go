//go:build !tinygo

package hal

import (
	"testing"
	"time"

	"tinygo.org/x/drivers/ds3231"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDS3231ReadsSimulatedTime(t *testing.T) {
	start := time.Date(2026, time.October, 14, 7, 29, 58, 0, time.UTC)
	now := start
	regs := newDS3231Regs(func() time.Time { return now })
	rtc := ds3231.New(&hostI2C{rtc: regs})

	got, err := rtc.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if !got.Equal(start) {
		t.Fatalf("ReadTime = %v, want %v", got, start)
	}

	now = now.Add(3 * time.Second)
	got, err = rtc.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if want := start.Add(3 * time.Second); !got.Equal(want) {
		t.Fatalf("ReadTime = %v, want %v", got, want)
	}
}

func TestDS3231SetTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	regs := newDS3231Regs(func() time.Time { return now })
	rtc := ds3231.New(&hostI2C{rtc: regs})

	set := time.Date(2031, time.March, 9, 23, 59, 30, 0, time.UTC)
	if err := rtc.SetTime(set); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	now = now.Add(45 * time.Second)
	got, err := rtc.ReadTime()
	if err != nil {
		t.Fatalf("ReadTime: %v", err)
	}
	if want := set.Add(45 * time.Second); !got.Equal(want) {
		t.Fatalf("ReadTime = %v, want %v", got, want)
	}
}

func TestDS3231Temperature(t *testing.T) {
	rtc := ds3231.New(&hostI2C{rtc: newDS3231Regs(nil)})
	milliC, err := rtc.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if milliC != 25250 {
		t.Fatalf("ReadTemperature = %d, want 25250", milliC)
	}
}

func TestHostI2CRejectsOtherAddresses(t *testing.T) {
	bus := &hostI2C{rtc: newDS3231Regs(nil)}
	if err := bus.Tx(0x50, []byte{0}, make([]byte, 1)); err == nil {
		t.Fatal("Tx to 0x50 succeeded")
	}
	if err := bus.Tx(ds3231.Address, nil, make([]byte, 1)); err == nil {
		t.Fatal("Tx without a register succeeded")
	}
	if err := bus.Tx(ds3231.Address, []byte{0x12}, make([]byte, 4)); err == nil {
		t.Fatal("read past the register file succeeded")
	}
}

func TestDS18B20Conversion(t *testing.T) {
	th := newDS18B20(newHostOneWire(fixedClock(time.Unix(0, 0))), nil)
	th.RequestTemperature()
	milliC, err := th.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if milliC != 22000 {
		t.Fatalf("ReadTemperature = %d, want 22000", milliC)
	}
}

func TestOneWireCRC(t *testing.T) {
	bus := newHostOneWire(nil)
	bus.Write(0x44)
	bus.Write(0xBE)
	var pad [9]uint8
	for i := range pad {
		pad[i] = bus.Read()
	}
	if got := bus.Сrc8(pad[:]); got != 0 {
		t.Fatalf("crc over scratchpad = %#x, want 0", got)
	}
	if got := bus.Read(); got != 0xFF {
		t.Fatalf("read past scratchpad = %#x, want 0xff", got)
	}
	if err := bus.Select([]uint8{1, 2, 3}); err == nil {
		t.Fatal("Select accepted a 3-byte rom")
	}
}

func TestHostButtonsLatchAndRaise(t *testing.T) {
	cpu := newHostCPU()
	if err := cpu.ic.Enable(IRQButtons); err != nil {
		t.Fatal(err)
	}
	lines := 0
	cpu.ic.SetHandler(func(IRQ) { lines++ })
	b := newHostButtons(cpu, "SET", "NEXT")

	if !b.press("next") {
		t.Fatal("press(next) not found")
	}
	if b.press("MODE") {
		t.Fatal("press(MODE) found")
	}
	if lines != 1 {
		t.Fatalf("line raised %d times, want 1", lines)
	}
	if b.TakePending(0) {
		t.Fatal("SET pending")
	}
	if !b.TakePending(1) {
		t.Fatal("NEXT not pending")
	}
	if b.TakePending(1) {
		t.Fatal("NEXT pending after take")
	}
}
