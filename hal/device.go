//go:build tinygo && baremetal && stm32f103

package hal

import (
	"fmt"
	"machine"

	"tinygo.org/x/drivers/buzzer"
	"tinygo.org/x/drivers/ds3231"
	"tinygo.org/x/drivers/hd44780"
	"tinygo.org/x/drivers/onewire"
)

// Board wiring.
const (
	pinLCDRS = machine.PC4
	pinLCDEN = machine.PC5
	pinLCDD4 = machine.PC0
	pinLCDD5 = machine.PC1
	pinLCDD6 = machine.PC2
	pinLCDD7 = machine.PC3

	pinOneWire = machine.PD2
	pinBuzzer  = machine.PB0
	pinSQW     = machine.PB12
	pinI2CSCL  = machine.PB6
	pinI2CSDA  = machine.PB7

	// EXTI5 and EXTI6 share the EXTI9_5 vector.
	pinButtonSet  = machine.PA5
	pinButtonNext = machine.PA6
)

type deviceHAL struct {
	logger  *uartLogger
	led     *pinLED
	gpio    GPIO
	cpu     deviceCPU
	ic      *deviceInterrupts
	tim     deviceTickTimer
	wdg     deviceWatchdog
	bkp     *deviceBackup
	reset   deviceResetFlags
	lcd     CharDisplay
	rtc     RTC
	therm   Thermometer
	buzzer  Buzzer
	buttons *deviceButtons
}

// New returns the HAL of the STM32F103 watch board.
//
// Console: USART1 on PA9 (TX) / PA10 (RX), 115200 8N1.
func New() HAL {
	uart := machine.UART1
	uart.Configure(machine.UARTConfig{BaudRate: 115200})
	logger := &uartLogger{uart: uart}

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := &pinLED{pin: ledPin}

	ic := newDeviceInterrupts()
	h := &deviceHAL{
		logger:  logger,
		led:     led,
		ic:      ic,
		bkp:     newDeviceBackup(),
		buttons: newDeviceButtons(ic),
	}
	h.gpio = newPinSet(
		newLEDPin("LED", led),
		&devicePin{name: "SQW", pin: pinSQW},
	)

	h.lcd = newDeviceLCD(logger)

	machine.I2C1.Configure(machine.I2CConfig{SCL: pinI2CSCL, SDA: pinI2CSDA})
	rtc := ds3231.New(machine.I2C1)
	if !rtc.Configure() {
		logger.WriteLineString("ds3231: configure failed")
	}
	h.rtc = &rtc

	bus := onewire.New(pinOneWire)
	h.therm = newDS18B20(&bus, nil)

	pinBuzzer.Configure(machine.PinConfig{Mode: machine.PinOutput})
	bz := buzzer.New(pinBuzzer)
	h.buzzer = &bz

	return h
}

func newDeviceLCD(logger Logger) CharDisplay {
	dev, err := hd44780.NewGPIO4Bit(
		[]machine.Pin{pinLCDD4, pinLCDD5, pinLCDD6, pinLCDD7},
		pinLCDEN, pinLCDRS, machine.NoPin,
	)
	if err == nil {
		err = dev.Configure(hd44780.Config{Width: 16, Height: 2})
	}
	if err != nil {
		logger.WriteLineString("hd44780: " + err.Error())
		return nil
	}
	return &dev
}

func (h *deviceHAL) Logger() Logger                  { return h.logger }
func (h *deviceHAL) LED() LED                        { return h.led }
func (h *deviceHAL) GPIO() GPIO                      { return h.gpio }
func (h *deviceHAL) CPU() CPU                        { return h.cpu }
func (h *deviceHAL) Interrupts() InterruptController { return h.ic }
func (h *deviceHAL) TickTimer() TickTimer            { return h.tim }
func (h *deviceHAL) Watchdog() Watchdog              { return h.wdg }
func (h *deviceHAL) Backup() Backup                  { return h.bkp }
func (h *deviceHAL) ResetFlags() ResetFlags          { return h.reset }
func (h *deviceHAL) Display() CharDisplay            { return h.lcd }
func (h *deviceHAL) RTC() RTC                        { return h.rtc }
func (h *deviceHAL) Thermometer() Thermometer        { return h.therm }
func (h *deviceHAL) Buzzer() Buzzer                  { return h.buzzer }
func (h *deviceHAL) Buttons() Buttons                { return h.buttons }

type uartLogger struct {
	uart *machine.UART
}

func (l *uartLogger) WriteLineString(s string) {
	for i := 0; i < len(s); i++ {
		l.uart.WriteByte(s[i])
	}
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

func (l *uartLogger) WriteLineBytes(b []byte) {
	l.uart.Write(b)
	l.uart.WriteByte('\r')
	l.uart.WriteByte('\n')
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

// devicePin is a plain MCU pin.
type devicePin struct {
	name string
	pin  machine.Pin
	mode GPIOMode
}

func (p *devicePin) Name() string { return p.name }

func (p *devicePin) Caps() GPIOCaps {
	return GPIOCapInput | GPIOCapOutput | GPIOCapPullUp | GPIOCapPullDown
}

func (p *devicePin) Configure(mode GPIOMode, pull GPIOPull) error {
	cfg := machine.PinConfig{Mode: machine.PinInput}
	switch {
	case mode == GPIOModeOutput:
		cfg.Mode = machine.PinOutput
	case pull == GPIOPullUp:
		cfg.Mode = machine.PinInputPullup
	case pull == GPIOPullDown:
		cfg.Mode = machine.PinInputPulldown
	}
	p.pin.Configure(cfg)
	p.mode = mode
	return nil
}

func (p *devicePin) Read() (bool, error) { return p.pin.Get(), nil }

func (p *devicePin) Write(level bool) error {
	if p.mode != GPIOModeOutput {
		return fmt.Errorf("gpio: pin %s: not configured for output", p.name)
	}
	p.pin.Set(level)
	return nil
}
