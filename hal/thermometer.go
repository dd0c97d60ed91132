package hal

import "tinygo.org/x/drivers/ds18b20"

// ds18b20Thermometer drives a single DS18B20 on a one-wire bus.
type ds18b20Thermometer struct {
	dev ds18b20.Device
	rom []uint8
}

func newDS18B20(bus ds18b20.OneWireDevice, rom []uint8) *ds18b20Thermometer {
	dev := ds18b20.New(bus)
	dev.Configure()
	return &ds18b20Thermometer{dev: dev, rom: rom}
}

func (t *ds18b20Thermometer) RequestTemperature() {
	t.dev.RequestTemperature(t.rom)
}

func (t *ds18b20Thermometer) ReadTemperature() (int32, error) {
	return t.dev.ReadTemperature(t.rom)
}
