//go:build tinygo && baremetal && stm32f103

package main

import (
	"context"

	"watch/app"
	"watch/hal"
	"watch/internal/config"
)

func main() {
	h := hal.New()
	sys, err := app.Boot(h, config.Default())
	if err != nil {
		h.Logger().WriteLineString("boot failed: " + err.Error())
		// Nobody kicks the watchdog from here on; it resets the MCU.
		for {
			h.CPU().DisableInterrupts()
			h.CPU().WaitForInterrupt()
		}
	}
	sys.Run(context.Background())
}
