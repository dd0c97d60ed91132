package app

import (
	"fmt"
	"strings"

	"watch/hal"
	"watch/internal/klog"
	"watch/kernel/sched"
)

// installPanicHandler reports a task panic on the console and the display.
// The scheduler halts afterwards and the watchdog resets the MCU.
func installPanicHandler(h hal.HAL, log *klog.Logger) {
	sched.SetPanicHandler(func(info sched.PanicInfo) {
		log.Emergf("task %d (%s): %v", info.Task, info.Name, info.Value)
		if len(info.Stack) > 0 {
			for _, line := range strings.Split(string(info.Stack), "\n") {
				if line == "" {
					continue
				}
				log.Debugf("%s", line)
			}
		}

		lcd := h.Display()
		if lcd == nil {
			return
		}
		lcd.ClearDisplay()
		lcd.SetCursor(0, 0)
		lcd.Write([]byte(fitLine("PANIC " + info.Name)))
		lcd.SetCursor(0, 1)
		lcd.Write([]byte(fitLine(fmt.Sprint(info.Value))))
		lcd.Display()
	})
}

// splash shows the greeting until the first clock refresh.
func splash(lcd hal.CharDisplay, greeting string) {
	if lcd == nil {
		return
	}
	lcd.ClearDisplay()
	if greeting == "" {
		lcd.Display()
		return
	}
	lcd.SetCursor(0, 0)
	lcd.Write([]byte(fitLine(greeting)))
	lcd.Display()
}
