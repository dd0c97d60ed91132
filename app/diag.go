package app

import (
	"fmt"
	"time"

	"watch/hal"
	"watch/internal/klog"
	"watch/kernel/swtimer"
)

// diagnostics periodically prints the scheduler profile and warns about
// interrupts nobody claimed.
type diagnostics struct {
	sys  *System
	log  *klog.Logger
	warn *klog.Sometimes

	lines     []hal.IRQ
	unhandled map[hal.IRQ]uint32
	dropped   uint32
	sqw       hal.GPIOPin
	id        swtimer.ID
}

func newDiagnostics(sys *System, log *klog.Logger) (*diagnostics, error) {
	d := &diagnostics{
		sys:       sys,
		log:       log,
		warn:      log.Sometimes(time.Minute, 2),
		lines:     []hal.IRQ{hal.IRQTickTimer, hal.IRQButtons},
		unhandled: make(map[hal.IRQ]uint32),
		sqw:       hal.FindPin(sys.h.GPIO(), "SQW"),
	}
	if d.sqw != nil {
		if err := d.sqw.Configure(hal.GPIOModeInput, hal.GPIOPullUp); err != nil {
			log.Debugf("sqw pin: %v", err)
			d.sqw = nil
		}
	}
	var err error
	d.id, err = sys.timers.Register(swtimer.Timer{Callback: d.run, Period: sys.cfg.Sched.ProfilePeriod})
	if err != nil {
		return nil, fmt.Errorf("diagnostics timer: %w", err)
	}
	return d, nil
}

func (d *diagnostics) run(any) {
	if st, ok := d.sys.sched.Stats(); ok {
		for _, line := range st.Lines() {
			d.log.Infof("%s", line)
		}
	}
	for _, line := range d.lines {
		n := d.sys.irqs.Unhandled(line)
		if prev := d.unhandled[line]; n != prev {
			d.unhandled[line] = n
			d.warn.Logf(hal.LogWarning, "irq %d %v: %d unhandled interrupts", line, d.sys.irqs.Actions(line), n-prev)
		}
	}
	if n := d.sys.watch.presses.Dropped(); n != d.dropped {
		d.warn.Logf(hal.LogWarning, "buttons: %d presses dropped", n-d.dropped)
		d.dropped = n
	}
	if d.sqw != nil {
		if level, err := d.sqw.Read(); err == nil {
			d.log.Debugf("rtc sqw %v", level)
		}
	}
	if d.sys.wdt != nil {
		d.log.Debugf("watchdog: %d kicks, waiting for %v", d.sys.wdt.Kicks(), d.sys.wdt.Pending())
	}
}
