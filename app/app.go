// Package app is the watch firmware: it brings the kernel up on a board and
// runs the clock on top of it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"watch/hal"
	"watch/internal/buildinfo"
	"watch/internal/config"
	"watch/internal/klog"
	"watch/kernel/irq"
	"watch/kernel/reset"
	"watch/kernel/sched"
	"watch/kernel/swtimer"
	"watch/kernel/wdt"
)

// System is a booted watch.
type System struct {
	h   hal.HAL
	cfg config.Config
	log *klog.Logger

	// Cause is why the MCU was reset before this boot.
	Cause reset.Cause
	// Starving names the watchdog participants that had not reported when
	// the previous boot was reset by the watchdog.
	Starving []string

	irqs   *irq.Controller
	sched  *sched.Scheduler
	timers *swtimer.Multiplexer
	wdt    *wdt.Tracker
	watch  *watch
	diag   *diagnostics
}

// Boot initializes the kernel in order (interrupts, scheduler, software
// timers, watchdog) and starts the watch. Any failure is fatal for the
// firmware and returned.
func Boot(h hal.HAL, cfg config.Config) (*System, error) {
	if h == nil {
		return nil, errors.New("app: nil hal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := klog.New(h.Logger(), cfg.LogLevel)
	sys := &System{h: h, cfg: cfg, log: log}
	boot := log.With("boot")

	boot.Noticef("watch %s", buildinfo.String())
	sys.Cause = reset.Read(h.ResetFlags())
	boot.Infof("reset cause: %s", sys.Cause)
	starving := wdt.Starving(h.Backup())

	installPanicHandler(h, log.With("panic"))
	splash(h.Display(), cfg.Watch.Greeting)

	start := time.Now()
	sys.irqs = irq.New(h.CPU(), h.Interrupts())
	var opts []sched.Option
	if !cfg.Sched.Idle {
		opts = append(opts, sched.WithBusyIdle())
	}
	if cfg.Sched.Profile {
		opts = append(opts, sched.WithProfiler(func() time.Duration { return time.Since(start) }, cfg.Sched.ProfileIterative))
	}
	sys.sched = sched.New(h.CPU(), opts...)

	tim := h.TickTimer()
	psc, arr, err := swtimer.Params(tim.ClockHz(), swtimer.Granularity)
	if err != nil {
		return nil, err
	}
	sys.timers, err = swtimer.New(sys.sched, sys.irqs, swtimer.HWTimer{
		Timer:     tim,
		Line:      hal.IRQTickTimer,
		Prescaler: psc,
		Reload:    arr,
	})
	if err != nil {
		return nil, err
	}
	boot.Debugf("swtimer: psc=%d arr=%d tick=%v", psc, arr, swtimer.Period(tim.ClockHz(), psc, arr))

	if cfg.Watchdog.Enabled {
		sys.wdt, err = wdt.New(sys.sched, h.Watchdog(), cfg.Watchdog.Period, wdt.WithBackup(h.Backup()))
		if err != nil {
			return nil, err
		}
		if err := sys.timers.AttachWatchdog(sys.wdt); err != nil {
			return nil, err
		}
	} else {
		boot.Warnf("watchdog disabled")
	}

	sys.watch, err = newWatch(watchDeps{
		h:      h,
		log:    log.With("watch"),
		s:      sys.sched,
		timers: sys.timers,
		irqs:   sys.irqs,
		wd:     sys.wdt,
		cfg:    cfg.Watch,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	// Participants register in a fixed order, so the handles of the
	// previous boot resolve against this one.
	if starving != 0 {
		if sys.wdt != nil {
			sys.Starving = sys.wdt.StarvingNames(starving)
		}
		if sys.Cause == reset.IndependentWatchdog {
			boot.Alertf("watchdog reset, starving: %v (mask %#x)", sys.Starving, starving)
		} else {
			boot.Infof("stale watchdog record: %v (mask %#x)", sys.Starving, starving)
		}
	}

	if sys.diag, err = newDiagnostics(sys, log.With("diag")); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if err := sys.setupStall(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	// Ticks that piled up during bring-up are not wall time the timers
	// should catch up on.
	sys.timers.ResetTicks()
	boot.Infof("up: %d timers, tick %v", sys.timers.Len(), swtimer.Granularity)
	return sys, nil
}

func (sys *System) setupStall() error {
	d := sys.cfg.Debug
	if d.StallAfter <= 0 {
		return nil
	}
	if sys.wdt == nil {
		return errors.New("stall needs the watchdog")
	}
	if !sys.watch.participates(d.StallTask) {
		return fmt.Errorf("stall: %q is not a watchdog participant", d.StallTask)
	}
	var id swtimer.ID
	id, err := sys.timers.Register(swtimer.Timer{
		Period: d.StallAfter,
		Callback: func(any) {
			sys.watch.stall(d.StallTask)
			sys.timers.Unregister(id)
		},
	})
	if err != nil {
		return fmt.Errorf("stall timer: %w", err)
	}
	sys.log.With("boot").Warnf("debug: %s stalls in %v", d.StallTask, d.StallAfter)
	return nil
}

// Run runs the scheduler until ctx is done. On the device it never
// returns.
func (sys *System) Run(ctx context.Context) error {
	return sys.sched.Run(ctx)
}

// Scheduler exposes the scheduler, mostly for diagnostics.
func (sys *System) Scheduler() *sched.Scheduler { return sys.sched }

// Timers exposes the software timers.
func (sys *System) Timers() *swtimer.Multiplexer { return sys.timers }

// Watchdog returns the watchdog tracker, or nil when it is disabled.
func (sys *System) Watchdog() *wdt.Tracker { return sys.wdt }

// Program adapts Boot and Run to a runner that boots the firmware again
// after every reset.
func Program(cfg config.Config) func(ctx context.Context, h hal.HAL) error {
	return func(ctx context.Context, h hal.HAL) error {
		sys, err := Boot(h, cfg)
		if err != nil {
			return err
		}
		return sys.Run(ctx)
	}
}
