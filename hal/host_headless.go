//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Program is a firmware image: it runs on a freshly reset MCU until ctx is
// done or it fails.
type Program func(ctx context.Context, h HAL) error

// ErrTooManyResets stops a runner whose program keeps starving the watchdog.
var ErrTooManyResets = errors.New("too many watchdog resets")

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	HostConfig
	// Duration stops the run after this much wall time. Zero runs until ctx
	// is done.
	Duration time.Duration
}

// RunHeadless runs prog on the simulated board without opening a window.
// A watchdog expiry resets the MCU and boots prog again with the battery
// domain (backup registers, RTC, reset flags) intact.
func RunHeadless(ctx context.Context, prog Program, cfg HeadlessConfig) error {
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}
	err := runBoard(ctx, newBoard(cfg.Now), prog, cfg.HostConfig, nil)
	if cfg.Duration > 0 && errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// runBoard is the power supply of the simulated board: it boots prog, and
// boots it again after every watchdog reset. attach, if set, sees each new
// MCU before prog starts.
func runBoard(ctx context.Context, b *board, prog Program, cfg HostConfig, attach func(*hostHAL)) error {
	var current atomic.Pointer[hostHAL]
	if cfg.Console != nil {
		go runConsole(ctx, cfg.Console, current.Load)
	}

	resets := 0
	for {
		b.boots++
		h := newHostHAL(b, cfg)
		current.Store(h)
		if attach != nil {
			attach(h)
		}

		err := bootOnce(ctx, h, prog)
		if !errors.Is(err, ErrWatchdogReset) {
			return err
		}
		resets++
		h.logger.WriteLineString(fmt.Sprintf("iwdg: system reset #%d", resets))
		if cfg.MaxResets > 0 && resets >= cfg.MaxResets {
			return fmt.Errorf("%w (%d)", ErrTooManyResets, resets)
		}
	}
}

func bootOnce(parent context.Context, h *hostHAL, prog Program) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	h.setResetHook(func() { cancel(ErrWatchdogReset) })
	// A cancelled system may be asleep in WaitForInterrupt.
	stop := context.AfterFunc(ctx, h.cpu.kick)
	defer stop()

	err := prog(ctx, h)
	h.powerOff()
	if errors.Is(context.Cause(ctx), ErrWatchdogReset) {
		return ErrWatchdogReset
	}
	return err
}
