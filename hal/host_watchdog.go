//go:build !tinygo

package hal

import (
	"errors"
	"sync"
	"time"
)

// hostWatchdog simulates the IWDG: once started it cannot be stopped, and if
// Update is not called within the timeout it fires onExpire exactly once.
type hostWatchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	timer    *time.Timer
	expired  bool
	onExpire func()
}

func newHostWatchdog(onExpire func()) *hostWatchdog {
	return &hostWatchdog{onExpire: onExpire}
}

func (w *hostWatchdog) Configure(timeout time.Duration) error {
	pr, rl, err := iwdgParams(timeout)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = iwdgTimeout(pr, rl)
	return nil
}

func (w *hostWatchdog) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timeout <= 0 {
		return errors.New("iwdg: not configured")
	}
	if w.timer != nil {
		return nil
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)
	return nil
}

func (w *hostWatchdog) Update() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer == nil || w.expired {
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *hostWatchdog) expire() {
	w.mu.Lock()
	if w.expired {
		w.mu.Unlock()
		return
	}
	w.expired = true
	fn := w.onExpire
	w.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// halt stops the countdown when the simulated board powers off.
func (w *hostWatchdog) halt() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.expired = true
}
