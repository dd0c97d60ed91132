//go:build !tinygo

package hal

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	hostTimerClockHz = 72_000_000

	timSRUIF   = 1 << 0
	timSRCC1IF = 1 << 1
)

// hostTickTimer simulates TIM2: an update event every
// (prescaler+1)*(reload+1) input clocks, raising IRQTickTimer.
type hostTickTimer struct {
	cpu  *hostCPU
	line IRQ

	sr atomic.Uint32

	mu     sync.Mutex
	period time.Duration
	stop   chan struct{}
	done   chan struct{}
}

func newHostTickTimer(cpu *hostCPU, line IRQ) *hostTickTimer {
	return &hostTickTimer{cpu: cpu, line: line}
}

func (t *hostTickTimer) ClockHz() uint32 { return hostTimerClockHz }

func (t *hostTickTimer) Reset() {
	t.Stop()
	t.mu.Lock()
	t.period = 0
	t.mu.Unlock()
	t.sr.Store(0)
}

func (t *hostTickTimer) Configure(prescaler, reload uint32) error {
	if prescaler > 0xFFFF || reload > 0xFFFF {
		return errors.New("tim2: prescaler and reload are 16-bit")
	}
	clocks := uint64(prescaler+1) * uint64(reload+1)
	d := time.Duration(clocks * uint64(time.Second) / hostTimerClockHz)
	if d <= 0 {
		return errors.New("tim2: period too short")
	}
	t.mu.Lock()
	t.period = d
	t.mu.Unlock()
	return nil
}

func (t *hostTickTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil || t.period <= 0 {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	go t.run(t.period, stop, done)
}

func (t *hostTickTimer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *hostTickTimer) UpdatePending() bool { return t.sr.Load()&timSRUIF != 0 }

func (t *hostTickTimer) ClearUpdate() {
	for {
		old := t.sr.Load()
		if t.sr.CompareAndSwap(old, old&^timSRUIF) {
			return
		}
	}
}

// injectCapture latches a capture/compare flag and raises the line without an
// update event, the way the real part occasionally does.
func (t *hostTickTimer) injectCapture() {
	for {
		old := t.sr.Load()
		if t.sr.CompareAndSwap(old, old|timSRCC1IF) {
			break
		}
	}
	t.cpu.raise(t.line)
}

func (t *hostTickTimer) run(period time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for {
				old := t.sr.Load()
				if t.sr.CompareAndSwap(old, old|timSRUIF) {
					break
				}
			}
			t.cpu.raise(t.line)
		}
	}
}
