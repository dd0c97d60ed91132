//go:build !tinygo

package hal

import (
	"sync"
	"sync/atomic"
)

// hostCPU models PRIMASK and WFI on top of a mutex and a condition variable.
//
// Holding mu is "interrupts disabled". Every simulated interrupt is delivered
// while holding mu, so an interrupt can never run between a check made under
// DisableInterrupts and the following WaitForInterrupt.
type hostCPU struct {
	mu      sync.Mutex
	wake    *sync.Cond
	pending bool

	ic *hostInterrupts
}

func newHostCPU() *hostCPU {
	c := &hostCPU{ic: &hostInterrupts{}}
	c.wake = sync.NewCond(&c.mu)
	return c
}

func (c *hostCPU) DisableInterrupts() IRQState {
	c.mu.Lock()
	return 0
}

func (c *hostCPU) RestoreInterrupts(state IRQState) {
	_ = state
	c.mu.Unlock()
}

func (c *hostCPU) WaitForInterrupt() {
	for !c.pending {
		c.wake.Wait()
	}
	c.pending = false
}

// raise delivers line as if the NVIC took it. Disabled lines are dropped.
func (c *hostCPU) raise(line IRQ) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ic.enabled(line) {
		if fn := c.ic.handler(); fn != nil {
			fn(line)
		}
	}
	c.pending = true
	c.wake.Broadcast()
}

// kick wakes a sleeping WaitForInterrupt without running any handler.
func (c *hostCPU) kick() {
	c.mu.Lock()
	c.pending = true
	c.wake.Broadcast()
	c.mu.Unlock()
}

type hostInterrupts struct {
	mask [NumIRQ / 32]atomic.Uint32
	fn   atomic.Value // func(IRQ)
}

func (ic *hostInterrupts) Enable(line IRQ) error {
	if line >= NumIRQ {
		return ErrNotImplemented
	}
	w := &ic.mask[line/32]
	for {
		old := w.Load()
		if w.CompareAndSwap(old, old|1<<(line%32)) {
			return nil
		}
	}
}

func (ic *hostInterrupts) Disable(line IRQ) {
	if line >= NumIRQ {
		return
	}
	w := &ic.mask[line/32]
	for {
		old := w.Load()
		if w.CompareAndSwap(old, old&^(1<<(line%32))) {
			return
		}
	}
}

func (ic *hostInterrupts) SetHandler(fn func(line IRQ)) {
	ic.fn.Store(fn)
}

func (ic *hostInterrupts) enabled(line IRQ) bool {
	if line >= NumIRQ {
		return false
	}
	return ic.mask[line/32].Load()&(1<<(line%32)) != 0
}

func (ic *hostInterrupts) handler() func(IRQ) {
	fn, _ := ic.fn.Load().(func(IRQ))
	return fn
}
