//go:build tinygo && baremetal && stm32f103

package hal

import (
	"machine"
	"sync/atomic"
)

// deviceButtons are active-low push buttons on EXTI5 and EXTI6. The machine
// package clears the EXTI pending bit; the edge is latched here instead.
type deviceButtons struct {
	ic      *deviceInterrupts
	names   [2]string
	pins    [2]machine.Pin
	pending atomic.Uint32
}

func newDeviceButtons(ic *deviceInterrupts) *deviceButtons {
	b := &deviceButtons{
		ic:    ic,
		names: [2]string{"SET", "NEXT"},
		pins:  [2]machine.Pin{pinButtonSet, pinButtonNext},
	}
	for _, p := range b.pins {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		p.SetInterrupt(machine.PinFalling, b.edge)
	}
	return b
}

// edge runs in interrupt context.
func (b *deviceButtons) edge(p machine.Pin) {
	for i, bp := range b.pins {
		if bp != p {
			continue
		}
		for {
			old := b.pending.Load()
			if b.pending.CompareAndSwap(old, old|1<<i) {
				break
			}
		}
	}
	b.ic.fire(IRQButtons)
}

func (b *deviceButtons) Count() int        { return len(b.names) }
func (b *deviceButtons) Name(i int) string { return b.names[i] }
func (b *deviceButtons) Line(i int) IRQ    { return IRQButtons }

func (b *deviceButtons) TakePending(i int) bool {
	bit := uint32(1) << i
	for {
		old := b.pending.Load()
		if old&bit == 0 {
			return false
		}
		if b.pending.CompareAndSwap(old, old&^bit) {
			return true
		}
	}
}
