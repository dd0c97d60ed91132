// Package irq dispatches interrupt lines to chains of handlers.
//
// Several devices may share one line. Their actions are tried in
// registration order until one claims the interrupt.
package irq

import (
	"errors"
	"fmt"
	"sync/atomic"

	"watch/hal"
)

// Line is an interrupt line number.
type Line = hal.IRQ

// Result tells the dispatcher whether a handler claimed the interrupt.
type Result uint8

const (
	None Result = iota
	Handled
)

func (r Result) String() string {
	if r == Handled {
		return "handled"
	}
	return "none"
}

// Handler runs in interrupt context. It must not block and may only flag
// work (sched.MarkReady, acknowledging the source).
type Handler func(line Line, data any) Result

// Action binds a handler to a line. It is registered by pointer and must not
// be modified while registered.
type Action struct {
	Handler Handler
	Line    Line
	Name    string
	Data    any
}

// MaxActions is the number of actions a single line can carry.
const MaxActions = 4

var (
	ErrInvalidAction     = errors.New("irq: action has no handler")
	ErrInvalidLine       = errors.New("irq: invalid line")
	ErrAlreadyRegistered = errors.New("irq: action already registered")
	ErrLineFull          = errors.New("irq: line has no free action slot")
	ErrNotRegistered     = errors.New("irq: action not registered")
)

type chain struct {
	actions [MaxActions]*Action
	n       int
}

// Controller owns the per-line action chains.
type Controller struct {
	cpu hal.CPU
	ic  hal.InterruptController

	chains    [hal.NumIRQ]chain
	unhandled [hal.NumIRQ]atomic.Uint32
}

// New returns a controller and installs it as the interrupt sink of ic.
func New(cpu hal.CPU, ic hal.InterruptController) *Controller {
	c := &Controller{cpu: cpu, ic: ic}
	ic.SetHandler(func(line hal.IRQ) { c.Dispatch(line) })
	return c
}

// Register appends a to the chain of its line and arms the line when it is
// the first action there. It must not be called from interrupt context.
func (c *Controller) Register(a *Action) error {
	if a == nil || a.Handler == nil {
		return ErrInvalidAction
	}
	if a.Line >= hal.NumIRQ {
		return fmt.Errorf("%w: %d", ErrInvalidLine, a.Line)
	}

	state := c.cpu.DisableInterrupts()
	defer c.cpu.RestoreInterrupts(state)

	ch := &c.chains[a.Line]
	for i := 0; i < ch.n; i++ {
		if ch.actions[i] == a {
			return ErrAlreadyRegistered
		}
	}
	if ch.n == MaxActions {
		return fmt.Errorf("%w: line %d", ErrLineFull, a.Line)
	}
	ch.actions[ch.n] = a
	ch.n++
	if ch.n == 1 {
		if err := c.ic.Enable(a.Line); err != nil {
			ch.n--
			ch.actions[ch.n] = nil
			return fmt.Errorf("irq: enable line %d: %w", a.Line, err)
		}
	}
	return nil
}

// Unregister removes a from its line and disarms the line when a was the
// last action there.
func (c *Controller) Unregister(a *Action) error {
	if a == nil || a.Line >= hal.NumIRQ {
		return ErrNotRegistered
	}

	state := c.cpu.DisableInterrupts()
	defer c.cpu.RestoreInterrupts(state)

	ch := &c.chains[a.Line]
	for i := 0; i < ch.n; i++ {
		if ch.actions[i] != a {
			continue
		}
		copy(ch.actions[i:ch.n], ch.actions[i+1:ch.n])
		ch.n--
		ch.actions[ch.n] = nil
		if ch.n == 0 {
			c.ic.Disable(a.Line)
		}
		return nil
	}
	return ErrNotRegistered
}

// Dispatch is the interrupt entry for line. It stops at the first action
// that returns Handled. An interrupt nobody claims is counted and otherwise
// ignored.
func (c *Controller) Dispatch(line Line) Result {
	if line >= hal.NumIRQ {
		return None
	}
	ch := &c.chains[line]
	for i := 0; i < ch.n; i++ {
		a := ch.actions[i]
		if a.Handler(line, a.Data) == Handled {
			return Handled
		}
	}
	c.unhandled[line].Add(1)
	return None
}

// Unhandled returns how many interrupts on line nobody claimed.
func (c *Controller) Unhandled(line Line) uint32 {
	if line >= hal.NumIRQ {
		return 0
	}
	return c.unhandled[line].Load()
}

// Actions returns the names of the actions on line, in dispatch order.
func (c *Controller) Actions(line Line) []string {
	if line >= hal.NumIRQ {
		return nil
	}
	state := c.cpu.DisableInterrupts()
	defer c.cpu.RestoreInterrupts(state)

	ch := &c.chains[line]
	names := make([]string, 0, ch.n)
	for i := 0; i < ch.n; i++ {
		names = append(names, ch.actions[i].Name)
	}
	return names
}
