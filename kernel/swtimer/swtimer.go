// Package swtimer multiplexes many periodic software timers onto one
// hardware timer.
//
// The hardware timer overflows every Granularity. Its interrupt handler only
// counts the overflow and wakes the "swtimer" scheduler task, which then
// advances every active timer and runs the callbacks of those that expired.
// Timers re-arm themselves.
package swtimer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"watch/hal"
	"watch/kernel/irq"
	"watch/kernel/sched"
	"watch/kernel/wdt"
)

const (
	// Granularity is the hardware tick and the shortest timer period.
	Granularity = 5 * time.Millisecond
	// MaxTimers is the capacity of the timer table.
	MaxTimers = 10
	// TaskName names both the scheduler task and the watchdog entry.
	TaskName = "swtimer"
)

var (
	ErrNilCallback    = errors.New("swtimer: nil callback")
	ErrPeriodTooShort = errors.New("swtimer: period shorter than tick")
	ErrTableFull      = errors.New("swtimer: timer table full")
	ErrUnknownTimer   = errors.New("swtimer: unknown timer")
	ErrClosed         = errors.New("swtimer: closed")
)

// ID identifies a registered timer. IDs grow monotonically and are never
// zero; a stale ID is rejected even after its slot is reused.
type ID uint32

// Callback runs in the swtimer task when its timer expires.
type Callback func(data any)

// Timer describes a timer to register.
type Timer struct {
	Callback Callback
	Data     any
	Period   time.Duration
}

// HWTimer is the hardware timer binding supplied by board setup.
type HWTimer struct {
	Timer hal.TickTimer
	Line  irq.Line
	// Prescaler and Reload make the timer overflow every Granularity; see
	// Params.
	Prescaler uint32
	Reload    uint32
}

type slot struct {
	id        ID
	cb        Callback
	data      any
	period    time.Duration
	remaining time.Duration
	active    bool
}

// Multiplexer owns the hardware timer and the timer table. Apart from the
// tick handler everything runs in task context.
type Multiplexer struct {
	s    *sched.Scheduler
	irqs *irq.Controller
	hw   HWTimer

	action irq.Action
	task   sched.TaskID
	ticks  atomic.Uint32

	slots  [MaxTimers]slot
	order  [MaxTimers]uint8
	n      int
	lastID ID

	wd     *wdt.Tracker
	wdh    wdt.Handle
	closed bool
}

// New takes over hw: it resets and programs the timer, hooks its interrupt
// line, adds the swtimer task to s and starts counting. s must be set up
// before any timer work.
func New(s *sched.Scheduler, irqs *irq.Controller, hw HWTimer) (*Multiplexer, error) {
	if s == nil || irqs == nil || hw.Timer == nil {
		return nil, errors.New("swtimer: scheduler, irq controller and timer are required")
	}
	m := &Multiplexer{s: s, irqs: irqs, hw: hw}

	hw.Timer.Reset()
	if err := hw.Timer.Configure(hw.Prescaler, hw.Reload); err != nil {
		return nil, fmt.Errorf("swtimer: configure timer: %w", err)
	}
	task, err := s.AddTask(TaskName, m.process, nil)
	if err != nil {
		return nil, fmt.Errorf("swtimer: add task: %w", err)
	}
	m.task = task
	m.action = irq.Action{Handler: tickISR, Line: hw.Line, Name: TaskName, Data: m}
	if err := irqs.Register(&m.action); err != nil {
		s.RemoveTask(task)
		return nil, fmt.Errorf("swtimer: register irq: %w", err)
	}
	hw.Timer.Start()
	return m, nil
}

// AttachWatchdog makes the swtimer task a watchdog participant: it reports
// after every pass.
func (m *Multiplexer) AttachWatchdog(t *wdt.Tracker) error {
	if m.wd != nil {
		return errors.New("swtimer: watchdog already attached")
	}
	h, err := t.Register(TaskName)
	if err != nil {
		return fmt.Errorf("swtimer: %w", err)
	}
	m.wd, m.wdh = t, h
	return nil
}

// Close stops the hardware timer and detaches from the interrupt line, the
// scheduler and the watchdog. Registered timers stop firing, and Register,
// Start and SetPeriod return ErrClosed from then on.
func (m *Multiplexer) Close() error {
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.hw.Timer.Stop()
	var errs []error
	if err := m.irqs.Unregister(&m.action); err != nil {
		errs = append(errs, err)
	}
	if err := m.s.RemoveTask(m.task); err != nil {
		errs = append(errs, err)
	}
	if m.wd != nil {
		if err := m.wd.Unregister(m.wdh); err != nil {
			errs = append(errs, err)
		}
		m.wd = nil
	}
	m.ticks.Store(0)
	return errors.Join(errs...)
}

// ResetTicks drops the ticks counted but not yet processed, e.g. the ones
// that piled up during a long bring-up.
func (m *Multiplexer) ResetTicks() {
	m.ticks.Store(0)
}

// tickISR runs in interrupt context. Capture/compare flags can raise the
// line too; only the update flag advances time.
func tickISR(_ irq.Line, data any) irq.Result {
	m := data.(*Multiplexer)
	if !m.hw.Timer.UpdatePending() {
		return irq.None
	}
	m.ticks.Add(1)
	m.s.MarkReady(m.task)
	m.hw.Timer.ClearUpdate()
	return irq.Handled
}

func (m *Multiplexer) process(any) {
	if n := m.ticks.Swap(0); n > 0 {
		m.advance(time.Duration(n) * Granularity)
	}
	if m.wd != nil {
		m.wd.Report(m.wdh)
	}
}

// advance runs expiry for elapsed time in registration order. Callbacks may
// register, unregister or reconfigure timers, so the pass works on a
// snapshot of the IDs and re-validates each one.
func (m *Multiplexer) advance(elapsed time.Duration) {
	var ids [MaxTimers]ID
	n := m.n
	for i := 0; i < n; i++ {
		ids[i] = m.slots[m.order[i]].id
	}
	for _, id := range ids[:n] {
		sl := m.lookup(id)
		if sl == nil || !sl.active {
			continue
		}
		sl.remaining -= elapsed
		if sl.remaining > 0 {
			continue
		}
		sl.remaining = sl.period
		sl.cb(sl.data)
	}
}

// Register adds t and starts it with a full period.
func (m *Multiplexer) Register(t Timer) (ID, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if t.Callback == nil {
		return 0, ErrNilCallback
	}
	if t.Period < Granularity {
		return 0, fmt.Errorf("%w: %v < %v", ErrPeriodTooShort, t.Period, Granularity)
	}
	free := -1
	for i := range m.slots {
		if m.slots[i].id == 0 {
			free = i
			break
		}
	}
	if free < 0 {
		return 0, ErrTableFull
	}

	// The next ID above lastID that maps onto the free slot.
	skip := (free - int(m.lastID%MaxTimers) + MaxTimers) % MaxTimers
	id := m.lastID + 1 + ID(skip)
	m.lastID = id

	m.slots[free] = slot{
		id:        id,
		cb:        t.Callback,
		data:      t.Data,
		period:    t.Period,
		remaining: t.Period,
		active:    true,
	}
	m.order[m.n] = uint8(free)
	m.n++
	return id, nil
}

func (m *Multiplexer) lookup(id ID) *slot {
	if id == 0 {
		return nil
	}
	sl := &m.slots[(id-1)%MaxTimers]
	if sl.id != id {
		return nil
	}
	return sl
}

func (m *Multiplexer) get(id ID) (*slot, error) {
	sl := m.lookup(id)
	if sl == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTimer, id)
	}
	return sl, nil
}

// Unregister removes the timer. Its ID is never valid again.
func (m *Multiplexer) Unregister(id ID) error {
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	idx := uint8((id - 1) % MaxTimers)
	for i := 0; i < m.n; i++ {
		if m.order[i] == idx {
			copy(m.order[i:m.n], m.order[i+1:m.n])
			m.n--
			break
		}
	}
	*sl = slot{}
	return nil
}

// Start resumes the timer with whatever time it had left.
func (m *Multiplexer) Start(id ID) error {
	if m.closed {
		return ErrClosed
	}
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	sl.active = true
	return nil
}

// Stop pauses the timer; its remaining time is kept.
func (m *Multiplexer) Stop(id ID) error {
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	sl.active = false
	return nil
}

// Reset sets the remaining time back to a full period.
func (m *Multiplexer) Reset(id ID) error {
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	sl.remaining = sl.period
	return nil
}

// SetPeriod changes the period from the next cycle on. The current cycle is
// shortened if more than the new period is left of it.
func (m *Multiplexer) SetPeriod(id ID, period time.Duration) error {
	if m.closed {
		return ErrClosed
	}
	sl, err := m.get(id)
	if err != nil {
		return err
	}
	if period < Granularity {
		return fmt.Errorf("%w: %v < %v", ErrPeriodTooShort, period, Granularity)
	}
	sl.period = period
	if sl.remaining > period {
		sl.remaining = period
	}
	return nil
}

// Remaining returns the time left until the timer fires.
func (m *Multiplexer) Remaining(id ID) (time.Duration, error) {
	sl, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return sl.remaining, nil
}

// Active reports whether the timer is running.
func (m *Multiplexer) Active(id ID) (bool, error) {
	sl, err := m.get(id)
	if err != nil {
		return false, err
	}
	return sl.active, nil
}

// Len returns the number of registered timers.
func (m *Multiplexer) Len() int { return m.n }

// Pending returns the ticks counted by the interrupt handler and not yet
// processed.
func (m *Multiplexer) Pending() uint32 { return m.ticks.Load() }
