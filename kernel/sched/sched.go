// Package sched is a cooperative round-robin task scheduler.
//
// Tasks are named callbacks in a fixed table. A task runs only after
// somebody (usually an interrupt handler) marks it ready, and it always runs
// to completion. When nothing is ready the CPU sleeps until the next
// interrupt.
package sched

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"watch/hal"
)

// MaxTasks is the capacity of the task table; the ready set has one bit per
// slot.
const MaxTasks = 32

// TaskID identifies a task. It is the table slot plus one; zero is never a
// valid task.
type TaskID uint8

// Func is a task body. data is the value given to AddTask.
type Func func(data any)

var (
	ErrTableFull     = errors.New("sched: task table full")
	ErrEmptyName     = errors.New("sched: empty task name")
	ErrDuplicateName = errors.New("sched: duplicate task name")
	ErrNilFunc       = errors.New("sched: nil task func")
	ErrInvalidTask   = errors.New("sched: invalid task")
)

type task struct {
	name string
	fn   Func
	data any
}

// Scheduler owns the task table and the ready set.
//
// AddTask, RemoveTask and RunOnce are called from task context only.
// MarkReady may also be called from interrupt handlers.
type Scheduler struct {
	cpu hal.CPU

	tasks   [MaxTasks]task
	ready   atomic.Uint32
	current int

	halted atomic.Bool
	spin   bool
	prof   *profiler
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// New returns an empty scheduler idling on cpu.
func New(cpu hal.CPU, opts ...Option) *Scheduler {
	s := &Scheduler{cpu: cpu}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithBusyIdle makes the scheduler poll the ready set instead of sleeping
// when nothing is ready.
func WithBusyIdle() Option {
	return func(s *Scheduler) { s.spin = true }
}

// AddTask puts a new task in the first free slot. The task starts blocked.
func (s *Scheduler) AddTask(name string, fn Func, data any) (TaskID, error) {
	slot := -1
	for i := range s.tasks {
		if s.tasks[i].fn == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return 0, ErrTableFull
	}
	if name == "" {
		return 0, ErrEmptyName
	}
	if fn == nil {
		return 0, ErrNilFunc
	}
	for i := range s.tasks {
		if s.tasks[i].fn != nil && s.tasks[i].name == name {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	s.tasks[slot] = task{name: name, fn: fn, data: data}
	if s.prof != nil {
		s.prof.busy[slot] = 0
	}
	return TaskID(slot + 1), nil
}

// RemoveTask frees the slot of id. A wakeup that arrives afterwards is
// dropped by the run loop.
func (s *Scheduler) RemoveTask(id TaskID) error {
	if id == 0 || int(id) > MaxTasks || s.tasks[id-1].fn == nil {
		return fmt.Errorf("%w: %d", ErrInvalidTask, id)
	}
	s.clear(int(id - 1))
	s.tasks[id-1] = task{}
	return nil
}

// MarkReady flags id as having work. It is safe in interrupt context.
// An out of range id is a programming error and panics.
func (s *Scheduler) MarkReady(id TaskID) {
	if id == 0 || int(id) > MaxTasks {
		panic("sched: MarkReady: task id out of range")
	}
	bit := uint32(1) << (id - 1)
	for {
		old := s.ready.Load()
		if old&bit != 0 || s.ready.CompareAndSwap(old, old|bit) {
			return
		}
	}
}

func (s *Scheduler) clear(slot int) {
	bit := uint32(1) << slot
	for {
		old := s.ready.Load()
		if old&bit == 0 || s.ready.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

// RunOnce runs at most one ready task and reports which. With nothing ready
// it sleeps until an interrupt and returns false.
//
// The scan starts just after the task that ran last and wraps around the
// whole table, so every ready task runs within MaxTasks picks.
func (s *Scheduler) RunOnce() (TaskID, bool) {
	var start time.Duration
	if s.prof != nil {
		start = s.prof.now()
	}

	state := s.cpu.DisableInterrupts()
	if s.ready.Load() == 0 || s.halted.Load() {
		// The check and the wait share one critical section; an interrupt
		// arriving in between stays pending and ends the wait at once.
		s.idle()
		s.cpu.RestoreInterrupts(state)
		s.account(start)
		return 0, false
	}
	s.cpu.RestoreInterrupts(state)

	ready := s.ready.Load()
	for i := s.current + 1; i <= s.current+MaxTasks; i++ {
		slot := i % MaxTasks
		if ready&(1<<slot) == 0 {
			continue
		}
		// Clear before the call so the task may mark itself ready again.
		s.clear(slot)
		t := s.tasks[slot]
		if t.fn == nil {
			continue
		}
		s.current = slot
		id := TaskID(slot + 1)
		if s.prof != nil {
			t0 := s.prof.now()
			s.invoke(id, t)
			s.prof.busy[slot] += s.prof.now() - t0
		} else {
			s.invoke(id, t)
		}
		s.account(start)
		return id, true
	}
	s.account(start)
	return 0, false
}

// Run loops RunOnce until ctx is done. On the device ctx never ends.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.RunOnce()
	}
}

func (s *Scheduler) idle() {
	if s.spin {
		return
	}
	if s.prof == nil {
		s.cpu.WaitForInterrupt()
		return
	}
	t0 := s.prof.now()
	s.cpu.WaitForInterrupt()
	s.prof.idle += s.prof.now() - t0
}

func (s *Scheduler) account(start time.Duration) {
	if s.prof != nil {
		s.prof.total += s.prof.now() - start
	}
}

// Name returns the name of id, or "" if the slot is free.
func (s *Scheduler) Name(id TaskID) string {
	if id == 0 || int(id) > MaxTasks {
		return ""
	}
	return s.tasks[id-1].name
}

// Ready returns the ready set, bit n standing for TaskID n+1.
func (s *Scheduler) Ready() uint32 { return s.ready.Load() }

// Halted reports whether a task fault stopped the scheduler.
func (s *Scheduler) Halted() bool { return s.halted.Load() }
