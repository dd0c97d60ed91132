package sched

import "sync/atomic"

// PanicInfo describes a task that panicked.
type PanicInfo struct {
	Task  TaskID
	Name  string
	Value any
	Stack []byte
}

var panicHandler atomic.Value // func(PanicInfo)

// SetPanicHandler installs a process-wide handler for task panics.
//
// After a panic the scheduler stops running tasks and only sleeps, like a
// core spinning in its fault handler; nobody reports to the watchdog any
// more and the hardware resets the MCU. The handler is called at most once
// per scheduler. It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

func (s *Scheduler) fault(info PanicInfo) {
	if !s.halted.CompareAndSwap(false, true) {
		return
	}
	if v := panicHandler.Load(); v != nil {
		if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
			fn(info)
		}
	}
}
