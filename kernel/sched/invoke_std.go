//go:build !tinygo

package sched

import "runtime/debug"

func (s *Scheduler) invoke(id TaskID, t task) {
	defer func() {
		if v := recover(); v != nil {
			s.fault(PanicInfo{Task: id, Name: t.name, Value: v, Stack: debug.Stack()})
		}
	}()
	t.fn(t.data)
}
