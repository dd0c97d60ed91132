//go:build tinygo

package sched

// Bare-metal targets cannot recover; a panicking task traps and the
// watchdog resets the MCU.
func (s *Scheduler) invoke(id TaskID, t task) {
	t.fn(t.data)
}
