//go:build !tinygo

package hal

import (
	"sync"
	"sync/atomic"
	"time"
)

// Medium-density parts have ten 16-bit BKP data registers.
const hostBackupRegs = 10

type hostBackup struct {
	mu   sync.Mutex
	regs [hostBackupRegs]uint16
}

func (b *hostBackup) Len() int { return hostBackupRegs }

func (b *hostBackup) Load(i int) uint16 {
	if i < 0 || i >= hostBackupRegs {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[i]
}

func (b *hostBackup) Store(i int, v uint16) {
	if i < 0 || i >= hostBackupRegs {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regs[i] = v
}

// hostResetFlags mirrors RCC_CSR: flags accumulate until cleared.
type hostResetFlags struct {
	v atomic.Uint32
}

func (r *hostResetFlags) Flags() uint32 { return r.v.Load() }
func (r *hostResetFlags) Clear()        { r.v.Store(0) }

func (r *hostResetFlags) latch(flags uint32) {
	for {
		old := r.v.Load()
		if r.v.CompareAndSwap(old, old|flags) {
			return
		}
	}
}

// board is the part of the simulated hardware that outlives a system reset:
// the battery domain (backup registers, RTC) and the reset flags.
type board struct {
	backup hostBackup
	reset  hostResetFlags
	rtc    *ds3231Regs
	boots  int
}

func newBoard(now func() time.Time) *board {
	b := &board{rtc: newDS3231Regs(now)}
	b.reset.latch(ResetFlagPowerOn | ResetFlagPin)
	return b
}

// watchdogReset latches the cause the way the reset controller does when
// the IWDG counter reaches zero.
func (b *board) watchdogReset() {
	b.reset.latch(ResetFlagIndependentWatchdog | ResetFlagPin)
}
