package hal

import (
	"errors"
	"fmt"
	"time"
)

// lsiHz is the nominal LSI clock feeding the IWDG.
const lsiHz = 40_000

// iwdgParams picks the smallest prescaler (/4 << pr) whose 12-bit reload
// covers timeout.
func iwdgParams(timeout time.Duration) (pr, rl uint32, err error) {
	if timeout <= 0 {
		return 0, 0, errors.New("iwdg: timeout must be positive")
	}
	for pr = 0; pr <= 6; pr++ {
		div := uint64(4) << pr
		ticks := uint64(timeout) * lsiHz / div / uint64(time.Second)
		if ticks == 0 {
			ticks = 1
		}
		if ticks <= 0x1000 {
			return pr, uint32(ticks - 1), nil
		}
	}
	return 0, 0, fmt.Errorf("iwdg: timeout %v too long", timeout)
}

// iwdgTimeout is the timeout the IWDG actually runs with for pr and rl.
func iwdgTimeout(pr, rl uint32) time.Duration {
	return time.Duration(uint64(rl+1)*(uint64(4)<<pr)) * time.Second / lsiHz
}
