package swtimer

import (
	"errors"
	"fmt"
	"time"
)

var ErrTickUnreachable = errors.New("swtimer: tick not reachable with a 16-bit timer")

// Params returns the prescaler and reload values that make a 16-bit timer
// clocked at clockHz overflow exactly every tick, preferring the smallest
// prescaler (finest resolution).
func Params(clockHz uint32, tick time.Duration) (prescaler, reload uint32, err error) {
	if clockHz == 0 || tick <= 0 || tick > time.Minute {
		return 0, 0, fmt.Errorf("%w: clock %d Hz, tick %v", ErrTickUnreachable, clockHz, tick)
	}
	num := uint64(clockHz) * uint64(tick)
	if num%uint64(time.Second) != 0 {
		return 0, 0, fmt.Errorf("%w: %v is not a whole number of %d Hz cycles", ErrTickUnreachable, tick, clockHz)
	}
	cycles := num / uint64(time.Second)

	const limit = 1 << 16
	first := (cycles + limit - 1) / limit
	if first == 0 {
		first = 1
	}
	for p := first; p <= limit; p++ {
		if cycles%p != 0 {
			continue
		}
		r := cycles / p
		if r > limit {
			continue
		}
		return uint32(p - 1), uint32(r - 1), nil
	}
	return 0, 0, fmt.Errorf("%w: %d cycles", ErrTickUnreachable, cycles)
}

// Period is the overflow period of a timer clocked at clockHz.
func Period(clockHz, prescaler, reload uint32) time.Duration {
	if clockHz == 0 {
		return 0
	}
	cycles := uint64(prescaler+1) * uint64(reload+1)
	return time.Duration(cycles * uint64(time.Second) / uint64(clockHz))
}
