//go:build !tinygo

// Command timcalc prints the prescaler and reload values that make a 16-bit
// timer overflow at a given period.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"watch/kernel/swtimer"
)

const defaultClockHz = 72_000_000

func main() {
	var (
		clockHz uint
		tick    time.Duration
	)
	flag.UintVar(&clockHz, "clock", defaultClockHz, "Timer input clock (Hz).")
	flag.DurationVar(&tick, "tick", swtimer.Granularity, "Wanted overflow period.")
	flag.Parse()

	if clockHz == 0 || clockHz > 1<<32-1 {
		fmt.Fprintln(os.Stderr, "error: -clock out of range")
		os.Exit(2)
	}
	if err := run(os.Stdout, uint32(clockHz), tick); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, clockHz uint32, tick time.Duration) error {
	psc, arr, err := swtimer.Params(clockHz, tick)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "clock     %d Hz\n", clockHz)
	fmt.Fprintf(w, "prescaler %d (PSC=%d)\n", psc+1, psc)
	fmt.Fprintf(w, "reload    %d (ARR=%d)\n", arr+1, arr)
	fmt.Fprintf(w, "period    %v\n", swtimer.Period(clockHz, psc, arr))
	return nil
}
