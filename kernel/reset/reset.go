// Package reset decodes why the MCU came out of reset.
package reset

import "watch/hal"

// Cause is the reset cause reported by the clock controller.
type Cause uint8

const (
	Unknown Cause = iota
	LowPower
	WindowWatchdog
	IndependentWatchdog
	Software
	PowerOn
	Pin
)

var causeNames = [...]string{
	Unknown:             "Unknown",
	LowPower:            "Low Power Reset",
	WindowWatchdog:      "Window Watchdog Reset",
	IndependentWatchdog: "Independent Watchdog Reset",
	Software:            "Software Reset",
	PowerOn:             "Power-On / Power-Down Reset",
	Pin:                 "External Pin Reset",
}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return causeNames[Unknown]
}

// Watchdog reports whether the reset was caused by one of the watchdogs.
func (c Cause) Watchdog() bool {
	return c == WindowWatchdog || c == IndependentWatchdog
}

// precedence lists flag/cause pairs in decreasing priority. The pin flag is
// set together with every other one, so it comes last.
var precedence = [...]struct {
	flag  uint32
	cause Cause
}{
	{hal.ResetFlagLowPower, LowPower},
	{hal.ResetFlagWindowWatchdog, WindowWatchdog},
	{hal.ResetFlagIndependentWatchdog, IndependentWatchdog},
	{hal.ResetFlagSoftware, Software},
	{hal.ResetFlagPowerOn, PowerOn},
	{hal.ResetFlagPin, Pin},
}

// Decode maps latched reset flags to a single cause.
func Decode(flags uint32) Cause {
	for _, p := range precedence {
		if flags&p.flag != 0 {
			return p.cause
		}
	}
	return Unknown
}

// Read returns the cause latched in r and clears the flags, otherwise they
// stay set across later resets until power is removed.
func Read(r hal.ResetFlags) Cause {
	if r == nil {
		return Unknown
	}
	c := Decode(r.Flags())
	r.Clear()
	return c
}
