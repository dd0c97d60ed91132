package app

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const lcdCols = 16

var weekdays = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// clockLine is "HH:MM:SS", the temperature right-aligned, and the alarm
// indicator in the last column.
func clockLine(t time.Time, temp string, alarm bool) string {
	ind := ' '
	if alarm {
		ind = '*'
	}
	return fmt.Sprintf("%02d:%02d:%02d %6s%c", t.Hour(), t.Minute(), t.Second(), temp, ind)
}

// dateLine is "WDAY DD/MM/YY".
func dateLine(t time.Time) string {
	return fmt.Sprintf("%s %02d/%02d/%02d", weekdays[t.Weekday()], t.Day(), int(t.Month()), t.Year()%100)
}

func alarmLine(hour, minute int, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("Alarm %02d:%02d %s", hour, minute, state)
}

// tempString renders milli-degrees Celsius with one decimal, e.g. "-3.5C".
func tempString(milliC int32) string {
	neg := milliC < 0
	if neg {
		milliC = -milliC
	}
	tenths := (milliC + 50) / 100
	s := fmt.Sprintf("%d.%dC", tenths/10, tenths%10)
	if neg && tenths != 0 {
		s = "-" + s
	}
	return s
}

// fitLine cuts or pads s to exactly one display row.
func fitLine(s string) string {
	s, _ = takeRunes(s, lcdCols)
	if n := utf8.RuneCountInString(s); n < lcdCols {
		s += strings.Repeat(" ", lcdCols-n)
	}
	return s
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if len(s) <= n {
		return s, ""
	}
	var i, count int
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
