//go:build !tinygo

package hal

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// runConsole reads button presses from r, one per line ("s"/"set",
// "n"/"next"), and delivers them to whichever MCU is currently running. It
// returns the number of presses delivered once r is exhausted or ctx is done.
func runConsole(ctx context.Context, r io.Reader, current func() *hostHAL) int {
	n := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return n
		}
		h := current()
		if h == nil {
			continue
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		var name string
		switch cmd {
		case "":
			continue
		case "s", "set":
			name = "SET"
		case "n", "next":
			name = "NEXT"
		default:
			h.logger.WriteLineString("console: unknown command " + cmd + " (use s or n)")
			continue
		}
		if h.buttons.press(name) {
			n++
		}
	}
	return n
}
