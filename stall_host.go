//go:build !tinygo

package main

import (
	"fmt"
	"strings"
	"time"

	"watch/internal/config"
)

// parseStall parses "task=delay". A bare delay stalls the clock task.
func parseStall(s string) (task string, after time.Duration, err error) {
	task, raw, ok := strings.Cut(s, "=")
	if !ok {
		task, raw = "clock", s
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return "", 0, fmt.Errorf("-stall: empty task in %q", s)
	}
	after, err = config.ParseDurationField("-stall", raw)
	if err != nil {
		return "", 0, err
	}
	if after == 0 {
		return "", 0, fmt.Errorf("-stall: delay must be positive")
	}
	return task, after, nil
}
