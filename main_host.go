//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"watch/app"
	"watch/hal"
	"watch/internal/config"
)

func main() {
	var (
		cfgPath  string
		headless bool
		logLevel string
		stall    string
		hc       hal.HeadlessConfig
	)
	flag.StringVar(&cfgPath, "config", "", "YAML configuration file.")
	flag.BoolVar(&headless, "headless", false, "Run without a window; buttons are read from stdin (s, n).")
	flag.DurationVar(&hc.Duration, "duration", 0, "Stop after this long in headless mode (0 = run forever).")
	flag.IntVar(&hc.MaxResets, "max-resets", 0, "Give up after N watchdog resets (0 = never).")
	flag.StringVar(&logLevel, "log-level", "", "Override the log level (emerg ... debug).")
	flag.StringVar(&stall, "stall", "", "Debug: stop a task's watchdog reports after a delay, as task=delay (clock=3s).")
	flag.BoolVar(&hc.NoColor, "no-color", false, "Disable colored console output.")
	flag.Parse()

	cfg, err := loadConfig(cfgPath, logLevel, stall)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if headless {
		hc.EchoLCD = true
		hc.Console = os.Stdin
		err = hal.RunHeadless(ctx, app.Program(cfg), hc)
	} else {
		err = hal.RunWindow(ctx, app.Program(cfg), hc.HostConfig)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path, logLevel, stall string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if logLevel != "" {
		lvl, ok := hal.ParseLogLevel(logLevel)
		if !ok {
			return cfg, fmt.Errorf("-log-level: unknown level %q", logLevel)
		}
		cfg.LogLevel = lvl
	}
	if stall != "" {
		task, after, err := parseStall(stall)
		if err != nil {
			return cfg, err
		}
		cfg.Debug.StallTask, cfg.Debug.StallAfter = task, after
	}
	return cfg, cfg.Validate()
}
