package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mcoot/arcade-judge/internal/config"
	"github.com/mcoot/arcade-judge/internal/dependencies/clock"
	"github.com/mcoot/arcade-judge/internal/factory"
)

// Options holds the global CLI flags
type Options struct {
	Output   string
	LogLevel string
}

// DefaultOptions returns Options with default values
func DefaultOptions() *Options {
	return &Options{Output: "text"}
}

// newLogger builds the JSON logger used by every command
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// buildApp wires the application from the loaded settings. clk may be nil.
func buildApp(clk clock.Clock) (*factory.App, error) {
	rewards, err := config.LoadRewards(settings.RewardsFile)
	if err != nil {
		return nil, err
	}

	return factory.New(factory.Config{
		Settings: settings,
		Rewards:  &rewards,
		Logger:   logger,
		Clock:    clk,
	})
}
