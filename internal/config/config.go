package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settlement job configuration, read from JUDGE_* environment variables
type Config struct {
	// Credentials is the serialized store credentials; required
	Credentials string `env:"JUDGE_STORE_CREDENTIALS"`

	// UTCOffset shifts UTC into the audience's local calendar
	UTCOffset time.Duration `env:"JUDGE_UTC_OFFSET" envDefault:"-3h"`
	// WeeklyDay is the local weekday on which the weekly period settles
	WeeklyDay string `env:"JUDGE_WEEKLY_DAY" envDefault:"friday"`

	Tolerance int64 `env:"JUDGE_TOLERANCE"  envDefault:"5"`
	SeedGrant int64 `env:"JUDGE_SEED_GRANT" envDefault:"5"`

	Workers       int           `env:"JUDGE_WORKERS"        envDefault:"8"`
	CommitRetries uint64        `env:"JUDGE_COMMIT_RETRIES" envDefault:"3"`
	RetryInterval time.Duration `env:"JUDGE_RETRY_INTERVAL" envDefault:"200ms"`

	// NotificationRetention is how long read messages stay in an outbox
	NotificationRetention time.Duration `env:"JUDGE_NOTIFICATION_RETENTION" envDefault:"72h"`

	// RewardsFile optionally overrides the reward tables (TOML)
	RewardsFile string `env:"JUDGE_REWARDS_FILE"`
	// MetricsTextfile, if set, receives Prometheus metrics after each run
	MetricsTextfile string `env:"JUDGE_METRICS_TEXTFILE"`

	// Schedule mode
	Schedule  string `env:"JUDGE_SCHEDULE"   envDefault:"5 3 * * *"`
	AdminAddr string `env:"JUDGE_ADMIN_ADDR" envDefault:":9090"`

	LogLevel string `env:"JUDGE_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that the env parser cannot
func (c Config) Validate() error {
	if _, err := ParseWeekday(c.WeeklyDay); err != nil {
		return err
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("JUDGE_TOLERANCE must be non-negative, got %d", c.Tolerance)
	}
	if c.Workers < 1 {
		return fmt.Errorf("JUDGE_WORKERS must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Weekday returns the configured weekly settlement day
func (c Config) Weekday() time.Weekday {
	day, err := ParseWeekday(c.WeeklyDay)
	if err != nil {
		return time.Friday
	}
	return day
}

// ParseWeekday parses an English weekday name, case-insensitively
func ParseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
