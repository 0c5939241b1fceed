package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath      string        `long:"db-path" env:"DB_PATH" default:"./data/orbit-news.sqlite" description:"Path to the favorites SQLite database"`
	BusyTimeout time.Duration `long:"busy-timeout" env:"BUSY_TIMEOUT" default:"5s" description:"How long SQLite waits for a lock before failing"`

	// Feed configuration
	FeedsDir           string        `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed source files"`
	BaseURL            string        `long:"base-url" env:"BASE_URL" default:"https://api.spaceflightnewsapi.net/v4/articles" description:"Article API used when no feed source files exist"`
	PageSize           int           `long:"page-size" env:"PAGE_SIZE" default:"10" description:"Default number of articles per page"`
	RequestTimeout     time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30s" description:"Default timeout for feed requests"`
	ReaderAllowPrivate bool          `long:"reader-allow-private" env:"READER_ALLOW_PRIVATE" description:"Let the reader view download pages from private and loopback addresses"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	PublicURL         string `long:"public-url" env:"PUBLIC_URL" description:"Public base URL for the service (e.g., https://news.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background refresh workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"OrbitNews/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	JSONLogs  bool   `long:"json-logs" env:"JSON_LOGS" description:"Write logs as JSON"`
}

// Load parses args (without the program name). It returns nil, nil when
// help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		BusyTimeout:        raw.BusyTimeout,
		FeedsDir:           raw.FeedsDir,
		BaseURL:            raw.BaseURL,
		PageSize:           raw.PageSize,
		RequestTimeout:     raw.RequestTimeout,
		ReaderAllowPrivate: raw.ReaderAllowPrivate,
		Port:               raw.Port,
		PublicURL:          raw.PublicURL,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		JSONLogs:           raw.JSONLogs,
		Version:            GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyTimezone sets time.Local to the configured zone. An unknown zone
// leaves the system default in place.
func (c *Cfg) ApplyTimezone() {
	if err := applyTimezone(c.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", c.Timezone, "error", err)
	}
}

func validate(cfg *Cfg) error {
	positive := map[string]int{
		"page size":          cfg.PageSize,
		"worker count":       cfg.WorkerCount,
		"scheduler interval": cfg.SchedulerInterval,
	}
	for name, value := range positive {
		if value < 1 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if cfg.BusyTimeout < 0 || cfg.RequestTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("database path is required")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			slog.Debug("Timezone configured", "timezone", timezone)
		}
	}
	return nil
}
