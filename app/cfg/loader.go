package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"jobs_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"jobs_password" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"jobengine" description:"Database name"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Aggregation configuration
	RunSchedule     string `long:"run-schedule" env:"RUN_SCHEDULE" default:"0 6 * * *" description:"Cron expression for scheduled aggregation runs"`
	CleanupSchedule string `long:"cleanup-schedule" env:"CLEANUP_SCHEDULE" default:"30 4 * * *" description:"Cron expression for scheduled retention cleanups"`
	RunTimeout      int    `long:"run-timeout" env:"RUN_TIMEOUT" default:"600" description:"Overall aggregation run timeout in seconds"`
	SourceTimeout   int    `long:"source-timeout" env:"SOURCE_TIMEOUT" default:"60" description:"Per-source fetch timeout in seconds"`
	SearchKeywords  string `long:"search-keywords" env:"SEARCH_KEYWORDS" default:"software engineer" description:"Keywords passed to search-style sources"`
	SearchLocation  string `long:"search-location" env:"SEARCH_LOCATION" default:"USA" description:"Location passed to search-style sources"`

	// Retention configuration
	InactiveAfterDays int `long:"inactive-after-days" env:"INACTIVE_AFTER_DAYS" default:"30" description:"Days without refresh before a listing is deactivated"`
	DeleteAfterDays   int `long:"delete-after-days" env:"DELETE_AFTER_DAYS" default:"90" description:"Days without refresh before a listing is deleted"`

	// Source credentials
	USAJobsAPIKey  string `long:"usajobs-api-key" env:"USAJOBS_API_KEY" description:"USAJobs API key"`
	USAJobsEmail   string `long:"usajobs-email" env:"USAJOBS_EMAIL" description:"Contact email sent as User-Agent to the USAJobs API"`
	JoobleAPIKey   string `long:"jooble-api-key" env:"JOOBLE_API_KEY" description:"Jooble API key"`
	CareerjetAffID string `long:"careerjet-affid" env:"CAREERJET_AFFID" description:"Careerjet affiliate ID"`
	UniversityFile string `long:"university-targets" env:"UNIVERSITY_TARGETS" description:"YAML file listing university career-page targets (optional, built-in list used otherwise)"`
	SignalsFile    string `long:"signals-file" env:"SIGNALS_FILE" description:"YAML file with the visa classifier signal table (optional, built-in table used otherwise)"`

	// Optional stats persistence
	RedisURL string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for persisting run stats across restarts (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"SponsorScout JobEngine/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		RunSchedule:       raw.RunSchedule,
		CleanupSchedule:   raw.CleanupSchedule,
		RunTimeout:        raw.RunTimeout,
		SourceTimeout:     raw.SourceTimeout,
		SearchKeywords:    raw.SearchKeywords,
		SearchLocation:    raw.SearchLocation,
		InactiveAfterDays: raw.InactiveAfterDays,
		DeleteAfterDays:   raw.DeleteAfterDays,
		USAJobsAPIKey:     raw.USAJobsAPIKey,
		USAJobsEmail:      raw.USAJobsEmail,
		JoobleAPIKey:      raw.JoobleAPIKey,
		CareerjetAffID:    raw.CareerjetAffID,
		UniversityFile:    raw.UniversityFile,
		SignalsFile:       raw.SignalsFile,
		RedisURL:          raw.RedisURL,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTest installs a config for tests that bypass Load.
func SetForTest(cfg *Cfg) {
	globalCfg = cfg
}

// validate rejects configurations that would make the retention engine delete
// listings that still look active. The delete window must cover the inactive
// window.
func validate(cfg *Cfg) error {
	if cfg.InactiveAfterDays <= 0 {
		return fmt.Errorf("inactive-after-days must be positive, got %d", cfg.InactiveAfterDays)
	}
	if cfg.DeleteAfterDays <= 0 {
		return fmt.Errorf("delete-after-days must be positive, got %d", cfg.DeleteAfterDays)
	}
	if cfg.DeleteAfterDays < cfg.InactiveAfterDays {
		return fmt.Errorf("delete-after-days (%d) must not be shorter than inactive-after-days (%d)",
			cfg.DeleteAfterDays, cfg.InactiveAfterDays)
	}
	if cfg.RunTimeout <= 0 {
		return fmt.Errorf("run-timeout must be positive, got %d", cfg.RunTimeout)
	}
	if cfg.SourceTimeout <= 0 {
		return fmt.Errorf("source-timeout must be positive, got %d", cfg.SourceTimeout)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
