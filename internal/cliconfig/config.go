package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/studykit/pkg/study"
)

// Config holds CLI configuration for studykit.
type Config struct {
	// Home is the studykit home directory; other paths default below it.
	Home            string
	DataDir         string
	PermissionsFile string

	ExperimentID      string
	TestingVariation  string
	FirstRunTimestamp string

	CollectorURL string
	HTTPTimeout  time.Duration

	ResourceURL string
	DayLength   time.Duration

	LogLevel      int
	LaunchBrowser bool
	WatchConsent  bool
	MetricsAddr   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Home:         DefaultHome(),
		ExperimentID: study.DefaultExperimentID,
		HTTPTimeout:  15 * time.Second,
		DayLength:    24 * time.Hour,
		WatchConsent: true,
	}
}

// DefaultHome returns ~/.studykit, or an empty string when the home
// directory cannot be determined.
func DefaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".studykit")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Home == "" && (c.DataDir == "" || c.PermissionsFile == "") {
		return fmt.Errorf("home is required (or both data-dir and permissions-file)")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.Home, "data")
	}
	if c.PermissionsFile == "" {
		c.PermissionsFile = filepath.Join(c.Home, "permissions.toml")
	}
	if c.ExperimentID == "" {
		c.ExperimentID = study.DefaultExperimentID
	}

	c.CollectorURL = strings.TrimRight(c.CollectorURL, "/")

	if c.FirstRunTimestamp != "" {
		if _, err := c.FirstRun(); err != nil {
			return err
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DayLength <= 0 {
		return fmt.Errorf("day-length must be positive")
	}
	if c.LogLevel < 0 {
		return fmt.Errorf("log-level must not be negative")
	}
	return nil
}

// FirstRun parses FirstRunTimestamp. The zero time is returned when unset.
func (c *Config) FirstRun() (time.Time, error) {
	if c.FirstRunTimestamp == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, c.FirstRunTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse first-run-timestamp: %w", err)
	}
	return ts, nil
}

// configSetter applies values while respecting flag precedence: a value is
// only applied if the corresponding flag has not been set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString is setInt for values coming from the environment.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
