package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML friendly types.
type FileConfig struct {
	Home              string `toml:"home"`
	DataDir           string `toml:"data_dir"`
	PermissionsFile   string `toml:"permissions_file"`
	ExperimentID      string `toml:"experiment_id"`
	TestingVariation  string `toml:"testing_variation"`
	FirstRunTimestamp string `toml:"first_run_timestamp"`
	CollectorURL      string `toml:"collector_url"`
	HTTPTimeout       string `toml:"http_timeout"`
	ResourceURL       string `toml:"resource_url"`
	DayLength         string `toml:"day_length"`
	LogLevel          int    `toml:"log_level"`
	LaunchBrowser     *bool  `toml:"launch_browser"`
	WatchConsent      *bool  `toml:"watch_consent"`
	MetricsAddr       string `toml:"metrics_addr"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.studykit/config.toml, or an empty string when
// the home directory is not accessible.
func DefaultConfigPath() string {
	if h := DefaultHome(); h != "" {
		return filepath.Join(h, "config.toml")
	}
	return ""
}

// ApplyFileConfig applies fc to cfg, skipping values whose flag was set.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", fc.Home, &cfg.Home)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("permissions-file", fc.PermissionsFile, &cfg.PermissionsFile)
	s.setString("experiment-id", fc.ExperimentID, &cfg.ExperimentID)
	s.setString("variation", fc.TestingVariation, &cfg.TestingVariation)
	s.setString("first-run-timestamp", fc.FirstRunTimestamp, &cfg.FirstRunTimestamp)
	s.setString("collector-url", fc.CollectorURL, &cfg.CollectorURL)
	s.setString("resource-url", fc.ResourceURL, &cfg.ResourceURL)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("day-length", fc.DayLength, &cfg.DayLength); err != nil {
		return err
	}

	s.setInt("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setBool("launch-browser", fc.LaunchBrowser, &cfg.LaunchBrowser)
	s.setBool("watch-consent", fc.WatchConsent, &cfg.WatchConsent)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
