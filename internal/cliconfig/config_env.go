package cliconfig

import "os"

// ApplyEnvConfig applies STUDYKIT_* environment variables to cfg, skipping
// values whose flag was set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", os.Getenv("STUDYKIT_HOME"), &cfg.Home)
	s.setString("data-dir", os.Getenv("STUDYKIT_DATA_DIR"), &cfg.DataDir)
	s.setString("permissions-file", os.Getenv("STUDYKIT_PERMISSIONS_FILE"), &cfg.PermissionsFile)
	s.setString("experiment-id", os.Getenv("STUDYKIT_EXPERIMENT_ID"), &cfg.ExperimentID)
	s.setString("variation", os.Getenv("STUDYKIT_TESTING_VARIATION"), &cfg.TestingVariation)
	s.setString("first-run-timestamp", os.Getenv("STUDYKIT_FIRST_RUN_TIMESTAMP"), &cfg.FirstRunTimestamp)
	s.setString("collector-url", os.Getenv("STUDYKIT_COLLECTOR_URL"), &cfg.CollectorURL)
	s.setString("resource-url", os.Getenv("STUDYKIT_RESOURCE_URL"), &cfg.ResourceURL)
	s.setString("metrics-addr", os.Getenv("STUDYKIT_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("timeout", os.Getenv("STUDYKIT_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("day-length", os.Getenv("STUDYKIT_DAY_LENGTH"), &cfg.DayLength); err != nil {
		return err
	}
	if err := s.setIntFromString("log-level", os.Getenv("STUDYKIT_LOG_LEVEL"), &cfg.LogLevel); err != nil {
		return err
	}

	s.setBoolFromString("launch-browser", os.Getenv("STUDYKIT_LAUNCH_BROWSER"), &cfg.LaunchBrowser)
	s.setBoolFromString("watch-consent", os.Getenv("STUDYKIT_WATCH_CONSENT"), &cfg.WatchConsent)

	return nil
}
