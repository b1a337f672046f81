package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all values",
			fileConfig: FileConfig{
				Home:              "/h",
				DataDir:           "/d",
				PermissionsFile:   "/p.toml",
				ExperimentID:      "exp",
				TestingVariation:  "control",
				FirstRunTimestamp: "2026-01-01T00:00:00Z",
				CollectorURL:      "http://c",
				HTTPTimeout:       "30s",
				ResourceURL:       "skin/x.css",
				DayLength:         "1m",
				LogLevel:          20,
				LaunchBrowser:     &trueVal,
				WatchConsent:      &falseVal,
				MetricsAddr:       ":9100",
			},
			changed: map[string]bool{},
			initial: Config{WatchConsent: true},
			expected: Config{
				Home:              "/h",
				DataDir:           "/d",
				PermissionsFile:   "/p.toml",
				ExperimentID:      "exp",
				TestingVariation:  "control",
				FirstRunTimestamp: "2026-01-01T00:00:00Z",
				CollectorURL:      "http://c",
				HTTPTimeout:       30 * time.Second,
				ResourceURL:       "skin/x.css",
				DayLength:         time.Minute,
				LogLevel:          20,
				LaunchBrowser:     true,
				WatchConsent:      false,
				MetricsAddr:       ":9100",
			},
		},
		{
			name:       "respects changed flags",
			fileConfig: FileConfig{Home: "/file", ExperimentID: "file-exp"},
			changed:    map[string]bool{"home": true},
			initial:    Config{Home: "/flag"},
			expected:   Config{Home: "/flag", ExperimentID: "file-exp"},
		},
		{
			name:       "nil bools keep initial values",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{WatchConsent: true, LaunchBrowser: true},
			expected:   Config{WatchConsent: true, LaunchBrowser: true},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{DayLength: "one day"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
home = "/srv/studykit"
collector_url = "http://collector"
day_length = "10s"
log_level = 30
launch_browser = true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig: %v", err)
	}
	if fc.Home != "/srv/studykit" || fc.CollectorURL != "http://collector" || fc.DayLength != "10s" || fc.LogLevel != 30 {
		t.Errorf("unexpected file config: %+v", fc)
	}
	if fc.LaunchBrowser == nil || !*fc.LaunchBrowser {
		t.Error("launch_browser not parsed")
	}
	if fc.WatchConsent != nil {
		t.Error("watch_consent should be nil when absent")
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("home = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if !FileExists(dir) {
		t.Error("FileExists(dir) = false")
	}
	if FileExists(filepath.Join(dir, "nope")) {
		t.Error("FileExists(missing) = true")
	}
}
