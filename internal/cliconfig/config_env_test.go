package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies env vars",
			envVars: map[string]string{
				"STUDYKIT_HOME":           "/env",
				"STUDYKIT_COLLECTOR_URL":  "http://env-collector",
				"STUDYKIT_DAY_LENGTH":     "5s",
				"STUDYKIT_LOG_LEVEL":      "20",
				"STUDYKIT_LAUNCH_BROWSER": "1",
			},
			changed: map[string]bool{},
			expected: Config{
				Home:          "/env",
				CollectorURL:  "http://env-collector",
				DayLength:     5 * time.Second,
				LogLevel:      20,
				LaunchBrowser: true,
			},
		},
		{
			name:     "respects changed flags",
			envVars:  map[string]string{"STUDYKIT_HOME": "/env"},
			changed:  map[string]bool{"home": true},
			initial:  Config{Home: "/flag"},
			expected: Config{Home: "/flag"},
		},
		{
			name:     "watch consent false",
			envVars:  map[string]string{"STUDYKIT_WATCH_CONSENT": "false"},
			changed:  map[string]bool{},
			initial:  Config{WatchConsent: true},
			expected: Config{WatchConsent: false},
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"STUDYKIT_HTTP_TIMEOUT": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"STUDYKIT_LOG_LEVEL": "loud"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{
				"STUDYKIT_HOME", "STUDYKIT_DATA_DIR", "STUDYKIT_PERMISSIONS_FILE",
				"STUDYKIT_EXPERIMENT_ID", "STUDYKIT_TESTING_VARIATION", "STUDYKIT_FIRST_RUN_TIMESTAMP",
				"STUDYKIT_COLLECTOR_URL", "STUDYKIT_RESOURCE_URL", "STUDYKIT_METRICS_ADDR",
				"STUDYKIT_HTTP_TIMEOUT", "STUDYKIT_DAY_LENGTH", "STUDYKIT_LOG_LEVEL",
				"STUDYKIT_LAUNCH_BROWSER", "STUDYKIT_WATCH_CONSENT",
			} {
				t.Setenv(k, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
