package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/studykit/internal/app"
	"github.com/bft-labs/studykit/internal/cliconfig"
	"github.com/bft-labs/studykit/internal/host"
	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/study"
	"github.com/bft-labs/studykit/pkg/variation"
)

const longHelp = `Run the cloud storage notification study on this machine.

On each start studykit resolves enrollment from the local permission file,
then either activates the assigned variation and keeps it running, or ends
the study: it opens the ending survey if one is configured and uninstalls.`

var exampleUsage = strings.TrimSpace(`
  studykit --home ~/.studykit
  studykit --variation control --first-run-timestamp 2024-01-01T00:00:00Z
  studykit status
  studykit end user-disable
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	// loadConfig resolves cfg from file, environment and flags, in that
	// order of increasing precedence.
	loadConfig := func(cmd *cobra.Command) error {
		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			fc, err := cliconfig.LoadFileConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return err
			}
		}

		if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
			return err
		}
		return cfg.Validate()
	}

	openStore := func() (kvstore.Store, error) {
		return kvstore.NewFS(cfg.DataDir)
	}

	root := &cobra.Command{
		Use:           "studykit",
		Short:         "Run the cloud storage notification study",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			level := cfg.LogLevel
			if level == 0 {
				level = study.Default().LogLevel
			}
			zl := logger.Level(log.LevelFromStudy(level))
			zl.Info().Interface("config", cfg).Msg("configuration")

			a, err := app.New(cfg, app.WithLogger(log.NewZerologAdapterWithLogger(zl)))
			if err != nil {
				return fmt.Errorf("create app: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.Run(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				zl.Info().Msg("received signal, stopped")
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the persisted study state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			st, err := host.ReadStatus(cmd.Context(), store)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}

	end := &cobra.Command{
		Use:   "end <reason>",
		Short: "End the study on the next run with the given ending",
		Example: strings.TrimSpace(`
  studykit end user-disable
  studykit end dataPermissionsRevoked`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := host.RequestEnding(cmd.Context(), store, args[0]); err != nil {
				return err
			}
			logger.Info().Str("reason", args[0]).Msg("ending requested")
			return nil
		},
	}
	root.AddCommand(status, end)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.studykit/config.toml)")
	flags.StringVar(&cfg.Home, "home", cfg.Home, "studykit home directory")
	flags.StringVar(&cfg.DataDir, "data-dir", "", "directory for persisted study state (defaults to <home>/data)")
	flags.StringVar(&cfg.PermissionsFile, "permissions-file", "", "TOML file holding telemetry consent (defaults to <home>/permissions.toml)")

	runFlags := root.Flags()
	runFlags.StringVar(&cfg.ExperimentID, "experiment-id", cfg.ExperimentID, "active experiment id")
	runFlags.StringVar(&cfg.TestingVariation, "variation", "", "force a variation (testing)")
	runFlags.StringVar(&cfg.FirstRunTimestamp, "first-run-timestamp", "", "force the first run time, RFC 3339 (testing)")
	runFlags.StringVar(&cfg.CollectorURL, "collector-url", cfg.CollectorURL, "telemetry collector base URL; telemetry is logged when empty")
	runFlags.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")
	runFlags.StringVar(&cfg.ResourceURL, "resource-url", "", "stylesheet handed to the feature (default "+variation.DefaultResourceURL+")")
	runFlags.DurationVar(&cfg.DayLength, "day-length", cfg.DayLength, "length of a prompt interval day")
	if err := runFlags.MarkHidden("day-length"); err != nil {
		logger.Info().Err(err).Msg("failed to hide day-length flag")
	}
	runFlags.IntVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "study log level (10 debug, 20 info, 30 warn, 40 error)")
	runFlags.BoolVar(&cfg.LaunchBrowser, "launch-browser", cfg.LaunchBrowser, "open ending URLs in the browser")
	runFlags.BoolVar(&cfg.WatchConsent, "watch-consent", cfg.WatchConsent, "end the study when consent is revoked while active")
	runFlags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled when empty)")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("studykit")
		os.Exit(1)
	}
}
