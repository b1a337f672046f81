// Package studykit runs the cloud storage notification study on the local
// machine.
//
// Example usage:
//
//	cfg := studykit.DefaultConfig()
//	cfg.Home = "/path/to/studykit"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := studykit.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package studykit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bft-labs/studykit/internal/app"
	"github.com/bft-labs/studykit/internal/cliconfig"
	"github.com/bft-labs/studykit/pkg/log"
)

// Config holds the configuration of a study run.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Run runs the study once for this process. It returns when the study has
// ended or, while the study is active, when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	a, err := app.New(cfg, app.WithLogger(log.NewZerologAdapterWithLogger(Logger())))
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Logger returns the package-level zerolog logger.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
