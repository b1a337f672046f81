// Package app assembles the study components from a CLI configuration and
// drives one process run of the study.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/studykit/internal/cliconfig"
	"github.com/bft-labs/studykit/internal/host"
	"github.com/bft-labs/studykit/internal/metrics"
	"github.com/bft-labs/studykit/pkg/eligibility"
	"github.com/bft-labs/studykit/pkg/ending"
	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/lifecycle"
	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/study"
	"github.com/bft-labs/studykit/pkg/telemetry"
	"github.com/bft-labs/studykit/pkg/variation"
)

// ShutdownTimeout bounds how long Run waits for background workers.
const ShutdownTimeout = 5 * time.Second

// ErrShutdownTimeout is returned when workers do not stop in time.
var ErrShutdownTimeout = errors.New("app: shutdown timeout")

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(a *App) { a.logger = log.OrNoop(l) }
}

// WithHTTPClient sets the client used to post telemetry.
func WithHTTPClient(c telemetry.HTTPClient) Option {
	return func(a *App) { a.client = c }
}

// WithRegistry sets the Prometheus registry metrics are registered with and
// served from.
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *App) { a.registry = r }
}

// App owns the durable store and the collaborators shared by all lifecycle
// passes of a process run.
type App struct {
	cfg      cliconfig.Config
	logger   log.Logger
	client   telemetry.HTTPClient
	registry *prometheus.Registry

	store    kvstore.Store
	perms    *host.PermissionFile
	cache    *eligibility.Cache
	recorder *metrics.Recorder

	wg sync.WaitGroup
}

// New creates an App. cfg must have been validated.
func New(cfg cliconfig.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}

	store, err := kvstore.NewFS(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	recorder, err := metrics.NewRecorder(a.registry)
	if err != nil {
		return nil, err
	}

	a.store = store
	a.recorder = recorder
	a.perms = host.NewPermissionFile(cfg.PermissionsFile, study.Default().StudyType)
	a.cache = eligibility.NewCache(store, a.perms, a.logger)
	return a, nil
}

// Store returns the durable store.
func (a *App) Store() kvstore.Store {
	return a.store
}

// Descriptor builds the descriptor for this run.
func (a *App) Descriptor(ctx context.Context) (study.Descriptor, error) {
	opts := []study.Option{
		study.WithExperimentID(a.cfg.ExperimentID),
		study.WithLogger(a.logger),
	}
	if a.cfg.TestingVariation != "" {
		opts = append(opts, study.WithTestingVariation(a.cfg.TestingVariation))
	}
	if a.cfg.FirstRunTimestamp != "" {
		ts, err := a.cfg.FirstRun()
		if err != nil {
			return study.Descriptor{}, err
		}
		opts = append(opts, study.WithFirstRunTimestamp(ts))
	}
	return study.NewBuilder(a.cache, opts...).Build(ctx)
}

// pass holds the per-pass collaborators.
type pass struct {
	feature    *host.Feature
	relay      *telemetry.Relay
	controller *lifecycle.Controller
}

func (a *App) newPass(desc study.Descriptor) (*pass, error) {
	feature := host.NewFeature(a.store, a.cfg.DayLength, a.logger)
	relay := telemetry.NewRelay(feature, a.sink(desc), a.logger, a.recorder)

	resourceURL := a.cfg.ResourceURL
	if resourceURL == "" {
		resourceURL = variation.DefaultResourceURL
	}
	controller, err := lifecycle.New(desc, lifecycle.Deps{
		Setup:      host.NewSetup(a.store, a.logger),
		Dispatcher: variation.NewDispatcher(feature, relay, resourceURL, a.logger, variation.WithIntervals(desc.Interval)),
		Endings: ending.NewHandler(
			host.NewOpener(a.cfg.LaunchBrowser, a.logger),
			feature,
			host.NewUninstaller(a.store),
			a.logger,
		),
		Logger:  a.logger,
		Emitter: a.recorder,
	})
	if err != nil {
		return nil, err
	}
	return &pass{feature: feature, relay: relay, controller: controller}, nil
}

func (a *App) sink(desc study.Descriptor) telemetry.Sink {
	if a.cfg.CollectorURL == "" || !desc.Telemetry.Send {
		return telemetry.NewLogSink(a.logger)
	}
	return telemetry.NewHTTPSink(a.client, telemetry.HTTPSinkConfig{
		CollectorURL: a.cfg.CollectorURL,
		ExperimentID: desc.ActiveExperimentID,
		Testing:      !desc.Telemetry.RemoveTestingFlag,
	}, a.logger)
}

// Run executes the study for this process. It returns when the study has
// ended or, while the study is active, when ctx is done.
//
// If consent is revoked while active, Run records a pending
// dataPermissionsRevoked ending and runs a second pass that ends the study.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.wait()
	}()

	if a.cfg.MetricsAddr != "" {
		a.serveMetrics(runCtx)
	}

	desc, err := a.Descriptor(runCtx)
	if err != nil {
		return err
	}

	p, err := a.newPass(desc)
	if err != nil {
		return err
	}
	if err := p.controller.Run(runCtx); err != nil {
		return err
	}
	if p.controller.State() != lifecycle.StateActive {
		return nil
	}
	a.logger.Info("study active, waiting")

	revoked := make(chan struct{})
	if a.cfg.WatchConsent {
		var once sync.Once
		a.startWatcher(runCtx, func(ctx context.Context) {
			if err := host.RequestEnding(ctx, a.store, study.EndingDataPermissionsRevoked); err != nil {
				a.logger.Error("record pending ending", log.Err(err))
				return
			}
			once.Do(func() { close(revoked) })
		})
	}

	select {
	case <-ctx.Done():
		a.logger.Info("stopping active study")
		p.relay.Stop()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer stopCancel()
		return p.feature.Stop(stopCtx)
	case <-revoked:
	}

	p.relay.Stop()
	if err := p.feature.Stop(runCtx); err != nil {
		return err
	}
	end, err := a.newPass(desc)
	if err != nil {
		return err
	}
	return end.controller.Run(runCtx)
}

func (a *App) startWatcher(ctx context.Context, onRevoked func(context.Context)) {
	w := host.NewConsentWatcher(a.cfg.PermissionsFile, a.perms, onRevoked, a.logger)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := w.Run(ctx); err != nil {
			a.logger.Warn("consent watcher disabled", log.Err(err))
		}
	}()
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", log.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("serving metrics", log.String("addr", a.cfg.MetricsAddr))
}

// wait waits for background workers, giving up after ShutdownTimeout.
func (a *App) wait() {
	if err := a.waitWithTimeout(ShutdownTimeout); err != nil {
		a.logger.Warn("shutdown timeout, forcing exit", log.Duration("timeout", ShutdownTimeout))
	}
}

func (a *App) waitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, timeout)
	}
}
