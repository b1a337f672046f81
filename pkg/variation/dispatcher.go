// Package variation turns the variation assigned by setup into concrete
// feature parameters and activates the feature once.
package variation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/study"
)

// IntervalDefault is the prompt interval of control and unknown variations:
// never prompt.
const IntervalDefault = 0

// DefaultResourceURL is the stylesheet handed to the feature.
const DefaultResourceURL = "skin/clouddownloads.css"

// ErrAlreadyActivated is returned when Activate is called a second time.
var ErrAlreadyActivated = errors.New("variation: already activated")

// IntervalFor maps a variation name to its prompt interval in days, as
// declared by iv. Unknown names, control included, get IntervalDefault.
func IntervalFor(iv study.Intervals, name string) int {
	switch name {
	case study.VariationShort:
		return iv.ShortDuration
	case study.VariationLonger:
		return iv.LongDuration
	default:
		return IntervalDefault
	}
}

// Feature is the host feature toggled by the study.
type Feature interface {
	// Activate starts the feature. A non-nil error means activation failed
	// synchronously. Otherwise done receives the asynchronous completion
	// result and is then closed.
	Activate(ctx context.Context, resourceURL string, interval int, variation string) (done <-chan error, err error)
}

// Relay forwards feature telemetry; see telemetry.Relay.
type Relay interface {
	Start(ctx context.Context)
}

// ActivationError reports a failed activation.
type ActivationError struct {
	Variation string
	Cause     error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate variation %q: %v", e.Variation, e.Cause)
}

func (e *ActivationError) Unwrap() error {
	return e.Cause
}

// Result is the outcome of Activate. Err is nil or an *ActivationError.
type Result struct {
	Variation string
	Interval  int
	Err       error
}

// OK reports whether activation was started successfully.
func (r Result) OK() bool {
	return r.Err == nil
}

// Dispatcher activates the feature for an assigned variation.
type Dispatcher struct {
	feature     Feature
	relay       Relay
	resourceURL string
	intervals   study.Intervals
	logger      log.Logger

	mu        sync.Mutex
	activated bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithIntervals sets the prompt intervals, normally the descriptor's
// Interval. The default is the interval of study.Default.
func WithIntervals(iv study.Intervals) Option {
	return func(d *Dispatcher) { d.intervals = iv }
}

// NewDispatcher creates a Dispatcher. An empty resourceURL selects
// DefaultResourceURL.
func NewDispatcher(feature Feature, relay Relay, resourceURL string, logger log.Logger, opts ...Option) *Dispatcher {
	if resourceURL == "" {
		resourceURL = DefaultResourceURL
	}
	d := &Dispatcher{
		feature:     feature,
		relay:       relay,
		resourceURL: resourceURL,
		intervals:   study.Default().Interval,
		logger:      log.OrNoop(logger),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Activate wires telemetry and starts the feature for name. It never
// panics and never blocks on the feature's asynchronous completion.
func (d *Dispatcher) Activate(ctx context.Context, name string) Result {
	res := Result{Variation: name, Interval: IntervalFor(d.intervals, name)}

	d.mu.Lock()
	if d.activated {
		d.mu.Unlock()
		res.Err = &ActivationError{Variation: name, Cause: ErrAlreadyActivated}
		return res
	}
	d.activated = true
	d.mu.Unlock()

	done, err := d.start(ctx, res.Interval, name)
	if err != nil {
		res.Err = &ActivationError{Variation: name, Cause: err}
		return res
	}

	d.logger.Info("feature activation started",
		log.String("variation", name),
		log.Int("interval_days", res.Interval),
	)
	if done != nil {
		go d.awaitCompletion(name, done)
	}
	return res
}

func (d *Dispatcher) start(ctx context.Context, interval int, name string) (done <-chan error, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feature panicked: %v", r)
		}
	}()
	d.relay.Start(ctx)
	return d.feature.Activate(ctx, d.resourceURL, interval, name)
}

func (d *Dispatcher) awaitCompletion(name string, done <-chan error) {
	if err, ok := <-done; ok && err != nil {
		d.logger.Warn("feature activation completed with error",
			log.String("variation", name),
			log.Err(err),
		)
		return
	}
	d.logger.Debug("feature activation completed", log.String("variation", name))
}
