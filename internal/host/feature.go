package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/telemetry"
)

// ErrFeatureActive is returned when the feature is activated twice.
var ErrFeatureActive = errors.New("host: feature already active")

// featureState is persisted while the feature is active.
type featureState struct {
	Variation   string    `json:"variation"`
	Interval    int       `json:"interval"`
	ResourceURL string    `json:"resourceUrl"`
	ActivatedAt time.Time `json:"activatedAt"`
}

// Feature is a local stand-in for the download prompt feature. It publishes
// a telemetry payload on activation and one per prompt interval.
type Feature struct {
	telemetry.Emitter

	store     kvstore.Store
	dayLength time.Duration
	logger    log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	prompts int
}

// NewFeature creates a Feature. dayLength scales the prompt interval, which
// is expressed in days.
func NewFeature(store kvstore.Store, dayLength time.Duration, logger log.Logger) *Feature {
	if dayLength <= 0 {
		dayLength = 24 * time.Hour
	}
	return &Feature{store: store, dayLength: dayLength, logger: log.OrNoop(logger)}
}

// Activate implements variation.Feature. The returned channel receives the
// result of persisting the feature state. With a zero interval no prompts
// are shown.
func (f *Feature) Activate(ctx context.Context, resourceURL string, interval int, variation string) (<-chan error, error) {
	if interval < 0 {
		return nil, fmt.Errorf("invalid prompt interval %d", interval)
	}

	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return nil, ErrFeatureActive
	}
	promptCtx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	f.cancel = cancel
	f.stopped = stopped
	f.mu.Unlock()

	state := featureState{
		Variation:   variation,
		Interval:    interval,
		ResourceURL: resourceURL,
		ActivatedAt: time.Now().UTC(),
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := f.store.Set(ctx, KeyFeatureState, state); err != nil {
			done <- fmt.Errorf("persist feature state: %w", err)
			return
		}
		f.Emit(telemetry.Payload{
			"event":     "init",
			"variation": variation,
			"interval":  interval,
		})
		done <- nil
	}()

	go f.promptLoop(promptCtx, stopped, interval, variation)
	return done, nil
}

func (f *Feature) promptLoop(ctx context.Context, stopped chan<- struct{}, interval int, variation string) {
	defer close(stopped)

	if interval == 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * f.dayLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			f.prompts++
			n := f.prompts
			f.mu.Unlock()
			f.logger.Debug("prompt shown", log.Int("count", n))
			f.Emit(telemetry.Payload{
				"event":     "prompt",
				"variation": variation,
				"count":     n,
			})
		}
	}
}

// Prompts returns how many prompts were shown.
func (f *Feature) Prompts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts
}

// Stop stops prompting and keeps the persisted feature state.
func (f *Feature) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, stopped := f.cancel, f.stopped
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup implements ending.Cleaner. It stops prompting and removes the
// persisted feature state.
func (f *Feature) Cleanup(ctx context.Context) error {
	if err := f.Stop(ctx); err != nil {
		return err
	}
	if err := f.store.Delete(ctx, KeyFeatureState); err != nil {
		return fmt.Errorf("remove feature state: %w", err)
	}
	return nil
}
