package telemetry

import (
	"context"
	"sync"

	"github.com/bft-labs/studykit/pkg/log"
)

// Payload is a telemetry ping as emitted by a feature.
type Payload map[string]interface{}

// Source is the event source on which a feature emits payloads.
type Source interface {
	// Subscribe registers handler and returns a function removing it.
	Subscribe(handler func(Payload)) (unsubscribe func())
}

// Sink delivers payloads to the telemetry pipeline.
type Sink interface {
	Send(ctx context.Context, p Payload) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Payload) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, p Payload) error {
	return f(ctx, p)
}

// Observer is notified of every forwarded payload.
type Observer interface {
	OnTelemetryForwarded()
}

// Relay forwards every payload from a Source to a Sink.
type Relay struct {
	source   Source
	sink     Sink
	logger   log.Logger
	observer Observer

	mu          sync.Mutex
	started     bool
	unsubscribe func()
}

// NewRelay creates a relay. observer may be nil.
func NewRelay(source Source, sink Sink, logger log.Logger, observer Observer) *Relay {
	return &Relay{
		source:   source,
		sink:     sink,
		logger:   log.OrNoop(logger),
		observer: observer,
	}
}

// Start subscribes to the source. Calling Start more than once has no
// further effect. ctx is passed to every Send.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.unsubscribe = r.source.Subscribe(func(p Payload) {
		r.forward(ctx, p)
	})
	r.logger.Debug("telemetry relay subscribed")
}

// Stop removes the subscription.
func (r *Relay) Stop() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Relay) forward(ctx context.Context, p Payload) {
	if r.observer != nil {
		r.observer.OnTelemetryForwarded()
	}
	_ = r.sink.Send(ctx, p)
}
