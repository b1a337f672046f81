// Package metrics exposes study lifecycle counters to Prometheus.
//
// Metrics exported:
//
//   - studykit_lifecycle_transitions_total: counter by from, to
//   - studykit_activations_total: counter by variation, result
//   - studykit_telemetry_forwarded_total: counter of relayed payloads
//   - studykit_lifecycle_state: gauge set to the current state number
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/studykit/pkg/lifecycle"
)

const namespace = "studykit"

// Recorder implements lifecycle.EventEmitter and telemetry.Observer.
type Recorder struct {
	transitions *prometheus.CounterVec
	activations *prometheus.CounterVec
	forwarded   prometheus.Counter
	state       prometheus.Gauge
}

// NewRecorder creates the metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle state transitions.",
		}, []string{"from", "to"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Feature activations by variation and result.",
		}, []string{"variation", "result"}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "forwarded_total",
			Help:      "Telemetry payloads handed to the sink.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "state",
			Help:      "Current lifecycle state (0 Uninitialized .. 4 Terminated).",
		}),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.activations, r.forwarded, r.state} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// OnStateChange implements lifecycle.EventEmitter.
func (r *Recorder) OnStateChange(previous, current lifecycle.State, reason string) {
	r.transitions.WithLabelValues(previous.String(), current.String()).Inc()
	r.state.Set(float64(current))
}

// OnActivation implements lifecycle.EventEmitter.
func (r *Recorder) OnActivation(variation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.activations.WithLabelValues(variation, result).Inc()
}

// OnTelemetryForwarded implements telemetry.Observer.
func (r *Recorder) OnTelemetryForwarded() {
	r.forwarded.Inc()
}
