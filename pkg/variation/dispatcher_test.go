package variation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/studykit/pkg/study"
	"github.com/bft-labs/studykit/pkg/telemetry"
)

type fakeFeature struct {
	telemetry.Emitter

	mu       sync.Mutex
	calls    []string
	interval int
	resource string
	err      error
	panicVal interface{}
	done     chan error

	// subscribersAtActivate records how many telemetry handlers were
	// registered when Activate ran.
	subscribersAtActivate int
}

func (f *fakeFeature) Activate(ctx context.Context, resourceURL string, interval int, variation string) (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, variation)
	f.interval = interval
	f.resource = resourceURL
	f.subscribersAtActivate = f.Subscribers()
	if f.panicVal != nil {
		panic(f.panicVal)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.done, nil
}

func newHarness(f *fakeFeature) (*Dispatcher, *[]telemetry.Payload) {
	var got []telemetry.Payload
	sink := telemetry.SinkFunc(func(ctx context.Context, p telemetry.Payload) error {
		got = append(got, p)
		return nil
	})
	relay := telemetry.NewRelay(f, sink, nil, nil)
	return NewDispatcher(f, relay, "", nil), &got
}

func TestIntervalFor(t *testing.T) {
	iv := study.Default().Interval
	tests := []struct {
		name string
		want int
	}{
		{study.VariationShort, 1},
		{study.VariationLonger, 2},
		{study.VariationControl, IntervalDefault},
		{"something-else", IntervalDefault},
		{"", IntervalDefault},
	}
	for _, tt := range tests {
		if got := IntervalFor(iv, tt.name); got != tt.want {
			t.Errorf("IntervalFor(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestActivate_UsesDescriptorIntervals(t *testing.T) {
	f := &fakeFeature{}
	relay := telemetry.NewRelay(f, telemetry.SinkFunc(func(context.Context, telemetry.Payload) error { return nil }), nil, nil)
	d := NewDispatcher(f, relay, "", nil, WithIntervals(study.Intervals{ShortDuration: 3, LongDuration: 7}))

	res := d.Activate(context.Background(), study.VariationLonger)
	if !res.OK() {
		t.Fatalf("Activate: %v", res.Err)
	}
	if res.Interval != 7 || f.interval != 7 {
		t.Errorf("interval = (%d, %d), want 7", res.Interval, f.interval)
	}
}

func TestActivate_WiresTelemetryBeforeFeature(t *testing.T) {
	f := &fakeFeature{}
	d, got := newHarness(f)

	res := d.Activate(context.Background(), study.VariationLonger)
	if !res.OK() {
		t.Fatalf("Activate: %v", res.Err)
	}
	if res.Interval != 2 {
		t.Errorf("Interval = %d, want 2", res.Interval)
	}
	if f.subscribersAtActivate != 1 {
		t.Errorf("telemetry subscribers at activation = %d, want 1", f.subscribersAtActivate)
	}
	if f.resource != DefaultResourceURL || f.interval != 2 {
		t.Errorf("feature got (%q, %d)", f.resource, f.interval)
	}

	f.Emit(telemetry.Payload{"event": "init"})
	if len(*got) != 1 {
		t.Errorf("forwarded %d payloads, want 1", len(*got))
	}
}

func TestActivate_UnknownVariationUsesDefault(t *testing.T) {
	f := &fakeFeature{}
	d, _ := newHarness(f)

	res := d.Activate(context.Background(), "mystery-arm")
	if !res.OK() {
		t.Fatalf("unknown variation should not fail: %v", res.Err)
	}
	if f.interval != IntervalDefault {
		t.Errorf("interval = %d, want %d", f.interval, IntervalDefault)
	}
}

func TestActivate_OnlyOnce(t *testing.T) {
	f := &fakeFeature{}
	d, _ := newHarness(f)

	if res := d.Activate(context.Background(), study.VariationShort); !res.OK() {
		t.Fatal(res.Err)
	}
	res := d.Activate(context.Background(), study.VariationShort)
	if !errors.Is(res.Err, ErrAlreadyActivated) {
		t.Errorf("second Activate err = %v, want ErrAlreadyActivated", res.Err)
	}
	if len(f.calls) != 1 {
		t.Errorf("feature activations = %d, want 1", len(f.calls))
	}
}

func TestActivate_SynchronousFailure(t *testing.T) {
	cause := errors.New("no profile")
	f := &fakeFeature{err: cause}
	d, _ := newHarness(f)

	res := d.Activate(context.Background(), study.VariationShort)
	var aerr *ActivationError
	if !errors.As(res.Err, &aerr) {
		t.Fatalf("err = %v, want *ActivationError", res.Err)
	}
	if aerr.Variation != study.VariationShort || !errors.Is(aerr, cause) {
		t.Errorf("unexpected activation error: %+v", aerr)
	}
}

func TestActivate_PanicBecomesActivationError(t *testing.T) {
	f := &fakeFeature{panicVal: "boom"}
	d, _ := newHarness(f)

	res := d.Activate(context.Background(), study.VariationShort)
	var aerr *ActivationError
	if !errors.As(res.Err, &aerr) {
		t.Fatalf("err = %v, want *ActivationError", res.Err)
	}
}

func TestActivate_DoesNotWaitForCompletion(t *testing.T) {
	f := &fakeFeature{done: make(chan error)}
	d, _ := newHarness(f)

	returned := make(chan Result, 1)
	go func() { returned <- d.Activate(context.Background(), study.VariationShort) }()

	select {
	case res := <-returned:
		if !res.OK() {
			t.Fatal(res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("Activate blocked on feature completion")
	}
	f.done <- errors.New("late failure")
	close(f.done)
}
