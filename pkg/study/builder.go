package study

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/studykit/pkg/log"
)

// Eligibility resolves whether the participant may enroll.
type Eligibility interface {
	IsAllowed(ctx context.Context) (bool, error)
}

// Option configures a Builder.
type Option func(*options)

type options struct {
	template          *Descriptor
	experimentID      string
	testingVariation  string
	firstRunTimestamp *time.Time
	logger            log.Logger
}

// WithTemplate replaces the declarative defaults returned by Default.
func WithTemplate(d Descriptor) Option {
	return func(o *options) {
		c := d.Clone()
		o.template = &c
	}
}

// WithExperimentID overrides activeExperimentId.
func WithExperimentID(id string) Option {
	return func(o *options) {
		o.experimentID = id
	}
}

// WithTestingVariation forces the variation reported to setup.
func WithTestingVariation(name string) Option {
	return func(o *options) {
		o.testingVariation = name
	}
}

// WithFirstRunTimestamp overrides the first run time used for expiry.
func WithFirstRunTimestamp(ts time.Time) Option {
	return func(o *options) {
		o.firstRunTimestamp = &ts
	}
}

// WithLogger sets the builder logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Builder assembles descriptors.
type Builder struct {
	eligibility Eligibility
	opts        options
}

// NewBuilder returns a Builder resolving AllowEnroll through eligibility.
func NewBuilder(eligibility Eligibility, opts ...Option) *Builder {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = log.OrNoop(o.logger)
	return &Builder{eligibility: eligibility, opts: o}
}

// Build returns a new descriptor. It fails only when the descriptor is
// invalid or the eligibility check fails; in both cases no descriptor is
// produced and setup must not be attempted.
func (b *Builder) Build(ctx context.Context) (Descriptor, error) {
	var d Descriptor
	if b.opts.template != nil {
		d = b.opts.template.Clone()
	} else {
		d = Default()
	}

	if b.opts.experimentID != "" {
		d.ActiveExperimentID = b.opts.experimentID
	}
	if b.opts.testingVariation != "" {
		d.Testing.Variation = b.opts.testingVariation
	}
	if b.opts.firstRunTimestamp != nil {
		ts := *b.opts.firstRunTimestamp
		d.Testing.FirstRunTimestamp = &ts
	}
	d.AllowEnroll = false

	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}

	allowed, err := b.eligibility.IsAllowed(ctx)
	if err != nil {
		return Descriptor{}, fmt.Errorf("resolve allowEnroll: %w", err)
	}
	d.AllowEnroll = allowed

	b.opts.logger.Debug("descriptor built",
		log.String("experiment", d.ActiveExperimentID),
		log.Bool("allow_enroll", d.AllowEnroll),
	)
	return d, nil
}
