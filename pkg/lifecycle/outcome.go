package lifecycle

import (
	"context"
	"time"

	"github.com/bft-labs/studykit/pkg/ending"
	"github.com/bft-labs/studykit/pkg/study"
)

// StudyInfo is delivered with a Ready outcome.
type StudyInfo struct {
	Variation          study.Variation  `json:"variation"`
	ActiveExperimentID string           `json:"activeExperimentId"`
	FirstRunTimestamp  time.Time        `json:"firstRunTimestamp"`
	TimeUntilExpire    time.Duration    `json:"timeUntilExpire"`
	Descriptor         study.Descriptor `json:"studySetup"`
}

// OutcomeKind tells which branch setup resolved to.
type OutcomeKind int

const (
	// OutcomeNone is the zero Outcome; setup must never return it.
	OutcomeNone OutcomeKind = iota
	OutcomeReady
	OutcomeEnded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReady:
		return "ready"
	case OutcomeEnded:
		return "ended"
	default:
		return "none"
	}
}

// Outcome is the single result of a setup call: Ready(info) or Ended(event).
type Outcome struct {
	kind   OutcomeKind
	info   StudyInfo
	ending ending.Event
}

// Ready builds a Ready outcome.
func Ready(info StudyInfo) Outcome {
	return Outcome{kind: OutcomeReady, info: info}
}

// Ended builds an Ended outcome.
func Ended(ev ending.Event) Outcome {
	return Outcome{kind: OutcomeEnded, ending: ev}
}

// Kind returns the branch of o.
func (o Outcome) Kind() OutcomeKind { return o.kind }

// Info returns the study info of a Ready outcome.
func (o Outcome) Info() StudyInfo { return o.info }

// Ending returns the event of an Ended outcome.
func (o Outcome) Ending() ending.Event { return o.ending }

// Setup is the host setup entry point. It resolves to exactly one Outcome.
type Setup interface {
	Setup(ctx context.Context, desc study.Descriptor) (Outcome, error)
}

// SetupFunc adapts a function to Setup.
type SetupFunc func(ctx context.Context, desc study.Descriptor) (Outcome, error)

// Setup implements Setup.
func (f SetupFunc) Setup(ctx context.Context, desc study.Descriptor) (Outcome, error) {
	return f(ctx, desc)
}
