package study

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidDescriptor is returned by Validate.
var ErrInvalidDescriptor = errors.New("study: invalid descriptor")

// StudyType selects the telemetry pipeline whose permissions are watched.
type StudyType string

const (
	StudyTypeShield  StudyType = "shield"
	StudyTypePioneer StudyType = "pioneer"
)

// StudyState is the terminal state reported for an ending.
type StudyState string

const (
	StateEndedPositive StudyState = "ended-positive"
	StateEndedNeutral  StudyState = "ended-neutral"
	StateEndedNegative StudyState = "ended-negative"
)

// Well-known ending identifiers.
const (
	EndingUserDisable            = "user-disable"
	EndingExpired                = "expired"
	EndingIneligible             = "ineligible"
	EndingDataPermissionsRevoked = "dataPermissionsRevoked"
)

// Descriptor is the configuration handed to the setup entry point.
type Descriptor struct {
	ActiveExperimentID          string                `json:"activeExperimentId"`
	StudyType                   StudyType             `json:"studyType"`
	Telemetry                   TelemetryPolicy       `json:"telemetryPolicy"`
	Endings                     map[string]EndingSpec `json:"endings"`
	WeightedVariations          []Variation           `json:"variations"`
	Interval                    Intervals             `json:"interval"`
	Expire                      Expire                `json:"expire"`
	AllowEnroll                 bool                  `json:"allowEnroll"`
	LogLevel                    int                   `json:"logLevel"`
	VariationOverridePreference string                `json:"variationOverridePreference,omitempty"`
	Testing                     Testing               `json:"testing"`
}

// TelemetryPolicy controls whether pings are sent and whether they carry the
// testing flag.
type TelemetryPolicy struct {
	Send              bool `json:"send"`
	RemoveTestingFlag bool `json:"removeTestingFlag"`
}

// EndingSpec describes one way a study can end. The ending id is the key of
// Descriptor.Endings.
type EndingSpec struct {
	BaseURL    *string    `json:"baseUrl"`
	StudyState StudyState `json:"study_state,omitempty"`
}

// StateFor returns the configured study state, or the default for reason
// when none is configured.
func (e EndingSpec) StateFor(reason string) StudyState {
	if e.StudyState != "" {
		return e.StudyState
	}
	if reason == EndingExpired {
		return StateEndedPositive
	}
	return StateEndedNeutral
}

// Variation is one treatment arm with its sampling weight.
type Variation struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Intervals holds the prompt interval, in days, of the timed variations.
type Intervals struct {
	ShortDuration int `json:"shortDuration"`
	LongDuration  int `json:"longDuration"`
}

// Expire bounds the study duration from first run.
type Expire struct {
	Days int `json:"days"`
}

// Duration returns the expiry as a time.Duration.
func (e Expire) Duration() time.Duration {
	return time.Duration(e.Days) * 24 * time.Hour
}

// Testing holds overrides used while developing a study.
type Testing struct {
	Variation         string     `json:"variation,omitempty"`
	FirstRunTimestamp *time.Time `json:"firstRunTimestamp,omitempty"`
}

// Variation returns the variation called name.
func (d Descriptor) Variation(name string) (Variation, bool) {
	for _, v := range d.WeightedVariations {
		if v.Name == name {
			return v, true
		}
	}
	return Variation{}, false
}

// Validate checks the declarative part of the descriptor.
func (d Descriptor) Validate() error {
	if d.ActiveExperimentID == "" {
		return fmt.Errorf("%w: activeExperimentId is required", ErrInvalidDescriptor)
	}
	switch d.StudyType {
	case StudyTypeShield, StudyTypePioneer:
	default:
		return fmt.Errorf("%w: unknown studyType %q", ErrInvalidDescriptor, d.StudyType)
	}
	if len(d.WeightedVariations) == 0 {
		return fmt.Errorf("%w: at least one variation is required", ErrInvalidDescriptor)
	}
	seen := make(map[string]bool, len(d.WeightedVariations))
	for _, v := range d.WeightedVariations {
		if v.Name == "" {
			return fmt.Errorf("%w: variation without name", ErrInvalidDescriptor)
		}
		if seen[v.Name] {
			return fmt.Errorf("%w: duplicate variation %q", ErrInvalidDescriptor, v.Name)
		}
		seen[v.Name] = true
		if math.IsNaN(v.Weight) || math.IsInf(v.Weight, 0) || v.Weight <= 0 {
			return fmt.Errorf("%w: variation %q weight must be finite and positive", ErrInvalidDescriptor, v.Name)
		}
	}
	if d.Interval.ShortDuration < 0 || d.Interval.LongDuration < 0 {
		return fmt.Errorf("%w: interval durations must not be negative", ErrInvalidDescriptor)
	}
	if d.Expire.Days <= 0 {
		return fmt.Errorf("%w: expire.days must be positive", ErrInvalidDescriptor)
	}
	for id, e := range d.Endings {
		if id == "" {
			return fmt.Errorf("%w: ending without id", ErrInvalidDescriptor)
		}
		switch e.StudyState {
		case "", StateEndedPositive, StateEndedNeutral, StateEndedNegative:
		default:
			return fmt.Errorf("%w: ending %q has unknown study_state %q", ErrInvalidDescriptor, id, e.StudyState)
		}
	}
	if d.Testing.Variation != "" {
		if _, ok := d.Variation(d.Testing.Variation); !ok {
			return fmt.Errorf("%w: testing variation %q is not declared", ErrInvalidDescriptor, d.Testing.Variation)
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	out := d
	if d.Endings != nil {
		out.Endings = make(map[string]EndingSpec, len(d.Endings))
		for id, e := range d.Endings {
			if e.BaseURL != nil {
				u := *e.BaseURL
				e.BaseURL = &u
			}
			out.Endings[id] = e
		}
	}
	if d.WeightedVariations != nil {
		out.WeightedVariations = append([]Variation(nil), d.WeightedVariations...)
	}
	if d.Testing.FirstRunTimestamp != nil {
		ts := *d.Testing.FirstRunTimestamp
		out.Testing.FirstRunTimestamp = &ts
	}
	return out
}
