package study

// Variation names of the cloud storage notification study.
const (
	VariationShort   = "notification-interval-short"
	VariationLonger  = "notification-interval-longer"
	VariationControl = "control"
)

// DefaultExperimentID is used when the host does not provide an id.
const DefaultExperimentID = "cloudstorage-shield-study@bft-labs"

// DefaultSurveyURL is the post-study survey opened on user-disable and expiry.
const DefaultSurveyURL = "https://www.surveygizmo.com/s3/4361888/Cloud-Storage-Phase-2-Post-Survey"

// DefaultVariationOverridePreference names the host preference that forces a
// variation.
const DefaultVariationOverridePreference = "cloud.services.shield.variation"

// Default returns the declarative descriptor of the study. AllowEnroll is
// left false; only Builder.Build sets it.
func Default() Descriptor {
	survey := DefaultSurveyURL
	return Descriptor{
		ActiveExperimentID: DefaultExperimentID,
		StudyType:          StudyTypeShield,
		Telemetry: TelemetryPolicy{
			Send:              true,
			RemoveTestingFlag: false,
		},
		Endings: map[string]EndingSpec{
			EndingUserDisable: {BaseURL: &survey},
			EndingExpired:     {BaseURL: &survey},
			EndingDataPermissionsRevoked: {
				BaseURL:    nil,
				StudyState: StateEndedNeutral,
			},
			"some-study-defined-ending": {
				BaseURL:    nil,
				StudyState: StateEndedNeutral,
			},
		},
		WeightedVariations: []Variation{
			{Name: VariationShort, Weight: 1.5},
			{Name: VariationLonger, Weight: 1.5},
			{Name: VariationControl, Weight: 1},
		},
		Interval:                    Intervals{ShortDuration: 1, LongDuration: 2},
		Expire:                      Expire{Days: 14},
		LogLevel:                    10,
		VariationOverridePreference: DefaultVariationOverridePreference,
	}
}
