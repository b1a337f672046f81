package host

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/studykit/pkg/ending"
	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/lifecycle"
	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/study"
)

// ErrUninstalled is returned by Setup once the study has been uninstalled.
var ErrUninstalled = errors.New("host: study is uninstalled")

// Setup is a local setup entry point. It resolves every call to exactly one
// lifecycle outcome.
type Setup struct {
	store  kvstore.Store
	logger log.Logger
	now    func() time.Time
}

// NewSetup creates a Setup backed by store.
func NewSetup(store kvstore.Store, logger log.Logger) *Setup {
	return &Setup{store: store, logger: log.OrNoop(logger), now: time.Now}
}

// Setup implements lifecycle.Setup. Checks run in order: uninstalled,
// pending ending, eligibility, expiry. Only when all pass is a variation
// assigned.
func (s *Setup) Setup(ctx context.Context, d study.Descriptor) (lifecycle.Outcome, error) {
	var uninstalled bool
	if err := s.get(ctx, KeyUninstalled, &uninstalled); err != nil {
		return lifecycle.Outcome{}, err
	}
	if uninstalled {
		return lifecycle.Outcome{}, ErrUninstalled
	}

	var assigned string
	if err := s.get(ctx, KeyVariation, &assigned); err != nil {
		return lifecycle.Outcome{}, err
	}

	var pending string
	if err := s.get(ctx, KeyPendingEnding, &pending); err != nil {
		return lifecycle.Outcome{}, err
	}
	if pending != "" {
		// The pending ending stays stored until Uninstall succeeds, so an
		// interrupted ending is repeated on the next start.
		return s.end(d, pending, assigned), nil
	}

	if !d.AllowEnroll {
		return s.end(d, study.EndingIneligible, ""), nil
	}

	firstRun, err := s.firstRun(ctx, d)
	if err != nil {
		return lifecycle.Outcome{}, err
	}
	remaining := d.Expire.Duration() - s.now().Sub(firstRun)
	if remaining <= 0 {
		return s.end(d, study.EndingExpired, assigned), nil
	}

	v, err := s.variation(ctx, d, assigned)
	if err != nil {
		return lifecycle.Outcome{}, err
	}
	s.logger.Info("study ready",
		log.String("variation", v.Name),
		log.Duration("time_until_expire", remaining),
	)
	return lifecycle.Ready(lifecycle.StudyInfo{
		Variation:          v,
		ActiveExperimentID: d.ActiveExperimentID,
		FirstRunTimestamp:  firstRun,
		TimeUntilExpire:    remaining,
		Descriptor:         d,
	}), nil
}

// get is Store.Get treating a missing key as the zero value.
func (s *Setup) get(ctx context.Context, key string, dst interface{}) error {
	if err := s.store.Get(ctx, key, dst); err != nil && !errors.Is(err, kvstore.ErrNoSuchKey) {
		return err
	}
	return nil
}

func (s *Setup) firstRun(ctx context.Context, d study.Descriptor) (time.Time, error) {
	if d.Testing.FirstRunTimestamp != nil {
		return *d.Testing.FirstRunTimestamp, nil
	}
	var ts time.Time
	if err := s.get(ctx, KeyFirstRun, &ts); err != nil {
		return time.Time{}, err
	}
	if ts.IsZero() {
		ts = s.now().UTC()
		if err := s.store.Set(ctx, KeyFirstRun, ts); err != nil {
			return time.Time{}, err
		}
	}
	return ts, nil
}

func (s *Setup) variation(ctx context.Context, d study.Descriptor, assigned string) (study.Variation, error) {
	if d.Testing.Variation != "" {
		if v, ok := d.Variation(d.Testing.Variation); ok {
			return v, nil
		}
	}
	if v, ok := d.Variation(assigned); ok {
		return v, nil
	}

	clientID, err := s.clientID(ctx)
	if err != nil {
		return study.Variation{}, err
	}
	v := pickVariation(d.WeightedVariations, clientID)
	if err := s.store.Set(ctx, KeyVariation, v.Name); err != nil {
		return study.Variation{}, err
	}
	return v, nil
}

func (s *Setup) clientID(ctx context.Context) (string, error) {
	var id string
	if err := s.get(ctx, KeyClientID, &id); err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
		if err := s.store.Set(ctx, KeyClientID, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// pickVariation maps clientID onto the cumulative weights. The same client
// always gets the same variation.
func pickVariation(variations []study.Variation, clientID string) study.Variation {
	var total float64
	for _, v := range variations {
		total += v.Weight
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(clientID))
	point := float64(h.Sum64()%1_000_000) / 1_000_000 * total

	var acc float64
	for _, v := range variations {
		acc += v.Weight
		if point < acc {
			return v
		}
	}
	return variations[len(variations)-1]
}

func (s *Setup) end(d study.Descriptor, reason, variation string) lifecycle.Outcome {
	s.logger.Info("study ended by setup", log.String("reason", reason))
	return lifecycle.Ended(ending.Event{Reason: reason, URLs: EndingURLs(d, reason, variation)})
}

// EndingURLs returns the URLs to open for reason: the ending's base URL with
// reason, variation and study state appended as query parameters, or nothing
// when the ending has no base URL.
func EndingURLs(d study.Descriptor, reason, variation string) []string {
	spec, ok := d.Endings[reason]
	if !ok || spec.BaseURL == nil || *spec.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(*spec.BaseURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	q.Set("reason", reason)
	q.Set("study_state", string(spec.StateFor(reason)))
	q.Set("experiment", d.ActiveExperimentID)
	if variation != "" {
		q.Set("variation", variation)
	}
	u.RawQuery = q.Encode()
	return []string{u.String()}
}

// RequestEnding records reason so that the next Setup call ends the study
// with it. The request is cleared by Uninstaller once the study is removed.
func RequestEnding(ctx context.Context, store kvstore.Store, reason string) error {
	if reason == "" {
		return fmt.Errorf("ending reason is required")
	}
	return store.Set(ctx, KeyPendingEnding, reason)
}
