package host

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/studykit/pkg/eligibility"
	"github.com/bft-labs/studykit/pkg/kvstore"
)

// Status is a snapshot of the persisted study state.
type Status struct {
	AllowedToEnroll *bool      `json:"allowedToEnroll,omitempty"`
	ClientID        string     `json:"clientId,omitempty"`
	Variation       string     `json:"variation,omitempty"`
	FirstRun        *time.Time `json:"firstRunTimestamp,omitempty"`
	PendingEnding   string     `json:"pendingEnding,omitempty"`
	Uninstalled     bool       `json:"uninstalled"`
}

// ReadStatus collects the persisted state without modifying it.
func ReadStatus(ctx context.Context, store kvstore.Store) (Status, error) {
	var st Status

	var allowed bool
	switch err := store.Get(ctx, eligibility.StorageKey, &allowed); {
	case err == nil:
		st.AllowedToEnroll = &allowed
	case !errors.Is(err, kvstore.ErrNoSuchKey):
		return st, err
	}

	var firstRun time.Time
	switch err := store.Get(ctx, KeyFirstRun, &firstRun); {
	case err == nil:
		st.FirstRun = &firstRun
	case !errors.Is(err, kvstore.ErrNoSuchKey):
		return st, err
	}

	for key, dst := range map[string]interface{}{
		KeyClientID:      &st.ClientID,
		KeyVariation:     &st.Variation,
		KeyPendingEnding: &st.PendingEnding,
		KeyUninstalled:   &st.Uninstalled,
	} {
		if err := store.Get(ctx, key, dst); err != nil && !errors.Is(err, kvstore.ErrNoSuchKey) {
			return st, err
		}
	}
	return st, nil
}
