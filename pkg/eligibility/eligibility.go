// Package eligibility decides, once per install, whether a participant may
// enroll in a study.
//
// The first resolution queries the host permission subsystem and persists
// the answer under StorageKey. Every later resolution, in this process or a
// future one, returns the persisted answer without querying again. Negative
// answers are cached exactly like positive ones; a later change of consent
// is never reflected here.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/log"
)

// StorageKey is the key holding the cached enrollment decision.
const StorageKey = "allowedToEnroll"

// ErrEligibilityQuery wraps failures of the permission subsystem.
var ErrEligibilityQuery = errors.New("eligibility: permission query failed")

// Consent is the answer of the permission subsystem.
type Consent struct {
	Granted bool
}

// Permissions queries the host permission subsystem.
type Permissions interface {
	QueryConsent(ctx context.Context) (Consent, error)
}

// PermissionsFunc adapts a function to Permissions.
type PermissionsFunc func(ctx context.Context) (Consent, error)

// QueryConsent implements Permissions.
func (f PermissionsFunc) QueryConsent(ctx context.Context) (Consent, error) {
	return f(ctx)
}

// Cache resolves and persists the enrollment decision.
type Cache struct {
	store       kvstore.Store
	permissions Permissions
	logger      log.Logger

	mu       sync.Mutex
	resolved bool
	allowed  bool
}

// NewCache creates a Cache backed by store.
func NewCache(store kvstore.Store, permissions Permissions, logger log.Logger) *Cache {
	return &Cache{
		store:       store,
		permissions: permissions,
		logger:      log.OrNoop(logger),
	}
}

// IsAllowed returns the enrollment decision, querying the permission
// subsystem only if no decision has been stored yet.
func (c *Cache) IsAllowed(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.allowed, nil
	}

	var cached bool
	err := c.store.Get(ctx, StorageKey, &cached)
	switch {
	case err == nil:
		c.logger.Debug("eligibility from cache", log.Bool("allowed", cached))
		c.remember(cached)
		return cached, nil
	case !errors.Is(err, kvstore.ErrNoSuchKey):
		return false, fmt.Errorf("read %s: %w", StorageKey, err)
	}

	consent, err := c.permissions.QueryConsent(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEligibilityQuery, err)
	}

	if err := c.store.Set(ctx, StorageKey, consent.Granted); err != nil {
		return false, fmt.Errorf("write %s: %w", StorageKey, err)
	}
	c.logger.Info("eligibility resolved", log.Bool("allowed", consent.Granted))
	c.remember(consent.Granted)
	return consent.Granted, nil
}

func (c *Cache) remember(allowed bool) {
	c.resolved = true
	c.allowed = allowed
}
