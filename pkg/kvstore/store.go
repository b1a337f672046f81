package kvstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSuchKey is returned by Get when the key has never been set.
	ErrNoSuchKey = errors.New("kvstore: no such key")

	// ErrInvalidKey is returned for empty keys or keys containing path separators.
	ErrInvalidKey = errors.New("kvstore: invalid key")
)

// Store persists JSON-encodable values by key.
type Store interface {
	// Get decodes the value stored under key into dst. It returns an error
	// wrapping ErrNoSuchKey when nothing is stored.
	Get(ctx context.Context, key string, dst interface{}) error

	// Set encodes value and stores it under key, replacing any previous value.
	Set(ctx context.Context, key string, value interface{}) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
