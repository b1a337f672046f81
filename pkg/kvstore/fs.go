package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// FS is a file-system based Store.
type FS struct {
	basedir string
}

// NewFS creates the base directory if needed and returns a Store rooted there.
func NewFS(basedir string) (*FS, error) {
	return newFS(basedir, os.MkdirAll)
}

type mkdirFunc func(path string, perm fs.FileMode) error

func newFS(basedir string, mkdir mkdirFunc) (*FS, error) {
	if err := mkdir(basedir, 0o700); err != nil {
		return nil, fmt.Errorf("create kvstore dir: %w", err)
	}
	return &FS{basedir: basedir}, nil
}

// Dir returns the base directory.
func (s *FS) Dir() string {
	return s.basedir
}

func (s *FS) filename(key string) string {
	return filepath.Join(s.basedir, key+".json")
}

// Get implements Store.
func (s *FS) Get(ctx context.Context, key string, dst interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := lockedfile.Read(s.filename(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoSuchKey, key)
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Set implements Store.
func (s *FS) Set(ctx context.Context, key string, value interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return lockedfile.Write(s.filename(key), bytes.NewReader(data), 0o600)
}

// Delete implements Store.
func (s *FS) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.filename(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
