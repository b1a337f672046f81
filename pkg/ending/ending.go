// Package ending runs the shutdown sequence of a study.
//
// The sequence is fixed: open every ending URL one after another in the
// order given, run the cleanup for the ending reason, then uninstall. The
// uninstall step runs for every reason, even when earlier steps failed.
package ending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/studykit/pkg/log"
)

// Event is delivered by the host when the study ends.
type Event struct {
	Reason string   `json:"reason"`
	URLs   []string `json:"urls"`
}

// Opener opens a URL, typically in a new browser tab. Open returns once the
// URL has been opened.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Cleaner releases state held by the feature.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Uninstaller removes the study from the host.
type Uninstaller interface {
	Uninstall(ctx context.Context) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error { return f(ctx, url) }

// CleanerFunc adapts a function to Cleaner.
type CleanerFunc func(ctx context.Context) error

func (f CleanerFunc) Cleanup(ctx context.Context) error { return f(ctx) }

// UninstallerFunc adapts a function to Uninstaller.
type UninstallerFunc func(ctx context.Context) error

func (f UninstallerFunc) Uninstall(ctx context.Context) error { return f(ctx) }

// FinishTimeout bounds the cleanup and uninstall steps. They run detached
// from the caller's cancellation so that an interrupted ending still
// uninstalls.
const FinishTimeout = 30 * time.Second

// ErrUninstall wraps a failed uninstall.
var ErrUninstall = errors.New("ending: uninstall failed")

// Handler executes the ending sequence.
type Handler struct {
	opener      Opener
	cleaner     Cleaner
	uninstaller Uninstaller
	logger      log.Logger
}

// NewHandler creates a Handler.
func NewHandler(opener Opener, cleaner Cleaner, uninstaller Uninstaller, logger log.Logger) *Handler {
	return &Handler{
		opener:      opener,
		cleaner:     cleaner,
		uninstaller: uninstaller,
		logger:      log.OrNoop(logger),
	}
}

// Run executes the ending sequence for ev. Only an uninstall failure is
// returned; open and cleanup failures are logged.
func (h *Handler) Run(ctx context.Context, ev Event) error {
	h.logger.Info("study ending",
		log.String("reason", ev.Reason),
		log.Strings("urls", ev.URLs),
	)

	for _, u := range ev.URLs {
		if err := h.opener.Open(ctx, u); err != nil {
			h.logger.Warn("failed to open ending url", log.String("url", u), log.Err(err))
		}
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FinishTimeout)
	defer cancel()

	switch ev.Reason {
	default:
		if err := h.cleaner.Cleanup(finishCtx); err != nil {
			h.logger.Warn("cleanup failed", log.String("reason", ev.Reason), log.Err(err))
		}
	}

	if err := h.uninstaller.Uninstall(finishCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrUninstall, err)
	}
	h.logger.Info("study uninstalled", log.String("reason", ev.Reason))
	return nil
}
