package host

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/bft-labs/studykit/pkg/kvstore"
	"github.com/bft-labs/studykit/pkg/log"
)

// Opener logs ending URLs and, when launching is enabled, opens them with
// the platform browser command.
type Opener struct {
	launch bool
	logger log.Logger

	// command builds the browser command; replaced in tests.
	command func(ctx context.Context, url string) *exec.Cmd
}

// NewOpener creates an Opener.
func NewOpener(launch bool, logger log.Logger) *Opener {
	return &Opener{launch: launch, logger: log.OrNoop(logger), command: browserCommand}
}

// Open implements ending.Opener.
func (o *Opener) Open(ctx context.Context, url string) error {
	o.logger.Info("opening ending url", log.String("url", url))
	if !o.launch {
		return nil
	}
	if err := o.command(ctx, url).Run(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func browserCommand(ctx context.Context, url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", url)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.CommandContext(ctx, "xdg-open", url)
	}
}

// Uninstaller marks the study as uninstalled so later runs refuse to set up.
type Uninstaller struct {
	store kvstore.Store
}

// NewUninstaller creates an Uninstaller writing to store.
func NewUninstaller(store kvstore.Store) *Uninstaller {
	return &Uninstaller{store: store}
}

// Uninstall implements ending.Uninstaller. It writes the uninstalled marker
// and then clears any pending ending request.
func (u *Uninstaller) Uninstall(ctx context.Context) error {
	if err := u.store.Set(ctx, KeyUninstalled, true); err != nil {
		return err
	}
	return u.store.Delete(ctx, KeyPendingEnding)
}
