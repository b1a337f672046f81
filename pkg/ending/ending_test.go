package ending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// journal records calls from every collaborator in a single sequence.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) get() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func newHandler(j *journal, openErr, cleanErr, uninstallErr error) *Handler {
	return NewHandler(
		OpenerFunc(func(ctx context.Context, url string) error {
			j.add("open " + url)
			return openErr
		}),
		CleanerFunc(func(ctx context.Context) error {
			j.add("cleanup")
			return cleanErr
		}),
		UninstallerFunc(func(ctx context.Context) error {
			j.add("uninstall")
			return uninstallErr
		}),
		nil,
	)
}

func TestRun_OpensInOrderThenUninstallsOnce(t *testing.T) {
	j := &journal{}
	err := newHandler(j, nil, nil, nil).Run(context.Background(), Event{
		Reason: "user-disable",
		URLs:   []string{"https://u1", "https://u2", "https://u3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"open https://u1", "open https://u2", "open https://u3", "cleanup", "uninstall"}
	if diff := cmp.Diff(want, j.get()); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ExpiredSingleSurvey(t *testing.T) {
	j := &journal{}
	err := newHandler(j, nil, nil, nil).Run(context.Background(), Event{
		Reason: "expired",
		URLs:   []string{"https://survey/x"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"open https://survey/x", "cleanup", "uninstall"}
	if diff := cmp.Diff(want, j.get()); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SequentialNotConcurrent(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		order    []string
	)
	opener := OpenerFunc(func(ctx context.Context, url string) error {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		order = append(order, url)
		inFlight--
		mu.Unlock()
		return nil
	})
	h := NewHandler(opener,
		CleanerFunc(func(context.Context) error { return nil }),
		UninstallerFunc(func(context.Context) error { return nil }),
		nil)

	if err := h.Run(context.Background(), Event{Reason: "x", URLs: []string{"a", "b", "c"}}); err != nil {
		t.Fatal(err)
	}
	if maxSeen != 1 {
		t.Errorf("max concurrent opens = %d, want 1", maxSeen)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Errorf("open order mismatch:\n%s", diff)
	}
}

func TestRun_NoURLs(t *testing.T) {
	j := &journal{}
	if err := newHandler(j, nil, nil, nil).Run(context.Background(), Event{Reason: "ineligible"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"cleanup", "uninstall"}, j.get()); diff != "" {
		t.Errorf("call sequence mismatch:\n%s", diff)
	}
}

func TestRun_FailuresDoNotSkipUninstall(t *testing.T) {
	j := &journal{}
	h := newHandler(j, errors.New("no browser"), errors.New("prefs locked"), nil)
	err := h.Run(context.Background(), Event{Reason: "dataPermissionsRevoked", URLs: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	want := []string{"open a", "open b", "cleanup", "uninstall"}
	if diff := cmp.Diff(want, j.get()); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_UninstallFailure(t *testing.T) {
	cause := errors.New("read-only profile")
	err := newHandler(&journal{}, nil, nil, cause).Run(context.Background(), Event{Reason: "expired"})
	if !errors.Is(err, ErrUninstall) || !errors.Is(err, cause) {
		t.Errorf("Run = %v, want ErrUninstall wrapping cause", err)
	}
}

func TestRun_CancelledWhileOpeningStillUninstalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cleanupErr, uninstallErr error
	uninstalls := 0
	h := NewHandler(
		OpenerFunc(func(ctx context.Context, url string) error {
			cancel()
			return ctx.Err()
		}),
		CleanerFunc(func(ctx context.Context) error {
			cleanupErr = ctx.Err()
			return nil
		}),
		UninstallerFunc(func(ctx context.Context) error {
			uninstalls++
			uninstallErr = ctx.Err()
			return uninstallErr
		}),
		nil,
	)

	if err := h.Run(ctx, Event{Reason: "user-disable", URLs: []string{"https://survey/x"}}); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if uninstalls != 1 {
		t.Errorf("uninstalls = %d, want 1", uninstalls)
	}
	if cleanupErr != nil || uninstallErr != nil {
		t.Errorf("cleanup ctx err = %v, uninstall ctx err = %v, want both nil", cleanupErr, uninstallErr)
	}
}
