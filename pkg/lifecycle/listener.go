package lifecycle

import (
	"context"
	"fmt"

	"github.com/bft-labs/studykit/pkg/ending"
	"github.com/bft-labs/studykit/pkg/study"
)

// ListenerHost is a host whose setup call reports its result through two
// registered listeners instead of a return value.
type ListenerHost interface {
	OnEndStudy(func(ending.Event))
	OnReady(func(StudyInfo))
	Setup(ctx context.Context, desc study.Descriptor) error
}

// ListenerSetup adapts a ListenerHost to Setup.
type ListenerSetup struct {
	host     ListenerHost
	outcomes chan Outcome
}

// NewListenerSetup registers the end listener and then the ready listener on
// host, so that an end signal is never missed while ready handling is being
// wired.
func NewListenerSetup(host ListenerHost) *ListenerSetup {
	s := &ListenerSetup{
		host:     host,
		outcomes: make(chan Outcome, 2),
	}
	host.OnEndStudy(func(ev ending.Event) {
		s.deliver(Ended(ev))
	})
	host.OnReady(func(info StudyInfo) {
		s.deliver(Ready(info))
	})
	return s
}

func (s *ListenerSetup) deliver(o Outcome) {
	select {
	case s.outcomes <- o:
	default:
		// more than two signals: the host is broken; Setup reports it
	}
}

// Setup calls the host and waits for the first listener invocation.
// If both listeners already fired by the time the first is consumed, it
// returns ErrSetupContract.
func (s *ListenerSetup) Setup(ctx context.Context, desc study.Descriptor) (Outcome, error) {
	if err := s.host.Setup(ctx, desc); err != nil {
		return Outcome{}, err
	}
	select {
	case o := <-s.outcomes:
		select {
		case extra := <-s.outcomes:
			return Outcome{}, fmt.Errorf("%w: both %s and %s signalled", ErrSetupContract, o.Kind(), extra.Kind())
		default:
		}
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
