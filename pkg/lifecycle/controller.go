package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/studykit/pkg/ending"
	"github.com/bft-labs/studykit/pkg/log"
	"github.com/bft-labs/studykit/pkg/study"
	"github.com/bft-labs/studykit/pkg/variation"
)

// Lifecycle errors.
var (
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")
	ErrSetupContract     = errors.New("lifecycle: setup contract violation")
	ErrSetupFailed       = errors.New("lifecycle: setup failed")
	ErrMissingDependency = errors.New("lifecycle: missing dependency")
)

// Dispatcher activates the assigned variation; see variation.Dispatcher.
type Dispatcher interface {
	Activate(ctx context.Context, name string) variation.Result
}

// EndingRunner runs the ending sequence; see ending.Handler.
type EndingRunner interface {
	Run(ctx context.Context, ev ending.Event) error
}

// Deps are the collaborators of a Controller. Logger and Emitter are
// optional.
type Deps struct {
	Setup      Setup
	Dispatcher Dispatcher
	Endings    EndingRunner
	Logger     log.Logger
	Emitter    EventEmitter
}

// Controller is the study lifecycle state machine.
type Controller struct {
	desc       study.Descriptor
	setup      Setup
	dispatcher Dispatcher
	endings    EndingRunner
	logger     log.Logger
	emitter    EventEmitter

	mu    sync.RWMutex
	state State
}

// New creates a controller for desc and moves it to StateAwaitingSetup.
func New(desc study.Descriptor, deps Deps) (*Controller, error) {
	switch {
	case deps.Setup == nil:
		return nil, fmt.Errorf("%w: setup", ErrMissingDependency)
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	case deps.Endings == nil:
		return nil, fmt.Errorf("%w: endings", ErrMissingDependency)
	}

	c := &Controller{
		desc:       desc,
		setup:      deps.Setup,
		dispatcher: deps.Dispatcher,
		endings:    deps.Endings,
		logger:     log.OrNoop(deps.Logger),
		emitter:    deps.Emitter,
		state:      StateUninitialized,
	}
	if err := c.TransitionTo(StateAwaitingSetup, "constructed"); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Descriptor returns the descriptor this controller submits.
func (c *Controller) Descriptor() study.Descriptor {
	return c.desc
}

// TransitionTo moves the controller to newState, or returns
// ErrInvalidTransition and leaves the state unchanged.
func (c *Controller) TransitionTo(newState State, reason string) error {
	c.mu.Lock()
	oldState := c.state

	valid := false
	switch oldState {
	case StateUninitialized:
		valid = newState == StateAwaitingSetup
	case StateAwaitingSetup:
		valid = newState == StateActive || newState == StateEnding
	case StateEnding:
		valid = newState == StateTerminated
	}
	if !valid {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}

	c.state = newState
	c.mu.Unlock()

	if c.emitter != nil {
		c.emitter.OnStateChange(oldState, newState, reason)
	}
	c.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

// Run submits the descriptor to setup and handles the single outcome.
//
// Activation failures are logged and never returned. The returned error is
// non-nil when setup fails or violates its contract, when Run is called
// on a controller that already left StateAwaitingSetup, or when the ending
// sequence could not uninstall.
func (c *Controller) Run(ctx context.Context) error {
	if s := c.State(); s != StateAwaitingSetup {
		return fmt.Errorf("%w: run in state %s", ErrInvalidTransition, s)
	}

	outcome, err := c.setup.Setup(ctx, c.desc)
	if err != nil {
		if errors.Is(err, ErrSetupContract) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSetupFailed, err)
	}

	switch outcome.Kind() {
	case OutcomeReady:
		return c.onReady(ctx, outcome.Info())
	case OutcomeEnded:
		return c.onEnded(ctx, outcome.Ending())
	default:
		return fmt.Errorf("%w: setup resolved to no outcome", ErrSetupContract)
	}
}

func (c *Controller) onReady(ctx context.Context, info StudyInfo) error {
	if err := c.TransitionTo(StateActive, "ready"); err != nil {
		return err
	}

	res := c.dispatcher.Activate(ctx, info.Variation.Name)
	if c.emitter != nil {
		c.emitter.OnActivation(res.Variation, res.Err)
	}
	if !res.OK() {
		c.logger.Error("feature activation failed",
			log.String("variation", res.Variation),
			log.Err(res.Err),
		)
	}
	return nil
}

func (c *Controller) onEnded(ctx context.Context, ev ending.Event) error {
	if err := c.TransitionTo(StateEnding, ev.Reason); err != nil {
		return err
	}
	runErr := c.endings.Run(ctx, ev)
	if err := c.TransitionTo(StateTerminated, ev.Reason); err != nil {
		return err
	}
	return runErr
}
