// Package lifecycle drives a study from setup to either activation or
// termination.
//
// A Controller submits the descriptor to the host setup entry point, which
// resolves to exactly one Outcome: Ready with the assigned variation, or
// Ended with an ending event. The controller consumes that outcome once.
//
// # State Machine
//
// Valid state transitions:
//   - Uninitialized -> AwaitingSetup (construction)
//   - AwaitingSetup -> Active (ready)
//   - AwaitingSetup -> Ending (end)
//   - Ending -> Terminated (ending sequence finished)
//
// Active and Terminated are absorbing: a new process start creates a new
// Controller.
//
// # Usage
//
//	setup := lifecycle.NewListenerSetup(host) // registers end, then ready
//	c, err := lifecycle.New(desc, lifecycle.Deps{
//	    Setup:      setup,
//	    Dispatcher: dispatcher,
//	    Endings:    endingHandler,
//	    Logger:     logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return c.Run(ctx)
package lifecycle
