// Package host provides local implementations of the collaborators a study
// needs from its host application: the setup entry point, the permission
// subsystem, the prompt feature, a URL opener, an uninstaller and a consent
// watcher.
//
// All durable state lives in a kvstore.Store so that consecutive process
// starts observe each other's decisions.
package host

// Storage keys owned by the host.
const (
	KeyClientID         = "clientId"
	KeyFirstRun         = "firstRunTimestamp"
	KeyVariation        = "variation"
	KeyPendingEnding    = "pendingEnding"
	KeyUninstalled      = "uninstalled"
	KeyFeatureState     = "featureState"
)
