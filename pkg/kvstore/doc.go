// Package kvstore is the persistent key-value storage used by studykit.
//
// Values are JSON encoded. The FS store keeps one file per key under a base
// directory and uses lockedfile so that two processes never observe a torn
// write. Memory is meant for tests and for hosts that provide persistence
// some other way.
package kvstore
