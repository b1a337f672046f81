// Package study defines the experiment descriptor handed to the host setup
// entry point and the Builder that assembles it.
//
// A Descriptor is a plain value. Builder.Build returns a fresh copy on every
// call, fills the declarative fields and then resolves AllowEnroll through
// the eligibility cache. Once a descriptor has been submitted to setup it is
// only ever read.
//
// # JSON shape
//
// The JSON field names are the structural contract with the setup entry
// point (activeExperimentId, studyType, telemetryPolicy, endings,
// variations, expire, allowEnroll, logLevel) and must not change.
package study
