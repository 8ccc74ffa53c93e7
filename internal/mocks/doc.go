// Package mocks provides hand-written test doubles for the interfaces shared
// across packages: the card store, the scheduler, and the generation
// collaborators (text model, speaker, card generator).
//
// Each mock has one function field per method. An unset field falls back to
// the default values on the struct, and calls are recorded for assertions:
//
//	sched := &mocks.MockScheduler{Err: scheduler.ErrNothingDue}
//	c := session.NewController(sched, nil)
//
// The mocks are safe for concurrent use.
package mocks
