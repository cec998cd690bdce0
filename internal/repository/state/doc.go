// Package state persists the last relay change so a restart of the service
// does not silently unlock the ignition.
//
// The FileRepository stores the state as JSON on disk and exposes a
// Repository interface that the server service depends on.
package state
