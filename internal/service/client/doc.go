// Package client implements alco-lock-ctl.
//
// The command connects to the lock server over gRPC, prints the current state
// or runs a lock, unlock or simulation command. Relay commands are retried
// every second until the server confirms the requested state.
package client
