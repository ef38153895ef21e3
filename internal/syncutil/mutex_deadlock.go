//go:build deadlock

// Package syncutil provides the locks guarding shared relay state.
// This variant detects deadlocks at runtime.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock.RWMutex.
type RWMutex struct {
	deadlock.RWMutex
}
