//go:build !deadlock

// Package syncutil provides the locks guarding shared relay state.
// Build with -tags=deadlock to swap in github.com/sasha-s/go-deadlock,
// which reports lock-order inversions and long waits.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex unless built with -tags=deadlock.
type RWMutex struct {
	sync.RWMutex
}
