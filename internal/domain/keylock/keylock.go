// Package keylock provides mutual exclusion per string key on top of
// moby/locker, whose entries are dropped once nobody holds or waits on them.
package keylock

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/moby/locker"
)

// Locker hands out one mutex per key. The zero value is ready to use.
type Locker struct {
	keys    locker.Locker
	pending atomic.Int64
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{}
}

// Lock blocks until key is held and returns the matching unlock func.
func (l *Locker) Lock(key string) (unlock func()) {
	l.pending.Add(1)
	l.keys.Lock(key)

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = l.keys.Unlock(key)
			l.pending.Add(-1)
		})
	}
}

// LockAll holds every key in keys and returns one func releasing them all.
// Keys are taken in sorted order so overlapping sets cannot deadlock.
func (l *Locker) LockAll(keys ...string) (unlock func()) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	unlocks := make([]func(), 0, len(sorted))
	for _, k := range sorted {
		unlocks = append(unlocks, l.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Len reports how many Lock calls are currently held or waiting.
func (l *Locker) Len() int {
	return int(l.pending.Load())
}
