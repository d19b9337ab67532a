// Package harborsync provides concurrency primitives shared across Harbor
// services. PoisonRWMutex implements the "poison-recovering lock" design
// note from the spec: a panic inside a critical section must never strand
// subsequent readers or writers. Go's sync.RWMutex does not poison on
// panic the way some other runtimes' locks do, but a deferred Unlock can
// still be skipped if the panic happens before the defer is registered,
// and a caller-supplied closure that panics mid-mutation can leave the
// protected value half-written. Write and Read standardize the pattern: the
// lock is always released via defer, and a panic is recovered, logged,
// and re-raised as a returned error instead of crashing the process.
package harborsync

import (
	"fmt"
	"sync"

	"github.com/bakobiibizo/harbor/internal/harborlog"
)

// PoisonRWMutex wraps a sync.RWMutex and recovers from a panic raised
// while the lock is held, logging it and allowing subsequent lockers to
// proceed against whatever state the panicking critical section left
// behind.
type PoisonRWMutex struct {
	mu sync.RWMutex
}

// Write runs fn with the write lock held. A panic inside fn is recovered
// and converted into the returned error; the lock is always released.
func (p *PoisonRWMutex) Write(fn func() error) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			harborlog.With("harborsync").Errorf("recovered panic in write-locked section: %v", r)
			err = fmt.Errorf("harborsync: recovered panic: %v", r)
		}
	}()
	return fn()
}

// Read runs fn with the read lock held, recovering a panic the same way
// Write does.
func (p *PoisonRWMutex) Read(fn func() error) (err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	defer func() {
		if r := recover(); r != nil {
			harborlog.With("harborsync").Errorf("recovered panic in read-locked section: %v", r)
			err = fmt.Errorf("harborsync: recovered panic: %v", r)
		}
	}()
	return fn()
}
