package mentions

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a scan replaced by a newer one.
var ErrSuperseded = errors.New("mentions: superseded by a newer scan")

// Leases grants one scan lease per content unit, latest wins.
//
// Acquire cancels whoever currently holds or waits for the unit's lease, then
// waits for the holder to release. Waiting is not a queue: of several
// concurrent acquirers only the last one proceeds.
type Leases struct {
	mu    sync.Mutex
	units map[string]*unitLease
}

type unitLease struct {
	sem    chan struct{}
	cancel context.CancelCauseFunc // newest acquirer
	gen    uint64
	refs   int
}

// NewLeases creates an empty lease table.
func NewLeases() *Leases {
	return &Leases{units: make(map[string]*unitLease)}
}

// Acquire returns a context that is cancelled with ErrSuperseded when a newer
// acquire for the same unit arrives. release must be called exactly once.
func (l *Leases) Acquire(ctx context.Context, unitID string) (leaseCtx context.Context, release func(), err error) {
	l.mu.Lock()
	u, ok := l.units[unitID]
	if !ok {
		u = &unitLease{sem: make(chan struct{}, 1)}
		l.units[unitID] = u
	}
	if u.cancel != nil {
		u.cancel(ErrSuperseded)
	}
	leaseCtx, cancel := context.WithCancelCause(ctx)
	u.cancel = cancel
	u.gen++
	gen := u.gen
	u.refs++
	l.mu.Unlock()

	done := func(held bool) {
		if held {
			<-u.sem
		}
		l.mu.Lock()
		if u.gen == gen {
			u.cancel = nil
		}
		u.refs--
		if u.refs == 0 {
			delete(l.units, unitID)
		}
		l.mu.Unlock()
		cancel(nil)
	}

	select {
	case u.sem <- struct{}{}:
	case <-leaseCtx.Done():
		done(false)
		return nil, nil, context.Cause(leaseCtx)
	}

	// Superseded while the semaphore was being taken.
	if leaseCtx.Err() != nil {
		err := context.Cause(leaseCtx)
		done(true)
		return nil, nil, err
	}

	var once sync.Once
	return leaseCtx, func() { once.Do(func() { done(true) }) }, nil
}

// Active reports how many units currently have a holder or waiter.
func (l *Leases) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.units)
}
