package syncqueue

import (
	"context"
	"sync"
)

// Pending is the awaitable handle of an enqueued operation.
type Pending struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result Result
	err    error
}

func newPending(id string) *Pending {
	return &Pending{id: id, done: make(chan struct{})}
}

// ID returns the operation id.
func (p *Pending) ID() string { return p.id }

// Done is closed once the operation settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the operation settles or ctx ends. A failed commit
// yields a *SyncError; a cleared operation yields ErrCleared. Giving up on
// ctx does not cancel the operation.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pending) resolve(r Result, err error) {
	p.once.Do(func() {
		p.result = r
		p.err = err
		close(p.done)
	})
}
