package syncqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/collection"
)

// QueueState is the coarse status of a queue.
type QueueState string

const (
	StateIdle       QueueState = "idle"
	StateProcessing QueueState = "processing"
	// StateError means the last settled operation failed and nothing is in flight.
	StateError QueueState = "error"
)

// Status is a point-in-time view of a queue.
type Status struct {
	State     QueueState
	Size      int // operations waiting, excluding the one in flight
	Current   *Info
	LastSync  time.Time
	LastError *SyncError
}

// Options configures a queue.
type Options struct {
	Capacity      int
	CommitTimeout time.Duration
	IDs           IDGenerator
	Now           func() time.Time
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Capacity:      64,
		CommitTimeout: 10 * time.Second,
		IDs:           UUIDv7Generator{},
		Now:           time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	if o.CommitTimeout <= 0 {
		o.CommitTimeout = d.CommitTimeout
	}
	if o.IDs == nil {
		o.IDs = d.IDs
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

type task struct {
	op      Operation
	pending *Pending
	reload  *reloadRequest
}

type reloadRequest struct {
	ctx   context.Context
	fetch func(context.Context) (collection.View, error)
	done  chan reloadResult
}

type reloadResult struct {
	view collection.View
	err  error
}

// Queue processes one user's operations in arrival order with at most one
// in flight. A single goroutine drains the FIFO and is the only writer of
// the collection state.
type Queue struct {
	state     *collection.State
	committer Committer
	opts      Options

	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	queued   []*task
	current  *Info
	lastSync time.Time
	lastErr  *SyncError
	closed   bool
}

// New creates a queue over state and starts its consumer.
func New(state *collection.State, committer Committer, opts Options) *Queue {
	opts = opts.withDefaults()
	q := &Queue{
		state:     state,
		committer: committer,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// State returns the collection the queue writes to. Callers only read it.
func (q *Queue) State() *collection.State { return q.state }

// Enqueue validates op against the current state and queues it. A change
// that would drive the balance or any count below zero is rejected here,
// before anything is captured or applied. The check is repeated when the
// operation starts, since earlier operations may change the state.
func (q *Queue) Enqueue(op Operation) (*Pending, error) {
	if op.ID == "" {
		op.ID = q.opts.IDs.Generate()
	}
	op.CardUpdates = cloneUpdates(op.CardUpdates)
	if err := op.validate(); err != nil {
		return nil, &ValidationError{OperationID: op.ID, Err: err}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if err := q.state.Check(op.delta()); err != nil {
		q.mu.Unlock()
		log.Warn().
			Err(err).
			Str("op_id", op.ID).
			Str("username", op.Username).
			Msg("Operation rejected")
		return nil, &ValidationError{OperationID: op.ID, Err: err}
	}
	size := q.waitingLocked()
	if size >= q.opts.Capacity {
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	t := &task{op: op, pending: newPending(op.ID)}
	q.queued = append(q.queued, t)
	q.mu.Unlock()
	q.signal()

	log.Debug().
		Str("op_id", op.ID).
		Str("username", op.Username).
		Str("outcome", op.OutcomeKind).
		Int("queue_size", size+1).
		Msg("Operation enqueued")

	return t.pending, nil
}

// Reload replaces the local state with the view fetch returns. fetch runs on
// the consumer after every operation queued before it has settled, so a
// reload never interleaves with an operation in flight.
func (q *Queue) Reload(ctx context.Context, fetch func(context.Context) (collection.View, error)) (collection.View, error) {
	r := &reloadRequest{ctx: ctx, fetch: fetch, done: make(chan reloadResult, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return collection.View{}, ErrQueueClosed
	}
	q.queued = append(q.queued, &task{reload: r})
	q.mu.Unlock()
	q.signal()

	select {
	case res := <-r.done:
		return res.view, res.err
	case <-ctx.Done():
		return collection.View{}, ctx.Err()
	}
}

// Clear drops every operation that has not started. Dropped operations
// resolve with ErrCleared and never touch the state. The operation in
// flight, if any, still settles and queued reloads still run. It returns
// the number dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	var dropped, kept []*task
	for _, t := range q.queued {
		if t.reload != nil {
			kept = append(kept, t)
			continue
		}
		dropped = append(dropped, t)
	}
	q.queued = kept
	q.lastErr = nil
	q.mu.Unlock()

	for _, t := range dropped {
		t.pending.resolve(Result{}, ErrCleared)
	}
	if len(dropped) > 0 {
		log.Info().Int("dropped", len(dropped)).Msg("Sync queue cleared")
	}
	return len(dropped)
}

// Status returns the queue's current status.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{
		State:     StateIdle,
		Size:      q.waitingLocked(),
		LastSync:  q.lastSync,
		LastError: q.lastErr,
	}
	if q.current != nil {
		cur := *q.current
		st.Current = &cur
		st.State = StateProcessing
	} else if q.lastErr != nil {
		st.State = StateError
	}
	return st
}

// Close stops accepting operations, resolves waiting ones with
// ErrQueueClosed and waits for the one in flight to settle.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	waiting := q.queued
	q.queued = nil
	q.mu.Unlock()

	for _, t := range waiting {
		if t.reload != nil {
			t.reload.done <- reloadResult{err: ErrQueueClosed}
			continue
		}
		t.pending.resolve(Result{}, ErrQueueClosed)
	}
	close(q.closing)
	<-q.done
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// waitingLocked counts queued operations, not reloads.
func (q *Queue) waitingLocked() int {
	n := 0
	for _, t := range q.queued {
		if t.reload == nil {
			n++
		}
	}
	return n
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		t := q.next()
		if t == nil {
			return
		}
		if t.reload != nil {
			q.reloadState(t.reload)
			continue
		}
		q.process(t)
	}
}

// next pops the head of the FIFO, blocking until there is one. It returns
// nil once the queue is closed.
func (q *Queue) next() *task {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil
		}
		if len(q.queued) > 0 {
			t := q.queued[0]
			q.queued[0] = nil
			q.queued = q.queued[1:]
			if t.reload == nil {
				q.current = &Info{
					ID:          t.op.ID,
					Username:    t.op.Username,
					OutcomeKind: t.op.OutcomeKind,
					StartedAt:   q.opts.Now(),
				}
			}
			q.mu.Unlock()
			return t
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.closing:
			return nil
		}
	}
}

func (q *Queue) process(t *task) {
	op := &t.op

	snap, err := q.state.ApplyWithSnapshot(op.delta())
	if err != nil {
		log.Warn().
			Err(err).
			Str("op_id", op.ID).
			Str("username", op.Username).
			Msg("Operation no longer applies")
		q.settle(t, newSyncError(op.ID, &ValidationError{OperationID: op.ID, Err: err}))
		return
	}

	if op.Confirmed {
		q.settle(t, nil)
		return
	}

	if err := q.commit(op); err != nil {
		q.state.Rollback(snap)
		serr := newSyncError(op.ID, err)
		log.Error().
			Err(err).
			Str("op_id", op.ID).
			Str("username", op.Username).
			Bool("retryable", serr.Retryable).
			Str("code", serr.Code).
			Msg("Commit failed, local state rolled back")
		q.settle(t, serr)
		return
	}

	q.settle(t, nil)
}

func (q *Queue) reloadState(r *reloadRequest) {
	if err := r.ctx.Err(); err != nil {
		r.done <- reloadResult{err: err}
		return
	}
	v, err := r.fetch(r.ctx)
	if err != nil {
		r.done <- reloadResult{err: err}
		return
	}
	q.state.Replace(v)

	q.mu.Lock()
	q.lastSync = q.opts.Now()
	q.lastErr = nil
	q.mu.Unlock()

	log.Info().
		Int64("currency", v.Currency).
		Int("cards", len(v.Entries)).
		Msg("Local state reloaded")
	r.done <- reloadResult{view: q.state.View()}
}

// commit sends op and waits at most CommitTimeout, even if the committer
// ignores its context.
func (q *Queue) commit(op *Operation) error {
	req := buildCommit(op, q.state.View())

	ctx, cancel := context.WithTimeout(context.Background(), q.opts.CommitTimeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- q.committer.Commit(ctx, req)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("commit %s: %w", op.ID, ctx.Err())
	}
}

func (q *Queue) settle(t *task, serr *SyncError) {
	op := &t.op
	now := q.opts.Now()

	q.mu.Lock()
	q.current = nil
	if serr == nil {
		q.lastSync = now
		q.lastErr = nil
	} else {
		q.lastErr = serr
	}
	q.mu.Unlock()

	if serr != nil {
		if op.OnError != nil {
			safeCall(op.ID, func() { op.OnError(serr) })
		}
		t.pending.resolve(Result{}, serr)
		return
	}

	res := Result{
		OperationID: op.ID,
		Username:    op.Username,
		OutcomeKind: op.OutcomeKind,
		Confirmed:   op.Confirmed,
		Collection:  q.state.View(),
		SettledAt:   now,
	}
	log.Info().
		Str("op_id", op.ID).
		Str("username", op.Username).
		Str("outcome", op.OutcomeKind).
		Bool("confirmed", op.Confirmed).
		Msg("Operation synced")

	if op.OnSuccess != nil {
		safeCall(op.ID, func() { op.OnSuccess(res) })
	}
	t.pending.resolve(res, nil)
}

func safeCall(opID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("op_id", opID).Msg("Operation callback panicked")
		}
	}()
	fn()
}
