// Package clusterqueue provides the in-process cluster-state submission
// queue: a single dedicated goroutine owns the current ClusterState and
// drains a priority-ordered job channel, so state transformations are
// exactly serialized and no two ever overlap. It does not replicate
// state to other processes or persist it; a multi-node deployment plugs
// a replicated queue in behind the same Submit contract.
package clusterqueue

import (
	"context"
	"sync"

	"github.com/Lyra126/crate/internal/mapping"
)

// Priority orders submitted tasks. Both mapping refreshes and mapping
// updates are submitted at PriorityHigh; PriorityNormal exists for
// future task types.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

type job struct {
	source   string
	priority Priority
	run      func(state mapping.ClusterState) (mapping.ClusterState, error)
	done     chan error
}

// Queue is the single-writer state thread. The zero value is not usable;
// construct with New.
type Queue struct {
	high     chan job
	normal   chan job
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.RWMutex
	state mapping.ClusterState
}

// New starts a Queue's state thread goroutine with the given initial
// ClusterState and job buffer size per priority lane.
func New(initial mapping.ClusterState, bufferSize int) *Queue {
	q := &Queue{
		high:   make(chan job, bufferSize),
		normal: make(chan job, bufferSize),
		stop:   make(chan struct{}),
		state:  initial,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		j, ok := q.next()
		if !ok {
			return
		}
		current := q.Current()
		newState, err := j.run(current)
		if err == nil {
			q.mu.Lock()
			q.state = newState
			q.mu.Unlock()
		}
		j.done <- err
	}
}

// next blocks until a job is available (high priority lane drained
// first) or the queue is closed.
func (q *Queue) next() (job, bool) {
	select {
	case j := <-q.high:
		return j, true
	default:
	}
	select {
	case j := <-q.high:
		return j, true
	case j := <-q.normal:
		return j, true
	case <-q.stop:
		return job{}, false
	}
}

// Current returns the ClusterState as of the last completed job. Safe
// for concurrent use; callers read an immutable snapshot.
func (q *Queue) Current() mapping.ClusterState {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state
}

// Submit enqueues fn to run on the state thread and blocks until it
// completes or ctx is done. fn receives the ClusterState as of when it
// actually runs (not when Submit was called), which is what lets a later
// submission in the same queue observe an earlier one's effect.
func (q *Queue) Submit(ctx context.Context, source string, priority Priority, fn func(state mapping.ClusterState) (mapping.ClusterState, error)) error {
	select {
	case <-q.stop:
		return errQueueClosed
	default:
	}

	done := make(chan error, 1)
	j := job{source: source, priority: priority, run: fn, done: done}

	lane := q.normal
	if priority == PriorityHigh {
		lane = q.high
	}

	select {
	case lane <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return errQueueClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return errQueueClosed
	}
}

// Close stops the state thread. High-priority jobs already queued still
// run before the thread exits (next drains that lane first); queued
// normal-priority jobs may be abandoned. In-flight Submit calls unblock
// with errQueueClosed, possibly even when their job did run. Idempotent.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.wg.Wait()
}

var errQueueClosed = queueClosedErr{}

type queueClosedErr struct{}

func (queueClosedErr) Error() string { return "clusterqueue: queue closed" }
