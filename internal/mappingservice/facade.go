// Package mappingservice is the coordinator's public entry point:
// RefreshMapping and PutMapping, each enqueuing a task onto the
// single-writer clusterqueue.Queue and reporting the outcome back
// through a callback rather than blocking the caller on the whole
// cluster-state pipeline.
package mappingservice

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Lyra126/crate/internal/clusterqueue"
	"github.com/Lyra126/crate/internal/mapping"
	"github.com/Lyra126/crate/internal/observability/logger"
)

// Listener receives the outcome of one PutMapping call. Exactly one
// method fires, exactly once, per submission.
type Listener interface {
	// OnResponse reports whether every simulated node acknowledged the
	// new cluster state before AckTimeout elapsed. The mapping change is
	// already committed either way; acknowledged=false only means the
	// caller can't be sure every node has observed it yet.
	OnResponse(acknowledged bool)
	// OnFailure reports that the request was rejected outright and no
	// state change occurred.
	OnFailure(err error)
}

// AckFunc simulates one discovery node acknowledging a cluster-state
// publish. Real deployments plug in a transport-backed implementation;
// tests and cmd/mappingd use an always-succeeds stand-in.
type AckFunc func(ctx context.Context) error

// Service wires the two executors from internal/mapping onto one
// clusterqueue.Queue, giving them single-writer serialization without
// either executor knowing about the queue.
type Service struct {
	queue   *clusterqueue.Queue
	refresh *mapping.RefreshExecutor
	put     *mapping.PutMappingExecutor
	ackers  []AckFunc
}

// New builds a Service. ackers simulates the set of nodes a committed
// mapping change must reach before putMapping reports acknowledged=true;
// pass none to treat every commit as immediately acknowledged.
func New(queue *clusterqueue.Queue, refresh *mapping.RefreshExecutor, put *mapping.PutMappingExecutor, ackers ...AckFunc) *Service {
	return &Service{queue: queue, refresh: refresh, put: put, ackers: ackers}
}

// Current returns the ClusterState as of the last completed submission.
func (s *Service) Current() mapping.ClusterState {
	return s.queue.Current()
}

// Close shuts down the underlying submission queue: in-flight
// submissions unblock with an error and no new work is accepted.
// Idempotent.
func (s *Service) Close() {
	s.queue.Close()
}

// RefreshMapping enqueues a RefreshTask for index/uuid, fire and
// forget: the caller is never blocked and never notified of the
// outcome. Divergence handling is the executor's job, a task that
// can't be matched to current metadata is simply dropped, and a failed
// submission is logged. Done is closed once the task has been applied
// or abandoned, for callers that need to sequence against it.
func (s *Service) RefreshMapping(ctx context.Context, index string, id uuid.UUID) (done <-chan struct{}) {
	task := mapping.RefreshTask{Index: index, UUID: id}
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		err := s.queue.Submit(ctx, "refresh-mapping", clusterqueue.PriorityHigh, func(state mapping.ClusterState) (mapping.ClusterState, error) {
			newState, _, execErr := s.refresh.Execute(ctx, state, []mapping.RefreshTask{task})
			return newState, execErr
		})
		if err != nil {
			logger.FromWithFields(ctx, logger.Component("mapping_service"), logger.Index(index)).
				Warn("failed to refresh-mapping", logger.Err(err))
		}
	}()
	return ch
}

// PutMapping enqueues req and, once the batch (of one) is committed on
// the state thread, waits for simulated node acknowledgement before
// calling listener. The whole pipeline runs in a background goroutine;
// the caller is never blocked.
func (s *Service) PutMapping(ctx context.Context, req mapping.PutMappingRequest, listener Listener) {
	go func() {
		var result *mapping.BatchResult[mapping.PutMappingRequest]
		err := s.queue.Submit(ctx, "put-mapping", clusterqueue.PriorityHigh, func(state mapping.ClusterState) (mapping.ClusterState, error) {
			newState, batch, execErr := s.put.Execute(ctx, state, []mapping.PutMappingRequest{req})
			result = batch
			return newState, execErr
		})
		if err != nil {
			listener.OnFailure(err)
			return
		}
		if len(result.Failures) > 0 {
			listener.OnFailure(result.Failures[0].Err)
			return
		}

		acked := s.awaitAcks(ctx, req)
		listener.OnResponse(acked)
	}()
}

// awaitAcks runs every configured AckFunc concurrently and reports
// whether all of them returned nil before req.AckTimeout elapsed.
func (s *Service) awaitAcks(ctx context.Context, req mapping.PutMappingRequest) bool {
	if len(s.ackers) == 0 {
		return true
	}

	ackCtx := ctx
	var cancel context.CancelFunc
	if req.AckTimeout > 0 {
		ackCtx, cancel = context.WithTimeout(ctx, req.AckTimeout)
		defer cancel()
	}

	results := make(chan error, len(s.ackers))
	for _, ack := range s.ackers {
		ack := ack
		go func() { results <- ack(ackCtx) }()
	}

	for range s.ackers {
		select {
		case err := <-results:
			if err != nil {
				return false
			}
		case <-ackCtx.Done():
			return false
		}
	}
	return true
}

// WithLogging wraps ack so acknowledgement failures are logged with the
// node's name.
func WithLogging(log *zap.Logger, name string, ack AckFunc) AckFunc {
	return func(ctx context.Context) error {
		err := ack(ctx)
		if err != nil {
			log.Warn("node failed to acknowledge cluster state", logger.ID(name), logger.Err(err))
		}
		return err
	}
}
