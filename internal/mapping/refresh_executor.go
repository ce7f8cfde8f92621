package mapping

import (
	"context"

	"go.uber.org/zap"

	"github.com/Lyra126/crate/internal/audit"
	"github.com/Lyra126/crate/internal/metrics"
	"github.com/Lyra126/crate/internal/observability/logger"
)

// RefreshExecutor reconciles cluster metadata with the mapping a local
// index actually holds, emitting a new cluster revision when they
// diverge. All submitted tasks succeed from the executor's perspective
// — divergence is the signal to emit a new state, not a failure.
type RefreshExecutor struct {
	Registry IndexServiceRegistry
}

// Execute transforms (currentState, tasks) into (newState, successes).
// Every task is reported as a success; RefreshExecutor has no notion of
// per-task failure, only drift or no drift.
func (e *RefreshExecutor) Execute(ctx context.Context, currentState ClusterState, tasks []RefreshTask) (ClusterState, []RefreshTask, error) {
	log := logger.FromWithFields(ctx, logger.Component("refresh_executor"), logger.BatchSize(len(tasks)))

	tasksPerIndex := make(map[string][]RefreshTask)
	for _, t := range tasks {
		if t.Index == "" {
			log.Debug("ignoring refresh task with empty index name")
			continue
		}
		tasksPerIndex[t.Index] = append(tasksPerIndex[t.Index], t)
	}

	builder := NewMetadataBuilder(currentState.Metadata)
	dirty := false

	for index, group := range tasksPerIndex {
		indexMetadata, ok := builder.Get(index)
		if !ok {
			log.Debug("ignoring refresh tasks - index metadata doesn't exist", logger.Index(index))
			continue
		}

		hasMatchingUUID := false
		for _, t := range group {
			if t.UUID == indexMetadata.UUID {
				hasMatchingUUID = true
			} else {
				log.Debug("ignoring refresh task - index uuid mismatch",
					logger.Index(index), logger.IndexUUID(t.UUID.String()))
			}
		}
		if !hasMatchingUUID {
			continue
		}

		indexDirty, newIndexMetadata, err := e.refreshOne(ctx, log, index, indexMetadata)
		if err != nil {
			log.Warn("failed to refresh mapping in cluster state", logger.Index(index), logger.Err(err))
			continue
		}
		if indexDirty {
			builder.Put(newIndexMetadata)
			dirty = true
			metrics.DriftDetected.WithLabelValues(index).Inc()
			audit.MappingDrift(ctx, index)
		}
	}

	if !dirty {
		return currentState, tasks, nil
	}
	return currentState.WithMetadata(builder.Build()), tasks, nil
}

// refreshOne obtains a MapperService for index (local if resident,
// otherwise a transient one scoped to this call) and compares its
// currently installed mapper against cluster metadata.
func (e *RefreshExecutor) refreshOne(ctx context.Context, log *zap.Logger, index string, indexMetadata IndexMetadata) (bool, IndexMetadata, error) {
	svc, ok := e.Registry.Lookup(index)
	if !ok {
		transient, release, err := e.Registry.CreateTransient(index, indexMetadata.Mapping.Source)
		if err != nil {
			return false, indexMetadata, err
		}
		defer release(reasonNoLongerAssigned, "created for mapping processing")
		svc = transient
	}

	mapper := svc.DocumentMapper()
	if mapper == nil {
		return false, indexMetadata, nil
	}
	if mapper.MappingSource().Equal(indexMetadata.Mapping.Source) {
		return false, indexMetadata, nil
	}

	log.Warn("re-syncing mapping with cluster state", logger.Index(index))
	return true, indexMetadata.WithMapping(mapper.MappingSource()), nil
}

// reasonNoLongerAssigned tags the removal of a transient index service
// that existed only to host a mapping divergence check.
const reasonNoLongerAssigned = "NO_LONGER_ASSIGNED"
