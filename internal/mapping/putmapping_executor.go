package mapping

import (
	"context"
	"errors"
	"time"

	"github.com/Lyra126/crate/internal/audit"
	"github.com/Lyra126/crate/internal/mapping/indexparts"
	"github.com/Lyra126/crate/internal/metrics"
	"github.com/Lyra126/crate/internal/observability/logger"
)

// PutMappingExecutor atomically applies, per batch, a sequence of
// user-submitted mapping updates: dry-run validation, commit merge, and
// mapping-version bookkeeping. Per-task outcomes are independent — one
// failing request never fails the batch.
type PutMappingExecutor struct {
	Factory  MapperServiceFactory
	Resolver IndexResolver
}

// Execute transforms (currentState, requests) into (newState, per-task
// outcomes). The MapperService cache is owned by this single invocation
// and released on every exit path. An ExecutorFatal aborts the whole
// batch and returns the state as it was when Execute was called;
// every other error kind fails only the request that raised it.
func (e *PutMappingExecutor) Execute(ctx context.Context, currentState ClusterState, requests []PutMappingRequest) (ClusterState, *BatchResult[PutMappingRequest], error) {
	stop := startTimer()
	defer func() { metrics.PutMappingDuration.Observe(stop()) }()
	metrics.BatchSize.Observe(float64(len(requests)))

	resolver := e.Resolver
	if resolver == nil {
		resolver = DefaultIndexResolver{}
	}

	cache := make(map[string]MapperService)
	defer func() {
		for _, svc := range cache {
			_ = svc.Close()
		}
	}()

	result := NewBatchResult[PutMappingRequest](currentState)
	log := logger.FromWithFields(ctx, logger.Component("put_mapping_executor"), logger.BatchSize(len(requests)))

	for _, req := range requests {
		newState, err := e.applyOne(ctx, result.State, req, resolver, cache)
		if err != nil {
			var fatal *ExecutorFatal
			if errors.As(err, &fatal) {
				log.Error("put_mapping batch aborted", logger.Err(err))
				metrics.RequestFailures.WithLabelValues(errorKind(err)).Inc()
				return currentState, result, err
			}
			log.Info("put_mapping request failed", logger.Err(err))
			metrics.RequestFailures.WithLabelValues(errorKind(err)).Inc()
			result.Failure(req, err)
			continue
		}
		result.Success(req, newState)
	}

	return result.State, result, nil
}

// applyOne resolves, dry-run validates, and commits one PutMappingRequest
// against state, returning the resulting ClusterState. On any failure it
// returns the original state unmodified and an error describing why.
func (e *PutMappingExecutor) applyOne(
	ctx context.Context,
	state ClusterState,
	req PutMappingRequest,
	resolver IndexResolver,
	cache map[string]MapperService,
) (ClusterState, error) {
	indices, err := req.ResolveAgainst(state, resolver)
	if err != nil {
		return state, err
	}

	if err := e.ensureMapperServices(state, indices, cache); err != nil {
		return state, err
	}

	if err := e.dryRunMerge(req, indices, cache); err != nil {
		return state, err
	}

	return e.commitMerge(ctx, state, req, indices, cache)
}

// ensureMapperServices creates and seeds (via MergeReasonRecovery) an
// ephemeral MapperService for every concrete index not already cached in
// this batch. Seeding replays the index's entire existing mapping so
// dry-run validation sees the same cross-property context a resident
// mapper would.
func (e *PutMappingExecutor) ensureMapperServices(state ClusterState, indices []string, cache map[string]MapperService) error {
	for _, index := range indices {
		if _, ok := cache[index]; ok {
			continue
		}
		indexMetadata, ok := state.Metadata.Index(index)
		if !ok {
			return &StateInconsistency{Index: index}
		}
		svc, err := e.Factory.CreateMapperService(index)
		if err != nil {
			return &ExecutorFatal{Cause: err}
		}
		cache[index] = svc
		if !indexMetadata.Mapping.Source.IsZero() {
			if _, err := svc.Merge(indexMetadata.Mapping.Source, nil, MergeReasonRecovery); err != nil {
				return &ExecutorFatal{Cause: err}
			}
		}
	}
	return nil
}

// dryRunMerge parses the request's schema source into a candidate mapper
// for each index and, when a mapper is already installed, simulates the
// merge to surface validation errors without mutating state.
func (e *PutMappingExecutor) dryRunMerge(req PutMappingRequest, indices []string, cache map[string]MapperService) error {
	for _, index := range indices {
		svc := cache[index]
		candidate, err := svc.Parse(req.Source)
		if err != nil {
			return &MappingParseError{Cause: err}
		}
		existing := svc.DocumentMapper()
		if existing == nil {
			continue
		}
		if _, err := existing.Merge(candidate); err != nil {
			return err
		}
	}
	return nil
}

// commitMerge performs the real merge on the master, reconciling
// partitioned-index column positions against the parent template first,
// and bumps mapping versions for indices whose source actually changed.
// The mapping-version increment is computed before the IndexMetadata is
// staged, so the staged record already carries the bumped version when
// the new Metadata is built; the ClusterState version itself is bumped
// once per request, by WithMetadata, and only if some index changed.
func (e *PutMappingExecutor) commitMerge(
	ctx context.Context,
	state ClusterState,
	req PutMappingRequest,
	indices []string,
	cache map[string]MapperService,
) (ClusterState, error) {
	builder := NewMetadataBuilder(state.Metadata)
	anyUpdated := false

	for _, index := range indices {
		// Always re-read from state, never from a value captured earlier
		// in this function: state is what's threaded across the batch, and
		// pulling from anywhere else risks missing a prior request's
		// effect on the same index.
		indexMetadata, ok := state.Metadata.Index(index)
		if !ok {
			return state, &StateInconsistency{Index: index}
		}
		svc := cache[index]

		mapper, err := e.commitOne(svc, index, req.Source, state)
		if err != nil {
			return state, err
		}

		newSource := mapper.MappingSource()
		priorSource := indexMetadata.Mapping.Source
		updated := priorSource.IsZero() || !priorSource.Equal(newSource)

		newVersion := indexMetadata.MappingVersion
		if updated {
			newVersion = indexMetadata.MappingVersion + 1
		}
		builder.Put(IndexMetadata{
			Name:           indexMetadata.Name,
			UUID:           indexMetadata.UUID,
			Mapping:        MappingMetadata{Source: newSource},
			MappingVersion: newVersion,
		})

		if updated {
			anyUpdated = true
			metrics.VersionBumps.WithLabelValues(index).Inc()
			audit.MappingCommitted(ctx, index, indexMetadata.MappingVersion, newVersion, string(MergeReasonUpdate))
		}
	}

	if !anyUpdated {
		// Same source, no changes: return the identical state so callers
		// comparing states see nothing happened.
		return state, nil
	}
	return state.WithMetadata(builder.Build()), nil
}

// commitOne performs the actual merge for a single concrete index,
// routing partitioned indices through ColumnPositionPopulator first.
func (e *PutMappingExecutor) commitOne(svc MapperService, index string, source SchemaBytes, state ClusterState) (DocumentMapper, error) {
	if !indexparts.IsPartitioned(index) {
		return svc.Merge(source, nil, MergeReasonUpdate)
	}

	templateName := indexparts.TemplateName(index)
	template, ok := state.Metadata.Template(templateName)
	if !ok {
		return nil, &StateInconsistency{Index: templateName}
	}

	sourceTree, err := source.Tree()
	if err != nil {
		return nil, &MappingParseError{Cause: err}
	}
	templateTree, err := template.Mapping.Tree()
	if err != nil {
		return nil, &MappingParseError{Cause: err}
	}
	if err := PopulateColumnPositions(sourceTree, templateTree, template.LegacyOrigin); err != nil {
		return nil, &MappingValidationError{Index: index, Reason: err.Error()}
	}

	return svc.Merge(SchemaBytes{}, sourceTree, MergeReasonUpdate)
}

func startTimer() func() float64 {
	start := time.Now()
	return func() float64 { return time.Since(start).Seconds() }
}
