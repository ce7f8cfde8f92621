package mapping_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Lyra126/crate/internal/mapping"
	"github.com/Lyra126/crate/internal/mapping/memmapper"
)

func newExecutor() *mapping.PutMappingExecutor {
	return &mapping.PutMappingExecutor{Factory: memmapper.Factory{}, Resolver: mapping.DefaultIndexResolver{}}
}

func emptyState(indexName string) mapping.ClusterState {
	return mapping.ClusterState{
		Metadata: mapping.Metadata{
			Indices: map[string]mapping.IndexMetadata{
				indexName: {Name: indexName, UUID: uuid.New()},
			},
		},
	}
}

// S1: first-ever mapping for an index bumps its version from zero.
func TestPutMappingFirstEverMapping(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	req := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}

	newState, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Successes, 1)

	updated, ok := newState.Metadata.Index("doc.users")
	require.True(t, ok)
	require.EqualValues(t, 1, updated.MappingVersion)
	require.Equal(t, newState.Version, state.Version+1)
}

// S2: re-submitting an identical mapping is a no-op: no version bump, and
// the resulting ClusterState is the same value as the input.
func TestPutMappingIdempotentNoOp(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	req := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}

	first, _, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)

	second, result, err := exec.Execute(context.Background(), first, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Equal(t, first, second)
}

// S2 with array-valued attributes: the no-op guarantee must hold for
// sources carrying arrays too — a repeat submission may not grow them
// and may not bump the version.
func TestPutMappingIdempotentWithArrayAttributes(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	source := `{"_meta":{"partitioned_by":[["p1","date"]]},"properties":{"name":{"type":"keyword","copy_to":["all"]}}}`
	req := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, source)}

	first, _, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)

	second, result, err := exec.Execute(context.Background(), first, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Equal(t, first, second)

	updated, ok := second.Metadata.Index("doc.users")
	require.True(t, ok)
	require.EqualValues(t, 1, updated.MappingVersion)
}

// S3: an additive change to an already-mapped index bumps the version again.
func TestPutMappingAdditiveChangeBumpsVersion(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	first := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}

	afterFirst, _, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{first})
	require.NoError(t, err)

	second := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"age":{"type":"integer"}}}`)}
	afterSecond, result, err := exec.Execute(context.Background(), afterFirst, []mapping.PutMappingRequest{second})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	updated, ok := afterSecond.Metadata.Index("doc.users")
	require.True(t, ok)
	require.EqualValues(t, 2, updated.MappingVersion)

	tree, err := updated.Mapping.Source.Tree()
	require.NoError(t, err)
	props := tree["properties"].(map[string]any)
	require.Contains(t, props, "name")
	require.Contains(t, props, "age")
}

// S4: a type-conflicting change is rejected per-request without touching state.
func TestPutMappingConflictRejected(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	first := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}
	afterFirst, _, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{first})
	require.NoError(t, err)

	conflicting := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"integer"}}}`)}
	finalState, result, err := exec.Execute(context.Background(), afterFirst, []mapping.PutMappingRequest{conflicting})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)

	var verr *mapping.MappingValidationError
	require.ErrorAs(t, result.Failures[0].Err, &verr)
	require.Equal(t, afterFirst, finalState)
}

// S5: a partitioned index's mapping is stamped with its template's column positions on commit.
func TestPutMappingPartitionedIndexStampsColumnPositions(t *testing.T) {
	exec := newExecutor()

	templateSource, err := mapping.EncodeSchemaTree(mapping.SchemaTree{
		"properties": map[string]any{
			"name": map[string]any{"type": "keyword", "position": float64(1)},
		},
	})
	require.NoError(t, err)

	state := mapping.ClusterState{
		Metadata: mapping.Metadata{
			Indices: map[string]mapping.IndexMetadata{
				".partitioned.doc.04132": {Name: ".partitioned.doc.04132", UUID: uuid.New()},
			},
			Templates: map[string]mapping.IndexTemplateMetadata{
				".partitioned.doc.": {Name: ".partitioned.doc.", Mapping: templateSource},
			},
		},
	}

	req := mapping.PutMappingRequest{
		ConcreteIndex: ".partitioned.doc.04132",
		Source:        mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`),
	}
	newState, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	updated, ok := newState.Metadata.Index(".partitioned.doc.04132")
	require.True(t, ok)
	tree, err := updated.Mapping.Source.Tree()
	require.NoError(t, err)
	name := tree["properties"].(map[string]any)["name"].(map[string]any)
	require.Equal(t, float64(1), name["position"])
}

// S5 (error path): a partitioned index whose template is missing from
// cluster state fails the request rather than silently skipping positions.
func TestPutMappingPartitionedIndexMissingTemplateFails(t *testing.T) {
	exec := newExecutor()
	state := mapping.ClusterState{
		Metadata: mapping.Metadata{
			Indices: map[string]mapping.IndexMetadata{
				".partitioned.doc.04132": {Name: ".partitioned.doc.04132", UUID: uuid.New()},
			},
		},
	}
	req := mapping.PutMappingRequest{
		ConcreteIndex: ".partitioned.doc.04132",
		Source:        mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`),
	}
	_, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	var serr *mapping.StateInconsistency
	require.ErrorAs(t, result.Failures[0].Err, &serr)
}

// An index expression resolving to several concrete indices applies the
// same change to all of them in one batch.
func TestPutMappingExpressionAppliesToAllMatches(t *testing.T) {
	exec := newExecutor()

	templateSource, err := mapping.EncodeSchemaTree(mapping.SchemaTree{
		"properties": map[string]any{
			"name": map[string]any{"type": "keyword", "position": float64(1)},
		},
	})
	require.NoError(t, err)

	state := mapping.ClusterState{
		Metadata: mapping.Metadata{
			Indices: map[string]mapping.IndexMetadata{
				".partitioned.doc.1": {Name: ".partitioned.doc.1", UUID: uuid.New()},
				".partitioned.doc.2": {Name: ".partitioned.doc.2", UUID: uuid.New()},
			},
			Templates: map[string]mapping.IndexTemplateMetadata{
				".partitioned.doc.": {Name: ".partitioned.doc.", Mapping: templateSource},
			},
		},
	}
	req := mapping.PutMappingRequest{
		Expression: ".partitioned.doc.*",
		Source:     mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`),
	}
	newState, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Empty(t, result.Failures)

	for _, name := range []string{".partitioned.doc.1", ".partitioned.doc.2"} {
		updated, ok := newState.Metadata.Index(name)
		require.True(t, ok)
		require.EqualValues(t, 1, updated.MappingVersion)
	}
}

// A failing request in the middle of a batch leaves the other requests'
// effects intact: the final state is what applying only the good
// requests would have produced.
func TestPutMappingBatchIsolatesFailingRequest(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	good := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}
	bad := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"integer"}}}`)}
	alsoGood := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"age":{"type":"integer"}}}`)}

	withBad, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{good, bad, alsoGood})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	require.Len(t, result.Successes, 2)

	onlyGood, _, err := newExecutor().Execute(context.Background(), state, []mapping.PutMappingRequest{good, alsoGood})
	require.NoError(t, err)
	require.Equal(t, onlyGood, withBad)

	updated, ok := withBad.Metadata.Index("doc.users")
	require.True(t, ok)
	require.EqualValues(t, 2, updated.MappingVersion)
}

// closeTrackingFactory wraps memmapper so tests can observe that every
// ephemeral MapperService handed out during a batch was closed before
// Execute returned.
type closeTrackingFactory struct {
	created []*closeTrackingService
}

type closeTrackingService struct {
	mapping.MapperService
	closed bool
}

func (s *closeTrackingService) Close() error {
	s.closed = true
	return s.MapperService.Close()
}

func (f *closeTrackingFactory) CreateMapperService(index string) (mapping.MapperService, error) {
	inner, err := memmapper.Factory{}.CreateMapperService(index)
	if err != nil {
		return nil, err
	}
	svc := &closeTrackingService{MapperService: inner}
	f.created = append(f.created, svc)
	return svc, nil
}

func TestPutMappingClosesEphemeralMapperServices(t *testing.T) {
	factory := &closeTrackingFactory{}
	exec := &mapping.PutMappingExecutor{Factory: factory, Resolver: mapping.DefaultIndexResolver{}}
	state := emptyState("doc.users")

	good := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}
	bad := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"integer"}}}`)}
	_, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{good, bad})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)

	require.NotEmpty(t, factory.created)
	for _, svc := range factory.created {
		require.True(t, svc.closed)
	}
}

// failingFactory simulates the mapper engine being unavailable, which is
// fatal for the whole batch rather than one request.
type failingFactory struct{ err error }

func (f failingFactory) CreateMapperService(string) (mapping.MapperService, error) {
	return nil, f.err
}

func TestPutMappingFactoryFailureAbortsBatch(t *testing.T) {
	boom := errors.New("mapper engine unavailable")
	exec := &mapping.PutMappingExecutor{Factory: failingFactory{err: boom}, Resolver: mapping.DefaultIndexResolver{}}
	state := emptyState("doc.users")

	req := mapping.PutMappingRequest{ConcreteIndex: "doc.users", Source: mustSource(t, `{"properties":{"name":{"type":"keyword"}}}`)}
	finalState, _, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.Error(t, err)
	var fatal *mapping.ExecutorFatal
	require.ErrorAs(t, err, &fatal)
	require.ErrorIs(t, err, boom)
	require.Equal(t, state, finalState)
}

// Unresolvable expressions fail the request without mutating state.
func TestPutMappingUnresolvableExpressionFails(t *testing.T) {
	exec := newExecutor()
	state := emptyState("doc.users")
	req := mapping.PutMappingRequest{Expression: "doc.nonexistent*", Source: mustSource(t, `{}`)}

	finalState, result, err := exec.Execute(context.Background(), state, []mapping.PutMappingRequest{req})
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	var rerr *mapping.RequestResolutionError
	require.ErrorAs(t, result.Failures[0].Err, &rerr)
	require.Equal(t, state, finalState)
}
