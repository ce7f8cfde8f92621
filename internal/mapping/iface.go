package mapping

// This file declares the external collaborators the coordinator depends
// on. Production wiring plugs real implementations in; tests and the
// demo command in cmd/mappingd use the in-memory ones under
// internal/mapping/memmapper and internal/mapping/indexregistry.

// DocumentMapper is the parsed, mergeable form of one index's schema, as
// produced and owned by a MapperService.
type DocumentMapper interface {
	// MappingSource returns the compressed, canonical byte image of this
	// mapper's current schema.
	MappingSource() SchemaBytes
	// Merge folds other into this mapper's schema and returns the
	// resulting merged mapper without installing it. Only the dry-run
	// simulate step uses this (and discards the result); commits go
	// through MapperService.Merge instead.
	Merge(other DocumentMapper) (DocumentMapper, error)
}

// MapperService is the per-index collaborator that parses and merges
// schema documents and reports the mapper currently installed.
type MapperService interface {
	// Parse parses source into a candidate DocumentMapper without
	// installing it.
	Parse(source SchemaBytes) (DocumentMapper, error)
	// Merge merges tree (or, when tree is nil, source) into the
	// currently installed mapper with the given reason, and installs the
	// result as the new current mapper.
	Merge(source SchemaBytes, tree SchemaTree, reason MergeReason) (DocumentMapper, error)
	// DocumentMapper returns the currently installed mapper, or nil if
	// none has been merged yet.
	DocumentMapper() DocumentMapper
	// Close releases this ephemeral mapper service. Idempotent.
	Close() error
}

// MapperServiceFactory creates an ephemeral MapperService for an index
// not locally resident, used by both executors to build a validation
// context.
type MapperServiceFactory interface {
	CreateMapperService(index string) (MapperService, error)
}

// IndexServiceRegistry answers whether an index is locally open and
// creates/removes transient index services for RefreshExecutor's
// on-demand divergence checks.
type IndexServiceRegistry interface {
	// Lookup returns the locally open MapperService for index, or
	// (nil, false) if the index is not resident.
	Lookup(index string) (MapperService, bool)
	// CreateTransient constructs a MapperService for index, seeded with
	// seed via MergeReasonRecovery, for the duration of one executor
	// invocation. The returned release func must run exactly once.
	CreateTransient(index string, seed SchemaBytes) (svc MapperService, release func(reason, detail string), err error)
}

// IndexResolver expands an index expression to concrete index names
// against a given ClusterState.
type IndexResolver interface {
	Resolve(state ClusterState, expression string) ([]string, error)
}
