// Package mapping implements the cluster-level mapping update coordinator:
// RefreshExecutor, PutMappingExecutor, and ColumnPositionPopulator, plus the
// shared cluster-metadata data model they operate on.
package mapping

import (
	"time"

	"github.com/google/uuid"
)

// MergeReason distinguishes recovery-time seeding of an ephemeral mapper
// from a user-initiated mapping update. The core only needs to pass the
// right one through to MapperService.Merge; validation strictness lives
// with the external mapper engine.
type MergeReason string

const (
	// MergeReasonRecovery seeds a freshly created MapperService with the
	// mapping already recorded in cluster state, so later merges see the
	// full prior schema for cross-property validation.
	MergeReasonRecovery MergeReason = "recovery"
	// MergeReasonUpdate commits a user-submitted mapping change.
	MergeReasonUpdate MergeReason = "update"
)

// IndexTemplateMetadata is the canonical mapping tree for a partitioned
// table. For partitioned indices, this template is the single source of
// truth for column positions.
type IndexTemplateMetadata struct {
	Name    string
	Mapping SchemaBytes
	// LegacyOrigin marks templates created by nodes predating the version
	// boundary at which column positions became mandatory. Only templates
	// with LegacyOrigin set tolerate a missing position on a property;
	// see PopulateColumnPositions.
	LegacyOrigin bool
}

// MappingMetadata is an index's current schema document: a compressed
// byte image plus the ability to decode it into a mutable tree.
// Byte-equal Source values are semantically equal.
type MappingMetadata struct {
	Source SchemaBytes
}

// IndexMetadata is the per-index record cluster metadata tracks. UUID is
// the authoritative identity; Name may alias multiple UUIDs over the
// life of a cluster (an index can be deleted and recreated under the
// same name).
type IndexMetadata struct {
	Name          string
	UUID          uuid.UUID
	Mapping       MappingMetadata
	MappingVersion int64
}

// WithMapping returns a copy of im with a new mapping source. It does not
// touch MappingVersion; callers decide whether the change is a version
// bump (PutMappingExecutor) or a same-version resync (RefreshExecutor).
func (im IndexMetadata) WithMapping(source SchemaBytes) IndexMetadata {
	im.Mapping = MappingMetadata{Source: source}
	return im
}

// Metadata is the index/template namespace of a ClusterState. It is
// treated as immutable; Builder produces a new Metadata reflecting any
// change.
type Metadata struct {
	Indices   map[string]IndexMetadata
	Templates map[string]IndexTemplateMetadata
}

// Index returns the IndexMetadata for name, or false if no such index
// exists in this Metadata snapshot.
func (m Metadata) Index(name string) (IndexMetadata, bool) {
	im, ok := m.Indices[name]
	return im, ok
}

// Template returns the IndexTemplateMetadata for name, or false.
func (m Metadata) Template(name string) (IndexTemplateMetadata, bool) {
	t, ok := m.Templates[name]
	return t, ok
}

// Builder accumulates changes to a Metadata snapshot and produces a new,
// independent Metadata. It never mutates the Metadata it was built from.
type Builder struct {
	indices   map[string]IndexMetadata
	templates map[string]IndexTemplateMetadata
}

// NewMetadataBuilder starts a Builder from an existing Metadata snapshot.
func NewMetadataBuilder(base Metadata) *Builder {
	b := &Builder{
		indices:   make(map[string]IndexMetadata, len(base.Indices)),
		templates: make(map[string]IndexTemplateMetadata, len(base.Templates)),
	}
	for k, v := range base.Indices {
		b.indices[k] = v
	}
	for k, v := range base.Templates {
		b.templates[k] = v
	}
	return b
}

// Get returns the currently-staged IndexMetadata for name.
func (b *Builder) Get(name string) (IndexMetadata, bool) {
	im, ok := b.indices[name]
	return im, ok
}

// Put stages an IndexMetadata update.
func (b *Builder) Put(im IndexMetadata) *Builder {
	b.indices[im.Name] = im
	return b
}

// Build finalizes the staged changes into a new, independent Metadata.
func (b *Builder) Build() Metadata {
	indices := make(map[string]IndexMetadata, len(b.indices))
	for k, v := range b.indices {
		indices[k] = v
	}
	templates := make(map[string]IndexTemplateMetadata, len(b.templates))
	for k, v := range b.templates {
		templates[k] = v
	}
	return Metadata{Indices: indices, Templates: templates}
}

// ClusterState is an immutable cluster-metadata revision with a
// monotonically increasing version. Every mutation produces a new value;
// nothing here is ever mutated in place.
type ClusterState struct {
	Version  int64
	Metadata Metadata
}

// WithMetadata returns a new ClusterState with the given Metadata and
// the version bumped by one.
func (s ClusterState) WithMetadata(md Metadata) ClusterState {
	return ClusterState{Version: s.Version + 1, Metadata: md}
}

// RefreshTask asks the coordinator to reconcile cluster metadata for one
// index with whatever mapping that index's mapper currently reports. A
// task whose UUID does not match the index's current UUID is discarded:
// it refers to a previous incarnation of the index name.
type RefreshTask struct {
	Index string
	UUID  uuid.UUID
}

// PutMappingRequest is one user-submitted mapping change. Either
// ConcreteIndex is set, or Expression is resolved against the current
// ClusterState by an IndexResolver.
type PutMappingRequest struct {
	ConcreteIndex string
	Expression    string
	Source        SchemaBytes
	AckTimeout    time.Duration
}

// ResolveAgainst returns the concrete index names this request targets,
// either the pre-resolved one or by asking resolver to expand Expression.
// An empty expansion is a RequestResolutionError.
func (r PutMappingRequest) ResolveAgainst(state ClusterState, resolver IndexResolver) ([]string, error) {
	if r.ConcreteIndex != "" {
		return []string{r.ConcreteIndex}, nil
	}
	indices, err := resolver.Resolve(state, r.Expression)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, &RequestResolutionError{Expression: r.Expression}
	}
	return indices, nil
}
