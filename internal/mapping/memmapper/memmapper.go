// Package memmapper is an in-memory implementation of the mapping
// package's MapperService/DocumentMapper collaborators. Production
// deployments plug in a real mapper engine; this package exists so the
// coordinator's tests and the cmd/mappingd demo can run end to end
// without one.
package memmapper

import (
	"errors"

	"github.com/Lyra126/crate/internal/mapping"
)

// DocumentMapper is the merged, mergeable schema for one index.
type DocumentMapper struct {
	index  string
	source mapping.SchemaBytes
	tree   mapping.SchemaTree
}

// MappingSource implements mapping.DocumentMapper.
func (d *DocumentMapper) MappingSource() mapping.SchemaBytes {
	return d.source
}

// Merge implements mapping.DocumentMapper: it simulates folding other
// into d without installing anything, returning the merged result. Used
// by PutMappingExecutor's dry-run step.
func (d *DocumentMapper) Merge(other mapping.DocumentMapper) (mapping.DocumentMapper, error) {
	o, ok := other.(*DocumentMapper)
	if !ok {
		return nil, &mapping.MappingParseError{Cause: errIncompatibleMapper}
	}
	merged, err := mapping.MergeDocuments(d.tree, o.tree, d.index)
	if err != nil {
		return nil, err
	}
	encoded, err := mapping.EncodeSchemaTree(merged)
	if err != nil {
		return nil, err
	}
	return &DocumentMapper{index: d.index, source: encoded, tree: merged}, nil
}

var errIncompatibleMapper = errors.New("memmapper: incompatible DocumentMapper implementation")

// Service is the in-memory MapperService for one index.
type Service struct {
	index   string
	current *DocumentMapper
}

// New creates an empty, unmerged MapperService for index.
func New(index string) *Service {
	return &Service{index: index}
}

// Parse implements mapping.MapperService.
func (s *Service) Parse(source mapping.SchemaBytes) (mapping.DocumentMapper, error) {
	tree, err := source.Tree()
	if err != nil {
		return nil, err
	}
	return &DocumentMapper{index: s.index, source: source, tree: tree}, nil
}

// Merge implements mapping.MapperService: it folds the given source (or
// tree, if non-nil) into whatever mapper is currently installed and
// installs the result. The reason is accepted for interface symmetry;
// this in-memory implementation applies the same merge logic regardless
// of reason — real mapper engines vary validation strictness by reason,
// this stand-in does not need to.
func (s *Service) Merge(source mapping.SchemaBytes, tree mapping.SchemaTree, reason mapping.MergeReason) (mapping.DocumentMapper, error) {
	var incoming mapping.SchemaTree
	var err error
	if tree != nil {
		incoming = tree
	} else {
		incoming, err = source.Tree()
		if err != nil {
			return nil, err
		}
	}

	var existing mapping.SchemaTree
	if s.current != nil {
		existing = s.current.tree
	}

	merged, err := mapping.MergeDocuments(existing, incoming, s.index)
	if err != nil {
		return nil, err
	}
	encoded, err := mapping.EncodeSchemaTree(merged)
	if err != nil {
		return nil, err
	}
	s.current = &DocumentMapper{index: s.index, source: encoded, tree: merged}
	return s.current, nil
}

// DocumentMapper implements mapping.MapperService.
func (s *Service) DocumentMapper() mapping.DocumentMapper {
	if s.current == nil {
		return nil
	}
	return s.current
}

// Close implements mapping.MapperService. In-memory services hold no
// resources worth releasing; Close is a no-op kept for interface parity
// with real mapper engines.
func (s *Service) Close() error { return nil }
