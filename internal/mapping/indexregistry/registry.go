// Package indexregistry provides a concrete IndexServiceRegistry backed
// by an LRU cache standing in for "locally open" index services: an
// index falls out of local residency under memory pressure, which is
// exactly the condition that forces RefreshExecutor down the transient,
// on-demand path.
package indexregistry

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Lyra126/crate/internal/mapping"
)

// ReasonNoLongerAssigned tags the removal of a transient index service
// created only to process a mapping task.
const ReasonNoLongerAssigned = "NO_LONGER_ASSIGNED"

// Registry is a concrete IndexServiceRegistry. local is the bounded set
// of indices considered "locally open"; factory creates ephemeral
// MapperServices for everything else.
type Registry struct {
	local   *lru.Cache[string, mapping.MapperService]
	factory mapping.MapperServiceFactory
}

// New creates a Registry with room for localCapacity locally-resident
// index mapper services.
func New(localCapacity int, factory mapping.MapperServiceFactory) (*Registry, error) {
	c, err := lru.New[string, mapping.MapperService](localCapacity)
	if err != nil {
		return nil, err
	}
	return &Registry{local: c, factory: factory}, nil
}

// Open registers svc as the locally open MapperService for index,
// evicting the least-recently-used entry if the registry is at capacity.
func (r *Registry) Open(index string, svc mapping.MapperService) {
	r.local.Add(index, svc)
}

// Lookup implements mapping.IndexServiceRegistry.
func (r *Registry) Lookup(index string) (mapping.MapperService, bool) {
	return r.local.Get(index)
}

// CreateTransient implements mapping.IndexServiceRegistry: it builds a
// short-lived MapperService via the factory, primes it with seed under
// MergeReasonRecovery, and returns a release func that closes it. The
// release func never leaves the service registered in local — transient
// services must never leak across a batch boundary.
func (r *Registry) CreateTransient(index string, seed mapping.SchemaBytes) (mapping.MapperService, func(reason, detail string), error) {
	svc, err := r.factory.CreateMapperService(index)
	if err != nil {
		return nil, nil, err
	}
	if !seed.IsZero() {
		if _, err := svc.Merge(seed, nil, mapping.MergeReasonRecovery); err != nil {
			_ = svc.Close()
			return nil, nil, err
		}
	}
	release := func(reason, detail string) {
		_ = svc.Close()
	}
	return svc, release, nil
}
