package memmapper

import "github.com/Lyra126/crate/internal/mapping"

// Factory is the default mapping.MapperServiceFactory: every call to
// CreateMapperService starts a brand new, empty in-memory Service.
// Seeding with prior state (MergeReasonRecovery) is the caller's job,
// same as with a real mapper-engine factory.
type Factory struct{}

// CreateMapperService implements mapping.MapperServiceFactory.
func (Factory) CreateMapperService(index string) (mapping.MapperService, error) {
	return New(index), nil
}
