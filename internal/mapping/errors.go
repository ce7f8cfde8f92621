package mapping

import "fmt"

// RequestResolutionError is a per-request failure: the index expression
// resolved to zero concrete indices, or named an unknown index.
type RequestResolutionError struct {
	Expression string
}

func (e *RequestResolutionError) Error() string {
	return fmt.Sprintf("mapping: index expression %q resolved to no concrete indices", e.Expression)
}

// MappingParseError wraps a schema source that failed to parse.
type MappingParseError struct {
	Cause error
}

func (e *MappingParseError) Error() string {
	return fmt.Sprintf("mapping: failed to parse schema source: %v", e.Cause)
}

func (e *MappingParseError) Unwrap() error { return e.Cause }

// MappingValidationError is a dry-run merge rejection: type conflicts,
// forbidden field changes.
type MappingValidationError struct {
	Index  string
	Reason string
}

func (e *MappingValidationError) Error() string {
	return fmt.Sprintf("mapping: validation rejected update to index %q: %s", e.Index, e.Reason)
}

// StateInconsistency is raised when an IndexMetadata expected to exist
// mid-batch is absent. The coordinator never fabricates metadata to
// paper over this.
type StateInconsistency struct {
	Index string
}

func (e *StateInconsistency) Error() string {
	return fmt.Sprintf("mapping: index %q missing from cluster state mid-batch", e.Index)
}

// ExecutorFatal is a batch-level failure: the cluster-state builder
// rejected the revision, or resource acquisition/release failed
// unexpectedly. Unlike the other kinds it fails the whole batch and
// leaves state unmutated.
type ExecutorFatal struct {
	Cause error
}

func (e *ExecutorFatal) Error() string {
	return fmt.Sprintf("mapping: executor fatal: %v", e.Cause)
}

func (e *ExecutorFatal) Unwrap() error { return e.Cause }

// errorKind returns a short, stable label for metrics/logging.
func errorKind(err error) string {
	switch err.(type) {
	case *RequestResolutionError:
		return "request_resolution"
	case *MappingParseError:
		return "mapping_parse"
	case *MappingValidationError:
		return "mapping_validation"
	case *StateInconsistency:
		return "state_inconsistency"
	case *ExecutorFatal:
		return "executor_fatal"
	default:
		return "unknown"
	}
}
