// Package audit records one structured event per committed mapping change.
package audit

import (
	"context"
	"time"

	"github.com/Lyra126/crate/internal/observability/logger"
	"go.uber.org/zap"
)

// MappingCommitted logs a PutMapping change to one index: PutMappingExecutor
// emits one event per index whose mapping source changed, as that index's
// new IndexMetadata is staged and before the request's new ClusterState
// is built.
func MappingCommitted(ctx context.Context, index string, priorVersion, newVersion int64, reason string) {
	logger.FromWithFields(ctx,
		zap.String("event", "mapping_committed"),
		zap.String("index", index),
		zap.Int64("prior_mapping_version", priorVersion),
		zap.Int64("new_mapping_version", newVersion),
		zap.String("merge_reason", reason),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	).Info("mapping committed")
}

// MappingDrift logs a refresh-induced rewrite of an index's mapping source
// that did not go through a version bump (see RefreshExecutor).
func MappingDrift(ctx context.Context, index string) {
	logger.FromWithFields(ctx,
		zap.String("event", "mapping_drift"),
		zap.String("index", index),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	).Warn("re-syncing mapping with cluster state")
}
