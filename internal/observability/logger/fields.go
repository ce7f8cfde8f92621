package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - MAPPING
// =================================================================================

// Index crea un campo para el nombre del índice.
func Index(v string) zap.Field {
	return zap.String("index", v)
}

// IndexUUID crea un campo para el UUID del índice.
func IndexUUID(v string) zap.Field {
	return zap.String("index_uuid", v)
}

// Template crea un campo para el nombre del template de partición.
func Template(v string) zap.Field {
	return zap.String("template", v)
}

// MappingVersion crea un campo para la versión de mapping de un índice.
func MappingVersion(v int64) zap.Field {
	return zap.Int64("mapping_version", v)
}

// ClusterStateVersion crea un campo para la versión de cluster state.
func ClusterStateVersion(v int64) zap.Field {
	return zap.Int64("cluster_state_version", v)
}

// MergeReason crea un campo para la razón de merge (recovery|update).
func MergeReason(v string) zap.Field {
	return zap.String("merge_reason", v)
}

// BatchSize crea un campo para el tamaño del batch de tareas procesadas.
func BatchSize(v int) zap.Field {
	return zap.Int("batch_size", v)
}

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// =================================================================================
// CAMPOS ESTÁNDAR - DATOS
// =================================================================================

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// ID crea un campo genérico para un ID.
func ID(v string) zap.Field {
	return zap.String("id", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
