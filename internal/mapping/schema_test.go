package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lyra126/crate/internal/mapping"
)

func TestSchemaBytesRoundTrip(t *testing.T) {
	raw := []byte(`{"properties":{"name":{"type":"keyword"}}}`)
	sb, err := mapping.NewSchemaBytesFromJSON(raw)
	require.NoError(t, err)
	require.False(t, sb.IsZero())

	tree, err := sb.Tree()
	require.NoError(t, err)
	props, ok := tree["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "name")

	reencoded, err := mapping.EncodeSchemaTree(tree)
	require.NoError(t, err)
	require.True(t, sb.Equal(reencoded))
}

func TestSchemaBytesZeroValue(t *testing.T) {
	var sb mapping.SchemaBytes
	require.True(t, sb.IsZero())
	tree, err := sb.Tree()
	require.NoError(t, err)
	require.Empty(t, tree)
}

func TestSchemaBytesEqualIsByteIdentity(t *testing.T) {
	a, err := mapping.NewSchemaBytesFromJSON([]byte(`{"a":1}`))
	require.NoError(t, err)
	b, err := mapping.NewSchemaBytesFromJSON([]byte(`{"a":1}`))
	require.NoError(t, err)
	require.True(t, a.Equal(b))

	c, err := mapping.NewSchemaBytesFromJSON([]byte(`{"a":2}`))
	require.NoError(t, err)
	require.False(t, a.Equal(c))
}
