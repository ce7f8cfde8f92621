package mapping

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// SchemaBytes is the compressed schema document for an index: an opaque
// byte image whose equality (and hash) is the only notion of "same
// mapping" the coordinator relies on. Byte-equal sources are
// semantically equal; equality is computed over the compressed bytes,
// never the decoded text.
type SchemaBytes struct {
	compressed []byte
}

// NewSchemaBytesFromJSON compresses a raw JSON schema document.
func NewSchemaBytesFromJSON(raw []byte) (SchemaBytes, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return SchemaBytes{}, errors.Wrap(err, "compress schema source")
	}
	if err := w.Close(); err != nil {
		return SchemaBytes{}, errors.Wrap(err, "close schema compressor")
	}
	return SchemaBytes{compressed: buf.Bytes()}, nil
}

// IsZero reports whether this SchemaBytes carries no document at all
// (the "absent mapping" case for a freshly created index).
func (s SchemaBytes) IsZero() bool {
	return len(s.compressed) == 0
}

// Equal reports byte-identity of the compressed image, the authoritative
// equality for MappingMetadata sources.
func (s SchemaBytes) Equal(other SchemaBytes) bool {
	return bytes.Equal(s.compressed, other.compressed)
}

// JSON decompresses back to the raw JSON document.
func (s SchemaBytes) JSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("{}"), nil
	}
	r, err := gzip.NewReader(bytes.NewReader(s.compressed))
	if err != nil {
		return nil, errors.Wrap(err, "open schema reader")
	}
	defer r.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "decompress schema source")
	}
	return buf.Bytes(), nil
}

// Tree decodes into a mutable SchemaTree, the representation
// ColumnPositionPopulator and the merge primitives operate on.
func (s SchemaBytes) Tree() (SchemaTree, error) {
	raw, err := s.JSON()
	if err != nil {
		return nil, err
	}
	var tree SchemaTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, &MappingParseError{Cause: err}
	}
	if tree == nil {
		tree = SchemaTree{}
	}
	return tree, nil
}

// MarshalBase64 is used only for logging/debug field values; never for
// equality (Equal operates on the raw compressed bytes directly).
func (s SchemaBytes) MarshalBase64() string {
	return base64.StdEncoding.EncodeToString(s.compressed)
}

// SchemaTree is a schema document decoded into a tree of maps, the
// representation the merge primitives and PopulateColumnPositions
// operate on. Commit paths re-encode it back into SchemaBytes.
type SchemaTree = map[string]any

// EncodeSchemaTree re-encodes a SchemaTree into SchemaBytes.
func EncodeSchemaTree(tree SchemaTree) (SchemaBytes, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return SchemaBytes{}, errors.Wrap(err, "encode schema tree")
	}
	return NewSchemaBytesFromJSON(raw)
}
