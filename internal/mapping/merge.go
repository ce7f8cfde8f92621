package mapping

import (
	"fmt"

	"github.com/imdario/mergo"
)

// defaultWrapperKey is the conventional top-level key CrateDB mapping
// documents wrap their single "default" type under (a holdover from
// Elasticsearch's multi-type mappings). unwrapRoot and
// ColumnPositionPopulator both need to see through it.
const defaultWrapperKey = "default"

// unwrapRoot descends into the conventional "default" wrapper if present,
// otherwise operates on the root map unchanged.
func unwrapRoot(tree SchemaTree) SchemaTree {
	if inner, ok := tree[defaultWrapperKey].(SchemaTree); ok {
		return inner
	}
	if inner, ok := tree[defaultWrapperKey].(map[string]any); ok {
		return SchemaTree(inner)
	}
	return tree
}

// properties returns the "properties" sub-map of tree, or nil if absent.
func properties(tree SchemaTree) SchemaTree {
	if tree == nil {
		return nil
	}
	p, ok := tree["properties"].(map[string]any)
	if !ok {
		return nil
	}
	return SchemaTree(p)
}

// propertyType returns the "type" leaf of a property definition, if any.
func propertyType(prop SchemaTree) (string, bool) {
	t, ok := prop["type"].(string)
	return t, ok
}

// checkTypeConflicts walks both property trees and reports a
// MappingValidationError for any property present on both sides whose
// "type" attribute differs. Changing a property's type is the one
// schema change a merge never accepts.
func checkTypeConflicts(index string, existing, incoming SchemaTree) error {
	existingProps := properties(unwrapRoot(existing))
	incomingProps := properties(unwrapRoot(incoming))
	return checkTypeConflictsRec(index, existingProps, incomingProps)
}

func checkTypeConflictsRec(index string, existingProps, incomingProps SchemaTree) error {
	for name, rawIncoming := range incomingProps {
		incomingProp, ok := rawIncoming.(map[string]any)
		if !ok {
			continue
		}
		rawExisting, ok := existingProps[name]
		if !ok {
			continue
		}
		existingProp, ok := rawExisting.(map[string]any)
		if !ok {
			continue
		}
		// Collection-of-object properties keep their real definition one
		// level down, under "inner".
		existingCol := descendInner(existingProp)
		incomingCol := descendInner(incomingProp)

		existingType, hasExistingType := propertyType(existingCol)
		incomingType, hasIncomingType := propertyType(incomingCol)
		if hasExistingType && hasIncomingType && existingType != incomingType {
			return &MappingValidationError{
				Index: index,
				Reason: fmt.Sprintf("property %q: cannot change type from %q to %q",
					name, existingType, incomingType),
			}
		}
		if err := checkTypeConflictsRec(
			index,
			properties(SchemaTree(existingCol)),
			properties(SchemaTree(incomingCol)),
		); err != nil {
			return err
		}
	}
	return nil
}

// MergeDocuments is the merge primitive both the dry-run (simulate) and
// commit paths reduce to: it rejects type conflicts between existing and
// incoming properties, then folds incoming into existing. existing may be
// nil (first-ever mapping for the index).
func MergeDocuments(existing, incoming SchemaTree, indexName string) (SchemaTree, error) {
	if existing != nil {
		if err := checkTypeConflicts(indexName, existing, incoming); err != nil {
			return nil, err
		}
	}
	return mergeTrees(existing, incoming)
}

// mergeTrees folds incoming into existing: new properties are added,
// shared leaf attributes are overridden by incoming, and nested
// property maps are merged recursively via mergo. Callers must run
// checkTypeConflicts first; mergeTrees itself does not reject type
// changes, it just takes incoming's value for any leaf present on both
// sides — including zero values like false and 0, which is what
// WithOverwriteWithEmptyValue is for (a submitted `index: false` must
// win over a stored `index: true`). Array values are replaced
// wholesale, never appended: re-submitting an identical source must
// reproduce the identical tree, and appending would grow arrays like
// partitioned_by or copy_to on every repeat.
func mergeTrees(existing, incoming SchemaTree) (SchemaTree, error) {
	if existing == nil {
		return incoming, nil
	}
	if incoming == nil {
		return existing, nil
	}
	dst := deepCopyTree(existing)
	if err := mergo.Merge(&dst, incoming, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
		return nil, fmt.Errorf("merge mapping trees: %w", err)
	}
	return dst, nil
}

// deepCopyTree produces an independent copy of tree so mergeTrees never
// mutates either input, matching ClusterState's immutability invariant.
func deepCopyTree(tree SchemaTree) SchemaTree {
	out := make(SchemaTree, len(tree))
	for k, v := range tree {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyTree(SchemaTree(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
