package mapping

import "fmt"

// innerWrapperKey is the key used for the "collection of object" case,
// where a property's real definition lives one level deeper.
const innerWrapperKey = "inner"

// PopulateColumnPositions rewrites indexMapping in place so every
// property carries the "position" attribute defined by the homonymous
// property in templateMapping, the parent template of a partitioned
// index. The template is the single source of truth for column order;
// without this, two partitions of the same table could disagree on
// column positions after independent mapping updates. templateMapping
// must already be decoded from the template's IndexTemplateMetadata;
// legacyOrigin mirrors IndexTemplateMetadata.LegacyOrigin and controls
// whether a missing template position is a hard error or silently
// skipped.
func PopulateColumnPositions(indexMapping, templateMapping SchemaTree, legacyOrigin bool) error {
	return populateColumnPositionsImpl(unwrapRoot(indexMapping), unwrapRoot(templateMapping), legacyOrigin)
}

func populateColumnPositionsImpl(indexMapping, templateMapping SchemaTree, legacyOrigin bool) error {
	indexProperties := properties(indexMapping)
	if indexProperties == nil {
		return nil
	}
	templateProperties := properties(templateMapping)
	if templateProperties == nil {
		templateProperties = SchemaTree{}
	}

	for name, rawIndexProp := range indexProperties {
		indexProp, ok := rawIndexProp.(map[string]any)
		if !ok {
			continue
		}
		var templateProp map[string]any
		if raw, ok := templateProperties[name]; ok {
			templateProp, _ = raw.(map[string]any)
		}
		if templateProp == nil {
			templateProp = map[string]any{}
		}

		// Collection-of-object case: the real definition lives under "inner".
		indexColumn := descendInner(indexProp)
		templateColumn := descendInner(templateProp)

		position, hasPosition := templateColumn["position"]
		if !hasPosition || position == nil {
			if legacyOrigin {
				// BWC: templates created before positions were mandatory may
				// be missing one; skip rather than copy a null.
				continue
			}
			return fmt.Errorf("mapping: template mapping missing column position for property %q", name)
		}

		indexColumn["position"] = position

		if err := populateColumnPositionsImpl(SchemaTree(indexColumn), SchemaTree(templateColumn), legacyOrigin); err != nil {
			return err
		}
	}
	return nil
}

// descendInner returns prop["inner"] when present (the collection-of-object
// wrapper), else prop itself.
func descendInner(prop map[string]any) map[string]any {
	if inner, ok := prop[innerWrapperKey].(map[string]any); ok {
		return inner
	}
	return prop
}
