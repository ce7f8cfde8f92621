// Package indexparts implements the partitioned-index naming scheme: a
// partitioned index name is ".partitioned.<table>.<ident>" and its
// parent template name is ".partitioned.<table>." (same prefix,
// trailing dot, no partition ident).
package indexparts

import "strings"

const partitionedPrefix = ".partitioned."

// IsPartitioned reports whether indexName names a partition: it starts
// with the partitioned prefix and carries both a table name and a
// partition ident. Names that merely start with the prefix but have no
// ident segment (".partitioned.foo") are not considered partitioned —
// there is no partition to route to.
func IsPartitioned(indexName string) bool {
	if !strings.HasPrefix(indexName, partitionedPrefix) {
		return false
	}
	rest := indexName[len(partitionedPrefix):]
	dot := strings.IndexByte(rest, '.')
	if dot <= 0 {
		return false
	}
	ident := rest[dot+1:]
	return ident != ""
}

// TemplateName derives the parent template name for a partitioned index.
// Callers must check IsPartitioned first; TemplateName does not
// re-validate.
func TemplateName(indexName string) string {
	rest := indexName[len(partitionedPrefix):]
	dot := strings.IndexByte(rest, '.')
	table := rest[:dot]
	return partitionedPrefix + table + "."
}
