package mapping

import "github.com/tidwall/match"

// DefaultIndexResolver resolves an index expression against a
// ClusterState's index names. An expression with no glob metacharacters
// must match exactly; otherwise it is matched with shell-style globbing
// (via tidwall/match, the same matcher gjson uses internally for path
// wildcards), mirroring Elasticsearch/CrateDB's index-expression syntax
// closely enough for this coordinator's purposes.
type DefaultIndexResolver struct{}

// Resolve implements IndexResolver.
func (DefaultIndexResolver) Resolve(state ClusterState, expression string) ([]string, error) {
	if expression == "" {
		return nil, &RequestResolutionError{Expression: expression}
	}
	if !match.IsPattern(expression) {
		if _, ok := state.Metadata.Index(expression); !ok {
			return nil, &RequestResolutionError{Expression: expression}
		}
		return []string{expression}, nil
	}
	var out []string
	for name := range state.Metadata.Indices {
		if match.Match(name, expression) {
			out = append(out, name)
		}
	}
	return out, nil
}
