// Package signature reduces a collection of findings to a stable string.
package signature

import (
	"sort"
	"strings"
)

// Separator joins sorted findings inside a signature.
const Separator = "|"

// Of returns the findings sorted lexicographically and joined with Separator.
// The result depends only on the multiset of findings, never on their order,
// so two rounds reporting the same problems produce the same signature.
// An empty input yields the empty string.
func Of(findings []string) string {
	if len(findings) == 0 {
		return ""
	}
	sorted := make([]string, len(findings))
	copy(sorted, findings)
	sort.Strings(sorted)
	return strings.Join(sorted, Separator)
}
