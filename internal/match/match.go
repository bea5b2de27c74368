// Package match decides whether a node's capability set satisfies a job's
// requirements. Matching is pure: no store access, no side effects.
package match

// Eligible reports whether every required capability token is present in the
// node's capability set. Requirements use AND semantics; an empty requirement
// list matches any node. Comparison is case-sensitive and exact; tokens
// unknown to either side are inert.
func Eligible(requirements, capabilities []string) bool {
	if len(requirements) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		have[c] = struct{}{}
	}
	for _, r := range requirements {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}
