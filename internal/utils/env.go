package utils

import (
	"maps"
	"slices"
)

// MergeEnv merges multiple variable maps with later maps having higher precedence
// Returns a sorted KEY=VALUE list suitable for a process environment
func MergeEnv(pp ...map[string]string) []string {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, k+"="+m[k])
	}

	return results
}
