package crawler

import (
	"cmp"
	"math"
	"slices"
)

// MergePosts drops repeated PIDs (first occurrence wins; posts without a PID
// are never duplicates), orders by floor with floorless posts last, and keeps
// the first limit posts when limit > 0. The result is never nil.
func MergePosts(posts []Post, limit int) []Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if p.PID != "" {
			if _, dup := seen[p.PID]; dup {
				continue
			}
			seen[p.PID] = struct{}{}
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b Post) int {
		return cmp.Compare(floorKey(a), floorKey(b))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func floorKey(p Post) int {
	if p.Floor == nil {
		return math.MaxInt
	}
	return *p.Floor
}
