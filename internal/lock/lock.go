// Package lock serializes writers that touch the same products or the same
// document sequence.
package lock

import (
	"context"
	"sort"
)

// Locker acquires every key or none. The returned unlock releases them all
// and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// ProductKey names the lock guarding one product's quantity.
func ProductKey(id string) string {
	return "product:" + id
}

// normalize sorts and dedupes keys so two callers never wait on each other
// in opposite orders.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
