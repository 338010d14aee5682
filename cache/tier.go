package cache

import (
	"context"
	"strconv"
)

// Tier is a single storage backend consulted by [Layered]. Implementations
// must be safe for concurrent use when the Layered cache is shared.
type Tier[T any] interface {
	// Get returns the stored item for key. The boolean is false when the key
	// is unknown to the tier. A non-nil error means the tier could not answer;
	// the orchestrator treats it exactly like a miss.
	Get(ctx context.Context, key string) (Item[T], bool, error)

	// Add stores item under key, overwriting any existing entry.
	Add(ctx context.Context, key string, item Item[T]) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear removes every entry owned by the tier.
	Clear(ctx context.Context) error
}

// Named is implemented by tiers that want a stable label in events, logs and
// metrics.
type Named interface {
	Name() string
}

// NameOf returns the Name of t when it implements [Named], or "". Wrapping
// tiers use it so that an unnamed inner tier stays unnamed.
func NameOf(t any) string {
	if n, ok := t.(Named); ok {
		return n.Name()
	}
	return ""
}

// TierName returns the label of tier: its Name when it implements [Named],
// otherwise "tier<index>".
func TierName[T any](t Tier[T], index int) string {
	if name := NameOf(t); name != "" {
		return name
	}
	return "tier" + strconv.Itoa(index)
}
