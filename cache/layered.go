package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	// ErrNoTiers is returned by New when no tier is supplied.
	ErrNoTiers = errors.New("cache: at least one tier is required")

	// ErrNilTier is returned by New when one of the supplied tiers is nil.
	ErrNilTier = errors.New("cache: nil tier")
)

// Layered is a read-through cache over an ordered, immutable list of tiers.
// It holds no mutable state of its own and is safe for concurrent use as long
// as every tier is.
type Layered[T any] struct {
	tiers []Tier[T]
	names []string
	opts  options
}

// New creates a Layered cache that consults tiers in the given order. It
// fails with ErrNoTiers for an empty list and ErrNilTier when any tier is nil.
func New[T any](tiers []Tier[T], opts ...Option) (*Layered[T], error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}

	names := make([]string, len(tiers))
	for i, t := range tiers {
		if t == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilTier, i)
		}
		names[i] = TierName(t, i)
	}

	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.nowFunc == nil {
		o.nowFunc = time.Now
	}

	return &Layered[T]{
		tiers: slices.Clone(tiers),
		names: names,
		opts:  o,
	}, nil
}

// Tiers returns the number of configured tiers.
func (l *Layered[T]) Tiers() int {
	return len(l.tiers)
}

// Get returns the value for key. Tiers are queried in order and the first
// non-expired item wins; tiers that missed before it are back-filled with
// that item. When every tier misses, produce is called once, expiry is
// evaluated on the produced value and the resulting item is written to every
// tier. A nil expiry means the item never expires.
//
// Tier failures are treated as misses and never returned. An error from
// produce is returned unchanged and nothing is written.
func (l *Layered[T]) Get(ctx context.Context, key string, produce Producer[T], expiry Expiry[T]) (T, error) {
	item, missed, ok := l.cascade(ctx, key)
	if ok {
		l.backfill(ctx, key, item, missed)
		return item.Value, nil
	}

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	start := l.opts.nowFunc()
	v, err := produce(ctx)
	if err != nil {
		l.emit(ctx, Event{Kind: EventFallbackError, Key: key, Tier: -1, Err: err, Duration: l.since(start)})
		return zero, err
	}
	l.emit(ctx, Event{Kind: EventFallback, Key: key, Tier: -1, Duration: l.since(start)})

	expiresAt := NoExpiry
	if expiry != nil {
		expiresAt = expiry(v)
	}
	l.backfill(ctx, key, NewItem(v, expiresAt), missed)
	return v, nil
}

// Peek walks the tiers like Get and back-fills on a hit, but never calls a
// producer. The boolean is false when no tier holds a non-expired item.
func (l *Layered[T]) Peek(ctx context.Context, key string) (T, bool) {
	item, missed, ok := l.cascade(ctx, key)
	if !ok {
		var zero T
		return zero, false
	}
	l.backfill(ctx, key, item, missed)
	return item.Value, true
}

// Set writes value to every tier regardless of what they currently hold.
// Tier failures are reported to the observer only. In BackfillConcurrent
// mode the writes run in parallel; Set always waits for them.
func (l *Layered[T]) Set(ctx context.Context, key string, value T, expiresAt time.Time) {
	item := NewItem(value, expiresAt)
	if l.opts.backfill == BackfillConcurrent {
		var wg sync.WaitGroup
		for i := range l.tiers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.write(ctx, i, key, item, EventSet, EventSetError)
			}()
		}
		wg.Wait()
		return
	}
	for i := range l.tiers {
		l.write(ctx, i, key, item, EventSet, EventSetError)
	}
}

// Remove deletes key from every tier. Unlike Get and Set it reports tier
// failures, joined into a single error.
func (l *Layered[T]) Remove(ctx context.Context, key string) error {
	var errs []error
	for i, t := range l.tiers {
		if err := t.Remove(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: remove %q: %w", l.names[i], key, err))
		}
	}
	return errors.Join(errs...)
}

// Clear empties every tier, joining tier failures into a single error.
func (l *Layered[T]) Clear(ctx context.Context) error {
	var errs []error
	for i, t := range l.tiers {
		if err := t.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: clear: %w", l.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// cascade queries the tiers in order until one returns a non-expired item.
// missed holds the indexes of the tiers consulted before the hit (or all of
// them on a full miss), in visit order.
func (l *Layered[T]) cascade(ctx context.Context, key string) (item Item[T], missed []int, ok bool) {
	missed = make([]int, 0, len(l.tiers))
	for i, t := range l.tiers {
		start := l.opts.nowFunc()
		it, found, err := t.Get(ctx, key)
		ev := Event{Key: key, Tier: i, TierName: l.names[i], Duration: l.since(start)}

		switch {
		case err != nil:
			ev.Kind, ev.Err = EventTierError, err
		case !found:
			ev.Kind = EventMiss
		case it.ExpiredAt(l.opts.nowFunc()):
			ev.Kind = EventExpired
		default:
			ev.Kind = EventHit
			l.emit(ctx, ev)
			return it, missed, true
		}

		l.emit(ctx, ev)
		missed = append(missed, i)
	}
	return Item[T]{}, missed, false
}

// backfill writes item into the missed tiers according to the configured
// mode. Tiers are popped from missed, so the one nearest to the hit is
// repaired first.
func (l *Layered[T]) backfill(ctx context.Context, key string, item Item[T], missed []int) {
	if len(missed) == 0 {
		return
	}

	switch l.opts.backfill {
	case BackfillConcurrent:
		var wg sync.WaitGroup
		for _, i := range missed {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.write(ctx, i, key, item, EventBackfill, EventBackfillError)
			}()
		}
		wg.Wait()
	case BackfillDetached:
		ctx = context.WithoutCancel(ctx)
		go l.drain(ctx, key, item, missed)
	default:
		l.drain(ctx, key, item, missed)
	}
}

func (l *Layered[T]) drain(ctx context.Context, key string, item Item[T], missed []int) {
	for len(missed) > 0 {
		i := missed[len(missed)-1]
		missed = missed[:len(missed)-1]
		l.write(ctx, i, key, item, EventBackfill, EventBackfillError)
	}
}

func (l *Layered[T]) write(ctx context.Context, i int, key string, item Item[T], ok, failed EventKind) {
	start := l.opts.nowFunc()
	err := l.tiers[i].Add(ctx, key, item)
	ev := Event{Kind: ok, Key: key, Tier: i, TierName: l.names[i], Duration: l.since(start)}
	if err != nil {
		ev.Kind, ev.Err = failed, err
	}
	l.emit(ctx, ev)
}

func (l *Layered[T]) emit(ctx context.Context, ev Event) {
	l.opts.observer.Observe(ctx, ev)
}

func (l *Layered[T]) since(start time.Time) time.Duration {
	return l.opts.nowFunc().Sub(start)
}
