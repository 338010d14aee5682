package cache

import (
	"context"
	"log/slog"
	"time"
)

// EventKind identifies what happened during a cache operation.
type EventKind int

const (
	// EventHit: a tier returned a non-expired item.
	EventHit EventKind = iota
	// EventMiss: a tier did not know the key.
	EventMiss
	// EventExpired: a tier returned an item that had already expired.
	EventExpired
	// EventTierError: a tier failed to answer a lookup.
	EventTierError
	// EventBackfill: a missed tier was repopulated.
	EventBackfill
	// EventBackfillError: repopulating a missed tier failed.
	EventBackfillError
	// EventFallback: the producer returned a value.
	EventFallback
	// EventFallbackError: the producer failed.
	EventFallbackError
	// EventSet: an unconditional Set reached a tier.
	EventSet
	// EventSetError: an unconditional Set failed on a tier.
	EventSetError
)

var eventNames = [...]string{
	EventHit:           "hit",
	EventMiss:          "miss",
	EventExpired:       "expired",
	EventTierError:     "tier_error",
	EventBackfill:      "backfill",
	EventBackfillError: "backfill_error",
	EventFallback:      "fallback",
	EventFallbackError: "fallback_error",
	EventSet:           "set",
	EventSetError:      "set_error",
}

// String returns the snake_case name of the kind.
func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event describes one step of a Get or Set. Tier is -1 and TierName is empty
// for events that do not concern a tier (fallback events).
type Event struct {
	Kind     EventKind
	Key      string
	Tier     int
	TierName string
	Err      error
	Duration time.Duration
}

// Observer receives events emitted by [Layered]. Observe is called
// synchronously from the goroutine performing the operation and must not
// block for long.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nopObserver{}
	case 1:
		return m[0]
	}
	return m
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// LogObserver returns an Observer that writes every event to logger at level.
// Events carrying an error are written at Warn regardless of level. A nil
// logger falls back to slog.Default().
func LogObserver(logger *slog.Logger, level slog.Level) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		attrs := []slog.Attr{
			slog.String("event", ev.Kind.String()),
			slog.String("key", ev.Key),
			slog.Duration("duration", ev.Duration),
		}
		if ev.Tier >= 0 {
			attrs = append(attrs, slog.Int("tier", ev.Tier), slog.String("tier_name", ev.TierName))
		}
		lvl := level
		if ev.Err != nil {
			attrs = append(attrs, slog.Any("error", ev.Err))
			lvl = slog.LevelWarn
		}
		l.LogAttrs(ctx, lvl, "layercache", attrs...)
	})
}
