package cache

import "time"

// BackfillMode selects how missed tiers are repopulated.
type BackfillMode int

const (
	// BackfillSequential writes missed tiers one after another before Get
	// returns.
	BackfillSequential BackfillMode = iota

	// BackfillConcurrent writes all missed tiers in parallel and waits for
	// them before Get returns.
	BackfillConcurrent

	// BackfillDetached writes missed tiers in a background goroutine; Get
	// returns without waiting. The writes use a context that is not cancelled
	// with the caller's.
	BackfillDetached
)

// String returns the lowercase name of the mode.
func (m BackfillMode) String() string {
	switch m {
	case BackfillSequential:
		return "sequential"
	case BackfillConcurrent:
		return "concurrent"
	case BackfillDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// ParseBackfillMode maps "sequential", "concurrent" or "detached" to a mode.
// The empty string yields BackfillSequential.
func ParseBackfillMode(s string) (BackfillMode, bool) {
	switch s {
	case "", "sequential":
		return BackfillSequential, true
	case "concurrent":
		return BackfillConcurrent, true
	case "detached":
		return BackfillDetached, true
	}
	return BackfillSequential, false
}

// options holds the configuration assembled via functional options.
type options struct {
	observer Observer
	backfill BackfillMode
	nowFunc  func() time.Time
}

// Option configures a Layered cache.
type Option func(*options)

// WithObserver installs obs to receive every cache event. Calling it more
// than once chains the observers in call order.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if o.observer == nil {
			o.observer = obs
			return
		}
		o.observer = Observers(o.observer, obs)
	}
}

// WithBackfill selects the back-fill mode. The default is BackfillSequential.
func WithBackfill(mode BackfillMode) Option {
	return func(o *options) {
		o.backfill = mode
	}
}

// WithClock replaces time.Now for expiry checks and event durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}
