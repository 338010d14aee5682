package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// delay returns the wait before retry number attempt (0-indexed): BaseDelay
// doubled per attempt, capped at MaxDelay, then spread by ±Jitter.
func (c Config) delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt))
	if c.MaxDelay > 0 {
		d = math.Min(d, float64(c.MaxDelay))
	}
	if c.Jitter > 0 {
		d += d * c.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}
