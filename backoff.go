package flagpole

import (
	"context"
	"time"
)

// retryBackoff produces exponentially growing wait times with jitter, used
// when event batch delivery fails. reset must be called after a successful
// delivery so the next failure starts from the initial delay again.
type retryBackoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newRetryBackoff(initial, max time.Duration) *retryBackoff {
	return &retryBackoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// next returns the delay to wait before the upcoming attempt and advances
// the schedule. Jitter of up to one second is added so that many clients
// recovering at once do not retry in lockstep.
func (b *retryBackoff) next() time.Duration {
	delay := b.current + time.Duration(time.Now().UnixNano()%1e9)
	if b.current < b.max {
		b.current *= 2
	}
	return delay
}

func (b *retryBackoff) reset() {
	b.current = b.initial
}

// wait sleeps for the next delay, returning early if ctx is done.
func (b *retryBackoff) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.next()):
	}
}
