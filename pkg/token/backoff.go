package token

import (
	"sync"
	"time"

	"github.com/netpie/microgear-go/pkg/models"
)

// Backoff implements the capped doubling delay between handshake retries.
// The delay starts at the minimum, doubles on every consecutive pending
// outcome and snaps back to the minimum as soon as the handshake advances.
type Backoff struct {
	mu   sync.Mutex
	min  time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff creates a backoff schedule bounded by min and max.
// Non-positive bounds fall back to the protocol defaults.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = models.MinBackoff
	}
	if max < min {
		max = models.MaxBackoff
	}
	return &Backoff{min: min, max: max, next: min}
}

// Next returns the delay to wait before the upcoming retry and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.next
	if b.next < b.max {
		b.next *= 2
		if b.next > b.max {
			b.next = b.max
		}
	}
	return d
}

// Reset snaps the schedule back to the minimum delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = b.min
}
