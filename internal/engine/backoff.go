package engine

import "time"

// Backoff produces a bounded exponential wait: Base, 2*Base, 4*Base, ...
// up to Max, where it holds steady until Reset.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	current time.Duration
}

func NewBackoff(base time.Duration, max time.Duration) *Backoff {
	return &Backoff{Base: base, Max: max}
}

func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Base
	} else {
		b.current *= 2
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	return b.current
}

func (b *Backoff) Reset() {
	b.current = 0
}
