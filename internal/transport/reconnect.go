package transport

import "time"

// Backoff paces reconnect attempts. The delay before each attempt grows
// geometrically from Initial until it reaches Cap; after MaxAttempts failed
// attempts the client gives up and reports the connection as permanently
// lost.
type Backoff struct {
	Initial     time.Duration
	Cap         time.Duration
	Factor      float64
	MaxAttempts int
}

func defaultBackoff() *Backoff {
	return &Backoff{
		Initial:     2 * time.Second,
		Cap:         30 * time.Second,
		Factor:      2,
		MaxAttempts: 5,
	}
}

// Delay returns how long to wait before the given attempt, zero-based.
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// Exhausted reports whether the attempt budget is used up
func (b *Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}

// Wait blocks for the attempt's delay. It returns false when cancel closes
// first, so a client shutting down never sits out a full backoff interval.
func (b *Backoff) Wait(attempt int, cancel <-chan struct{}) bool {
	select {
	case <-time.After(b.Delay(attempt)):
		return true
	case <-cancel:
		return false
	}
}
