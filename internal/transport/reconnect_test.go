package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsToCap(t *testing.T) {
	b := defaultBackoff()

	assert.Equal(t, 2*time.Second, b.Delay(0))
	assert.Equal(t, 4*time.Second, b.Delay(1))
	assert.Equal(t, 8*time.Second, b.Delay(2))
	assert.Equal(t, 16*time.Second, b.Delay(3))
	// Capped from here on.
	assert.Equal(t, 30*time.Second, b.Delay(4))
	assert.Equal(t, 30*time.Second, b.Delay(10))
}

func TestBackoffExhaustedHonorsBudget(t *testing.T) {
	b := defaultBackoff()

	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		assert.False(t, b.Exhausted(attempt), "attempt %d", attempt)
	}
	assert.True(t, b.Exhausted(b.MaxAttempts))
}

func TestBackoffWaitCancels(t *testing.T) {
	b := &Backoff{Initial: time.Hour, Cap: time.Hour, Factor: 2, MaxAttempts: 1}

	cancel := make(chan struct{})
	close(cancel)

	start := time.Now()
	assert.False(t, b.Wait(0, cancel))
	assert.Less(t, time.Since(start), time.Second, "a closed cancel channel must not sit out the delay")
}

func TestBackoffWaitElapses(t *testing.T) {
	b := &Backoff{Initial: time.Millisecond, Cap: time.Millisecond, Factor: 1, MaxAttempts: 1}
	assert.True(t, b.Wait(0, make(chan struct{})))
}
