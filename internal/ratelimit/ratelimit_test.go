package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewWithClock(5, time.Minute, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(42), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(42), "6th request within the window must be rejected")
}

func TestWindowSlides(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewWithClock(5, time.Minute, func() time.Time { return now })

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(42))
	}
	require.False(t, l.Allow(42))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(42), "request after the window elapses must be admitted")
}

func TestRejectionNotRecorded(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewWithClock(1, time.Minute, func() time.Time { return now })

	require.True(t, l.Allow(7))
	for i := 0; i < 10; i++ {
		require.False(t, l.Allow(7))
	}

	// Only the single admitted request occupies the window; once it ages
	// out the actor is admitted again.
	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow(7))
}

func TestActorsIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewWithClock(1, time.Minute, func() time.Time { return now })

	require.True(t, l.Allow(1))
	require.False(t, l.Allow(1))
	assert.True(t, l.Allow(2), "a saturated actor must not affect others")
}

func TestConcurrentSameActor(t *testing.T) {
	l := New(5, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(99) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, admitted, "exactly the ceiling must be admitted under contention")
}
