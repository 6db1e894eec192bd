package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiky-bot-backend/internal/messaging"
)

func TestDispatcherKeepsPerActorOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64][]int{}
	d := newDispatcher(context.Background(), 4, 8, func(_ context.Context, ev messaging.Event) {
		mu.Lock()
		seen[ev.ActorID] = append(seen[ev.ActorID], ev.MessageID)
		mu.Unlock()
	})

	for seq := 0; seq < 50; seq++ {
		for actor := int64(1); actor <= 6; actor++ {
			d.dispatch(messaging.Event{ActorID: actor, MessageID: seq})
		}
	}
	d.stop()

	for actor := int64(1); actor <= 6; actor++ {
		require.Len(t, seen[actor], 50)
		for i, got := range seen[actor] {
			require.Equal(t, i, got, "actor %d events out of order", actor)
		}
	}
}

func TestDispatcherActorsDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	handled := make(chan int64, 2)
	d := newDispatcher(context.Background(), 16, 8, func(_ context.Context, ev messaging.Event) {
		if ev.ActorID == 1 {
			<-release
		}
		handled <- ev.ActorID
	})

	// Actor 1's handler hangs; actor 2 lands on a different queue and
	// must still be served.
	d.dispatch(messaging.Event{ActorID: 1})
	d.dispatch(messaging.Event{ActorID: 2})

	select {
	case actor := <-handled:
		assert.Equal(t, int64(2), actor)
	case <-time.After(2 * time.Second):
		t.Fatal("an unrelated actor was stalled behind a slow handler")
	}

	close(release)
	d.stop()
}

func TestDispatcherStopWaitsForInFlight(t *testing.T) {
	var mu sync.Mutex
	var count int
	d := newDispatcher(context.Background(), 2, 4, func(_ context.Context, _ messaging.Event) {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		count++
		mu.Unlock()
	})

	for i := 0; i < 6; i++ {
		d.dispatch(messaging.Event{ActorID: int64(i)})
	}
	d.stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 6, count, "stop drains everything already queued")
}
