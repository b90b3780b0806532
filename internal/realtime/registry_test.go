package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTakeover(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	first := setupClient(t, hub, 1)
	second := newTestClient(hub, 1)
	hub.dispatch(second, &Event{Event: EventSetup})

	assert.True(t, first.isClosed(), "prior connection must be force-closed")
	assert.False(t, second.isClosed())

	got, ok := hub.registry.Resolve(1)
	require.True(t, ok)
	assert.Equal(t, second.id, got.id)
	assert.Equal(t, 1, hub.registry.Len())
}

func TestTakeoverStaleDisconnectKeepsNewConnection(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	old := setupClient(t, hub, 1)
	replacement := setupClient(t, hub, 1)

	// The replaced connection's disconnect arrives late
	hub.disconnect(old)

	got, ok := hub.registry.Resolve(1)
	require.True(t, ok, "stale disconnect must not remove the new mapping")
	assert.Equal(t, replacement.id, got.id)

	// Offline transition never ran: the stale remove lost the conn-id check
	assert.Zero(t, s.offlineCalls[1])
}

func TestConcurrentSetupSingleWinner(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	const n = 25
	clients := make([]*Client, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		clients[i] = newTestClient(hub, 7)
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.dispatch(c, &Event{Event: EventSetup})
		}(clients[i])
	}
	wg.Wait()

	require.Equal(t, 1, hub.registry.Len())
	winner, ok := hub.registry.Resolve(7)
	require.True(t, ok)

	closed := 0
	for _, c := range clients {
		if c.isClosed() {
			closed++
		} else {
			assert.Equal(t, winner.id, c.id, "every unclosed client must be the winner")
		}
	}
	assert.Equal(t, n-1, closed, "all but one connection must be disconnected")
}

func TestRemoveRequiresMatchingConnection(t *testing.T) {
	reg := NewRegistry()
	hub, _ := newTestHub(t, newMemStore())

	c := newTestClient(hub, 3)
	reg.Register(3, c)

	assert.False(t, reg.Remove(3, "some-other-connection"))
	_, ok := reg.Resolve(3)
	assert.True(t, ok)

	assert.True(t, reg.Remove(3, c.id))
	_, ok = reg.Resolve(3)
	assert.False(t, ok)

	// Second remove is a race loss, not an error
	assert.False(t, reg.Remove(3, c.id))
}

func TestDisconnectMarksOfflineExactlyOnce(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	c := setupClient(t, hub, 4)
	assert.Equal(t, 1, s.onlineCalls[4])

	hub.disconnect(c)
	hub.disconnect(c)

	assert.Equal(t, 1, s.offlineCalls[4])
	assert.Zero(t, hub.registry.Len())
}

func TestSetupBroadcastsPresence(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	watcher := setupClient(t, hub, 1)
	setupClient(t, hub, 2)

	evs := eventsOfType(drainEvents(t, watcher), EventUserOnline)
	require.Len(t, evs, 1)

	var data PresenceData
	require.NoError(t, evs[0].Unmarshal(&data))
	assert.Equal(t, uint(2), data.UserID)
}

func TestSetupRejectsMismatchedUserID(t *testing.T) {
	s := newMemStore()
	hub, _ := newTestHub(t, s)

	c := newTestClient(hub, 5)
	hub.dispatch(c, &Event{Event: EventSetup, Data: mustMarshal(t, SetupData{UserID: 99})})

	assert.Zero(t, hub.registry.Len(), "mismatched setup must be ignored")
	assert.Empty(t, eventsOfType(drainEvents(t, c), EventConnected))
}
