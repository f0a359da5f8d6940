package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpContracts "github.com/sawpanic/rankforum/internal/http"
)

func dialSubscribers(t *testing.T, hub *EventHub, n int) []*websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(hub.Serve))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conns := make([]*websocket.Conn, 0, n)
	for i := 0; i < n; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		conns = append(conns, conn)
	}

	require.Eventually(t, func() bool {
		return hub.Subscribers() == n
	}, time.Second, 5*time.Millisecond)
	return conns
}

func TestBroadcastSurvivesConcurrentRemovals(t *testing.T) {
	hub := NewEventHub(nil)
	dialSubscribers(t, hub, 32)

	hub.mu.RLock()
	clients := make([]*eventClient, 0, len(hub.clients))
	for c := range hub.clients {
		clients = append(clients, c)
	}
	hub.mu.RUnlock()

	// Broadcasts race against subscriber teardown. A send must never land
	// on a channel that a removal already closed.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				hub.Broadcast(httpContracts.Event{Type: "vote_applied", Target: "t"})
			}
		}()
	}
	for _, c := range clients {
		wg.Add(1)
		go func(c *eventClient) {
			defer wg.Done()
			hub.remove(c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Subscribers())
}

func TestRemoveIsIdempotent(t *testing.T) {
	var calls atomic.Int64
	hub := NewEventHub(func(delta int) { calls.Add(int64(delta)) })
	dialSubscribers(t, hub, 1)

	hub.mu.RLock()
	var client *eventClient
	for c := range hub.clients {
		client = c
	}
	hub.mu.RUnlock()

	hub.remove(client)
	hub.remove(client)

	assert.Equal(t, 0, hub.Subscribers())
	assert.Equal(t, int64(0), calls.Load())
}
