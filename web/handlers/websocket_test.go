package handlers_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenepilot/scenepilot/web/handlers"
)

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := handlers.NewWebSocketHub("127.0.0.1", 6464, nil)
	go hub.Run()
	defer hub.Stop()

	client := &handlers.MockClient{SendChan: make(chan []byte, 4)}
	hub.Register(client)

	hub.Broadcast(map[string]string{"type": "job_complete", "job_id": "job_abc123"})

	select {
	case data := <-client.SendChan:
		var msg map[string]string
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "job_complete", msg["type"])
		assert.Equal(t, "job_abc123", msg["job_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := handlers.NewWebSocketHub("127.0.0.1", 6464, nil)
	go hub.Run()
	defer hub.Stop()

	client := &handlers.MockClient{SendChan: make(chan []byte, 1)}
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.SendChan:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := handlers.NewWebSocketHub("127.0.0.1", 6464, nil)
	go hub.Run()
	defer hub.Stop()

	// A full send buffer models a client that stopped draining its queue:
	// the hub's non-blocking send fails and the client is dropped.
	slow := &handlers.MockClient{SendChan: make(chan []byte, 1)}
	slow.SendChan <- []byte("backlog")
	fast := &handlers.MockClient{SendChan: make(chan []byte, 4)}
	hub.Register(slow)
	hub.Register(fast)

	hub.Broadcast(map[string]string{"type": "transcript"})
	hub.Broadcast(map[string]string{"type": "transcript"})

	// Broadcasts are handled one at a time, so once the fast client has
	// received both, the first delivery pass has finished and the slow
	// client has been disconnected.
	for i := 0; i < 2; i++ {
		select {
		case <-fast.SendChan:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for broadcast delivery")
		}
	}

	backlog, ok := <-slow.SendChan
	require.True(t, ok)
	assert.Equal(t, "backlog", string(backlog))
	_, ok = <-slow.SendChan
	assert.False(t, ok, "slow client's channel should be closed")
}
