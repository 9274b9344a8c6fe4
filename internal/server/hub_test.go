package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	cl := &client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- cl

	hub.BroadcastUpdate(MigrationUpdate{Migration: "acct:bucket->container", Event: "pass_started", Timestamp: 100})

	select {
	case msg := <-cl.send:
		var u MigrationUpdate
		require.NoError(t, json.Unmarshal(msg, &u))
		assert.Equal(t, "pass_started", u.Event)
		assert.Equal(t, int64(100), u.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	cl := &client{hub: hub, send: make(chan []byte)} // unbuffered: always full from the hub's perspective
	hub.register <- cl
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastUpdate(MigrationUpdate{Migration: "m", Event: "pass_complete"})

	// The hub's non-blocking send to a full channel schedules an
	// unregister rather than blocking the dispatch loop.
	time.Sleep(10 * time.Millisecond)
	hub.mu.RLock()
	_, stillRegistered := hub.clients[cl]
	hub.mu.RUnlock()
	assert.False(t, stillRegistered)
}
