package websocket

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAckCache_SurvivesReconnect(t *testing.T) {
	logger := discardLogger()
	server := New(logger, nil, nil)

	// Given: a connection identified as alice whose request was answered
	first := newClient(logger, nil)
	first.acks = server.acksFor("alice")
	first.rememberAck("req-1", &Message{Action: ActionAck, RequestID: "req-1"})

	// When: alice reconnects on a fresh socket and replays the request
	second := newClient(logger, nil)
	second.acks = server.acksFor("alice")

	// Then: the cached answer is re-sent instead of the action re-running
	require.True(t, second.replayAck("req-1"))

	var replayed Message
	require.NoError(t, json.Unmarshal(<-second.send, &replayed))
	assert.Equal(t, ActionAck, replayed.Action)
	assert.Equal(t, "req-1", replayed.RequestID)
}

func TestAckCache_IsPerPlayer(t *testing.T) {
	logger := discardLogger()
	server := New(logger, nil, nil)

	alice := newClient(logger, nil)
	alice.acks = server.acksFor("alice")
	alice.rememberAck("req-1", &Message{Action: ActionAck, RequestID: "req-1"})

	bob := newClient(logger, nil)
	bob.acks = server.acksFor("bob")

	assert.False(t, bob.replayAck("req-1"))
}

func TestAckCache_IgnoresBlankKeys(t *testing.T) {
	cache := newAckCache()

	cache.remember("", &Message{Action: ActionAck})

	_, ok := cache.lookup("")
	assert.False(t, ok)
}

func TestAckCache_EvictsOldestBeyondLimit(t *testing.T) {
	cache := newAckCache()

	for i := 0; i <= seenRequestLimit; i++ {
		cache.remember(fmt.Sprintf("req-%d", i), &Message{Action: ActionAck})
	}

	_, ok := cache.lookup("req-0")
	assert.False(t, ok)
}
