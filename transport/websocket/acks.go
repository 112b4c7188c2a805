package websocket

import (
	"encoding/json"
	"sync"
)

// seenRequestLimit bounds the idempotency cache per player.
const seenRequestLimit = 256

// ackCache remembers the response sent for each idempotency key. The server
// keeps one cache per player, shared across that player's connections, so a
// request replayed after a reconnect is re-acknowledged instead of
// re-applied.
type ackCache struct {
	mu    sync.Mutex
	seen  map[string][]byte
	order []string
}

func newAckCache() *ackCache {
	return &ackCache{seen: make(map[string][]byte)}
}

func (that *ackCache) remember(requestID string, response *Message) {
	if requestID == "" {
		return
	}

	raw, err := json.Marshal(response)
	if err != nil {
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.seen[requestID]; !ok {
		if len(that.order) >= seenRequestLimit {
			oldest := that.order[0]
			that.order = that.order[1:]
			delete(that.seen, oldest)
		}
		that.order = append(that.order, requestID)
	}

	that.seen[requestID] = raw
}

func (that *ackCache) lookup(requestID string) ([]byte, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.seen[requestID]
	return raw, ok
}
