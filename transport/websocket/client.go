package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024

	// sendQueueSize bounds the per-connection outbound queue. A connection
	// that cannot drain it is dropped from the attach set, not the session.
	sendQueueSize = 64
)

// Client is one live connection. Outbound messages go through a single
// buffered channel drained by writePump, which preserves per-connection
// ordering no matter how many goroutines fan out to it.
type Client struct {
	logger *slog.Logger
	conn   *websocket.Conn
	send   chan []byte

	player *entity.Player
	sess   *session.Session
	seat   int // 0 while spectating

	// acks starts as a connection-scoped cache and is rebound to the
	// server's per-player cache once the connection identifies itself.
	acks *ackCache

	closeOnce sync.Once
}

func newClient(logger *slog.Logger, conn *websocket.Conn) *Client {
	return &Client{
		logger: logger,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		acks:   newAckCache(),
	}
}

// Send implements session.Conn. It never blocks the session actor: a full
// queue reports the connection as unreachable instead.
func (that *Client) Send(event session.Event) bool {
	message, ok := messageFromEvent(event)
	if !ok {
		return true
	}
	return that.enqueue(message)
}

// Close implements session.Conn.
func (that *Client) Close() {
	that.closeOnce.Do(func() {
		close(that.send)
	})
}

func (that *Client) enqueue(message *Message) bool {
	raw, err := json.Marshal(message)
	if err != nil {
		that.logger.Error("failed to marshal message", "action", message.Action, "error", err)
		return true
	}

	defer func() {
		// Sending on a closed channel means the connection already went away.
		_ = recover()
	}()

	select {
	case that.send <- raw:
		return true
	default:
		return false
	}
}

// messageFromEvent translates a session event into its wire form. The type
// switch is exhaustive over the event union.
func messageFromEvent(event session.Event) (*Message, bool) {
	switch ev := event.(type) {
	case session.StateEvent:
		return payloadMessage(ActionState, ev.Snapshot)
	case session.MatchStatusEvent:
		return payloadMessage(ActionMatchStatus, ev.Status)
	case session.OfferEvent:
		return payloadMessage(ActionOfferMade, OfferMadePayload{Kind: string(ev.Kind), From: ev.From})
	case session.OfferResolvedEvent:
		return payloadMessage(ActionOfferResolved, OfferResolvedPayload{Kind: string(ev.Kind), By: ev.By, Accepted: ev.Accepted})
	case session.RematchStartedEvent:
		return payloadMessage(ActionRematchStarted, RematchStartedPayload{NewGameID: ev.NewGameID, NewSeatCredentials: ev.SeatToken})
	case session.BotRequestEvent:
		return payloadMessage(ActionBotRequest, BotRequestPayload{RequestID: ev.RequestID, Kind: string(ev.Kind), State: ev.Snapshot})
	}
	return nil, false
}

func payloadMessage(action string, payload any) (*Message, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return &Message{Action: action, Payload: raw}, true
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with pings. One writer goroutine per connection.
func (that *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := that.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// rememberAck caches the response for an idempotency key so a replayed
// request is re-acknowledged instead of re-applied.
func (that *Client) rememberAck(requestID string, response *Message) {
	that.acks.remember(requestID, response)
}

// replayAck re-sends the cached response for a repeated idempotency key,
// even when the original answer went out on an earlier connection.
func (that *Client) replayAck(requestID string) bool {
	raw, ok := that.acks.lookup(requestID)
	if !ok {
		return false
	}

	defer func() { _ = recover() }()
	select {
	case that.send <- raw:
	default:
	}
	return true
}
