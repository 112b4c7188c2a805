package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/engine"
	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/repository"
	"github.com/nmamano/wallgame-sub000/internal/session"
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type handlerFunc func(ctx context.Context, client *Client, msg *Message) (any, error)

// Server terminates the websocket endpoints: /ws for human players and
// spectators, /ws/bot for the bot attachment sub-protocol.
type Server struct {
	logger   *slog.Logger
	registry *session.Registry
	players  playerRepo

	upgrader websocket.Upgrader

	handlers    map[string]handlerFunc
	botHandlers map[string]handlerFunc

	ackMu      sync.Mutex
	playerAcks map[string]*ackCache
}

func New(logger *slog.Logger, registry *session.Registry, players playerRepo) *Server {
	server := &Server{
		logger:   logger,
		registry: registry,
		players:  players,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		handlers:    make(map[string]handlerFunc),
		botHandlers: make(map[string]handlerFunc),
		playerAcks:  make(map[string]*ackCache),
	}

	server.handlers[ActionConnect] = server.handleConnect
	server.handlers[ActionCreateGame] = server.handleCreateGame
	server.handlers[ActionJoinGame] = server.handleJoinGame
	server.handlers[ActionSpectateGame] = server.handleSpectateGame
	server.handlers[ActionMove] = server.handleMove
	server.handlers[ActionResign] = server.handleResign
	server.handlers[ActionOffer] = server.handleOffer
	server.handlers[ActionAcceptOffer] = server.handleAcceptOffer
	server.handlers[ActionRejectOffer] = server.handleRejectOffer
	server.handlers[ActionGiveTime] = server.handleGiveTime

	server.botHandlers[ActionBotAttach] = server.handleBotAttach
	server.botHandlers[ActionBotResponse] = server.handleBotResponse

	return server
}

// acksFor returns the idempotency cache for a player, creating it on first
// use. Connections identify themselves via connect, so the cache outlives
// any single socket.
func (that *Server) acksFor(playerID string) *ackCache {
	that.ackMu.Lock()
	defer that.ackMu.Unlock()

	cache, ok := that.playerAcks[playerID]
	if !ok {
		cache = newAckCache()
		that.playerAcks[playerID] = cache
	}
	return cache
}

// Start - starts the WebSocket server and blocks until the context ends.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r, that.handlers)
	})
	mux.HandleFunc("/ws/bot", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r, that.botHandlers)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
		IdleTimeout:  0,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request, handlers map[string]handlerFunc) {
	log := that.logger.With("method", "serveConnection", "remote", r.RemoteAddr)

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newClient(that.logger, conn)
	go client.writePump()

	log.Info("WebSocket connection established")

	that.readLoop(ctx, client, handlers)

	if client.sess != nil {
		client.sess.Detach(client)
	}
	client.Close()
}

// readLoop processes inbound messages until the connection drops. Rule and
// protocol violations are answered with nacks; only a broken socket ends
// the loop.
func (that *Server) readLoop(ctx context.Context, client *Client, handlers map[string]handlerFunc) {
	log := that.logger.With("method", "readLoop")

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			client.enqueue(errorMessage("malformed message"))
			continue
		}

		// A replayed idempotency key gets its original answer again.
		if message.RequestID != "" && client.replayAck(message.RequestID) {
			continue
		}

		handler, ok := handlers[message.Action]
		if !ok {
			client.enqueue(errorMessage("unknown action: " + message.Action))
			continue
		}

		result, err := handler(ctx, client, &message)
		response := responseFor(&message, result, err)
		client.enqueue(response)
		client.rememberAck(message.RequestID, response)
	}
}

// responseFor builds the single ack or typed nack every action-request is
// owed.
func responseFor(message *Message, result any, err error) *Message {
	if err != nil {
		code, retryable := errorCode(err)
		payload, _ := json.Marshal(NackPayload{
			RequestID: message.RequestID,
			Code:      code,
			Message:   err.Error(),
			Retryable: retryable,
		})
		return &Message{Action: ActionNack, RequestID: message.RequestID, Payload: payload}
	}

	ack := AckPayload{RequestID: message.RequestID}
	if result != nil {
		if raw, marshalErr := json.Marshal(result); marshalErr == nil {
			ack.Result = raw
		}
	}

	payload, _ := json.Marshal(ack)
	return &Message{Action: ActionAck, RequestID: message.RequestID, Payload: payload}
}

func errorMessage(text string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Message: text})
	return &Message{Action: ActionError, Payload: payload}
}

// errorCode maps the error taxonomy onto wire codes. Nothing here is fatal
// to the process; only unknown internal errors are flagged retryable.
func errorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, apperror.ErrOutOfTurn):
		return "out-of-turn", false
	case errors.Is(err, apperror.ErrBudgetExceeded):
		return "budget-exceeded", false
	case errors.Is(err, apperror.ErrIllegalTarget):
		return "illegal-target", false
	case errors.Is(err, apperror.ErrWouldIsolatePlayer):
		return "would-isolate-player", false
	case errors.Is(err, apperror.ErrGameAlreadyOver):
		return "game-over", false
	case errors.Is(err, apperror.ErrGameNotStarted):
		return "not-started", false
	case errors.Is(err, apperror.ErrSessionNotFound):
		return "session-not-found", false
	case errors.Is(err, apperror.ErrSeatTaken):
		return "seat-taken", false
	case errors.Is(err, apperror.ErrBadSeatToken):
		return "bad-token", false
	case errors.Is(err, apperror.ErrNoPendingOffer):
		return "no-pending-offer", false
	case errors.Is(err, apperror.ErrUnsupportedGame):
		return "unsupported-game", false
	case errors.Is(err, apperror.ErrStaleBotResponse):
		return "stale-response", false
	case errors.Is(err, apperror.ErrNotAPlayer):
		return "not-a-player", false
	case errors.Is(err, apperror.ErrNoHistoryToRevert):
		return "no-history", false
	case errors.Is(err, engine.ErrInvalidConfig):
		return "invalid-config", false
	case errors.Is(err, repository.ErrPlayerNotFound):
		return "player-not-found", false
	}
	return "internal", true
}
