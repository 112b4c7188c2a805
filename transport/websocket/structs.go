package websocket

import (
	"encoding/json"

	"github.com/nmamano/wallgame-sub000/internal/engine"
	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/session"
)

// Message is the wire envelope in both directions. RequestID is the
// client's idempotency key: every message carrying one is answered with
// exactly one ack or nack.
type Message struct {
	Action    string          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Client → server actions.
const (
	ActionConnect        = "connect"
	ActionCreateGame     = "game:create"
	ActionJoinGame       = "game:join"
	ActionSpectateGame   = "game:spectate"
	ActionMove           = "game:move"
	ActionResign         = "game:resign"
	ActionOffer          = "game:offer"
	ActionAcceptOffer    = "game:offer-accept"
	ActionRejectOffer    = "game:offer-reject"
	ActionGiveTime       = "game:give-time"
	ActionBotAttach      = "attach"
	ActionBotResponse    = "response"
)

// Server → client actions.
const (
	ActionAck            = "actionAck"
	ActionNack           = "actionNack"
	ActionState          = "state"
	ActionMatchStatus    = "match-status"
	ActionOfferMade      = "offer"
	ActionOfferResolved  = "offer-resolved"
	ActionRematchStarted = "rematch-started"
	ActionBotRequest     = "request"
	ActionError          = "error"
)

// ConnectPayload identifies (or creates) the player behind a connection.
type ConnectPayload struct {
	PlayerID string `json:"player_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

type ConnectResponse struct {
	Player *entity.Player `json:"player"`
}

type CreateGamePayload struct {
	Config engine.Config `json:"config"`
	VsBot  bool          `json:"vs_bot,omitempty"`
}

type JoinGamePayload struct {
	GameID    string `json:"game_id"`
	SeatToken string `json:"seat_token"`
}

type SpectatePayload struct {
	GameID string `json:"game_id"`
}

type MovePayload struct {
	Move string `json:"move"`
}

type OfferPayload struct {
	Kind string `json:"kind"`
}

type GiveTimePayload struct {
	Seconds int `json:"seconds"`
}

// BotAttachPayload is the bot handshake: the single-use seat token plus the
// capabilities the engine behind the connection supports.
type BotAttachPayload struct {
	GameID        string                  `json:"game_id"`
	SeatToken     string                  `json:"seat_token"`
	SupportedGame session.BotCapabilities `json:"supported_game"`
	Client        BotClientInfo           `json:"client"`
}

type BotClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type BotResponsePayload struct {
	RequestID string              `json:"request_id"`
	Action    session.BotResponse `json:"action"`
}

// AckPayload acknowledges an action-request.
type AckPayload struct {
	RequestID string          `json:"request_id,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NackPayload is the typed negative acknowledgement.
type NackPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type OfferMadePayload struct {
	Kind string `json:"kind"`
	From int    `json:"from"`
}

type OfferResolvedPayload struct {
	Kind     string `json:"kind"`
	By       int    `json:"by"`
	Accepted bool   `json:"accepted"`
}

type RematchStartedPayload struct {
	NewGameID          string `json:"new_game_id"`
	NewSeatCredentials string `json:"new_seat_credentials,omitempty"`
}

type BotRequestPayload struct {
	RequestID string            `json:"request_id"`
	Kind      string            `json:"kind"`
	State     *session.Snapshot `json:"state"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
