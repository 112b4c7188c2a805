package session

import (
	"github.com/nmamano/wallgame-sub000/internal/board"
	"github.com/nmamano/wallgame-sub000/internal/engine"
)

// Conn is one live connection attached to a session. Send must enqueue
// without blocking the session actor and must preserve per-connection
// ordering; a connection that cannot be reached reports false and is
// dropped from the attach set, never the whole session.
type Conn interface {
	Send(event Event) bool
	Close()
}

// Event is the closed union of everything a session pushes to connections.
// The transport layer type-switches over it; adding a variant breaks every
// switch at compile time, which is the point.
type Event interface {
	isEvent()
}

// StateEvent carries a full state snapshot after any accepted mutation.
type StateEvent struct {
	Snapshot *Snapshot
}

// MatchStatusEvent carries seat/rating data derived from a state change. It
// is always sent after the StateEvent it belongs to.
type MatchStatusEvent struct {
	Status *MatchStatus
}

// OfferEvent tells a player the opponent made a meta-action offer.
type OfferEvent struct {
	Kind OfferKind
	From int
}

// OfferResolvedEvent tells both players an offer was accepted or rejected.
type OfferResolvedEvent struct {
	Kind     OfferKind
	By       int
	Accepted bool
}

// RematchStartedEvent is delivered per connection: each seat receives its
// own credentials for the successor session, spectators receive none.
type RematchStartedEvent struct {
	NewGameID string
	SeatToken string
}

// BotRequestEvent asks an attached bot for a decision. Exactly one may be
// outstanding per bot connection.
type BotRequestEvent struct {
	RequestID string
	Kind      RequestKind
	Snapshot  *Snapshot
}

func (StateEvent) isEvent()          {}
func (MatchStatusEvent) isEvent()    {}
func (OfferEvent) isEvent()          {}
func (OfferResolvedEvent) isEvent()  {}
func (RematchStartedEvent) isEvent() {}
func (BotRequestEvent) isEvent()     {}

// RequestKind is what a bot is being asked to decide.
type RequestKind string

const (
	RequestMove     RequestKind = "move"
	RequestDraw     RequestKind = "draw"
	RequestTakeback RequestKind = "takeback"
	RequestRematch  RequestKind = "rematch"
)

// SeatInfo is the public view of one seat.
type SeatInfo struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	IsBot    bool    `json:"is_bot,omitempty"`
	Attached bool    `json:"attached"`
}

// Snapshot is the serializable view of the game state broadcast to every
// attached connection.
type Snapshot struct {
	GameID    string                `json:"game_id"`
	Phase     string                `json:"phase"`
	Config    engine.Config         `json:"config"`
	Turn      int                   `json:"turn"`
	MoveCount int                   `json:"move_count"`
	Pawns     [2]engine.PawnCells   `json:"pawns"`
	Walls     []board.PlacedWall    `json:"walls"`
	ClocksMs  [2]int64              `json:"clocks_ms"`
	History   []engine.HistoryEntry `json:"history"`
	Result    *engine.Result        `json:"result,omitempty"`
}

// MatchStatus is the seat-level data that may lag the state by a downstream
// computation (rating updates).
type MatchStatus struct {
	GameID string      `json:"game_id"`
	Phase  string      `json:"phase"`
	Seats  [2]SeatInfo `json:"seats"`
}

// BotCapabilities is what a bot advertises during attach; incompatible
// sessions reject the handshake.
type BotCapabilities struct {
	Variants       []string `json:"variants"`
	MaxBoardWidth  int      `json:"max_board_width"`
	MaxBoardHeight int      `json:"max_board_height"`
}

// BotResponse is a bot's answer to an outstanding request: a move in
// notation for move requests, or an accept/reject verdict for meta-actions.
type BotResponse struct {
	Move   string `json:"move,omitempty"`
	Accept bool   `json:"accept,omitempty"`
}
