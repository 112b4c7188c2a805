package engine

import (
	"time"

	"github.com/nmamano/wallgame-sub000/internal/board"
)

const (
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Result reasons.
const (
	ReasonCapture     = "capture"
	ReasonGoal        = "goal"
	ReasonSurvival    = "survival"
	ReasonTimeout     = "timeout"
	ReasonResignation = "resignation"
	ReasonAgreement   = "draw-agreement"
	ReasonOneMoveRule = "one-move-rule"
)

// DrawWinner marks a drawn result.
const DrawWinner = 0

// Result is the terminal outcome of a game.
type Result struct {
	Winner int    `json:"winner"` // 1, 2, or DrawWinner
	Reason string `json:"reason"`
}

// HistoryEntry is one applied move in stable notation.
type HistoryEntry struct {
	Player    int       `json:"player"`
	Notation  string    `json:"notation"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the full game position. It is treated as immutable: the engine
// returns a fresh copy on every accepted mutation so callers can hand out
// snapshots without locking.
type State struct {
	Config Config `json:"config"`

	Turn      int          `json:"turn"` // 1 or 2
	MoveCount int          `json:"move_count"`
	Pawns     [2]PawnCells `json:"pawns"` // index 0 is player 1
	Board     *board.Board `json:"-"`

	Clocks     [2]time.Duration `json:"clocks"`
	StartedAt  time.Time        `json:"started_at"`
	LastMoveAt time.Time        `json:"last_move_at"`

	History []HistoryEntry `json:"history"`
	Status  string         `json:"status"`
	Result  Result         `json:"result"`
}

// NewState builds the initial position for a configuration.
func NewState(config Config, startedAt time.Time) *State {
	b := board.New(config.Columns, config.Rows)
	if config.Start != nil {
		for _, placed := range config.Start.Walls {
			// Validated by Config.Validate; duplicate slots are simply kept once.
			_ = b.PlaceWall(placed.Wall, placed.Player)
		}
	}

	initial := config.Time.InitialSec
	clocks := [2]time.Duration{}
	if !config.Time.IsUntimed() {
		clocks[0] = time.Duration(initial) * time.Second
		clocks[1] = time.Duration(initial) * time.Second
	}

	return &State{
		Config:     config,
		Turn:       1,
		Pawns:      config.StartingPawns(),
		Board:      b,
		Clocks:     clocks,
		StartedAt:  startedAt,
		LastMoveAt: startedAt,
		Status:     StatusPlaying,
	}
}

// Clone returns a deep copy of the state.
func (that *State) Clone() *State {
	clone := *that
	clone.Board = that.Board.Clone()
	clone.History = make([]HistoryEntry, len(that.History))
	copy(clone.History, that.History)
	return &clone
}

// IsPlaying reports whether the game is still live.
func (that *State) IsPlaying() bool {
	return that.Status == StatusPlaying
}

// IsFinished reports whether a terminal event has been applied.
func (that *State) IsFinished() bool {
	return that.Status == StatusFinished
}

// Opponent returns the other player's number.
func Opponent(player int) int {
	if player == 1 {
		return 2
	}
	return 1
}

// PawnCell returns the position of one player's pawn.
func (that *State) PawnCell(player int, pawn board.Pawn) board.Cell {
	cells := that.Pawns[player-1]
	if pawn == board.Cat {
		return cells.Cat
	}
	return cells.Mouse
}

// GoalCell returns a player's active goal: the opposing mouse's cell. In
// classic the mouse never moves, so this is the fixed opposite corner.
func (that *State) GoalCell(player int) board.Cell {
	return that.Pawns[Opponent(player)-1].Mouse
}

// HasActiveGoal reports whether the player's cat is chasing a goal at all.
// In survival only player 1 hunts; player 2 just has to outlast the budget.
func (that *State) HasActiveGoal(player int) bool {
	if that.Config.Variant == VariantSurvival {
		return player == 1
	}
	return true
}

// Remaining returns a player's clock after counting down the elapsed time
// since the last applied move, never drifting below zero. For the player
// not to move, the stored clock is returned as-is.
func (that *State) Remaining(player int, now time.Time) time.Duration {
	stored := that.Clocks[player-1]
	if that.Config.Time.IsUntimed() || !that.IsPlaying() || player != that.Turn {
		return stored
	}

	remaining := stored - now.Sub(that.LastMoveAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CompletedTurns counts full turns (both players have moved).
func (that *State) CompletedTurns() int {
	return that.MoveCount / 2
}
