package entity

import (
	"time"

	"github.com/nmamano/wallgame-sub000/internal/engine"
)

// GameRecord is the persisted artifact of a finished game: enough to
// deterministically replay it by re-running the rules engine from the
// initial configuration.
type GameRecord struct {
	ID         string                `json:"id"`
	Config     engine.Config         `json:"config"`
	Moves      []engine.HistoryEntry `json:"moves"`
	Result     engine.Result         `json:"result"`
	PlayerIDs  [2]string             `json:"player_ids"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// NewGameRecord snapshots a finished state into its archive form.
func NewGameRecord(id string, state *engine.State, playerIDs [2]string, finishedAt time.Time) *GameRecord {
	moves := make([]engine.HistoryEntry, len(state.History))
	copy(moves, state.History)

	return &GameRecord{
		ID:         id,
		Config:     state.Config,
		Moves:      moves,
		Result:     state.Result,
		PlayerIDs:  playerIDs,
		StartedAt:  state.StartedAt,
		FinishedAt: finishedAt,
	}
}
