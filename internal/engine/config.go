package engine

import (
	"errors"
	"fmt"

	"github.com/nmamano/wallgame-sub000/internal/board"
)

// Variant names a rule-set: goal condition and initial layout.
type Variant string

const (
	VariantStandard  Variant = "standard"
	VariantClassic   Variant = "classic"
	VariantFreestyle Variant = "freestyle"
	VariantSurvival  Variant = "survival"
)

var ErrInvalidConfig = errors.New("invalid game configuration")

// ParseVariant maps a wire string onto a known variant.
func ParseVariant(name string) (Variant, bool) {
	switch Variant(name) {
	case VariantStandard, VariantClassic, VariantFreestyle, VariantSurvival:
		return Variant(name), true
	}
	return "", false
}

// AllowsMouseMoves reports whether the variant lets the mouse pawn move.
// In classic the mouse is the fixed corner goal.
func (that Variant) AllowsMouseMoves() bool {
	return that != VariantClassic
}

// TimeControl is the per-player clock: initial budget plus a per-move
// increment. A zero initial time means the game is untimed (bot play).
type TimeControl struct {
	InitialSec   int `json:"initial_sec"`
	IncrementSec int `json:"increment_sec"`
}

// IsUntimed reports whether clocks are disabled.
func (that TimeControl) IsUntimed() bool {
	return that.InitialSec <= 0
}

// PawnCells holds one player's cat and mouse positions.
type PawnCells struct {
	Cat   board.Cell `json:"cat"`
	Mouse board.Cell `json:"mouse"`
}

// StartOverride customizes the initial state for the freestyle variant:
// pawn start cells and pre-placed walls.
type StartOverride struct {
	Pawns [2]PawnCells       `json:"pawns"`
	Walls []board.PlacedWall `json:"walls,omitempty"`
}

// Config is everything fixed for the lifetime of a game. Immutable once a
// session starts.
type Config struct {
	Variant       Variant        `json:"variant"`
	Columns       int            `json:"columns"`
	Rows          int            `json:"rows"`
	Time          TimeControl    `json:"time"`
	Rated         bool           `json:"rated"`
	Start         *StartOverride `json:"start,omitempty"`
	SurvivalTurns int            `json:"survival_turns,omitempty"`
}

// Validate rejects configurations the engine cannot host.
func (that Config) Validate() error {
	if _, ok := ParseVariant(string(that.Variant)); !ok {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, that.Variant)
	}
	if that.Columns < 2 || that.Rows < 2 {
		return fmt.Errorf("%w: board %dx%d is too small", ErrInvalidConfig, that.Columns, that.Rows)
	}
	if that.Columns > board.MaxColumns || that.Rows > board.MaxRows {
		return fmt.Errorf("%w: board %dx%d exceeds the notation range", ErrInvalidConfig, that.Columns, that.Rows)
	}
	if that.Variant == VariantSurvival && that.SurvivalTurns <= 0 {
		return fmt.Errorf("%w: survival needs a positive turn budget", ErrInvalidConfig)
	}
	if that.Start != nil {
		for _, pawns := range that.Start.Pawns {
			for _, cell := range []board.Cell{pawns.Cat, pawns.Mouse} {
				if cell.Col < 0 || cell.Col >= that.Columns || cell.Row < 0 || cell.Row >= that.Rows {
					return fmt.Errorf("%w: start cell %v is off the board", ErrInvalidConfig, cell)
				}
			}
		}
	}
	return nil
}

// StartingPawns returns the initial pawn cells: player 1 on the left edge,
// player 2 on the right, cats on top, mice in the bottom corners, unless a
// freestyle override says otherwise.
func (that Config) StartingPawns() [2]PawnCells {
	if that.Start != nil {
		return that.Start.Pawns
	}

	return [2]PawnCells{
		{
			Cat:   board.Cell{Col: 0, Row: 0},
			Mouse: board.Cell{Col: 0, Row: that.Rows - 1},
		},
		{
			Cat:   board.Cell{Col: that.Columns - 1, Row: 0},
			Mouse: board.Cell{Col: that.Columns - 1, Row: that.Rows - 1},
		},
	}
}
