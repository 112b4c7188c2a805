// Package engine applies moves and terminal events to a game state,
// enforcing legality and detecting outcomes. Every mutation returns a fresh
// state copy; a rejection leaves the input untouched and returns a typed
// error the transport layer turns into a nack.
package engine

import (
	"fmt"
	"time"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/board"
	"github.com/nmamano/wallgame-sub000/internal/notation"
)

// ActionBudget is the fixed per-turn budget: two units, each a single pawn
// step or one wall slot.
const ActionBudget = 2

// ApplyMove validates and applies one player's move at the given wall-clock
// timestamp. If the mover's clock already ran out the move is not applied
// and the returned state is the timeout result instead.
func ApplyMove(state *State, player int, move notation.Move, ts time.Time) (*State, error) {
	return applyMove(state, player, move, ts, false)
}

// applyMove is the shared move path. With replay set, clock accounting and
// the timeout pre-check are skipped: history records moves, not clock
// credits (give-time), so replaying a history at recorded timestamps must
// stay clock-neutral or a legally played game could reconstruct as a
// timeout. Callers of the replay path carry clocks over themselves.
func applyMove(state *State, player int, move notation.Move, ts time.Time, replay bool) (*State, error) {
	if state.IsFinished() {
		return nil, apperror.ErrGameAlreadyOver
	}
	if player != state.Turn {
		return nil, apperror.ErrOutOfTurn
	}

	if !replay && !state.Config.Time.IsUntimed() && state.Remaining(player, ts) <= 0 {
		return finishTimeout(state, player, ts), nil
	}

	next := state.Clone()

	cost, err := applyActions(next, player, move)
	if err != nil {
		return nil, err
	}

	for _, p := range []int{1, 2} {
		if !next.HasActiveGoal(p) {
			continue
		}
		if !next.Board.PathExists(next.PawnCell(p, board.Cat), next.GoalCell(p)) {
			return nil, fmt.Errorf("%w: player %d", apperror.ErrWouldIsolatePlayer, p)
		}
	}

	next.MoveCount++

	terminal := evaluateTerminal(next, player)
	if !terminal && !move.IsPass() && cost < ActionBudget {
		return nil, fmt.Errorf("%w: spent %d of %d", apperror.ErrBudgetExceeded, cost, ActionBudget)
	}

	text, err := notation.FormatMove(move, state.Config.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrIllegalTarget, err)
	}

	if !replay && !next.Config.Time.IsUntimed() {
		idx := player - 1
		next.Clocks[idx] -= ts.Sub(next.LastMoveAt)
		next.Clocks[idx] += time.Duration(next.Config.Time.IncrementSec) * time.Second
	}

	next.History = append(next.History, HistoryEntry{Player: player, Notation: text, Timestamp: ts})
	next.LastMoveAt = ts

	if terminal {
		next.Status = StatusFinished
		next.Turn = 0
	} else {
		next.Turn = Opponent(player)
	}

	return next, nil
}

// applyActions tentatively applies every action of the move to the clone and
// returns how much of the budget it spent. All-or-nothing: the first illegal
// action rejects the whole move, and the caller discards the clone.
func applyActions(next *State, player int, move notation.Move) (int, error) {
	cost := 0

	for _, action := range move.Actions {
		switch action.Kind {
		case notation.PawnAction:
			if action.Pawn == board.Mouse && !next.Config.Variant.AllowsMouseMoves() {
				return 0, fmt.Errorf("%w: mouse cannot move in %s", apperror.ErrIllegalTarget, next.Config.Variant)
			}
			if !next.Board.InBounds(action.To) {
				return 0, fmt.Errorf("%w: cell %v is off the board", apperror.ErrIllegalTarget, action.To)
			}

			from := next.PawnCell(player, action.Pawn)
			dist := next.Board.Distance(from, action.To)
			if dist <= 0 {
				return 0, fmt.Errorf("%w: %s cannot reach %v", apperror.ErrIllegalTarget, action.Pawn, action.To)
			}

			cost += dist
			if cost > ActionBudget {
				return 0, fmt.Errorf("%w: %d steps", apperror.ErrBudgetExceeded, cost)
			}

			setPawnCell(next, player, action.Pawn, action.To)

		case notation.WallAction:
			cost++
			if cost > ActionBudget {
				return 0, fmt.Errorf("%w: %d actions", apperror.ErrBudgetExceeded, cost)
			}
			if next.Board.IsBlocked(action.Wall) {
				return 0, fmt.Errorf("%w: wall slot at %v", apperror.ErrIllegalTarget, action.Wall.Cell)
			}
			if err := next.Board.PlaceWall(action.Wall, player); err != nil {
				return 0, fmt.Errorf("%w: %v", apperror.ErrIllegalTarget, err)
			}
		}
	}

	return cost, nil
}

func setPawnCell(state *State, player int, pawn board.Pawn, to board.Cell) {
	cells := &state.Pawns[player-1]
	if pawn == board.Cat {
		cells.Cat = to
	} else {
		cells.Mouse = to
	}
}

// evaluateTerminal checks terminal conditions in priority order after the
// mover's actions have been applied, filling in the result when the game is
// over. Captures beat everything; the survival budget only matters if the
// defender's mouse is still standing.
func evaluateTerminal(next *State, mover int) bool {
	variantReason := ReasonCapture
	if next.Config.Variant == VariantClassic {
		variantReason = ReasonGoal
	}

	// Player 1's capture is subject to the one-move rule: if player 2's cat
	// can retaliate within its own budget, the game is a draw instead.
	if next.Pawns[0].Cat == next.Pawns[1].Mouse {
		retaliation := next.Board.Distance(next.Pawns[1].Cat, next.Pawns[0].Mouse)
		if next.Config.Variant != VariantSurvival && retaliation != -1 && retaliation <= ActionBudget {
			next.Result = Result{Winner: DrawWinner, Reason: ReasonOneMoveRule}
			return true
		}
		next.Result = Result{Winner: 1, Reason: variantReason}
		return true
	}

	if next.Pawns[1].Cat == next.Pawns[0].Mouse {
		next.Result = Result{Winner: 2, Reason: variantReason}
		return true
	}

	if next.Config.Variant == VariantSurvival && mover == 2 &&
		next.CompletedTurns() >= next.Config.SurvivalTurns {
		next.Result = Result{Winner: 2, Reason: ReasonSurvival}
		return true
	}

	return false
}

// Resign ends the game unilaterally in the opponent's favor.
func Resign(state *State, player int, ts time.Time) (*State, error) {
	if state.IsFinished() {
		return nil, apperror.ErrGameAlreadyOver
	}

	next := state.Clone()
	next.Status = StatusFinished
	next.Turn = 0
	next.Result = Result{Winner: Opponent(player), Reason: ReasonResignation}
	next.LastMoveAt = ts
	return next, nil
}

// AgreeDraw ends the game as a draw by mutual agreement.
func AgreeDraw(state *State, ts time.Time) (*State, error) {
	if state.IsFinished() {
		return nil, apperror.ErrGameAlreadyOver
	}

	next := state.Clone()
	next.Status = StatusFinished
	next.Turn = 0
	next.Result = Result{Winner: DrawWinner, Reason: ReasonAgreement}
	next.LastMoveAt = ts
	return next, nil
}

// TimeoutCheck flags the player to move if their clock ran out. It returns
// (state, false) unchanged when no timeout occurred, so it is cheap to call
// opportunistically on every message and on a periodic timer.
func TimeoutCheck(state *State, ts time.Time) (*State, bool) {
	if state.IsFinished() || state.Config.Time.IsUntimed() {
		return state, false
	}
	if state.Remaining(state.Turn, ts) > 0 {
		return state, false
	}
	return finishTimeout(state, state.Turn, ts), true
}

func finishTimeout(state *State, loser int, ts time.Time) *State {
	next := state.Clone()
	next.Clocks[loser-1] = 0
	next.Status = StatusFinished
	next.Turn = 0
	next.Result = Result{Winner: Opponent(loser), Reason: ReasonTimeout}
	next.LastMoveAt = ts
	return next
}

// GiveTime grants the opponent extra clock time.
func GiveTime(state *State, fromPlayer int, extra time.Duration, ts time.Time) (*State, error) {
	if state.IsFinished() {
		return nil, apperror.ErrGameAlreadyOver
	}
	if state.Config.Time.IsUntimed() {
		return nil, apperror.ErrIllegalTarget
	}

	next := state.Clone()
	next.Clocks[Opponent(fromPlayer)-1] += extra
	return next, nil
}

// ApplyTakeback removes the last n half-moves by replaying the shortened
// history from the initial position. Clocks are carried over from the
// current state so nobody gains time, and the move timer restarts at ts.
func ApplyTakeback(state *State, n int, ts time.Time) (*State, error) {
	if state.IsFinished() {
		return nil, apperror.ErrGameAlreadyOver
	}
	if n <= 0 || n > len(state.History) {
		return nil, fmt.Errorf("%w: %d of %d", apperror.ErrNoHistoryToRevert, n, len(state.History))
	}

	next, err := ReconstructAt(state.Config, state.History, len(state.History)-n, state.StartedAt)
	if err != nil {
		return nil, err
	}

	next.Clocks = state.Clocks
	next.LastMoveAt = ts
	return next, nil
}

// ReconstructAt replays the first n history entries from the initial
// configuration. Takeback, replay and spectator catch-up all share this one
// code path; replaying a full history deterministically reproduces the
// recorded final position. Replay is clock-neutral: the reconstructed
// state keeps the initial clocks and callers overwrite them as needed.
func ReconstructAt(config Config, history []HistoryEntry, n int, startedAt time.Time) (*State, error) {
	state := NewState(config, startedAt)

	for i := 0; i < n; i++ {
		entry := history[i]

		move, err := notation.ParseMove(entry.Notation, config.Rows)
		if err != nil {
			return nil, fmt.Errorf("replay entry %d: %w", i, err)
		}

		state, err = applyMove(state, entry.Player, move, entry.Timestamp, true)
		if err != nil {
			return nil, fmt.Errorf("replay entry %d: %w", i, err)
		}
	}

	return state, nil
}
