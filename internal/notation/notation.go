// Package notation implements the compact textual move grammar used on the
// wire and in stored game histories.
//
// A move is up to two action tokens joined by '.'. A token is a pawn letter
// ('C' for cat, 'M' for mouse) followed by a destination cell, or a wall
// glyph followed by its reference cell. Cells use column letters and
// 1-based row numbers counted from the bottom of the board ("b2"), so the
// codec needs the board height to flip rows into internal coordinates.
// "---" is the explicit no-op move.
//
// The grammar is the canonical cross-boundary encoding for replay and for
// the bot wire protocol; it must stay stable.
package notation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nmamano/wallgame-sub000/internal/board"
)

const (
	// Pass is the explicit no-op move.
	Pass = "---"

	tokenDelimiter = "."
	maxTokens      = 2
)

var (
	ErrEmptyMove     = errors.New("empty move text")
	ErrTooManyTokens = errors.New("too many action tokens")
	ErrBadToken      = errors.New("malformed action token")
	ErrBadCell       = errors.New("cell out of notation range")
)

const columnLabels = "abcdefghijklm"
const rowLabels = "123456789X"

// ActionKind discriminates the two action shapes.
type ActionKind int

const (
	PawnAction ActionKind = iota
	WallAction
)

// Action is one component of a move: a pawn travelling to a destination
// cell, or a wall slot being filled. A pawn destination may be up to two
// steps away; the engine charges one budget unit per step.
type Action struct {
	Kind ActionKind
	Pawn board.Pawn
	To   board.Cell
	Wall board.Wall
}

// Move is the ordered list of actions a player submits atomically.
// An empty action list is the explicit no-op.
type Move struct {
	Actions []Action
}

// IsPass reports whether the move is the explicit no-op.
func (that Move) IsPass() bool {
	return len(that.Actions) == 0
}

// CellText formats a cell in official notation, flipping the row so that
// row 1 is the bottom of the board.
func CellText(c board.Cell, rows int) (string, error) {
	officialRow := rows - c.Row
	if officialRow < 1 || officialRow > len(rowLabels) || c.Col < 0 || c.Col >= len(columnLabels) {
		return "", fmt.Errorf("%w: (%d,%d) on %d rows", ErrBadCell, c.Col, c.Row, rows)
	}
	return string(columnLabels[c.Col]) + string(rowLabels[officialRow-1]), nil
}

// ParseCell parses a two-character cell token back into internal coordinates.
func ParseCell(text string, rows int) (board.Cell, error) {
	if len(text) != 2 {
		return board.Cell{}, fmt.Errorf("%w: cell %q", ErrBadToken, text)
	}

	col := strings.IndexByte(columnLabels, text[0])
	officialRow := strings.IndexByte(rowLabels, text[1]) + 1
	if col < 0 || officialRow < 1 {
		return board.Cell{}, fmt.Errorf("%w: cell %q", ErrBadToken, text)
	}

	row := rows - officialRow
	if row < 0 {
		return board.Cell{}, fmt.Errorf("%w: cell %q on %d rows", ErrBadCell, text, rows)
	}

	return board.Cell{Col: col, Row: row}, nil
}

// ParseMove parses the textual form of a move. The board height is needed
// to flip official rows into internal ones.
func ParseMove(text string, rows int) (Move, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Move{}, ErrEmptyMove
	}
	if text == Pass {
		return Move{}, nil
	}

	tokens := strings.Split(text, tokenDelimiter)
	if len(tokens) > maxTokens {
		return Move{}, fmt.Errorf("%w: %q", ErrTooManyTokens, text)
	}

	var move Move
	for _, token := range tokens {
		action, err := parseToken(token, rows)
		if err != nil {
			return Move{}, err
		}
		move.Actions = append(move.Actions, action)
	}

	return move, nil
}

func parseToken(token string, rows int) (Action, error) {
	if len(token) != 3 {
		return Action{}, fmt.Errorf("%w: %q", ErrBadToken, token)
	}

	cell, err := ParseCell(token[1:], rows)
	if err != nil {
		return Action{}, err
	}

	switch token[0] {
	case 'C':
		return Action{Kind: PawnAction, Pawn: board.Cat, To: cell}, nil
	case 'M':
		return Action{Kind: PawnAction, Pawn: board.Mouse, To: cell}, nil
	case '>':
		// Vertical wall on the right edge of the cell.
		return Action{Kind: WallAction, Wall: board.Wall{Cell: cell, Type: board.Vertical}}, nil
	case '<':
		// Mirrored reference: the slot sits on the left edge, which is the
		// right edge of the western neighbour.
		return Action{Kind: WallAction, Wall: board.Wall{Cell: board.Cell{Col: cell.Col - 1, Row: cell.Row}, Type: board.Vertical}}, nil
	case '^':
		// Horizontal wall above the cell: the bottom edge of the northern
		// neighbour in internal coordinates.
		return Action{Kind: WallAction, Wall: board.Wall{Cell: board.Cell{Col: cell.Col, Row: cell.Row - 1}, Type: board.Horizontal}}, nil
	case 'v':
		return Action{Kind: WallAction, Wall: board.Wall{Cell: cell, Type: board.Horizontal}}, nil
	}

	return Action{}, fmt.Errorf("%w: %q", ErrBadToken, token)
}

// FormatMove serializes a move in canonical form: cat destination first,
// then mouse destination, then walls sorted vertical before horizontal and
// by (column, row). The serializer only emits the '>' and '^' wall glyphs;
// '<' and 'v' are parse-time aliases.
func FormatMove(move Move, rows int) (string, error) {
	if move.IsPass() {
		return Pass, nil
	}

	var catDest, mouseDest *board.Cell
	var walls []board.Wall

	for _, action := range move.Actions {
		switch action.Kind {
		case PawnAction:
			to := action.To
			if action.Pawn == board.Cat {
				catDest = &to
			} else {
				mouseDest = &to
			}
		case WallAction:
			walls = append(walls, action.Wall)
		}
	}

	sort.Slice(walls, func(i, j int) bool {
		if walls[i].Type != walls[j].Type {
			return walls[i].Type == board.Vertical
		}
		if walls[i].Cell.Col != walls[j].Cell.Col {
			return walls[i].Cell.Col < walls[j].Cell.Col
		}
		return walls[i].Cell.Row < walls[j].Cell.Row
	})

	var tokens []string

	if catDest != nil {
		cell, err := CellText(*catDest, rows)
		if err != nil {
			return "", err
		}
		tokens = append(tokens, "C"+cell)
	}
	if mouseDest != nil {
		cell, err := CellText(*mouseDest, rows)
		if err != nil {
			return "", err
		}
		tokens = append(tokens, "M"+cell)
	}
	for _, wall := range walls {
		token, err := wallText(wall, rows)
		if err != nil {
			return "", err
		}
		tokens = append(tokens, token)
	}

	return strings.Join(tokens, tokenDelimiter), nil
}

func wallText(wall board.Wall, rows int) (string, error) {
	if wall.Type == board.Vertical {
		cell, err := CellText(wall.Cell, rows)
		if err != nil {
			return "", err
		}
		return ">" + cell, nil
	}

	// The horizontal glyph references the cell below the slot.
	below := board.Cell{Col: wall.Cell.Col, Row: wall.Cell.Row + 1}
	cell, err := CellText(below, rows)
	if err != nil {
		return "", err
	}
	return "^" + cell, nil
}
