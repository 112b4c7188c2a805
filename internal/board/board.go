package board

import (
	"errors"
	"fmt"
)

const (
	Player1 = 1
	Player2 = 2
)

const (
	MaxColumns = 13
	MaxRows    = 10
)

var (
	ErrWallOccupied  = errors.New("wall slot is already occupied")
	ErrWallOutOfGrid = errors.New("wall slot is outside the grid")
)

// Cell addresses a grid square as (column, row), 0-indexed, row 0 at the top.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Direction of a single pawn step.
type Direction int

const (
	Right Direction = iota
	Down
	Left
	Up
)

var Directions = [4]Direction{Right, Down, Left, Up}

// Step returns the orthogonally adjacent cell in the given direction.
func (that Cell) Step(dir Direction) Cell {
	switch dir {
	case Right:
		return Cell{that.Col + 1, that.Row}
	case Down:
		return Cell{that.Col, that.Row + 1}
	case Left:
		return Cell{that.Col - 1, that.Row}
	case Up:
		return Cell{that.Col, that.Row - 1}
	}
	return that
}

// WallType says which edge of the anchor cell the slot occupies.
type WallType int

const (
	// Vertical occupies the right edge of the anchor cell.
	Vertical WallType = iota
	// Horizontal occupies the bottom edge of the anchor cell.
	Horizontal
)

// Wall is one wall slot: the edge between two orthogonally adjacent cells.
type Wall struct {
	Cell Cell     `json:"cell"`
	Type WallType `json:"type"`
}

// WallBetween normalizes a step out of cell c into the slot it crosses.
func WallBetween(c Cell, dir Direction) Wall {
	switch dir {
	case Right:
		return Wall{c, Vertical}
	case Down:
		return Wall{c, Horizontal}
	case Left:
		return Wall{Cell{c.Col - 1, c.Row}, Vertical}
	case Up:
		return Wall{Cell{c.Col, c.Row - 1}, Horizontal}
	}
	return Wall{c, Vertical}
}

// PlacedWall records an occupied slot together with the placing player.
type PlacedWall struct {
	Wall   Wall `json:"wall"`
	Player int  `json:"player"`
}

// Board is the grid of cells plus the set of occupied wall slots.
// Occupied slots are immutable for the rest of the game; only a takeback
// rebuilds the board from an earlier snapshot.
type Board struct {
	Columns int
	Rows    int

	walls map[Wall]int
}

// New creates an empty board of the given dimensions.
func New(columns, rows int) *Board {
	return &Board{
		Columns: columns,
		Rows:    rows,
		walls:   make(map[Wall]int),
	}
}

// Clone returns a deep copy.
func (that *Board) Clone() *Board {
	clone := New(that.Columns, that.Rows)
	for wall, player := range that.walls {
		clone.walls[wall] = player
	}
	return clone
}

// InBounds reports whether the cell lies on the grid.
func (that *Board) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < that.Columns && c.Row >= 0 && c.Row < that.Rows
}

// IsAdjacent reports whether a and b share an edge.
func (that *Board) IsAdjacent(a, b Cell) bool {
	if !that.InBounds(a) || !that.InBounds(b) {
		return false
	}
	dc := a.Col - b.Col
	dr := a.Row - b.Row
	return (dc == 0 && (dr == 1 || dr == -1)) || (dr == 0 && (dc == 1 || dc == -1))
}

// HasWall reports whether the slot is occupied.
func (that *Board) HasWall(wall Wall) bool {
	_, ok := that.walls[wall]
	return ok
}

// WallOwner returns the player who occupies the slot, if any.
func (that *Board) WallOwner(wall Wall) (int, bool) {
	player, ok := that.walls[wall]
	return player, ok
}

// IsBlocked reports whether a slot cannot be crossed or filled: it is either
// off the grid (the board border) or already occupied.
func (that *Board) IsBlocked(wall Wall) bool {
	if wall.Cell.Col < 0 || wall.Cell.Row < 0 || wall.Cell.Col >= that.Columns || wall.Cell.Row >= that.Rows {
		return true
	}

	if wall.Type == Horizontal && wall.Cell.Row == that.Rows-1 {
		return true
	}
	if wall.Type == Vertical && wall.Cell.Col == that.Columns-1 {
		return true
	}

	return that.HasWall(wall)
}

// CanStep reports whether a pawn at c may step in the given direction.
func (that *Board) CanStep(c Cell, dir Direction) bool {
	return that.InBounds(c.Step(dir)) && !that.IsBlocked(WallBetween(c, dir))
}

// PlaceWall occupies a slot for a player. The slot must be free and inside
// the grid; connectivity is the engine's concern, not the board's.
func (that *Board) PlaceWall(wall Wall, player int) error {
	if wall.Cell.Col < 0 || wall.Cell.Row < 0 || wall.Cell.Col >= that.Columns || wall.Cell.Row >= that.Rows {
		return fmt.Errorf("%w: anchor %v", ErrWallOutOfGrid, wall.Cell)
	}
	if (wall.Type == Horizontal && wall.Cell.Row == that.Rows-1) ||
		(wall.Type == Vertical && wall.Cell.Col == that.Columns-1) {
		return fmt.Errorf("%w: border edge at %v", ErrWallOutOfGrid, wall.Cell)
	}
	if that.HasWall(wall) {
		return fmt.Errorf("%w: %v", ErrWallOccupied, wall.Cell)
	}

	that.walls[wall] = player

	return nil
}

// RemoveWall frees a slot. Only takeback reconstruction uses it.
func (that *Board) RemoveWall(wall Wall) {
	delete(that.walls, wall)
}

// Walls returns all occupied slots with their owners.
func (that *Board) Walls() []PlacedWall {
	placed := make([]PlacedWall, 0, len(that.walls))
	for wall, player := range that.walls {
		placed = append(placed, PlacedWall{Wall: wall, Player: player})
	}
	return placed
}

// WallCount returns the number of occupied slots.
func (that *Board) WallCount() int {
	return len(that.walls)
}

// PathExists runs a breadth-first search over the cell graph with occupied
// slots removed as edges. It is the load-bearing check of the engine: a wall
// placement is only legal if every pawn with an active goal keeps a path.
func (that *Board) PathExists(from, to Cell) bool {
	return that.Distance(from, to) >= 0
}

// Distance returns the length of a shortest wall-respecting path between two
// cells, or -1 when they are disconnected. O(cells) per call.
func (that *Board) Distance(from, to Cell) int {
	if !that.InBounds(from) || !that.InBounds(to) {
		return -1
	}
	if from == to {
		return 0
	}

	visited := make([]bool, that.Columns*that.Rows)
	visited[that.index(from)] = true

	type item struct {
		cell Cell
		dist int
	}

	queue := make([]item, 0, that.Columns*that.Rows)
	queue = append(queue, item{from, 0})

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dir := range Directions {
			if !that.CanStep(current.cell, dir) {
				continue
			}

			next := current.cell.Step(dir)
			if next == to {
				return current.dist + 1
			}

			if idx := that.index(next); !visited[idx] {
				visited[idx] = true
				queue = append(queue, item{next, current.dist + 1})
			}
		}
	}

	return -1
}

func (that *Board) index(c Cell) int {
	return c.Row*that.Columns + c.Col
}
