package board

// Pawn is one of the two tokens a player controls.
type Pawn int

const (
	Cat Pawn = iota
	Mouse
)

func (that Pawn) String() string {
	if that == Cat {
		return "cat"
	}
	return "mouse"
}
