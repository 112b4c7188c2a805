package apperror

import "errors"

// Rule violations: recovered locally, surfaced to the offending connection
// as a nack, game state unchanged.
var (
	ErrOutOfTurn          = errors.New("it's not your turn")
	ErrBudgetExceeded     = errors.New("move does not spend exactly the per-turn action budget")
	ErrIllegalTarget      = errors.New("action targets an illegal cell or wall slot")
	ErrWouldIsolatePlayer = errors.New("move would cut a pawn off from its goal")
	ErrGameAlreadyOver    = errors.New("game is already over")
)

// Session and protocol violations.
var (
	ErrGameNotStarted    = errors.New("game is not started")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSeatTaken         = errors.New("seat is already taken")
	ErrNotAPlayer        = errors.New("connection does not hold a player seat")
	ErrNoPendingOffer    = errors.New("no pending offer of that kind")
	ErrBadSeatToken      = errors.New("seat token is invalid or already used")
	ErrUnsupportedGame   = errors.New("bot does not support this game configuration")
	ErrStaleBotResponse  = errors.New("bot response does not match the pending request")
	ErrNoHistoryToRevert = errors.New("not enough moves to take back")
)
