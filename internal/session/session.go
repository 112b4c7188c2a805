// Package session owns one match's lifecycle: seats, clock, meta-action
// negotiation, rematch chaining and bot bookkeeping. Each session is a
// single-owner actor; connections only enqueue commands and await a reply,
// never mutate state directly.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/engine"
	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/notation"
	"github.com/nmamano/wallgame-sub000/internal/rating"
)

// Session phases.
const (
	PhaseWaiting  = "waiting-for-seats"
	PhasePlaying  = "playing"
	PhaseFinished = "finished"
)

// timeoutSlack pads the move-timeout timer so the flag check runs just
// after the clock actually hits zero.
const timeoutSlack = 50 * time.Millisecond

// Seat is one of the two player roles. The token is the credential for
// (re-)attaching a connection to the seat.
type Seat struct {
	player *entity.Player
	token  string
	isBot  bool
	conn   Conn
}

type command struct {
	fn    func() (any, error)
	reply chan cmdResult
}

type cmdResult struct {
	value any
	err   error
}

// Session wraps one game state plus its seats, connections and pending
// offers. All mutation happens on the run goroutine.
type Session struct {
	ID string

	logger   *slog.Logger
	clock    clock.Clock
	registry *Registry

	phase      string
	config     engine.Config
	state      *engine.State
	seats      [2]*Seat // index 0 is player 1
	spectators map[Conn]struct{}
	offers     map[OfferKind]map[int]struct{}

	bot         *botSeat
	botDeadline *clock.Timer

	archived bool

	timeoutTimer *clock.Timer

	commands  chan command
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, registry *Registry, config engine.Config, seats [2]*Seat) *Session {
	that := &Session{
		ID:         id,
		logger:     registry.logger.With("component", "session", "gameID", id),
		clock:      registry.clock,
		registry:   registry,
		phase:      PhaseWaiting,
		config:     config,
		seats:      seats,
		spectators: make(map[Conn]struct{}),
		offers:     make(map[OfferKind]map[int]struct{}),
		commands:   make(chan command),
		done:       make(chan struct{}),
	}

	go that.run()

	return that
}

func (that *Session) run() {
	for {
		select {
		case cmd := <-that.commands:
			value, err := cmd.fn()
			cmd.reply <- cmdResult{value: value, err: err}
		case <-that.done:
			return
		}
	}
}

// do runs fn on the session's goroutine and waits for its result.
func (that *Session) do(ctx context.Context, fn func() (any, error)) (any, error) {
	cmd := command{fn: fn, reply: make(chan cmdResult, 1)}

	select {
	case that.commands <- cmd:
	case <-that.done:
		return nil, apperror.ErrSessionNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue is the fire-and-forget variant used by timer callbacks.
func (that *Session) enqueue(fn func()) {
	go func() {
		_, _ = that.do(context.Background(), func() (any, error) {
			fn()
			return nil, nil
		})
	}()
}

// Config returns the immutable game configuration.
func (that *Session) Config() engine.Config {
	return that.config
}

// JoinSeat attaches a connection to the seat matching the token, resolving
// the seat's identity on first claim. The current state and match status
// are delivered on the connection before it becomes eligible for
// broadcasts, so no update is missed or duplicated. Reconnecting with the
// same token re-attaches the same logical player, not a new one.
func (that *Session) JoinSeat(ctx context.Context, token string, player *entity.Player, conn Conn) (int, error) {
	value, err := that.do(ctx, func() (any, error) {
		for idx, seat := range that.seats {
			if seat.token != token || seat.isBot {
				continue
			}

			if seat.player.ID == "" {
				seat.player = player
			} else if player != nil && seat.player.ID != player.ID {
				return 0, apperror.ErrSeatTaken
			}

			if seat.conn != nil && seat.conn != conn {
				seat.conn.Close()
			}
			seat.conn = conn

			that.maybeStart()
			that.sendSnapshotTo(conn)

			that.logger.Info("seat attached", "player", idx+1)
			return idx + 1, nil
		}

		return 0, apperror.ErrBadSeatToken
	})
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

// Spectate attaches a read-only connection.
func (that *Session) Spectate(ctx context.Context, conn Conn) error {
	_, err := that.do(ctx, func() (any, error) {
		that.spectators[conn] = struct{}{}
		that.sendSnapshotTo(conn)
		return nil, nil
	})
	return err
}

// Detach removes a connection from the attach set. A detached seat keeps
// its state; the player can re-attach with the seat token. Once the game is
// finished and the last connection leaves, the session retires.
func (that *Session) Detach(conn Conn) {
	_, _ = that.do(context.Background(), func() (any, error) {
		that.dropConn(conn)
		that.maybeRetire()
		return nil, nil
	})
}

// SubmitMove applies one move for the given seat.
func (that *Session) SubmitMove(ctx context.Context, seat int, moveText string) error {
	_, err := that.do(ctx, func() (any, error) {
		return nil, that.submitMove(seat, moveText)
	})
	return err
}

func (that *Session) submitMove(seat int, moveText string) error {
	if that.phase != PhasePlaying {
		return apperror.ErrGameNotStarted
	}

	move, err := notation.ParseMove(moveText, that.config.Rows)
	if err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrIllegalTarget, err)
	}

	now := that.clock.Now()
	next, err := engine.ApplyMove(that.state, seat, move, now)
	if err != nil {
		return err
	}

	that.state = next

	// A move on the board voids pending draw and takeback negotiations.
	delete(that.offers, OfferDraw)
	delete(that.offers, OfferTakeback)

	that.afterMutation(now)
	return nil
}

// Resign ends the game unilaterally.
func (that *Session) Resign(ctx context.Context, seat int) error {
	_, err := that.do(ctx, func() (any, error) {
		return nil, that.resign(seat)
	})
	return err
}

func (that *Session) resign(seat int) error {
	if that.phase != PhasePlaying {
		return apperror.ErrGameNotStarted
	}

	now := that.clock.Now()
	next, err := engine.Resign(that.state, seat, now)
	if err != nil {
		return err
	}

	that.state = next
	that.afterMutation(now)
	return nil
}

// GiveTime grants the opponent extra seconds on their clock.
func (that *Session) GiveTime(ctx context.Context, seat, seconds int) error {
	_, err := that.do(ctx, func() (any, error) {
		if that.phase != PhasePlaying {
			return nil, apperror.ErrGameNotStarted
		}
		if seconds <= 0 {
			return nil, apperror.ErrIllegalTarget
		}

		now := that.clock.Now()
		next, err := engine.GiveTime(that.state, seat, time.Duration(seconds)*time.Second, now)
		if err != nil {
			return nil, err
		}

		that.state = next
		that.afterMutation(now)
		return nil, nil
	})
	return err
}

// maybeStart flips the session into playing once both seats are attached.
// The clock only starts ticking here, never while waiting for an opponent.
func (that *Session) maybeStart() {
	if that.phase != PhaseWaiting {
		return
	}

	// Bot seats don't gate the start: the attach deadline resigns an absent
	// bot rather than keeping the human waiting forever.
	for _, seat := range that.seats {
		if seat.conn == nil && !seat.isBot {
			that.phase = PhaseWaiting
			return
		}
	}

	that.phase = PhasePlaying
	that.state = engine.NewState(that.config, that.clock.Now())
	that.armTimeoutTimer()
	that.pumpBot()

	that.logger.Info("game started", "variant", that.config.Variant)
}

// afterMutation is the common tail of every accepted state change:
// broadcast, re-arm timers, let the bot know if a decision is due, and run
// the finish path when the state went terminal.
func (that *Session) afterMutation(now time.Time) {
	if that.state.IsFinished() && that.phase != PhaseFinished {
		that.finish(now)
	}

	that.broadcastSnapshot()

	if that.phase == PhasePlaying {
		that.armTimeoutTimer()
		that.pumpBot()
		return
	}

	// A game can finish with nobody connected, e.g. a flag falling after
	// both players dropped. Without this the session would linger in the
	// registry forever.
	that.maybeRetire()
}

// finish cancels timers, settles ratings and hands the record to the
// persistence collaborator. Runs exactly once per game.
func (that *Session) finish(now time.Time) {
	that.phase = PhaseFinished
	that.stopTimeoutTimer()
	that.cancelBotWait()
	that.offers = make(map[OfferKind]map[int]struct{})

	that.settleRatings()
	that.archive(now)

	that.logger.Info("game finished",
		"winner", that.state.Result.Winner,
		"reason", that.state.Result.Reason,
	)
}

func (that *Session) settleRatings() {
	if !that.config.Rated {
		return
	}

	outcome := outcomeFor(that.state.Result, 1)
	a, b := that.registry.rate(that.seats[0].player.Rating, that.seats[1].player.Rating, outcome)
	that.seats[0].player.Rating = a
	that.seats[1].player.Rating = b

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, seat := range that.seats {
		if err := that.registry.players.CreateOrUpdate(ctx, seat.player); err != nil {
			that.logger.Error("failed to store rating", "playerID", seat.player.ID, "error", err)
		}
	}
}

func (that *Session) archive(now time.Time) {
	if that.archived {
		return
	}
	that.archived = true

	record := entity.NewGameRecord(that.ID, that.state,
		[2]string{that.seats[0].player.ID, that.seats[1].player.ID}, now)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := that.registry.games.CreateOrUpdate(ctx, record); err != nil {
		that.logger.Error("failed to archive game", "error", err)
	}
}

func outcomeFor(result engine.Result, player int) rating.Outcome {
	switch result.Winner {
	case player:
		return rating.Win
	case engine.DrawWinner:
		return rating.Draw
	default:
		return rating.Loss
	}
}

// armTimeoutTimer schedules the flag check for the player to move. The
// check itself recomputes remaining time from wall clock, so timer jitter
// never drifts the clocks.
func (that *Session) armTimeoutTimer() {
	that.stopTimeoutTimer()

	if that.phase != PhasePlaying || that.config.Time.IsUntimed() || that.state == nil {
		return
	}

	remaining := that.state.Remaining(that.state.Turn, that.clock.Now())
	that.timeoutTimer = that.clock.AfterFunc(remaining+timeoutSlack, func() {
		that.enqueue(that.checkTimeout)
	})
}

func (that *Session) stopTimeoutTimer() {
	if that.timeoutTimer != nil {
		that.timeoutTimer.Stop()
		that.timeoutTimer = nil
	}
}

func (that *Session) checkTimeout() {
	if that.phase != PhasePlaying {
		return
	}

	now := that.clock.Now()
	next, flagged := engine.TimeoutCheck(that.state, now)
	if !flagged {
		that.armTimeoutTimer()
		return
	}

	that.state = next
	that.afterMutation(now)
}

// conns returns every attached connection, seats first.
func (that *Session) conns() []Conn {
	all := make([]Conn, 0, len(that.spectators)+3)
	for _, seat := range that.seats {
		if seat.conn != nil {
			all = append(all, seat.conn)
		}
	}
	for conn := range that.spectators {
		all = append(all, conn)
	}
	return all
}

// broadcast fans an event out to every attached connection. A connection
// that cannot be reached is dropped from the attach set, not the session.
func (that *Session) broadcast(event Event) {
	for _, conn := range that.conns() {
		that.sendTo(conn, event)
	}
}

func (that *Session) sendTo(conn Conn, event Event) {
	if !conn.Send(event) {
		that.logger.Warn("dropping unreachable connection")
		that.dropConn(conn)
	}
}

// broadcastSnapshot sends the state first, then the match status that may
// carry rating data derived from it.
func (that *Session) broadcastSnapshot() {
	snapshot := that.snapshot()
	status := that.matchStatus()
	for _, conn := range that.conns() {
		that.sendTo(conn, StateEvent{Snapshot: snapshot})
		that.sendTo(conn, MatchStatusEvent{Status: status})
	}
}

func (that *Session) sendSnapshotTo(conn Conn) {
	that.sendTo(conn, StateEvent{Snapshot: that.snapshot()})
	that.sendTo(conn, MatchStatusEvent{Status: that.matchStatus()})
}

func (that *Session) dropConn(conn Conn) {
	for _, seat := range that.seats {
		if seat.conn == conn {
			seat.conn = nil
		}
	}
	if that.bot != nil && that.bot.conn == conn {
		that.botDetached()
	}
	delete(that.spectators, conn)
}

// maybeRetire removes the session from the registry once it is finished,
// archived and drained of connections.
func (that *Session) maybeRetire() {
	if that.phase != PhaseFinished || len(that.conns()) > 0 {
		return
	}

	that.registry.remove(that.ID)
	that.shutdown()
}

func (that *Session) shutdown() {
	that.closeOnce.Do(func() {
		that.stopTimeoutTimer()
		that.cancelBotWait()
		close(that.done)
		that.logger.Info("session retired")
	})
}

// snapshot builds the serializable view of the current state.
func (that *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		GameID: that.ID,
		Phase:  that.phase,
		Config: that.config,
	}

	state := that.state
	if state == nil {
		// Not started yet: show the initial layout.
		state = engine.NewState(that.config, that.clock.Now())
	}

	now := that.clock.Now()
	snap.Turn = state.Turn
	snap.MoveCount = state.MoveCount
	snap.Pawns = state.Pawns
	snap.Walls = state.Board.Walls()
	snap.History = state.History
	snap.ClocksMs = [2]int64{
		state.Remaining(1, now).Milliseconds(),
		state.Remaining(2, now).Milliseconds(),
	}
	if state.IsFinished() {
		result := state.Result
		snap.Result = &result
	}

	return snap
}

func (that *Session) matchStatus() *MatchStatus {
	status := &MatchStatus{
		GameID: that.ID,
		Phase:  that.phase,
	}

	for idx, seat := range that.seats {
		status.Seats[idx] = SeatInfo{
			PlayerID: seat.player.ID,
			Name:     seat.player.Name,
			Rating:   seat.player.Rating,
			IsBot:    seat.isBot,
			Attached: seat.conn != nil,
		}
	}

	return status
}

// seatIndex maps a player number (1 or 2) onto the seats array.
func (that *Session) seat(player int) *Seat {
	return that.seats[player-1]
}
