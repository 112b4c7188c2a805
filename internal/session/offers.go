package session

import (
	"context"
	"fmt"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/engine"
)

// OfferKind names a meta-action needing the opponent's agreement.
type OfferKind string

const (
	OfferDraw     OfferKind = "draw"
	OfferTakeback OfferKind = "takeback"
	OfferRematch  OfferKind = "rematch"
)

// Offer records a meta-action offer from a seat. At most one offer per kind
// per initiator is outstanding; re-offering is an idempotent acknowledgement.
// Offers from both players can be live simultaneously, each resolved on its
// own; a player only ever hears the opponent's offer, never an echo.
func (that *Session) Offer(ctx context.Context, seat int, kind OfferKind) error {
	_, err := that.do(ctx, func() (any, error) {
		return nil, that.offer(seat, kind)
	})
	return err
}

// AcceptOffer resolves the opponent's pending offer of the given kind.
func (that *Session) AcceptOffer(ctx context.Context, seat int, kind OfferKind) error {
	_, err := that.do(ctx, func() (any, error) {
		return nil, that.acceptOffer(seat, kind)
	})
	return err
}

// RejectOffer declines the opponent's pending offer of the given kind.
func (that *Session) RejectOffer(ctx context.Context, seat int, kind OfferKind) error {
	_, err := that.do(ctx, func() (any, error) {
		return nil, that.rejectOffer(seat, kind)
	})
	return err
}

func (that *Session) offerPhaseOK(kind OfferKind) error {
	if kind == OfferRematch {
		if that.phase != PhaseFinished {
			return apperror.ErrGameAlreadyOver
		}
		return nil
	}
	if that.phase != PhasePlaying {
		return apperror.ErrGameNotStarted
	}
	return nil
}

func (that *Session) offer(seat int, kind OfferKind) error {
	if err := that.offerPhaseOK(kind); err != nil {
		return err
	}
	if kind == OfferTakeback && lastMoveBy(that.state, seat) < 0 {
		return apperror.ErrNoHistoryToRevert
	}

	set, ok := that.offers[kind]
	if !ok {
		set = make(map[int]struct{})
		that.offers[kind] = set
	}

	if _, pending := set[seat]; pending {
		// Same offer from the same player: acknowledge, don't duplicate.
		return nil
	}
	set[seat] = struct{}{}

	that.logger.Info("offer made", "kind", kind, "from", seat)

	opponent := engine.Opponent(seat)
	opponentSeat := that.seat(opponent)

	if opponentSeat.isBot {
		that.scheduleBotRequest(requestKindFor(kind))
		return nil
	}

	if opponentSeat.conn != nil {
		that.sendTo(opponentSeat.conn, OfferEvent{Kind: kind, From: seat})
	}

	return nil
}

func (that *Session) acceptOffer(seat int, kind OfferKind) error {
	opponent := engine.Opponent(seat)

	set := that.offers[kind]
	if _, pending := set[opponent]; !pending {
		return fmt.Errorf("%w: %s", apperror.ErrNoPendingOffer, kind)
	}

	// Accepting resolves every live offer of this kind, including the
	// accepter's own concurrent one.
	delete(that.offers, kind)
	that.broadcast(OfferResolvedEvent{Kind: kind, By: seat, Accepted: true})

	switch kind {
	case OfferDraw:
		return that.resolveDraw()
	case OfferTakeback:
		return that.resolveTakeback(opponent)
	case OfferRematch:
		that.resolveRematch()
		return nil
	}

	return fmt.Errorf("%w: %s", apperror.ErrNoPendingOffer, kind)
}

func (that *Session) rejectOffer(seat int, kind OfferKind) error {
	opponent := engine.Opponent(seat)

	set := that.offers[kind]
	if _, pending := set[opponent]; !pending {
		return fmt.Errorf("%w: %s", apperror.ErrNoPendingOffer, kind)
	}

	delete(set, opponent)
	if len(set) == 0 {
		delete(that.offers, kind)
	}

	that.broadcast(OfferResolvedEvent{Kind: kind, By: seat, Accepted: false})
	return nil
}

func (that *Session) resolveDraw() error {
	now := that.clock.Now()
	next, err := engine.AgreeDraw(that.state, now)
	if err != nil {
		return err
	}

	that.state = next
	that.afterMutation(now)
	return nil
}

// resolveTakeback reverts the game to just before the requester's last
// move: one half-move if the opponent has not replied yet, two otherwise.
func (that *Session) resolveTakeback(requester int) error {
	idx := lastMoveBy(that.state, requester)
	if idx < 0 {
		return apperror.ErrNoHistoryToRevert
	}

	now := that.clock.Now()
	next, err := engine.ApplyTakeback(that.state, len(that.state.History)-idx, now)
	if err != nil {
		return err
	}

	that.state = next
	that.afterMutation(now)
	return nil
}

// lastMoveBy returns the history index of the player's most recent move, or
// -1 when they have not moved.
func lastMoveBy(state *engine.State, player int) int {
	if state == nil {
		return -1
	}
	for i := len(state.History) - 1; i >= 0; i-- {
		if state.History[i].Player == player {
			return i
		}
	}
	return -1
}

// resolveRematch spawns the successor session with the seats swapped: the
// player who moved second moves first next game. Each connection receives
// its own credentials for the new session; spectators just get the id.
func (that *Session) resolveRematch() {
	successor := that.registry.successor(that)

	for idx, seat := range that.seats {
		token := ""
		// Old player 1 holds seat 2 in the successor, and vice versa.
		if newSeat := successor.seats[1-idx]; newSeat.player.ID == seat.player.ID {
			token = newSeat.token
		}
		if seat.conn != nil {
			that.sendTo(seat.conn, RematchStartedEvent{NewGameID: successor.ID, SeatToken: token})
		}
	}
	for conn := range that.spectators {
		that.sendTo(conn, RematchStartedEvent{NewGameID: successor.ID})
	}

	that.logger.Info("rematch started", "newGameID", successor.ID)
}

func requestKindFor(kind OfferKind) RequestKind {
	switch kind {
	case OfferDraw:
		return RequestDraw
	case OfferTakeback:
		return RequestTakeback
	default:
		return RequestRematch
	}
}
