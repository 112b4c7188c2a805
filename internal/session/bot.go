package session

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/pkg"
)

// botSeat is the bookkeeping for a seat controlled by an external program:
// the attached connection, the single outstanding request and the
// rate-limit horizon for the next one.
type botSeat struct {
	seat int
	conn Conn

	pending       *pendingRequest
	queue         []RequestKind
	timeoutTimer  *clock.Timer
	delayTimer    *clock.Timer
	nextAllowedAt time.Time
}

type pendingRequest struct {
	id   string
	kind RequestKind
}

// AttachBot claims the bot seat with its single-use token. The handshake
// fails if the bot's advertised capabilities cannot host this game. The
// current state is delivered on the connection as the attach confirmation.
func (that *Session) AttachBot(ctx context.Context, token string, caps BotCapabilities, conn Conn) (int, error) {
	value, err := that.do(ctx, func() (any, error) {
		for idx, seat := range that.seats {
			if !seat.isBot || seat.token != token {
				continue
			}

			if that.bot != nil {
				return 0, apperror.ErrSeatTaken
			}
			if err := that.checkCapabilities(caps); err != nil {
				return 0, err
			}

			seat.conn = conn
			that.bot = &botSeat{seat: idx + 1, conn: conn}
			that.stopBotDeadline()

			that.maybeStart()
			that.sendSnapshotTo(conn)
			that.pumpBot()

			that.logger.Info("bot attached", "seat", idx+1)
			return idx + 1, nil
		}

		return 0, apperror.ErrBadSeatToken
	})
	if err != nil {
		return 0, err
	}
	return value.(int), nil
}

func (that *Session) checkCapabilities(caps BotCapabilities) error {
	if caps.MaxBoardWidth < that.config.Columns || caps.MaxBoardHeight < that.config.Rows {
		return fmt.Errorf("%w: board %dx%d", apperror.ErrUnsupportedGame, that.config.Columns, that.config.Rows)
	}

	for _, variant := range caps.Variants {
		if variant == string(that.config.Variant) {
			return nil
		}
	}
	return fmt.Errorf("%w: variant %s", apperror.ErrUnsupportedGame, that.config.Variant)
}

// BotRespond resolves the outstanding request. A stale or unknown request
// id is nacked and ignored; an illegal move forces the seat to resign so
// the session cannot hang on a misbehaving bot.
func (that *Session) BotRespond(ctx context.Context, requestID string, response BotResponse) error {
	_, err := that.do(ctx, func() (any, error) {
		bot := that.bot
		if bot == nil || bot.pending == nil || bot.pending.id != requestID {
			return nil, apperror.ErrStaleBotResponse
		}

		kind := bot.pending.kind
		bot.clearPending()
		bot.nextAllowedAt = that.clock.Now().Add(that.registry.botMinInterval)

		if err := that.dispatchBotResponse(bot.seat, kind, response); err != nil {
			return nil, err
		}

		that.pumpBot()
		return nil, nil
	})
	return err
}

func (that *Session) dispatchBotResponse(seat int, kind RequestKind, response BotResponse) error {
	switch kind {
	case RequestMove:
		if err := that.submitMove(seat, response.Move); err != nil {
			that.logger.Warn("bot played an illegal move, forcing resignation", "error", err)
			that.forceResignBot()
			return err
		}
		return nil

	case RequestDraw, RequestTakeback, RequestRematch:
		offerKind := offerKindFor(kind)
		if response.Accept {
			return that.acceptOffer(seat, offerKind)
		}
		return that.rejectOffer(seat, offerKind)
	}

	return apperror.ErrStaleBotResponse
}

// scheduleBotRequest queues a request kind for the bot. Delivery honors the
// one-outstanding-request contract and the minimum request interval.
func (that *Session) scheduleBotRequest(kind RequestKind) {
	bot := that.bot
	if bot == nil {
		// Not attached yet; the attach deadline guarantees termination.
		return
	}

	if bot.pending != nil && bot.pending.kind == kind {
		return
	}
	for _, queued := range bot.queue {
		if queued == kind {
			return
		}
	}

	bot.queue = append(bot.queue, kind)
	that.pumpBotQueue()
}

// pumpBot is called after every mutation: it asks the attached bot to move
// when it is its turn, or arms the attach deadline when the seat is still
// empty in a live game.
func (that *Session) pumpBot() {
	seatNum := that.botSeatNumber()
	if seatNum == 0 {
		return
	}

	if that.bot == nil {
		if that.phase == PhasePlaying {
			that.armBotDeadline()
		}
		return
	}

	if that.phase == PhasePlaying && that.state.Turn == seatNum {
		that.scheduleBotRequest(RequestMove)
		return
	}

	that.pumpBotQueue()
}

// pumpBotQueue sends the next queued request if none is outstanding and the
// rate-limit window has passed. Responses arriving faster than the minimum
// interval are accepted but delay the next request instead of starving the
// actor.
func (that *Session) pumpBotQueue() {
	bot := that.bot
	if bot == nil || bot.pending != nil || len(bot.queue) == 0 {
		return
	}

	now := that.clock.Now()
	if wait := bot.nextAllowedAt.Sub(now); wait > 0 {
		if bot.delayTimer == nil {
			bot.delayTimer = that.clock.AfterFunc(wait, func() {
				that.enqueue(func() {
					if that.bot != nil {
						that.bot.delayTimer = nil
					}
					that.pumpBotQueue()
				})
			})
		}
		return
	}

	kind := bot.queue[0]
	bot.queue = bot.queue[1:]

	request := &pendingRequest{id: pkg.GenerateRequestID(), kind: kind}
	bot.pending = request

	that.sendTo(bot.conn, BotRequestEvent{
		RequestID: request.id,
		Kind:      kind,
		Snapshot:  that.snapshot(),
	})

	bot.timeoutTimer = that.clock.AfterFunc(that.registry.botTimeout, func() {
		that.enqueue(func() { that.botRequestTimedOut(request.id) })
	})
}

func (that *Session) botRequestTimedOut(requestID string) {
	bot := that.bot
	if bot == nil || bot.pending == nil || bot.pending.id != requestID {
		return
	}

	kind := bot.pending.kind
	bot.clearPending()

	that.logger.Warn("bot request timed out", "kind", kind)

	if that.phase == PhasePlaying {
		that.forceResignBot()
		return
	}

	// Post-game decisions (rematch) just resolve against the bot.
	if kind == RequestRematch {
		_ = that.rejectOffer(bot.seat, OfferRematch)
	}
}

// forceResignBot is the deterministic fallback: the seat resigns instead of
// the session hanging on a crashed or absent program.
func (that *Session) forceResignBot() {
	seatNum := that.botSeatNumber()
	if seatNum == 0 || that.phase != PhasePlaying {
		return
	}

	if err := that.resign(seatNum); err != nil {
		that.logger.Error("failed to force bot resignation", "error", err)
	}
}

// armBotDeadline starts the clock on an absent bot: if nothing attaches to
// the seat before the response timeout, the seat is resigned.
func (that *Session) armBotDeadline() {
	if that.botDeadline != nil {
		return
	}

	that.botDeadline = that.clock.AfterFunc(that.registry.botTimeout, func() {
		that.enqueue(func() {
			that.botDeadline = nil
			if that.bot == nil && that.phase == PhasePlaying {
				that.logger.Warn("bot never attached, forcing resignation")
				that.forceResignBot()
			}
		})
	})
}

func (that *Session) stopBotDeadline() {
	if that.botDeadline != nil {
		that.botDeadline.Stop()
		that.botDeadline = nil
	}
}

// botDetached clears the live bot connection; re-attachment gets a fresh
// deadline via pumpBot.
func (that *Session) botDetached() {
	bot := that.bot
	if bot == nil {
		return
	}

	bot.clearPending()
	if bot.delayTimer != nil {
		bot.delayTimer.Stop()
	}
	that.seat(bot.seat).conn = nil
	that.bot = nil

	if that.phase == PhasePlaying {
		that.armBotDeadline()
	}
}

// cancelBotWait aborts any in-flight request, e.g. when the human resigns
// while the bot is thinking.
func (that *Session) cancelBotWait() {
	that.stopBotDeadline()

	bot := that.bot
	if bot == nil {
		return
	}

	bot.clearPending()
	bot.queue = nil
	if bot.delayTimer != nil {
		bot.delayTimer.Stop()
		bot.delayTimer = nil
	}
}

func (that *botSeat) clearPending() {
	that.pending = nil
	if that.timeoutTimer != nil {
		that.timeoutTimer.Stop()
		that.timeoutTimer = nil
	}
}

func (that *Session) botSeatNumber() int {
	for idx, seat := range that.seats {
		if seat.isBot {
			return idx + 1
		}
	}
	return 0
}

func offerKindFor(kind RequestKind) OfferKind {
	switch kind {
	case RequestDraw:
		return OfferDraw
	case RequestTakeback:
		return OfferTakeback
	default:
		return OfferRematch
	}
}
