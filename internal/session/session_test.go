package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/engine"
	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/rating"
)

// fakeConn records every event a session pushes at it.
type fakeConn struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (that *fakeConn) Send(event Event) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.events = append(that.events, event)
	return true
}

func (that *fakeConn) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.closed = true
}

func (that *fakeConn) isClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.closed
}

func (that *fakeConn) snapshotEvents() []Event {
	that.mu.Lock()
	defer that.mu.Unlock()
	return append([]Event(nil), that.events...)
}

func (that *fakeConn) offerEvents() []OfferEvent {
	var out []OfferEvent
	for _, event := range that.snapshotEvents() {
		if offer, ok := event.(OfferEvent); ok {
			out = append(out, offer)
		}
	}
	return out
}

func (that *fakeConn) rematchEvents() []RematchStartedEvent {
	var out []RematchStartedEvent
	for _, event := range that.snapshotEvents() {
		if rematch, ok := event.(RematchStartedEvent); ok {
			out = append(out, rematch)
		}
	}
	return out
}

func (that *fakeConn) botRequests() []BotRequestEvent {
	var out []BotRequestEvent
	for _, event := range that.snapshotEvents() {
		if request, ok := event.(BotRequestEvent); ok {
			out = append(out, request)
		}
	}
	return out
}

func (that *fakeConn) lastSnapshot() *Snapshot {
	events := that.snapshotEvents()
	for i := len(events) - 1; i >= 0; i-- {
		if state, ok := events[i].(StateEvent); ok {
			return state.Snapshot
		}
	}
	return nil
}

// memPlayers is an in-memory playerStore.
type memPlayers struct {
	mu      sync.Mutex
	players map[string]*entity.Player
}

func newMemPlayers() *memPlayers {
	return &memPlayers{players: make(map[string]*entity.Player)}
}

func (that *memPlayers) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	copied := *player
	that.players[player.ID] = &copied
	return nil
}

func (that *memPlayers) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	player, ok := that.players[id]
	if !ok {
		return nil, errors.New("player not found")
	}
	return player, nil
}

// memGames is an in-memory gameArchive.
type memGames struct {
	mu      sync.Mutex
	records []*entity.GameRecord
}

func (that *memGames) CreateOrUpdate(_ context.Context, record *entity.GameRecord) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.records = append(that.records, record)
	return nil
}

func (that *memGames) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.records)
}

type testEnv struct {
	registry *Registry
	clock    *clock.Mock
	players  *memPlayers
	games    *memGames
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	players := newMemPlayers()
	games := &memGames{}

	return &testEnv{
		registry: NewRegistry(logger, mock, nil, players, games, Options{
			BotResponseTimeout: 10 * time.Second,
			BotMinInterval:     100 * time.Millisecond,
		}),
		clock:   mock,
		players: players,
		games:   games,
	}
}

func untimedConfig() engine.Config {
	return engine.Config{Variant: engine.VariantStandard, Columns: 5, Rows: 5}
}

// currentPhase reads the phase on the session's own goroutine.
func currentPhase(t *testing.T, sess *Session) string {
	t.Helper()

	value, err := sess.do(context.Background(), func() (any, error) {
		return sess.phase, nil
	})
	require.NoError(t, err)
	return value.(string)
}

func waitPhase(t *testing.T, sess *Session, phase string) {
	t.Helper()

	require.Eventually(t, func() bool {
		return currentPhase(t, sess) == phase
	}, 2*time.Second, 5*time.Millisecond, "session never reached phase %s", phase)
}

func joinBoth(t *testing.T, env *testEnv, config engine.Config) (*Session, *fakeConn, *fakeConn) {
	t.Helper()

	host := &entity.Player{ID: "alice", Name: "Alice", Rating: entity.DefaultRating}
	sess, creds, err := env.registry.Create(config, host, false)
	require.NoError(t, err)

	ctx := context.Background()
	conn1, conn2 := &fakeConn{}, &fakeConn{}

	seat, err := sess.JoinSeat(ctx, creds.HostToken, host, conn1)
	require.NoError(t, err)
	require.Equal(t, 1, seat)
	require.Equal(t, PhaseWaiting, currentPhase(t, sess))

	joiner := &entity.Player{ID: "bob", Name: "Bob", Rating: entity.DefaultRating}
	seat, err = sess.JoinSeat(ctx, creds.JoinerToken, joiner, conn2)
	require.NoError(t, err)
	require.Equal(t, 2, seat)
	require.Equal(t, PhasePlaying, currentPhase(t, sess))

	return sess, conn1, conn2
}

func TestSession_JoinAndStart(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Game starts once both seats are attached", func(t *testing.T) {
		sess, conn1, conn2 := joinBoth(t, env, untimedConfig())

		// Both connections received the current snapshot on join.
		require.NotNil(t, conn1.lastSnapshot())
		require.NotNil(t, conn2.lastSnapshot())
		assert.Equal(t, sess.ID, conn2.lastSnapshot().GameID)
	})

	t.Run("A wrong token is rejected", func(t *testing.T) {
		host := &entity.Player{ID: "alice"}
		sess, _, err := env.registry.Create(untimedConfig(), host, false)
		require.NoError(t, err)

		_, err = sess.JoinSeat(context.Background(), "nope", host, &fakeConn{})
		require.ErrorIs(t, err, apperror.ErrBadSeatToken)
	})

	t.Run("A claimed seat rejects a different player", func(t *testing.T) {
		host := &entity.Player{ID: "alice"}
		sess, creds, err := env.registry.Create(untimedConfig(), host, false)
		require.NoError(t, err)

		_, err = sess.JoinSeat(context.Background(), creds.HostToken, host, &fakeConn{})
		require.NoError(t, err)

		mallory := &entity.Player{ID: "mallory"}
		_, err = sess.JoinSeat(context.Background(), creds.HostToken, mallory, &fakeConn{})
		require.ErrorIs(t, err, apperror.ErrSeatTaken)
	})

	t.Run("Reconnecting with the same token replaces the connection", func(t *testing.T) {
		host := &entity.Player{ID: "alice"}
		sess, creds, err := env.registry.Create(untimedConfig(), host, false)
		require.NoError(t, err)

		old := &fakeConn{}
		_, err = sess.JoinSeat(context.Background(), creds.HostToken, host, old)
		require.NoError(t, err)

		fresh := &fakeConn{}
		_, err = sess.JoinSeat(context.Background(), creds.HostToken, host, fresh)
		require.NoError(t, err)

		assert.True(t, old.isClosed())
		assert.NotNil(t, fresh.lastSnapshot())
	})
}

func TestSession_SubmitMove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("An accepted move is broadcast to both players", func(t *testing.T) {
		sess, conn1, conn2 := joinBoth(t, env, untimedConfig())

		err := sess.SubmitMove(ctx, 1, "Cc5")
		require.NoError(t, err)

		snap := conn2.lastSnapshot()
		require.NotNil(t, snap)
		assert.Equal(t, 1, snap.MoveCount)
		assert.Equal(t, 2, snap.Turn)
		assert.Equal(t, conn1.lastSnapshot().MoveCount, snap.MoveCount)
	})

	t.Run("A rejected move leaves the state untouched", func(t *testing.T) {
		sess, conn1, _ := joinBoth(t, env, untimedConfig())

		before := conn1.lastSnapshot().MoveCount

		err := sess.SubmitMove(ctx, 2, "Cc5")
		require.ErrorIs(t, err, apperror.ErrOutOfTurn)

		assert.Equal(t, before, conn1.lastSnapshot().MoveCount)
	})

	t.Run("Malformed notation is rejected as an illegal move", func(t *testing.T) {
		sess, _, _ := joinBoth(t, env, untimedConfig())

		err := sess.SubmitMove(ctx, 1, "Zb9!")
		require.ErrorIs(t, err, apperror.ErrIllegalTarget)
	})

	t.Run("Moves are rejected before the game starts", func(t *testing.T) {
		host := &entity.Player{ID: "alice"}
		sess, creds, err := env.registry.Create(untimedConfig(), host, false)
		require.NoError(t, err)

		_, err = sess.JoinSeat(ctx, creds.HostToken, host, &fakeConn{})
		require.NoError(t, err)

		err = sess.SubmitMove(ctx, 1, "Cc5")
		require.ErrorIs(t, err, apperror.ErrGameNotStarted)
	})
}

func TestSession_Resign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, conn1, _ := joinBoth(t, env, untimedConfig())

	err := sess.Resign(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, PhaseFinished, currentPhase(t, sess))

	snap := conn1.lastSnapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, engine.Result{Winner: 1, Reason: engine.ReasonResignation}, *snap.Result)

	// The finished game was handed to the archive.
	assert.Equal(t, 1, env.games.count())
}

func TestSession_RatedSettlement(t *testing.T) {
	ctx := context.Background()

	mock := clock.NewMock()
	mock.Set(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))

	players := newMemPlayers()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry(logger, mock, rating.FixedK(32), players, &memGames{}, Options{})

	config := untimedConfig()
	config.Rated = true

	host := &entity.Player{ID: "alice", Rating: 1500}
	sess, creds, err := registry.Create(config, host, false)
	require.NoError(t, err)

	_, err = sess.JoinSeat(ctx, creds.HostToken, host, &fakeConn{})
	require.NoError(t, err)

	joiner := &entity.Player{ID: "bob", Rating: 1500}
	_, err = sess.JoinSeat(ctx, creds.JoinerToken, joiner, &fakeConn{})
	require.NoError(t, err)

	// When: player 2 resigns a rated game
	require.NoError(t, sess.Resign(ctx, 2))

	// Then: both new ratings were written to the store
	winner, err := players.GetByID(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 1516, winner.Rating, 0.01)

	loser, err := players.GetByID(ctx, "bob")
	require.NoError(t, err)
	assert.InDelta(t, 1484, loser.Rating, 0.01)
}

func TestSession_DrawOffers(t *testing.T) {
	ctx := context.Background()

	t.Run("An offer reaches only the opponent", func(t *testing.T) {
		env := newTestEnv(t)
		sess, conn1, conn2 := joinBoth(t, env, untimedConfig())

		err := sess.Offer(ctx, 1, OfferDraw)
		require.NoError(t, err)

		require.Len(t, conn2.offerEvents(), 1)
		assert.Equal(t, OfferEvent{Kind: OfferDraw, From: 1}, conn2.offerEvents()[0])
		assert.Empty(t, conn1.offerEvents())
	})

	t.Run("Re-offering is an idempotent acknowledgement", func(t *testing.T) {
		env := newTestEnv(t)
		sess, _, conn2 := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))

		assert.Len(t, conn2.offerEvents(), 1)
	})

	t.Run("Simultaneous offers each only show the opponent's", func(t *testing.T) {
		env := newTestEnv(t)
		sess, conn1, conn2 := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
		require.NoError(t, sess.Offer(ctx, 2, OfferDraw))

		require.Len(t, conn1.offerEvents(), 1)
		assert.Equal(t, 2, conn1.offerEvents()[0].From)
		require.Len(t, conn2.offerEvents(), 1)
		assert.Equal(t, 1, conn2.offerEvents()[0].From)
	})

	t.Run("Accepting ends the game as an agreed draw", func(t *testing.T) {
		env := newTestEnv(t)
		sess, conn1, _ := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
		require.NoError(t, sess.AcceptOffer(ctx, 2, OfferDraw))

		assert.Equal(t, PhaseFinished, currentPhase(t, sess))

		snap := conn1.lastSnapshot()
		require.NotNil(t, snap.Result)
		assert.Equal(t, engine.DrawWinner, snap.Result.Winner)
		assert.Equal(t, engine.ReasonAgreement, snap.Result.Reason)
	})

	t.Run("Accepting without a pending offer is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		sess, _, _ := joinBoth(t, env, untimedConfig())

		err := sess.AcceptOffer(ctx, 2, OfferDraw)
		require.ErrorIs(t, err, apperror.ErrNoPendingOffer)
	})

	t.Run("A rejected offer leaves the game running", func(t *testing.T) {
		env := newTestEnv(t)
		sess, _, _ := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
		require.NoError(t, sess.RejectOffer(ctx, 2, OfferDraw))

		assert.Equal(t, PhasePlaying, currentPhase(t, sess))

		// The offer is gone: accepting it now fails.
		err := sess.AcceptOffer(ctx, 2, OfferDraw)
		require.ErrorIs(t, err, apperror.ErrNoPendingOffer)
	})

	t.Run("A move on the board voids a pending offer", func(t *testing.T) {
		env := newTestEnv(t)
		sess, _, _ := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
		require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))

		err := sess.AcceptOffer(ctx, 2, OfferDraw)
		require.ErrorIs(t, err, apperror.ErrNoPendingOffer)
	})
}

func TestSession_Takeback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("Accepted takeback reverts to before the requester's last move", func(t *testing.T) {
		sess, conn1, _ := joinBoth(t, env, untimedConfig())

		require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))
		require.NoError(t, sess.SubmitMove(ctx, 2, "Cd4"))

		// Player 1 wants their move back; both half-moves go.
		require.NoError(t, sess.Offer(ctx, 1, OfferTakeback))
		require.NoError(t, sess.AcceptOffer(ctx, 2, OfferTakeback))

		snap := conn1.lastSnapshot()
		assert.Equal(t, 0, snap.MoveCount)
		assert.Equal(t, 1, snap.Turn)
		assert.Empty(t, snap.History)
	})

	t.Run("Takeback with no own move to revert is rejected", func(t *testing.T) {
		sess, _, _ := joinBoth(t, env, untimedConfig())

		err := sess.Offer(ctx, 2, OfferTakeback)
		require.ErrorIs(t, err, apperror.ErrNoHistoryToRevert)
	})
}

func TestSession_Rematch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, conn1, conn2 := joinBoth(t, env, untimedConfig())

	require.NoError(t, sess.Resign(ctx, 2))
	require.Equal(t, PhaseFinished, currentPhase(t, sess))

	// Rematch offers only make sense on a finished game.
	require.NoError(t, sess.Offer(ctx, 1, OfferRematch))
	require.NoError(t, sess.AcceptOffer(ctx, 2, OfferRematch))

	require.Len(t, conn1.rematchEvents(), 1)
	require.Len(t, conn2.rematchEvents(), 1)

	started1 := conn1.rematchEvents()[0]
	started2 := conn2.rematchEvents()[0]
	require.Equal(t, started1.NewGameID, started2.NewGameID)
	require.NotEmpty(t, started1.SeatToken)
	require.NotEmpty(t, started2.SeatToken)

	successor, err := env.registry.Get(started1.NewGameID)
	require.NoError(t, err)

	// Seats swap: the previous first player now moves second.
	alice := &entity.Player{ID: "alice"}
	seat, err := successor.JoinSeat(ctx, started1.SeatToken, alice, &fakeConn{})
	require.NoError(t, err)
	assert.Equal(t, 2, seat)

	bob := &entity.Player{ID: "bob"}
	seat, err = successor.JoinSeat(ctx, started2.SeatToken, bob, &fakeConn{})
	require.NoError(t, err)
	assert.Equal(t, 1, seat)
}

func TestSession_Spectators(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, _, _ := joinBoth(t, env, untimedConfig())

	viewer := &fakeConn{}
	require.NoError(t, sess.Spectate(ctx, viewer))

	// The spectator got a catch-up snapshot on attach.
	require.NotNil(t, viewer.lastSnapshot())

	require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))
	assert.Equal(t, 1, viewer.lastSnapshot().MoveCount)

	// Spectators never hear offers.
	require.NoError(t, sess.Offer(ctx, 1, OfferDraw))
	assert.Empty(t, viewer.offerEvents())
}

func TestSession_Timeout(t *testing.T) {
	env := newTestEnv(t)

	config := untimedConfig()
	config.Time = engine.TimeControl{InitialSec: 60}

	sess, conn1, _ := joinBoth(t, env, config)

	// When: player 1 never moves and the clock runs out
	env.clock.Add(61 * time.Second)

	// Then: the session finishes on its own
	waitPhase(t, sess, PhaseFinished)

	snap := conn1.lastSnapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, engine.Result{Winner: 2, Reason: engine.ReasonTimeout}, *snap.Result)
}

func TestSession_RetiresAfterUnattendedFinish(t *testing.T) {
	env := newTestEnv(t)

	config := untimedConfig()
	config.Time = engine.TimeControl{InitialSec: 60}

	sess, conn1, conn2 := joinBoth(t, env, config)
	require.Equal(t, 1, env.registry.Active())

	// Given: both players drop mid-game
	sess.Detach(conn1)
	sess.Detach(conn2)
	require.Equal(t, 1, env.registry.Active())

	// When: the flag falls with nobody connected
	env.clock.Add(61 * time.Second)

	// Then: the session archives the game and leaves the registry
	require.Eventually(t, func() bool {
		return env.registry.Active() == 0
	}, 2*time.Second, 5*time.Millisecond, "finished session never left the registry")
	assert.Equal(t, 1, env.games.count())
}

func TestSession_GiveTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	config := untimedConfig()
	config.Time = engine.TimeControl{InitialSec: 60}

	sess, conn1, _ := joinBoth(t, env, config)

	require.NoError(t, sess.GiveTime(ctx, 1, 30))

	snap := conn1.lastSnapshot()
	assert.Equal(t, int64(90_000), snap.ClocksMs[1])
}

func TestRegistry_CreateVsBot(t *testing.T) {
	env := newTestEnv(t)
	host := &entity.Player{ID: "alice", Name: "Alice", Rating: entity.DefaultRating}

	t.Run("Rated bot games are rejected", func(t *testing.T) {
		config := untimedConfig()
		config.Rated = true

		_, _, err := env.registry.Create(config, host, true)
		require.ErrorIs(t, err, engine.ErrInvalidConfig)
	})

	t.Run("The bot seat starts at the default rating", func(t *testing.T) {
		sess, _, err := env.registry.Create(untimedConfig(), host, true)
		require.NoError(t, err)

		assert.Equal(t, entity.DefaultRating, sess.seats[1].player.Rating)
	})
}

func TestSession_Bot(t *testing.T) {
	ctx := context.Background()

	caps := BotCapabilities{
		Variants:       []string{"standard", "classic"},
		MaxBoardWidth:  13,
		MaxBoardHeight: 10,
	}

	setup := func(t *testing.T, env *testEnv) (*Session, *SeatCredentials, *fakeConn) {
		t.Helper()

		host := &entity.Player{ID: "alice", Rating: entity.DefaultRating}
		sess, creds, err := env.registry.Create(untimedConfig(), host, true)
		require.NoError(t, err)

		humanConn := &fakeConn{}
		_, err = sess.JoinSeat(ctx, creds.HostToken, host, humanConn)
		require.NoError(t, err)

		// The bot seat does not gate the start.
		require.Equal(t, PhasePlaying, currentPhase(t, sess))

		return sess, creds, humanConn
	}

	t.Run("Attach is rejected when capabilities cannot host the game", func(t *testing.T) {
		env := newTestEnv(t)
		sess, creds, _ := setup(t, env)

		weak := BotCapabilities{Variants: []string{"classic"}, MaxBoardWidth: 13, MaxBoardHeight: 10}
		_, err := sess.AttachBot(ctx, creds.JoinerToken, weak, &fakeConn{})
		require.ErrorIs(t, err, apperror.ErrUnsupportedGame)

		small := BotCapabilities{Variants: []string{"standard"}, MaxBoardWidth: 3, MaxBoardHeight: 3}
		_, err = sess.AttachBot(ctx, creds.JoinerToken, small, &fakeConn{})
		require.ErrorIs(t, err, apperror.ErrUnsupportedGame)
	})

	t.Run("The bot is asked to move on its turn and its answer is applied", func(t *testing.T) {
		env := newTestEnv(t)
		sess, creds, humanConn := setup(t, env)

		botConn := &fakeConn{}
		seat, err := sess.AttachBot(ctx, creds.JoinerToken, caps, botConn)
		require.NoError(t, err)
		require.Equal(t, 2, seat)

		// Human moves; the bot should receive a move request.
		require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))

		require.Eventually(t, func() bool {
			return len(botConn.botRequests()) == 1
		}, 2*time.Second, 5*time.Millisecond)

		request := botConn.botRequests()[0]
		assert.Equal(t, RequestMove, request.Kind)
		assert.Equal(t, 1, request.Snapshot.MoveCount)

		require.NoError(t, sess.BotRespond(ctx, request.RequestID, BotResponse{Move: "Ce3"}))

		assert.Equal(t, 2, humanConn.lastSnapshot().MoveCount)
		assert.Equal(t, 1, humanConn.lastSnapshot().Turn)
	})

	t.Run("A stale request id is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		sess, creds, _ := setup(t, env)

		botConn := &fakeConn{}
		_, err := sess.AttachBot(ctx, creds.JoinerToken, caps, botConn)
		require.NoError(t, err)

		err = sess.BotRespond(ctx, "no-such-request", BotResponse{Move: "Cc4"})
		require.ErrorIs(t, err, apperror.ErrStaleBotResponse)
	})

	t.Run("An illegal bot move forces the seat to resign", func(t *testing.T) {
		env := newTestEnv(t)
		sess, creds, humanConn := setup(t, env)

		botConn := &fakeConn{}
		_, err := sess.AttachBot(ctx, creds.JoinerToken, caps, botConn)
		require.NoError(t, err)

		require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))
		require.Eventually(t, func() bool {
			return len(botConn.botRequests()) == 1
		}, 2*time.Second, 5*time.Millisecond)

		// Out-of-budget move: three steps.
		request := botConn.botRequests()[0]
		err = sess.BotRespond(ctx, request.RequestID, BotResponse{Move: "Cb4"})
		require.Error(t, err)

		waitPhase(t, sess, PhaseFinished)
		result := humanConn.lastSnapshot().Result
		require.NotNil(t, result)
		assert.Equal(t, engine.Result{Winner: 1, Reason: engine.ReasonResignation}, *result)
	})

	t.Run("A bot that never answers is resigned on timeout", func(t *testing.T) {
		env := newTestEnv(t)
		sess, creds, humanConn := setup(t, env)

		botConn := &fakeConn{}
		_, err := sess.AttachBot(ctx, creds.JoinerToken, caps, botConn)
		require.NoError(t, err)

		require.NoError(t, sess.SubmitMove(ctx, 1, "Cc5"))
		require.Eventually(t, func() bool {
			return len(botConn.botRequests()) == 1
		}, 2*time.Second, 5*time.Millisecond)

		env.clock.Add(11 * time.Second)

		waitPhase(t, sess, PhaseFinished)
		result := humanConn.lastSnapshot().Result
		require.NotNil(t, result)
		assert.Equal(t, engine.Result{Winner: 1, Reason: engine.ReasonResignation}, *result)
	})

	t.Run("A bot that never attaches is resigned on the attach deadline", func(t *testing.T) {
		env := newTestEnv(t)
		sess, _, humanConn := setup(t, env)

		env.clock.Add(11 * time.Second)

		waitPhase(t, sess, PhaseFinished)
		result := humanConn.lastSnapshot().Result
		require.NotNil(t, result)
		assert.Equal(t, engine.Result{Winner: 1, Reason: engine.ReasonResignation}, *result)
	})
}
