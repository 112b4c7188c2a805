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
	"github.com/nmamano/wallgame-sub000/internal/pkg"
	"github.com/nmamano/wallgame-sub000/internal/rating"
)

type playerStore interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type gameArchive interface {
	CreateOrUpdate(ctx context.Context, record *entity.GameRecord) error
}

// Options tunes the session runtime; zero values fall back to defaults.
type Options struct {
	BotResponseTimeout time.Duration
	BotMinInterval     time.Duration
}

const (
	defaultBotTimeout     = 30 * time.Second
	defaultBotMinInterval = 100 * time.Millisecond
)

// Registry is the process-wide map from game id to session actor. Sessions
// are registered on creation and removed once finished and drained.
type Registry struct {
	logger  *slog.Logger
	clock   clock.Clock
	rate    rating.RateFunc
	players playerStore
	games   gameArchive

	botTimeout     time.Duration
	botMinInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry wires the session layer to its collaborators: a clock source
// (fakeable in tests), the rating function, and the persistence stores.
func NewRegistry(logger *slog.Logger, clk clock.Clock, rate rating.RateFunc, players playerStore, games gameArchive, opts Options) *Registry {
	if opts.BotResponseTimeout <= 0 {
		opts.BotResponseTimeout = defaultBotTimeout
	}
	if opts.BotMinInterval <= 0 {
		opts.BotMinInterval = defaultBotMinInterval
	}
	if rate == nil {
		rate = rating.Unrated
	}

	return &Registry{
		logger:         logger,
		clock:          clk,
		rate:           rate,
		players:        players,
		games:          games,
		botTimeout:     opts.BotResponseTimeout,
		botMinInterval: opts.BotMinInterval,
		sessions:       make(map[string]*Session),
	}
}

// SeatCredentials are handed to the creator: the host keeps its token and
// passes the joiner token to the opponent (or to the bot runner).
type SeatCredentials struct {
	GameID      string `json:"game_id"`
	HostToken   string `json:"host_token"`
	JoinerToken string `json:"joiner_token"`
}

// Create builds a new session for a configuration. The host is player 1 of
// the first game; rematches alternate who moves first. With vsBot the
// joiner seat expects a bot attachment instead of a human client.
func (that *Registry) Create(config engine.Config, host *entity.Player, vsBot bool) (*Session, *SeatCredentials, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	if config.Rated && vsBot {
		return nil, nil, fmt.Errorf("%w: bot games cannot be rated", engine.ErrInvalidConfig)
	}

	id := pkg.GenerateGameID()

	seats := [2]*Seat{
		{player: host, token: pkg.GenerateSeatToken()},
		{player: &entity.Player{ID: "bot", Name: "bot", Rating: entity.DefaultRating}, token: pkg.GenerateSeatToken(), isBot: vsBot},
	}
	if !vsBot {
		// The joiner's identity is resolved when they claim the seat.
		seats[1].player = &entity.Player{ID: "", Rating: entity.DefaultRating}
	}

	sess := newSession(id, that, config, seats)

	that.mu.Lock()
	that.sessions[id] = sess
	that.mu.Unlock()

	that.logger.Info("session created", "gameID", id, "variant", config.Variant, "vsBot", vsBot)

	return sess, &SeatCredentials{
		GameID:      id,
		HostToken:   seats[0].token,
		JoinerToken: seats[1].token,
	}, nil
}

// Get looks up a live session.
func (that *Registry) Get(id string) (*Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sess, ok := that.sessions[id]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}
	return sess, nil
}

// successor creates the rematch session: same configuration, fresh state,
// seats swapped so the previous second player moves first.
func (that *Registry) successor(old *Session) *Session {
	id := pkg.GenerateGameID()

	seats := [2]*Seat{
		{player: old.seats[1].player, token: pkg.GenerateSeatToken(), isBot: old.seats[1].isBot},
		{player: old.seats[0].player, token: pkg.GenerateSeatToken(), isBot: old.seats[0].isBot},
	}

	sess := newSession(id, that, old.config, seats)

	that.mu.Lock()
	that.sessions[id] = sess
	that.mu.Unlock()

	return sess
}

func (that *Registry) remove(id string) {
	that.mu.Lock()
	delete(that.sessions, id)
	that.mu.Unlock()
}

// Active returns the number of live sessions.
func (that *Registry) Active() int {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return len(that.sessions)
}
