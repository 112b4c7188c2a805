package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nmamano/wallgame-sub000/internal/apperror"
	"github.com/nmamano/wallgame-sub000/internal/entity"
	"github.com/nmamano/wallgame-sub000/internal/pkg"
	"github.com/nmamano/wallgame-sub000/internal/repository"
	"github.com/nmamano/wallgame-sub000/internal/session"
)

func (that *Server) handleConnect(ctx context.Context, client *Client, msg *Message) (any, error) {
	log := that.logger.With("method", "handleConnect")

	var payload ConnectPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	player, err := that.getOrCreatePlayer(ctx, payload.PlayerID, payload.Name)
	if err != nil {
		log.Error("failed to get or create player", "error", err)
		return nil, err
	}

	client.player = player
	client.acks = that.acksFor(player.ID)

	log.Info("player connected", "playerID", player.ID)

	return ConnectResponse{Player: player}, nil
}

func (that *Server) getOrCreatePlayer(ctx context.Context, id, name string) (*entity.Player, error) {
	if id != "" {
		player, err := that.players.GetByID(ctx, id)
		if err == nil {
			return player, nil
		}
		if !errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, fmt.Errorf("failed to get player by id: %w", err)
		}
	}

	if id == "" {
		id = pkg.GenerateNewSessionID()
	}

	player := &entity.Player{
		ID:     id,
		Name:   name,
		Rating: entity.DefaultRating,
	}

	if err := that.players.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, nil
}

func (that *Server) handleCreateGame(ctx context.Context, client *Client, msg *Message) (any, error) {
	log := that.logger.With("method", "handleCreateGame")

	if client.player == nil {
		return nil, apperror.ErrNotAPlayer
	}

	var payload CreateGamePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sess, credentials, err := that.registry.Create(payload.Config, client.player, payload.VsBot)
	if err != nil {
		return nil, err
	}

	seat, err := sess.JoinSeat(ctx, credentials.HostToken, client.player, client)
	if err != nil {
		return nil, err
	}

	client.sess = sess
	client.seat = seat

	log.Info("game created", "gameID", credentials.GameID, "vsBot", payload.VsBot)

	return credentials, nil
}

func (that *Server) handleJoinGame(ctx context.Context, client *Client, msg *Message) (any, error) {
	log := that.logger.With("method", "handleJoinGame")

	if client.player == nil {
		return nil, apperror.ErrNotAPlayer
	}

	var payload JoinGamePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sess, err := that.registry.Get(payload.GameID)
	if err != nil {
		return nil, err
	}

	seat, err := sess.JoinSeat(ctx, payload.SeatToken, client.player, client)
	if err != nil {
		return nil, err
	}

	client.sess = sess
	client.seat = seat

	log.Info("player joined game", "gameID", payload.GameID, "seat", seat)

	return map[string]int{"seat": seat}, nil
}

func (that *Server) handleSpectateGame(ctx context.Context, client *Client, msg *Message) (any, error) {
	var payload SpectatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sess, err := that.registry.Get(payload.GameID)
	if err != nil {
		return nil, err
	}

	if err = sess.Spectate(ctx, client); err != nil {
		return nil, err
	}

	client.sess = sess
	client.seat = 0

	return nil, nil
}

// playerSession guards actions only a seated player may take; spectators
// get a typed nack, the connection stays open.
func (that *Client) playerSession() (*session.Session, int, error) {
	if that.sess == nil {
		return nil, 0, apperror.ErrSessionNotFound
	}
	if that.seat == 0 {
		return nil, 0, apperror.ErrNotAPlayer
	}
	return that.sess, that.seat, nil
}

func (that *Server) handleMove(ctx context.Context, client *Client, msg *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	var payload MovePayload
	if err = json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil, sess.SubmitMove(ctx, seat, payload.Move)
}

func (that *Server) handleResign(ctx context.Context, client *Client, _ *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	return nil, sess.Resign(ctx, seat)
}

func parseOfferKind(raw json.RawMessage) (session.OfferKind, error) {
	var payload OfferPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	switch kind := session.OfferKind(payload.Kind); kind {
	case session.OfferDraw, session.OfferTakeback, session.OfferRematch:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown offer kind", apperror.ErrNoPendingOffer)
}

func (that *Server) handleOffer(ctx context.Context, client *Client, msg *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	kind, err := parseOfferKind(msg.Payload)
	if err != nil {
		return nil, err
	}

	return nil, sess.Offer(ctx, seat, kind)
}

func (that *Server) handleAcceptOffer(ctx context.Context, client *Client, msg *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	kind, err := parseOfferKind(msg.Payload)
	if err != nil {
		return nil, err
	}

	return nil, sess.AcceptOffer(ctx, seat, kind)
}

func (that *Server) handleRejectOffer(ctx context.Context, client *Client, msg *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	kind, err := parseOfferKind(msg.Payload)
	if err != nil {
		return nil, err
	}

	return nil, sess.RejectOffer(ctx, seat, kind)
}

func (that *Server) handleGiveTime(ctx context.Context, client *Client, msg *Message) (any, error) {
	sess, seat, err := client.playerSession()
	if err != nil {
		return nil, err
	}

	var payload GiveTimePayload
	if err = json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil, sess.GiveTime(ctx, seat, payload.Seconds)
}

func (that *Server) handleBotAttach(ctx context.Context, client *Client, msg *Message) (any, error) {
	log := that.logger.With("method", "handleBotAttach")

	var payload BotAttachPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sess, err := that.registry.Get(payload.GameID)
	if err != nil {
		return nil, err
	}

	seat, err := sess.AttachBot(ctx, payload.SeatToken, payload.SupportedGame, client)
	if err != nil {
		return nil, err
	}

	client.sess = sess
	client.seat = seat

	log.Info("bot attached",
		"gameID", payload.GameID,
		"bot", payload.Client.Name,
		"version", payload.Client.Version,
	)

	return map[string]int{"seat": seat}, nil
}

func (that *Server) handleBotResponse(ctx context.Context, client *Client, msg *Message) (any, error) {
	if client.sess == nil {
		return nil, apperror.ErrSessionNotFound
	}

	var payload BotResponsePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return nil, client.sess.BotRespond(ctx, payload.RequestID, payload.Action)
}
