package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

type WSHandler struct {
	service  *app.DuelService
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.DuelService, hub *Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Handle string `json:"handle"`
	Option string `json:"option"`
}

// ServeWS upgrades the request and turns inbound commands into duel operations.
// Outbound traffic for the participant flows through the hub.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := newClient()
	h.hub.attach(userID, c)
	defer func() {
		if h.hub.detach(userID, c) && h.service.Withdraw(context.Background(), userID) {
			h.logger.Info("withdrew disconnected participant", "participant", userID)
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Warn("ws write error", "participant", userID, "error", err)
					c.close()
					return
				}
			case <-c.done:
				_ = conn.Close()
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, c, userID, displayName, inbound)
	}

	c.close()
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *client, userID, displayName string, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		created, _, err := h.service.Register(ctx, userID, displayName)
		if err != nil {
			h.replyError(c, err)
			return
		}
		if created {
			h.reply(c, "notice", noticePayload{Text: welcomeText})
		} else {
			h.reply(c, "notice", noticePayload{Text: welcomeBackText})
		}
	case "duel":
		res, err := h.service.RequestDuel(ctx, userID, displayName)
		switch {
		case errors.Is(err, domain.ErrAlreadyQueued):
			h.reply(c, "notice", noticePayload{Text: alreadyWaitingText})
		case errors.Is(err, domain.ErrAlreadyInDuel):
			h.reply(c, "notice", noticePayload{Text: alreadyInDuelText})
		case errors.Is(err, domain.ErrBankExhausted):
			h.reply(c, "error", errorPayload{Message: bankExhaustedText})
		case err != nil:
			h.replyError(c, err)
		case res.Status == app.Enqueued:
			h.reply(c, "notice", noticePayload{Text: waitingText})
		}
	case "leaderboard":
		entries, err := h.service.Leaderboard(ctx)
		if err != nil {
			h.replyError(c, err)
			return
		}
		h.reply(c, "leaderboard", leaderboardPayload{Entries: entries, Text: leaderboardText(entries)})
	case "rating":
		card, err := h.service.Rating(ctx, userID)
		if errors.Is(err, domain.ErrNotRegistered) {
			h.reply(c, "notice", noticePayload{Text: notRegisteredText})
			return
		}
		if err != nil {
			h.replyError(c, err)
			return
		}
		h.reply(c, "rating", ratingPayload{Rating: card.Rating, Title: card.Title, Text: ratingText(card)})
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(c, "error", errorPayload{Message: "invalid answer payload"})
			return
		}
		err := h.service.SubmitAnswer(ctx, userID, payload.Option, payload.Handle)
		switch {
		case errors.Is(err, domain.ErrStaleAnswer):
			h.logger.Debug("ignored stale answer", "participant", userID, "handle", payload.Handle)
		case errors.Is(err, domain.ErrNotInDuel):
			h.reply(c, "notice", noticePayload{Text: noDuelText})
		case err != nil:
			h.replyError(c, err)
		}
	default:
		h.reply(c, "error", errorPayload{Message: "unsupported message type"})
	}
}

func (h *WSHandler) reply(c *client, typ string, payload any) {
	if err := c.enqueue(outboundMessage[any]{Type: typ, Payload: payload}); err != nil {
		h.logger.Warn("dropped reply", "type", typ, "error", err)
	}
}

func (h *WSHandler) replyError(c *client, err error) {
	h.logger.Error("request failed", "error", err)
	h.reply(c, "error", errorPayload{Message: err.Error()})
}
