package apihttp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/telegram"
	"mediashare/internal/usecase"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleWebhook accepts Bot API updates. Processing failures are logged and
// acknowledged with 200 so the sender does not redeliver them.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if s.ingest == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "webhook not configured")
		return
	}
	if s.webhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid update")
		return
	}

	switch {
	case update.ChannelPost != nil:
		s.handleChannelPost(r.Context(), update.ChannelPost)
	case update.Message != nil && update.Message.IsPrivate():
		s.handlePrivateMessage(r.Context(), update.Message)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleChannelPost(ctx context.Context, msg *telegram.Message) {
	ev, ok := msg.RawEvent(msg.Chat.ID, msg.MessageID)
	if !ok {
		return
	}
	channels, err := s.channels.List(ctx)
	if err != nil {
		s.logger.Error("channel lookup failed",
			slog.Int64("channelId", msg.Chat.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !slices.ContainsFunc(channels, func(c domain.Channel) bool { return c.ChannelID == msg.Chat.ID }) {
		s.logger.Debug("ignoring post from unknown channel", slog.Int64("channelId", msg.Chat.ID))
		return
	}
	// Malformed events are logged by the queue.
	_ = s.ingest.Enqueue(ev, usecase.EnqueueOptions{})
}

func (s *Server) handlePrivateMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	cmd, arg := msg.Command()
	if cmd != "start" {
		return
	}

	user, created, err := s.access.Register(ctx, domain.User{
		UserID:    msg.From.ID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.Username,
	})
	if err != nil {
		s.logger.Error("user registration failed",
			slog.Int64("userId", msg.From.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if created {
		s.reportNewUser(ctx, user)
	}
	if user.Blocked {
		return
	}

	if strings.HasPrefix(arg, usecase.StartTokenPrefix) {
		s.redeemToken(ctx, msg.Chat.ID, user.UserID, strings.TrimPrefix(arg, usecase.StartTokenPrefix))
		return
	}

	text := fmt.Sprintf("Hi <b>%s</b>! 👋\n\nThanks for hopping in! 😄\nWe will reach out to you soon.",
		html.EscapeString(user.FirstName))
	if !user.Authorized && !s.access.IsAdmin(user.UserID) {
		link, err := s.access.VerifyLink(ctx, user.UserID)
		if err != nil {
			s.logger.Error("verify link failed",
				slog.Int64("userId", user.UserID),
				slog.String("error", err.Error()),
			)
		} else {
			text += "\n\n🗝️ Verify: " + link
		}
	}
	s.reply(ctx, msg.Chat.ID, text)
}

func (s *Server) redeemToken(ctx context.Context, chatID, userID int64, tokenID string) {
	err := s.access.Redeem(ctx, tokenID, userID)
	switch {
	case err == nil:
		s.reply(ctx, chatID, fmt.Sprintf("✅ User 🆔: <code>%d</code> Authorised", userID))
		if s.logChannelID != 0 {
			s.reply(ctx, s.logChannelID, fmt.Sprintf("✅ Authorized: <code>%d</code>", userID))
		}
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpired):
		s.reply(ctx, chatID, "❌ Invalid or expired access key. Please get a new one.")
	default:
		s.logger.Error("token redemption failed",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) reportNewUser(ctx context.Context, u domain.User) {
	if s.logChannelID == 0 {
		return
	}
	text := fmt.Sprintf("👤 New user added:\nID: <code>%d</code>\nFirst Name: <b>%s</b>\n",
		u.UserID, html.EscapeString(u.FirstName))
	if u.Username != "" {
		text += "Username: @" + u.Username + "\n"
	}
	s.reply(ctx, s.logChannelID, text)
}

func (s *Server) reply(ctx context.Context, chatID int64, text string) {
	if s.replier == nil {
		return
	}
	if _, err := s.replier.SendMessage(ctx, chatID, text); err != nil {
		s.logger.Warn("reply failed",
			slog.Int64("chatId", chatID),
			slog.String("error", err.Error()),
		)
	}
}
