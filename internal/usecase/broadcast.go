package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	nowAvailableSuffix   = "\n\n✅ <b>Now Available!</b>"
	broadcastStatusEvery = 10
)

// BroadcastRequest copies one message to every registered user.
type BroadcastRequest struct {
	FromChatID int64
	MessageID  int64
	// Caption replaces the copied caption. With NowAvailable set it gets the
	// availability suffix.
	Caption      string
	NowAvailable bool
	// StatusChat receives the progress message. Zero disables it.
	StatusChat int64
}

type Broadcaster struct {
	Users     ports.UserRepository
	Transport ports.Transport
	Ops       *Operations
	Logger    *slog.Logger
}

// Start launches the broadcast. Only one broadcast runs at a time; a second
// call fails with ErrBusy.
func (b *Broadcaster) Start(ctx context.Context, req BroadcastRequest) (*Operation, error) {
	if req.FromChatID == 0 || req.MessageID <= 0 {
		return nil, fmt.Errorf("%w: broadcast needs a source message", domain.ErrInvalidLink)
	}
	return b.Ops.Start(OpBroadcast, true, func(ctx context.Context, op *Operation) error {
		return b.run(ctx, op, req)
	})
}

func (b *Broadcaster) run(ctx context.Context, op *Operation, req BroadcastRequest) error {
	users, err := b.Users.ListIDs(ctx)
	if err != nil {
		return wrapRepo(err)
	}
	op.AddTotal(int64(len(users)))

	caption := req.Caption
	if req.NowAvailable {
		caption += nowAvailableSuffix
	}
	opts := ports.CopyOptions{Caption: caption}

	var statusID int64
	if req.StatusChat != 0 {
		statusID, err = b.Transport.SendMessage(ctx, req.StatusChat, broadcastStatus(op, "📢 Broadcast in progress..."))
		if err != nil {
			b.logger().Warn("broadcast status failed", slog.String("error", err.Error()))
		}
	}

	for i, userID := range users {
		if ctx.Err() != nil {
			break
		}
		_, err := b.Transport.CopyMessage(ctx, userID, req.FromChatID, req.MessageID, opts)
		switch {
		case err == nil:
			op.Succeed()
		case errors.Is(err, domain.ErrRecipientGone):
			if delErr := b.Users.Delete(ctx, userID); delErr != nil {
				b.logger().Warn("remove user failed",
					slog.Int64("userId", userID),
					slog.String("error", delErr.Error()),
				)
			}
			op.Remove()
		default:
			op.Fail()
			b.logger().Debug("broadcast copy failed",
				slog.Int64("userId", userID),
				slog.String("error", err.Error()),
			)
		}
		if statusID != 0 && (i+1)%broadcastStatusEvery == 0 {
			b.edit(ctx, req.StatusChat, statusID, broadcastStatus(op, "📢 Broadcast in progress..."))
		}
	}

	head := "✅ Broadcast completed"
	if ctx.Err() != nil {
		head = "🛑 Broadcast cancelled"
	}
	if statusID != 0 {
		b.edit(context.WithoutCancel(ctx), req.StatusChat, statusID, broadcastStatus(op, head))
	}
	return ctx.Err()
}

func (b *Broadcaster) edit(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.Transport.EditMessageText(ctx, chatID, messageID, text); err != nil {
		b.logger().Warn("broadcast status failed", slog.String("error", err.Error()))
	}
}

func (b *Broadcaster) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func broadcastStatus(op *Operation, head string) string {
	s := op.Status()
	return fmt.Sprintf("%s\n\nTotal Users: %d\nSent: %d\nFailed: %d\nRemoved: %d",
		head, s.Total, s.Succeeded, s.Failed, s.Removed)
}
