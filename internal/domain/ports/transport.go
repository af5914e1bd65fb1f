package ports

import (
	"context"

	"mediashare/internal/domain"
)

// URLButton is an inline button opening a URL.
type URLButton struct {
	Text string
	URL  string
}

// CopyOptions tune a message copy. An empty Caption keeps the original one.
type CopyOptions struct {
	Caption string
	Protect bool
}

type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, button *URLButton) error
	CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64, opts CopyOptions) (int64, error)
	// GetMessages returns the media messages among ids; missing or non-media
	// ids are skipped.
	GetMessages(ctx context.Context, chatID int64, ids []int64) ([]domain.RawEvent, error)
}
