package telegram

import (
	"strings"

	"mediashare/internal/domain"
)

// Update is the subset of a Bot API update delivered to the webhook.
type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message,omitempty"`
	ChannelPost *Message `json:"channel_post,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type File struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type Audio struct {
	File
	Title     string `json:"title,omitempty"`
	Performer string `json:"performer,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	Chat      Chat        `json:"chat"`
	From      *User       `json:"from,omitempty"`
	Date      int64       `json:"date"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Document  *File       `json:"document,omitempty"`
	Video     *File       `json:"video,omitempty"`
	Audio     *Audio      `json:"audio,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

func (m *Message) IsPrivate() bool {
	return m != nil && m.Chat.Type == "private"
}

// Command splits a "/cmd arg" text into its command and argument. The bot
// username suffix ("/start@bot") is dropped.
func (m *Message) Command() (string, string) {
	if m == nil || !strings.HasPrefix(m.Text, "/") {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(m.Text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.TrimPrefix(cmd, "/"), strings.TrimSpace(arg)
}

// RawEvent converts a media message into the transport-neutral event.
// Messages without media report false. The event keeps chatID and
// messageID as its identity, which may differ from the message's own when
// it is a forwarded copy.
func (m *Message) RawEvent(chatID, messageID int64) (domain.RawEvent, bool) {
	if m == nil {
		return domain.RawEvent{}, false
	}
	ev := domain.RawEvent{ChannelID: chatID, MessageID: messageID, Caption: m.Caption}
	switch {
	case m.Document != nil:
		ev.Kind = domain.MediaDocument
		ev.FileName = m.Document.FileName
		ev.FileSize = m.Document.FileSize
	case m.Video != nil:
		ev.Kind = domain.MediaVideo
		ev.FileName = m.Video.FileName
		ev.FileSize = m.Video.FileSize
	case m.Audio != nil:
		ev.Kind = domain.MediaAudio
		ev.FileName = m.Audio.FileName
		ev.FileSize = m.Audio.FileSize
		if ev.FileName == "" && m.Audio.Title != "" {
			ev.FileName = strings.TrimSpace(m.Audio.Performer + " " + m.Audio.Title)
		}
	case len(m.Photo) > 0:
		ev.Kind = domain.MediaPhoto
		ev.FileSize = m.Photo[len(m.Photo)-1].FileSize
	default:
		return domain.RawEvent{}, false
	}
	return ev, true
}
