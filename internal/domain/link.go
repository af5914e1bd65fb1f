package domain

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EncodeFileLink packs a channel/message pair into an opaque URL-safe token.
func EncodeFileLink(channelID, messageID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d_%d", channelID, messageID)))
}

// DecodeFileLink reverses EncodeFileLink. Padding is optional.
func DecodeFileLink(token string) (int64, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(token), "="))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	channel, message, ok := strings.Cut(string(raw), "_")
	if !ok {
		return 0, 0, ErrInvalidLink
	}
	channelID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidLink
	}
	messageID, err := strconv.ParseInt(message, 10, 64)
	if err != nil || messageID <= 0 {
		return 0, 0, ErrInvalidLink
	}
	return channelID, messageID, nil
}

// ParseMessageLink extracts the channel and message id from a private
// channel link of the form https://t.me/c/<internal id>/<message id>.
func ParseMessageLink(link string) (int64, int64, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return 0, 0, ErrInvalidLink
	}
	host := strings.TrimPrefix(u.Host, "www.")
	if host != "t.me" && host != "telegram.me" {
		return 0, 0, ErrInvalidLink
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "c" {
		return 0, 0, ErrInvalidLink
	}
	internal, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || internal <= 0 {
		return 0, 0, ErrInvalidLink
	}
	messageID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || messageID <= 0 {
		return 0, 0, ErrInvalidLink
	}
	channelID, err := strconv.ParseInt("-100"+parts[1], 10, 64)
	if err != nil {
		return 0, 0, ErrInvalidLink
	}
	return channelID, messageID, nil
}

// ParseTMDBLink accepts https://www.themoviedb.org/<movie|tv>/<id>[-slug].
func ParseTMDBLink(link string) (TitleType, int64, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || !strings.HasSuffix(u.Host, "themoviedb.org") {
		return "", 0, ErrInvalidLink
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", 0, ErrInvalidLink
	}
	typ := TitleType(parts[0])
	if !typ.Valid() {
		return "", 0, ErrInvalidLink
	}
	idPart, _, _ := strings.Cut(parts[1], "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, ErrInvalidLink
	}
	return typ, id, nil
}
