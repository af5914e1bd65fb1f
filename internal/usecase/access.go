package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	DefaultTokenTTL  = 24 * time.Hour
	StartTokenPrefix = "token_"
)

// Access owns user registration, deep-link tokens and per-user file sends.
type Access struct {
	Tokens    ports.TokenRepository
	Users     ports.UserRepository
	Media     ports.MediaRepository
	Transport ports.Transport
	OwnerID   int64
	TokenTTL  time.Duration
	// MaxFilesPerDay caps SendFile per user and UTC day. Zero disables it.
	MaxFilesPerDay int
	BotUsername    string
	Now            func() time.Time
	NewID          func() string
	Logger         *slog.Logger
}

// GenerateToken returns the user's unexpired token, minting one if needed.
func (a Access) GenerateToken(ctx context.Context, userID int64) (string, error) {
	active, err := a.Tokens.FindActive(ctx, userID)
	if err == nil {
		return active.TokenID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", wrapRepo(err)
	}
	tok := domain.AccessToken{
		TokenID: a.newID(),
		UserID:  userID,
		Expiry:  a.now().Add(a.ttl()),
	}
	if err := a.Tokens.Insert(ctx, tok); err != nil {
		return "", wrapRepo(err)
	}
	return tok.TokenID, nil
}

// IsValid reports whether tokenID is unexpired and belongs to userID.
func (a Access) IsValid(ctx context.Context, tokenID string, userID int64) (bool, error) {
	tok, err := a.Tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, wrapRepo(err)
	}
	return tok.ValidFor(userID, a.now()), nil
}

// Redeem authorizes userID with tokenID. The token is not consumed.
func (a Access) Redeem(ctx context.Context, tokenID string, userID int64) error {
	tok, err := a.Tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return wrapRepo(err)
	}
	if tok.UserID != userID {
		return domain.ErrInvalidToken
	}
	if !tok.ValidFor(userID, a.now()) {
		return domain.ErrExpired
	}
	if err := a.Users.Authorize(ctx, userID); err != nil {
		return wrapRepo(err)
	}
	a.logger().Info("user authorized", slog.Int64("userId", userID))
	return nil
}

// Register records a user on first contact.
func (a Access) Register(ctx context.Context, u domain.User) (domain.User, bool, error) {
	if u.Joined.IsZero() {
		u.Joined = a.now()
	}
	if err := domain.Validate(u); err != nil {
		return domain.User{}, false, err
	}
	stored, created, err := a.Users.Register(ctx, u)
	if err != nil {
		return domain.User{}, false, wrapRepo(err)
	}
	return stored, created, nil
}

// VerifyLink is the bot deep link that redeems the user's token.
func (a Access) VerifyLink(ctx context.Context, userID int64) (string, error) {
	tokenID, err := a.GenerateToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://t.me/%s?start=%s%s", strings.TrimPrefix(a.BotUsername, "@"), StartTokenPrefix, tokenID), nil
}

// Authenticate resolves a "Bearer <user id>" header to an authorized user.
func (a Access) Authenticate(ctx context.Context, header string) (int64, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return 0, domain.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidToken
	}
	if err := a.requireAuthorized(ctx, userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// Login returns the bearer token for an authorized user.
func (a Access) Login(ctx context.Context, userID int64) (string, error) {
	if err := a.requireAuthorized(ctx, userID); err != nil {
		return "", err
	}
	return strconv.FormatInt(userID, 10), nil
}

func (a Access) requireAuthorized(ctx context.Context, userID int64) error {
	if userID == a.OwnerID && a.OwnerID != 0 {
		return nil
	}
	u, err := a.Users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrForbidden
		}
		return wrapRepo(err)
	}
	if !u.Authorized || u.Blocked {
		return domain.ErrForbidden
	}
	return nil
}

func (a Access) IsAdmin(userID int64) bool {
	return a.OwnerID != 0 && userID == a.OwnerID
}

func (a Access) Me(ctx context.Context, userID int64) (domain.User, error) {
	u, err := a.Users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, wrapRepo(err)
	}
	return u, nil
}

// SendFile copies a stored file to the user as a protected message.
func (a Access) SendFile(ctx context.Context, userID int64, fileID string) error {
	day := a.now().UTC().Format(time.DateOnly)
	if a.MaxFilesPerDay > 0 {
		u, err := a.Users.Get(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return wrapRepo(err)
		}
		if u.CountDay == day && u.FileCount >= a.MaxFilesPerDay {
			return fmt.Errorf("%w: daily limit of %d files", domain.ErrLimitReached, a.MaxFilesPerDay)
		}
	}
	rec, err := a.Media.Get(ctx, fileID)
	if err != nil {
		return wrapRepo(err)
	}
	_, err = a.Transport.CopyMessage(ctx, userID, rec.ChannelID, rec.MessageID, ports.CopyOptions{
		Caption: "<b>" + html.EscapeString(rec.FileName) + "</b>",
		Protect: true,
	})
	if err != nil {
		return wrapTransport(err)
	}
	if _, err := a.Users.IncrementFileCount(ctx, userID, day); err != nil {
		a.logger().Warn("file count update failed",
			slog.Int64("userId", userID),
			slog.String("error", err.Error()),
		)
	}
	a.logger().Info("file sent",
		slog.Int64("userId", userID),
		slog.Int64("channelId", rec.ChannelID),
		slog.Int64("messageId", rec.MessageID),
	)
	return nil
}

func (a Access) ttl() time.Duration {
	if a.TokenTTL > 0 {
		return a.TokenTTL
	}
	return DefaultTokenTTL
}

func (a Access) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a Access) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a Access) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
