package ports

import (
	"context"

	"mediashare/internal/domain"
)

type MediaRepository interface {
	// Upsert writes a record keyed by (ChannelID, MessageID) and reports
	// whether it was newly inserted.
	Upsert(ctx context.Context, rec domain.MediaRecord) (bool, error)
	Get(ctx context.Context, id string) (domain.MediaRecord, error)
	GetByMessage(ctx context.Context, channelID, messageID int64) (domain.MediaRecord, error)
	FindByFileName(ctx context.Context, fileName string) (domain.MediaRecord, error)
	SetTitle(ctx context.Context, channelID, messageID int64, link domain.TitleLink) error
	LinkFiles(ctx context.Context, ids []string, link domain.TitleLink) (int64, error)
	SetPoster(ctx context.Context, id, posterURL string) error
	UnlinkTitle(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (int64, error)
	RebindByFileName(ctx context.Context, fileName string, channelID, messageID int64) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByMessage(ctx context.Context, channelID, messageID int64) error
	DeleteRange(ctx context.Context, channelID, fromID, toID int64) (int64, error)
	ListTitleFiles(ctx context.Context, q domain.TitleFilesQuery) ([]domain.MediaRecord, int64, error)
	List(ctx context.Context, filter domain.FileFilter, ascending bool, p domain.Pagination) ([]domain.MediaRecord, int64, error)
	Search(ctx context.Context, text string, filter domain.FileFilter, p domain.Pagination) ([]domain.MediaRecord, int64, error)
	TotalSize(ctx context.Context) (int64, error)
	CountByChannel(ctx context.Context) ([]domain.ChannelCount, error)
}

type TitleRepository interface {
	Get(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleRecord, error)
	// Upsert writes a record keyed by (TMDBID, TMDBType) and reports whether
	// it was newly inserted.
	Upsert(ctx context.Context, t domain.TitleRecord) (bool, error)
	Update(ctx context.Context, tmdbID int64, tmdbType domain.TitleType, patch domain.TitlePatch) error
	Delete(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) error
	List(ctx context.Context, q domain.TitleQuery) ([]domain.TitleRecord, int64, error)
	Details(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleDetails, error)
	// Each visits titles in insertion order, starting after afterID when set.
	Each(ctx context.Context, afterID string, fn func(domain.TitleRecord) error) error
	ListMissingRating(ctx context.Context) ([]domain.TitleRecord, error)
}

type EntityRepository interface {
	FindByName(ctx context.Context, category domain.EntityCategory, name string) (domain.Entity, error)
	Insert(ctx context.Context, category domain.EntityCategory, e domain.Entity) (string, error)
	Get(ctx context.Context, category domain.EntityCategory, id string) (domain.Entity, error)
	GetMany(ctx context.Context, category domain.EntityCategory, ids []string) ([]domain.Entity, error)
}

type TokenRepository interface {
	Insert(ctx context.Context, t domain.AccessToken) error
	Get(ctx context.Context, tokenID string) (domain.AccessToken, error)
	// FindActive returns an unexpired token for the user, or ErrNotFound.
	FindActive(ctx context.Context, userID int64) (domain.AccessToken, error)
}

type UserRepository interface {
	// Register inserts the user on first sight and reports whether it was new.
	Register(ctx context.Context, u domain.User) (domain.User, bool, error)
	Get(ctx context.Context, userID int64) (domain.User, error)
	Authorize(ctx context.Context, userID int64) error
	SetBlocked(ctx context.Context, userID int64, blocked bool) error
	Delete(ctx context.Context, userID int64) error
	ListIDs(ctx context.Context) ([]int64, error)
	// IncrementFileCount bumps the per-day counter, resetting it when day changes,
	// and returns the new count.
	IncrementFileCount(ctx context.Context, userID int64, day string) (int, error)
	Count(ctx context.Context) (total int64, authorized int64, err error)
}

type ChannelRepository interface {
	List(ctx context.Context) ([]domain.Channel, error)
	Add(ctx context.Context, c domain.Channel) error
	Remove(ctx context.Context, channelID int64) error
}
