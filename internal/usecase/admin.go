package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	AdminTitlesPageSize = 10
	AdminFilesPageSize  = 10
)

// Admin holds the owner's catalog edits. Every mutation invalidates the
// query cache.
type Admin struct {
	Media     ports.MediaRepository
	Titles    ports.TitleRepository
	Channels  ports.ChannelRepository
	Users     ports.UserRepository
	Enricher  *Enricher
	Announcer *Announcer
	Ops       *Operations
	// Invalidate drops every cached catalog page.
	Invalidate func()
	Logger     *slog.Logger
}

// AdminTitleQuery filters the owner's title list.
type AdminTitleQuery struct {
	Search string
	Type   domain.TitleType
	Page   int
}

func (a *Admin) ListTitles(ctx context.Context, q AdminTitleQuery) (domain.Page[domain.TitleRecord], error) {
	p := domain.NewPagination(q.Page, AdminTitlesPageSize)
	items, total, err := a.Titles.List(ctx, domain.TitleQuery{
		Search:     SanitizeQuery(q.Search),
		Category:   q.Type,
		Sort:       domain.SortRecent,
		Pagination: p,
	})
	if err != nil {
		return domain.Page[domain.TitleRecord]{}, wrapRepo(err)
	}
	return domain.NewPage(items, total, p), nil
}

func (a *Admin) Title(ctx context.Context, tmdbID int64, kind domain.TitleType) (domain.TitleRecord, error) {
	t, err := a.Titles.Get(ctx, tmdbID, kind)
	if err != nil {
		return domain.TitleRecord{}, wrapRepo(err)
	}
	return t, nil
}

func (a *Admin) Seasons(ctx context.Context, tmdbID int64) ([]domain.Season, error) {
	t, err := a.Titles.Get(ctx, tmdbID, domain.TitleTV)
	if err != nil {
		return nil, wrapRepo(err)
	}
	if t.Seasons == nil {
		return []domain.Season{}, nil
	}
	return t.Seasons, nil
}

// AddTitleRequest creates or refreshes a title and links files to it.
type AddTitleRequest struct {
	TMDBID       int64
	TMDBType     domain.TitleType
	FileIDs      []string
	SeasonNumber int
}

func (a *Admin) AddTitle(ctx context.Context, req AddTitleRequest) (domain.TitleRecord, error) {
	if req.TMDBID <= 0 || !req.TMDBType.Valid() {
		return domain.TitleRecord{}, fmt.Errorf("%w: tmdb id and type are required", domain.ErrInvalidRecord)
	}
	rec, _, err := a.Enricher.BuildTitle(ctx, req.TMDBType, req.TMDBID)
	if err != nil {
		return domain.TitleRecord{}, err
	}
	if _, err := a.Titles.Upsert(ctx, rec); err != nil {
		return domain.TitleRecord{}, wrapRepo(err)
	}
	if len(req.FileIDs) > 0 {
		link := domain.TitleLink{TMDBID: req.TMDBID, TMDBType: req.TMDBType}
		if req.TMDBType == domain.TitleTV {
			link.SeasonNumber = req.SeasonNumber
		}
		n, err := a.Media.LinkFiles(ctx, req.FileIDs, link)
		if err != nil {
			return domain.TitleRecord{}, wrapRepo(err)
		}
		a.logger().Info("files linked",
			slog.Int64("tmdbId", req.TMDBID),
			slog.Int64("files", n),
		)
	}
	a.invalidate()
	return rec, nil
}

func (a *Admin) UpdateTitle(ctx context.Context, tmdbID int64, kind domain.TitleType, patch domain.TitlePatch) error {
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidRecord)
	}
	if patch.Rating != nil && (*patch.Rating < 0 || *patch.Rating > 10) {
		return fmt.Errorf("%w: rating must be between 0 and 10", domain.ErrInvalidRecord)
	}
	if err := a.Titles.Update(ctx, tmdbID, kind, patch); err != nil {
		return wrapRepo(err)
	}
	a.invalidate()
	return nil
}

// DeleteTitle removes the title and detaches every file that pointed at it.
func (a *Admin) DeleteTitle(ctx context.Context, tmdbID int64, kind domain.TitleType) error {
	if err := a.Titles.Delete(ctx, tmdbID, kind); err != nil {
		return wrapRepo(err)
	}
	n, err := a.Media.UnlinkTitle(ctx, tmdbID, kind)
	if err != nil {
		return wrapRepo(err)
	}
	a.logger().Info("title deleted",
		slog.Int64("tmdbId", tmdbID),
		slog.String("tmdbType", string(kind)),
		slog.Int64("unlinkedFiles", n),
	)
	a.invalidate()
	return nil
}

// AdminFileQuery filters the owner's file list.
type AdminFileQuery struct {
	Search    string
	Unlinked  bool
	ChannelID int64
	Page      int
}

func (a *Admin) ListFiles(ctx context.Context, q AdminFileQuery) (domain.Page[domain.MediaRecord], error) {
	p := domain.NewPagination(q.Page, AdminFilesPageSize)
	filter := domain.FileFilter{ChannelID: q.ChannelID, Unlinked: q.Unlinked}
	var (
		items []domain.MediaRecord
		total int64
		err   error
	)
	if search := SanitizeQuery(q.Search); search != "" {
		items, total, err = a.Media.Search(ctx, search, filter, p)
	} else {
		items, total, err = a.Media.List(ctx, filter, false, p)
	}
	if err != nil {
		return domain.Page[domain.MediaRecord]{}, wrapRepo(err)
	}
	return domain.NewPage(items, total, p), nil
}

func (a *Admin) SetPoster(ctx context.Context, fileID, posterURL string) error {
	posterURL = strings.TrimSpace(posterURL)
	if posterURL == "" {
		return fmt.Errorf("%w: poster url is required", domain.ErrInvalidRecord)
	}
	if err := a.Media.SetPoster(ctx, fileID, posterURL); err != nil {
		return wrapRepo(err)
	}
	a.invalidate()
	return nil
}

func (a *Admin) DeleteFile(ctx context.Context, fileID string) error {
	if err := a.Media.Delete(ctx, fileID); err != nil {
		return wrapRepo(err)
	}
	a.invalidate()
	return nil
}

// DeleteLink deletes what a link points at: a title for a TMDB link, one
// file for a message link.
func (a *Admin) DeleteLink(ctx context.Context, link string) error {
	if kind, id, err := domain.ParseTMDBLink(link); err == nil {
		return a.DeleteTitle(ctx, id, kind)
	}
	channelID, messageID, err := domain.ParseMessageLink(link)
	if err != nil {
		return err
	}
	if err := a.Media.DeleteByMessage(ctx, channelID, messageID); err != nil {
		return wrapRepo(err)
	}
	a.invalidate()
	return nil
}

func (a *Admin) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	channels, err := a.Channels.List(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return channels, nil
}

func (a *Admin) AddChannel(ctx context.Context, c domain.Channel) error {
	if err := domain.Validate(c); err != nil {
		return err
	}
	return wrapRepo(a.Channels.Add(ctx, c))
}

func (a *Admin) RemoveChannel(ctx context.Context, channelID int64) error {
	return wrapRepo(a.Channels.Remove(ctx, channelID))
}

func (a *Admin) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	if err := a.Users.SetBlocked(ctx, userID, blocked); err != nil {
		return wrapRepo(err)
	}
	a.logger().Info("user block changed", slog.Int64("userId", userID), slog.Bool("blocked", blocked))
	return nil
}

// Stats summarizes users, storage and per-channel file counts, largest
// channel first.
func (a *Admin) Stats(ctx context.Context) (domain.Stats, error) {
	total, authorized, err := a.Users.Count(ctx)
	if err != nil {
		return domain.Stats{}, wrapRepo(err)
	}
	size, err := a.Media.TotalSize(ctx)
	if err != nil {
		return domain.Stats{}, wrapRepo(err)
	}
	counts, err := a.Media.CountByChannel(ctx)
	if err != nil {
		return domain.Stats{}, wrapRepo(err)
	}
	channels, err := a.Channels.List(ctx)
	if err != nil {
		return domain.Stats{}, wrapRepo(err)
	}
	names := make(map[int64]string, len(channels))
	for _, c := range channels {
		names[c.ChannelID] = c.Name
	}
	for i := range counts {
		if name, ok := names[counts[i].ChannelID]; ok {
			counts[i].Name = name
		} else {
			counts[i].Name = "Unknown"
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if counts == nil {
		counts = []domain.ChannelCount{}
	}
	return domain.Stats{
		Users:           total,
		AuthorizedUsers: authorized,
		TotalFileSize:   size,
		Channels:        counts,
	}, nil
}

func (a *Admin) SendTitle(ctx context.Context, tmdbID int64, kind domain.TitleType) error {
	return a.Announcer.SendTitle(ctx, tmdbID, kind)
}

// SendAll announces every title as a background operation.
func (a *Admin) SendAll(restartAfter *domain.TitleLink) (*Operation, error) {
	if !a.Announcer.Enabled {
		return nil, ErrAnnounceDisabled
	}
	return a.Ops.Start(OpAnnounce, true, func(ctx context.Context, op *Operation) error {
		sent, err := a.Announcer.SendAll(ctx, restartAfter)
		op.AddTotal(int64(sent))
		for range sent {
			op.Succeed()
		}
		if errors.Is(err, context.Canceled) {
			return ctx.Err()
		}
		return err
	})
}

func (a *Admin) invalidate() {
	if a.Invalidate != nil {
		a.Invalidate()
	}
}

func (a *Admin) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
