package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const trailerButtonText = "🎥 Trailer"

// ErrAnnounceDisabled is returned when updates are off or the title has no
// poster to post.
var ErrAnnounceDisabled = errors.New("announcements disabled or poster missing")

// Announcer posts title cards to the updates channel.
type Announcer struct {
	Titles    ports.TitleRepository
	Transport ports.Transport
	ChannelID int64
	Enabled   bool
	// Delay is slept before each post.
	Delay  time.Duration
	Logger *slog.Logger
}

// AnnounceInfo posts a freshly fetched title.
func (a *Announcer) AnnounceInfo(ctx context.Context, info domain.TitleInfo) error {
	if !a.Enabled || info.PosterPath == "" {
		return nil
	}
	if err := sleepCtx(ctx, a.Delay); err != nil {
		return err
	}
	return a.post(ctx, domain.PosterBaseURL+info.PosterPath, DescribeInfo(info).Format(), info.TrailerURL)
}

// SendTitle posts a stored title.
func (a *Announcer) SendTitle(ctx context.Context, tmdbID int64, kind domain.TitleType) error {
	d, err := a.Titles.Details(ctx, tmdbID, kind)
	if err != nil {
		return wrapRepo(err)
	}
	if !a.Enabled || d.Title.PosterPath == "" {
		return ErrAnnounceDisabled
	}
	return a.post(ctx, d.Title.PosterURL(), DescribeDetails(d).Format(), d.Title.TrailerURL)
}

// SendAll posts every stored title in insertion order, starting after the
// given title when restartAfter is set. Titles without a poster are skipped.
func (a *Announcer) SendAll(ctx context.Context, restartAfter *domain.TitleLink) (int, error) {
	if !a.Enabled {
		return 0, ErrAnnounceDisabled
	}
	afterID := ""
	if restartAfter != nil {
		last, err := a.Titles.Get(ctx, restartAfter.TMDBID, restartAfter.TMDBType)
		switch {
		case err == nil:
			afterID = last.ID
		case !errors.Is(err, domain.ErrNotFound):
			return 0, wrapRepo(err)
		}
	}

	sent := 0
	err := a.Titles.Each(ctx, afterID, func(t domain.TitleRecord) error {
		if t.PosterPath == "" {
			return nil
		}
		d, err := a.Titles.Details(ctx, t.TMDBID, t.TMDBType)
		if err != nil {
			return wrapRepo(err)
		}
		if err := a.post(ctx, t.PosterURL(), DescribeDetails(d).Format(), t.TrailerURL); err != nil {
			a.logger().Warn("announce failed",
				slog.Int64("tmdbId", t.TMDBID),
				slog.String("error", err.Error()),
			)
		} else {
			sent++
		}
		return sleepCtx(ctx, a.Delay)
	})
	if err != nil {
		return sent, fmt.Errorf("send all: %w", err)
	}
	return sent, nil
}

func (a *Announcer) post(ctx context.Context, photoURL, caption, trailerURL string) error {
	var button *ports.URLButton
	if trailerURL != "" {
		button = &ports.URLButton{Text: trailerButtonText, URL: trailerURL}
	}
	return wrapTransport(a.Transport.SendPhoto(ctx, a.ChannelID, photoURL, caption, button))
}

func (a *Announcer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
