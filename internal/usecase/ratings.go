package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	DefaultRatingsSchedule = "@daily"
	DefaultRatingsSpacing  = time.Second
)

// RatingRefresher re-fetches titles stored without a rating and fills in
// whatever the providers now report.
type RatingRefresher struct {
	Titles   ports.TitleRepository
	Enricher *Enricher
	// Spacing separates provider lookups.
	Spacing    time.Duration
	Invalidate func()
	Logger     *slog.Logger
}

// RefreshMissing runs one pass and returns how many titles changed.
func (r *RatingRefresher) RefreshMissing(ctx context.Context) (int, error) {
	titles, err := r.Titles.ListMissingRating(ctx)
	if err != nil {
		return 0, wrapRepo(err)
	}
	spacing := r.Spacing
	if spacing <= 0 {
		spacing = DefaultRatingsSpacing
	}

	updated := 0
	for i, t := range titles {
		if i > 0 {
			if err := sleepCtx(ctx, spacing); err != nil {
				return updated, err
			}
		}
		info, err := r.Enricher.FetchInfo(ctx, t.TMDBType, t.TMDBID)
		if err != nil {
			r.logger().Warn("rating refresh failed",
				slog.Int64("tmdbId", t.TMDBID),
				slog.String("tmdbType", string(t.TMDBType)),
				slog.String("error", err.Error()),
			)
			continue
		}
		patch := patchFromInfo(info)
		if patch.Empty() {
			continue
		}
		if err := r.Titles.Update(ctx, t.TMDBID, t.TMDBType, patch); err != nil {
			r.logger().Warn("rating update failed",
				slog.Int64("tmdbId", t.TMDBID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}
	if updated > 0 && r.Invalidate != nil {
		r.Invalidate()
	}
	r.logger().Info("rating refresh finished",
		slog.Int("candidates", len(titles)),
		slog.Int("updated", updated),
	)
	return updated, nil
}

// Schedule runs RefreshMissing on the cron spec until ctx ends. The returned
// cron is already started.
func (r *RatingRefresher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = DefaultRatingsSchedule
	}
	logger := cronLogger{r.logger()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.RefreshMissing(ctx); err != nil {
			r.logger().Error("rating refresh aborted", slog.String("error", err.Error()))
		}
	}); err != nil {
		return nil, fmt.Errorf("ratings schedule %q: %w", spec, err)
	}
	c.Start()
	context.AfterFunc(ctx, func() { c.Stop() })
	return c, nil
}

// patchFromInfo keeps only the fields the provider actually returned.
func patchFromInfo(info domain.TitleInfo) domain.TitlePatch {
	var p domain.TitlePatch
	if info.Rating > 0 {
		p.Rating = &info.Rating
	}
	if info.Plot != "" {
		p.Plot = &info.Plot
	}
	if info.Title != "" {
		p.Title = &info.Title
	}
	if info.Year != "" {
		p.Year = &info.Year
	}
	if info.PosterPath != "" {
		p.PosterPath = &info.PosterPath
	}
	if info.TrailerURL != "" {
		p.TrailerURL = &info.TrailerURL
	}
	if info.IMDBID != "" {
		p.IMDBID = &info.IMDBID
	}
	return p
}

func (r *RatingRefresher) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
