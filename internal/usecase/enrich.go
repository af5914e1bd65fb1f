package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
	"mediashare/internal/metrics"
	"mediashare/internal/telemetry"
)

// ensureTitleTimeout bounds one shared title creation, announcement included.
const ensureTitleTimeout = 2 * time.Minute

// TitleAnnouncer publishes a newly created title.
type TitleAnnouncer interface {
	AnnounceInfo(ctx context.Context, info domain.TitleInfo) error
}

// Enricher links file names to canonical titles, creating TitleRecords from
// the metadata provider on first sight.
type Enricher struct {
	Titles    ports.TitleRepository
	Provider  ports.MetadataProvider
	Ratings   ports.RatingProvider
	Resolver  EntityResolver
	Announcer TitleAnnouncer
	Logger    *slog.Logger
	Now       func() time.Time

	group singleflight.Group
}

type ensureResult struct {
	record  domain.TitleRecord
	info    domain.TitleInfo
	created bool
}

// Enrich parses fileName, finds the matching title and makes sure a
// TitleRecord exists for it. A miss returns ok=false and no error.
func (e *Enricher) Enrich(ctx context.Context, fileName string) (domain.TitleLink, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "enrich")
	var spanErr error
	defer func() { telemetry.EndSpan(span, spanErr) }()

	rel := ParseReleaseName(fileName)
	if rel.Title == "" {
		metrics.EnrichmentTotal.WithLabelValues("unparsed").Inc()
		return domain.TitleLink{}, false, nil
	}

	var (
		id    int64
		found bool
		err   error
		kind  = domain.TitleMovie
	)
	if rel.IsEpisode() {
		kind = domain.TitleTV
		id, found, err = e.Provider.SearchTV(ctx, rel.Title, rel.Year)
	} else {
		id, found, err = e.Provider.SearchMovie(ctx, rel.Title, rel.Year)
	}
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues("error").Inc()
		spanErr = wrapProvider(err)
		return domain.TitleLink{}, false, spanErr
	}
	if !found {
		metrics.EnrichmentTotal.WithLabelValues("miss").Inc()
		e.logger().Debug("no metadata match",
			slog.String("fileName", fileName),
			slog.String("title", rel.Title),
			slog.Int("year", rel.Year),
		)
		return domain.TitleLink{}, false, nil
	}

	if _, _, err := e.EnsureTitle(ctx, kind, id); err != nil {
		metrics.EnrichmentTotal.WithLabelValues("error").Inc()
		spanErr = err
		return domain.TitleLink{}, false, err
	}
	metrics.EnrichmentTotal.WithLabelValues("linked").Inc()
	return domain.TitleLink{TMDBID: id, TMDBType: kind, SeasonNumber: rel.Season}, true, nil
}

// EnsureTitle returns the stored title, creating it from the provider when
// absent. Concurrent calls for one title share a single fetch.
func (e *Enricher) EnsureTitle(ctx context.Context, kind domain.TitleType, id int64) (domain.TitleRecord, bool, error) {
	existing, err := e.Titles.Get(ctx, id, kind)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.TitleRecord{}, false, wrapRepo(err)
	}

	key := string(kind) + ":" + strconv.FormatInt(id, 10)
	ch := e.group.DoChan(key, func() (any, error) {
		// Detached from the caller: every waiter shares this run.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ensureTitleTimeout)
		defer cancel()
		if rec, err := e.Titles.Get(ctx, id, kind); err == nil {
			return ensureResult{record: rec}, nil
		}
		rec, info, err := e.BuildTitle(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		created, err := e.Titles.Upsert(ctx, rec)
		if err != nil {
			return nil, wrapRepo(err)
		}
		if created {
			e.onCreated(ctx, rec, info)
		}
		return ensureResult{record: rec, info: info, created: created}, nil
	})
	select {
	case <-ctx.Done():
		return domain.TitleRecord{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return domain.TitleRecord{}, false, r.Err
		}
		res := r.Val.(ensureResult)
		return res.record, res.created, nil
	}
}

// onCreated runs once per created title, inside the shared computation.
func (e *Enricher) onCreated(ctx context.Context, rec domain.TitleRecord, info domain.TitleInfo) {
	metrics.EnrichmentTotal.WithLabelValues("created").Inc()
	e.logger().Info("title created",
		slog.Int64("tmdbId", rec.TMDBID),
		slog.String("tmdbType", string(rec.TMDBType)),
		slog.String("title", rec.Title),
	)
	if e.Announcer == nil {
		return
	}
	if err := e.Announcer.AnnounceInfo(ctx, info); err != nil {
		e.logger().Warn("announce failed",
			slog.Int64("tmdbId", rec.TMDBID),
			slog.String("error", err.Error()),
		)
	}
}

// BuildTitle fetches provider details and the secondary rating, then
// resolves entity references into a TitleRecord ready for upsert.
func (e *Enricher) BuildTitle(ctx context.Context, kind domain.TitleType, id int64) (domain.TitleRecord, domain.TitleInfo, error) {
	info, err := e.FetchInfo(ctx, kind, id)
	if err != nil {
		return domain.TitleRecord{}, domain.TitleInfo{}, err
	}
	rec, err := e.recordFromInfo(ctx, info)
	if err != nil {
		return domain.TitleRecord{}, domain.TitleInfo{}, err
	}
	return rec, info, nil
}

// FetchInfo merges provider details with the secondary rating source. The
// secondary rating and plot win when present.
func (e *Enricher) FetchInfo(ctx context.Context, kind domain.TitleType, id int64) (domain.TitleInfo, error) {
	info, err := e.Provider.Details(ctx, kind, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TitleInfo{}, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
		}
		return domain.TitleInfo{}, wrapProvider(err)
	}
	if e.Ratings != nil && info.IMDBID != "" {
		extra, err := e.Ratings.Lookup(ctx, info.IMDBID)
		if err != nil {
			e.logger().Warn("secondary rating lookup failed",
				slog.String("imdbId", info.IMDBID),
				slog.String("error", err.Error()),
			)
		} else {
			if extra.Rating > 0 {
				info.Rating = extra.Rating
			}
			if extra.Plot != "" {
				info.Plot = extra.Plot
			}
		}
	}
	info.Plot = TruncatePlot(info.Plot)
	if len(info.Cast) > 5 {
		info.Cast = info.Cast[:5]
	}
	if len(info.Directors) > 5 {
		info.Directors = info.Directors[:5]
	}
	return info, nil
}

func (e *Enricher) recordFromInfo(ctx context.Context, info domain.TitleInfo) (domain.TitleRecord, error) {
	genres, err := e.Resolver.ResolveNames(ctx, domain.EntityGenre, info.Genres)
	if err != nil {
		return domain.TitleRecord{}, err
	}
	cast, err := e.Resolver.ResolvePeople(ctx, domain.EntityStar, info.Cast)
	if err != nil {
		return domain.TitleRecord{}, err
	}
	directors, err := e.Resolver.ResolvePeople(ctx, domain.EntityDirector, info.Directors)
	if err != nil {
		return domain.TitleRecord{}, err
	}
	languages, err := e.Resolver.ResolveNames(ctx, domain.EntityLanguage, info.Languages)
	if err != nil {
		return domain.TitleRecord{}, err
	}
	return domain.TitleRecord{
		TMDBID:     info.TMDBID,
		TMDBType:   info.TMDBType,
		Title:      info.Title,
		Year:       info.Year,
		Rating:     info.Rating,
		Plot:       info.Plot,
		PosterPath: info.PosterPath,
		TrailerURL: info.TrailerURL,
		IMDBID:     info.IMDBID,
		Runtime:    info.Runtime,
		Adult:      info.Adult,
		Genres:     genres,
		Cast:       cast,
		Directors:  directors,
		Languages:  languages,
		Seasons:    info.Seasons,
		UpdatedAt:  e.now(),
	}, nil
}

func (e *Enricher) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Enricher) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
