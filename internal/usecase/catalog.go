package usecase

import (
	"context"
	"fmt"
	"strings"

	"mediashare/internal/cache"
	"mediashare/internal/domain"
	"mediashare/internal/domain/ports"
)

const (
	MediaPageSize  = 10
	OthersPageSize = 12
	FilesPageSize  = 10
)

// TitleDetailsView is a title with entity references resolved and, for
// movies, a page of its files.
type TitleDetailsView struct {
	domain.TitleRecord
	PosterURL string                           `json:"poster_url,omitempty"`
	Genres    []domain.Entity                  `json:"genres"`
	Cast      []domain.Entity                  `json:"cast"`
	Directors []domain.Entity                  `json:"directors"`
	Languages []domain.Entity                  `json:"spoken_languages"`
	Files     *domain.Page[domain.MediaRecord] `json:"files,omitempty"`
}

// OthersQuery lists files outside the metadata-eligible channels.
type OthersQuery struct {
	Search string
	// Oldest flips the default newest-first order.
	Oldest     bool
	Pagination domain.Pagination
}

// Catalog serves the read side. Every result is cached under a key built
// from all query-shaping parameters.
type Catalog struct {
	Media        ports.MediaRepository
	Titles       ports.TitleRepository
	Entities     ports.EntityRepository
	Cache        *cache.QueryCache
	TMDBChannels []int64
	// StreamBase prefixes stream URLs, e.g. "https://example.org".
	StreamBase string
}

func (c Catalog) ListTitles(ctx context.Context, q domain.TitleQuery) (domain.Page[domain.TitleRecord], error) {
	q.Search = SanitizeQuery(q.Search)
	q.Pagination = domain.NewPagination(q.Pagination.Page, MediaPageSize)
	q.Sort = domain.ParseSortMode(string(q.Sort))
	key := fmt.Sprintf("media:%d:%s:%s:%s:%s:%s:%s",
		q.Pagination.Page, q.Search, q.Category, q.Sort, q.Genre, q.Cast, q.Director)

	return cache.Compute(c.Cache, key, func() (domain.Page[domain.TitleRecord], error) {
		items, total, err := c.Titles.List(ctx, q)
		if err != nil {
			return domain.Page[domain.TitleRecord]{}, wrapRepo(err)
		}
		return domain.NewPage(items, total, q.Pagination), nil
	})
}

// TitleDetails returns one title. Movies carry their files, paginated by
// file name with subtitles excluded.
func (c Catalog) TitleDetails(ctx context.Context, tmdbID int64, kind domain.TitleType, page int) (TitleDetailsView, error) {
	if !kind.Valid() {
		return TitleDetailsView{}, fmt.Errorf("%w: title type %q", domain.ErrInvalidRecord, kind)
	}
	p := domain.NewPagination(page, FilesPageSize)
	key := fmt.Sprintf("media_details:%d:%s:%d", tmdbID, kind, p.Page)

	return cache.Compute(c.Cache, key, func() (TitleDetailsView, error) {
		d, err := c.Titles.Details(ctx, tmdbID, kind)
		if err != nil {
			return TitleDetailsView{}, wrapRepo(err)
		}
		view := TitleDetailsView{
			TitleRecord: d.Title,
			PosterURL:   d.Title.PosterURL(),
			Genres:      nonNil(d.Genres),
			Cast:        nonNil(d.Cast),
			Directors:   nonNil(d.Directors),
			Languages:   nonNil(d.Languages),
		}
		if kind == domain.TitleMovie {
			files, err := c.titleFiles(ctx, domain.TitleFilesQuery{TMDBID: tmdbID, TMDBType: kind, Pagination: p})
			if err != nil {
				return TitleDetailsView{}, err
			}
			view.Files = &files
		}
		return view, nil
	})
}

func (c Catalog) SeasonFiles(ctx context.Context, tmdbID int64, season, page int) (domain.Page[domain.MediaRecord], error) {
	p := domain.NewPagination(page, FilesPageSize)
	key := fmt.Sprintf("season_files:%d:%d:%d", tmdbID, season, p.Page)
	return cache.Compute(c.Cache, key, func() (domain.Page[domain.MediaRecord], error) {
		return c.titleFiles(ctx, domain.TitleFilesQuery{
			TMDBID:       tmdbID,
			TMDBType:     domain.TitleTV,
			SeasonNumber: season,
			Pagination:   p,
		})
	})
}

func (c Catalog) titleFiles(ctx context.Context, q domain.TitleFilesQuery) (domain.Page[domain.MediaRecord], error) {
	files, total, err := c.Media.ListTitleFiles(ctx, q)
	if err != nil {
		return domain.Page[domain.MediaRecord]{}, wrapRepo(err)
	}
	return domain.NewPage(c.withStreamURLs(files), total, q.Pagination), nil
}

// Others lists files from non-eligible channels. With search text it runs
// the ranked search pipeline; without, a plain sorted listing.
func (c Catalog) Others(ctx context.Context, q OthersQuery) (domain.Page[domain.MediaRecord], error) {
	q.Search = SanitizeQuery(q.Search)
	p := domain.NewPagination(q.Pagination.Page, OthersPageSize)
	order := "recent"
	if q.Oldest {
		order = "oldest"
	}
	key := fmt.Sprintf("others:%d:%s:%s", p.Page, q.Search, order)

	return cache.Compute(c.Cache, key, func() (domain.Page[domain.MediaRecord], error) {
		filter := domain.FileFilter{ExcludeChannels: c.TMDBChannels}
		var (
			files []domain.MediaRecord
			total int64
			err   error
		)
		if q.Search != "" {
			files, total, err = c.Media.Search(ctx, q.Search, filter, p)
		} else {
			files, total, err = c.Media.List(ctx, filter, q.Oldest, p)
		}
		if err != nil {
			return domain.Page[domain.MediaRecord]{}, wrapRepo(err)
		}
		return domain.NewPage(c.withStreamURLs(files), total, p), nil
	})
}

func (c Catalog) File(ctx context.Context, id string) (domain.MediaRecord, error) {
	rec, err := c.Media.Get(ctx, id)
	if err != nil {
		return domain.MediaRecord{}, wrapRepo(err)
	}
	rec.StreamURL = c.StreamURL(rec)
	return rec, nil
}

func (c Catalog) Entity(ctx context.Context, category domain.EntityCategory, id string) (domain.Entity, error) {
	if !category.Valid() {
		return domain.Entity{}, domain.ErrNotFound
	}
	e, err := c.Entities.Get(ctx, category, id)
	if err != nil {
		return domain.Entity{}, wrapRepo(err)
	}
	return e, nil
}

// StreamURL is the player link for a stored file.
func (c Catalog) StreamURL(rec domain.MediaRecord) string {
	return strings.TrimRight(c.StreamBase, "/") + "/player/" + domain.EncodeFileLink(rec.ChannelID, rec.MessageID)
}

func (c Catalog) withStreamURLs(files []domain.MediaRecord) []domain.MediaRecord {
	out := make([]domain.MediaRecord, len(files))
	for i, f := range files {
		f.StreamURL = c.StreamURL(f)
		out[i] = f
	}
	return out
}

// StoreQuery saves search text under a short id.
func (c Catalog) StoreQuery(text string) (string, error) {
	text = SanitizeQuery(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty query", domain.ErrInvalidRecord)
	}
	return c.Cache.StoreShort(text), nil
}

// ResolveQuery returns the text behind a short id, or "" when unknown.
func (c Catalog) ResolveQuery(id string) string {
	return c.Cache.ResolveShort(id)
}

func nonNil(es []domain.Entity) []domain.Entity {
	if es == nil {
		return []domain.Entity{}
	}
	return es
}
