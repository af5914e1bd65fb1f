package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mediashare/internal/cache"
	"mediashare/internal/domain"
)

func newTestCatalog() (Catalog, *fakeMediaRepo, *fakeTitleRepo) {
	media := &fakeMediaRepo{}
	titles := &fakeTitleRepo{}
	return Catalog{
		Media:        media,
		Titles:       titles,
		Entities:     &fakeEntityRepo{},
		Cache:        cache.NewQueryCache(100, time.Minute),
		TMDBChannels: []int64{10},
		StreamBase:   "https://example.org/",
	}, media, titles
}

func TestListTitlesIsCachedUntilInvalidated(t *testing.T) {
	c, _, titles := newTestCatalog()
	ctx := context.Background()
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 1, TMDBType: domain.TitleMovie, Title: "Alpha"})

	q := domain.TitleQuery{Pagination: domain.Pagination{Page: 1}}
	for range 3 {
		page, err := c.ListTitles(ctx, q)
		if err != nil {
			t.Fatalf("ListTitles: %v", err)
		}
		if len(page.Items) != 1 || page.TotalPages != 1 || page.CurrentPage != 1 {
			t.Fatalf("unexpected page %+v", page)
		}
	}
	if titles.listed != 1 {
		t.Errorf("repository calls: got %d, want 1", titles.listed)
	}

	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 2, TMDBType: domain.TitleMovie, Title: "Beta"})
	c.Cache.InvalidateAll()
	page, err := c.ListTitles(ctx, q)
	if err != nil {
		t.Fatalf("ListTitles: %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("after invalidation: got %d items, want 2", len(page.Items))
	}
}

func TestListTitlesKeyCoversEveryParameter(t *testing.T) {
	c, _, titles := newTestCatalog()
	ctx := context.Background()
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 1, TMDBType: domain.TitleMovie, Title: "Alpha", Genres: []string{"g1"}})
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 2, TMDBType: domain.TitleTV, Title: "Beta"})

	all, _ := c.ListTitles(ctx, domain.TitleQuery{})
	shows, _ := c.ListTitles(ctx, domain.TitleQuery{Category: domain.TitleTV})
	genre, _ := c.ListTitles(ctx, domain.TitleQuery{Genre: "g1"})
	search, _ := c.ListTitles(ctx, domain.TitleQuery{Search: "alp"})

	if len(all.Items) != 2 || len(shows.Items) != 1 || len(genre.Items) != 1 || len(search.Items) != 1 {
		t.Errorf("got all=%d shows=%d genre=%d search=%d", len(all.Items), len(shows.Items), len(genre.Items), len(search.Items))
	}
	if titles.listed != 4 {
		t.Errorf("distinct queries must not share cache entries: %d calls", titles.listed)
	}
}

func TestTitleDetailsMovieCarriesFiles(t *testing.T) {
	c, media, titles := newTestCatalog()
	ctx := context.Background()
	titles.Upsert(ctx, domain.TitleRecord{TMDBID: 603, TMDBType: domain.TitleMovie, Title: "Movie", PosterPath: "/p.jpg", Genres: []string{"g1"}})
	link := domain.TitleLink{TMDBID: 603, TMDBType: domain.TitleMovie}
	for i, name := range []string{"b.mkv", "a.mkv", "a.srt"} {
		media.Upsert(ctx, domain.MediaRecord{ChannelID: 10, MessageID: int64(i + 1), FileName: name, Kind: domain.MediaVideo})
		media.SetTitle(ctx, 10, int64(i+1), link)
	}

	view, err := c.TitleDetails(ctx, 603, domain.TitleMovie, 1)
	if err != nil {
		t.Fatalf("TitleDetails: %v", err)
	}
	if view.PosterURL != domain.PosterBaseURL+"/p.jpg" {
		t.Errorf("PosterURL: got %q", view.PosterURL)
	}
	if len(view.Genres) != 1 || view.Cast == nil {
		t.Errorf("entities: genres=%v cast=%v", view.Genres, view.Cast)
	}
	if view.Files == nil || len(view.Files.Items) != 2 {
		t.Fatalf("files: got %+v", view.Files)
	}
	if view.Files.Items[0].FileName != "a.mkv" {
		t.Errorf("files must sort by name, got %q first", view.Files.Items[0].FileName)
	}
	want := "https://example.org/player/" + domain.EncodeFileLink(10, 2)
	if view.Files.Items[0].StreamURL != want {
		t.Errorf("StreamURL: got %q, want %q", view.Files.Items[0].StreamURL, want)
	}
}

func TestTitleDetailsRejectsUnknownType(t *testing.T) {
	c, _, _ := newTestCatalog()
	if _, err := c.TitleDetails(context.Background(), 1, "anime", 1); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("got %v, want ErrInvalidRecord", err)
	}
}

func TestTitleDetailsNotFound(t *testing.T) {
	c, _, _ := newTestCatalog()
	if _, err := c.TitleDetails(context.Background(), 1, domain.TitleMovie, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestOthersExcludesMetadataChannels(t *testing.T) {
	c, media, _ := newTestCatalog()
	ctx := context.Background()
	media.Upsert(ctx, domain.MediaRecord{ChannelID: 10, MessageID: 1, FileName: "movie.mkv", Kind: domain.MediaVideo})
	media.Upsert(ctx, domain.MediaRecord{ChannelID: 20, MessageID: 1, FileName: "book one.pdf", Kind: domain.MediaDocument})
	media.Upsert(ctx, domain.MediaRecord{ChannelID: 20, MessageID: 2, FileName: "book two.pdf", Kind: domain.MediaDocument})

	page, err := c.Others(ctx, OthersQuery{})
	if err != nil {
		t.Fatalf("Others: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total: got %d, want 2", page.Total)
	}
	if page.Items[0].FileName != "book two.pdf" {
		t.Errorf("default order must be newest first, got %q", page.Items[0].FileName)
	}
	for _, item := range page.Items {
		if item.ChannelID == 10 || !strings.HasPrefix(item.StreamURL, "https://example.org/player/") {
			t.Errorf("unexpected item %+v", item)
		}
	}

	oldest, _ := c.Others(ctx, OthersQuery{Oldest: true})
	if oldest.Items[0].FileName != "book one.pdf" {
		t.Errorf("oldest order: got %q first", oldest.Items[0].FileName)
	}

	found, err := c.Others(ctx, OthersQuery{Search: "  two "})
	if err != nil {
		t.Fatalf("Others search: %v", err)
	}
	if found.Total != 1 || found.Items[0].FileName != "book two.pdf" {
		t.Errorf("search: got %+v", found)
	}
}

func TestShortQueryRoundTrip(t *testing.T) {
	c, _, _ := newTestCatalog()
	id, err := c.StoreQuery("  the   matrix ")
	if err != nil {
		t.Fatalf("StoreQuery: %v", err)
	}
	if got := c.ResolveQuery(id); got != "the matrix" {
		t.Errorf("ResolveQuery: got %q", got)
	}
	if got := c.ResolveQuery("missing"); got != "" {
		t.Errorf("unknown id: got %q", got)
	}
	if _, err := c.StoreQuery("   "); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Errorf("empty query: got %v", err)
	}
}

func TestEntityRejectsUnknownCategory(t *testing.T) {
	c, _, _ := newTestCatalog()
	if _, err := c.Entity(context.Background(), "studios", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
