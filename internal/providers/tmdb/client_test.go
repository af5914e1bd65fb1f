package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"mediashare/internal/cache"
	"mediashare/internal/domain"
)

const movieDetailsJSON = `{
  "id": 603,
  "title": "The Matrix",
  "release_date": "1999-03-30",
  "overview": "A hacker learns the truth.",
  "poster_path": "/matrix.jpg",
  "imdb_id": "tt0133093",
  "runtime": 136,
  "vote_average": 8.216,
  "genres": [{"name": "Action"}, {"name": "Science Fiction"}],
  "spoken_languages": [{"name": "English", "english_name": "English"}],
  "credits": {
    "cast": [
      {"name": "Keanu Reeves", "profile_path": "/k.jpg"},
      {"name": "Laurence Fishburne"},
      {"name": "Carrie-Anne Moss"},
      {"name": "Hugo Weaving"},
      {"name": "Joe Pantoliano"},
      {"name": "Marcus Chong"}
    ],
    "crew": [
      {"name": "Lana Wachowski", "job": "Director"},
      {"name": "Bill Pope", "job": "Director of Photography"},
      {"name": "Lilly Wachowski", "job": "Director"}
    ]
  },
  "videos": {"results": [
    {"site": "Vimeo", "type": "Trailer", "key": "nope"},
    {"site": "YouTube", "type": "Teaser", "key": "teaser"},
    {"site": "YouTube", "type": "Trailer", "key": "vKQi3bBA1y8"}
  ]}
}`

const tvDetailsJSON = `{
  "id": 1399,
  "name": "Game of Thrones",
  "first_air_date": "2011-04-17",
  "vote_average": 8.4,
  "runtime": 0,
  "number_of_seasons": 2,
  "number_of_episodes": 20,
  "created_by": [{"name": "David Benioff"}, {"name": "D. B. Weiss"}],
  "genres": [{"name": "Sci-Fi & Fantasy"}, {"name": "Drama"}],
  "seasons": [
    {"season_number": 1, "poster_path": "/s1.jpg", "episode_count": 10},
    {"season_number": 2, "poster_path": "/s2.jpg", "episode_count": 10}
  ],
  "external_ids": {"imdb_id": "tt0944947"}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, backend *cache.RedisBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "key",
		BaseURL: srv.URL,
		Client:  srv.Client(),
		Cache:   backend,
	})
}

func TestSearchMovieReturnsFirstResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("path: got %q, want /search/movie", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "Movie Title" {
			t.Errorf("query: got %q, want %q", got, "Movie Title")
		}
		if got := r.URL.Query().Get("year"); got != "2020" {
			t.Errorf("year: got %q, want 2020", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "key" {
			t.Errorf("api_key: got %q", got)
		}
		w.Write([]byte(`{"results":[{"id":42},{"id":7}]}`))
	}, nil)

	id, found, err := client.SearchMovie(context.Background(), "Movie Title", 2020)
	if err != nil {
		t.Fatalf("SearchMovie: %v", err)
	}
	if !found || id != 42 {
		t.Fatalf("got id=%d found=%v, want 42 true", id, found)
	}
}

func TestSearchTVUsesFirstAirDateYear(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("first_air_date_year"); got != "2011" {
			t.Errorf("first_air_date_year: got %q", got)
		}
		w.Write([]byte(`{"results":[]}`))
	}, nil)

	_, found, err := client.SearchTV(context.Background(), "Show", 2011)
	if err != nil {
		t.Fatalf("SearchTV: %v", err)
	}
	if found {
		t.Fatal("expected no match")
	}
}

func TestDisabledClientIsSoft(t *testing.T) {
	client := NewClient(Config{})
	if client.Enabled() {
		t.Fatal("client without key should be disabled")
	}
	if _, found, err := client.SearchMovie(context.Background(), "x", 0); err != nil || found {
		t.Fatalf("disabled search: found=%v err=%v", found, err)
	}
	if _, err := client.Details(context.Background(), domain.TitleMovie, 1); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("disabled details: got %v, want ErrUnsupported", err)
	}
}

func TestMovieDetailsMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("append_to_response"); got != "credits,videos,external_ids" {
			t.Errorf("append_to_response: got %q", got)
		}
		w.Write([]byte(movieDetailsJSON))
	}, nil)

	info, err := client.Details(context.Background(), domain.TitleMovie, 603)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if info.Title != "The Matrix" || info.Year != "1999" {
		t.Errorf("title/year: got %q/%q", info.Title, info.Year)
	}
	if info.Rating != 8.2 {
		t.Errorf("rating: got %v, want 8.2", info.Rating)
	}
	if info.Runtime != 136 || info.IMDBID != "tt0133093" {
		t.Errorf("runtime/imdb: got %d/%q", info.Runtime, info.IMDBID)
	}
	if len(info.Cast) != 5 || info.Cast[0].Name != "Keanu Reeves" || info.Cast[0].ProfilePath != "/k.jpg" {
		t.Errorf("cast: got %+v", info.Cast)
	}
	if len(info.Directors) != 2 || info.Directors[1].Name != "Lilly Wachowski" {
		t.Errorf("directors: got %+v", info.Directors)
	}
	if info.TrailerURL != "https://www.youtube.com/watch?v=vKQi3bBA1y8" {
		t.Errorf("trailer: got %q", info.TrailerURL)
	}
	if len(info.Seasons) != 0 {
		t.Errorf("movie should have no seasons, got %d", len(info.Seasons))
	}
}

func TestTVDetailsMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tvDetailsJSON))
	}, nil)

	info, err := client.Details(context.Background(), domain.TitleTV, 1399)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if info.Title != "Game of Thrones" || info.Year != "2011" {
		t.Errorf("title/year: got %q/%q", info.Title, info.Year)
	}
	if info.IMDBID != "tt0944947" {
		t.Errorf("imdb id: got %q", info.IMDBID)
	}
	want := []string{"Sci-Fi", "Fantasy", "Drama"}
	if len(info.Genres) != len(want) {
		t.Fatalf("genres: got %v, want %v", info.Genres, want)
	}
	for i := range want {
		if info.Genres[i] != want[i] {
			t.Errorf("genre %d: got %q, want %q", i, info.Genres[i], want[i])
		}
	}
	if len(info.Directors) != 2 || info.Directors[0].Name != "David Benioff" {
		t.Errorf("creators: got %+v", info.Directors)
	}
	if len(info.Seasons) != 2 || info.Seasons[1].EpisodeCount != 10 {
		t.Errorf("seasons: got %+v", info.Seasons)
	}
	if info.NumberOfEpisodes != 20 {
		t.Errorf("episodes: got %d", info.NumberOfEpisodes)
	}
}

func TestDetailsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_message":"not found"}`, http.StatusNotFound)
	}, nil)

	_, err := client.Details(context.Background(), domain.TitleMovie, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":[{"id":5}]}`))
	}, nil)

	id, found, err := client.SearchMovie(context.Background(), "x", 0)
	if err != nil || !found || id != 5 {
		t.Fatalf("got id=%d found=%v err=%v", id, found, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls: got %d, want 2", calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}, nil)

	_, _, err := client.SearchMovie(context.Background(), "x", 0)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("got %v, want 401 StatusError", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls: got %d, want 1", calls.Load())
	}
}

func TestResponsesAreCachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	backend := cache.NewRedisBackend(rdb, "tmdb")

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(movieDetailsJSON))
	}, backend)
	client.cacheTTL = time.Hour

	for i := 0; i < 3; i++ {
		if _, err := client.Details(context.Background(), domain.TitleMovie, 603); err != nil {
			t.Fatalf("Details #%d: %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls: got %d, want 1", calls.Load())
	}
	if !mr.Exists("mediashare:tmdb:details:movie:603") {
		t.Fatal("expected cached details key")
	}

	mr.FastForward(2 * time.Hour)
	if _, err := client.Details(context.Background(), domain.TitleMovie, 603); err != nil {
		t.Fatalf("Details after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("upstream calls after expiry: got %d, want 2", calls.Load())
	}
}
