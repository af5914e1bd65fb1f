package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/semaphore"

	"mediashare/internal/cache"
	"mediashare/internal/domain"
	"mediashare/internal/metrics"
)

const (
	defaultBaseURL   = "https://api.themoviedb.org/3"
	defaultLanguage  = "en-US"
	defaultCacheTTL  = 24 * time.Hour
	defaultParallel  = 4
	maxCastMembers   = 5
	youtubeWatchBase = "https://www.youtube.com/watch?v="
)

type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	cache    *cache.RedisBackend
	cacheTTL time.Duration
	sem      *semaphore.Weighted
	attempts uint
	logger   *slog.Logger
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Cache    *cache.RedisBackend
	CacheTTL time.Duration
	// MaxConcurrent bounds in-flight requests to the API.
	MaxConcurrent int64
	Attempts      uint
	Logger        *slog.Logger
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb HTTP %d: %s", e.Status, e.Body)
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	parallel := cfg.MaxConcurrent
	if parallel <= 0 {
		parallel = defaultParallel
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		cache:    cfg.Cache,
		cacheTTL: cacheTTL,
		sem:      semaphore.NewWeighted(parallel),
		attempts: attempts,
		logger:   logger,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type searchResponse struct {
	Results []struct {
		ID int64 `json:"id"`
	} `json:"results"`
}

func (c *Client) SearchMovie(ctx context.Context, title string, year int) (int64, bool, error) {
	params := url.Values{"query": {title}}
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	return c.search(ctx, "movie", params)
}

func (c *Client) SearchTV(ctx context.Context, title string, year int) (int64, bool, error) {
	params := url.Values{"query": {title}}
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}
	return c.search(ctx, "tv", params)
}

// search returns the first ranked candidate.
func (c *Client) search(ctx context.Context, kind string, params url.Values) (int64, bool, error) {
	if !c.Enabled() {
		return 0, false, nil
	}
	cacheKey := "search:" + kind + ":" + strings.ToLower(params.Encode())
	var resp searchResponse
	if err := c.cachedGet(ctx, cacheKey, "search_"+kind, "/search/"+kind, params, &resp); err != nil {
		return 0, false, err
	}
	if len(resp.Results) == 0 {
		return 0, false, nil
	}
	return resp.Results[0].ID, true, nil
}

type person struct {
	Name        string `json:"name"`
	ProfilePath string `json:"profile_path"`
	Job         string `json:"job,omitempty"`
}

type detailsResponse struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	Overview         string   `json:"overview"`
	PosterPath       string   `json:"poster_path"`
	IMDBID           string   `json:"imdb_id"`
	Runtime          int      `json:"runtime"`
	Adult            bool     `json:"adult"`
	VoteAverage      float64  `json:"vote_average"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	NumberOfEpisodes int      `json:"number_of_episodes"`
	CreatedBy        []person `json:"created_by"`
	Genres           []struct {
		Name string `json:"name"`
	} `json:"genres"`
	SpokenLanguages []struct {
		Name        string `json:"name"`
		EnglishName string `json:"english_name"`
	} `json:"spoken_languages"`
	Seasons []struct {
		SeasonNumber int    `json:"season_number"`
		PosterPath   string `json:"poster_path"`
		EpisodeCount int    `json:"episode_count"`
	} `json:"seasons"`
	Credits struct {
		Cast []person `json:"cast"`
		Crew []person `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Site string `json:"site"`
			Type string `json:"type"`
			Key  string `json:"key"`
		} `json:"results"`
	} `json:"videos"`
	ExternalIDs struct {
		IMDBID string `json:"imdb_id"`
	} `json:"external_ids"`
}

// Details fetches full attributes, credits, trailer and cross-reference ids
// in one request.
func (c *Client) Details(ctx context.Context, tmdbType domain.TitleType, id int64) (domain.TitleInfo, error) {
	if !c.Enabled() {
		return domain.TitleInfo{}, domain.ErrUnsupported
	}
	if !tmdbType.Valid() {
		return domain.TitleInfo{}, fmt.Errorf("unknown title type %q", tmdbType)
	}
	params := url.Values{
		"language":           {defaultLanguage},
		"append_to_response": {"credits,videos,external_ids"},
	}
	path := fmt.Sprintf("/%s/%d", tmdbType, id)
	var resp detailsResponse
	if err := c.cachedGet(ctx, "details:"+string(tmdbType)+":"+strconv.FormatInt(id, 10), "details", path, params, &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return domain.TitleInfo{}, domain.ErrNotFound
		}
		return domain.TitleInfo{}, err
	}
	return toTitleInfo(tmdbType, resp), nil
}

func toTitleInfo(tmdbType domain.TitleType, d detailsResponse) domain.TitleInfo {
	info := domain.TitleInfo{
		TMDBID:           d.ID,
		TMDBType:         tmdbType,
		Title:            d.Title,
		Year:             yearOf(d.ReleaseDate),
		Rating:           float64(int(d.VoteAverage*10+0.5)) / 10,
		Plot:             d.Overview,
		PosterPath:       d.PosterPath,
		IMDBID:           d.IMDBID,
		Runtime:          d.Runtime,
		Adult:            d.Adult,
		NumberOfSeasons:  d.NumberOfSeasons,
		NumberOfEpisodes: d.NumberOfEpisodes,
	}
	if tmdbType == domain.TitleTV {
		info.Title = d.Name
		info.Year = yearOf(d.FirstAirDate)
		info.IMDBID = d.ExternalIDs.IMDBID
		info.Runtime = 0
	}

	for _, g := range d.Genres {
		for _, part := range strings.Split(g.Name, "&") {
			if name := strings.TrimSpace(part); name != "" {
				info.Genres = append(info.Genres, name)
			}
		}
	}
	for _, l := range d.SpokenLanguages {
		name := l.EnglishName
		if name == "" {
			name = l.Name
		}
		if name != "" {
			info.Languages = append(info.Languages, name)
		}
	}
	for i, p := range d.Credits.Cast {
		if i == maxCastMembers {
			break
		}
		info.Cast = append(info.Cast, domain.Person{Name: p.Name, ProfilePath: p.ProfilePath})
	}
	if tmdbType == domain.TitleTV {
		for _, p := range d.CreatedBy {
			info.Directors = append(info.Directors, domain.Person{Name: p.Name, ProfilePath: p.ProfilePath})
		}
	} else {
		for _, p := range d.Credits.Crew {
			if p.Job == "Director" {
				info.Directors = append(info.Directors, domain.Person{Name: p.Name, ProfilePath: p.ProfilePath})
			}
		}
	}
	for _, v := range d.Videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			info.TrailerURL = youtubeWatchBase + v.Key
			break
		}
	}
	if tmdbType == domain.TitleTV {
		for _, s := range d.Seasons {
			info.Seasons = append(info.Seasons, domain.Season{
				SeasonNumber: s.SeasonNumber,
				PosterPath:   s.PosterPath,
				EpisodeCount: s.EpisodeCount,
			})
		}
	}
	return info
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func (c *Client) cachedGet(ctx context.Context, cacheKey, endpoint, path string, params url.Values, dst any) error {
	if ok, err := c.cache.GetJSON(ctx, cacheKey, dst); err != nil {
		c.logger.Debug("tmdb cache read failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
	} else if ok {
		return nil
	}
	if err := c.get(ctx, endpoint, path, params, dst); err != nil {
		return err
	}
	if err := c.cache.SetJSON(ctx, cacheKey, dst, c.cacheTTL); err != nil {
		c.logger.Debug("tmdb cache write failed", slog.String("key", cacheKey), slog.String("error", err.Error()))
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, dst any) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + query.Encode()

	start := time.Now()
	err := retry.Do(
		func() error {
			return c.do(ctx, reqURL, dst)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	metrics.ProviderRequestDuration.WithLabelValues("tmdb").Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProviderRequestsTotal.WithLabelValues("tmdb", endpoint, status).Inc()
	return err
}

func (c *Client) do(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return retry.Unrecoverable(err)
	}
	return nil
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return true
}
