package imdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mediashare/internal/domain"
	"mediashare/internal/metrics"
)

const defaultBaseURL = "https://imdb.iamidiotareyoutoo.com"

// Client reads aggregate ratings and short plots keyed by IMDb id.
type Client struct {
	baseURL  string
	http     *http.Client
	attempts uint
	logger   *slog.Logger
}

type Config struct {
	BaseURL  string
	Client   *http.Client
	Attempts uint
	Logger   *slog.Logger
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
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		attempts: attempts,
		logger:   logger,
	}
}

type searchResponse struct {
	Short struct {
		Description     string `json:"description"`
		AggregateRating struct {
			RatingValue json.Number `json:"ratingValue"`
		} `json:"aggregateRating"`
	} `json:"short"`
}

// Lookup returns the rating and plot for imdbID. An empty id yields an empty
// result without a request.
func (c *Client) Lookup(ctx context.Context, imdbID string) (domain.RatingInfo, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return domain.RatingInfo{}, nil
	}
	reqURL := c.baseURL + "/search?" + url.Values{"tt": {imdbID}}.Encode()

	var resp searchResponse
	start := time.Now()
	err := retry.Do(
		func() error { return c.do(ctx, reqURL, &resp) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	metrics.ProviderRequestDuration.WithLabelValues("imdb").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("imdb", "search", "error").Inc()
		return domain.RatingInfo{}, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues("imdb", "search", "ok").Inc()

	info := domain.RatingInfo{Plot: strings.TrimSpace(html.UnescapeString(resp.Short.Description))}
	if raw := resp.Short.AggregateRating.RatingValue.String(); raw != "" {
		rating, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.logger.Warn("imdb rating not numeric", slog.String("imdbId", imdbID), slog.String("value", raw))
		} else {
			info.Rating = rating
		}
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return retry.Unrecoverable(err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("imdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(err)
		}
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return retry.Unrecoverable(err)
	}
	return nil
}
