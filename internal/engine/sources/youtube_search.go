package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	ytMaxResults     = 50 // Data API hard cap per page
	ytDefaultResults = 12
)

// YouTubeSearch is the video provider: one search.list call per query.
type YouTubeSearch struct {
	api     ytAPI
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]engine.CandidateVideo]
	cache   *engine.Cache
}

// SearchOption customizes a YouTubeSearch.
type SearchOption func(*YouTubeSearch)

// WithCache caches unauthenticated result pools.
func WithCache(c *engine.Cache) SearchOption {
	return func(s *YouTubeSearch) { s.cache = c }
}

// WithRetry overrides the transport retry policy.
func WithRetry(rc engine.RetryConfig) SearchOption {
	return func(s *YouTubeSearch) { s.api.retry = rc }
}

// NewYouTubeSearch builds the provider from cfg. YouTubeRPS <= 0 disables
// client-side rate limiting.
func NewYouTubeSearch(cfg engine.Config, opts ...SearchOption) *YouTubeSearch {
	cfg = cfg.WithDefaults()
	limit := rate.Inf
	burst := 1
	if cfg.YouTubeRPS > 0 {
		limit = rate.Limit(cfg.YouTubeRPS)
		burst = max(1, int(cfg.YouTubeRPS))
	}
	s := &YouTubeSearch{
		api: ytAPI{
			base:   cfg.YouTubeAPIBase,
			keys:   apiKeys(cfg.YouTubeAPIKey, cfg.YouTubeAPIKeyFallback),
			client: cfg.HTTPClient,
			retry:  engine.DefaultRetryConfig,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
	s.breaker = gobreaker.NewCircuitBreaker[[]engine.CandidateVideo](gobreaker.Settings{
		Name:        "youtube_search",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("youtube search: breaker state change",
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// breakerSuccess keeps client-side errors (bad request, quota, auth) from
// tripping the breaker; only transport failures and 5xx count.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *engine.ProviderError
	if errors.As(err, &pe) {
		return pe.Status < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}

// Search returns up to maxResults embeddable videos for query. With a
// credential the request runs as that user; otherwise the application keys
// are used. Having neither is not an error: the pool is simply empty.
func (s *YouTubeSearch) Search(ctx context.Context, query string, maxResults int, credential string) ([]engine.CandidateVideo, error) {
	engine.IncrYouTubeSearch()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("youtube search: empty query")
	}
	if credential == "" && len(s.api.keys) == 0 {
		slog.Warn("youtube search: skipped", slog.Any("error", engine.ErrProviderUnavailable))
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = ytDefaultResults
	}
	maxResults = min(maxResults, ytMaxResults)

	cacheKey := engine.CacheKey("youtube_search", query, strconv.Itoa(maxResults))
	if credential == "" {
		if videos, ok := engine.CacheLoadJSON[[]engine.CandidateVideo](ctx, s.cache, cacheKey); ok {
			return videos, nil
		}
	}

	videos, err := s.breaker.Execute(func() ([]engine.CandidateVideo, error) {
		return s.search(ctx, query, maxResults, credential)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &engine.ProviderError{Status: http.StatusServiceUnavailable, Message: "search temporarily disabled after repeated failures"}
	}
	if err != nil {
		engine.IncrYouTubeSearchError()
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	slog.Debug("youtube search: done",
		slog.String("query", query), slog.Int("requested", maxResults), slog.Int("returned", len(videos)),
		slog.Bool("personalized", credential != ""))

	if credential == "" && len(videos) > 0 {
		engine.CacheStoreJSON(ctx, s.cache, cacheKey, videos)
	}
	return videos, nil
}

func (s *YouTubeSearch) search(ctx context.Context, query string, maxResults int, credential string) ([]engine.CandidateVideo, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &engine.NetworkError{Err: err}
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("videoEmbeddable", "true")
	params.Set("maxResults", strconv.Itoa(maxResults))

	var result ytListResp
	if err := s.api.get(ctx, "/search", params, credential, &result); err != nil {
		return nil, err
	}
	return toCandidates(result.Items), nil
}
