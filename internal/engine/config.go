package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int

	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string // used when YouTubeAPIKey is out of quota
	YouTubeAPIBase        string
	YouTubeRPS            float64

	StageTimeout    time.Duration // per-stage ceiling inside one pipeline run
	SearchPoolSize  int           // candidates fetched for curation
	FallbackSize    int           // first-N candidates used when curation fails
	CurateMin       int
	CurateMax       int
	LikedMax        int // liked videos included in user context
	SubscriptionMax int // subscriptions included in user context

	DatabaseURL       string // Postgres; empty selects SQLite
	SQLitePath        string
	FreePromptLimit   int
	UsageWindow       time.Duration
	FreePlaylistLimit int
	ProPlaylistLimit  int

	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient *http.Client
}

// DefaultYouTubeAPIBase is the YouTube Data API v3 root.
const DefaultYouTubeAPIBase = "https://www.googleapis.com/youtube/v3"

// WithDefaults fills zero-valued fields with production defaults.
func (c Config) WithDefaults() Config {
	if c.YouTubeAPIBase == "" {
		c.YouTubeAPIBase = DefaultYouTubeAPIBase
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 30 * time.Second
	}
	if c.SearchPoolSize <= 0 {
		c.SearchPoolSize = 50
	}
	if c.FallbackSize <= 0 {
		c.FallbackSize = 12
	}
	if c.CurateMin <= 0 {
		c.CurateMin = 8
	}
	if c.CurateMax < c.CurateMin {
		c.CurateMax = max(12, c.CurateMin)
	}
	if c.LikedMax <= 0 {
		c.LikedMax = 5
	}
	if c.SubscriptionMax <= 0 {
		c.SubscriptionMax = 10
	}
	if c.FreePromptLimit <= 0 {
		c.FreePromptLimit = 10
	}
	if c.UsageWindow <= 0 {
		c.UsageWindow = 7 * time.Hour
	}
	if c.FreePlaylistLimit <= 0 {
		c.FreePlaylistLimit = 10
	}
	if c.ProPlaylistLimit <= 0 {
		c.ProPlaylistLimit = 100
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}
