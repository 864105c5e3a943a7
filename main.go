// go_vosiqs: mood prompt to YouTube playlist MCP server.
//
// Exposes five MCP tools: generate_playlist, reroll_playlist, save_playlist,
// list_playlists, delete_playlist. Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/anatolykoptev/go_vosiqs/internal/engine/playlist"
	"github.com/anatolykoptev/go_vosiqs/internal/engine/sources"
	"github.com/anatolykoptev/go_vosiqs/internal/engine/store"
	"github.com/anatolykoptev/go_vosiqs/internal/playlistserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	ctx := context.Background()
	cfg := loadConfig()

	slog.Info("starting go_vosiqs",
		slog.String("port", mcpPort),
		slog.String("model", cfg.LLMModel),
		slog.Bool("youtube_key", cfg.YouTubeAPIKey != ""),
	)

	cache := engine.NewCache(ctx, cfg.RedisURL, cfg.CacheTTL, cfg.CacheMaxEntries, cfg.CacheCleanupInterval)
	defer cache.Close()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Warn("store init failed, usage limits and library disabled", slog.Any("error", err))
	} else if db == nil {
		slog.Info("no DATABASE_URL or SQLITE_PATH, usage limits and library disabled")
	} else {
		defer db.Close()
	}

	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	model := engine.NewLLM(engine.CompleterFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return client.Complete(ctx, system, prompt)
	}), cfg.StageTimeout)

	orch := playlist.NewOrchestrator(cfg,
		playlist.NewMetadataGenerator(model),
		playlist.NewCurator(model, cfg.CurateMin, cfg.CurateMax),
		sources.NewYouTubeSearch(cfg, sources.WithCache(cache)),
		sources.NewYouTubeContext(cfg),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_vosiqs",
		Version: version,
	}, nil)

	playlistserver.RegisterTools(server, orch, db)
	slog.Info("tools registered", slog.Int("count", playlistserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_vosiqs",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func loadConfig() engine.Config {
	c := engine.Config{
		LLMAPIKey:             env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:    env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:            env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:              env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:        env.Float("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:          env.Int("LLM_MAX_TOKENS", 4096),
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		YouTubeAPIBase:        env.Str("YOUTUBE_API_BASE", engine.DefaultYouTubeAPIBase),
		YouTubeRPS:            env.Float("YOUTUBE_RPS", 5),
		StageTimeout:          env.Duration("STAGE_TIMEOUT", 30*time.Second),
		SearchPoolSize:        env.Int("SEARCH_POOL_SIZE", 50),
		FallbackSize:          env.Int("FALLBACK_SIZE", 12),
		CurateMin:             env.Int("CURATE_MIN", 8),
		CurateMax:             env.Int("CURATE_MAX", 12),
		LikedMax:              env.Int("CONTEXT_LIKED_MAX", 5),
		SubscriptionMax:       env.Int("CONTEXT_SUBSCRIPTIONS_MAX", 10),
		DatabaseURL:           env.Str("DATABASE_URL", ""),
		SQLitePath:            env.Str("SQLITE_PATH", ""),
		FreePromptLimit:       env.Int("FREE_PROMPT_LIMIT", 10),
		UsageWindow:           env.Duration("USAGE_WINDOW", 7*time.Hour),
		FreePlaylistLimit:     env.Int("FREE_PLAYLIST_LIMIT", 10),
		ProPlaylistLimit:      env.Int("PRO_PLAYLIST_LIMIT", 100),
		RedisURL:              env.Str("REDIS_URL", ""),
		CacheTTL:              env.Duration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries:       env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval:  env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	return c.WithDefaults()
}
