// Package store persists per-user usage counters and saved playlists.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

// UsageKind is the counter a request is billed against.
type UsageKind string

const (
	UsagePrompt UsageKind = "prompt"
	UsageReroll UsageKind = "reroll"
)

func (k UsageKind) valid() bool { return k == UsagePrompt || k == UsageReroll }

// ErrPlaylistNotFound is returned when a delete matched nothing for that user.
var ErrPlaylistNotFound = errors.New("playlist not found")

// UsageLimitError means a free user has used up the prompts of the current window.
type UsageLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("usage limit of %d prompts reached, resets in %s", e.Limit, e.RetryAfter.Round(time.Minute))
}

func (e *UsageLimitError) UserMessage() string {
	return fmt.Sprintf("You have used all %d free prompts. Try again in %s or upgrade to Pro.",
		e.Limit, humanDuration(e.RetryAfter))
}

// PlaylistLimitError means the user's library is full.
type PlaylistLimitError struct {
	Limit int
}

func (e *PlaylistLimitError) Error() string {
	return fmt.Sprintf("playlist limit of %d reached", e.Limit)
}

func (e *PlaylistLimitError) UserMessage() string {
	return fmt.Sprintf("Your library is full (%d playlists). Delete one to save another.", e.Limit)
}

// Store is the persistence boundary. Implementations must make usage checks
// atomic per user.
type Store interface {
	CheckAndIncrementUsage(ctx context.Context, userID string, kind UsageKind) error
	SavePlaylist(ctx context.Context, userID string, p engine.Playlist) (engine.SavedPlaylist, error)
	ListPlaylists(ctx context.Context, userID string) ([]engine.SavedPlaylist, error)
	DeletePlaylist(ctx context.Context, userID, id string) error
	SetPro(ctx context.Context, userID string, pro bool) error
	Close() error
}

// Limits are the freemium quotas.
type Limits struct {
	FreePrompts   int
	Window        time.Duration
	FreePlaylists int
	ProPlaylists  int
}

// LimitsFromConfig reads the quota fields of cfg, applying defaults.
func LimitsFromConfig(cfg engine.Config) Limits {
	cfg = cfg.WithDefaults()
	return Limits{
		FreePrompts:   cfg.FreePromptLimit,
		Window:        cfg.UsageWindow,
		FreePlaylists: cfg.FreePlaylistLimit,
		ProPlaylists:  cfg.ProPlaylistLimit,
	}
}

func (l Limits) playlists(pro bool) int {
	if pro {
		return l.ProPlaylists
	}
	return l.FreePlaylists
}

// Option customizes a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open picks Postgres when DatabaseURL is set, then SQLite when SQLitePath is
// set. With neither it returns nil and no error: persistence is disabled.
func Open(ctx context.Context, cfg engine.Config, opts ...Option) (Store, error) {
	lim := LimitsFromConfig(cfg)
	switch {
	case cfg.DatabaseURL != "":
		db, err := ConnectPostgres(ctx, cfg.DatabaseURL, lim, opts...)
		if err != nil {
			return nil, err
		}
		return db, nil
	case cfg.SQLitePath != "":
		db, err := OpenSQLite(ctx, cfg.SQLitePath, lim, opts...)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, nil
}

func requireUser(userID string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "a minute"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes())+1)
	}
	h := int(d.Hours())
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}
