package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, clock *fakeClock) Store

// runStoreSuite exercises the behaviour every Store must share.
func runStoreSuite(t *testing.T, open storeFactory) {
	user := func() string { return "u-" + uuid.NewString() }
	ctx := context.Background()

	t.Run("usage limit and window reset", func(t *testing.T) {
		clock := newFakeClock()
		s := open(t, clock)
		u := user()
		for range testLimits.FreePrompts {
			require.NoError(t, s.CheckAndIncrementUsage(ctx, u, UsagePrompt))
		}
		err := s.CheckAndIncrementUsage(ctx, u, UsagePrompt)
		var le *UsageLimitError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, testLimits.Window, le.RetryAfter)

		require.NoError(t, s.CheckAndIncrementUsage(ctx, u, UsageReroll), "rerolls are never refused")

		clock.Advance(testLimits.Window)
		require.NoError(t, s.CheckAndIncrementUsage(ctx, u, UsagePrompt))
	})

	t.Run("pro bypasses limit", func(t *testing.T) {
		s := open(t, newFakeClock())
		u := user()
		require.NoError(t, s.SetPro(ctx, u, true))
		for range testLimits.FreePrompts * 3 {
			require.NoError(t, s.CheckAndIncrementUsage(ctx, u, UsagePrompt))
		}
	})

	t.Run("usage input errors", func(t *testing.T) {
		s := open(t, newFakeClock())
		require.Error(t, s.CheckAndIncrementUsage(ctx, "", UsagePrompt))
		require.Error(t, s.CheckAndIncrementUsage(ctx, user(), UsageKind("nope")))
	})

	t.Run("concurrent prompts respect limit", func(t *testing.T) {
		s := open(t, newFakeClock())
		u := user()
		var ok, limited atomic.Int32
		var wg sync.WaitGroup
		for range 12 {
			wg.Go(func() {
				err := s.CheckAndIncrementUsage(ctx, u, UsagePrompt)
				var le *UsageLimitError
				switch {
				case err == nil:
					ok.Add(1)
				case errors.As(err, &le):
					limited.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
		wg.Wait()
		assert.Equal(t, int32(testLimits.FreePrompts), ok.Load())
		assert.Equal(t, int32(12-testLimits.FreePrompts), limited.Load())
	})

	t.Run("save list delete", func(t *testing.T) {
		clock := newFakeClock()
		s := open(t, clock)
		u := user()

		first, err := s.SavePlaylist(ctx, u, engine.Playlist{
			Name: "First", Prompt: "rainy jazz", Query: "rainy jazz cafe", Curated: true,
			Videos: []engine.CandidateVideo{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
		})
		require.NoError(t, err)
		_, err = uuid.Parse(first.ID)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		second, err := s.SavePlaylist(ctx, u, engine.Playlist{Name: "Second"})
		require.NoError(t, err)

		list, err := s.ListPlaylists(ctx, u)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID, "newest first")
		assert.Equal(t, first.ID, list[1].ID)
		assert.Equal(t, "rainy jazz cafe", list[1].Playlist.Query)
		assert.True(t, list[1].Playlist.Curated)
		assert.Equal(t, []string{"a", "b"}, []string{list[1].Playlist.Videos[0].ID, list[1].Playlist.Videos[1].ID})
		assert.Empty(t, list[0].Playlist.Videos)
		assert.Equal(t, first.CreatedAt, list[1].CreatedAt)

		other, err := s.ListPlaylists(ctx, user())
		require.NoError(t, err)
		assert.Empty(t, other)

		require.ErrorIs(t, s.DeletePlaylist(ctx, user(), first.ID), ErrPlaylistNotFound, "other users cannot delete")
		require.NoError(t, s.DeletePlaylist(ctx, u, first.ID))
		require.ErrorIs(t, s.DeletePlaylist(ctx, u, first.ID), ErrPlaylistNotFound)
		require.ErrorIs(t, s.DeletePlaylist(ctx, u, "not-a-uuid"), ErrPlaylistNotFound)

		list, err = s.ListPlaylists(ctx, u)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)
	})

	t.Run("playlist limits", func(t *testing.T) {
		s := open(t, newFakeClock())
		u := user()
		for range testLimits.FreePlaylists {
			_, err := s.SavePlaylist(ctx, u, engine.Playlist{Name: "p"})
			require.NoError(t, err)
		}
		_, err := s.SavePlaylist(ctx, u, engine.Playlist{Name: "p"})
		var pe *PlaylistLimitError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, testLimits.FreePlaylists, pe.Limit)

		require.NoError(t, s.SetPro(ctx, u, true))
		_, err = s.SavePlaylist(ctx, u, engine.Playlist{Name: "p"})
		require.NoError(t, err)
	})
}
