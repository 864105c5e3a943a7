package sources

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"golang.org/x/sync/errgroup"
)

// YouTubeContext summarizes a user's recent likes and subscriptions into a
// short text block for the metadata prompt.
type YouTubeContext struct {
	api             ytAPI
	likedMax        int
	subscriptionMax int
}

// NewYouTubeContext builds the context provider from cfg.
func NewYouTubeContext(cfg engine.Config) *YouTubeContext {
	cfg = cfg.WithDefaults()
	return &YouTubeContext{
		api: ytAPI{
			base:   cfg.YouTubeAPIBase,
			client: cfg.HTTPClient,
			retry:  engine.DefaultRetryConfig,
		},
		likedMax:        cfg.LikedMax,
		subscriptionMax: cfg.SubscriptionMax,
	}
}

// GetContext never fails. Each half is fetched independently and a failing
// half is logged and left out. No credential means no context.
func (c *YouTubeContext) GetContext(ctx context.Context, credential string) string {
	if credential == "" {
		return ""
	}
	engine.IncrYouTubeContext()

	var liked, subs string
	var g errgroup.Group
	g.Go(bestEffort("liked videos", func() (err error) {
		liked, err = c.likedVideos(ctx, credential)
		return err
	}))
	g.Go(bestEffort("subscriptions", func() (err error) {
		subs, err = c.subscriptions(ctx, credential)
		return err
	}))
	_ = g.Wait()

	var parts []string
	if liked != "" {
		parts = append(parts, liked)
	}
	if subs != "" {
		parts = append(parts, subs)
	}
	return strings.Join(parts, "\n")
}

// bestEffort swallows fn's error after logging it, so one failed fetch never
// cancels or fails the group.
func bestEffort(what string, fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			slog.Warn("youtube context: fetch failed", slog.String("part", what), slog.Any("error", err))
		}
		return nil
	}
}

func (c *YouTubeContext) likedVideos(ctx context.Context, credential string) (string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("myRating", "like")
	params.Set("maxResults", strconv.Itoa(c.likedMax))

	var result ytListResp
	if err := c.api.get(ctx, "/videos", params, credential, &result); err != nil {
		return "", err
	}
	titles := snippetField(result.Items, func(s *ytSnippet) string { return s.Title })
	if len(titles) == 0 {
		return "", nil
	}
	return "Recently liked videos: " + strings.Join(titles, ", "), nil
}

func (c *YouTubeContext) subscriptions(ctx context.Context, credential string) (string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("mine", "true")
	params.Set("maxResults", strconv.Itoa(c.subscriptionMax))

	var result ytListResp
	if err := c.api.get(ctx, "/subscriptions", params, credential, &result); err != nil {
		return "", err
	}
	// A subscription snippet's title is the channel name.
	names := snippetField(result.Items, func(s *ytSnippet) string { return s.Title })
	if len(names) == 0 {
		return "", nil
	}
	return "Subscribed channels: " + strings.Join(names, ", "), nil
}

func snippetField(items []ytItem, field func(*ytSnippet) string) []string {
	var out []string
	for _, item := range items {
		if item.Snippet == nil {
			continue
		}
		if v := strings.TrimSpace(field(item.Snippet)); v != "" {
			out = append(out, engine.CollapseSpace(v))
		}
	}
	return out
}
