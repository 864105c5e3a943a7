package sources

// YouTube implementation is split across three files by responsibility:
//   youtube.go:         Data API v3 wire types, request primitive, normalization
//   youtube_search.go:  video search (the candidate pool provider)
//   youtube_context.go: liked videos + subscriptions summarized for prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

// --- YouTube Data API v3 types ---

type ytListResp struct {
	Items []ytItem `json:"items"`
}

// ytItem covers search, videos and subscriptions list items. The id is a
// plain string on videos.list and an object on search.list.
type ytItem struct {
	ID      json.RawMessage `json:"id"`
	Snippet *ytSnippet      `json:"snippet"`
}

type ytSnippet struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	ChannelTitle string                 `json:"channelTitle"`
	PublishedAt  string                 `json:"publishedAt"`
	Thumbnails   map[string]ytThumbnail `json:"thumbnails"`
}

type ytThumbnail struct {
	URL string `json:"url"`
}

type ytErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// thumbnailOrder is the preference order among snippet thumbnail sizes.
var thumbnailOrder = []string{"high", "medium", "default", "standard", "maxres"}

// ytAPI is the shared request primitive for the Data API. Keys are tried in
// order; a later key is used only when the one before it is out of quota.
type ytAPI struct {
	base   string
	keys   []string
	client *http.Client
	retry  engine.RetryConfig
}

func apiKeys(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// get issues one GET against path. A bearer credential takes precedence over
// the application keys. Secrets travel in headers only, so transport errors
// quoting the URL never carry them.
func (a ytAPI) get(ctx context.Context, path string, params url.Values, credential string, out any) error {
	if credential != "" {
		return a.do(ctx, path, params, "Authorization", "Bearer "+credential, out)
	}
	if len(a.keys) == 0 {
		return engine.ErrProviderUnavailable
	}
	var err error
	for i, key := range a.keys {
		err = a.do(ctx, path, params, "X-Goog-Api-Key", key, out)
		if err == nil || !engine.IsRateLimited(err) || i == len(a.keys)-1 {
			return err
		}
		slog.Debug("youtube: key out of quota, trying fallback key", slog.Int("key", i+1), slog.Any("error", err))
	}
	return err
}

func (a ytAPI) do(ctx context.Context, path string, params url.Values, authHeader, authValue string, out any) error {
	endpoint := strings.TrimRight(a.base, "/") + path + "?" + params.Encode()

	resp, err := engine.RetryHTTP(ctx, a.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		req.Header.Set(authHeader, authValue)
		return a.client.Do(req)
	})
	if err != nil {
		return &engine.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeProviderError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &engine.ProviderError{Status: http.StatusBadGateway, Message: fmt.Sprintf("decode youtube response: %v", err)}
	}
	return nil
}

// decodeProviderError turns a non-200 response into a ProviderError,
// preferring the API's own message over the status text.
func decodeProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	pe := &engine.ProviderError{Status: resp.StatusCode}

	var apiErr ytErrorResp
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		pe.Message = apiErr.Error.Message
		if len(apiErr.Error.Errors) > 0 {
			pe.Reason = apiErr.Error.Errors[0].Reason
		}
		return pe
	}
	pe.Message = strings.TrimSpace(engine.Truncate(string(body), 200))
	return pe
}

// itemID resolves the stable video id from either id shape.
func itemID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		VideoID string `json:"videoId"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return strings.TrimSpace(obj.VideoID)
	}
	return ""
}

// toCandidates normalizes API items, dropping entries without a stable id.
func toCandidates(items []ytItem) []engine.CandidateVideo {
	videos := make([]engine.CandidateVideo, 0, len(items))
	for _, item := range items {
		id := itemID(item.ID)
		if id == "" {
			continue
		}
		v := engine.CandidateVideo{ID: id}
		if sn := item.Snippet; sn != nil {
			v.Title = html.UnescapeString(sn.Title)
			v.ChannelTitle = html.UnescapeString(sn.ChannelTitle)
			v.Description = html.UnescapeString(sn.Description)
			v.ThumbnailURL = pickThumbnail(sn.Thumbnails)
			if t, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
				v.PublishedAt = t.UTC().Format(time.RFC3339)
			}
		}
		videos = append(videos, v)
	}
	return videos
}

func pickThumbnail(thumbs map[string]ytThumbnail) string {
	for _, size := range thumbnailOrder {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
