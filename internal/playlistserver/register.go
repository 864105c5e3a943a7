package playlistserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/anatolykoptev/go_vosiqs/internal/engine/playlist"
	"github.com/anatolykoptev/go_vosiqs/internal/engine/store"
	"github.com/anatolykoptev/go_vosiqs/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Pipeline runs one playlist generation. *playlist.Orchestrator satisfies it.
type Pipeline interface {
	Generate(ctx context.Context, prompt, credential string) (engine.Playlist, error)
}

// Tools holds what the playlist tools share. A nil store disables usage
// limits and the library tools.
type Tools struct {
	pipeline Pipeline
	store    store.Store
}

func New(p Pipeline, s store.Store) *Tools {
	return &Tools{pipeline: p, store: s}
}

// ToolCount is the number of tools Register adds.
const ToolCount = 5

// RegisterTools registers all playlist tools on the given MCP server:
// generate_playlist, reroll_playlist, save_playlist, list_playlists, delete_playlist.
func RegisterTools(server *mcp.Server, p Pipeline, s store.Store) {
	New(p, s).Register(server)
}

func (t *Tools) Register(server *mcp.Server) {
	t.registerGenerate(server)
	t.registerReroll(server)
	t.registerSave(server)
	t.registerList(server)
	t.registerDelete(server)
}

func (t *Tools) registerGenerate(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_playlist",
		Description: "Turn a free-text mood or theme into a curated YouTube playlist. An AI refines the prompt into a search query, fetches up to 50 candidates, then picks and orders 8-12 of them. Pass a YouTube OAuth credential to personalize using the user's likes and subscriptions. With user_id set, counts against the free prompt allowance.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: ptr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.GeneratePlaylistInput) (*mcp.CallToolResult, engine.Playlist, error) {
		out, err := t.generate(ctx, input, store.UsagePrompt)
		return nil, out, err
	})
}

func (t *Tools) registerReroll(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reroll_playlist",
		Description: "Run generate_playlist again for the same prompt to get a different selection. Rerolls are counted but never blocked by the free allowance.",
		Annotations: &mcp.ToolAnnotations{OpenWorldHint: ptr(true)},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.GeneratePlaylistInput) (*mcp.CallToolResult, engine.Playlist, error) {
		out, err := t.generate(ctx, input, store.UsageReroll)
		return nil, out, err
	})
}

// generate bills the request, then runs the pipeline. Prompts that would
// fail validation are rejected before they are billed.
func (t *Tools) generate(ctx context.Context, input engine.GeneratePlaylistInput, kind store.UsageKind) (engine.Playlist, error) {
	if !playlist.ValidPrompt(input.Prompt) {
		return engine.Playlist{}, toolutil.UserError(
			&playlist.PipelineError{Stage: playlist.StageValidate, Err: engine.ErrInvalidPrompt}, playlist.UserMessage)
	}
	userID := toolutil.NormID(input.UserID)
	if userID != "" && t.store != nil {
		if err := t.store.CheckAndIncrementUsage(ctx, userID, kind); err != nil {
			slog.Info("playlist: usage refused", slog.String("user", userID), slog.String("kind", string(kind)), slog.Any("error", err))
			return engine.Playlist{}, toolutil.UserError(err, playlist.UserMessage)
		}
	}
	pl, err := t.pipeline.Generate(ctx, input.Prompt, input.Credential)
	if err != nil {
		return engine.Playlist{}, toolutil.UserError(err, playlist.UserMessage)
	}
	return pl, nil
}

func (t *Tools) registerSave(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_playlist",
		Description: "Save a generated playlist to the user's library. Free users can keep 10 playlists, Pro users 100. Returns the saved playlist with its id.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.SavePlaylistInput) (*mcp.CallToolResult, engine.SavedPlaylist, error) {
		out, err := t.save(ctx, input)
		return nil, out, err
	})
}

func (t *Tools) save(ctx context.Context, input engine.SavePlaylistInput) (engine.SavedPlaylist, error) {
	userID := toolutil.NormID(input.UserID)
	if err := toolutil.Require("user_id", userID, "playlist.name", input.Playlist.Name); err != nil {
		return engine.SavedPlaylist{}, err
	}
	if len(input.Playlist.Videos) == 0 {
		return engine.SavedPlaylist{}, errors.New("playlist has no videos")
	}
	if t.store == nil {
		return engine.SavedPlaylist{}, toolutil.ErrNoStore
	}
	saved, err := t.store.SavePlaylist(ctx, userID, input.Playlist)
	if err != nil {
		return engine.SavedPlaylist{}, toolutil.UserError(err, storeMessage)
	}
	slog.Info("playlist: saved", slog.String("user", userID), slog.String("id", saved.ID))
	return saved, nil
}

func (t *Tools) registerList(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_playlists",
		Description: "List the user's saved playlists, newest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.ListPlaylistsInput) (*mcp.CallToolResult, engine.ListPlaylistsOutput, error) {
		out, err := t.list(ctx, input)
		return nil, out, err
	})
}

func (t *Tools) list(ctx context.Context, input engine.ListPlaylistsInput) (engine.ListPlaylistsOutput, error) {
	userID := toolutil.NormID(input.UserID)
	if err := toolutil.Require("user_id", userID); err != nil {
		return engine.ListPlaylistsOutput{}, err
	}
	if t.store == nil {
		return engine.ListPlaylistsOutput{}, toolutil.ErrNoStore
	}
	items, err := t.store.ListPlaylists(ctx, userID)
	if err != nil {
		return engine.ListPlaylistsOutput{}, toolutil.UserError(err, storeMessage)
	}
	return engine.ListPlaylistsOutput{Playlists: items, Total: len(items)}, nil
}

func (t *Tools) registerDelete(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_playlist",
		Description: "Delete one of the user's saved playlists by id. Get ids from list_playlists.",
		Annotations: &mcp.ToolAnnotations{DestructiveHint: ptr(true), IdempotentHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.DeletePlaylistInput) (*mcp.CallToolResult, engine.DeletePlaylistOutput, error) {
		out, err := t.delete(ctx, input)
		return nil, out, err
	})
}

func (t *Tools) delete(ctx context.Context, input engine.DeletePlaylistInput) (engine.DeletePlaylistOutput, error) {
	userID, id := toolutil.NormID(input.UserID), toolutil.NormID(input.ID)
	if err := toolutil.Require("user_id", userID, "id", id); err != nil {
		return engine.DeletePlaylistOutput{}, err
	}
	if t.store == nil {
		return engine.DeletePlaylistOutput{}, toolutil.ErrNoStore
	}
	if err := t.store.DeletePlaylist(ctx, userID, id); err != nil {
		return engine.DeletePlaylistOutput{}, toolutil.UserError(err, storeMessage)
	}
	return engine.DeletePlaylistOutput{ID: id, Message: "Playlist deleted."}, nil
}

// storeMessage is the user-facing text for library failures.
func storeMessage(err error) string {
	var limit *store.PlaylistLimitError
	switch {
	case errors.As(err, &limit):
		return limit.UserMessage()
	case errors.Is(err, store.ErrPlaylistNotFound):
		return "Playlist not found."
	}
	return "Your library is unavailable right now. Please try again later."
}

func ptr[T any](v T) *T { return &v }
