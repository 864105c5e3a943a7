package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

// Placeholders used when the model leaves a field empty.
const (
	DefaultName        = "Untitled Playlist"
	DefaultDescription = "A playlist curated from your prompt."
)

// Model is the language-model call both generators depend on.
// *engine.LLM satisfies it.
type Model interface {
	Call(ctx context.Context, system, prompt string) (string, error)
}

// MetadataGenerator names the playlist and refines the prompt into a
// search query.
type MetadataGenerator struct {
	llm Model
}

func NewMetadataGenerator(llm Model) *MetadataGenerator {
	return &MetadataGenerator{llm: llm}
}

// Generate returns metadata whose RefinedQuery is never empty: it falls back
// to the prompt itself.
func (g *MetadataGenerator) Generate(ctx context.Context, prompt, userContext string) (engine.PlaylistMetadata, error) {
	raw, err := g.llm.Call(ctx, metadataSystem, fmt.Sprintf(metadataPrompt, prompt, contextOrNone(userContext)))
	if err != nil {
		return engine.PlaylistMetadata{}, generationErr(err)
	}
	meta, err := engine.ParseJSON[engine.PlaylistMetadata](raw)
	if err != nil {
		return engine.PlaylistMetadata{}, err
	}

	meta.Name = orDefault(meta.Name, DefaultName)
	meta.Description = orDefault(meta.Description, DefaultDescription)
	meta.RefinedQuery = orDefault(engine.CollapseSpace(meta.RefinedQuery), strings.TrimSpace(prompt))
	return meta, nil
}

// generationErr tags model-call failures so callers can tell them apart from
// parse failures.
func generationErr(err error) error {
	if errors.Is(err, engine.ErrGenerationFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", engine.ErrGenerationFailed, err)
}

func contextOrNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
