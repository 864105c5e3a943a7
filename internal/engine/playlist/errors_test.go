package playlist

import (
	"errors"
	"fmt"
	"testing"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
	"github.com/stretchr/testify/assert"
)

type limitErr struct{}

func (limitErr) Error() string       { return "limit" }
func (limitErr) UserMessage() string { return "You have used all your free prompts." }

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid prompt", &PipelineError{StageValidate, engine.ErrInvalidPrompt}, "Please enter a more descriptive prompt."},
		{"no results", &PipelineError{StageSearch, engine.ErrNoResults}, "Couldn't find any videos for that vibe. Try something else!"},
		{"model 429", &PipelineError{StageMetadata, fmt.Errorf("%w: 429 Too Many Requests", engine.ErrGenerationFailed)}, "You have exceeded the request limit. Please try again later."},
		{"youtube quota", &PipelineError{StageSearch, &engine.ProviderError{Status: 403, Reason: "quotaExceeded"}}, "You have exceeded the request limit. Please try again later."},
		{"model failure", &PipelineError{StageMetadata, engine.ErrMalformedResponse}, "The AI failed to generate a playlist. Please try again or rephrase your prompt."},
		{"provider", &PipelineError{StageSearch, &engine.ProviderError{Status: 500}}, "Video search is unavailable right now. Please try again later."},
		{"network", &PipelineError{StageSearch, &engine.NetworkError{Err: errors.New("dial tcp")}}, "Video search is unavailable right now. Please try again later."},
		{"empty selection", &PipelineError{StageAssemble, engine.ErrEmptySelection}, "None of the picked videos could be found. Try rerolling or rephrasing your prompt."},
		{"own message", fmt.Errorf("usage: %w", limitErr{}), "You have used all your free prompts."},
		{"unknown", errors.New("weird"), "An unexpected error occurred while generating your playlist."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestPipelineErrorWraps(t *testing.T) {
	err := &PipelineError{Stage: StageSearch, Err: engine.ErrNoResults}
	assert.Equal(t, "playlist search: no results", err.Error())
	assert.ErrorIs(t, err, engine.ErrNoResults)
}
