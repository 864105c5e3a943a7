package playlist

import (
	"errors"

	"github.com/anatolykoptev/go_vosiqs/internal/engine"
)

// Stage names a pipeline step.
type Stage string

const (
	StageValidate Stage = "validate"
	StageContext  Stage = "context"
	StageMetadata Stage = "metadata"
	StageSearch   Stage = "search"
	StageCurate   Stage = "curate"
	StageAssemble Stage = "assemble"
)

// PipelineError reports which stage aborted a run.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return "playlist " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

// userMessager is implemented by errors that carry their own user-facing text.
type userMessager interface {
	UserMessage() string
}

// UserMessage maps an error to the text shown to end users.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	var pe *engine.ProviderError
	var ne *engine.NetworkError
	switch {
	case engine.IsRateLimited(err):
		return "You have exceeded the request limit. Please try again later."
	case errors.Is(err, engine.ErrInvalidPrompt):
		return "Please enter a more descriptive prompt."
	case errors.Is(err, engine.ErrNoResults):
		return "Couldn't find any videos for that vibe. Try something else!"
	case errors.Is(err, engine.ErrEmptySelection):
		return "None of the picked videos could be found. Try rerolling or rephrasing your prompt."
	case errors.Is(err, engine.ErrGenerationFailed), errors.Is(err, engine.ErrMalformedResponse):
		return "The AI failed to generate a playlist. Please try again or rephrase your prompt."
	case errors.As(err, &pe), errors.As(err, &ne):
		return "Video search is unavailable right now. Please try again later."
	}
	return "An unexpected error occurred while generating your playlist."
}
