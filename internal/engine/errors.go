package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error taxonomy shared by the pipeline stages and their adapters.
var (
	ErrInvalidPrompt       = errors.New("invalid prompt")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrMalformedResponse   = errors.New("malformed model response")
	ErrProviderUnavailable = errors.New("video provider not configured")
	ErrNoResults           = errors.New("no results")
	ErrEmptySelection      = errors.New("empty selection")
)

// ProviderError is a non-success response from the video provider.
// Reason carries the API's machine-readable error reason when present.
type ProviderError struct {
	Status  int
	Message string
	Reason  string
}

// quotaReasons are YouTube error reasons that mean "wait and retry".
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("youtube API %d: %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("youtube API %d: %s", e.Status, e.Message)
}

// NetworkError is a transport failure talking to the video provider.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is an HTTP-429 class failure from
// either the language model or the video provider.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Status == http.StatusTooManyRequests || quotaReasons[pe.Reason]
	}
	// Model clients report quota errors only as text. Parse failures quote
	// model output, so only failed calls are matched.
	if !errors.Is(err, ErrGenerationFailed) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quotaexceeded")
}
