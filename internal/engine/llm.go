package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Completer is the language-model collaborator: instruction in, text out.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// LLM wraps a Completer with metrics, a per-call timeout and error tagging.
type LLM struct {
	completer Completer
	timeout   time.Duration
}

// NewLLM creates an LLM. timeout <= 0 leaves the deadline to the caller.
func NewLLM(c Completer, timeout time.Duration) *LLM {
	return &LLM{completer: c, timeout: timeout}
}

// Call sends one completion request. Any client failure, including deadline
// expiry, is reported as ErrGenerationFailed.
func (l *LLM) Call(ctx context.Context, system, prompt string) (string, error) {
	metrics.LLMCalls.Add(1)
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	resp, err := l.completer.Complete(ctx, system, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	return resp, nil
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(s, p) {
			s = strings.TrimPrefix(s, p)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// StripWrappers removes the formatting models put around a JSON payload:
// code fences first, then any prose before or after the first object.
func StripWrappers(s string) string {
	s = stripFences(s)
	if s == "" || s[0] == '[' {
		return s
	}
	idx := strings.IndexByte(s, '{')
	if idx < 0 {
		return s
	}
	if obj := ExtractJSONObject([]byte(s[idx:])); obj != nil {
		return string(obj)
	}
	return s[idx:]
}

// ParseJSON strips known wrappers and decodes raw into T.
// A payload that still is not valid JSON yields ErrMalformedResponse.
func ParseJSON[T any](raw string) (T, error) {
	var out T
	cleaned := StripWrappers(raw)
	if cleaned == "" {
		return out, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, fmt.Errorf("%w: %v (payload %q)", ErrMalformedResponse, err, Truncate(cleaned, 120))
	}
	return out, nil
}

// ExtractJSONObject returns the complete JSON object starting at b[0] == '{'
// by tracking brace depth outside string literals. Nil if unbalanced.
func ExtractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
