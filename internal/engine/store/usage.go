package store

import (
	"fmt"
	"time"
)

// usage is one user's counter row.
type usage struct {
	Pro       bool
	Prompts   int
	Rerolls   int
	LastReset time.Time
}

// applyUsage returns the row to write back after billing one request of kind
// at now. Pro users pass through untouched. An elapsed window resets both
// counters before the request is counted. Rerolls are counted but never
// refused.
func applyUsage(u usage, kind UsageKind, now time.Time, lim Limits) (usage, error) {
	if !kind.valid() {
		return u, fmt.Errorf("unknown usage kind %q", kind)
	}
	if u.Pro {
		return u, nil
	}
	if u.LastReset.IsZero() || now.Sub(u.LastReset) >= lim.Window {
		u.Prompts, u.Rerolls, u.LastReset = 0, 0, now
	}
	switch kind {
	case UsagePrompt:
		if u.Prompts >= lim.FreePrompts {
			return u, &UsageLimitError{Limit: lim.FreePrompts, RetryAfter: u.LastReset.Add(lim.Window).Sub(now)}
		}
		u.Prompts++
	case UsageReroll:
		u.Rerolls++
	}
	return u, nil
}
