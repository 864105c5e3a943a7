// Package toolutil provides shared helpers for the playlist MCP tools.
package toolutil

import (
	"errors"
	"strings"
)

// ErrNoStore is returned by persistence tools when no database is configured.
var ErrNoStore = errors.New("playlist storage is not configured on this server")

// ToolError carries a user-facing message while keeping the cause for errors.Is.
type ToolError struct {
	Message string
	Err     error
}

func (e *ToolError) Error() string { return e.Message }

func (e *ToolError) Unwrap() error { return e.Err }

// UserError wraps err so the tool result shows msg instead of internals.
// A nil err stays nil.
func UserError(err error, msg func(error) string) error {
	if err == nil {
		return nil
	}
	return &ToolError{Message: msg(err), Err: err}
}

// NormID trims an identifier field; empty means absent.
func NormID(id string) string {
	return strings.TrimSpace(id)
}

// Require returns an error naming the first empty field, in argument order.
// Pairs are name, value.
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return errors.New(pairs[i] + " is required")
		}
	}
	return nil
}
