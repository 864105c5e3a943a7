package toolutil

import (
	"errors"
	"testing"
)

func TestUserError(t *testing.T) {
	if UserError(nil, func(error) string { return "x" }) != nil {
		t.Fatal("nil error should stay nil")
	}
	cause := errors.New("pq: connection refused")
	err := UserError(cause, func(error) string { return "try again later" })
	if err.Error() != "try again later" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable with errors.Is")
	}
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		want  string
	}{
		{"all present", []string{"user_id", "u1", "id", "p1"}, ""},
		{"first missing", []string{"user_id", "", "id", ""}, "user_id is required"},
		{"blank counts as missing", []string{"user_id", "u1", "id", "   "}, "id is required"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(tt.pairs...)
			got := ""
			if err != nil {
				got = err.Error()
			}
			if got != tt.want {
				t.Errorf("Require() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormID(t *testing.T) {
	if got := NormID("  abc \n"); got != "abc" {
		t.Errorf("NormID = %q", got)
	}
}
