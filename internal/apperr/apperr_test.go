package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"bad request", BadRequest("missing section %s", "[matchers]"), KindBadRequest},
		{"not found", NotFound("model config not found: %d", 42), KindNotFound},
		{"conflict", Conflict("refresh token already used"), KindConflict},
		{"forbidden", Forbidden("permission denied"), KindForbidden},
		{"internal", Internal("enforcer reload failed"), KindInternal},
		{"wrapped once", fmt.Errorf("publish version: %w", NotFound("model config not found: %d", 7)), KindNotFound},
		{"wrapped twice", fmt.Errorf("handler: %w", fmt.Errorf("service: %w", Conflict("race lost"))), KindConflict},
		{"unclassified", errors.New("driver: connection reset"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessagePreserved(t *testing.T) {
	err := BadRequest("missing section [request_definition]")
	if err.Error() != "missing section [request_definition]" {
		t.Errorf("Error() = %q, want the raw message", err.Error())
	}

	wrapped := fmt.Errorf("create draft: %w", err)
	var ae *Error
	if !errors.As(wrapped, &ae) {
		t.Fatalf("expected *Error to unwrap from %v", wrapped)
	}
	if ae.Message != "missing section [request_definition]" {
		t.Errorf("unwrapped message = %q", ae.Message)
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(NotFound("policy rule not found: 3"), KindNotFound) {
		t.Error("IsKind should match the constructed kind")
	}
	if IsKind(nil, KindNotFound) {
		t.Error("IsKind(nil) must be false")
	}
	if IsKind(errors.New("plain"), KindNotFound) {
		t.Error("plain errors are Internal, not NotFound")
	}
}
