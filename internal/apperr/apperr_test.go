package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestStatusCodeAndMessageForTaggedError(t *testing.T) {
	err := New(NotFound, "media item not found")

	if got := Status(err); got != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", got)
	}
	if got := Code(err); got != "NotFound" {
		t.Errorf("Code = %q, want NotFound", got)
	}
	if got := Message(err); got != "media item not found" {
		t.Errorf("Message = %q, want %q", got, "media item not found")
	}
}

func TestStatusDefaultsToInternalForUntaggedError(t *testing.T) {
	err := errors.New("plain error")

	if got := Status(err); got != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", got)
	}
	if got := Code(err); got != "Internal" {
		t.Errorf("Code = %q, want Internal", got)
	}
}

func TestWrapKeepsCauseOutOfMessageButInErrorString(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Upstream, "dial source failed", cause)

	if got := Message(err); got != "dial source failed" {
		t.Errorf("Message = %q, want %q (cause must not leak)", got, "dial source failed")
	}
	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve the cause for errors.Is/errors.Unwrap")
	}
}
