package domain

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrContentRequired, http.StatusBadRequest},
		{ErrInvalidID, http.StatusBadRequest},
		{ErrPasteNotFound, http.StatusNotFound},
		{ErrPinRejected, http.StatusForbidden},
		{ErrRateLimitExceeded, http.StatusTooManyRequests},
		{ErrStorage, http.StatusInternalServerError},
		{ErrIDCollision, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{errors.Wrap(ErrPasteNotFound, "get paste"), http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWithCauseKeepsIdentity(t *testing.T) {
	cause := errors.New("disk full")
	err := errors.Wrap(WithCause(ErrStorage, cause), "save paste")

	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected errors.Is(err, ErrStorage)")
	}
	if errors.Is(err, ErrIDCollision) {
		t.Fatalf("storage error must not match a different code")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if KindOf(err) != KindStorage {
		t.Fatalf("KindOf = %v, want storage", KindOf(err))
	}
	if WithCause(ErrStorage, nil) != ErrStorage {
		t.Fatalf("nil cause should return the sentinel itself")
	}
}

func TestToRespHidesInternals(t *testing.T) {
	if got := ToResp(ErrPinRejected).Error; got != "pin required or incorrect" {
		t.Errorf("got %q", got)
	}
	if got := ToResp(WithCause(ErrStorage, errors.New("UNIQUE constraint failed"))).Error; got != "internal server error" {
		t.Errorf("storage detail leaked: %q", got)
	}
	if got := ToResp(errors.New("raw")).Error; got != "internal server error" {
		t.Errorf("got %q", got)
	}
}
