package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NotFound("lead not found"), http.StatusNotFound},
		{Validation("bad rules"), http.StatusBadRequest},
		{BadRequest("bad json"), http.StatusBadRequest},
		{Forbidden("lead is not stale"), http.StatusForbidden},
		{Unauthorized("missing token"), http.StatusUnauthorized},
		{Conflict("duplicate"), http.StatusConflict},
		{Internal("boom"), http.StatusInternalServerError},
		{New(KindUnknown, "?"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("%q: expected %d, got %d", tc.err.Message, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("reassign: %w", Forbidden("lead is not stale"))

	if !Is(wrapped, KindForbidden) {
		t.Fatalf("expected wrapped error to carry KindForbidden, got %v", GetKind(wrapped))
	}
	if GetKind(fmt.Errorf("plain")) != KindUnknown {
		t.Fatal("expected plain error to be KindUnknown")
	}
}
