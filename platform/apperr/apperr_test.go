package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindValidation:   http.StatusUnprocessableEntity,
		KindBadRequest:   http.StatusBadRequest,
		KindConflict:     http.StatusConflict,
		KindForbidden:    http.StatusForbidden,
		KindUnauthorized: http.StatusUnauthorized,
		KindInternal:     http.StatusInternalServerError,
		KindUnknown:      http.StatusBadRequest,
	}
	for kind, want := range cases {
		if got := New(kind, "x").HTTPStatus(); got != want {
			t.Fatalf("kind %d: expected %d, got %d", kind, want, got)
		}
	}
}

func TestKindAndCodeSurviveWrapping(t *testing.T) {
	base := Validation("transition not allowed").WithCode("INVALID_TRANSITION")
	wrapped := fmt.Errorf("lifecycle: %w", base)

	if !Is(wrapped, KindValidation) {
		t.Fatalf("expected validation kind through wrap")
	}
	if !HasCode(wrapped, "INVALID_TRANSITION") {
		t.Fatalf("expected code through wrap, got %q", GetCode(wrapped))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain error")
	}
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Wrap(KindInternal, "persist cursor", errors.New("conn reset")).WithOp("assignment.Decide")
	want := "assignment.Decide: persist cursor: conn reset"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
