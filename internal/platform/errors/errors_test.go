package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("checkout: %w", New(CodeDiscountExpired, "discount spring expired"))
	if !HasCode(err, CodeDiscountExpired) {
		t.Fatal("expected wrapped error to match code")
	}
	if HasCode(err, CodeDiscountMaxedOut) {
		t.Fatal("expected different code not to match")
	}
	if got := CodeOf(err); got != CodeDiscountExpired {
		t.Fatalf("code = %q, want %q", got, CodeDiscountExpired)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeUnknown, "save member", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeLevelNameEmpty, http.StatusBadRequest},
		{CodeMemberInvalidStatusTransition, http.StatusConflict},
		{CodeDiscountMaxedOut, http.StatusUnprocessableEntity},
		{CodeGrantExpired, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeGrantNotConfigured, http.StatusServiceUnavailable},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestLocalizedUsesMetadata(t *testing.T) {
	err := WithMetadata(CodeMemberInvalidStatusTransition, "bad transition", map[string]string{
		"FromStatus": "expired",
		"ToStatus":   "cancelled",
	})
	want := "Cannot move membership from expired to cancelled"
	if got := err.Localized("en-US"); got != want {
		t.Fatalf("localized = %q, want %q", got, want)
	}
}
