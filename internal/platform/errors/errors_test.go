package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	err := New(CodeSessionTerminal, "session is closed")
	if !stderrors.Is(err, New(CodeSessionTerminal, "other message")) {
		t.Fatal("expected errors with the same code to match")
	}
	if stderrors.Is(err, New(CodeSessionVersionConflict, "session is closed")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(CodeInfrastructure, "persist session", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "persist session" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "persist session")
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want Code
	}{
		{name: "domain error", err: New(CodeValidation, "bad input"), want: CodeValidation},
		{name: "wrapped domain error", err: fmt.Errorf("outer: %w", New(CodeNotFound, "missing")), want: CodeNotFound},
		{name: "plain error", err: stderrors.New("plain"), want: CodeUnknown},
		{name: "nil", err: nil, want: CodeUnknown},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeSessionTerminal, http.StatusConflict},
		{CodeSessionInvalidTransition, http.StatusConflict},
		{CodeSessionGuardViolation, http.StatusUnprocessableEntity},
		{CodeSessionVersionConflict, http.StatusConflict},
		{CodeSessionRateLimited, http.StatusTooManyRequests},
		{CodeActorTokenInvalid, http.StatusUnauthorized},
		{CodeInfrastructure, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		tc := tc
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
