package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsByCode(t *testing.T) {
	err := Wrap(CodePersistence, "insert rows", stderrors.New("disk full"))
	if !stderrors.Is(err, ErrPersistence) {
		t.Fatal("expected persistence error to match sentinel")
	}
	if stderrors.Is(err, ErrPartialReplace) {
		t.Fatal("persistence error must not match partial replace")
	}
}

func TestErrorUnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("save: %w", Wrap(CodePersistence, "insert rows", cause))
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if got := CodeOf(err); got != CodePersistence {
		t.Fatalf("CodeOf = %q, want %q", got, CodePersistence)
	}
	if got := err.Error(); got != "save: insert rows: disk full" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(stderrors.New("x")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeFetch, http.StatusBadGateway},
		{CodePartialReplace, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}
