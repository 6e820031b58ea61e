package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap_IsKind(t *testing.T) {
	err := Wrap(ErrNotFound, "fact %s missing", "abc123")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("did not expect errors.Is to match ErrConflict")
	}
	if err.Error() != "fact abc123 missing" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestWrapErr_PreservesCause(t *testing.T) {
	cause := fmt.Errorf("sqlite busy")
	err := WrapErr(ErrTimeout, cause)
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("expected errors.Is to match ErrTimeout")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to match the wrapped cause")
	}
}

func TestWrapErr_Nil(t *testing.T) {
	if err := WrapErr(ErrInternal, nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
