package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{New(Validation, "x"), http.StatusBadRequest},
		{New(InvalidCredentials, "x"), http.StatusUnauthorized},
		{New(AccountDisabled, "x"), http.StatusUnauthorized},
		{New(Forbidden, "x"), http.StatusForbidden},
		{New(NotFound, "x"), http.StatusNotFound},
		{New(Conflict, "x"), http.StatusConflict},
		{NotEnoughStock(3), http.StatusBadRequest},
		{New(Busy, "x"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusOf(c.err); got != c.want {
			t.Fatalf("StatusOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(NotFound, "product not found")
	wrapped := fmt.Errorf("load: %w", base)
	if !Is(wrapped, NotFound) {
		t.Fatalf("expected wrapped error to keep kind")
	}
	if KindOf(errors.New("plain")) != Internal {
		t.Fatalf("plain errors should be internal")
	}
}

func TestNotEnoughStockFields(t *testing.T) {
	err := NotEnoughStock(2)
	want := "Not enough stock available. Only 2 items left."
	if err.Fields["quantity"] != want {
		t.Fatalf("unexpected field message %q", err.Fields["quantity"])
	}
	if err.Message != "Only 2 items left" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestFieldsNilWhenEmpty(t *testing.T) {
	if Fields(nil) != nil {
		t.Fatalf("expected nil for empty fields")
	}
	err := Fields(map[string]string{"name": "required"})
	if !Is(err, Validation) {
		t.Fatalf("expected validation kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("conn reset")
	err := Wrap(cause, Internal, "query failed")
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach cause")
	}
	if Retryable(err) {
		t.Fatalf("internal errors are not retryable")
	}
	if !Retryable(New(Busy, "locked")) {
		t.Fatalf("busy errors are retryable")
	}
}

func TestFieldsOf(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", New(Conflict, "taken").WithField("username", "exists"))
	if got := FieldsOf(wrapped)["username"]; got != "exists" {
		t.Fatalf("expected username field, got %q", got)
	}
	if FieldsOf(errors.New("plain")) != nil {
		t.Fatalf("plain errors carry no fields")
	}
}
