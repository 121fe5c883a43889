package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("quantity is required"), http.StatusBadRequest},
		{"not found", NotFound("order %s not found", "o1"), http.StatusNotFound},
		{"conflict", Conflict("orders/o1"), http.StatusConflict},
		{"storage", Storage("get order", errors.New("connection refused")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("create: %w", Validation("address is required")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStoragePassesKindedErrorsThrough(t *testing.T) {
	nf := NotFound("order missing")
	if got := Storage("get order", nf); got != nf {
		t.Fatalf("expected not-found error to pass through, got %v", got)
	}
	if Storage("noop", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("save: %w", Conflict("orders/o1"))
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected conflict to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("conflict should not match ErrNotFound")
	}

	cause := errors.New("socket closed")
	if !errors.Is(Storage("set", cause), cause) {
		t.Fatal("expected storage error to unwrap to its cause")
	}
}

func TestExhausted(t *testing.T) {
	err := Exhausted("merge order", Conflict("orders/o1"))
	if KindOf(err) != KindStorage {
		t.Fatalf("KindOf = %s, want storage", KindOf(err))
	}
	if HTTPStatus(err) != 500 {
		t.Fatalf("HTTPStatus = %d", HTTPStatus(err))
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected the conflict cause to stay reachable")
	}
}
