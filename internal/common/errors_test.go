package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "wrapped not found", err: fmt.Errorf("match ABC123: %w", ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: ErrConflict, want: http.StatusConflict},
		{name: "try again", err: ErrTryAgain, want: http.StatusServiceUnavailable},
		{name: "bad request", err: ErrBadRequest, want: http.StatusBadRequest},
		{name: "coded conflict", err: WithCode("match_full", fmt.Errorf("full: %w", ErrConflict)), want: http.StatusConflict},
		{name: "unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.want {
				t.Fatalf("HTTPStatusFromError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorCodeSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("join: %w", WithCode("match_full", ErrConflict))
	if got := ErrorCode(err); got != "match_full" {
		t.Fatalf("ErrorCode() = %q, want match_full", got)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected coded error to still match ErrConflict")
	}
	if got := ErrorCode(ErrConflict); got != "" {
		t.Fatalf("ErrorCode() on plain error = %q, want empty", got)
	}
}
