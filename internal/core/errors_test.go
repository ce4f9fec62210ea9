package core

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   error
	}{
		{"not found", NotFound("wallet.get", "wallet %d not found", 7), KindNotFound, ErrNotFound},
		{"validation", Validation("transfer", "source and destination must differ"), KindValidation, ErrValidation},
		{"conflict", Conflict("category.create", "duplicate"), KindConflict, ErrConflict},
		{"internal", Internal("commit", sql.ErrConnDone), KindInternal, ErrInternal},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("x", "gone")), KindNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if !errors.Is(tt.err, tt.is) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.is)
			}
		})
	}
}

func TestInternalKeepsTypedErrors(t *testing.T) {
	nf := NotFound("wallet.get", "wallet not found")
	if got := Internal("tx", nf); got != nf {
		t.Fatalf("typed error should pass through, got %v", got)
	}
	if Internal("tx", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	wrapped := Internal("tx", sql.ErrTxDone)
	if !errors.Is(wrapped, sql.ErrTxDone) {
		t.Fatalf("internal error should unwrap to cause")
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(Validation("transfer", "source and destination must differ")); got != "source and destination must differ" {
		t.Fatalf("got %q", got)
	}
	if got := PublicMessage(Internal("db", errors.New("connection reset by peer"))); got != "internal error" {
		t.Fatalf("internal details leaked: %q", got)
	}
}

func TestSentinelsDoNotMatchOtherKinds(t *testing.T) {
	if errors.Is(NotFound("a", "b"), ErrConflict) {
		t.Fatalf("not found must not match conflict")
	}
	if errors.Is(ErrInvalidAmount, ErrNotFound) {
		t.Fatalf("validation must not match not found")
	}
}
