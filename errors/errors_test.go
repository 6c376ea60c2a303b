package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestEBuildsStoreError(t *testing.T) {
	cause := stderrors.New("disk full")
	err := E(Operation("sqlite.Add"), Component("storage/sqlite"), KindInternal, cause)

	if err.Op != "sqlite.Add" {
		t.Errorf("expected op sqlite.Add, got %s", err.Op)
	}
	if err.Component != "storage/sqlite" {
		t.Errorf("expected component storage/sqlite, got %s", err.Component)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "sqlite.Add") || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"conflict", E(Operation("sqlite.Add"), KindConflict, stderrors.New("dup")), KindConflict},
		{"wrapped", fmt.Errorf("outer: %w", E(KindUnavailable, stderrors.New("down"))), KindUnavailable},
		{"plain", stderrors.New("plain"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsInnerKind(t *testing.T) {
	inner := E(Operation("sqlite.Add"), KindConflict, stderrors.New("dup"))
	outer := WrapOpComponent(inner, "student.AddStudent", "student")
	if got := KindOf(outer); got != KindConflict {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindConflict)
	}
	explicit := WrapOpComponentKind(inner, "op", "comp", KindValidation)
	if got := KindOf(explicit); got != KindValidation {
		t.Errorf("explicit kind must win, got %s", got)
	}
}

func TestRetryableDefaults(t *testing.T) {
	if !IsRetryable(E(KindUnavailable, stderrors.New("down"))) {
		t.Error("unavailable errors should default to retryable")
	}
	if IsRetryable(E(KindConflict, stderrors.New("dup"))) {
		t.Error("conflict errors should not be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("plain errors are never retryable")
	}
}

func TestWrapOpComponentNil(t *testing.T) {
	if WrapOpComponent(nil, "op", "comp") != nil {
		t.Error("wrapping nil must return nil")
	}
	if WrapOpComponentKind(nil, "op", "comp", KindInternal) != nil {
		t.Error("wrapping nil must return nil")
	}
}
