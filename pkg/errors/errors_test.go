// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, code lookup and context conversion

package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/arthur-debert/modman/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "unsafe_path_error",
			code:    errors.ErrUnsafePath,
			message: "path escapes the game directory",
			wantStr: "[UNSAFE_PATH] path escapes the game directory",
		},
		{
			name:    "unsupported_operation_error",
			code:    errors.ErrUnsupported,
			message: "cannot modify archive of type rar",
			wantStr: "[UNSUPPORTED_OPERATION] cannot modify archive of type rar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			if err.Code != tt.code {
				t.Errorf("New() code = %v, want %v", err.Code, tt.code)
			}
			if err.Details == nil {
				t.Error("New() details should be initialized")
			}
			if got := err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := errors.Newf(errors.ErrNotFound, "file %s not found in %s", "a.esp", "alpha.zip")
	if err.Message != "file a.esp not found in alpha.zip" {
		t.Errorf("Newf() message = %q", err.Message)
	}
}

func TestWrap(t *testing.T) {
	baseErr := stderrors.New("base error")

	t.Run("wrap_non_nil_error", func(t *testing.T) {
		err := errors.Wrap(baseErr, errors.ErrTransaction, "commit failed")

		if err.Wrapped != baseErr {
			t.Error("Wrap() should preserve wrapped error")
		}
		wantStr := "[TRANSACTION] commit failed: base error"
		if got := err.Error(); got != wantStr {
			t.Errorf("Error() = %q, want %q", got, wantStr)
		}
	})

	t.Run("wrap_nil_error_returns_nil", func(t *testing.T) {
		if err := errors.Wrap(nil, errors.ErrInternal, "internal error"); err != nil {
			t.Error("Wrap(nil) should return nil")
		}
		if err := errors.Wrapf(nil, errors.ErrInternal, "internal %s", "error"); err != nil {
			t.Error("Wrapf(nil) should return nil")
		}
	})
}

func TestWithDetail(t *testing.T) {
	err := errors.New(errors.ErrRollback, "rollback incomplete").
		WithDetail("resources", []string{"data/a.esp"}).
		WithDetail("mod", "alpha")

	if err.Details["mod"] != "alpha" {
		t.Errorf("WithDetail() mod = %v", err.Details["mod"])
	}
	details := errors.GetErrorDetails(err)
	if got, ok := details["resources"].([]string); !ok || len(got) != 1 {
		t.Errorf("GetErrorDetails() resources = %v", details["resources"])
	}
}

func TestIs(t *testing.T) {
	err1 := errors.New(errors.ErrNotFound, "error 1")
	err2 := errors.New(errors.ErrNotFound, "error 2")
	err3 := errors.New(errors.ErrInternal, "error 3")

	t.Run("same_code_is_equal", func(t *testing.T) {
		if !err1.Is(err2) {
			t.Error("Is() should return true for same code")
		}
	})

	t.Run("different_code_not_equal", func(t *testing.T) {
		if err1.Is(err3) {
			t.Error("Is() should return false for different codes")
		}
	})

	t.Run("works_with_errors_Is", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", err1)
		if !stderrors.Is(wrapped, err2) {
			t.Error("errors.Is() should work through fmt wrapping")
		}
	})
}

func TestIsErrorCode(t *testing.T) {
	inner := errors.New(errors.ErrUnsafePath, "bad path")
	outer := errors.Wrap(inner, errors.ErrScript, "script failed")

	tests := []struct {
		name     string
		err      error
		code     errors.ErrorCode
		expected bool
	}{
		{"matching_code", inner, errors.ErrUnsafePath, true},
		{"different_code", inner, errors.ErrInternal, false},
		{"outer_code", outer, errors.ErrScript, true},
		{"inner_code_through_chain", outer, errors.ErrUnsafePath, true},
		{"non_modman_error", stderrors.New("standard error"), errors.ErrNotFound, false},
		{"nil_error", nil, errors.ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.IsErrorCode(tt.err, tt.code); got != tt.expected {
				t.Errorf("IsErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected errors.ErrorCode
	}{
		{"modman_error", errors.New(errors.ErrLedgerFormat, "bad ledger"), errors.ErrLedgerFormat},
		{"standard_error", stderrors.New("standard error"), errors.ErrUnknown},
		{"nil_error", nil, errors.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		err := errors.FromContext(context.Canceled)
		if !errors.IsErrorCode(err, errors.ErrCancelled) {
			t.Errorf("FromContext(Canceled) = %v", err)
		}
		if !stderrors.Is(err, context.Canceled) {
			t.Error("FromContext should keep the context error in the chain")
		}
	})

	t.Run("deadline", func(t *testing.T) {
		if !errors.IsErrorCode(errors.FromContext(context.DeadlineExceeded), errors.ErrCancelled) {
			t.Error("deadline should map to CANCELLED")
		}
	})

	t.Run("other_errors_pass_through", func(t *testing.T) {
		base := stderrors.New("disk full")
		if errors.FromContext(base) != base {
			t.Error("non-context errors should pass through")
		}
		if errors.FromContext(nil) != nil {
			t.Error("nil should stay nil")
		}
	})
}
