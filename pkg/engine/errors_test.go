package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	cause := errors.New("404 not found")
	err := NewError(KindInitializationFailed, "fetch payload", cause)

	if !errors.Is(err, ErrInitializationFailed) {
		t.Error("errors.Is(err, ErrInitializationFailed) = false, want true")
	}
	if errors.Is(err, ErrLoadTimedOut) {
		t.Error("errors.Is(err, ErrLoadTimedOut) = true, want false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	wrapped := fmt.Errorf("start scanner: %w", err)
	if !errors.Is(wrapped, ErrInitializationFailed) {
		t.Error("wrapped error should still match its kind")
	}
	if got := KindOf(wrapped); got != KindInitializationFailed {
		t.Errorf("KindOf() = %v, want InitializationFailed", got)
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{ErrNotReady, "barscan: engine not ready"},
		{NewError(KindEngineFailure, "decode", errors.New("trap")), "barscan: engine failure: decode: trap"},
		{NewError(KindLicenseChangeRequiresReload, "", nil), "barscan: license changed, reload required"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want Unknown", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want Unknown", got)
	}
}

func TestKind_String(t *testing.T) {
	if KindNoBarcodeFound.String() != "NoBarcodeFound" {
		t.Errorf("String() = %q", KindNoBarcodeFound.String())
	}
	if Kind(99).String() != "Unknown" {
		t.Errorf("String() = %q, want Unknown", Kind(99).String())
	}
}
