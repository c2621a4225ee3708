package engine

import (
	"errors"
	"fmt"
)

// Kind classifies barscan failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotReady: an operation was attempted before the engine was ready.
	KindNotReady
	// KindInitializationFailed: the runtime load or configuration failed.
	// A later EnsureReady may retry.
	KindInitializationFailed
	// KindLicenseChangeRequiresReload: the engine refused a license change
	// after its runtime was loaded. Only a full reset recovers.
	KindLicenseChangeRequiresReload
	// KindLoadTimedOut: the runtime load exceeded its ceiling.
	KindLoadTimedOut
	// KindDeviceOpenFailed: a capture device could not be opened.
	KindDeviceOpenFailed
	// KindNoBarcodeFound: a decode pass produced no results.
	KindNoBarcodeFound
	// KindInvalidInput: the supplied blob is not an image.
	KindInvalidInput
	// KindEngineFailure: opaque failure reported by the engine.
	KindEngineFailure
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotReady:
		return "NotReady"
	case KindInitializationFailed:
		return "InitializationFailed"
	case KindLicenseChangeRequiresReload:
		return "LicenseChangeRequiresReload"
	case KindLoadTimedOut:
		return "LoadTimedOut"
	case KindDeviceOpenFailed:
		return "DeviceOpenFailed"
	case KindNoBarcodeFound:
		return "NoBarcodeFound"
	case KindInvalidInput:
		return "InvalidInput"
	case KindEngineFailure:
		return "EngineFailure"
	default:
		return "Unknown"
	}
}

// Error is a classified barscan failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrNotReady                    = &Error{Kind: KindNotReady}
	ErrInitializationFailed        = &Error{Kind: KindInitializationFailed}
	ErrLicenseChangeRequiresReload = &Error{Kind: KindLicenseChangeRequiresReload}
	ErrLoadTimedOut                = &Error{Kind: KindLoadTimedOut}
	ErrDeviceOpenFailed            = &Error{Kind: KindDeviceOpenFailed}
	ErrNoBarcodeFound              = &Error{Kind: KindNoBarcodeFound}
	ErrInvalidInput                = &Error{Kind: KindInvalidInput}
	ErrEngineFailure               = &Error{Kind: KindEngineFailure}
)

// ErrLicenseLocked is returned by Engine.SetLicense when the engine does not
// support changing the license after its runtime is loaded.
var ErrLicenseLocked = errors.New("engine: license cannot change after runtime load")

// NewError creates a classified error. err may be nil.
func NewError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	msg := "barscan: " + kindMessage(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func kindMessage(k Kind) string {
	switch k {
	case KindNotReady:
		return "engine not ready"
	case KindInitializationFailed:
		return "engine initialization failed"
	case KindLicenseChangeRequiresReload:
		return "license changed, reload required"
	case KindLoadTimedOut:
		return "engine load timed out"
	case KindDeviceOpenFailed:
		return "capture device open failed"
	case KindNoBarcodeFound:
		return "no barcode found"
	case KindInvalidInput:
		return "invalid input"
	case KindEngineFailure:
		return "engine failure"
	default:
		return "unknown error"
	}
}
