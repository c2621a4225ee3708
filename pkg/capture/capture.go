package capture

import (
	"errors"
	"fmt"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Common session errors.
var (
	ErrClosed       = errors.New("capture: session closed")
	ErrInvalidState = errors.New("capture: invalid session state")
)

// Mode selects what happens after a detection.
type Mode int

const (
	// SingleShot closes the device after the first detection.
	SingleShot Mode = iota
	// Continuous keeps reporting detections until the session is closed.
	Continuous
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case SingleShot:
		return "single"
	case Continuous:
		return "continuous"
	default:
		return "unknown"
	}
}

// ParseMode parses "single" or "continuous". Empty selects SingleShot.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "single":
		return SingleShot, nil
	case "continuous":
		return Continuous, nil
	default:
		return SingleShot, fmt.Errorf("capture: unknown scan mode %q", s)
	}
}

// Status is the session state.
type Status int

const (
	StatusIdle Status = iota
	StatusInitializing
	StatusOpen
	StatusCompleted
	StatusClosed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusInitializing:
		return "Initializing"
	case StatusOpen:
		return "Open"
	case StatusCompleted:
		return "Completed"
	case StatusClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// OutputSlot receives every decoded text.
type OutputSlot interface {
	SetValue(text string)
}

// OutputFunc adapts a function to OutputSlot.
type OutputFunc func(text string)

// SetValue calls f(text).
func (f OutputFunc) SetValue(text string) { f(text) }

// DetectionEvent is the payload handed to an Action.
type DetectionEvent struct {
	ScannedResult string `json:"scannedResult"`
}

// Action is the host callback invoked on detection.
type Action interface {
	// CanExecute reports whether the action may run now.
	CanExecute() bool
	Execute(event DetectionEvent)
}

// ActionFunc adapts a function to an always-executable Action.
type ActionFunc func(event DetectionEvent)

// CanExecute always returns true.
func (f ActionFunc) CanExecute() bool { return true }

// Execute calls f(event).
func (f ActionFunc) Execute(event DetectionEvent) { f(event) }

// Observer is notified about session activity. Calls are made without the
// session lock held.
type Observer interface {
	// OnStatusChange reports a status transition. err is the session error
	// when the session fell back to Idle, nil otherwise.
	OnStatusChange(sessionID string, previous, current Status, err error)
	OnDetection(sessionID string, result engine.Result)
}

// Config configures a session. All fields are fixed for the session's life.
type Config struct {
	Mode Mode

	// Formats restricts decoding. The zero mask applies no filter.
	Formats symbology.Mask

	// Target is where the device is bound.
	Target engine.Target

	// Output receives the decoded text. Optional.
	Output OutputSlot

	// Action runs after Output is written, when executable. Optional.
	Action Action
}
