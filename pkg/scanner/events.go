package scanner

import (
	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// PhaseChangeEvent reports an engine phase transition.
type PhaseChangeEvent struct {
	Previous lifecycle.Phase
	Current  lifecycle.Phase
	Reason   string
}

// SessionStatusEvent reports a capture session transition.
type SessionStatusEvent struct {
	SessionID string
	Previous  capture.Status
	Current   capture.Status
	// Err is set when the session fell back to Idle.
	Err error
}

// DetectionSource tells where a detection came from.
type DetectionSource string

const (
	SourceCapture DetectionSource = "capture"
	SourceImage   DetectionSource = "image"
)

// DetectionEvent reports a decoded barcode.
type DetectionEvent struct {
	Source DetectionSource
	// SessionID is empty for still-image decodes.
	SessionID string
	Text      string
	Format    symbology.Mask
}

// ErrorEvent reports a failed operation.
type ErrorEvent struct {
	Op  string
	Err error
}

// EventHandler receives scanner events.
// Embed BaseEventHandler to implement only the methods you need.
type EventHandler interface {
	OnPhaseChange(event PhaseChangeEvent)
	OnSessionStatus(event SessionStatusEvent)
	OnDetection(event DetectionEvent)
	OnError(event ErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
type BaseEventHandler struct{}

func (BaseEventHandler) OnPhaseChange(PhaseChangeEvent)     {}
func (BaseEventHandler) OnSessionStatus(SessionStatusEvent) {}
func (BaseEventHandler) OnDetection(DetectionEvent)         {}
func (BaseEventHandler) OnError(ErrorEvent)                 {}

// handlers fans events out to every registered handler.
type handlers []EventHandler

func (hs handlers) OnPhaseChange(event PhaseChangeEvent) {
	for _, h := range hs {
		h.OnPhaseChange(event)
	}
}

func (hs handlers) OnSessionStatus(event SessionStatusEvent) {
	for _, h := range hs {
		h.OnSessionStatus(event)
	}
}

func (hs handlers) OnDetection(event DetectionEvent) {
	for _, h := range hs {
		h.OnDetection(event)
	}
}

func (hs handlers) OnError(event ErrorEvent) {
	for _, h := range hs {
		h.OnError(event)
	}
}
