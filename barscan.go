// Package barscan is an embeddable barcode scanner.
//
// Example usage:
//
//	cfg := barscan.DefaultConfig()
//	cfg.LicenseKey = "your-license"
//	cfg.DecodeMode = barscan.DecodeBoth
//	cfg.Target = "/var/spool/frames"
//	s, err := barscan.New(cfg, barscan.WithOutput(slot))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Start(ctx); err != nil {
//	    fmt.Println(s.View().Error)
//	}
//	defer s.Stop(ctx)
package barscan

import (
	"context"

	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/scanner"
)

// Config holds the configuration of one scanner instance.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = scanner.Config

// Scanner is one embeddable scanner instance.
type Scanner = scanner.Scanner

// Option configures optional behavior of a Scanner.
type Option = scanner.Option

// View is the localized, user-visible state of an instance.
type View = scanner.View

// DecodeMode selects live capture, still images or both.
type DecodeMode = scanner.DecodeMode

// Decode modes.
const (
	DecodeScan  = scanner.DecodeScan
	DecodeImage = scanner.DecodeImage
	DecodeBoth  = scanner.DecodeBoth
)

// OutputFunc adapts a function to the output slot that receives decoded text.
type OutputFunc = capture.OutputFunc

// ActionFunc adapts a function to the action run after each detection.
type ActionFunc = capture.ActionFunc

// DetectionEvent is the payload handed to actions.
type DetectionEvent = capture.DetectionEvent

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return scanner.DefaultConfig()
}

// New creates a scanner instance sharing the process-wide engine.
func New(cfg Config, opts ...Option) (*Scanner, error) {
	return scanner.New(cfg, opts...)
}

// Preload makes the process-wide engine ready without opening a capture
// device, so later instances start without waiting for the runtime load.
func Preload(ctx context.Context, license, resourcePath string, opts ...Option) error {
	cfg := DefaultConfig()
	cfg.LicenseKey = license
	cfg.EngineResourcePath = resourcePath
	cfg.PreloadOnly = true

	s, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	// A failed Start leaves the instance started, so Stop runs either way.
	startErr := s.Start(ctx)
	stopErr := s.Stop(ctx)
	if startErr != nil {
		return startErr
	}
	return stopErr
}

// WithLogger sets a custom logger for structured logging.
func WithLogger(logger log.Logger) Option {
	return scanner.WithLogger(logger)
}

// WithOutput sets the slot that receives every decoded text.
func WithOutput(slot capture.OutputSlot) Option {
	return scanner.WithOutput(slot)
}

// WithAction sets the callback run after each detection.
func WithAction(action capture.Action) Option {
	return scanner.WithAction(action)
}

// WithEngine uses eng when this instance creates the process-wide engine.
func WithEngine(eng engine.Engine) Option {
	return scanner.WithEngine(eng)
}

// WithEventHandler adds a handler for scanner events.
func WithEventHandler(handler scanner.EventHandler) Option {
	return scanner.WithEventHandler(handler)
}

// EngineState returns the process-wide engine state, and false when no
// instance has created the engine yet.
func EngineState() (lifecycle.State, bool) {
	c := lifecycle.Default()
	if c == nil {
		return lifecycle.State{}, false
	}
	return c.Snapshot(), true
}

// Is reports whether err is a barscan failure of the given kind, e.g.
// barscan.Is(err, engine.KindNoBarcodeFound).
func Is(err error, kind engine.Kind) bool {
	return engine.KindOf(err) == kind
}
