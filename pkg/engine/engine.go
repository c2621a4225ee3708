package engine

import (
	"context"

	"github.com/bft-labs/barscan/pkg/symbology"
)

// Engine is the process-wide decoding engine.
//
// License and RuntimeLoaded are read-through accessors: they report the
// engine's own view, which may have been changed by code outside barscan.
type Engine interface {
	// License returns the license currently assigned on the engine, or "".
	License() string

	// SetLicense assigns a license. Once the runtime is loaded an engine may
	// refuse a different license with ErrLicenseLocked.
	SetLicense(license string) error

	// SetResourcePath sets where the runtime payload is loaded from.
	SetResourcePath(path string) error

	// RuntimeLoaded reports whether the binary runtime is loaded.
	RuntimeLoaded() bool

	// LoadRuntime fetches and initializes the binary runtime.
	LoadRuntime(ctx context.Context) error

	// NewReader creates a still-image decode handle.
	NewReader(ctx context.Context) (Reader, error)

	// NewScanner creates a capture device handle. The device is not open
	// until Scanner.Open is called.
	NewScanner(ctx context.Context) (Scanner, error)
}

// Closer is implemented by engines that support full teardown.
type Closer interface {
	Close(ctx context.Context) error
}

// Source hands out the engine once it is ready for use.
// lifecycle.Coordinator is the production implementation.
type Source interface {
	// ReadyEngine returns the engine, or an error of kind KindNotReady.
	ReadyEngine() (Engine, error)
}

// Result is a single decoded barcode.
type Result struct {
	Text   string
	Format symbology.Mask
}

// Target identifies where a capture device is bound: a rendering surface for
// browser engines, a frame directory for the WebAssembly adapter.
type Target string

// Reader decodes still images.
type Reader interface {
	// SetFormats restricts decoding to the symbologies in mask.
	SetFormats(ctx context.Context, mask symbology.Mask) error

	// Decode runs one decode pass over an encoded image.
	Decode(ctx context.Context, image []byte) ([]Result, error)

	// Close releases the handle. Safe to call more than once.
	Close(ctx context.Context) error
}

// DetectionHandler receives events from an open capture device.
//
// Calls for one device are made sequentially from the device's detection
// goroutine, in the order the engine produced them, and never from inside
// Scanner.Open. Implementations must return quickly.
type DetectionHandler interface {
	OnDetection(result Result)
	OnDeviceError(err error)
}

// Scanner is a capture device.
type Scanner interface {
	// SetFormats restricts decoding to the symbologies in mask.
	SetFormats(ctx context.Context, mask symbology.Mask) error

	// Open binds the device to target and starts delivering detections.
	Open(ctx context.Context, target Target, handler DetectionHandler) error

	// Close stops the device. Safe to call more than once.
	Close(ctx context.Context) error
}
