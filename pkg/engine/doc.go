// Package engine defines the decoding engine as an opaque capability.
//
// The engine is a third-party subsystem with an expensive one-time runtime
// load, a cheap license assignment, and two kinds of short-lived handles:
//
//   - [Reader]: decodes one still image at a time.
//   - [Scanner]: a capture device that reports detections asynchronously
//     to a [DetectionHandler] until closed.
//
// Nothing in this package knows how decoding works. Adapters implement
// [Engine] (see internal/adapters/wasm for the WebAssembly runtime) and the
// enginetest package provides a scriptable fake.
//
// # Errors
//
// All barscan operations report failures as [*Error] values carrying a
// [Kind]. Use errors.Is against the sentinels ([ErrNotReady],
// [ErrLicenseChangeRequiresReload], ...) to branch on the kind:
//
//	if errors.Is(err, engine.ErrLicenseChangeRequiresReload) {
//	    // offer the user a reload
//	}
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package engine
