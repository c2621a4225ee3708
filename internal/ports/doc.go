// Package ports defines the interfaces that connect the engine adapters to
// infrastructure.
//
// # Port Interfaces
//
//   - [FrameSource]: delivers capture frames to a scanning device
//   - [HTTPClient]: HTTP request abstraction for runtime downloads
//
// # Usage
//
// The WebAssembly engine (internal/adapters/wasm) depends only on these
// interfaces. The frame directory watcher (internal/adapters/framedir)
// implements FrameSource and *http.Client implements HTTPClient, so tests
// can substitute either.
package ports
