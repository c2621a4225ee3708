// Package decode runs one-shot barcode decodes over still images.
//
// A [Decoder] borrows the ready engine from an [engine.Source], creates a
// short-lived reader for each request and releases it before returning.
// Decoding never changes the engine's lifecycle state: a blurry photo is a
// per-request [engine.ErrNoBarcodeFound], not an engine failure.
//
// # Usage
//
//	d := decode.NewDecoder(coordinator, logger)
//	text, err := d.Decode(ctx, decode.Request{Image: data})
//	if errors.Is(err, engine.ErrNoBarcodeFound) {
//	    // ask the user for a sharper image
//	}
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package decode
