package wasm

import (
	"context"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Reader decodes still images on its own payload instance.
type Reader struct {
	bridge *bridge
}

// SetFormats implements engine.Reader.
func (r *Reader) SetFormats(ctx context.Context, mask symbology.Mask) error {
	return r.bridge.setFormats(ctx, mask)
}

// Decode implements engine.Reader.
func (r *Reader) Decode(ctx context.Context, image []byte) ([]engine.Result, error) {
	return r.bridge.decode(ctx, image)
}

// Close implements engine.Reader.
func (r *Reader) Close(ctx context.Context) error {
	return r.bridge.close(ctx)
}

var _ engine.Reader = (*Reader)(nil)
