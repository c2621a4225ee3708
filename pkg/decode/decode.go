package decode

import (
	"context"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Request is a single still-image decode.
type Request struct {
	// Image is the encoded image.
	Image []byte

	// ContentType is the declared media type, e.g. from an upload. When
	// empty the type is sniffed from Image.
	ContentType string

	// Formats restricts decoding. The zero mask applies no filter.
	Formats symbology.Mask
}

// Decoder runs still-image decodes. It is safe for concurrent use.
type Decoder struct {
	src    engine.Source
	logger log.Logger
}

// NewDecoder creates a decoder over src.
func NewDecoder(src engine.Source, logger log.Logger) *Decoder {
	return &Decoder{src: src, logger: log.OrNoop(logger)}
}

// Decode returns the text of the first barcode found in req.Image.
func (d *Decoder) Decode(ctx context.Context, req Request) (string, error) {
	eng, err := d.src.ReadyEngine()
	if err != nil {
		return "", err
	}

	mediaType, err := imageType(req)
	if err != nil {
		return "", err
	}

	reader, err := eng.NewReader(ctx)
	if err != nil {
		return "", engine.NewError(engine.KindEngineFailure, "create reader", err)
	}
	defer func() {
		if err := reader.Close(ctx); err != nil {
			d.logger.Warn("failed to release reader", log.Err(err))
		}
	}()

	if req.Formats.Restricts() {
		if err := reader.SetFormats(ctx, req.Formats); err != nil {
			return "", engine.NewError(engine.KindEngineFailure, "set formats", err)
		}
	}

	start := time.Now()
	results, err := reader.Decode(ctx, req.Image)
	if err != nil {
		return "", engine.NewError(engine.KindEngineFailure, "decode image", err)
	}
	if len(results) == 0 {
		d.logger.Debug("no barcode in image",
			log.String("content_type", mediaType),
			log.Int("bytes", len(req.Image)),
			log.Duration("elapsed", time.Since(start)),
		)
		return "", engine.NewError(engine.KindNoBarcodeFound, "", nil)
	}

	d.logger.Info("image decoded",
		log.String("content_type", mediaType),
		log.Int("results", len(results)),
		log.Hex("format", uint32(results[0].Format)),
		log.Duration("elapsed", time.Since(start)),
	)
	return results[0].Text, nil
}

// imageType validates that req carries an image and returns its media type.
func imageType(req Request) (string, error) {
	if len(req.Image) == 0 {
		return "", engine.NewError(engine.KindInvalidInput, "empty image", nil)
	}
	mediaType := req.ContentType
	if mediaType == "" {
		mediaType = mimetype.Detect(req.Image).String()
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return "", engine.NewError(engine.KindInvalidInput, "not an image: "+mediaType, nil)
	}
	return mediaType, nil
}
