package decode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/engine/enginetest"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// pngImage starts with the PNG signature so that it sniffs as image/png.
const pngImage = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRbarcode"

type source struct {
	eng engine.Engine
}

func (s source) ReadyEngine() (engine.Engine, error) {
	if s.eng == nil {
		return nil, engine.NewError(engine.KindNotReady, "", nil)
	}
	return s.eng, nil
}

func TestDecode(t *testing.T) {
	eng := enginetest.New()
	eng.Decodes[pngImage] = []engine.Result{
		{Text: "4006381333931", Format: symbology.MaskEAN13},
		{Text: "ignored", Format: symbology.MaskQRCode},
	}
	d := NewDecoder(source{eng}, nil)

	text, err := d.Decode(context.Background(), Request{
		Image:   []byte(pngImage),
		Formats: symbology.MaskEAN13,
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "4006381333931" {
		t.Errorf("Decode() = %q, want first result", text)
	}

	readers := eng.Readers()
	if len(readers) != 1 {
		t.Fatalf("created %d readers, want 1", len(readers))
	}
	if readers[0].Formats() != symbology.MaskEAN13 {
		t.Errorf("reader formats = %#x, want EAN_13", readers[0].Formats())
	}
	if !readers[0].Closed() {
		t.Error("reader was not released")
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name        string
		src         engine.Source
		setup       func(e *enginetest.Engine)
		image       string
		contentType string
		want        error
		wantReader  bool
	}{
		{
			name:  "engine not ready",
			src:   source{},
			image: pngImage,
			want:  engine.ErrNotReady,
		},
		{
			name:  "empty image",
			image: "",
			want:  engine.ErrInvalidInput,
		},
		{
			name:  "sniffed non-image",
			image: "just some text, no barcode here",
			want:  engine.ErrInvalidInput,
		},
		{
			name:        "declared non-image",
			image:       pngImage,
			contentType: "application/pdf",
			want:        engine.ErrInvalidInput,
		},
		{
			name:       "no barcode",
			image:      pngImage,
			want:       engine.ErrNoBarcodeFound,
			wantReader: true,
		},
		{
			name:       "engine decode failure",
			setup:      func(e *enginetest.Engine) { e.DecodeErr = errors.New("corrupt frame") },
			image:      pngImage,
			want:       engine.ErrEngineFailure,
			wantReader: true,
		},
		{
			name:  "reader creation failure",
			setup: func(e *enginetest.Engine) { e.ReaderErr = errors.New("out of memory") },
			image: pngImage,
			want:  engine.ErrEngineFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			if tt.setup != nil {
				tt.setup(eng)
			}
			src := tt.src
			if src == nil {
				src = source{eng}
			}
			d := NewDecoder(src, nil)

			_, err := d.Decode(context.Background(), Request{
				Image:       []byte(tt.image),
				ContentType: tt.contentType,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}

			readers := eng.Readers()
			if tt.wantReader {
				if len(readers) != 1 || !readers[0].Closed() {
					t.Errorf("reader not created and released: %d readers", len(readers))
				}
			} else if len(readers) != 0 {
				t.Errorf("created %d readers, want 0", len(readers))
			}
		})
	}
}

func TestDecode_FailuresLeaveEngineState(t *testing.T) {
	eng := enginetest.New()
	coord := lifecycle.New(eng, lifecycle.Config{LoadTimeout: 5 * time.Second}, nil)
	ctx := context.Background()
	if err := coord.EnsureReady(ctx, "K1", "/opt/engine"); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	before := coord.Snapshot()
	d := NewDecoder(coord, nil)

	if _, err := d.Decode(ctx, Request{Image: []byte(pngImage)}); !errors.Is(err, engine.ErrNoBarcodeFound) {
		t.Fatalf("Decode() error = %v, want ErrNoBarcodeFound", err)
	}
	if got := coord.Snapshot(); got != before {
		t.Errorf("state after no barcode = %+v, want %+v", got, before)
	}

	eng.DecodeErr = errors.New("corrupt frame")
	if _, err := d.Decode(ctx, Request{Image: []byte(pngImage)}); !errors.Is(err, engine.ErrEngineFailure) {
		t.Fatalf("Decode() error = %v, want ErrEngineFailure", err)
	}
	if got := coord.Snapshot(); got != before {
		t.Errorf("state after engine failure = %+v, want %+v", got, before)
	}
}

func TestDecode_DeclaredImageTypeSkipsSniffing(t *testing.T) {
	eng := enginetest.New()
	eng.Decodes["raw-camera-bytes"] = []engine.Result{{Text: "OK"}}
	d := NewDecoder(source{eng}, nil)

	text, err := d.Decode(context.Background(), Request{
		Image:       []byte("raw-camera-bytes"),
		ContentType: "image/x-raw",
	})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if text != "OK" {
		t.Errorf("Decode() = %q, want OK", text)
	}
	if eng.Readers()[0].Formats() != 0 {
		t.Error("unrestricted request applied a format filter")
	}
}
