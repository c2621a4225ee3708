package wasm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/barscan/internal/ports"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// testdata/barcode-engine.wasm reads "TEXT" as a QR code from any image,
// finds nothing in an image starting with "N" and traps on one starting
// with "E". See barcode-engine.wat.
const payloadDir = "testdata"

var wantRead = engine.Result{Text: "TEXT", Format: symbology.MaskQRCode}

func loadedEngine(t *testing.T, cfg Config, resourcePath string) *Engine {
	t.Helper()
	e := New(cfg, nil)
	if err := e.SetLicense("K1"); err != nil {
		t.Fatalf("SetLicense() error = %v", err)
	}
	if err := e.SetResourcePath(resourcePath); err != nil {
		t.Fatalf("SetResourcePath() error = %v", err)
	}
	if err := e.LoadRuntime(context.Background()); err != nil {
		t.Fatalf("LoadRuntime() error = %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestEngine_ReaderDecode(t *testing.T) {
	e := loadedEngine(t, Config{}, payloadDir)
	ctx := context.Background()

	if !e.RuntimeLoaded() {
		t.Fatal("RuntimeLoaded() = false after load")
	}

	r, err := e.NewReader(ctx)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close(ctx)

	got, err := r.Decode(ctx, []byte("label"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 1 || got[0] != wantRead {
		t.Errorf("Decode() = %+v, want [%+v]", got, wantRead)
	}

	got, err = r.Decode(ctx, []byte("No barcode"))
	if err != nil || len(got) != 0 {
		t.Errorf("Decode(blank) = %+v, %v, want no results", got, err)
	}

	if _, err := r.Decode(ctx, []byte("Error")); err == nil {
		t.Error("Decode() error = nil for a trapping call")
	}
	// The instance survives a trap.
	if got, err := r.Decode(ctx, []byte("label")); err != nil || len(got) != 1 {
		t.Errorf("Decode() after trap = %+v, %v", got, err)
	}

	if _, err := r.Decode(ctx, nil); err == nil {
		t.Error("Decode(nil) error = nil")
	}
}

func TestEngine_ReaderFormats(t *testing.T) {
	e := loadedEngine(t, Config{}, payloadDir)
	ctx := context.Background()

	r, err := e.NewReader(ctx)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close(ctx)

	if err := r.SetFormats(ctx, symbology.MaskCode128); err != nil {
		t.Fatalf("SetFormats() error = %v", err)
	}
	if got, err := r.Decode(ctx, []byte("label")); err != nil || len(got) != 0 {
		t.Errorf("Decode() with QR excluded = %+v, %v, want no results", got, err)
	}

	if err := r.SetFormats(ctx, symbology.MaskCode128|symbology.MaskQRCode); err != nil {
		t.Fatalf("SetFormats() error = %v", err)
	}
	if got, err := r.Decode(ctx, []byte("label")); err != nil || len(got) != 1 {
		t.Errorf("Decode() with QR included = %+v, %v", got, err)
	}

	if err := r.Close(ctx); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, err := r.Decode(ctx, []byte("label")); err == nil {
		t.Error("Decode() after Close error = nil")
	}
}

func TestEngine_LicenseLockedAfterLoad(t *testing.T) {
	e := loadedEngine(t, Config{}, payloadDir)

	if err := e.SetLicense("K1"); err != nil {
		t.Errorf("SetLicense(same) error = %v", err)
	}
	if err := e.SetLicense("K2"); !errors.Is(err, engine.ErrLicenseLocked) {
		t.Errorf("SetLicense(other) error = %v, want ErrLicenseLocked", err)
	}
	if got := e.License(); got != "K1" {
		t.Errorf("License() = %q, want K1", got)
	}
}

func TestEngine_PayloadRejectsEmptyLicense(t *testing.T) {
	e := New(Config{}, nil)
	ctx := context.Background()
	if err := e.SetResourcePath(payloadDir); err != nil {
		t.Fatalf("SetResourcePath() error = %v", err)
	}
	if err := e.LoadRuntime(ctx); err != nil {
		t.Fatalf("LoadRuntime() error = %v", err)
	}
	defer e.Close(ctx)

	_, err := e.NewReader(ctx)
	if err == nil || !strings.Contains(err.Error(), "set_license returned status 1") {
		t.Errorf("NewReader() error = %v, want set_license status", err)
	}
}

func TestEngine_LoadRuntimeHTTP(t *testing.T) {
	ts := httptest.NewServer(http.StripPrefix("/dist/", http.FileServer(http.Dir(payloadDir))))
	defer ts.Close()

	e := loadedEngine(t, Config{HTTPClient: &http.Client{Timeout: 5 * time.Second}}, ts.URL+"/dist/")

	r, err := e.NewReader(context.Background())
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	defer r.Close(context.Background())
	if got, err := r.Decode(context.Background(), []byte("label")); err != nil || len(got) != 1 {
		t.Errorf("Decode() = %+v, %v", got, err)
	}
}

// fakeSource is a FrameSource driven by the test.
type fakeSource struct {
	frames chan ports.Frame
	errs   chan error

	mu     sync.Mutex
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames: make(chan ports.Frame, 8),
		errs:   make(chan error, 1),
	}
}

func (f *fakeSource) Frames() <-chan ports.Frame { return f.frames }
func (f *fakeSource) Errors() <-chan error       { return f.errs }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ ports.FrameSource = (*fakeSource)(nil)

// recordingHandler collects device callbacks.
type recordingHandler struct {
	mu         sync.Mutex
	detections []engine.Result
	errs       chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errs: make(chan error, 1)}
}

func (h *recordingHandler) OnDetection(r engine.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detections = append(h.detections, r)
}

func (h *recordingHandler) OnDeviceError(err error) {
	h.errs <- err
}

func (h *recordingHandler) Detections() []engine.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]engine.Result(nil), h.detections...)
}

func (h *recordingHandler) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errs:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("OnDeviceError was not called")
		return nil
	}
}

func openScanner(t *testing.T, e *Engine, h engine.DetectionHandler) engine.Scanner {
	t.Helper()
	ctx := context.Background()
	s, err := e.NewScanner(ctx)
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	if err := s.Open(ctx, "camera", h); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestScanner_SuppressesRepeatedReads(t *testing.T) {
	src := newFakeSource()
	e := loadedEngine(t, Config{
		ForgetWindow: time.Hour,
		OpenFrames:   func(engine.Target) (ports.FrameSource, error) { return src, nil },
	}, payloadDir)

	h := newRecordingHandler()
	s := openScanner(t, e, h)

	for _, data := range []string{"Error frame", "frame-1", "No barcode", "frame-2", "frame-3"} {
		src.frames <- ports.Frame{Name: data, Data: []byte(data)}
	}
	close(src.frames)

	// Buffered frames are drained before the closed channel is seen.
	if err := h.waitError(t); !errors.Is(err, errFrameSourceClosed) {
		t.Errorf("OnDeviceError(%v), want errFrameSourceClosed", err)
	}

	got := h.Detections()
	if len(got) != 1 || got[0] != wantRead {
		t.Errorf("detections = %+v, want one %+v", got, wantRead)
	}

	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !src.closed {
		t.Error("frame source not closed")
	}
}

func TestScanner_SourceErrorWithClosedFrames(t *testing.T) {
	var src *fakeSource
	e := loadedEngine(t, Config{
		OpenFrames: func(engine.Target) (ports.FrameSource, error) { return src, nil },
	}, payloadDir)
	sourceErr := errors.New("directory removed")

	// Both channels are ready at once, so either select case may run first.
	for i := 0; i < 20; i++ {
		src = newFakeSource()
		src.errs <- sourceErr
		close(src.frames)

		h := newRecordingHandler()
		s := openScanner(t, e, h)
		if err := h.waitError(t); !errors.Is(err, sourceErr) {
			t.Fatalf("run %d: OnDeviceError(%v), want %v", i, err, sourceErr)
		}
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("run %d: Close() error = %v", i, err)
		}
	}
}

func TestScanner_CloseDoesNotReportError(t *testing.T) {
	src := newFakeSource()
	e := loadedEngine(t, Config{
		OpenFrames: func(engine.Target) (ports.FrameSource, error) { return src, nil },
	}, payloadDir)

	h := newRecordingHandler()
	s := openScanner(t, e, h)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case err := <-h.errs:
		t.Errorf("OnDeviceError(%v) after Close", err)
	default:
	}
	if err := s.Open(context.Background(), "camera", h); err == nil {
		t.Error("Open() after Close error = nil")
	}
}
