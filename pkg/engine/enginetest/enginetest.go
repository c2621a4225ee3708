// Package enginetest provides a scriptable in-memory engine.Engine for tests.
//
// Configure the exported fields before handing the engine to the code under
// test; they are read on every call, not copied at construction.
package enginetest

import (
	"context"
	"sync"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Engine is a fake engine.Engine.
type Engine struct {
	// LoadGate, when non-nil, blocks LoadRuntime until it is closed.
	LoadGate chan struct{}
	// IgnoreContext makes a gated LoadRuntime ignore context cancellation.
	IgnoreContext bool
	// LoadErr is returned by LoadRuntime.
	LoadErr error
	// LockLicense makes SetLicense refuse a different license once loaded.
	LockLicense bool
	// ResourcePathErr is returned by SetResourcePath.
	ResourcePathErr error
	// ReaderErr is returned by NewReader.
	ReaderErr error
	// DecodeErr is returned by Reader.Decode.
	DecodeErr error
	// Decodes maps image contents to decode results.
	Decodes map[string][]engine.Result
	// ScannerErr is returned by NewScanner.
	ScannerErr error
	// OpenGate, when non-nil, blocks Scanner.Open until it is closed.
	OpenGate chan struct{}
	// OpenErr is returned by Scanner.Open.
	OpenErr error

	mu             sync.Mutex
	license        string
	resourcePath   string
	loaded         bool
	closed         bool
	loadCalls      int
	setLicenseCall int
	scanners       []*Scanner
	readers        []*Reader

	loadStarted     chan struct{}
	loadStartedOnce sync.Once
}

// New creates a fake engine with nothing loaded.
func New() *Engine {
	return &Engine{
		Decodes:     map[string][]engine.Result{},
		loadStarted: make(chan struct{}),
	}
}

// Preload simulates code outside barscan having configured the engine.
func (e *Engine) Preload(license string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.license = license
	e.loaded = true
}

func (e *Engine) License() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.license
}

func (e *Engine) SetLicense(license string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.LockLicense && e.loaded && license != e.license {
		return engine.ErrLicenseLocked
	}
	e.license = license
	e.setLicenseCall++
	return nil
}

func (e *Engine) SetResourcePath(path string) error {
	if e.ResourcePathErr != nil {
		return e.ResourcePathErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resourcePath = path
	return nil
}

func (e *Engine) RuntimeLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *Engine) LoadRuntime(ctx context.Context) error {
	e.mu.Lock()
	e.loadCalls++
	gate, ignore, loadErr := e.LoadGate, e.IgnoreContext, e.LoadErr
	e.mu.Unlock()

	e.loadStartedOnce.Do(func() { close(e.loadStarted) })

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if loadErr != nil {
		return loadErr
	}

	e.mu.Lock()
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// LoadStarted is closed when LoadRuntime is first entered.
func (e *Engine) LoadStarted() <-chan struct{} {
	return e.loadStarted
}

// LoadCalls returns how many times LoadRuntime was called.
func (e *Engine) LoadCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadCalls
}

// SetLicenseCalls returns how many license assignments were accepted.
func (e *Engine) SetLicenseCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setLicenseCall
}

// ResourcePath returns the last resource path set.
func (e *Engine) ResourcePath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resourcePath
}

func (e *Engine) NewReader(ctx context.Context) (engine.Reader, error) {
	if e.ReaderErr != nil {
		return nil, e.ReaderErr
	}
	r := &Reader{eng: e}
	e.mu.Lock()
	e.readers = append(e.readers, r)
	e.mu.Unlock()
	return r, nil
}

func (e *Engine) NewScanner(ctx context.Context) (engine.Scanner, error) {
	if e.ScannerErr != nil {
		return nil, e.ScannerErr
	}
	s := &Scanner{eng: e, done: make(chan struct{})}
	e.mu.Lock()
	e.scanners = append(e.scanners, s)
	e.mu.Unlock()
	return s, nil
}

// Close implements engine.Closer.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Readers returns every reader created so far.
func (e *Engine) Readers() []*Reader {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Reader(nil), e.readers...)
}

// Scanners returns every scanner created so far.
func (e *Engine) Scanners() []*Scanner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Scanner(nil), e.scanners...)
}

// LastScanner returns the most recently created scanner, or nil.
func (e *Engine) LastScanner() *Scanner {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.scanners) == 0 {
		return nil
	}
	return e.scanners[len(e.scanners)-1]
}

// Reader is a fake engine.Reader.
type Reader struct {
	eng *Engine

	mu      sync.Mutex
	formats symbology.Mask
	decodes int
	closed  int
}

func (r *Reader) SetFormats(ctx context.Context, mask symbology.Mask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = mask
	return nil
}

func (r *Reader) Decode(ctx context.Context, image []byte) ([]engine.Result, error) {
	r.mu.Lock()
	r.decodes++
	r.mu.Unlock()

	if r.eng.DecodeErr != nil {
		return nil, r.eng.DecodeErr
	}
	return r.eng.Decodes[string(image)], nil
}

func (r *Reader) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

// Formats returns the mask set on the reader.
func (r *Reader) Formats() symbology.Mask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.formats
}

// Closed reports whether Close was called at least once.
func (r *Reader) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed > 0
}

// Scanner is a fake engine.Scanner. Detections are injected with Emit.
type Scanner struct {
	eng *Engine

	mu         sync.Mutex
	formats    symbology.Mask
	target     engine.Target
	handler    engine.DetectionHandler
	opened     bool
	closeCalls int
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *Scanner) SetFormats(ctx context.Context, mask symbology.Mask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats = mask
	return nil
}

func (s *Scanner) Open(ctx context.Context, target engine.Target, handler engine.DetectionHandler) error {
	if gate := s.eng.OpenGate; gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.eng.OpenErr != nil {
		return s.eng.OpenErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.handler = handler
	s.opened = true
	return nil
}

func (s *Scanner) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Emit delivers detections to the handler, in order, on the calling
// goroutine. Delivery happens even after Close, modelling frames that were
// already in flight when the device was closed.
func (s *Scanner) Emit(texts ...string) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	for _, text := range texts {
		h.OnDetection(engine.Result{Text: text})
	}
}

// Fail reports a device error to the handler.
func (s *Scanner) Fail(err error) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h.OnDeviceError(err)
	}
}

// Done is closed once Close has been called.
func (s *Scanner) Done() <-chan struct{} {
	return s.done
}

// Opened reports whether Open succeeded.
func (s *Scanner) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// CloseCalls returns how many times Close was called.
func (s *Scanner) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Formats returns the mask set on the device.
func (s *Scanner) Formats() symbology.Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formats
}

// Target returns the target the device was opened against.
func (s *Scanner) Target() engine.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Closer  = (*Engine)(nil)
	_ engine.Reader  = (*Reader)(nil)
	_ engine.Scanner = (*Scanner)(nil)
)
