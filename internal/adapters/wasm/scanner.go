package wasm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/barscan/internal/ports"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Scanner is a capture device that decodes frames from a frame source.
type Scanner struct {
	bridge     *bridge
	openFrames func(engine.Target) (ports.FrameSource, error)
	forget     time.Duration
	logger     log.Logger

	mu     sync.Mutex
	src    ports.FrameSource
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func newScanner(b *bridge, openFrames func(engine.Target) (ports.FrameSource, error), forget time.Duration, logger log.Logger) *Scanner {
	return &Scanner{
		bridge:     b,
		openFrames: openFrames,
		forget:     forget,
		logger:     logger,
	}
}

// SetFormats implements engine.Scanner.
func (s *Scanner) SetFormats(ctx context.Context, mask symbology.Mask) error {
	return s.bridge.setFormats(ctx, mask)
}

// Open implements engine.Scanner. Detections are delivered from a dedicated
// goroutine until Close.
func (s *Scanner) Open(ctx context.Context, target engine.Target, handler engine.DetectionHandler) error {
	if handler == nil {
		return errors.New("detection handler is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("scanner is closed")
	}
	if s.src != nil {
		return errors.New("scanner is already open")
	}

	src, err := s.openFrames(target)
	if err != nil {
		return fmt.Errorf("open frame source %q: %w", target, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.src = src
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(loopCtx, src, handler)
	return nil
}

func (s *Scanner) run(ctx context.Context, src ports.FrameSource, handler engine.DetectionHandler) {
	defer s.wg.Done()

	filter := newUniqueFilter(s.forget)
	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-src.Frames():
			if !ok {
				s.sourceEnded(ctx, src, handler)
				return
			}
			results, err := s.bridge.decode(ctx, frame.Data)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Debug("frame decode failed", log.String("frame", frame.Name), log.Err(err))
				continue
			}
			now := time.Now()
			for _, r := range results {
				if filter.admit(r.Text, now) {
					handler.OnDetection(r)
				}
			}

		case err := <-src.Errors():
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errFrameSourceClosed
			}
			handler.OnDeviceError(err)
			return
		}
	}
}

var errFrameSourceClosed = errors.New("frame source closed")

// sourceEnded reports a frame source that stopped on its own. A source may
// queue its error and close Frames together, so a pending error wins.
func (s *Scanner) sourceEnded(ctx context.Context, src ports.FrameSource, handler engine.DetectionHandler) {
	if ctx.Err() != nil {
		return
	}
	err := errFrameSourceClosed
	select {
	case e := <-src.Errors():
		if e != nil {
			err = e
		}
	default:
	}
	handler.OnDeviceError(err)
}

// Close implements engine.Scanner.
func (s *Scanner) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	src, cancel := s.src, s.cancel
	s.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
	}
	if src != nil {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close frame source: %w", err))
		}
	}
	s.wg.Wait()

	if err := s.bridge.close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// uniqueFilter suppresses a text read again within the forget window.
type uniqueFilter struct {
	window time.Duration
	seen   map[string]time.Time
}

func newUniqueFilter(window time.Duration) *uniqueFilter {
	return &uniqueFilter{window: window, seen: map[string]time.Time{}}
}

func (f *uniqueFilter) admit(text string, now time.Time) bool {
	for t, at := range f.seen {
		if now.Sub(at) >= f.window {
			delete(f.seen, t)
		}
	}
	if _, ok := f.seen[text]; ok {
		return false
	}
	f.seen[text] = now
	return true
}

var _ engine.Scanner = (*Scanner)(nil)
