package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
)

// deviceCloseTimeout bounds a device close started from a detection.
const deviceCloseTimeout = 5 * time.Second

// Session is one instance's capture session. It is safe for concurrent use.
type Session struct {
	id       string
	src      engine.Source
	cfg      Config
	logger   log.Logger
	observer Observer

	mu     sync.Mutex
	status Status
	device engine.Scanner
	err    error
	// gen identifies the current device. Handlers holding an older value
	// belong to a device that was replaced or closed.
	gen uint64

	closing sync.WaitGroup
}

// NewSession creates an Idle session. observer may be nil.
func NewSession(src engine.Source, cfg Config, logger log.Logger, observer Observer) *Session {
	return &Session{
		id:       uuid.NewString(),
		src:      src,
		cfg:      cfg,
		logger:   log.OrNoop(logger),
		observer: observer,
		status:   StatusIdle,
	}
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string { return s.id }

// Mode returns the scan mode.
func (s *Session) Mode() Mode { return s.cfg.Mode }

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that sent the session back to Idle, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start opens a capture device. The session must be Idle and the engine
// ready; otherwise an error of kind KindNotReady is returned and nothing
// changes.
func (s *Session) Start(ctx context.Context) error {
	return s.open(ctx, "start", StatusIdle)
}

// Restart opens a fresh device after a single-shot completion or a failure.
func (s *Session) Restart(ctx context.Context) error {
	return s.open(ctx, "restart", StatusIdle, StatusCompleted)
}

func (s *Session) open(ctx context.Context, op string, allowed ...Status) error {
	eng, err := s.src.ReadyEngine()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !statusIn(s.status, allowed) {
		st := s.status
		s.mu.Unlock()
		return fmt.Errorf("%s from %s: %w", op, st, ErrInvalidState)
	}
	s.gen++
	gen := s.gen
	s.err = nil
	prev := s.setStatusLocked(StatusInitializing)
	s.mu.Unlock()
	s.notifyStatus(prev, StatusInitializing, nil)

	// Handlers wait on ready until the open is settled. It is closed on every
	// path, before a discarded device is closed.
	ready := make(chan struct{})

	s.logger.Debug("opening capture device",
		log.String("session", s.id),
		log.String("mode", s.cfg.Mode.String()),
		log.String("target", string(s.cfg.Target)),
		log.Hex("formats", uint32(s.cfg.Formats)),
	)
	dev, openErr := s.openDevice(ctx, eng, &detectionHandler{s: s, gen: gen, ready: ready})

	s.mu.Lock()
	if s.gen != gen || s.status != StatusInitializing {
		// Closed while the device was opening. Stale handlers see the
		// generation mismatch and drop their results.
		s.mu.Unlock()
		close(ready)
		if dev != nil {
			if err := dev.Close(ctx); err != nil {
				s.logger.Warn("failed to close discarded device", log.String("session", s.id), log.Err(err))
			}
		}
		return ErrClosed
	}
	if openErr != nil {
		s.err = openErr
		prev = s.setStatusLocked(StatusIdle)
		s.mu.Unlock()
		close(ready)
		s.notifyStatus(prev, StatusIdle, openErr)

		s.logger.Error("capture device open failed", log.String("session", s.id), log.Err(openErr))
		return openErr
	}
	s.device = dev
	prev = s.setStatusLocked(StatusOpen)
	s.mu.Unlock()
	s.notifyStatus(prev, StatusOpen, nil)
	close(ready)

	s.logger.Info("capture session open", log.String("session", s.id), log.String("mode", s.cfg.Mode.String()))
	return nil
}

func (s *Session) openDevice(ctx context.Context, eng engine.Engine, h *detectionHandler) (engine.Scanner, error) {
	dev, err := eng.NewScanner(ctx)
	if err != nil {
		return nil, engine.NewError(engine.KindDeviceOpenFailed, "create device", err)
	}

	fail := func(detail string, err error) (engine.Scanner, error) {
		if cerr := dev.Close(ctx); cerr != nil {
			s.logger.Warn("failed to close device", log.String("session", s.id), log.Err(cerr))
		}
		return nil, engine.NewError(engine.KindDeviceOpenFailed, detail, err)
	}

	if s.cfg.Formats.Restricts() {
		if err := dev.SetFormats(ctx, s.cfg.Formats); err != nil {
			return fail("set formats", err)
		}
	}
	if err := dev.Open(ctx, s.cfg.Target, h); err != nil {
		return fail("open "+string(s.cfg.Target), err)
	}
	return dev, nil
}

// Close stops the session and releases its device. Closing a closed session
// is a no-op. Close waits for device closes started by detections.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		s.closing.Wait()
		return nil
	}
	s.gen++
	dev := s.device
	s.device = nil
	prev := s.setStatusLocked(StatusClosed)
	s.mu.Unlock()
	s.notifyStatus(prev, StatusClosed, nil)

	var err error
	if dev != nil {
		if err = dev.Close(ctx); err != nil {
			s.logger.Warn("failed to close capture device", log.String("session", s.id), log.Err(err))
			err = fmt.Errorf("close device: %w", err)
		}
	}
	s.closing.Wait()

	s.logger.Debug("capture session closed", log.String("session", s.id))
	return err
}

// deliver routes one detection. Runs on the device's detection goroutine.
func (s *Session) deliver(gen uint64, result engine.Result) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusOpen {
		s.mu.Unlock()
		s.logger.Debug("dropping detection from inactive device", log.String("session", s.id))
		return
	}
	var (
		dev  engine.Scanner
		prev Status
	)
	completed := s.cfg.Mode == SingleShot
	if completed {
		dev = s.device
		s.device = nil
		prev = s.setStatusLocked(StatusCompleted)
		if dev != nil {
			s.closing.Add(1)
		}
	}
	s.mu.Unlock()

	s.logger.Info("barcode detected",
		log.String("session", s.id),
		log.Hex("format", uint32(result.Format)),
		log.Int("length", len(result.Text)),
	)

	if s.cfg.Output != nil {
		s.cfg.Output.SetValue(result.Text)
	}
	if a := s.cfg.Action; a != nil && a.CanExecute() {
		a.Execute(DetectionEvent{ScannedResult: result.Text})
	}
	if s.observer != nil {
		s.observer.OnDetection(s.id, result)
	}

	if completed {
		s.notifyStatus(prev, StatusCompleted, nil)
		s.releaseAsync(dev)
	}
}

// fail handles a device error reported mid-session.
func (s *Session) fail(gen uint64, cause error) {
	s.mu.Lock()
	if gen != s.gen || s.status != StatusOpen {
		s.mu.Unlock()
		return
	}
	err := engine.NewError(engine.KindEngineFailure, "capture device", cause)
	dev := s.device
	s.device = nil
	if dev != nil {
		s.closing.Add(1)
	}
	s.err = err
	prev := s.setStatusLocked(StatusIdle)
	s.mu.Unlock()

	s.logger.Error("capture device failed", log.String("session", s.id), log.Err(cause))
	s.notifyStatus(prev, StatusIdle, err)
	s.releaseAsync(dev)
}

// releaseAsync closes dev off the detection goroutine; engines may wait for
// that goroutine to exit inside Close. The caller must have counted dev in
// s.closing while holding s.mu.
func (s *Session) releaseAsync(dev engine.Scanner) {
	if dev == nil {
		return
	}
	go func() {
		defer s.closing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deviceCloseTimeout)
		defer cancel()
		if err := dev.Close(ctx); err != nil {
			s.logger.Warn("failed to close capture device", log.String("session", s.id), log.Err(err))
		}
	}()
}

func (s *Session) setStatusLocked(st Status) Status {
	prev := s.status
	s.status = st
	return prev
}

func (s *Session) notifyStatus(prev, cur Status, err error) {
	if prev == cur {
		return
	}
	s.logger.Debug("capture status transition",
		log.String("session", s.id),
		log.String("from", prev.String()),
		log.String("to", cur.String()),
	)
	if s.observer != nil {
		s.observer.OnStatusChange(s.id, prev, cur, err)
	}
}

func statusIn(st Status, set []Status) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

// detectionHandler binds engine callbacks to one device generation.
type detectionHandler struct {
	s     *Session
	gen   uint64
	ready chan struct{}
}

func (h *detectionHandler) OnDetection(result engine.Result) {
	<-h.ready
	h.s.deliver(h.gen, result)
}

func (h *detectionHandler) OnDeviceError(err error) {
	<-h.ready
	h.s.fail(h.gen, err)
}
