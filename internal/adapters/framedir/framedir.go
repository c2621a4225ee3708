// Package framedir turns a watched directory into a capture frame source.
// Every image file created or rewritten in the directory becomes one frame
// once writes to it have settled.
package framedir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/barscan/internal/ports"
	"github.com/bft-labs/barscan/pkg/log"
)

// DefaultSettleDelay is how long a file must stay untouched before it is read.
const DefaultSettleDelay = 100 * time.Millisecond

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
}

// Config holds frame directory settings.
type Config struct {
	// Dir is the directory to watch. It must exist.
	Dir string

	// SettleDelay is the quiet period after the last write to a file.
	// Default: 100 milliseconds
	SettleDelay time.Duration

	// Buffer is the capacity of the frame channel.
	// Default: 4
	Buffer int
}

// Source watches a directory and delivers image files as frames.
type Source struct {
	dir     string
	settle  time.Duration
	logger  log.Logger
	watcher *fsnotify.Watcher

	frames chan ports.Frame
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// Open starts watching cfg.Dir.
func Open(cfg Config, logger log.Logger) (*Source, error) {
	if cfg.Dir == "" {
		return nil, errors.New("framedir: directory is required")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4
	}
	logger = log.OrNoop(logger)

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("framedir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("framedir: %s is not a directory", cfg.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("framedir: create watcher: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("framedir: watch %s: %w", cfg.Dir, err)
	}

	s := &Source{
		dir:     cfg.Dir,
		settle:  cfg.SettleDelay,
		logger:  logger,
		watcher: watcher,
		frames:  make(chan ports.Frame, cfg.Buffer),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.watchLoop()

	logger.Debug("frame directory watch started", log.String("dir", cfg.Dir))
	return s, nil
}

// Frames implements ports.FrameSource.
func (s *Source) Frames() <-chan ports.Frame {
	return s.frames
}

// Errors implements ports.FrameSource.
func (s *Source) Errors() <-chan error {
	return s.errs
}

// Close stops the watcher and waits for the watch goroutine to exit.
func (s *Source) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}

func (s *Source) watchLoop() {
	defer s.wg.Done()
	defer close(s.frames)

	pending := map[string]time.Time{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isImage(event.Name) {
				continue
			}
			pending[event.Name] = time.Now().Add(s.settle)
			rearm(timer, pending)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("frame directory watcher failed", log.String("dir", s.dir), log.Err(err))
			select {
			case s.errs <- fmt.Errorf("framedir: watch %s: %w", s.dir, err):
			default:
			}
			return

		case now := <-timer.C:
			for _, name := range due(pending, now) {
				delete(pending, name)
				if !s.emit(name) {
					return
				}
			}
			rearm(timer, pending)
		}
	}
}

// emit reads one settled file and delivers it. It returns false once the
// source is closing.
func (s *Source) emit(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Removed or renamed before it settled.
		s.logger.Debug("skipping frame", log.String("file", path), log.Err(err))
		return true
	}
	if len(data) == 0 {
		return true
	}

	select {
	case s.frames <- ports.Frame{Name: filepath.Base(path), Data: data}:
		return true
	case <-s.done:
		return false
	}
}

// due returns the pending files whose settle deadline has passed, oldest first.
func due(pending map[string]time.Time, now time.Time) []string {
	var names []string
	for name, at := range pending {
		if !at.After(now) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ai, aj := pending[names[i]], pending[names[j]]
		if ai.Equal(aj) {
			return names[i] < names[j]
		}
		return ai.Before(aj)
	})
	return names
}

// rearm points timer at the earliest pending deadline.
func rearm(timer *time.Timer, pending map[string]time.Time) {
	if len(pending) == 0 {
		timer.Stop()
		return
	}
	var next time.Time
	for _, at := range pending {
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	timer.Reset(time.Until(next))
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

var _ ports.FrameSource = (*Source)(nil)
