// Package capture runs the supervised speech-to-text session that feeds the
// turn controller.
//
// A capture session wraps a streaming STT engine handle and flattens its
// partial and final transcripts into a single ordered fragment stream. The
// supervisor watches for the engine halting on its own (the handle's channels
// closing without Stop having been called) and transparently starts a fresh
// engine stream with backoff, so the fragment stream stays live for the whole
// listening phase. Callers never observe the restart except as a warning.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/internal/observe"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/stt"
)

// Default restart parameters.
const (
	defaultMaxRestarts = 10
	defaultBackoff     = 250 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

// ErrEngineGone is delivered on the warnings channel when the engine halted
// and every restart attempt failed. The fragment stream closes after this.
var ErrEngineGone = errors.New("capture: engine gone after max restarts")

// Fragment is a single piece of recognized speech.
type Fragment struct {
	// Text is the recognized text of this fragment.
	Text string

	// Final reports whether the engine committed this text. Non-final
	// fragments are provisional and may be revised by the next fragment.
	Final bool
}

// Session is a live capture session. Fragments delivers recognized speech in
// order; the channel closes only when the session ends for good (Stop was
// called, or restarts were exhausted). Warnings carries non-fatal conditions
// such as engine restarts.
type Session interface {
	Fragments() <-chan Fragment
	Warnings() <-chan error
	Stop() error
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSource attaches a local audio source whose chunks are forwarded to the
// engine. The source survives engine restarts; audio keeps flowing into each
// new stream.
func WithSource(src audio.Source) Option {
	return func(s *Supervisor) {
		s.source = src
	}
}

// WithStreamConfig sets the STT stream parameters.
func WithStreamConfig(cfg stt.StreamConfig) Option {
	return func(s *Supervisor) {
		s.streamCfg = cfg
	}
}

// WithMaxRestarts bounds how many consecutive restart attempts are made after
// an engine halt before the session gives up.
func WithMaxRestarts(n int) Option {
	return func(s *Supervisor) {
		s.maxRestarts = n
	}
}

// WithBackoff sets the initial and maximum restart backoff.
func WithBackoff(initial, max time.Duration) Option {
	return func(s *Supervisor) {
		s.backoff = initial
		s.maxBackoff = max
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMetrics records engine restarts on the given instrument set.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Supervisor) {
		s.metrics = m
	}
}

// Supervisor creates self-healing capture sessions on top of an STT provider.
// A single Supervisor is reused across listening phases; each Listen call
// produces an independent Session.
type Supervisor struct {
	provider    stt.Provider
	source      audio.Source
	streamCfg   stt.StreamConfig
	maxRestarts int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
	metrics     *observe.Metrics
}

// NewSupervisor creates a Supervisor for the given STT provider.
func NewSupervisor(provider stt.Provider, opts ...Option) *Supervisor {
	s := &Supervisor{
		provider:    provider,
		maxRestarts: defaultMaxRestarts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Listen starts a new capture session. The session runs until Stop is called
// or the engine halts unrecoverably.
func (s *Supervisor) Listen(ctx context.Context) (Session, error) {
	handle, err := s.provider.StartStream(ctx, s.streamCfg)
	if err != nil {
		return nil, fmt.Errorf("capture: start stream: %w", err)
	}

	sess := &session{
		sup:       s,
		fragments: make(chan Fragment, 64),
		warnings:  make(chan error, 8),
		done:      make(chan struct{}),
	}
	sess.setHandle(handle)

	if s.source != nil {
		chunks, err := s.source.Start()
		if err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("capture: start audio source: %w", err)
		}
		go sess.forwardAudio(chunks)
	}

	go sess.run(ctx, handle)
	return sess, nil
}

// session is the running state behind a single Listen call.
type session struct {
	sup       *Supervisor
	fragments chan Fragment
	warnings  chan error
	done      chan struct{}
	stopOnce  sync.Once

	mu     sync.Mutex
	handle stt.SessionHandle
}

// Fragments implements Session.
func (s *session) Fragments() <-chan Fragment { return s.fragments }

// Warnings implements Session.
func (s *session) Warnings() <-chan error { return s.warnings }

// Stop ends the session. The fragment channel closes shortly after; callers
// should keep draining it until then. Safe to call multiple times.
func (s *session) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.sup.source != nil {
			err = s.sup.source.Stop()
		}
		if h := s.currentHandle(); h != nil {
			closeErr := h.Close()
			if err == nil {
				err = closeErr
			}
		}
	})
	return err
}

func (s *session) setHandle(h stt.SessionHandle) {
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

func (s *session) currentHandle() stt.SessionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// forwardAudio pumps source chunks into whichever engine handle is current.
// Send errors are ignored; a dying handle announces itself by closing its
// transcript channels and the run loop handles the restart.
func (s *session) forwardAudio(chunks <-chan []byte) {
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if h := s.currentHandle(); h != nil {
				_ = h.SendAudio(chunk)
			}
		case <-s.done:
			return
		}
	}
}

// run pumps engine output into the fragment stream, restarting the engine
// when it halts on its own.
func (s *session) run(ctx context.Context, handle stt.SessionHandle) {
	defer close(s.fragments)
	defer close(s.warnings)

	for {
		s.pump(ctx, handle)

		// Channels closed. Either we asked for it or the engine halted.
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			_ = s.Stop()
			return
		default:
		}

		s.warn(errors.New("capture: engine halted, restarting"))

		next, ok := s.restart(ctx)
		if !ok {
			s.warn(ErrEngineGone)
			_ = s.Stop()
			return
		}
		s.setHandle(next)
		handle = next
	}
}

// pump forwards transcripts and errors from one engine handle until both
// transcript channels have closed.
func (s *session) pump(ctx context.Context, handle stt.SessionHandle) {
	partials := handle.Partials()
	finals := handle.Finals()
	errs := handle.Errs()

	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			s.emit(Fragment{Text: t.Text, Final: false})
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			s.emit(Fragment{Text: t.Text, Final: true})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, stt.ErrAborted) || errors.Is(err, stt.ErrNoSpeech) {
				continue
			}
			s.warn(err)
		case <-ctx.Done():
			return
		}
	}
}

// restart attempts to open a fresh engine stream with exponential backoff.
func (s *session) restart(ctx context.Context) (stt.SessionHandle, bool) {
	backoff := s.sup.backoff

	for attempt := 1; attempt <= s.sup.maxRestarts; attempt++ {
		select {
		case <-s.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		default:
		}

		s.sup.logger.Info("restarting speech engine",
			"attempt", attempt,
			"max_restarts", s.sup.maxRestarts,
			"backoff", backoff,
		)

		handle, err := s.sup.provider.StartStream(ctx, s.sup.streamCfg)
		if err == nil {
			s.sup.logger.Info("speech engine restarted", "attempt", attempt)
			if s.sup.metrics != nil {
				s.sup.metrics.CaptureRestarts.Add(ctx, 1)
			}
			return handle, true
		}

		s.sup.logger.Warn("speech engine restart failed",
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-s.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.sup.maxBackoff {
			backoff = s.sup.maxBackoff
		}
	}

	s.sup.logger.Error("speech engine gone after max restarts",
		"max_restarts", s.sup.maxRestarts,
	)
	return nil, false
}

func (s *session) emit(f Fragment) {
	select {
	case s.fragments <- f:
	case <-s.done:
	}
}

func (s *session) warn(err error) {
	select {
	case s.warnings <- err:
	default:
	}
}
