// Package speech turns interviewer text into audible speech.
//
// The Speaker is single-flight: starting a new utterance cancels whatever is
// still playing. The turn controller relies on this when the candidate asks
// for a question to be repeated while the previous playback is mid-stream.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio"
	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/tts"
)

// Option configures a Speaker.
type Option func(*Speaker)

// WithVoice pins a specific voice instead of auto-selecting one.
func WithVoice(v tts.Voice) Option {
	return func(s *Speaker) {
		s.voice = &v
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Speaker) {
		s.logger = logger
	}
}

// WithPreferredProvider biases auto-selection toward voices carrying the
// given provider tag. A quality preference only; selection still falls back
// to any English voice, then to the catalogue's first entry.
func WithPreferredProvider(name string) Option {
	return func(s *Speaker) {
		s.preferredProvider = name
	}
}

// Speaker synthesizes and plays one utterance at a time.
type Speaker struct {
	provider          tts.Provider
	sink              audio.Sink
	logger            *slog.Logger
	preferredProvider string

	mu       sync.Mutex
	voice    *tts.Voice
	cancel   context.CancelFunc
	speaking bool
	gen      uint64
}

// NewSpeaker creates a Speaker that renders through the given sink.
func NewSpeaker(provider tts.Provider, sink audio.Sink, opts ...Option) *Speaker {
	s := &Speaker{
		provider: provider,
		sink:     sink,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Speak synthesizes text and blocks until playback finishes or is cancelled.
// Any utterance still playing is cut off first. Synthesis failures are logged
// and swallowed; the interview must not die because one question could not be
// voiced.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	voice, err := s.selectVoice(ctx)
	if err != nil {
		s.logger.Warn("voice selection failed, skipping speech", "error", err)
		return nil
	}

	// Cut off the previous utterance and register ourselves as current.
	utterCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.speaking = true
	s.gen++
	myGen := s.gen
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		// A newer utterance may have replaced this one; leave its state alone.
		if s.gen == myGen {
			s.speaking = false
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	audioCh, err := s.provider.SynthesizeStream(utterCtx, textCh, voice)
	if err != nil {
		s.logger.Warn("speech synthesis failed", "error", err)
		return nil
	}

	if err := s.sink.Play(utterCtx, audioCh); err != nil && utterCtx.Err() == nil {
		s.logger.Warn("speech playback failed", "error", err)
	}
	return nil
}

// Speaking reports whether an utterance is currently playing.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Cancel cuts off the current utterance, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.speaking = false
	}
}

// selectVoice returns the pinned voice or lazily picks one from the
// catalogue: an English voice carrying the preferred provider tag, else any
// English voice, else the first entry.
func (s *Speaker) selectVoice(ctx context.Context) (tts.Voice, error) {
	s.mu.Lock()
	if s.voice != nil {
		v := *s.voice
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	voices, err := s.provider.ListVoices(ctx)
	if err != nil {
		return tts.Voice{}, fmt.Errorf("speech: list voices: %w", err)
	}
	if len(voices) == 0 {
		return tts.Voice{}, fmt.Errorf("speech: provider returned no voices")
	}

	chosen := voices[0]
	found := false
	if s.preferredProvider != "" {
		for _, v := range voices {
			if isEnglish(v) && strings.EqualFold(v.Provider, s.preferredProvider) {
				chosen = v
				found = true
				break
			}
		}
	}
	if !found {
		for _, v := range voices {
			if isEnglish(v) {
				chosen = v
				break
			}
		}
	}

	s.mu.Lock()
	s.voice = &chosen
	s.mu.Unlock()

	s.logger.Info("selected interviewer voice",
		"voice_id", chosen.ID,
		"voice_name", chosen.Name,
		"language", chosen.Language,
	)
	return chosen, nil
}

func isEnglish(v tts.Voice) bool {
	return strings.HasPrefix(strings.ToLower(v.Language), "en")
}
