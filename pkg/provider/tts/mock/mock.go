// Package mock provides test doubles for the tts package interfaces.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.SynthesizeStream.
type SynthesizeCall struct {
	// Text is the concatenation of all fragments read from the text channel.
	Text string
	// Voice is the voice profile passed to SynthesizeStream.
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider. It drains the text
// channel, records the call, and emits AudioChunks on the returned channel
// after an optional SynthesisDelay.
type Provider struct {
	mu sync.Mutex

	// Voices is returned by ListVoices.
	Voices []tts.Voice

	// ListVoicesErr, if non-nil, is returned by ListVoices.
	ListVoicesErr error

	// SynthesizeErr, if non-nil, is returned by SynthesizeStream.
	SynthesizeErr error

	// AudioChunks are emitted on the audio channel for every call.
	AudioChunks [][]byte

	// SynthesisDelay is slept before the audio channel is closed, simulating
	// playback-length synthesis.
	SynthesisDelay time.Duration

	// SynthesizeCalls records every completed SynthesizeStream call.
	SynthesizeCalls []SynthesizeCall
}

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.Voice) (<-chan []byte, error) {
	p.mu.Lock()
	err := p.SynthesizeErr
	chunks := p.AudioChunks
	delay := p.SynthesisDelay
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	audio := make(chan []byte, len(chunks)+1)
	go func() {
		defer close(audio)
		var full string
		for {
			select {
			case frag, ok := <-text:
				if !ok {
					p.record(full, voice)
					if delay > 0 {
						select {
						case <-time.After(delay):
						case <-ctx.Done():
							return
						}
					}
					for _, c := range chunks {
						select {
						case audio <- c:
						case <-ctx.Done():
							return
						}
					}
					return
				}
				full += frag
			case <-ctx.Done():
				return
			}
		}
	}()
	return audio, nil
}

// ListVoices implements tts.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]tts.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.Voices, nil
}

// Calls returns a snapshot of the recorded SynthesizeStream calls.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

func (p *Provider) record(text string, voice tts.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
