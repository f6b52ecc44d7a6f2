// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform streaming interface. The primary entry point is
// SynthesizeStream, which accepts a channel of text fragments and returns a
// channel of raw PCM audio bytes as they become available, so playback can
// begin before the full utterance has been synthesised.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel emitting raw PCM audio byte slices as they are
	// synthesised. The audio channel is closed by the implementation when
	// all text has been synthesised or when ctx is cancelled; the caller
	// must drain it to avoid blocking the provider's internal goroutines.
	//
	// voice selects the voice profile. Returns a non-nil error only if the
	// stream cannot be started; mid-stream errors are signalled by closing
	// the audio channel early (check ctx.Err() to distinguish cancellation).
	SynthesizeStream(ctx context.Context, text <-chan string, voice Voice) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider.
	// The list reflects the provider's current catalogue and may change
	// between calls.
	ListVoices(ctx context.Context) ([]Voice, error)
}
