// Package stt defines the Provider interface for streaming Speech-to-Text
// backends.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram)
// and exposes a uniform streaming interface. The central abstraction is
// SessionHandle: once opened, a session accepts raw PCM audio chunks and
// emits two streams of Transcript values — low-latency partials for live
// display and authoritative finals for the answer transcript.
//
// A SessionHandle may end on its own: when the underlying engine halts, the
// implementation closes the Partials and Finals channels without Close ever
// having been called. Callers that need uninterrupted capture must watch for
// this and open a fresh session (see the capture package).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// Transient conditions reported on the Errs channel. Callers are expected to
// swallow these; anything else is a real engine problem worth surfacing.
var (
	// ErrNoSpeech indicates the engine gave up waiting for audible speech.
	ErrNoSpeech = errors.New("stt: no speech detected")

	// ErrAborted indicates the stream was torn down deliberately, either by
	// Close or by a provider-side cancel.
	ErrAborted = errors.New("stt: stream aborted")
)

// StreamConfig describes the audio format and recognition hints for a new
// STT session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (16000 is the STT-optimised
	// default for mono microphone input).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono, which most STT
	// providers require.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// SessionHandle represents an open STT streaming session. It is an interface
// so that test code can provide scripted implementations without a live
// provider connection.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription.
	// The chunk must match the SampleRate and Channels agreed in
	// StreamConfig. Calling SendAudio after the session ended returns an
	// error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel emitting interim Transcript
	// values. Each partial supersedes the previous one; none of them belong
	// in the permanent transcript. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel emitting committed Transcript
	// values, in recognition order. Closed when the session ends.
	Finals() <-chan Transcript

	// Errs returns a read-only channel carrying engine-reported conditions.
	// ErrNoSpeech and ErrAborted are transient and safe to ignore; other
	// values indicate a degraded engine. Closed when the session ends.
	Errs() <-chan error

	// Close terminates the session, flushes pending audio, and releases all
	// resources. After Close returns, the Partials, Finals, and Errs
	// channels will be closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
//
// Implementations must be safe for concurrent use; a caller may open a new
// session while a previous one is still draining.
type Provider interface {
	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately. The caller owns
	// the handle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
