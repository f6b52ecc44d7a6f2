// Package audio defines the device-facing audio contracts: a Source that
// produces raw PCM from a capture device and a Sink that plays raw PCM back.
//
// All audio in this project is 16-bit signed little-endian PCM. Sample rate
// and channel count are carried in Config so the STT and TTS layers can agree
// on a format with the devices.
package audio

import "context"

// Config describes a PCM stream format.
type Config struct {
	// SampleRate in Hz, e.g. 16000.
	SampleRate uint32

	// Channels is the interleaved channel count, almost always 1.
	Channels uint32
}

// DefaultConfig is 16 kHz mono, the format both the Deepgram STT stream and
// the ElevenLabs pcm_16000 output use.
var DefaultConfig = Config{SampleRate: 16000, Channels: 1}

// Source is a live audio input. Start opens the device and begins delivering
// PCM chunks on the returned channel; the channel closes after Stop.
type Source interface {
	Start() (<-chan []byte, error)
	Stop() error
}

// Sink plays a stream of PCM chunks. Play blocks until the audio channel is
// closed and all queued samples have been rendered, or until ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, audio <-chan []byte) error
}

// DeviceInfo identifies a host audio device.
type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}
