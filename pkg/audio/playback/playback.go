// Package playback renders PCM audio to the default output device through
// malgo. It implements the audio.Sink interface.
package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio"
)

// Player is a malgo-backed audio.Sink. Safe for sequential Play calls; the
// speech layer guarantees only one utterance plays at a time.
type Player struct {
	cfg audio.Config
}

// New creates a Player for the given PCM format.
func New(cfg audio.Config) *Player {
	if cfg.SampleRate == 0 {
		cfg = audio.DefaultConfig
	}
	return &Player{cfg: cfg}
}

// Play opens the output device and renders chunks from the audio channel
// until it is closed and the internal buffer has drained, or until ctx is
// cancelled. Cancellation cuts playback immediately.
func (p *Player) Play(ctx context.Context, audioCh <-chan []byte) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("playback: init context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	buf := &pcmBuffer{}
	drained := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = p.cfg.Channels
	deviceConfig.SampleRate = p.cfg.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := buf.read(out)
			// Zero-fill the remainder so underruns play silence, not garbage.
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			if buf.closedAndEmpty() {
				select {
				case <-drained:
				default:
					close(drained)
				}
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("playback: init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("playback: start device: %w", err)
	}
	defer func() { _ = device.Stop() }()

	for {
		select {
		case chunk, ok := <-audioCh:
			if !ok {
				buf.closeWrite()
				select {
				case <-drained:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			buf.write(chunk)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pcmBuffer is a mutex-guarded FIFO byte queue shared between the feeder
// goroutine and the malgo data callback.
type pcmBuffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

func (b *pcmBuffer) write(chunk []byte) {
	b.mu.Lock()
	b.data = append(b.data, chunk...)
	b.mu.Unlock()
}

func (b *pcmBuffer) read(out []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(out, b.data)
	b.data = b.data[n:]
	return n
}

func (b *pcmBuffer) closeWrite() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *pcmBuffer) closedAndEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed && len(b.data) == 0
}

// Ensure Player implements audio.Sink at compile time.
var _ audio.Sink = (*Player)(nil)
