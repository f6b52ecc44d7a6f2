// Package mic captures microphone audio through malgo (miniaudio bindings)
// and exposes it as an audio.Source.
package mic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/vishalnotfound/AI-Interview-Agent-llama-3.3-70b/pkg/audio"
)

// Capture is a malgo-backed audio.Source. Each Start opens a fresh malgo
// context, device, and chunk channel, and Stop releases all three, so one
// Capture serves consecutive listening phases.
type Capture struct {
	cfg      audio.Config
	deviceID string

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	chunks  chan []byte
	running bool
}

// Option configures a Capture.
type Option func(*Capture)

// WithDevice selects a specific capture device by the hex-encoded ID reported
// by ListDevices. The system default is used otherwise.
func WithDevice(id string) Option {
	return func(c *Capture) {
		c.deviceID = id
	}
}

// New creates a Capture for the given PCM format.
func New(cfg audio.Config, opts ...Option) *Capture {
	if cfg.SampleRate == 0 {
		cfg = audio.DefaultConfig
	}
	c := &Capture{cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListDevices enumerates the host's capture devices.
func ListDevices() ([]audio.DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("mic: init context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("mic: enumerate devices: %w", err)
	}

	var result []audio.DeviceInfo
	for _, d := range devices {
		result = append(result, audio.DeviceInfo{
			ID:   hex.EncodeToString(d.ID[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

// Start opens the device and begins delivering PCM chunks. Each chunk is a
// copy of the device buffer, safe to retain. After Stop, Start may be called
// again; a new chunk channel is returned.
func (c *Capture) Start() (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, errors.New("mic: capture already started")
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("mic: init context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = c.cfg.Channels
	deviceConfig.SampleRate = c.cfg.SampleRate

	if c.deviceID != "" {
		idBytes, err := hex.DecodeString(c.deviceID)
		if err != nil {
			_ = mctx.Uninit()
			mctx.Free()
			return nil, fmt.Errorf("mic: invalid device ID: %w", err)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	chunks := make(chan []byte, 64)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			buf := make([]byte, len(data))
			copy(buf, data)
			// Drop the chunk when the consumer lags; stale audio is worse
			// than a gap for live transcription.
			select {
			case chunks <- buf:
			default:
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("mic: init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("mic: start device: %w", err)
	}

	c.ctx = mctx
	c.device = device
	c.chunks = chunks
	c.running = true
	return chunks, nil
}

// Stop halts capture, releases the device and context, and closes the chunk
// channel. Stop on an idle Capture is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	err := c.device.Stop()
	c.device.Uninit()
	_ = c.ctx.Uninit()
	c.ctx.Free()
	close(c.chunks)
	c.ctx = nil
	c.device = nil
	c.chunks = nil

	if err != nil {
		return fmt.Errorf("mic: stop device: %w", err)
	}
	return nil
}

// Ensure Capture implements audio.Source at compile time.
var _ audio.Source = (*Capture)(nil)
