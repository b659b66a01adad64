package player

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/oto/v2"
)

// bytesPerSample is the output sample width (16-bit little-endian PCM).
const bytesPerSample = 2

// Device opens realtime output streams. Start hands r to the audio subsystem,
// which pulls Read on its own thread at the cadence of the hardware buffer;
// closing the returned handle stops output.
type Device interface {
	Spec() SignalSpec
	Start(r io.Reader) (io.Closer, error)
}

// OtoDevice drives the host audio output through oto. The underlying context
// is process-wide and cannot be reopened, so the device is created once at
// the configured spec and every track is resampled to it.
type OtoDevice struct {
	ctx  *oto.Context
	spec SignalSpec
}

// OpenDevice opens the host audio output at spec.
func OpenDevice(spec SignalSpec) (*OtoDevice, error) {
	ctx, ready, err := oto.NewContext(spec.SampleRate, spec.Channels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready
	return &OtoDevice{ctx: ctx, spec: spec}, nil
}

// Spec returns the output sample rate and channel count.
func (d *OtoDevice) Spec() SignalSpec { return d.spec }

// Start begins pulling r on the audio thread.
func (d *OtoDevice) Start(r io.Reader) (io.Closer, error) {
	p := d.ctx.NewPlayer(r)
	p.Play()
	return p, nil
}
