package player

import (
	"io"
	"log"
	"sync/atomic"
	"time"
)

// maxPullsPerRead bounds decode pulls within a single device callback so a
// pathological decoder cannot wedge the audio thread.
const maxPullsPerRead = 256

// Playback owns one realtime output stream. The pause flag and the
// played-duration cell are the only state shared with the audio thread;
// everything else belongs to the reader running on that thread.
type Playback struct {
	paused *atomic.Bool
	played *atomic.Int64 // nanoseconds of audio handed to the device
	handle io.Closer
	src    *LoadedSong
}

// NewPlayback opens a device stream fed by src. The non-blocking Skip sent on
// exhaustion goes into cmds.
func NewPlayback(cmds chan<- Command, src *LoadedSong, dev Device) (*Playback, error) {
	pb := &Playback{
		paused: new(atomic.Bool),
		played: new(atomic.Int64),
		src:    src,
	}
	r := &streamReader{
		src:    src,
		gain:   src.Song.GainFactor,
		rate:   src.Spec.SampleRate,
		chans:  src.Spec.Channels,
		paused: pb.paused,
		played: pb.played,
		cmds:   cmds,
	}
	handle, err := dev.Start(r)
	if err != nil {
		return nil, err
	}
	pb.handle = handle
	return pb, nil
}

// Pause sets the pause flag; the next callback fills silence.
func (p *Playback) Pause() { p.paused.Store(true) }

// Resume clears the pause flag.
func (p *Playback) Resume() { p.paused.Store(false) }

// TogglePause flips the pause flag.
func (p *Playback) TogglePause() {
	for {
		old := p.paused.Load()
		if p.paused.CompareAndSwap(old, !old) {
			return
		}
	}
}

// Paused reports the pause flag.
func (p *Playback) Paused() bool { return p.paused.Load() }

// Played returns how much audio has been written to the device.
func (p *Playback) Played() time.Duration {
	return time.Duration(p.played.Load())
}

// Close stops the device stream, then drops the decode pipeline. Teardown is
// all-or-nothing: no partially closed stream is ever observable.
func (p *Playback) Close() error {
	err := p.handle.Close()
	if cerr := p.src.Close(); err == nil {
		err = cerr
	}
	return err
}

// streamReader is the realtime callback. The device pulls Read on its own
// thread; Read must not block on anything the actor holds and must not
// allocate beyond the bounded backlog.
type streamReader struct {
	src    *LoadedSong
	gain   float64
	rate   int
	chans  int
	paused *atomic.Bool
	played *atomic.Int64
	cmds   chan<- Command

	backlog  []float64
	eos      bool
	skipSent bool
}

func (r *streamReader) Read(p []byte) (int, error) {
	// Paused fills silence without advancing decode state or duration, so
	// resuming picks up exactly where the stream left off.
	if r.paused.Load() {
		zero(p)
		return len(p), nil
	}

	want := len(p) / bytesPerSample
	for pulls := 0; len(r.backlog) < want && !r.eos && pulls < maxPullsPerRead; pulls++ {
		chunk, eos, err := r.src.Next()
		if err != nil {
			log.Printf("[PLAYBACK] Decode error, ending stream: %v", err)
			r.eos = true
			break
		}
		r.backlog = append(r.backlog, chunk...)
		if eos {
			r.eos = true
		}
	}

	if r.eos && len(r.backlog) == 0 {
		if !r.skipSent {
			r.skipSent = true
			select {
			case r.cmds <- Skip{}:
			default:
				log.Printf("[PLAYBACK] Command channel full, dropping end-of-stream skip")
			}
		}
		// Keep the stream alive with silence until the actor tears it down.
		zero(p)
		return len(p), nil
	}

	n := want
	if len(r.backlog) < n {
		n = len(r.backlog)
	}
	if n == 0 {
		zero(p)
		return len(p), nil
	}
	for i := 0; i < n; i++ {
		v := r.backlog[i] * r.gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		p[2*i] = byte(s)
		p[2*i+1] = byte(s >> 8)
	}
	rest := copy(r.backlog, r.backlog[n:])
	r.backlog = r.backlog[:rest]

	frames := n / r.chans
	r.played.Add(int64(frames) * int64(time.Second) / int64(r.rate))
	return n * bytesPerSample, nil
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
