package player

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"

	"quaver/internal/audio"
	"quaver/internal/song"
)

// SignalSpec describes a decoded PCM stream: sample rate and channel count.
type SignalSpec struct {
	SampleRate int
	Channels   int
}

const (
	// chunkFrames is how many frames one Next call pulls from the decoder.
	chunkFrames = 512

	// resampleQuality trades CPU for interpolation accuracy.
	resampleQuality = 4
)

// LoadedSong is the ephemeral join of a Song with its open decode pipeline.
// It lives exactly as long as the playback stream that owns it; Close drops
// the decoder and the backing file.
//
// Next decodes one chunk per call. It returns (nil, true, nil) at clean
// end-of-stream and surfaces mid-stream decode errors to the caller instead
// of panicking, so the playback stream can degrade gracefully. The returned
// slice is reused across calls; the caller must consume it before the next
// pull.
type LoadedSong struct {
	Song  song.Song
	Cover []byte
	Spec  SignalSpec

	next  func() ([]float64, bool, error)
	close func() error
}

// Next pulls one decoded chunk of interleaved samples.
func (l *LoadedSong) Next() ([]float64, bool, error) { return l.next() }

// Close drops the decoder and closes the backing file.
func (l *LoadedSong) Close() error { return l.close() }

// Load opens the song's file, builds a decoder for its container and codec,
// and resamples to the device spec when the rates differ. Each Load gets an
// independent decode cursor.
func Load(s song.Song, out SignalSpec) (*LoadedSong, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}

	var cover []byte
	if meta, err := tag.ReadFrom(f); err == nil {
		if pic := meta.Picture(); pic != nil {
			cover = pic.Data
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rewind %s: %w", s.Path, err)
	}

	dec, format, err := audio.Decode(f, s.Path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to load %s: %w", s.Path, err)
	}
	log.Printf("[LOADER] %s: %d Hz, %d ch", s.Path, format.SampleRate, format.NumChannels)

	var stream beep.Streamer = dec
	if int(format.SampleRate) != out.SampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate,
			beep.SampleRate(out.SampleRate), dec)
	}

	// Decoded frames are stereo pairs; flat is reused to hand the playback
	// stream an interleaved view without a per-pull allocation.
	buf := make([][2]float64, chunkFrames)
	flat := make([]float64, 0, chunkFrames*2)

	return &LoadedSong{
		Song:  s,
		Cover: cover,
		Spec:  SignalSpec{SampleRate: out.SampleRate, Channels: 2},
		next: func() ([]float64, bool, error) {
			n, ok := stream.Stream(buf)
			if n > 0 {
				flat = flat[:0]
				for _, frame := range buf[:n] {
					flat = append(flat, frame[0], frame[1])
				}
				return flat, false, nil
			}
			if !ok {
				if err := stream.Err(); err != nil {
					return nil, false, fmt.Errorf("decode %s: %w", s.Path, err)
				}
				return nil, true, nil
			}
			return nil, false, nil
		},
		close: func() error {
			decErr := dec.Close()
			if err := f.Close(); decErr == nil {
				decErr = err
			}
			return decErr
		},
	}, nil
}
