package player

import (
	"sync"
	"sync/atomic"
	"time"

	"quaver/internal/song"
)

// atomicFacade publishes snapshots to concurrent readers.
type atomicFacade struct {
	mu sync.RWMutex
	f  *Facade
}

func (a *atomicFacade) store(f *Facade) {
	a.mu.Lock()
	a.f = f
	a.mu.Unlock()
}

func (a *atomicFacade) load() *Facade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.f
}

// Facade is a read-only view of the player handed out to observers. It is
// immutable except for the pause flag and played-duration cell, which are
// shared with the live playback so position reads stay current between
// snapshots.
type Facade struct {
	song  *song.Song
	cover []byte
	queue []string

	paused *atomic.Bool
	played *atomic.Int64
}

// newStoppedFacade describes a player with nothing loaded.
func newStoppedFacade(queue []string) *Facade {
	return &Facade{queue: queue}
}

func newPlayingFacade(s song.Song, cover []byte, queue []string, pb *Playback) *Facade {
	return &Facade{
		song:   &s,
		cover:  cover,
		queue:  queue,
		paused: pb.paused,
		played: pb.played,
	}
}

// Stopped reports whether nothing is loaded.
func (f *Facade) Stopped() bool { return f.song == nil }

// CurrentSong returns the loaded song, or nil when stopped.
func (f *Facade) CurrentSong() *song.Song { return f.song }

// CurrentCover returns the embedded cover art of the loaded song, or nil.
func (f *Facade) CurrentCover() []byte { return f.cover }

// Queue returns the pending paths in play order.
func (f *Facade) Queue() []string { return f.queue }

// Paused reports the live pause flag; false when stopped.
func (f *Facade) Paused() bool {
	if f.paused == nil {
		return false
	}
	return f.paused.Load()
}

// PlayingDuration returns how much of the loaded song has been played so
// far; zero when stopped.
func (f *Facade) PlayingDuration() time.Duration {
	if f.played == nil {
		return 0
	}
	return time.Duration(f.played.Load())
}
