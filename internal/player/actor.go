package player

import (
	"context"
	"errors"
	"log"
	"os"

	"quaver/internal/media"
	"quaver/internal/song"
)

// Library resolves queue paths to songs. Satisfied by *library.Cache.
type Library interface {
	Lookup(path string) (song.Song, error)
}

// ErrIndexOutOfRange is returned by Dequeue for positions past the queue end.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// commandBuffer sizes the command channel. Senders that cannot block (the
// audio thread's Skip on exhaustion) drop instead of waiting, so the buffer
// only needs to absorb short bursts.
const commandBuffer = 64

// nowPlaying bundles the loaded song with its live playback stream.
type nowPlaying struct {
	song     song.Song
	cover    []byte
	playback *Playback
}

// Actor owns all mutable player state: the current playback and the pending
// queue. A single goroutine (Run) consumes commands from one channel and is
// the only writer; observers read through immutable Facade snapshots
// republished after every command.
type Actor struct {
	lib     Library
	dev     Device
	session media.Session

	// load builds the decode pipeline for a song; swapped in tests.
	load func(song.Song, SignalSpec) (*LoadedSong, error)

	cmds    chan Command
	playing *nowPlaying
	queue   []string

	facade atomicFacade

	coverPath string
}

// New wires an actor to its library, output device and media session. The
// session's command handler is installed here; Run must be started before
// OS media commands can take effect.
func New(lib Library, dev Device, session media.Session) *Actor {
	a := &Actor{
		lib:     lib,
		dev:     dev,
		session: session,
		load:    Load,
		cmds:    make(chan Command, commandBuffer),
	}
	a.facade.store(newStoppedFacade(nil))
	session.SetCommandHandler(media.CommandHandlerFunc(a.onMediaCommand))
	return a
}

// Commands returns the channel player commands are sent on.
func (a *Actor) Commands() chan<- Command { return a.cmds }

// Snapshot returns the latest published facade.
func (a *Actor) Snapshot() *Facade { return a.facade.load() }

// Run consumes commands until ctx is cancelled, then stops playback and
// publishes a final stopped snapshot.
func (a *Actor) Run(ctx context.Context) {
	defer a.cleanup()
	for {
		select {
		case <-ctx.Done():
			if err := a.stop(); err != nil {
				log.Printf("[PLAYER] stop on shutdown: %v", err)
			}
			a.publish()
			return
		case cmd := <-a.cmds:
			if err := a.apply(cmd); err != nil {
				log.Printf("[PLAYER] %T: %v", cmd, err)
			}
			a.publish()
		}
	}
}

func (a *Actor) apply(cmd Command) error {
	switch c := cmd.(type) {
	case Play:
		return a.play()
	case Pause:
		return a.pause()
	case PlayPause:
		return a.playPause()
	case Skip:
		return a.skip()
	case Stop:
		return a.stop()
	case Clear:
		a.queue = nil
		return a.stopCurrent()
	case Enqueue:
		return a.enqueue(c.Path)
	case Dequeue:
		return a.dequeue(c.Index)
	default:
		return errors.New("unknown command")
	}
}

// play starts the front of the queue. Entries that fail to resolve or decode
// are dropped and the next one is tried; a device failure keeps the popped
// path at the queue front so nothing is lost.
func (a *Actor) play() error {
	if a.playing != nil {
		a.playing.playback.Resume()
		return nil
	}
	for len(a.queue) > 0 {
		path := a.queue[0]
		a.queue = a.queue[1:]

		s, err := a.lib.Lookup(path)
		if err != nil {
			log.Printf("[PLAYER] dropping %s: %v", path, err)
			continue
		}
		src, err := a.load(s, a.dev.Spec())
		if err != nil {
			log.Printf("[PLAYER] dropping %s: %v", path, err)
			continue
		}
		pb, err := NewPlayback(a.cmds, src, a.dev)
		if err != nil {
			a.queue = append([]string{path}, a.queue...)
			return err
		}
		a.playing = &nowPlaying{song: src.Song, cover: src.Cover, playback: pb}
		return nil
	}
	return nil
}

func (a *Actor) pause() error {
	if a.playing != nil {
		a.playing.playback.Pause()
	}
	return nil
}

// playPause toggles pause when playing, otherwise behaves like Play.
func (a *Actor) playPause() error {
	if a.playing != nil {
		a.playing.playback.TogglePause()
		return nil
	}
	return a.play()
}

// skip tears down the current stream and starts the next queued entry. With
// an empty queue it stops.
func (a *Actor) skip() error {
	if err := a.stopCurrent(); err != nil {
		log.Printf("[PLAYER] close stream: %v", err)
	}
	return a.play()
}

// stop tears down the current stream; the queue is untouched.
func (a *Actor) stop() error {
	return a.stopCurrent()
}

func (a *Actor) stopCurrent() error {
	if a.playing == nil {
		return nil
	}
	err := a.playing.playback.Close()
	a.playing = nil
	return err
}

// enqueue appends a path and starts playback when nothing is playing.
func (a *Actor) enqueue(path string) error {
	a.queue = append(a.queue, path)
	if a.playing == nil {
		return a.play()
	}
	return nil
}

func (a *Actor) dequeue(index int) error {
	if index < 0 || index >= len(a.queue) {
		return ErrIndexOutOfRange
	}
	a.queue = append(a.queue[:index], a.queue[index+1:]...)
	return nil
}

// publish rebuilds the facade from current state and pushes metadata and
// playback state to the OS media session.
func (a *Actor) publish() {
	queue := make([]string, len(a.queue))
	copy(queue, a.queue)

	var f *Facade
	if a.playing == nil {
		f = newStoppedFacade(queue)
	} else {
		f = newPlayingFacade(a.playing.song, a.playing.cover, queue, a.playing.playback)
	}
	a.facade.store(f)

	if a.playing == nil {
		if err := a.session.UpdatePlaybackState(media.StateStopped, 0); err != nil {
			log.Printf("[MEDIA] update state: %v", err)
		}
		return
	}

	s := a.playing.song
	meta := media.Metadata{
		Title:    s.Title(),
		Artist:   s.Tag(song.KeyArtist),
		Album:    s.Tag(song.KeyAlbum),
		Duration: s.Duration,
		ArtPath:  a.writeCover(a.playing.cover),
	}
	if err := a.session.UpdateMetadata(meta); err != nil {
		log.Printf("[MEDIA] update metadata: %v", err)
	}
	state := media.StatePlaying
	if a.playing.playback.Paused() {
		state = media.StatePaused
	}
	pos := a.playing.playback.Played()
	if err := a.session.UpdatePlaybackState(state, pos); err != nil {
		log.Printf("[MEDIA] update state: %v", err)
	}
}

// writeCover persists cover art to a scratch file for session backends that
// take a URL. The same path is reused for the process lifetime.
func (a *Actor) writeCover(art []byte) string {
	if len(art) == 0 {
		return ""
	}
	if a.coverPath == "" {
		f, err := os.CreateTemp("", "quaver-cover-*")
		if err != nil {
			log.Printf("[MEDIA] cover scratch file: %v", err)
			return ""
		}
		a.coverPath = f.Name()
		f.Close()
	}
	if err := os.WriteFile(a.coverPath, art, 0600); err != nil {
		log.Printf("[MEDIA] write cover: %v", err)
		return ""
	}
	return a.coverPath
}

func (a *Actor) cleanup() {
	if a.coverPath != "" {
		os.Remove(a.coverPath)
	}
	if err := a.session.Close(); err != nil {
		log.Printf("[MEDIA] close session: %v", err)
	}
}

// onMediaCommand maps OS media commands onto player commands. Transport
// controls the player has no notion of (seek, previous) are ignored.
func (a *Actor) onMediaCommand(cmd media.Command, _ interface{}) error {
	var pc Command
	switch cmd {
	case media.CmdPlay:
		pc = Play{}
	case media.CmdPause:
		pc = Pause{}
	case media.CmdPlayPause:
		pc = PlayPause{}
	case media.CmdStop:
		pc = Stop{}
	case media.CmdNext:
		pc = Skip{}
	default:
		log.Printf("[MEDIA] ignoring %s", cmd)
		return nil
	}
	select {
	case a.cmds <- pc:
	default:
		log.Printf("[MEDIA] command channel full, dropping %s", cmd)
	}
	return nil
}
