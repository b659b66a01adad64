package player

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"quaver/internal/media"
	"quaver/internal/song"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// countingDevice tracks how many streams are live so tests can assert the
// at-most-one invariant.
type countingDevice struct {
	spec    SignalSpec
	live    int
	maxLive int
	fail    bool
}

func (d *countingDevice) Spec() SignalSpec { return d.spec }

func (d *countingDevice) Start(r io.Reader) (io.Closer, error) {
	if d.fail {
		return nil, errors.New("device unavailable")
	}
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	return closerFunc(func() error {
		d.live--
		return nil
	}), nil
}

type mapLibrary map[string]song.Song

func (m mapLibrary) Lookup(path string) (song.Song, error) {
	s, ok := m[path]
	if !ok {
		return song.Song{}, errors.New("not found in library")
	}
	return s, nil
}

func silentLoad(s song.Song, spec SignalSpec) (*LoadedSong, error) {
	return &LoadedSong{
		Song:  s,
		Cover: []byte("art"),
		Spec:  spec,
		next:  func() ([]float64, bool, error) { return nil, true, nil },
		close: func() error { return nil },
	}, nil
}

func testActor(t *testing.T, paths ...string) (*Actor, *countingDevice) {
	t.Helper()
	lib := mapLibrary{}
	for _, p := range paths {
		lib[p] = song.Song{Path: p, GainFactor: 1.0, Duration: time.Minute}
	}
	dev := &countingDevice{spec: SignalSpec{SampleRate: 44100, Channels: 2}}
	a := New(lib, dev, media.NewNoOpSession())
	a.load = silentLoad
	t.Cleanup(a.cleanup)
	return a, dev
}

// step applies a command and republishes, the way Run does.
func step(t *testing.T, a *Actor, cmd Command) error {
	t.Helper()
	err := a.apply(cmd)
	a.publish()
	return err
}

func TestEnqueueStartsPlaybackWhenStopped(t *testing.T) {
	a, dev := testActor(t, "/music/a.mp3")

	if err := step(t, a, Enqueue{Path: "/music/a.mp3"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	f := a.Snapshot()
	if f.Stopped() {
		t.Fatal("enqueue on stopped player did not start playback")
	}
	if got := f.CurrentSong().Path; got != "/music/a.mp3" {
		t.Errorf("playing %q, want /music/a.mp3", got)
	}
	if len(f.Queue()) != 0 {
		t.Errorf("queue = %v, want empty", f.Queue())
	}
	if string(f.CurrentCover()) != "art" {
		t.Errorf("cover = %q, want loaded art", f.CurrentCover())
	}
	if dev.live != 1 {
		t.Errorf("%d live streams, want 1", dev.live)
	}
}

func TestQueueIsFIFO(t *testing.T) {
	a, dev := testActor(t, "/m/a.mp3", "/m/b.mp3", "/m/c.mp3")

	for _, p := range []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"} {
		if err := step(t, a, Enqueue{Path: p}); err != nil {
			t.Fatalf("Enqueue %s failed: %v", p, err)
		}
	}

	want := []string{"/m/a.mp3", "/m/b.mp3", "/m/c.mp3"}
	for _, p := range want {
		f := a.Snapshot()
		if f.Stopped() || f.CurrentSong().Path != p {
			t.Fatalf("playing %v, want %s", f.CurrentSong(), p)
		}
		if err := step(t, a, Skip{}); err != nil {
			t.Fatalf("Skip failed: %v", err)
		}
	}

	if f := a.Snapshot(); !f.Stopped() {
		t.Error("player still playing after draining the queue")
	}
	if dev.maxLive > 1 {
		t.Errorf("%d streams were live at once, want at most 1", dev.maxLive)
	}
	if dev.live != 0 {
		t.Errorf("%d streams still live after stop", dev.live)
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})

	for i := 0; i < 2; i++ {
		if err := step(t, a, Pause{}); err != nil {
			t.Fatalf("Pause %d failed: %v", i, err)
		}
		if !a.Snapshot().Paused() {
			t.Fatalf("not paused after Pause %d", i)
		}
	}

	if err := step(t, a, Play{}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if a.Snapshot().Paused() {
		t.Error("still paused after Play")
	}
}

func TestPlayPauseToggles(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})

	step(t, a, PlayPause{})
	if !a.Snapshot().Paused() {
		t.Error("PlayPause on playing stream did not pause")
	}
	step(t, a, PlayPause{})
	if a.Snapshot().Paused() {
		t.Error("second PlayPause did not resume")
	}
}

func TestPlayPauseStartsWhenStopped(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3", "/m/b.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})
	step(t, a, Enqueue{Path: "/m/b.mp3"})
	step(t, a, Stop{})

	if err := step(t, a, PlayPause{}); err != nil {
		t.Fatalf("PlayPause failed: %v", err)
	}
	f := a.Snapshot()
	if f.Stopped() || f.CurrentSong().Path != "/m/b.mp3" {
		t.Errorf("playing %v, want /m/b.mp3", f.CurrentSong())
	}
}

func TestStopKeepsQueue(t *testing.T) {
	a, dev := testActor(t, "/m/a.mp3", "/m/b.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})
	step(t, a, Enqueue{Path: "/m/b.mp3"})

	if err := step(t, a, Stop{}); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	f := a.Snapshot()
	if !f.Stopped() {
		t.Error("not stopped after Stop")
	}
	if len(f.Queue()) != 1 || f.Queue()[0] != "/m/b.mp3" {
		t.Errorf("queue after Stop = %v, want [/m/b.mp3]", f.Queue())
	}
	if dev.live != 0 {
		t.Errorf("%d live streams after Stop", dev.live)
	}

	// Play resumes from the untouched queue.
	if err := step(t, a, Play{}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if f := a.Snapshot(); f.Stopped() || f.CurrentSong().Path != "/m/b.mp3" {
		t.Errorf("playing %v after restart, want /m/b.mp3", f.CurrentSong())
	}
}

func TestClearEmptiesQueueAndStops(t *testing.T) {
	a, dev := testActor(t, "/m/a.mp3", "/m/b.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})
	step(t, a, Enqueue{Path: "/m/b.mp3"})

	if err := step(t, a, Clear{}); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	f := a.Snapshot()
	if len(f.Queue()) != 0 {
		t.Errorf("queue after Clear = %v, want empty", f.Queue())
	}
	if !f.Stopped() {
		t.Error("Clear left the current stream playing")
	}
	if dev.live != 0 {
		t.Errorf("%d live streams after Clear", dev.live)
	}
}

func TestDequeue(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3", "/m/b.mp3", "/m/c.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})
	step(t, a, Enqueue{Path: "/m/b.mp3"})
	step(t, a, Enqueue{Path: "/m/c.mp3"})

	if err := step(t, a, Dequeue{Index: 0}); err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	f := a.Snapshot()
	if len(f.Queue()) != 1 || f.Queue()[0] != "/m/c.mp3" {
		t.Errorf("queue = %v, want [/m/c.mp3]", f.Queue())
	}
}

func TestDequeueOutOfRange(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3", "/m/b.mp3", "/m/c.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})
	step(t, a, Enqueue{Path: "/m/b.mp3"})
	step(t, a, Enqueue{Path: "/m/c.mp3"})

	err := step(t, a, Dequeue{Index: 5})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Dequeue(5) returned %v, want ErrIndexOutOfRange", err)
	}
	if got := len(a.Snapshot().Queue()); got != 2 {
		t.Errorf("queue length changed to %d on failed dequeue, want 2", got)
	}
}

func TestPlayDropsUnresolvableEntries(t *testing.T) {
	a, _ := testActor(t, "/m/good.mp3")
	a.queue = []string{"/m/missing.mp3", "/m/good.mp3"}

	if err := step(t, a, Play{}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	f := a.Snapshot()
	if f.Stopped() || f.CurrentSong().Path != "/m/good.mp3" {
		t.Errorf("playing %v, want /m/good.mp3 after dropping bad entry", f.CurrentSong())
	}
}

func TestPlayDeviceErrorKeepsQueue(t *testing.T) {
	a, dev := testActor(t, "/m/a.mp3", "/m/b.mp3")
	a.queue = []string{"/m/a.mp3", "/m/b.mp3"}
	dev.fail = true

	if err := step(t, a, Play{}); err == nil {
		t.Fatal("Play succeeded with failing device")
	}
	f := a.Snapshot()
	if !f.Stopped() {
		t.Error("player playing after device error")
	}
	queue := f.Queue()
	if len(queue) != 2 || queue[0] != "/m/a.mp3" {
		t.Errorf("queue after device error = %v, want [/m/a.mp3 /m/b.mp3]", queue)
	}

	// Once the device recovers the same entry plays.
	dev.fail = false
	if err := step(t, a, Play{}); err != nil {
		t.Fatalf("Play after recovery failed: %v", err)
	}
	if f := a.Snapshot(); f.Stopped() || f.CurrentSong().Path != "/m/a.mp3" {
		t.Errorf("playing %v after recovery, want /m/a.mp3", f.CurrentSong())
	}
}

func TestSkipWithEmptyQueueStops(t *testing.T) {
	a, dev := testActor(t, "/m/a.mp3")
	step(t, a, Enqueue{Path: "/m/a.mp3"})

	if err := step(t, a, Skip{}); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if !a.Snapshot().Stopped() {
		t.Error("not stopped after skipping the last song")
	}
	if dev.live != 0 {
		t.Errorf("%d live streams after skip to empty", dev.live)
	}
}

func TestMediaCommandsMapToPlayerCommands(t *testing.T) {
	a, _ := testActor(t)

	tests := []struct {
		media media.Command
		want  Command
	}{
		{media.CmdPlay, Play{}},
		{media.CmdPause, Pause{}},
		{media.CmdPlayPause, PlayPause{}},
		{media.CmdStop, Stop{}},
		{media.CmdNext, Skip{}},
	}
	for _, tt := range tests {
		if err := a.onMediaCommand(tt.media, nil); err != nil {
			t.Fatalf("onMediaCommand(%s) failed: %v", tt.media, err)
		}
		select {
		case got := <-a.cmds:
			if got != tt.want {
				t.Errorf("%s forwarded %T, want %T", tt.media, got, tt.want)
			}
		default:
			t.Errorf("%s forwarded nothing", tt.media)
		}
	}

	// Commands the player has no notion of are ignored.
	if err := a.onMediaCommand(media.CmdSeek, nil); err != nil {
		t.Fatalf("onMediaCommand(Seek) failed: %v", err)
	}
	select {
	case got := <-a.cmds:
		t.Errorf("Seek forwarded %T, want nothing", got)
	default:
	}
}

func TestRunProcessesCommands(t *testing.T) {
	a, _ := testActor(t, "/m/a.mp3")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	a.Commands() <- Enqueue{Path: "/m/a.mp3"}

	deadline := time.After(2 * time.Second)
	for a.Snapshot().Stopped() {
		select {
		case <-deadline:
			t.Fatal("enqueue never took effect")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on cancel")
	}
	if !a.Snapshot().Stopped() {
		t.Error("shutdown left playback live")
	}
}
