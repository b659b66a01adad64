package player

// Command is the closed set of intents the actor accepts over its channel.
// Each variant is a one-shot intent; the actor applies it to completion
// before reading the next.
type Command interface {
	isCommand()
}

// Play resumes a paused stream, or starts the queue head when stopped.
type Play struct{}

// Pause sets the pause flag on the current stream.
type Pause struct{}

// PlayPause flips the pause flag.
type PlayPause struct{}

// Skip stops the current stream and starts the next queued song.
type Skip struct{}

// Stop tears down the current stream; the queue is untouched.
type Stop struct{}

// Clear empties the queue and stops.
type Clear struct{}

// Enqueue appends a path to the queue; when stopped it starts playing.
type Enqueue struct {
	Path string
}

// Dequeue removes the queue entry at Index.
type Dequeue struct {
	Index int
}

func (Play) isCommand()      {}
func (Pause) isCommand()     {}
func (PlayPause) isCommand() {}
func (Skip) isCommand()      {}
func (Stop) isCommand()      {}
func (Clear) isCommand()     {}
func (Enqueue) isCommand()   {}
func (Dequeue) isCommand()   {}
