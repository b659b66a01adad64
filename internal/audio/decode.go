// Package audio selects and opens decoders for the supported container formats.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrNoDecoder indicates that no decoder is available for the file's format.
var ErrNoDecoder = errors.New("no decoder for format")

// SupportedExtensions are the audio file extensions we can decode.
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".oga":  true,
	".wav":  true,
}

// Decode opens a decoder for the already-opened file. The extension of path
// picks the demuxer; the caller keeps ownership of f and must close it after
// the returned streamer.
func Decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrNoDecoder, filepath.Ext(path))
	}
}
