// Package song defines the metadata value describing a playable file and the
// prober that builds it from the file's tags.
package song

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"quaver/internal/audio"
)

// StandardKey is the fixed vocabulary of tag keys the player understands.
// Everything else a container carries lands in Song.Other.
type StandardKey string

const (
	KeyTitle             StandardKey = "title"
	KeyArtist            StandardKey = "artist"
	KeyAlbum             StandardKey = "album"
	KeyAlbumArtist       StandardKey = "albumArtist"
	KeyComposer          StandardKey = "composer"
	KeyGenre             StandardKey = "genre"
	KeyYear              StandardKey = "year"
	KeyTrackNumber       StandardKey = "trackNumber"
	KeyTrackTotal        StandardKey = "trackTotal"
	KeyDiscNumber        StandardKey = "discNumber"
	KeyDiscTotal         StandardKey = "discTotal"
	KeyComment           StandardKey = "comment"
	KeyLyrics            StandardKey = "lyrics"
	KeyReplayGainTrack   StandardKey = "replayGainTrackGain"
	KeyReplayGainTrackPk StandardKey = "replayGainTrackPeak"
)

// Song identifies a playable file. It is created once during indexing and
// treated as an immutable value afterwards; copying is cheap because it holds
// metadata only, never audio payload.
type Song struct {
	Path       string                 `json:"path"`
	Duration   time.Duration          `json:"duration"`
	GainFactor float64                `json:"gainFactor"`
	Standard   map[StandardKey]string `json:"standard,omitempty"`
	Other      map[string]string      `json:"other,omitempty"`
}

// Tag returns the value of a standard tag, or "" when absent.
func (s Song) Tag(key StandardKey) string {
	return s.Standard[key]
}

// Title returns the track title, falling back to the file name.
func (s Song) Title() string {
	if t := s.Tag(KeyTitle); t != "" {
		return t
	}
	return filepath.Base(s.Path)
}

// ParseGainFactor converts a ReplayGain decibel tag like "-6.0 dB" into a
// linear amplitude multiplier (10^(dB/20)). The " dB" suffix is optional and
// case-insensitive.
func ParseGainFactor(s string) (float64, error) {
	v := strings.TrimSpace(s)
	lower := strings.ToLower(v)
	if strings.HasSuffix(lower, "db") {
		v = strings.TrimSpace(v[:len(v)-2])
	}
	db, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid replay gain %q: %w", s, err)
	}
	return math.Pow(10, db/20), nil
}

// rawStandardKeys are raw tag key spellings already covered by the standard
// accessors; they are kept out of Song.Other to avoid duplication.
var rawStandardKeys = map[string]bool{
	"title": true, "artist": true, "album": true, "albumartist": true,
	"album_artist": true, "album artist": true, "composer": true,
	"genre": true, "date": true, "year": true, "track": true,
	"tracknumber": true, "tracktotal": true, "disc": true,
	"discnumber": true, "disctotal": true, "comment": true, "lyrics": true,
	"tit2": true, "tpe1": true, "tpe2": true, "talb": true, "tcon": true,
	"tcom": true, "trck": true, "tpos": true, "tyer": true, "tdrc": true,
	"uslt": true, "comm": true, "apic": true,
}

// Probe opens path, reads its tags and decodes enough of the stream to learn
// its duration, and returns the resulting Song. A missing or malformed
// ReplayGain tag is not an error; the gain factor defaults to 1.0.
func Probe(path string) (Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return Song{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	s := Song{
		Path:       path,
		GainFactor: 1.0,
		Standard:   make(map[StandardKey]string),
		Other:      make(map[string]string),
	}

	meta, err := tag.ReadFrom(f)
	if err != nil {
		// Untagged files are still playable.
		log.Printf("[SONG] No tags in %s: %v", path, err)
	} else {
		fillTags(&s, meta)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Song{}, fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	dec, format, err := audio.Decode(f, path)
	if err != nil {
		return Song{}, err
	}
	defer dec.Close()
	s.Duration = format.SampleRate.D(dec.Len())

	return s, nil
}

func fillTags(s *Song, meta tag.Metadata) {
	setIf := func(key StandardKey, v string) {
		if v != "" {
			s.Standard[key] = v
		}
	}
	setIf(KeyTitle, meta.Title())
	setIf(KeyArtist, meta.Artist())
	setIf(KeyAlbum, meta.Album())
	setIf(KeyAlbumArtist, meta.AlbumArtist())
	setIf(KeyComposer, meta.Composer())
	setIf(KeyGenre, meta.Genre())
	if y := meta.Year(); y != 0 {
		s.Standard[KeyYear] = strconv.Itoa(y)
	}
	if n, total := meta.Track(); n != 0 {
		s.Standard[KeyTrackNumber] = strconv.Itoa(n)
		if total != 0 {
			s.Standard[KeyTrackTotal] = strconv.Itoa(total)
		}
	}
	if n, total := meta.Disc(); n != 0 {
		s.Standard[KeyDiscNumber] = strconv.Itoa(n)
		if total != 0 {
			s.Standard[KeyDiscTotal] = strconv.Itoa(total)
		}
	}
	setIf(KeyComment, meta.Comment())
	setIf(KeyLyrics, meta.Lyrics())

	for key, value := range meta.Raw() {
		str, ok := value.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "replaygain_track_gain"):
			s.Standard[KeyReplayGainTrack] = str
		case strings.Contains(lower, "replaygain_track_peak"):
			s.Standard[KeyReplayGainTrackPk] = str
		case !rawStandardKeys[lower]:
			s.Other[key] = str
		}
	}

	if raw, ok := s.Standard[KeyReplayGainTrack]; ok {
		factor, err := ParseGainFactor(raw)
		if err != nil {
			log.Printf("[SONG] Bad replay gain in %s: %v", s.Path, err)
		} else {
			s.GainFactor = factor
		}
	}
}
