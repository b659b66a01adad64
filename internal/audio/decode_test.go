package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	_, _, err = Decode(f, path)
	if !errors.Is(err, ErrNoDecoder) {
		t.Errorf("Decode returned %v, want ErrNoDecoder", err)
	}
}

func TestSupportedExtensionsMatchDecoders(t *testing.T) {
	for _, ext := range []string{".mp3", ".flac", ".ogg", ".oga", ".wav"} {
		if !SupportedExtensions[ext] {
			t.Errorf("SupportedExtensions missing %s", ext)
		}
	}
	if SupportedExtensions[".jpg"] {
		t.Error("SupportedExtensions includes .jpg")
	}
}
