package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("Load did not create config file: %v", err)
	}

	cfg := m.Get()
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("default sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Errorf("default channels = %d, want 2", cfg.Audio.Channels)
	}
	if !cfg.ExtensionSet()[".flac"] {
		t.Error("default extensions missing .flac")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := m.SetLibraryPaths([]string{"/music", "/more"}); err != nil {
		t.Fatalf("SetLibraryPaths failed: %v", err)
	}

	m2 := NewManager(dir)
	if err := m2.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	paths := m2.Get().LibraryPaths
	if len(paths) != 2 || paths[0] != "/music" || paths[1] != "/more" {
		t.Errorf("reloaded library paths = %v, want [/music /more]", paths)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"libraryPaths":["/music"]}`), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(dir)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if len(cfg.LibraryPaths) != 1 || cfg.LibraryPaths[0] != "/music" {
		t.Errorf("library paths = %v, want [/music]", cfg.LibraryPaths)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("partial config lost default sample rate: %d", cfg.Audio.SampleRate)
	}
}
