// Package config handles daemon configuration file management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// LibraryPaths is a list of directories containing music files
	LibraryPaths []string `json:"libraryPaths"`

	// Extensions lists the audio file extensions to index (with leading dot)
	Extensions []string `json:"extensions"`

	// CachePath is where the library metadata cache is persisted
	CachePath string `json:"cachePath"`

	// LogPath is the log file location
	LogPath string `json:"logPath"`

	// Audio settings
	Audio AudioConfig `json:"audio"`
}

// AudioConfig contains audio output settings
type AudioConfig struct {
	// SampleRate for audio output (default: 44100)
	SampleRate int `json:"sampleRate"`

	// Channels for audio output (default: 2)
	Channels int `json:"channels"`
}

// ExtensionSet returns the configured extensions as a lookup set.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.Extensions))
	for _, ext := range c.Extensions {
		set[ext] = true
	}
	return set
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LibraryPaths: []string{},
		Extensions:   []string{".mp3", ".flac", ".ogg", ".wav"},
		CachePath:    "cache.json",
		LogPath:      "quaver.log",
		Audio: AudioConfig{
			SampleRate: 44100,
			Channels:   2,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, "config.json"),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if config file exists
	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		// Create default config
		m.config = DefaultConfig()
		return m.Save()
	}

	// Read existing config
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	// Parse JSON
	config := DefaultConfig() // Start with defaults
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.config = config
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	// Ensure config directory exists
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// SetLibraryPaths updates the library paths
func (m *Manager) SetLibraryPaths(paths []string) error {
	m.config.LibraryPaths = paths
	return m.Save()
}
