// Package library maintains the path-keyed metadata cache built from the
// configured music directories.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quaver/internal/song"
)

var (
	// ErrNotFound indicates that no entry exists at the requested path.
	ErrNotFound = errors.New("not found in library")
	// ErrNotFile indicates a directory entry where a file was expected.
	ErrNotFile = errors.New("entry is not a file")
	// ErrNotDirectory indicates a file entry where a directory was expected.
	ErrNotDirectory = errors.New("entry is not a directory")
)

// Node is one entry in the cache tree: either a file holding a Song or a
// directory holding children by name. Exactly one of the two is set.
type Node struct {
	Song     *song.Song       `json:"song,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
}

func newDirectory() *Node {
	return &Node{Children: make(map[string]*Node)}
}

// IsFile reports whether the node holds a song.
func (n *Node) IsFile() bool { return n.Song != nil }

// AsFile returns the node's song, or ErrNotFile for a directory.
func (n *Node) AsFile() (*song.Song, error) {
	if n.Song == nil {
		return nil, ErrNotFile
	}
	return n.Song, nil
}

// AsDirectory returns the node's children, or ErrNotDirectory for a file.
func (n *Node) AsDirectory() (map[string]*Node, error) {
	if n.Song != nil {
		return nil, ErrNotDirectory
	}
	return n.Children, nil
}

// Cache is the root of the library tree.
type Cache struct {
	Root *Node `json:"root"`
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{Root: newDirectory()}
}

// components splits a path into its non-empty elements.
func components(path string) []string {
	clean := filepath.Clean(path)
	parts := strings.Split(clean, string(filepath.Separator))
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}

// Get walks the tree one path component at a time and returns the node at
// path, or ErrNotFound / ErrNotDirectory depending on where the walk failed.
func (c *Cache) Get(path string) (*Node, error) {
	node := c.Root
	for _, part := range components(path) {
		children, err := node.AsDirectory()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		next, ok := children[part]
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		node = next
	}
	return node, nil
}

// Lookup returns the song stored at path. It is the read surface the player
// uses; it never mutates the tree.
func (c *Cache) Lookup(path string) (song.Song, error) {
	node, err := c.Get(path)
	if err != nil {
		return song.Song{}, err
	}
	s, err := node.AsFile()
	if err != nil {
		return song.Song{}, fmt.Errorf("%s: %w", path, err)
	}
	return *s, nil
}

// Insert stores a song at path, creating intermediate directories.
func (c *Cache) Insert(path string, s song.Song) error {
	parts := components(path)
	if len(parts) == 0 {
		return fmt.Errorf("empty path")
	}
	node := c.Root
	for _, part := range parts[:len(parts)-1] {
		children, err := node.AsDirectory()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		next, ok := children[part]
		if !ok {
			next = newDirectory()
			children[part] = next
		}
		node = next
	}
	children, err := node.AsDirectory()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	children[parts[len(parts)-1]] = &Node{Song: &s}
	return nil
}

// Songs returns every song in the tree, depth first.
func (c *Cache) Songs() []song.Song {
	var out []song.Song
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsFile() {
			out = append(out, *n.Song)
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(c.Root)
	return out
}

// Load reads a previously saved cache from path.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse cache: %w", err)
	}
	if c.Root == nil {
		c.Root = newDirectory()
	}
	return c, nil
}

// Save writes the cache to path.
func (c *Cache) Save(path string) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}
