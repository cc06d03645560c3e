package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// FileSystem handles reading and writing resized sprite files on disk.
// Sprites are stored at: {baseDir}/{key}/{variant}-{size}.png
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	// 0755 is the Unix permission mode: owner rwx, group rx, others rx.
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating sprite directory: %w", err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// safeKey keeps species keys usable as a single path element.
func safeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
}

// SpritePath returns the filesystem path for a sprite variant at a given size.
func (fs *FileSystem) SpritePath(key, variant string, size model.SpriteSize) string {
	return filepath.Join(fs.baseDir, safeKey(key), variant+"-"+string(size)+".png")
}

// KeyDir returns the directory holding a species key's sprites.
func (fs *FileSystem) KeyDir(key string) string {
	return filepath.Join(fs.baseDir, safeKey(key))
}

// Read reads a sprite file from disk. Returns the raw PNG bytes, or
// ErrNotFound when the file was never written.
func (fs *FileSystem) Read(key, variant string, size model.SpriteSize) ([]byte, error) {
	data, err := os.ReadFile(fs.SpritePath(key, variant, size))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading sprite file: %w", err)
	}
	return data, nil
}

// Write saves a sprite PNG to disk, creating the key directory if needed.
func (fs *FileSystem) Write(key, variant string, size model.SpriteSize, data []byte) error {
	if err := os.MkdirAll(fs.KeyDir(key), 0755); err != nil {
		return fmt.Errorf("creating sprite key directory: %w", err)
	}
	// 0644: owner rw, group r, others r, the usual mode for data files.
	if err := os.WriteFile(fs.SpritePath(key, variant, size), data, 0644); err != nil {
		return fmt.Errorf("writing sprite file: %w", err)
	}
	return nil
}

// Exists checks if a sprite file exists on disk.
func (fs *FileSystem) Exists(key, variant string, size model.SpriteSize) bool {
	_, err := os.Stat(fs.SpritePath(key, variant, size))
	return err == nil
}

// DeleteKey removes all sprite files for a species key.
func (fs *FileSystem) DeleteKey(key string) error {
	return os.RemoveAll(fs.KeyDir(key))
}

// Clear removes every stored sprite.
func (fs *FileSystem) Clear() error {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return fmt.Errorf("listing sprite directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(fs.baseDir, e.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", e.Name(), err)
		}
	}
	return nil
}
