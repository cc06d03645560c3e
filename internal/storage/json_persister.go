package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// JSONFilePersister keeps every kind's records in a single JSON file,
// rewritten through a temp file and a rename on each save.
type JSONFilePersister struct {
	mu       sync.Mutex
	filePath string
}

type jsonCacheFile struct {
	Kinds map[model.ResourceKind]map[string]model.CacheRecord `json:"kinds"`
}

// NewJSONFilePersister creates a persister writing to filePath. The file is
// created on the first save.
func NewJSONFilePersister(filePath string) *JSONFilePersister {
	return &JSONFilePersister{filePath: filePath}
}

func (p *JSONFilePersister) Load(_ context.Context, kind model.ResourceKind) ([]model.CacheRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.readLocked()
	if err != nil {
		return nil, err
	}
	out := make([]model.CacheRecord, 0, len(state.Kinds[kind]))
	for _, rec := range state.Kinds[kind] {
		out = append(out, rec)
	}
	return out, nil
}

func (p *JSONFilePersister) Save(_ context.Context, kind model.ResourceKind, records []model.CacheRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.readLocked()
	if err != nil {
		return err
	}
	bucket, ok := state.Kinds[kind]
	if !ok {
		bucket = make(map[string]model.CacheRecord)
		state.Kinds[kind] = bucket
	}
	for _, rec := range records {
		bucket[rec.Key] = rec
	}
	return p.writeLocked(state)
}

func (p *JSONFilePersister) Clear(_ context.Context, kind model.ResourceKind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.readLocked()
	if err != nil {
		return err
	}
	delete(state.Kinds, kind)
	return p.writeLocked(state)
}

func (p *JSONFilePersister) readLocked() (*jsonCacheFile, error) {
	state := &jsonCacheFile{Kinds: make(map[model.ResourceKind]map[string]model.CacheRecord)}
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decoding cache file: %w", err)
	}
	if state.Kinds == nil {
		state.Kinds = make(map[model.ResourceKind]map[string]model.CacheRecord)
	}
	return state, nil
}

func (p *JSONFilePersister) writeLocked(state *jsonCacheFile) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding cache file: %w", err)
	}
	return writeFileAtomic(p.filePath, data)
}

// writeFileAtomic writes data next to path and renames it into place, so a
// reader never sees a half-written file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
