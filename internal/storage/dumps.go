package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleveque/pokemmo-companion/internal/model"
)

// DumpStore reads and writes the container snapshots.
// Snapshots are stored at: {baseDir}/{container_type}.json
type DumpStore struct {
	baseDir string
}

// NewDumpStore creates a DumpStore, ensuring the base directory exists.
func NewDumpStore(baseDir string) (*DumpStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &DumpStore{baseDir: baseDir}, nil
}

// Path returns the snapshot file for a container.
func (s *DumpStore) Path(container model.ContainerType) string {
	return filepath.Join(s.baseDir, string(container)+".json")
}

// WriteRaw stores the snapshot bytes exactly as received, replacing any
// previous snapshot for the container.
func (s *DumpStore) WriteRaw(container model.ContainerType, data []byte) error {
	if !model.ValidContainer(string(container)) {
		return fmt.Errorf("invalid container: %s", container)
	}
	if err := writeFileAtomic(s.Path(container), data); err != nil {
		return fmt.Errorf("writing %s snapshot: %w", container, err)
	}
	return nil
}

// ReadRaw returns the stored snapshot bytes, or ErrNotFound when the
// container has never been ingested.
func (s *DumpStore) ReadRaw(container model.ContainerType) ([]byte, error) {
	data, err := os.ReadFile(s.Path(container))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s snapshot: %w", container, err)
	}
	return data, nil
}

// Read decodes the stored snapshot.
func (s *DumpStore) Read(container model.ContainerType) (*model.Envelope, error) {
	data, err := s.ReadRaw(container)
	if err != nil {
		return nil, err
	}
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding %s snapshot: %w", container, err)
	}
	return &env, nil
}

// Exists checks whether a snapshot has been stored for the container.
func (s *DumpStore) Exists(container model.ContainerType) bool {
	_, err := os.Stat(s.Path(container))
	return err == nil
}
