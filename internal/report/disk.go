package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrNotFound is returned by Load for a batch that was never saved.
	ErrNotFound = errors.New("batch not found")
	// ErrInvalidID is returned for batch IDs that are not a plain file name.
	ErrInvalidID = errors.New("invalid batch id")
)

// DiskStore keeps one JSON document per batch, named <id>.json, under a
// directory. Documents are replaced atomically, so a reader never sees a
// partly written batch.
type DiskStore struct {
	mu   sync.Mutex
	root string // empty until first use when no directory was given
}

// NewDiskStore returns a store rooted at dir. An empty dir selects a
// temporary directory, created on first use.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{root: dir}
}

// Dir returns the store directory, or "" while the temporary one has not
// been created.
func (s *DiskStore) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Save writes result, replacing any earlier document for the same batch.
func (s *DiskStore) Save(result *BatchResult) error {
	path, err := s.file(result.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch %s: %w", result.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+result.ID+"-*")
	if err != nil {
		return fmt.Errorf("saving batch %s: %w", result.ID, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("saving batch %s: %w", result.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving batch %s: %w", result.ID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving batch %s: %w", result.ID, err)
	}
	return nil
}

// Load reads the batch saved under batchID.
func (s *DiskStore) Load(batchID string) (*BatchResult, error) {
	path, err := s.file(batchID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading batch %s: %w", batchID, err)
	}
	defer f.Close()

	var result BatchResult
	if err := json.NewDecoder(f).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding batch %s: %w", batchID, err)
	}
	return &result, nil
}

// file returns the document path for id, creating the store directory
// when needed.
func (s *DiskStore) file(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("%w %q", ErrInvalidID, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == "" {
		dir, err := os.MkdirTemp("", "simbatch-runs-*")
		if err != nil {
			return "", fmt.Errorf("creating result directory: %w", err)
		}
		s.root = dir
	} else if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}
	return filepath.Join(s.root, id+".json"), nil
}
