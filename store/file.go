package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// FileStore is a JSON file-backed domain.CartPersister
type FileStore struct {
	mu   sync.Mutex
	path string
}

// compile-time assertion
var _ domain.CartPersister = (*FileStore)(nil)

// NewFileStore constructs a FileStore at the given path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (domain.CartSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.CartSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// no cart yet
			return domain.CartSnapshot{}, nil
		}
		return domain.CartSnapshot{}, err
	}
	return decodeSnapshot(b)
}

func (s *FileStore) Save(ctx context.Context, snapshot domain.CartSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
