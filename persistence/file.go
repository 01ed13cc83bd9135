package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

func init() {
	Register("file", func(ctx context.Context, uri URI) (Storage, error) {
		return OpenFile(uri.Location())
	})
}

// revision is the sidecar record other writers bump when they commit, so
// readers can tell a reload is due without parsing the whole database.
type revision struct {
	Revision    int       `json:"revision"`
	LastUpdated time.Time `json:"last_updated"`
}

// FileStorage keeps the object graph in a single JSON file next to a ".rev"
// revision sidecar. Commits go through a temporary file and a rename, a
// partially written database is never observed.
type FileStorage struct {
	*table
	path string
	rev  revision
}

// OpenFile opens a JSON file storage, loading the database when the file
// already exists.
func OpenFile(path string) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("file storage: empty path")
	}

	s := &FileStorage{table: newTable(), path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	if rev, err := readRevision(revPath(path)); err == nil {
		s.rev = rev
	}
	return s, nil
}

// Path reports the database file path.
func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("file storage: load %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("file storage: load %s: %w", s.path, err)
	}
	s.restore(snap)
	return nil
}

// Refresh reloads the database when the revision sidecar moved past the one
// loaded last. A missing sidecar forces the reload.
func (s *FileStorage) Refresh(ctx context.Context) error {
	rev, err := readRevision(revPath(s.path))
	if err == nil && rev.Revision <= s.rev.Revision {
		return nil
	}
	if err := s.load(); err != nil {
		return err
	}
	s.rev = rev
	return nil
}

func (s *FileStorage) Commit(ctx context.Context, pathOverride string) error {
	path := s.path
	if pathOverride != "" {
		path = pathOverride
	}

	raw, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("file storage: commit %s: %w", path, err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return fmt.Errorf("file storage: commit %s: %w", path, err)
	}

	s.rev.Revision++
	s.rev.LastUpdated = time.Now().UTC()
	rev, err := json.Marshal(s.rev)
	if err != nil {
		return fmt.Errorf("file storage: commit %s: %w", path, err)
	}
	if err := writeAtomic(revPath(path), rev); err != nil {
		return fmt.Errorf("file storage: commit %s: %w", path, err)
	}
	return nil
}

func (s *FileStorage) Close() error {
	return nil
}

func revPath(path string) string {
	return path + ".rev"
}

func readRevision(path string) (revision, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return revision{}, err
	}
	var rev revision
	if err := json.Unmarshal(raw, &rev); err != nil {
		logrus.Warnf("corrupt revision sidecar %s: %v", path, err)
		return revision{}, err
	}
	return rev, nil
}

// writeAtomic writes through a temporary file in the destination directory
// and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
