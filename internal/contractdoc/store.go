package contractdoc

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore persists rendered contract artifacts under a root directory.
// Artifact refs are slash-separated relative paths.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) path(ref string) string {
	// Refs are generated internally, but never follow one outside the root.
	clean := filepath.Clean("/" + strings.ReplaceAll(ref, "\\", "/"))
	return filepath.Join(s.root, clean)
}

func (s *FSStore) Put(ref string, data []byte) error {
	p := s.path(ref)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (s *FSStore) Exists(ref string) (bool, error) {
	_, err := os.Stat(s.path(ref))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *FSStore) OpenStream(ref string) (io.ReadCloser, error) {
	return os.Open(s.path(ref))
}
