// Package vault wraps the local file tree being synchronized. It is built
// on a billy filesystem so production code runs against the OS filesystem
// while tests run against an in-memory one.
package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/vaultsyncd/vaultsyncd/internal/pathutil"
)

// Store provides the file primitives the sync engine needs: enumeration,
// text/binary reads and writes, deletion and existence checks. All paths are
// vault-relative with forward slashes.
type Store struct {
	fs billy.Filesystem
}

// New creates a store over the given filesystem.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS creates a store rooted at dir on the host filesystem.
func NewOS(dir string) *Store {
	return &Store{fs: osfs.New(dir)}
}

// Walk calls fn for every regular file in the vault with its normalized
// relative path. Directories are traversed but not reported. An empty vault
// yields no calls and no error.
func (s *Store) Walk(fn func(path string, info os.FileInfo) error) error {
	err := util.Walk(s.fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && pathutil.Normalize(path) == "" {
				// Missing root means an empty vault.
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		return fn(pathutil.Normalize(path), info)
	})
	if err != nil {
		return fmt.Errorf("failed to walk vault: %w", err)
	}
	return nil
}

// ReadText reads a file as text.
func (s *Store) ReadText(path string) (string, error) {
	data, err := s.ReadBinary(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary reads a file as raw bytes.
func (s *Store) ReadBinary(path string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, pathutil.Normalize(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteText writes text content, creating parent directories and
// overwriting any existing file.
func (s *Store) WriteText(path, content string) error {
	return s.WriteBinary(path, []byte(content))
}

// WriteBinary writes raw bytes, creating parent directories and overwriting
// any existing file.
func (s *Store) WriteBinary(path string, data []byte) error {
	path = pathutil.Normalize(path)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(s.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Delete removes a file. Deleting an absent file is not an error.
func (s *Store) Delete(path string) error {
	err := s.fs.Remove(pathutil.Normalize(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a file exists at path.
func (s *Store) Exists(path string) (bool, error) {
	_, err := s.fs.Stat(pathutil.Normalize(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
