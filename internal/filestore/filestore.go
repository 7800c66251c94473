// Package filestore keeps uploaded files under content-addressed names, so
// saving the same bytes twice yields the same path.
package filestore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
)

type Store struct {
	dir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir: %w", err)
	}
	return &Store{dir: abs}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save copies r into the store and returns the stored path. The name is the
// xxh3-128 digest of the content plus the extension of filename (".csv" when
// it has none).
func (s *Store) Save(r io.Reader, filename string) (string, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("filestore: temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := xxh3.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("filestore: close: %w", err)
	}

	sum := h.Sum128().Bytes()
	path := filepath.Join(s.dir, hex.EncodeToString(sum[:])+extension(filename))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("filestore: rename: %w", err)
	}
	return path, nil
}

// Open opens a path previously returned by Save.
func (s *Store) Open(path string) (*os.File, error) {
	if err := s.check(path); err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a stored file; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := s.check(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}

func (s *Store) check(path string) error {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("filestore: %s is outside %s", path, s.dir)
	}
	return nil
}

func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ext == "":
		return ".csv"
	case ext == ".gz" && strings.HasSuffix(strings.ToLower(name), ".csv.gz"):
		return ".csv.gz"
	}
	return ext
}
