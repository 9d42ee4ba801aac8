// Package photo stores uploaded chore photos and dispute images on disk and
// hands back opaque references. The rest of the system only ever stores the
// reference; it never touches the bytes.
package photo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("photo not found")

// Store writes blobs under a single directory, one file per reference.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save stores the blob and returns its reference.
func (s *Store) Save(r io.Reader) (string, error) {
	ref := uuid.NewString()

	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write photo: %w", err)
	}
	return ref, nil
}

// Open returns a reader for a stored blob. The caller must close it.
func (s *Store) Open(ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, ref))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	return f, nil
}

// Delete removes a stored blob. Deleting a missing reference is not an
// error.
func (s *Store) Delete(ref string) error {
	if !validRef(ref) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// validRef rejects anything that is not a bare UUID, which also keeps path
// separators out of the filename.
func validRef(ref string) bool {
	if strings.ContainsAny(ref, "/\\.") {
		return false
	}
	_, err := uuid.Parse(ref)
	return err == nil
}
