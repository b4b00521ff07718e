package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is where the persisted record lives unless overridden by
// configuration (RFCX_CREDENTIALS_PATH or an explicit option).
const DefaultPath = ".rfcx_credentials"

// FileStore reads and writes the persisted credential record at a fixed
// path. It is owned by the session manager; nothing else touches the file.
type FileStore struct {
	Path string
}

// NewFileStore creates a store for the given path, falling back to
// DefaultPath when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{Path: path}
}

// Exists reports whether a persisted record file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load reads and parses the persisted record. A missing file is reported via
// os.IsNotExist on the returned error; a structurally invalid file returns
// ErrMalformedRecord (wrapped).
func (s *FileStore) Load() (*Credential, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return UnmarshalRecord(b)
}

// Save writes the credential in persisted-record form, creating the parent
// directory if needed. The file is user-only since it carries tokens.
func (s *FileStore) Save(c *Credential) error {
	if err := ensureParentDir(s.Path); err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, MarshalRecord(c), 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
