package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File permissions for the token state file. Tokens are bearer secrets, so
// the file is owner-only.
const (
	tokenFileMode = 0o600
	tokenDirMode  = 0o750
)

// FileStore persists TokenState as a small JSON file between runs, so a
// restarted process resumes with the existing token pair instead of
// logging in again.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path. The file and
// its directory are created lazily on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the persisted token state.
//
// A missing file and a corrupt file are both treated as "no stored token":
// the caller falls through to a credential login either way, and an
// unreadable state file should never wedge collection.
//
// Returns:
//   - *TokenState: The stored state, or nil if absent or unreadable
//   - error: Only for unexpected I/O failures (permissions, not missing file)
func (f *FileStore) Load() (*TokenState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var state TokenState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state is recoverable by logging in again.
		return nil, nil
	}
	if state.AccessToken == "" {
		return nil, nil
	}

	return &state, nil
}

// Save atomically persists the token state.
//
// The state is written to a temporary file in the same directory and then
// renamed over the target, so a crash mid-write can never leave a
// half-written token file behind.
func (f *FileStore) Save(state *TokenState) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, tokenDirMode); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sigen_token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(tokenFileMode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("setting token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing token file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing token file: %w", err)
	}

	return nil
}
