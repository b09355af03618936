package settings

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore keeps settings in a JSON file.
type FileStore struct {
	path     string
	defaults Settings
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, defaults Settings) *FileStore {
	return &FileStore{path: path, defaults: defaults}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Load reads the file. A missing file yields the defaults without error.
func (f *FileStore) Load(ctx context.Context) (Settings, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.defaults, nil
		}
		return f.defaults, &ReadError{Err: err}
	}
	return Decode(data, f.defaults)
}

// Save writes the file, creating its directory if needed.
func (f *FileStore) Save(ctx context.Context, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return &WriteError{Err: err}
	}

	data, err := Encode(s)
	if err != nil {
		return &WriteError{Err: err}
	}

	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}
