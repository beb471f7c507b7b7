package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// renameFile is swapped in tests to simulate a crash before the final rename.
var renameFile = os.Rename

type fileStore struct {
	dir  string
	path string
}

// NewFileStore creates a Store for FileName inside dir.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir, path: filepath.Join(dir, FileName)}
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Load(_ context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: %s: not a list", ErrMalformed, s.path)
	}
	return records, nil
}

func (s *fileStore) Save(_ context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if err := renameFile(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	return nil
}

func (s *fileStore) Backup(_ context.Context, suffix string) (string, error) {
	backup := s.path + "." + suffix
	if err := os.Rename(s.path, backup); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return "", fmt.Errorf("backup ledger: %w", err)
	}
	return backup, nil
}
