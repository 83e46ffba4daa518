package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keywarden/keywarden/internal/validate"
)

// FileStore keeps one directory per UID under a base directory, one file per
// field. Exclusive writes rely on O_CREATE|O_EXCL, which is the atomic
// registration gate.
type FileStore struct {
	baseDir string
}

// NewFileStore constructs a FileStore rooted at baseDir, creating it when
// absent.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("file store: missing base dir")
	}
	if errMkdir := os.MkdirAll(baseDir, 0o700); errMkdir != nil {
		return nil, fmt.Errorf("file store: create base dir: %w", errMkdir)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Create allocates the namespace directory for a new UID.
func (s *FileStore) Create(_ context.Context, uid string) error {
	dir, errPath := s.namespacePath(uid)
	if errPath != nil {
		return errPath
	}
	if errMkdir := os.Mkdir(dir, 0o700); errMkdir != nil {
		if os.IsExist(errMkdir) {
			return ErrExists
		}
		return fmt.Errorf("file store: create namespace: %w", errMkdir)
	}
	return nil
}

// Exists reports whether the UID namespace directory is present.
func (s *FileStore) Exists(_ context.Context, uid string) (bool, error) {
	dir, errPath := s.namespacePath(uid)
	if errPath != nil {
		return false, errPath
	}
	info, errStat := os.Stat(dir)
	if errStat != nil {
		if os.IsNotExist(errStat) {
			return false, nil
		}
		return false, fmt.Errorf("file store: stat namespace: %w", errStat)
	}
	return info.IsDir(), nil
}

// ExistsField reports whether a field file is present.
func (s *FileStore) ExistsField(_ context.Context, uid string, field Field) (bool, error) {
	path, errPath := s.fieldPath(uid, field)
	if errPath != nil {
		return false, errPath
	}
	if _, errStat := os.Stat(path); errStat != nil {
		if os.IsNotExist(errStat) {
			return false, nil
		}
		return false, fmt.Errorf("file store: stat field: %w", errStat)
	}
	return true, nil
}

// Write replaces the field file content.
func (s *FileStore) Write(_ context.Context, uid string, field Field, data []byte) error {
	path, errPath := s.fieldPath(uid, field)
	if errPath != nil {
		return errPath
	}
	if _, errStat := os.Stat(filepath.Dir(path)); errStat != nil {
		if os.IsNotExist(errStat) {
			return ErrNotFound
		}
		return fmt.Errorf("file store: stat namespace: %w", errStat)
	}
	if errWrite := os.WriteFile(path, data, 0o600); errWrite != nil {
		return fmt.Errorf("file store: write %s: %w", field, errWrite)
	}
	return nil
}

// WriteExclusive creates the field file with O_EXCL so that exactly one of
// any set of concurrent writers succeeds.
func (s *FileStore) WriteExclusive(_ context.Context, uid string, field Field, data []byte) error {
	path, errPath := s.fieldPath(uid, field)
	if errPath != nil {
		return errPath
	}
	f, errOpen := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errOpen != nil {
		if os.IsExist(errOpen) {
			return ErrFieldExists
		}
		if os.IsNotExist(errOpen) {
			return ErrNotFound
		}
		return fmt.Errorf("file store: create %s: %w", field, errOpen)
	}
	if _, errWrite := f.Write(data); errWrite != nil {
		_ = f.Close()
		return fmt.Errorf("file store: write %s: %w", field, errWrite)
	}
	if errClose := f.Close(); errClose != nil {
		return fmt.Errorf("file store: close %s: %w", field, errClose)
	}
	return nil
}

// Read returns the field file content.
func (s *FileStore) Read(_ context.Context, uid string, field Field) ([]byte, error) {
	path, errPath := s.fieldPath(uid, field)
	if errPath != nil {
		return nil, errPath
	}
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file store: read %s: %w", field, errRead)
	}
	return data, nil
}

// namespacePath builds the directory path for a UID. The format check runs
// before any path construction so a bypassed caller-side validator cannot
// turn the UID into a traversal.
func (s *FileStore) namespacePath(uid string) (string, error) {
	if !validate.UID(uid) {
		return "", ErrInvalidUID
	}
	return filepath.Join(s.baseDir, uid), nil
}

func (s *FileStore) fieldPath(uid string, field Field) (string, error) {
	dir, errPath := s.namespacePath(uid)
	if errPath != nil {
		return "", errPath
	}
	switch field {
	case FieldEmail, FieldKey, FieldTOTP:
		return filepath.Join(dir, string(field)), nil
	default:
		return "", fmt.Errorf("file store: unknown field %q", field)
	}
}
