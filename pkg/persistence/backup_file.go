package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BackupSuffix is appended to a file name to form its backup path.
const BackupSuffix = ".bak"

// BackupFile is a file replaced with backup-then-rename semantics.
type BackupFile struct {
	mu   sync.Mutex
	path string
}

// NewBackupFile creates a BackupFile for path. Nothing is touched on disk.
func NewBackupFile(path string) *BackupFile {
	return &BackupFile{path: path}
}

// Path returns the path of the current file.
func (f *BackupFile) Path() string {
	return f.path
}

// BackupPath returns the path of the backup file.
func (f *BackupFile) BackupPath() string {
	return f.path + BackupSuffix
}

// Replace durably writes data as the new current contents.
//
// The sequence is: write and fsync a temporary file in the same directory,
// delete the old backup, rename the current file to the backup, rename the
// temporary file into place. A crash at any step leaves the last complete
// contents in either the current file or the backup.
func (f *BackupFile) Replace(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	backup := f.BackupPath()
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", backup, err)
	}
	if err := os.Rename(f.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("backup %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("install %s: %w", f.path, err)
	}
	return nil
}

// Load reads the current contents.
// If the current file is missing but a backup exists, the backup is
// returned. Returns nil, nil if neither exists.
func (f *BackupFile) Load() ([]byte, error) {
	data, _, err := f.LoadWithSource()
	return data, err
}

// LoadWithSource is Load that also reports whether the data came from the
// backup file.
func (f *BackupFile) LoadWithSource() (data []byte, fromBackup bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err = os.ReadFile(f.path)
	if err == nil {
		return data, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("read %s: %w", f.path, err)
	}

	data, err = os.ReadFile(f.BackupPath())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", f.BackupPath(), err)
	}
	return data, true, nil
}
