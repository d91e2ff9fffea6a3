// Package ports defines narrow OS-facing interfaces so stores can be
// exercised without touching the real filesystem, clock, or process table.
package ports

import (
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem is the file access surface used by the stores.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	// WriteFileAtomic writes to a temp file in the target directory and
	// renames it over path, so readers never observe a partial file.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
	AppendFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldPath, newPath string) error
	Symlink(target, link string) error
	Readlink(link string) (string, error)
	ReadDir(path string) ([]os.DirEntry, error)
	Stat(path string) (os.FileInfo, error)
	Lstat(path string) (os.FileInfo, error)
}

// OSFilesystem implements Filesystem against the real OS.
type OSFilesystem struct{}

// OS returns the real filesystem.
func OS() Filesystem { return OSFilesystem{} }

func (OSFilesystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFilesystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFilesystem) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

func (OSFilesystem) AppendFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (OSFilesystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFilesystem) Remove(path string) error                     { return os.Remove(path) }
func (OSFilesystem) RemoveAll(path string) error                  { return os.RemoveAll(path) }
func (OSFilesystem) Rename(oldPath, newPath string) error         { return os.Rename(oldPath, newPath) }
func (OSFilesystem) Symlink(target, link string) error            { return os.Symlink(target, link) }
func (OSFilesystem) Readlink(link string) (string, error)         { return os.Readlink(link) }
func (OSFilesystem) ReadDir(path string) ([]os.DirEntry, error)   { return os.ReadDir(path) }
func (OSFilesystem) Stat(path string) (os.FileInfo, error)        { return os.Stat(path) }
func (OSFilesystem) Lstat(path string) (os.FileInfo, error)       { return os.Lstat(path) }
