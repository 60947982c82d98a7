package storage

import (
	"io/fs"
	"os"
)

// FileSystem is the set of file operations a collection needs. Tests swap in
// MockFileSystem; production code uses OSFileSystem.
type FileSystem interface {
	// Stat returns file info for the given path
	Stat(name string) (fs.FileInfo, error)

	// ReadFile reads the entire file
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to a file, creating or truncating it
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Rename moves oldpath over newpath
	Rename(oldpath, newpath string) error

	// Remove removes the named file
	Remove(name string) error

	// MkdirAll creates a directory and any missing parents
	MkdirAll(path string, perm fs.FileMode) error
}

// OSFileSystem implements FileSystem with the os package
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}
