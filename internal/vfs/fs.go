// Package vfs provides the filesystem abstraction vaultdb uses for every
// on-disk operation: notes, note-type descriptions, vault config, the
// registry file, and the WAL. Routing all access through [FS] keeps the
// durability primitives (atomic rename, flock) in one place and lets
// tests substitute an in-memory or fault-injecting implementation without
// touching callers.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
package vfs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File] and can be used with all
// standard library functions that accept [io.Reader], [io.Writer],
// [io.Seeker], or [io.Closer].
//
// Implementations must behave like [os.File]: [File.Fd] must return a
// valid OS file descriptor usable with syscalls (for example
// [syscall.Flock]) until the file is closed.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. Used for low-level operations like
	// [syscall.Flock].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file.
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk.
	Sync() error

	// Chmod changes the mode of the file.
	Chmod(mode os.FileMode) error
}

// FS defines filesystem operations for reading, writing, and managing
// files. All methods mirror their [os] package equivalents.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// Create creates or truncates a file for writing. See [os.Create].
	Create(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See
	// [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary. See
	// [os.WriteFile].
	//
	// Note: WriteFile is not atomic or durable. For durability, use
	// [AtomicWriter] instead.
	WriteFile(path string, data []byte, perm os.FileMode) error

	// ReadDir reads a directory and returns its entries, sorted by name.
	// See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	RemoveAll(path string) error

	// Rename moves/renames a file or directory. See [os.Rename]. Atomic
	// on the same filesystem.
	Rename(oldpath, newpath string) error
}

// Real implements [FS] using the real filesystem. All methods are pure
// passthroughs to the [os] package with identical behavior and error
// semantics, except [Real.Exists] which wraps [os.Stat].
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

func (r *Real) Open(path string) (File, error) { return os.Open(path) }

func (r *Real) Create(path string) (File, error) { return os.Create(path) }

func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

func (r *Real) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (r *Real) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (r *Real) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

func (r *Real) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (r *Real) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

// Exists checks if a file exists using [os.Stat]. Returns (true, nil) if
// the file exists, (false, nil) if it does not, or (false, err) for other
// errors.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func (r *Real) Remove(path string) error { return os.Remove(path) }

func (r *Real) RemoveAll(path string) error { return os.RemoveAll(path) }

func (r *Real) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

var _ FS = (*Real)(nil)
var _ File = (*os.File)(nil)
