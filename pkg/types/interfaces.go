package types

import (
	"io/fs"
)

// FS is the filesystem surface modman reads and writes through.
// Production code uses filesystem.NewOS; tests use in-memory implementations.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Progress receives coarse progress notifications from long running operations.
type Progress interface {
	// Start announces a phase with the number of steps it will take.
	Start(phase string, total int)
	// Step advances the current phase by one and names the item being processed.
	Step(item string)
	// Done ends the current phase.
	Done()
}

// NoProgress discards every notification.
type NoProgress struct{}

func (NoProgress) Start(string, int) {}
func (NoProgress) Step(string)       {}
func (NoProgress) Done()             {}
