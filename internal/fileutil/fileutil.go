package fileutil

import (
	"errors"
	"io/fs"
	"os"
)

// WriteAtomic writes data to path through a sibling temp file and rename, so
// a reader never observes a partially written document and a crash mid-write
// leaves the previous contents intact.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, mode); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
