// Package fsutil provides file system utility functions used to evaluate
// volume-shaped conditions: does a root path exist, and how large is the
// tree beneath it.
package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Exists reports whether root exists on the local file system, as either
// a file or a directory.
func Exists(root string) (bool, error) {
	_, err := os.Stat(root)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// TotalSize walks root and sums the size of every regular file beneath
// it. A root that is itself a regular file returns that file's size. A
// missing root returns 0 with no error — callers comparing against a
// minimum byte count treat "missing" the same as "empty".
func TotalSize(root string) (int64, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
