package utils

import (
	"errors"
	"io/fs"
	"os"
)

// RegularFile resolves a walked entry to the regular file it names, following
// symlinks. ok is false for directories, special files and dangling links.
func RegularFile(path string, d fs.DirEntry) (info fs.FileInfo, ok bool, err error) {
	switch {
	case d.Type().IsRegular():
		info, err = d.Info()
	case d.Type()&fs.ModeSymlink != 0:
		info, err = os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
	default:
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return info, info.Mode().IsRegular(), nil
}
