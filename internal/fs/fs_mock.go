package fs

// This is a mock implementation of the "fs" module for use with tests. It does
// not actually read from the file system. Instead, it reads from a pre-specified
// map of file paths to files.

import (
	"path"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

type mockFS struct {
	dirs          map[string]DirEntries
	files         map[string]string
	absWorkingDir string
}

func MockFS(input map[string]string, absWorkingDir string) FS {
	dirs := make(map[string]DirEntries)
	files := make(map[string]string)

	for k, v := range input {
		files[k] = v
		original := k

		// Build the directory map
		for {
			kDir := path.Dir(k)
			dir, ok := dirs[kDir]
			if !ok {
				dir = MakeEmptyDirEntries(kDir)
				dirs[kDir] = dir
			}
			if kDir == k {
				break
			}
			if k == original {
				dir.add(path.Base(k), FileEntry)
			} else {
				dir.add(path.Base(k), DirEntry)
			}
			k = kDir
		}
	}

	return &mockFS{dirs, files, absWorkingDir}
}

func (fs *mockFS) ReadDirectory(p string) (DirEntries, error) {
	// Trim trailing slashes before lookup
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}

	if dir, ok := fs.dirs[p]; ok {
		return dir, nil
	}
	return DirEntries{}, errors.Wrapf(syscall.ENOENT, "failed to read directory %v", p)
}

func (fs *mockFS) ReadFile(p string) (string, error) {
	if contents, ok := fs.files[p]; ok {
		return contents, nil
	}
	return "", errors.Wrapf(syscall.ENOENT, "failed to read %v", p)
}

func (*mockFS) IsAbs(p string) bool {
	return path.IsAbs(p)
}

func (*mockFS) Dir(p string) string {
	return path.Dir(p)
}

func (*mockFS) Base(p string) string {
	return path.Base(p)
}

func (*mockFS) Join(parts ...string) string {
	return path.Clean(path.Join(parts...))
}

func (fs *mockFS) Cwd() string {
	return fs.absWorkingDir
}

func (*mockFS) Rel(base string, target string) (string, bool) {
	return relPath(path.Clean(base), path.Clean(target))
}
