package fs

// This implementation reads modules through afs, which means module ids can
// be plain file paths ("/src/index.js") or URLs of any storage that afs has a
// connector for ("mem://localhost/src/index.js", "s3://bucket/src/index.js").
// URL-based module ids keep their "scheme://host" prefix and everything after
// it is treated like a "/"-separated path.

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

type afsFS struct {
	ctx     context.Context
	service afs.Service
	cwd     string

	// Stores the entries for directories we've listed before
	entriesMutex sync.Mutex
	entries      map[string]entriesOrErr
}

type entriesOrErr struct {
	entries DirEntries
	err     error
}

func AFS(ctx context.Context, service afs.Service, absWorkingDir string) FS {
	return &afsFS{
		ctx:     ctx,
		service: service,
		cwd:     absWorkingDir,
		entries: make(map[string]entriesOrErr),
	}
}

// Splits "scheme://host/a/b" into "scheme://host" and "/a/b". Plain paths
// have no prefix.
func splitURL(p string) (prefix string, rest string) {
	if i := strings.Index(p, "://"); i != -1 {
		if j := strings.IndexByte(p[i+3:], '/'); j != -1 {
			return p[:i+3+j], p[i+3+j:]
		}
		return p, "/"
	}
	return "", p
}

func (fs *afsFS) ReadDirectory(dir string) (DirEntries, error) {
	_, rest := splitURL(dir)
	for len(rest) > 1 && strings.HasSuffix(rest, "/") {
		rest = rest[:len(rest)-1]
		dir = dir[:len(dir)-1]
	}

	fs.entriesMutex.Lock()
	defer fs.entriesMutex.Unlock()

	if cached, ok := fs.entries[dir]; ok {
		return cached.entries, cached.err
	}

	objects, err := fs.service.List(fs.ctx, dir)
	if err != nil {
		err = errors.Wrapf(err, "failed to list %v", dir)
		fs.entries[dir] = entriesOrErr{err: err}
		return DirEntries{}, err
	}

	entries := MakeEmptyDirEntries(dir)
	for i, object := range objects {
		// The listed directory itself comes first
		if i == 0 && object.IsDir() && object.Name() == path.Base(rest) {
			continue
		}
		if object.IsDir() {
			entries.add(object.Name(), DirEntry)
		} else {
			entries.add(object.Name(), FileEntry)
		}
	}

	fs.entries[dir] = entriesOrErr{entries: entries}
	return entries, nil
}

func (fs *afsFS) ReadFile(p string) (string, error) {
	data, err := fs.service.DownloadWithURL(fs.ctx, p)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %v", p)
	}
	return string(data), nil
}

func (*afsFS) IsAbs(p string) bool {
	return !url.IsRelative(p)
}

func (*afsFS) Dir(p string) string {
	prefix, rest := splitURL(p)
	return prefix + path.Dir(rest)
}

func (*afsFS) Base(p string) string {
	_, rest := splitURL(p)
	return path.Base(rest)
}

func (*afsFS) Join(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}
	prefix, rest := splitURL(parts[0])
	return prefix + path.Clean(path.Join(append([]string{rest}, parts[1:]...)...))
}

func (fs *afsFS) Cwd() string {
	return fs.cwd
}

func (*afsFS) Rel(base string, target string) (string, bool) {
	basePrefix, baseRest := splitURL(base)
	targetPrefix, targetRest := splitURL(target)
	if basePrefix != targetPrefix {
		return "", false
	}
	return relPath(path.Clean(baseRest), path.Clean(targetRest))
}
