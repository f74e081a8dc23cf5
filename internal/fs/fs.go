package fs

// Module ids are "/"-separated paths, or URLs for storage that is accessed
// through afs. The engine never touches storage directly. Everything goes
// through this interface so that tests can run against an in-memory map.

import (
	"sort"
	"strings"
)

type EntryKind uint8

const (
	DirEntry  EntryKind = 1
	FileEntry EntryKind = 2
)

type Entry struct {
	base string
	kind EntryKind
}

func (e *Entry) Kind() EntryKind {
	return e.kind
}

func (e *Entry) Base() string {
	return e.base
}

type DirEntries struct {
	dir  string
	data map[string]*Entry
}

func MakeEmptyDirEntries(dir string) DirEntries {
	return DirEntries{dir: dir, data: make(map[string]*Entry)}
}

func (entries DirEntries) Dir() string {
	return entries.dir
}

func (entries DirEntries) Get(base string) *Entry {
	if entries.data != nil {
		return entries.data[base]
	}
	return nil
}

func (entries DirEntries) Len() int {
	return len(entries.data)
}

func (entries DirEntries) SortedKeys() (keys []string) {
	if entries.data != nil {
		keys = make([]string, 0, len(entries.data))
		for k := range entries.data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	return
}

func (entries DirEntries) add(base string, kind EntryKind) {
	entries.data[base] = &Entry{base: base, kind: kind}
}

type FS interface {
	ReadDirectory(path string) (DirEntries, error)
	ReadFile(path string) (contents string, err error)

	// These are part of the interface because the mock used for tests and the
	// URL-based storage have different path syntax
	IsAbs(path string) bool
	Dir(path string) string
	Base(path string) string
	Join(parts ...string) string
	Cwd() string
	Rel(base string, target string) (string, bool)
}

func splitOnSlash(path string) (string, string) {
	if slash := strings.IndexByte(path, '/'); slash != -1 {
		return path[:slash], path[slash+1:]
	}
	return path, ""
}

// Computes a "/"-separated relative path from "base" to "target". Both must
// be cleaned paths of the same kind.
func relPath(base string, target string) (string, bool) {
	// Base cases
	if base == "" || base == "/" || base == "." {
		return strings.TrimPrefix(target, "/"), true
	}
	if base == target {
		return ".", true
	}

	// Find the common parent directory
	for {
		bHead, bTail := splitOnSlash(base)
		tHead, tTail := splitOnSlash(target)
		if bHead != tHead || (base == "" && target == "") {
			break
		}
		base = bTail
		target = tTail
	}

	// Stop now if base is a subpath of target
	if base == "" {
		return target, true
	}

	// Traverse up to the common parent
	commonParent := strings.Repeat("../", strings.Count(base, "/")+1)

	// Stop now if target is a subpath of base
	if target == "" {
		return commonParent[:len(commonParent)-1], true
	}

	// Otherwise, down to the parent
	return commonParent + target, true
}
