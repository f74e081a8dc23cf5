package resolver

import (
	"fmt"
	"strings"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/logger"
)

type ResolveResult struct {
	Path logger.Path

	// External modules are never loaded. Their path is the specifier exactly
	// as written and imports of them are kept in the output.
	IsExternal bool
}

// Extensions tried after the exact path, in this order
var extensionOrder = []string{".js", ".mjs"}

// The file loaded for an import of a directory
const indexFile = "index.js"

type Resolver struct {
	fs      fs.FS
	options *config.Options
}

func NewResolver(fs fs.FS, options *config.Options) *Resolver {
	return &Resolver{
		fs:      fs,
		options: options,
	}
}

// Returns nil if the specifier could not be resolved. This is safe to call
// from multiple goroutines.
func (r *Resolver) Resolve(sourceDir string, importPath string, kind ast.ImportKind) *ResolveResult {
	if r.options.ExternalModules.IsExternal(importPath) {
		return &ResolveResult{
			Path:       logger.Path{Text: importPath},
			IsExternal: true,
		}
	}

	var absPath string
	switch {
	case r.fs.IsAbs(importPath):
		absPath = importPath

	case !IsPackagePath(importPath) || kind == ast.ImportEntryPoint:
		// Entry points are always relative to the working directory, so "main.js"
		// on the command line means "./main.js"
		absPath = r.fs.Join(sourceDir, importPath)

	default:
		// There is no package lookup. Bare specifiers must be marked external.
		return nil
	}

	if resolved, ok := r.loadAsFileOrDirectory(absPath); ok {
		return &ResolveResult{Path: logger.Path{Text: resolved, Namespace: "file"}}
	}
	return nil
}

func (r *Resolver) loadAsFileOrDirectory(path string) (string, bool) {
	// Is this a file?
	dirPath := r.fs.Dir(path)
	if entries, err := r.fs.ReadDirectory(dirPath); err == nil {
		base := r.fs.Base(path)

		// Try the plain path without any extensions, then with extensions
		if entry := entries.Get(base); entry != nil && entry.Kind() == fs.FileEntry {
			return r.fs.Join(dirPath, base), true
		}
		for _, ext := range extensionOrder {
			if entry := entries.Get(base + ext); entry != nil && entry.Kind() == fs.FileEntry {
				return r.fs.Join(dirPath, base+ext), true
			}
		}
	}

	// Is this a directory?
	if entries, err := r.fs.ReadDirectory(path); err == nil {
		if entry := entries.Get(indexFile); entry != nil && entry.Kind() == fs.FileEntry {
			return r.fs.Join(path, indexFile), true
		}
	}

	return "", false
}

func IsPackagePath(path string) bool {
	return !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") &&
		!strings.HasPrefix(path, "../") && path != "." && path != ".."
}

// These human-readable paths are used in error messages, comments in output
// files, and source names in source maps. They are relative to the working
// directory when possible.
func PrettyPath(fs fs.FS, path logger.Path) string {
	if path.Namespace == "file" {
		if rel, ok := fs.Rel(fs.Cwd(), path.Text); ok && !strings.HasPrefix(rel, "../") && rel != ".." {
			return rel
		}
		return path.Text
	}
	if path.Namespace != "" {
		return fmt.Sprintf("%s:%s", path.Namespace, path.Text)
	}
	return path.Text
}
