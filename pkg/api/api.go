// This package is the public entry point of the bundler. A build reads its
// modules through the file system, resolver, and parser in BuildOptions and
// returns every output chunk in memory. Nothing is written to disk here.
package api

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/bundler"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/pkg/errors"
)

type SharedModules uint8

const (
	// Modules reachable from more than one chunk are moved into a shared chunk
	SharedModulesHoist SharedModules = iota

	// Modules reachable from more than one chunk are copied into each of them
	SharedModulesDuplicate
)

type StderrColor uint8

const (
	ColorIfTerminal StderrColor = iota
	ColorNever
	ColorAlways
)

type LogLevel uint8

const (
	LogLevelSilent LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

type ChunkKind uint8

const (
	ChunkEntryPoint ChunkKind = iota
	ChunkDynamicImport
	ChunkShared
)

func (kind ChunkKind) String() string {
	switch kind {
	case ChunkEntryPoint:
		return "entry"
	case ChunkDynamicImport:
		return "dynamic"
	case ChunkShared:
		return "shared"
	}
	return ""
}

type Location struct {
	File     string
	Line     int // 1-based
	Column   int // 0-based, in bytes
	Length   int // in bytes
	LineText string
}

type Note struct {
	Text     string
	Location *Location
}

type Message struct {
	// The kind of problem, such as "UnresolvedModule" or "MissingExport".
	// This is empty for messages that don't have a kind.
	ID string

	Text     string
	Location *Location
	Notes    []Note
}

////////////////////////////////////////////////////////////////////////////////
// Build API

type BuildOptions struct {
	Color    StderrColor
	LogLevel LogLevel

	EntryPoints   []string
	Sourcemap     bool
	TreeShaking   bool
	Splitting     bool
	SharedModules SharedModules
	External      []string
	Outdir        string
	Metafile      bool
	Concurrency   int
	LogTiming     bool

	// Relative entry points and "Outdir" are relative to this directory. It
	// defaults to the current working directory.
	AbsWorkingDir string

	// These replace the default collaborators of the engine when set. The
	// default file system reads through afs, so module ids may be URLs.
	Resolver bundler.Resolver
	Parser   bundler.ASTProvider
	FS       fs.FS
}

// Returns the options that a build with no configuration uses
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		TreeShaking: true,
	}
}

type OutputChunk struct {
	// Relative to "Outdir"
	Path string

	// Only set when "Outdir" is set
	AbsPath string

	Contents  []byte
	SourceMap []byte
	Kind      ChunkKind

	// The pretty path of the entry module, or empty for a shared chunk
	EntryPoint string
}

type BuildResult struct {
	Errors   []Message
	Warnings []Message

	OutputChunks []OutputChunk

	// Only set when "Metafile" is set and the build succeeded
	Metafile string

	// The ids of every module that the scan loaded, whether or not the build
	// succeeded. Watch mode uses these to know what to watch.
	Inputs []string
}

func Build(options BuildOptions) BuildResult {
	return buildImpl(options)
}

// Returns nil if the build succeeded. Otherwise the returned error describes
// the first error message, prefixed with its kind and location.
func (result *BuildResult) Err() error {
	if len(result.Errors) == 0 {
		return nil
	}
	msg := result.Errors[0]
	err := errors.New(msg.Text)
	if msg.Location != nil {
		err = errors.Wrapf(err, "%s:%d:%d", msg.Location.File, msg.Location.Line, msg.Location.Column)
	}
	if msg.ID != "" {
		err = errors.Wrap(err, msg.ID)
	}
	if count := len(result.Errors); count > 1 {
		err = errors.Wrap(err, fmt.Sprintf("build failed with %d errors", count))
	}
	return err
}
