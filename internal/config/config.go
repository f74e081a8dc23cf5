package config

import (
	"fmt"
	"strings"
)

type SharedModulePolicy uint8

const (
	// A module that is reachable from more than one chunk root is moved into a
	// shared chunk that all of those roots import. This is the default since
	// it avoids duplicating code at the cost of one extra chunk to load.
	SharedModulesHoist SharedModulePolicy = iota

	// A module that is reachable from more than one chunk root is copied into
	// each of those chunks. No shared chunks are created. Each copy has its
	// own top-level state, so a chunk loaded with "import()" doesn't see
	// assignments made by the copy in the chunk that loaded it.
	SharedModulesDuplicate
)

func (policy SharedModulePolicy) String() string {
	switch policy {
	case SharedModulesHoist:
		return "hoist"
	case SharedModulesDuplicate:
		return "duplicate"
	default:
		panic("Internal error")
	}
}

func ParseSharedModulePolicy(text string) (SharedModulePolicy, error) {
	switch strings.ToLower(text) {
	case "", "hoist":
		return SharedModulesHoist, nil
	case "duplicate":
		return SharedModulesDuplicate, nil
	}
	return SharedModulesHoist, fmt.Errorf("Invalid shared module policy %q (valid: hoist, duplicate)", text)
}

// The external module set. A specifier is external if it is in the set or if
// it starts with "<name>/" for a name in the set, so "react" also covers
// "react/jsx-runtime".
type ExternalModules struct {
	names map[string]bool
}

func MakeExternalModules(names []string) ExternalModules {
	externals := ExternalModules{names: make(map[string]bool, len(names))}
	for _, name := range names {
		externals.names[name] = true
	}
	return externals
}

func (externals ExternalModules) IsExternal(specifier string) bool {
	if externals.names[specifier] {
		return true
	}
	for i := 0; i < len(specifier); i++ {
		if specifier[i] == '/' && externals.names[specifier[:i]] {
			return true
		}
	}
	return false
}

type Options struct {
	// Module ids of the entry points, in the order the user gave them
	EntryPoints []string

	// If false, every statement of every module in the graph is kept
	TreeShaking bool

	// If true, dynamic imports become chunk boundaries. Otherwise each entry
	// point produces one chunk and dynamically-imported modules are inlined.
	CodeSplitting bool

	SharedModules SharedModulePolicy
	SourceMap     bool

	ExternalModules ExternalModules

	// Chunk paths are relative to this directory, and so are the relative
	// paths that chunks use to import each other
	AbsOutputDir string

	// The size of the parse and print worker pools
	Concurrency int

	// If true, the duration of each phase is logged as an info message
	LogTiming bool

	// If true, each output file carries a JSON description of its contents
	// that is joined into the build's metafile
	NeedsMetafile bool
}
