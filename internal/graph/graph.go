package graph

// The linker mutates symbols, parts, and import records while it works. The
// scan phase output must stay untouched so that a watch-mode rebuild or a
// second link of the same modules sees exactly what the parser produced, so
// the linker works on the copies made here.

import (
	"sort"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
)

type EntryPointKind uint8

const (
	EntryPointNone EntryPointKind = iota
	EntryPointUserSpecified
	EntryPointDynamicImport
)

type LinkerModule struct {
	Module Module

	// This holds all entry points that can reach this module. It will be used
	// to assign the module to a chunk.
	EntryBits helpers.BitSet

	// The minimum number of links in the module graph to get from an entry
	// point to this module
	DistanceFromEntryPoint uint32

	// If "EntryPointKind" is not "EntryPointNone", this is the index of the
	// corresponding entry point chunk.
	EntryPointChunkIndex uint32

	// This module is an entry point if and only if this is not
	// "EntryPointNone". Note that dynamically-imported modules are allowed to
	// also be specified by the user as top-level entry points, so some
	// dynamically-imported modules may be "EntryPointUserSpecified" instead of
	// "EntryPointDynamicImport".
	EntryPointKind EntryPointKind

	// The position of this module in evaluation order. Dependencies come
	// before the modules that import them.
	ExecOrder uint32

	// This is true if this module has been marked as live by the tree shaking
	// algorithm.
	IsLive bool

	// True if this module or anything it statically imports has a statement
	// that must run for its side effects
	HasSideEffects bool

	// True if something reads the namespace object of this module, in which
	// case the linker generates it into part 0
	NeedsNamespaceObject bool

	// This includes both named exports and re-exports. Named exports come
	// from explicit export statements in the original module. Re-exports come
	// from other modules and are the result of resolving export star
	// statements.
	ResolvedExports map[string]ExportSpecifier

	// This is the alias of every non-ambiguous export in sorted order
	SortedAndFilteredExportAliases []string

	// Imports are matched with exports in a separate pass from when the
	// matched exports are actually bound to the imports. Here "binding" means
	// adding non-local dependencies on the parts in the exporting module that
	// declare the exported symbol to all parts in the importing module that
	// use the imported symbol.
	ImportsToBind map[js_ast.Ref]ImportSpecifier
}

func (m *LinkerModule) IsEntryPoint() bool {
	return m.EntryPointKind != EntryPointNone
}

type LinkerGraph struct {
	Modules []LinkerModule
	Symbols js_ast.SymbolMap

	// Only modules reachable from the entry points take part in linking. This
	// array holds them in the order the scan discovered them, which is
	// deterministic. Iterate over this array instead of over "Modules".
	ReachableModules []uint32

	// This maps from source index to the position of that module in
	// "ReachableModules". It's a deterministic key for sorting anything that
	// contains a source index, such as "js_ast.Ref" symbol references.
	StableSourceIndices []uint32
}

func MakeLinkerGraph(modules []Module, reachableModules []uint32) LinkerGraph {
	symbols := js_ast.NewSymbolMap(len(modules))
	linkerModules := make([]LinkerModule, len(modules))

	// Clone various things since we may mutate them later
	for _, sourceIndex := range reachableModules {
		module := LinkerModule{
			Module: modules[sourceIndex],
		}
		tree := &module.Module.AST

		// Clone the symbol map
		symbols.SymbolsForSource[sourceIndex] = append([]js_ast.Symbol{}, tree.Symbols...)
		tree.Symbols = nil

		// Clone the parts
		tree.Parts = append([]js_ast.Part{}, tree.Parts...)
		for i := range tree.Parts {
			part := &tree.Parts[i]
			clone := make(map[js_ast.Ref]js_ast.SymbolUse, len(part.SymbolUses))
			for ref, uses := range part.SymbolUses {
				clone[ref] = uses
			}
			part.SymbolUses = clone
			part.Dependencies = append([]js_ast.Dependency{}, part.Dependencies...)
		}

		// Clone the import records
		tree.ImportRecords = append([]ast.ImportRecord{}, tree.ImportRecords...)

		// Clone the import map
		namedImports := make(map[js_ast.Ref]js_ast.NamedImport, len(tree.NamedImports))
		for k, v := range tree.NamedImports {
			namedImports[k] = v
		}
		tree.NamedImports = namedImports

		// Clone the export map
		resolvedExports := make(map[string]ExportSpecifier, len(tree.NamedExports))
		for alias, name := range tree.NamedExports {
			resolvedExports[alias] = ExportSpecifier{
				Ref:         name.Ref,
				SourceIndex: sourceIndex,
				NameLoc:     name.AliasLoc,
			}
		}

		// Clone the top-level symbol-to-parts map
		topLevelSymbolToParts := make(map[js_ast.Ref][]uint32, len(tree.TopLevelSymbolToParts))
		for ref, parts := range tree.TopLevelSymbolToParts {
			topLevelSymbolToParts[ref] = parts
		}
		tree.TopLevelSymbolToParts = topLevelSymbolToParts

		// Clone the top-level scope so we can generate more variables
		{
			new := &js_ast.Scope{}
			*new = *tree.ModuleScope
			new.Generated = append([]js_ast.Ref{}, new.Generated...)
			tree.ModuleScope = new
		}

		module.ResolvedExports = resolvedExports
		module.ImportsToBind = make(map[js_ast.Ref]ImportSpecifier)

		// All modules start off as far as possible from an entry point
		module.DistanceFromEntryPoint = ^uint32(0)

		linkerModules[sourceIndex] = module
	}

	// Create a way to convert source indices to a stable ordering
	stableSourceIndices := make([]uint32, len(modules))
	for stableIndex, sourceIndex := range reachableModules {
		stableSourceIndices[sourceIndex] = uint32(stableIndex)
	}

	return LinkerGraph{
		Symbols:             symbols,
		Modules:             linkerModules,
		ReachableModules:    reachableModules,
		StableSourceIndices: stableSourceIndices,
	}
}

func (g *LinkerGraph) TopLevelSymbolToParts(sourceIndex uint32, ref js_ast.Ref) []uint32 {
	return g.Modules[sourceIndex].Module.AST.TopLevelSymbolToParts[ref]
}

// Adds a symbol to the top-level scope of a module. The renamer only sees
// symbols through scopes, so generated symbols must be registered there too.
func (g *LinkerGraph) GenerateNewSymbol(sourceIndex uint32, kind js_ast.SymbolKind, originalName string) js_ast.Ref {
	sourceSymbols := &g.Symbols.SymbolsForSource[sourceIndex]

	ref := js_ast.Ref{
		SourceIndex: sourceIndex,
		InnerIndex:  uint32(len(*sourceSymbols)),
	}

	*sourceSymbols = append(*sourceSymbols, js_ast.Symbol{
		Kind:         kind,
		OriginalName: originalName,
		Link:         js_ast.InvalidRef,
	})

	moduleScope := g.Modules[sourceIndex].Module.AST.ModuleScope
	moduleScope.Generated = append(moduleScope.Generated, ref)
	return ref
}

// Returns the top-level bindings of a module in declaration order. Each
// symbol appears once even if it was declared by more than one statement,
// in which case the first declaring statement is reported.
func (g *LinkerGraph) Bindings(sourceIndex uint32) []Binding {
	tree := &g.Modules[sourceIndex].Module.AST
	seen := make(map[js_ast.Ref]bool)
	var bindings []Binding

	for partIndex, part := range tree.Parts {
		for _, declared := range part.DeclaredSymbols {
			if !declared.IsTopLevel || seen[declared.Ref] || declared.Ref == tree.ExportsRef {
				continue
			}
			seen[declared.Ref] = true

			// Property accesses on a namespace import aren't declarations
			symbol := g.Symbols.Get(declared.Ref)
			if symbol.NamespaceAlias != nil {
				continue
			}

			kind := BindingVariable
			switch symbol.Kind {
			case js_ast.SymbolHoistedFunction:
				kind = BindingFunction
			case js_ast.SymbolClass:
				kind = BindingClass
			case js_ast.SymbolImport:
				kind = BindingImport
				if tree.NamedImports[declared.Ref].IsExported {
					kind = BindingReExport
				}
			}

			bindings = append(bindings, Binding{
				Ref:         declared.Ref,
				Name:        symbol.OriginalName,
				SourceIndex: sourceIndex,
				PartIndex:   uint32(partIndex),
				Kind:        kind,
				IsRetained:  part.IsLive,
			})
		}
	}

	return bindings
}

// Returns the resolved export aliases in sorted order, including ambiguous
// ones. The linker filters these into "SortedAndFilteredExportAliases".
func (m *LinkerModule) SortedExportAliases() []string {
	aliases := make([]string, 0, len(m.ResolvedExports))
	for alias := range m.ResolvedExports {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}
