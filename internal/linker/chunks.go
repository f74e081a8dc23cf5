package linker

import (
	"sort"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/renamer"
)

type entryExport struct {
	alias string
	ref   js_ast.Ref
}

type chunksByKey struct {
	keys   []string
	chunks []chunkInfo
}

func (a chunksByKey) Len() int               { return len(a.keys) }
func (a chunksByKey) Less(i int, j int) bool { return a.keys[i] < a.keys[j] }

func (a chunksByKey) Swap(i int, j int) {
	a.keys[i], a.keys[j] = a.keys[j], a.keys[i]
	a.chunks[i], a.chunks[j] = a.chunks[j], a.chunks[i]
}

func (c *linkerContext) computeChunks() {
	c.timer.Begin("Compute chunks")
	defer c.timer.End("Compute chunks")

	bitCount := uint(len(c.entryPoints))
	chunks := make([]chunkInfo, 0, len(c.entryPoints))
	entryChunkByKey := make(map[string]uint32)

	// Create chunks for entry points
	for i, entryPoint := range c.entryPoints {
		module := &c.graph.Modules[entryPoint.SourceIndex]
		entryBits := helpers.NewBitSet(bitCount)
		entryBits.SetBit(uint(i))

		kind := graph.OutputEntryPoint
		if module.EntryPointKind == graph.EntryPointDynamicImport {
			kind = graph.OutputDynamicImport
		}

		module.EntryPointChunkIndex = uint32(i)
		entryChunkByKey[entryBits.String()] = uint32(i)
		chunks = append(chunks, chunkInfo{
			entryBits:     entryBits,
			isEntryPoint:  true,
			sourceIndex:   entryPoint.SourceIndex,
			entryPointBit: uint(i),
			kind:          kind,
			relPath:       entryPoint.OutputPath,
		})
	}

	// Figure out which chunk each live module belongs to
	sharedChunks := make(map[string]*chunkInfo)
	for _, sourceIndex := range c.graph.ReachableModules {
		module := &c.graph.Modules[sourceIndex]
		if !module.IsLive {
			continue
		}

		if c.options.SharedModules == config.SharedModulesDuplicate {
			// Copy the module into every chunk that reaches it
			for i := range chunks {
				if module.EntryBits.HasBit(chunks[i].entryPointBit) {
					chunks[i].filesInChunkInOrder = append(chunks[i].filesInChunkInOrder, sourceIndex)
				}
			}
			continue
		}

		key := module.EntryBits.String()
		if chunkIndex, ok := entryChunkByKey[key]; ok {
			chunks[chunkIndex].filesInChunkInOrder = append(chunks[chunkIndex].filesInChunkInOrder, sourceIndex)
			continue
		}
		shared, ok := sharedChunks[key]
		if !ok {
			shared = &chunkInfo{
				entryBits: module.EntryBits,
				kind:      graph.OutputShared,
			}
			sharedChunks[key] = shared
		}
		shared.filesInChunkInOrder = append(shared.filesInChunkInOrder, sourceIndex)
	}

	// Shared chunks come after entry point chunks in a stable order
	sorted := chunksByKey{}
	for key, shared := range sharedChunks {
		sorted.keys = append(sorted.keys, key)
		sorted.chunks = append(sorted.chunks, *shared)
	}
	sort.Sort(sorted)
	chunks = append(chunks, sorted.chunks...)

	for i := range chunks {
		chunk := &chunks[i]
		sort.Slice(chunk.filesInChunkInOrder, func(a int, b int) bool {
			return c.graph.Modules[chunk.filesInChunkInOrder[a]].ExecOrder < c.graph.Modules[chunk.filesInChunkInOrder[b]].ExecOrder
		})

		// Shared chunks are named after a hash of what they contain
		if chunk.kind == graph.OutputShared {
			paths := make([]string, len(chunk.filesInChunkInOrder))
			for j, sourceIndex := range chunk.filesInChunkInOrder {
				paths[j] = c.graph.Modules[sourceIndex].Module.Source.PrettyPath
			}
			chunk.relPath = "chunk-" + helpers.HashStringsToHex(paths) + ".js"
		}
	}

	c.chunks = chunks
}

// Returns the exports of an entry point chunk in alias order. Each export is
// the symbol that the alias ultimately refers to.
func (c *linkerContext) entryExports(chunk *chunkInfo) []entryExport {
	if !chunk.isEntryPoint {
		return nil
	}
	module := &c.graph.Modules[chunk.sourceIndex]
	exports := make([]entryExport, 0, len(module.SortedAndFilteredExportAliases))
	for _, alias := range module.SortedAndFilteredExportAliases {
		export := c.terminalExport(module.ResolvedExports[alias])
		ref := js_ast.FollowSymbols(c.graph.Symbols, export.Ref)
		if c.graph.Symbols.Get(ref).ImportItemIsMissing {
			continue
		}
		exports = append(exports, entryExport{alias: alias, ref: ref})
	}
	return exports
}

// Chunks that share modules import each other. Every top-level symbol that a
// chunk uses but another chunk declares is exported by the declaring chunk
// and imported by name. A chunk also imports every chunk whose modules its
// own modules import, even when it uses no names from them, so that those
// modules are evaluated first.
func (c *linkerContext) computeCrossChunkDependencies() {
	if len(c.chunks) < 2 || c.options.SharedModules == config.SharedModulesDuplicate {
		return
	}

	c.timer.Begin("Compute cross-chunk dependencies")
	defer c.timer.End("Compute cross-chunk dependencies")

	// Every live module is in exactly one chunk
	chunkForModule := make(map[uint32]uint32)
	chunkForSymbol := make(map[js_ast.Ref]uint32)
	for chunkIndex, chunk := range c.chunks {
		for _, sourceIndex := range chunk.filesInChunkInOrder {
			chunkForModule[sourceIndex] = uint32(chunkIndex)
			for _, part := range c.graph.Modules[sourceIndex].Module.AST.Parts {
				if !part.IsLive {
					continue
				}
				for _, declared := range part.DeclaredSymbols {
					if declared.IsTopLevel && js_ast.FollowSymbols(c.graph.Symbols, declared.Ref) == declared.Ref {
						chunkForSymbol[declared.Ref] = uint32(chunkIndex)
					}
				}
			}
		}
	}

	importsFromChunk := make([]map[uint32]map[js_ast.Ref]bool, len(c.chunks))
	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]
		imports := make(map[uint32]map[js_ast.Ref]bool)
		importsFromChunk[chunkIndex] = imports

		addImport := func(ref js_ast.Ref) {
			ref = js_ast.FollowSymbols(c.graph.Symbols, ref)
			if otherChunkIndex, ok := chunkForSymbol[ref]; ok && otherChunkIndex != uint32(chunkIndex) {
				if imports[otherChunkIndex] == nil {
					imports[otherChunkIndex] = make(map[js_ast.Ref]bool)
				}
				imports[otherChunkIndex][ref] = true
			}
		}
		addDependency := func(otherChunkIndex uint32) {
			if otherChunkIndex != uint32(chunkIndex) && imports[otherChunkIndex] == nil {
				imports[otherChunkIndex] = make(map[js_ast.Ref]bool)
			}
		}

		for _, sourceIndex := range chunk.filesInChunkInOrder {
			tree := &c.graph.Modules[sourceIndex].Module.AST
			for _, part := range tree.Parts {
				if !part.IsLive {
					continue
				}
				for ref := range part.SymbolUses {
					addImport(ref)
				}
			}
			for _, record := range tree.ImportRecords {
				if record.Kind == ast.ImportStmt && record.SourceIndex.IsValid() {
					if otherChunkIndex, ok := chunkForModule[record.SourceIndex.GetIndex()]; ok {
						addDependency(otherChunkIndex)
					}
				}
			}
		}

		// The entry module may have been hoisted into a shared chunk, in which
		// case this chunk re-exports what it needs from there
		if chunk.isEntryPoint {
			if otherChunkIndex, ok := chunkForModule[chunk.sourceIndex]; ok {
				addDependency(otherChunkIndex)
			}
			for _, export := range c.entryExports(chunk) {
				addImport(export.ref)
			}
		}
	}

	// Assign the names that chunks export symbols to each other under. An
	// entry point chunk exports a symbol under its own export alias if it has
	// one, and the alias is never given to another symbol.
	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]
		names := renamer.ExportRenamer{}
		aliasForRef := make(map[js_ast.Ref]string)
		for _, export := range c.entryExports(chunk) {
			names.Reserve(export.alias)
			if _, ok := aliasForRef[export.ref]; !ok {
				aliasForRef[export.ref] = export.alias
			}
		}

		var refs []js_ast.Ref
		for otherChunkIndex := range c.chunks {
			for ref := range importsFromChunk[otherChunkIndex][uint32(chunkIndex)] {
				if _, ok := chunk.exportsToOtherChunks[ref]; !ok {
					if chunk.exportsToOtherChunks == nil {
						chunk.exportsToOtherChunks = make(map[js_ast.Ref]string)
					}
					chunk.exportsToOtherChunks[ref] = ""
					refs = append(refs, ref)
				}
			}
		}
		sort.Sort(refsByStableOrder(refs))

		for _, ref := range refs {
			alias, ok := aliasForRef[ref]
			if !ok {
				alias = names.NextRenamedName(c.graph.Symbols.Get(ref).OriginalName)
			}
			chunk.exportsToOtherChunks[ref] = alias
		}
	}

	// Now that every exported symbol has a name, list the imports of each chunk
	for chunkIndex := range c.chunks {
		chunk := &c.chunks[chunkIndex]
		otherChunkIndices := make([]uint32, 0, len(importsFromChunk[chunkIndex]))
		for otherChunkIndex := range importsFromChunk[chunkIndex] {
			otherChunkIndices = append(otherChunkIndices, otherChunkIndex)
		}
		sort.Slice(otherChunkIndices, func(i int, j int) bool { return otherChunkIndices[i] < otherChunkIndices[j] })

		for _, otherChunkIndex := range otherChunkIndices {
			otherChunk := &c.chunks[otherChunkIndex]
			items := make([]crossChunkImportItem, 0, len(importsFromChunk[chunkIndex][otherChunkIndex]))
			for ref := range importsFromChunk[chunkIndex][otherChunkIndex] {
				items = append(items, crossChunkImportItem{ref: ref, alias: otherChunk.exportsToOtherChunks[ref]})
			}
			sort.Slice(items, func(i int, j int) bool { return items[i].alias < items[j].alias })
			chunk.crossChunkImports = append(chunk.crossChunkImports, crossChunkImport{
				chunkIndex: otherChunkIndex,
				items:      items,
			})
		}
	}
}
