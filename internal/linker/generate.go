package linker

import (
	"sort"
	"sync"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_printer"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/renamer"
	"github.com/esmlink/esmlink/internal/sourcemap"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type compileResult struct {
	js_printer.PrintResult

	sourceIndex uint32
}

func (c *linkerContext) generateChunksInParallel() []graph.OutputFile {
	c.timer.Begin("Generate chunks")
	defer c.timer.End("Generate chunks")

	outputFiles := make([]graph.OutputFile, len(c.chunks))
	group := errgroup.Group{}
	group.SetLimit(c.concurrency())

	for chunkIndex := range c.chunks {
		chunkIndex := chunkIndex
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("panic: %v (while generating %q)\n%s",
						r, c.chunks[chunkIndex].relPath, helpers.PrettyPrintedStack())
				}
			}()
			outputFiles[chunkIndex] = c.generateChunk(chunkIndex)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		c.log.AddError(nil, logger.Range{}, logger.MsgID_None, err.Error())
		return []graph.OutputFile{}
	}

	// A module that failed to print was logged as an error
	if c.log.HasErrors() {
		return []graph.OutputFile{}
	}
	return outputFiles
}

func (c *linkerContext) generateChunk(chunkIndex int) graph.OutputFile {
	chunk := &c.chunks[chunkIndex]
	r := c.renameSymbolsInChunk(chunk)

	// Print each module in the chunk in parallel
	compileResults := make([]compileResult, len(chunk.filesInChunkInOrder))
	waitGroup := sync.WaitGroup{}
	waitGroup.Add(len(compileResults))
	for i, sourceIndex := range chunk.filesInChunkInOrder {
		go c.generateCodeForModuleInChunk(r, &waitGroup, chunk, sourceIndex, &compileResults[i])
	}

	crossChunkPrefix := c.generateCrossChunkImports(chunk, r)
	crossChunkSuffix := c.generateChunkExports(chunk, r)
	waitGroup.Wait()

	j := helpers.Joiner{}
	prevOffset := sourcemap.LineColumnOffset{}

	// Start with the hashbang if there is one. It only works if it's literally
	// the first character.
	if chunk.isEntryPoint {
		if hashbang := c.graph.Modules[chunk.sourceIndex].Module.AST.Hashbang; hashbang != "" {
			hashbangText := hashbang + "\n"
			prevOffset.AdvanceString(hashbangText)
			j.AddString(hashbangText)
		}
	}

	if len(crossChunkPrefix) > 0 {
		prevOffset.AdvanceBytes(crossChunkPrefix)
		j.AddBytes(crossChunkPrefix)
	}

	// Concatenate the generated JavaScript chunks together
	var compileResultsForSourceMap []compileResultForSourceMap
	newlineBeforeComment := j.Length() > 0
	for _, result := range compileResults {
		if len(result.JS) == 0 {
			continue
		}

		// Put a blank line before the next module's path comment
		if newlineBeforeComment {
			prevOffset.AdvanceString("\n")
			j.AddString("\n")
		}
		newlineBeforeComment = true

		text := "// " + c.graph.Modules[result.sourceIndex].Module.Source.PrettyPath + "\n"
		prevOffset.AdvanceString(text)
		j.AddString(text)

		// Save the offset to the start of the stored JavaScript
		if c.options.SourceMap && !result.SourceMapChunk.ShouldIgnore {
			compileResultsForSourceMap = append(compileResultsForSourceMap, compileResultForSourceMap{
				sourceMapChunk:  result.SourceMapChunk,
				generatedOffset: prevOffset,
				sourceIndex:     result.sourceIndex,
			})
			prevOffset = sourcemap.LineColumnOffset{}
		} else {
			prevOffset.AdvanceBytes(result.JS)
		}
		j.AddBytes(result.JS)
	}

	if len(crossChunkSuffix) > 0 {
		if newlineBeforeComment {
			j.AddString("\n")
		}
		j.AddBytes(crossChunkSuffix)
	}

	if j.Length() > 0 {
		j.EnsureNewlineAtEnd()
	}

	code := j.Done()
	outputFile := graph.OutputFile{
		Path:     chunk.relPath,
		Kind:     chunk.kind,
		Contents: code,
	}
	if c.options.AbsOutputDir != "" {
		outputFile.AbsPath = c.fs.Join(c.options.AbsOutputDir, chunk.relPath)
	}
	if chunk.isEntryPoint {
		outputFile.EntryPoint = c.graph.Modules[chunk.sourceIndex].Module.Source.PrettyPath
	}

	if c.options.SourceMap {
		_, base, ext := helpers.PlatformIndependentPathDirBaseExt(chunk.relPath)
		sources, mappings := c.generateSourceMapForChunk(compileResultsForSourceMap)
		outputFile.SourceMap = sourcemap.Generate(base+ext, sources, mappings, sourcemap.DebugID(code, mappings))
		outputFile.Contents = append(outputFile.Contents, sourcemap.URLComment(base+ext+".map")...)
	}

	if c.options.NeedsMetafile {
		outputFile.JSONMetadataChunk = c.generateMetadataForChunk(chunk, compileResults, len(outputFile.Contents))
	}

	return outputFile
}

// Every module in a chunk shares one renaming table. Names that the chunk
// imports from other chunks are assigned first, then the top-level symbols
// of each module in evaluation order, then the symbols in nested scopes.
func (c *linkerContext) renameSymbolsInChunk(chunk *chunkInfo) renamer.Renamer {
	moduleScopes := make([]*js_ast.Scope, len(chunk.filesInChunkInOrder))
	for i, sourceIndex := range chunk.filesInChunkInOrder {
		moduleScopes[i] = c.graph.Modules[sourceIndex].Module.AST.ModuleScope
	}

	r := renamer.NewNumberRenamer(c.graph.Symbols, renamer.ComputeReservedNames(moduleScopes, c.graph.Symbols))

	for _, crossChunkImport := range chunk.crossChunkImports {
		for _, item := range crossChunkImport.items {
			r.AddTopLevelSymbol(item.ref)
		}
	}

	nestedScopes := make(map[uint32][]*js_ast.Scope)
	for _, sourceIndex := range chunk.filesInChunkInOrder {
		tree := &c.graph.Modules[sourceIndex].Module.AST
		for _, part := range tree.Parts {
			if !part.IsLive {
				continue
			}
			for _, declared := range part.DeclaredSymbols {
				if declared.IsTopLevel {
					r.AddTopLevelSymbol(declared.Ref)
				}
			}
		}
		nestedScopes[sourceIndex] = tree.ModuleScope.Children
	}

	r.AssignNamesByScope(nestedScopes)
	return r
}

func (c *linkerContext) generateCodeForModuleInChunk(
	r renamer.Renamer,
	waitGroup *sync.WaitGroup,
	chunk *chunkInfo,
	sourceIndex uint32,
	result *compileResult,
) {
	defer c.recoverInternalError(waitGroup, sourceIndex)

	module := &c.graph.Modules[sourceIndex]
	tree := module.Module.AST
	chunkDir, _, _ := helpers.PlatformIndependentPathDirBaseExt(chunk.relPath)

	// Dynamic imports either load the chunk of their target or, without code
	// splitting, evaluate to the namespace object of a module in this chunk
	var inlinedDynamicImports map[uint32]js_ast.Ref
	tree.ImportRecords = append([]ast.ImportRecord{}, tree.ImportRecords...)
	for i := range tree.ImportRecords {
		record := &tree.ImportRecords[i]
		if record.Kind != ast.ImportDynamic || !record.SourceIndex.IsValid() {
			continue
		}
		other := &c.graph.Modules[record.SourceIndex.GetIndex()]
		if c.options.CodeSplitting {
			record.Path.Text = helpers.RelativeImportPath(chunkDir, c.chunks[other.EntryPointChunkIndex].relPath)
		} else {
			if inlinedDynamicImports == nil {
				inlinedDynamicImports = make(map[uint32]js_ast.Ref)
			}
			inlinedDynamicImports[uint32(i)] = other.Module.AST.ExportsRef
		}
	}

	parts := make([]js_ast.Part, 0, len(tree.Parts))
	for _, part := range tree.Parts {
		if !part.IsLive {
			continue
		}
		if stmts := c.convertStmtsForChunk(sourceIndex, chunk, &tree, part.Stmts); len(stmts) > 0 {
			parts = append(parts, js_ast.Part{Stmts: stmts})
		}
	}
	tree.Parts = parts

	options := js_printer.Options{InlinedDynamicImports: inlinedDynamicImports}
	if c.options.SourceMap {
		options.AddSourceMappings = true
		options.LineOffsetTables = sourcemap.GenerateLineOffsetTables(module.Module.Source.Contents, tree.ApproximateLineCount)
	}

	*result = compileResult{
		PrintResult: js_printer.Print(tree, c.graph.Symbols, r, options),
		sourceIndex: sourceIndex,
	}
	waitGroup.Done()
}

// Modules in a chunk share one scope, so import and export statements between
// bundled modules are removed and exported declarations become plain ones.
// Only imports of external modules remain. Statements are copied before they
// are changed since a module may be printed into more than one chunk at once.
func (c *linkerContext) convertStmtsForChunk(sourceIndex uint32, chunk *chunkInfo, tree *js_ast.AST, stmts []js_ast.Stmt) []js_ast.Stmt {
	isEntryModule := chunk.isEntryPoint && chunk.sourceIndex == sourceIndex
	isBundled := func(importRecordIndex uint32) bool {
		return tree.ImportRecords[importRecordIndex].SourceIndex.IsValid()
	}
	result := make([]js_ast.Stmt, 0, len(stmts))

	for _, stmt := range stmts {
		switch s := stmt.Data.(type) {
		case *js_ast.SImport:
			if isBundled(s.ImportRecordIndex) {
				continue
			}

		case *js_ast.SExportStar:
			if isBundled(s.ImportRecordIndex) {
				continue
			}
			if s.Alias != nil {
				// "export * as ns from 'path'" becomes "import * as ns from 'path'"
				// and the name is exported along with the other exports
				loc := s.Alias.Loc
				stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &js_ast.SImport{
					NamespaceRef:      s.NamespaceRef,
					StarNameLoc:       &loc,
					ImportRecordIndex: s.ImportRecordIndex,
				}}
			} else if !isEntryModule {
				// The names can't be listed, so this only works in an entry point
				continue
			}

		case *js_ast.SExportFrom:
			if isBundled(s.ImportRecordIndex) {
				continue
			}

			// "export {a as b} from 'path'" becomes "import {a} from 'path'"
			items := make([]js_ast.ClauseItem, len(s.Items))
			for i, item := range s.Items {
				items[i] = js_ast.ClauseItem{
					Alias:    item.OriginalName,
					AliasLoc: item.Name.Loc,
					Name:     item.Name,
				}
			}
			stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &js_ast.SImport{
				NamespaceRef:      s.NamespaceRef,
				Items:             &items,
				ImportRecordIndex: s.ImportRecordIndex,
			}}

		case *js_ast.SExportClause:
			continue

		case *js_ast.SLocal:
			if s.IsExport {
				clone := *s
				clone.IsExport = false
				stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &clone}
			}

		case *js_ast.SFunction:
			if s.IsExport {
				clone := *s
				clone.IsExport = false
				stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &clone}
			}

		case *js_ast.SClass:
			if s.IsExport {
				clone := *s
				clone.IsExport = false
				stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &clone}
			}

		case *js_ast.SExportDefault:
			if s.Value.Stmt != nil {
				// "export default function foo() {}" becomes "function foo() {}"
				stmt = *s.Value.Stmt
				break
			}

			// "export default 123" becomes "var foo_default = 123"
			stmt = js_ast.Stmt{Loc: stmt.Loc, Data: &js_ast.SLocal{
				Kind: js_ast.LocalVar,
				Decls: []js_ast.Decl{{
					Binding:    js_ast.Binding{Loc: s.DefaultName.Loc, Data: &js_ast.BIdentifier{Ref: s.DefaultName.Ref}},
					ValueOrNil: *s.Value.Expr,
				}},
			}}
		}

		result = append(result, stmt)
	}

	return result
}

func (c *linkerContext) generateCrossChunkImports(chunk *chunkInfo, r renamer.Renamer) []byte {
	if len(chunk.crossChunkImports) == 0 {
		return nil
	}

	chunkDir, _, _ := helpers.PlatformIndependentPathDirBaseExt(chunk.relPath)
	tree := js_ast.AST{}
	stmts := make([]js_ast.Stmt, 0, len(chunk.crossChunkImports))

	for _, crossChunkImport := range chunk.crossChunkImports {
		importRecordIndex := uint32(len(tree.ImportRecords))
		tree.ImportRecords = append(tree.ImportRecords, ast.ImportRecord{
			Path: logger.Path{Text: helpers.RelativeImportPath(chunkDir, c.chunks[crossChunkImport.chunkIndex].relPath)},
			Kind: ast.ImportStmt,
		})

		s := &js_ast.SImport{
			NamespaceRef:      js_ast.InvalidRef,
			ImportRecordIndex: importRecordIndex,
		}

		// A chunk that no names are imported from is still imported for its
		// side effects
		if len(crossChunkImport.items) > 0 {
			items := make([]js_ast.ClauseItem, len(crossChunkImport.items))
			for i, item := range crossChunkImport.items {
				items[i] = js_ast.ClauseItem{Alias: item.alias, Name: js_ast.LocRef{Ref: item.ref}}
			}
			s.Items = &items
		}

		stmts = append(stmts, js_ast.Stmt{Data: s})
	}

	tree.Parts = []js_ast.Part{{Stmts: stmts}}
	return js_printer.Print(tree, c.graph.Symbols, r, js_printer.Options{}).JS
}

// An entry point chunk exports the exports of its entry module, and any
// chunk exports the names other chunks import from it. Both are listed in
// one export clause sorted by name.
func (c *linkerContext) generateChunkExports(chunk *chunkInfo, r renamer.Renamer) []byte {
	var items []js_ast.ClauseItem
	seen := make(map[string]bool)

	for _, export := range c.entryExports(chunk) {
		items = append(items, js_ast.ClauseItem{Alias: export.alias, Name: js_ast.LocRef{Ref: export.ref}})
		seen[export.alias] = true
	}
	for ref, alias := range chunk.exportsToOtherChunks {
		if !seen[alias] {
			items = append(items, js_ast.ClauseItem{Alias: alias, Name: js_ast.LocRef{Ref: ref}})
			seen[alias] = true
		}
	}

	if len(items) == 0 {
		return nil
	}
	sort.Slice(items, func(i int, j int) bool { return items[i].Alias < items[j].Alias })

	tree := js_ast.AST{Parts: []js_ast.Part{{Stmts: []js_ast.Stmt{{Data: &js_ast.SExportClause{Items: items}}}}}}
	return js_printer.Print(tree, c.graph.Symbols, r, js_printer.Options{}).JS
}

type compileResultForSourceMap struct {
	sourceMapChunk  sourcemap.Chunk
	generatedOffset sourcemap.LineColumnOffset
	sourceIndex     uint32
}

// Joins the source map chunks of the modules in a chunk. Each module's
// mappings were generated relative to the start of its own output, so the
// first mapping of each is rewritten relative to the end of the previous one.
func (c *linkerContext) generateSourceMapForChunk(results []compileResultForSourceMap) ([]sourcemap.Source, []byte) {
	j := helpers.Joiner{}
	sources := make([]sourcemap.Source, 0, len(results))
	prevEndState := sourcemap.SourceMapState{}
	prevColumnOffset := 0

	for sourcesIndex, result := range results {
		source := &c.graph.Modules[result.sourceIndex].Module.Source
		sources = append(sources, sourcemap.Source{
			PrettyPath: source.PrettyPath,
			Contents:   source.Contents,
		})

		chunk := result.sourceMapChunk
		startState := sourcemap.SourceMapState{
			SourceIndex:     sourcesIndex,
			GeneratedLine:   result.generatedOffset.Lines,
			GeneratedColumn: result.generatedOffset.Columns,
		}
		if result.generatedOffset.Lines == 0 {
			startState.GeneratedColumn += prevColumnOffset
		}

		// Append the precomputed source map chunk
		sourcemap.AppendSourceMapChunk(&j, prevEndState, startState, chunk.Buffer)

		// Generate the relative offset to start from next time
		prevEndState = chunk.EndState
		prevEndState.SourceIndex += sourcesIndex
		prevColumnOffset = chunk.FinalGeneratedColumn

		// If this was all one line, include the column offset from the start
		if prevEndState.GeneratedLine == 0 {
			prevEndState.GeneratedColumn += startState.GeneratedColumn
			prevColumnOffset += startState.GeneratedColumn
		}
	}

	return sources, j.Done()
}
