package bundler

// The bundler is split into two phases: scanning and compiling. The scan
// phase reads every module reachable from the entry points, parses it, and
// resolves its imports. Files are read and parsed in parallel but the graph
// itself is only ever touched by the scan loop, which also hands out source
// indices. The compile phase hands the finished graph to the linker.

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_parser"
	"github.com/esmlink/esmlink/internal/linker"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/renamer"
	"github.com/esmlink/esmlink/internal/resolver"
	"golang.org/x/sync/semaphore"
)

// Maps an import specifier to a module id. A nil result means the specifier
// could not be resolved. This is called from multiple goroutines at once.
type Resolver interface {
	Resolve(sourceDir string, importPath string, kind ast.ImportKind) *resolver.ResolveResult
}

// Turns source text into an AST. The returned AST must have its import
// records, parts, and symbols filled in the way the default parser does it.
// This is called from multiple goroutines at once.
type ASTProvider interface {
	Parse(log logger.Log, source logger.Source) (js_ast.AST, bool)
}

type defaultASTProvider struct{}

func DefaultASTProvider() ASTProvider {
	return defaultASTProvider{}
}

func (defaultASTProvider) Parse(log logger.Log, source logger.Source) (js_ast.AST, bool) {
	return js_parser.Parse(log, source, js_parser.Options{IsBundling: true})
}

type Bundle struct {
	fs          fs.FS
	modules     []graph.Module
	entryPoints []uint32
}

type parseArgs struct {
	fs              fs.FS
	log             logger.Log
	res             Resolver
	parser          ASTProvider
	sem             *semaphore.Weighted
	keyPath         logger.Path
	prettyPath      string
	sourceIndex     uint32
	importSource    *logger.Source
	importPathRange logger.Range
	results         chan parseResult
}

type parseResult struct {
	module graph.Module
	ok     bool

	resolveResults []*resolver.ResolveResult
}

func parseFile(args parseArgs) {
	// The semaphore bounds how many modules are read and parsed at once. It's
	// released before sending so a full pool never blocks the scan loop.
	_ = args.sem.Acquire(context.Background(), 1)
	result := parseAndResolve(args)
	args.sem.Release(1)
	args.results <- result
}

func parseAndResolve(args parseArgs) parseResult {
	source := logger.Source{
		Index:          args.sourceIndex,
		KeyPath:        args.keyPath,
		PrettyPath:     args.prettyPath,
		IdentifierName: js_ast.GenerateNonUniqueNameFromPath(args.keyPath.Text),
	}

	contents, err := args.fs.ReadFile(args.keyPath.Text)
	if err != nil {
		args.log.AddError(args.importSource, args.importPathRange, logger.MsgID_UnresolvedModule,
			fmt.Sprintf("Could not read from file: %s", err.Error()))
		return parseResult{module: graph.Module{Source: source}}
	}
	source.Contents = contents

	tree, ok := args.parser.Parse(args.log, source)
	result := parseResult{
		module: graph.Module{Source: source, AST: tree},
		ok:     ok,
	}

	// Stop now if parsing failed
	if !ok {
		return result
	}

	// Run the resolver on the parse goroutine so it's not run on the scan
	// loop. That way the loop isn't blocked if the resolver takes a while.
	// Clone the import records because they will be mutated later.
	records := append([]ast.ImportRecord{}, tree.ImportRecords...)
	result.module.AST.ImportRecords = records
	result.resolveResults = make([]*resolver.ResolveResult, len(records))

	if len(records) > 0 {
		sourceDir := args.fs.Dir(args.keyPath.Text)
		resolverCache := make(map[ast.ImportKind]map[string]*resolver.ResolveResult)

		for importRecordIndex := range records {
			record := &records[importRecordIndex]

			// Cache the path in case it's imported multiple times in this file
			cache, ok := resolverCache[record.Kind]
			if !ok {
				cache = make(map[string]*resolver.ResolveResult)
				resolverCache[record.Kind] = cache
			}
			if resolveResult, ok := cache[record.Path.Text]; ok {
				result.resolveResults[importRecordIndex] = resolveResult
				continue
			}

			resolveResult := args.res.Resolve(sourceDir, record.Path.Text, record.Kind)
			cache[record.Path.Text] = resolveResult
			result.resolveResults[importRecordIndex] = resolveResult
		}
	}

	return result
}

// Remembers which import first led the scan to a module. Following these
// links from any module leads back to the entry point it was found from.
type discovery struct {
	importerIndex     uint32
	importRecordIndex uint32
	isEntryPoint      bool
}

func ScanBundle(log logger.Log, fs fs.FS, res Resolver, parser ASTProvider, timer *helpers.Timer, options config.Options) Bundle {
	timer.Begin("Scan phase")
	defer timer.End("Scan phase")

	concurrency := options.Concurrency
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}

	var results []parseResult
	var discoveries []discovery
	visited := make(map[logger.Path]uint32)
	resultChannel := make(chan parseResult)
	sem := semaphore.NewWeighted(int64(concurrency))

	maybeParseFile := func(
		path logger.Path,
		importSource *logger.Source,
		importPathRange logger.Range,
		discoveredBy discovery,
	) uint32 {
		sourceIndex, ok := visited[path]
		if !ok {
			sourceIndex = uint32(len(results))
			visited[path] = sourceIndex
			results = append(results, parseResult{})
			discoveries = append(discoveries, discoveredBy)

			go parseFile(parseArgs{
				fs:              fs,
				log:             log,
				res:             res,
				parser:          parser,
				sem:             sem,
				keyPath:         path,
				prettyPath:      resolver.PrettyPath(fs, path),
				sourceIndex:     sourceIndex,
				importSource:    importSource,
				importPathRange: importPathRange,
				results:         resultChannel,
			})
		}
		return sourceIndex
	}

	entryPoints := []uint32{}
	duplicateEntryPoints := make(map[string]bool)

	for _, entryPath := range options.EntryPoints {
		resolveResult := res.Resolve(fs.Cwd(), entryPath, ast.ImportEntryPoint)

		if resolveResult == nil || resolveResult.IsExternal {
			log.AddErrorWithNotes(nil, logger.Range{}, logger.MsgID_UnresolvedModule,
				fmt.Sprintf("Could not resolve %q", entryPath),
				[]logger.MsgData{{Text: fmt.Sprintf("%q is an entry point", entryPath)}})
			continue
		}

		if duplicateEntryPoints[resolveResult.Path.Text] {
			log.AddWarning(nil, logger.Range{}, logger.MsgID_None,
				fmt.Sprintf("Duplicate entry point %q", resolver.PrettyPath(fs, resolveResult.Path)))
			continue
		}
		duplicateEntryPoints[resolveResult.Path.Text] = true

		sourceIndex := maybeParseFile(resolveResult.Path, nil, logger.Range{}, discovery{isEntryPoint: true})
		entryPoints = append(entryPoints, sourceIndex)
	}

	// Results arrive in whatever order parsing finishes, but they are applied
	// to the graph strictly in source index order. Source indices are handed
	// out while applying results, so the numbering is a breadth-first order of
	// the graph that is the same for every build of the same input.
	pending := make(map[uint32]parseResult)
	for next := uint32(0); next < uint32(len(results)); next++ {
		result, ok := pending[next]
		for !ok {
			received := <-resultChannel
			pending[received.module.Source.Index] = received
			result, ok = pending[next]
		}
		delete(pending, next)
		results[next] = result

		if !result.ok {
			continue
		}

		// Discovering a new module grows "results", so nothing may hold a
		// pointer into it across a call to "maybeParseFile"
		source := result.module.Source
		records := result.module.AST.ImportRecords
		var edges []graph.Edge
		for importRecordIndex := range records {
			record := &records[importRecordIndex]
			resolveResult := result.resolveResults[importRecordIndex]

			if resolveResult == nil {
				hint := ""
				if resolver.IsPackagePath(record.Path.Text) {
					hint = " (mark it as external to exclude it from the bundle)"
				}
				log.AddErrorWithNotes(&source, record.Range, logger.MsgID_UnresolvedModule,
					fmt.Sprintf("Could not resolve %q%s", record.Path.Text, hint),
					importerChainNotes(results, discoveries, next))
				continue
			}

			if resolveResult.IsExternal {
				record.Flags |= ast.IsExternal
				continue
			}

			// Handle a path within the bundle
			specifier := record.Path.Text
			sourceIndex := maybeParseFile(resolveResult.Path, &source, record.Range, discovery{
				importerIndex:     next,
				importRecordIndex: uint32(importRecordIndex),
			})
			record.Path = resolveResult.Path
			record.SourceIndex = ast.MakeIndex32(sourceIndex)

			kind := graph.EdgeImport
			if record.Kind == ast.ImportDynamic {
				kind = graph.EdgeDynamicImport
			} else if record.Flags.Has(ast.IsReexport) {
				kind = graph.EdgeReExport
			}
			edges = append(edges, graph.Edge{
				From:              next,
				To:                sourceIndex,
				Specifier:         specifier,
				Kind:              kind,
				ImportRecordIndex: uint32(importRecordIndex),
			})
		}
		results[next].module.Edges = edges
	}

	// Now that all modules have been scanned, record who imports whom
	modules := make([]graph.Module, len(results))
	for i, result := range results {
		modules[i] = result.module
	}
	for i := range modules {
		for _, edge := range modules[i].Edges {
			target := &modules[edge.To]
			if edge.Kind == graph.EdgeDynamicImport {
				target.DynamicImporters = appendImporter(target.DynamicImporters, edge.From)
			} else {
				target.Importers = appendImporter(target.Importers, edge.From)
			}
		}
	}

	return Bundle{
		fs:          fs,
		modules:     modules,
		entryPoints: entryPoints,
	}
}

// Edges are visited importer by importer, so a repeated importer is always
// the last one added
func appendImporter(importers []uint32, importer uint32) []uint32 {
	if n := len(importers); n > 0 && importers[n-1] == importer {
		return importers
	}
	return append(importers, importer)
}

// Returns notes describing how the scan reached a module, starting from the
// entry point and ending with the import of the module itself
func importerChainNotes(results []parseResult, discoveries []discovery, sourceIndex uint32) []logger.MsgData {
	var notes []logger.MsgData

	for {
		d := discoveries[sourceIndex]
		source := &results[sourceIndex].module.Source
		if d.isEntryPoint {
			notes = append(notes, logger.MsgData{Text: fmt.Sprintf("%q is an entry point", source.PrettyPath)})
			break
		}
		importer := &results[d.importerIndex].module
		record := importer.AST.ImportRecords[d.importRecordIndex]
		notes = append(notes, logger.RangeData(&importer.Source, record.Range,
			fmt.Sprintf("%q is imported by %q here:", source.PrettyPath, importer.Source.PrettyPath)))
		sourceIndex = d.importerIndex
	}

	// The chain was collected from the failing module upward
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
	return notes
}

func (b *Bundle) Modules() []graph.Module {
	return b.modules
}

func (b *Bundle) EntryPoints() []uint32 {
	return b.entryPoints
}

func (b *Bundle) Compile(log logger.Log, timer *helpers.Timer, options config.Options) []graph.OutputFile {
	timer.Begin("Compile phase")
	defer timer.End("Compile phase")

	// Entry point chunks are named after their module. Names are assigned here
	// so that separately-linked entry points still get unique names.
	names := renamer.ExportRenamer{}
	entryPoints := make([]graph.EntryPoint, len(b.entryPoints))
	for i, sourceIndex := range b.entryPoints {
		_, base, _ := helpers.PlatformIndependentPathDirBaseExt(b.modules[sourceIndex].Source.KeyPath.Text)
		entryPoints[i] = graph.EntryPoint{
			SourceIndex: sourceIndex,
			OutputPath:  names.NextRenamedName(base) + ".js",
		}
	}

	var resultGroups [][]graph.OutputFile
	if options.CodeSplitting || len(entryPoints) == 1 {
		// If code splitting is enabled, link all entry points together
		resultGroups = [][]graph.OutputFile{
			linker.Link(&options, timer, log, b.fs, b.modules, entryPoints),
		}
	} else {
		// Otherwise, link each entry point separately so that every entry point
		// gets a self-contained chunk. Modules shared between entry points are
		// linked more than once, so identical messages are only reported once.
		log = dedupLog(log)
		waitGroup := sync.WaitGroup{}
		resultGroups = make([][]graph.OutputFile, len(entryPoints))
		for i, entryPoint := range entryPoints {
			waitGroup.Add(1)
			go func(i int, entryPoint graph.EntryPoint) {
				resultGroups[i] = linker.Link(&options, nil, log, b.fs, b.modules, []graph.EntryPoint{entryPoint})
				waitGroup.Done()
			}(i, entryPoint)
		}
		waitGroup.Wait()
	}

	// Join the results in entry point order for determinism
	var outputFiles []graph.OutputFile
	for _, group := range resultGroups {
		outputFiles = append(outputFiles, group...)
	}

	// Make sure an output file never overwrites an input file
	sourceAbsPaths := make(map[string]uint32)
	for i, module := range b.modules {
		if module.Source.KeyPath.Namespace == "file" {
			sourceAbsPaths[module.Source.KeyPath.Text] = uint32(i)
		}
	}
	for _, outputFile := range outputFiles {
		if sourceIndex, ok := sourceAbsPaths[outputFile.AbsPath]; ok {
			log.AddError(nil, logger.Range{}, logger.MsgID_None,
				"Refusing to overwrite input file: "+b.modules[sourceIndex].Source.PrettyPath)
		}
	}

	return outputFiles
}

type msgKey struct {
	kind   logger.MsgKind
	id     logger.MsgID
	text   string
	file   string
	line   int
	column int
}

// Returns a log that drops any message identical to one it already passed on
func dedupLog(log logger.Log) logger.Log {
	var mutex sync.Mutex
	seen := make(map[msgKey]bool)
	addMsg := log.AddMsg

	log.AddMsg = func(msg logger.Msg) {
		key := msgKey{kind: msg.Kind, id: msg.ID, text: msg.Data.Text}
		if loc := msg.Data.Location; loc != nil {
			key.file = loc.File
			key.line = loc.Line
			key.column = loc.Column
		}

		mutex.Lock()
		isDuplicate := seen[key]
		seen[key] = true
		mutex.Unlock()

		if !isDuplicate {
			addMsg(msg)
		}
	}

	return log
}

func (b *Bundle) prettyPathList(sourceIndices []uint32) string {
	sb := strings.Builder{}
	sb.WriteByte('[')
	for i, sourceIndex := range sourceIndices {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.Write(helpers.QuoteForJSON(b.modules[sourceIndex].Source.PrettyPath, false))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Joins the per-chunk metadata of a compile into one JSON document. Inputs
// are listed in source index order and outputs in the order they were
// generated, so the metafile of a build is reproducible.
func (b *Bundle) GenerateMetadataJSON(outputFiles []graph.OutputFile) string {
	sb := strings.Builder{}
	quote := func(text string) string {
		return string(helpers.QuoteForJSON(text, false))
	}

	sb.WriteString("{\n  \"inputs\": {")
	isFirstInput := true
	for _, module := range b.modules {
		// Modules that failed to load have no contents to describe
		if module.Source.KeyPath.Text == "" {
			continue
		}
		if !isFirstInput {
			sb.WriteByte(',')
		}
		isFirstInput = false

		sb.WriteString(fmt.Sprintf("\n    %s: {\n      \"bytes\": %d,\n      \"imports\": [",
			quote(module.Source.PrettyPath), len(module.Source.Contents)))

		isFirstImport := true
		writeImport := func(path string, kind string, isExternal bool) {
			if !isFirstImport {
				sb.WriteByte(',')
			}
			isFirstImport = false
			sb.WriteString(fmt.Sprintf("\n        {\n          \"path\": %s,\n          \"kind\": %s", quote(path), quote(kind)))
			if isExternal {
				sb.WriteString(",\n          \"external\": true")
			}
			sb.WriteString("\n        }")
		}
		for _, edge := range module.Edges {
			writeImport(b.modules[edge.To].Source.PrettyPath, edge.Kind.String(), false)
		}
		for _, record := range module.AST.ImportRecords {
			if record.Flags.Has(ast.IsExternal) {
				kind := graph.EdgeImport
				if record.Kind == ast.ImportDynamic {
					kind = graph.EdgeDynamicImport
				} else if record.Flags.Has(ast.IsReexport) {
					kind = graph.EdgeReExport
				}
				writeImport(record.Path.Text, kind.String(), true)
			}
		}
		if !isFirstImport {
			sb.WriteString("\n      ")
		}
		sb.WriteString("],\n      \"importedBy\": ")
		sb.WriteString(b.prettyPathList(module.Importers))
		sb.WriteString(",\n      \"dynamicallyImportedBy\": ")
		sb.WriteString(b.prettyPathList(module.DynamicImporters))
		sb.WriteString("\n    }")
	}
	if !isFirstInput {
		sb.WriteString("\n  ")
	}

	sb.WriteString("},\n  \"outputs\": {")
	for i, outputFile := range outputFiles {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("\n    %s: %s", quote(outputFile.Path), outputFile.JSONMetadataChunk))
	}
	if len(outputFiles) > 0 {
		sb.WriteString("\n  ")
	}
	sb.WriteString("}\n}\n")

	return sb.String()
}
