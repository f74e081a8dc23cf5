package linker

// This package implements the second phase of the bundling operation that
// generates the output files when given a module graph. Linking binds every
// import to the export it resolves to, tree shaking then marks what must be
// kept, the live modules are partitioned into chunks, and finally each chunk
// is printed with one renaming table for all of its modules.

import (
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
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/renamer"
)

type linkerContext struct {
	options *config.Options
	timer   *helpers.Timer
	log     logger.Log
	fs      fs.FS
	graph   graph.LinkerGraph
	chunks  []chunkInfo

	// User-specified entry points come first, in the order they were given,
	// followed by any dynamic import targets that became entry points
	entryPoints []graph.EntryPoint

	// Every reachable module in evaluation order
	execOrder []uint32

	// This helps avoid an infinite loop when matching imports to exports
	cycleDetector []importTracker
}

type chunkInfo struct {
	entryBits helpers.BitSet

	// The modules of this chunk in evaluation order
	filesInChunkInOrder []uint32

	// For entry point chunks, the module that this chunk was generated for
	isEntryPoint  bool
	sourceIndex   uint32
	entryPointBit uint

	kind    graph.OutputKind
	relPath string

	// Other chunks that must be evaluated before this one, sorted by chunk
	// index. Symbols are only listed for chunks this chunk imports names from.
	crossChunkImports []crossChunkImport

	// Symbols declared in this chunk that other chunks import, mapped to the
	// name they are exported under
	exportsToOtherChunks map[js_ast.Ref]string
}

type crossChunkImport struct {
	chunkIndex uint32
	items      []crossChunkImportItem
}

type crossChunkImportItem struct {
	ref   js_ast.Ref
	alias string
}

// Returns a log where "log.HasErrors()" only returns true if any errors have
// been logged since this call. This is useful when there have already been
// errors logged by other linkers that share the same log.
func wrappedLog(log logger.Log) logger.Log {
	var mutex sync.Mutex
	var hasErrors bool
	addMsg := log.AddMsg

	log.AddMsg = func(msg logger.Msg) {
		if msg.Kind == logger.Error {
			mutex.Lock()
			defer mutex.Unlock()
			hasErrors = true
		}
		addMsg(msg)
	}

	log.HasErrors = func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return hasErrors
	}

	return log
}

func Link(
	options *config.Options,
	timer *helpers.Timer,
	log logger.Log,
	fs fs.FS,
	modules []graph.Module,
	entryPoints []graph.EntryPoint,
) []graph.OutputFile {
	timer.Begin("Link")
	defer timer.End("Link")

	log = wrappedLog(log)

	timer.Begin("Clone linker graph")
	c := linkerContext{
		options:     options,
		timer:       timer,
		log:         log,
		fs:          fs,
		entryPoints: append([]graph.EntryPoint{}, entryPoints...),
		graph:       graph.MakeLinkerGraph(modules, findReachableModules(modules, entryPoints)),
	}
	timer.End("Clone linker graph")

	for _, entryPoint := range entryPoints {
		c.graph.Modules[entryPoint.SourceIndex].EntryPointKind = graph.EntryPointUserSpecified
	}
	if options.CodeSplitting {
		c.addDynamicImportEntryPoints()
	}

	c.scanImportsAndExports()

	// Stop now if there were errors
	if c.log.HasErrors() {
		return []graph.OutputFile{}
	}

	c.computeExecOrder()
	c.treeShakingAndCodeSplitting()

	if c.log.HasErrors() {
		return []graph.OutputFile{}
	}

	c.computeChunks()
	c.computeCrossChunkDependencies()

	// Make sure calls to "js_ast.FollowSymbols()" in parallel goroutines after
	// this won't hit concurrent map mutation hazards
	js_ast.FollowAllSymbols(c.graph.Symbols)

	return c.generateChunksInParallel()
}

// Finds every module reachable from the entry points through any kind of
// import, in breadth-first order
func findReachableModules(modules []graph.Module, entryPoints []graph.EntryPoint) []uint32 {
	visited := make(map[uint32]bool)
	var order []uint32

	for _, entryPoint := range entryPoints {
		if !visited[entryPoint.SourceIndex] {
			visited[entryPoint.SourceIndex] = true
			order = append(order, entryPoint.SourceIndex)
		}
	}

	for i := 0; i < len(order); i++ {
		for _, record := range modules[order[i]].AST.ImportRecords {
			if record.SourceIndex.IsValid() {
				if otherSourceIndex := record.SourceIndex.GetIndex(); !visited[otherSourceIndex] {
					visited[otherSourceIndex] = true
					order = append(order, otherSourceIndex)
				}
			}
		}
	}

	return order
}

// Every module that is the target of "import()" becomes an entry point of its
// own. Dynamic entry point chunks are named after their module like user
// entry points are, and never take a name a user entry point already has.
func (c *linkerContext) addDynamicImportEntryPoints() {
	names := renamer.ExportRenamer{}
	for _, entryPoint := range c.entryPoints {
		names.Reserve(strings.TrimSuffix(entryPoint.OutputPath, ".js"))
	}

	for _, sourceIndex := range c.graph.ReachableModules {
		for _, record := range c.graph.Modules[sourceIndex].Module.AST.ImportRecords {
			if record.Kind != ast.ImportDynamic || !record.SourceIndex.IsValid() {
				continue
			}
			otherSourceIndex := record.SourceIndex.GetIndex()
			other := &c.graph.Modules[otherSourceIndex]
			if other.IsEntryPoint() {
				continue
			}
			other.EntryPointKind = graph.EntryPointDynamicImport
			_, base, _ := helpers.PlatformIndependentPathDirBaseExt(other.Module.Source.KeyPath.Text)
			c.entryPoints = append(c.entryPoints, graph.EntryPoint{
				SourceIndex: otherSourceIndex,
				OutputPath:  names.NextRenamedName(base) + ".js",
			})
		}
	}
}

func (c *linkerContext) concurrency() int {
	if c.options.Concurrency > 0 {
		return c.options.Concurrency
	}
	return runtime.NumCPU()
}

// Recover from a panic by logging it as an internal error instead of crashing
func (c *linkerContext) recoverInternalError(waitGroup *sync.WaitGroup, sourceIndex uint32) {
	if r := recover(); r != nil {
		text := fmt.Sprintf("panic: %v (while printing %q)", r, c.graph.Modules[sourceIndex].Module.Source.PrettyPath)
		c.log.AddErrorWithNotes(nil, logger.Range{}, logger.MsgID_None, text,
			[]logger.MsgData{{Text: helpers.PrettyPrintedStack()}})
		waitGroup.Done()
	}
}
