package linker

import (
	"fmt"
	"strings"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/logger"
)

// Modules are traversed in depth-first postorder over static imports. This
// is the order that modules are evaluated in:
//
//	  A
//	 / \
//	B   C
//	 \ /
//	  D
//
// If A imports B and then C, B imports D, and C imports D, then the
// evaluation order is D B C A. An import of a module that is still being
// visited closes a cycle. The module it points back to is left where it is,
// so cycle members keep the order in which they were discovered.
//
// Modules only reachable through "import()" come after everything reachable
// from the entry points, in the order they were discovered.
func (c *linkerContext) computeExecOrder() {
	c.timer.Begin("Compute exec order")
	defer c.timer.End("Compute exec order")

	visited := make([]bool, len(c.graph.Modules))
	onStack := make([]bool, len(c.graph.Modules))
	reportedCycles := make(map[string]bool)
	var stack []uint32
	var visit func(uint32)

	visit = func(sourceIndex uint32) {
		visited[sourceIndex] = true
		onStack[sourceIndex] = true
		stack = append(stack, sourceIndex)
		module := &c.graph.Modules[sourceIndex]

		for i := range module.Module.AST.ImportRecords {
			record := &module.Module.AST.ImportRecords[i]
			if record.Kind != ast.ImportStmt || !record.SourceIndex.IsValid() {
				continue
			}
			otherSourceIndex := record.SourceIndex.GetIndex()

			if onStack[otherSourceIndex] {
				c.reportCycle(stack, otherSourceIndex, sourceIndex, record, reportedCycles)
				continue
			}
			if !visited[otherSourceIndex] {
				visit(otherSourceIndex)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[sourceIndex] = false
		module.ExecOrder = uint32(len(c.execOrder))
		c.execOrder = append(c.execOrder, sourceIndex)
	}

	for _, entryPoint := range c.entryPoints {
		if !visited[entryPoint.SourceIndex] && c.graph.Modules[entryPoint.SourceIndex].EntryPointKind == graph.EntryPointUserSpecified {
			visit(entryPoint.SourceIndex)
		}
	}
	for _, sourceIndex := range c.graph.ReachableModules {
		if !visited[sourceIndex] {
			visit(sourceIndex)
		}
	}
}

func (c *linkerContext) reportCycle(
	stack []uint32, target uint32, sourceIndex uint32, record *ast.ImportRecord, reportedCycles map[string]bool,
) {
	start := len(stack) - 1
	for stack[start] != target {
		start--
	}

	paths := make([]string, 0, len(stack)-start+1)
	for _, member := range stack[start:] {
		paths = append(paths, c.graph.Modules[member].Module.Source.PrettyPath)
	}
	paths = append(paths, c.graph.Modules[target].Module.Source.PrettyPath)

	cycle := strings.Join(paths, " -> ")
	if reportedCycles[cycle] {
		return
	}
	reportedCycles[cycle] = true

	module := &c.graph.Modules[sourceIndex]
	c.log.AddWarning(&module.Module.Source, record.Range, logger.MsgID_CircularDependency,
		fmt.Sprintf("Circular import dependency: %s", cycle))
}
