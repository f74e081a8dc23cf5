package linker

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/logger"
)

func (c *linkerContext) treeShakingAndCodeSplitting() {
	c.timer.Begin("Tree shaking")
	c.computeSideEffects()
	for _, entryPoint := range c.entryPoints {
		c.markFileLive(entryPoint.SourceIndex)

		// Every export of an entry point is a root
		module := &c.graph.Modules[entryPoint.SourceIndex]
		for _, alias := range module.SortedAndFilteredExportAliases {
			export := c.terminalExport(module.ResolvedExports[alias])
			for _, partIndex := range c.graph.TopLevelSymbolToParts(export.SourceIndex, export.Ref) {
				c.markPartLive(export.SourceIndex, partIndex)
			}
			for _, dep := range export.ReExports {
				c.markPartLive(dep.SourceIndex, dep.PartIndex)
			}
		}
	}
	c.timer.End("Tree shaking")

	c.timer.Begin("Compute entry bits")
	bitCount := uint(len(c.entryPoints))
	for _, sourceIndex := range c.graph.ReachableModules {
		c.graph.Modules[sourceIndex].EntryBits = helpers.NewBitSet(bitCount)
	}
	for i, entryPoint := range c.entryPoints {
		c.markFileReachableForCodeSplitting(entryPoint.SourceIndex, uint(i), 0)
	}
	c.timer.End("Compute entry bits")

	// Every retained module must end up in some chunk
	for _, sourceIndex := range c.graph.ReachableModules {
		if module := &c.graph.Modules[sourceIndex]; module.IsLive && module.EntryBits.IsAllZeros() {
			c.log.AddError(nil, logger.Range{}, logger.MsgID_OrphanModule,
				fmt.Sprintf("Internal error: %q is retained but not reachable from any chunk", module.Module.Source.PrettyPath))
		}
	}
}

// A module has side effects if any of its own statements do, if it imports
// an external module, or if it imports a module with side effects. This is
// a fixed point since static imports may form cycles.
func (c *linkerContext) computeSideEffects() {
	for _, sourceIndex := range c.graph.ReachableModules {
		module := &c.graph.Modules[sourceIndex]
		module.HasSideEffects = module.Module.HasOwnSideEffects()
		for _, record := range module.Module.AST.ImportRecords {
			if record.Kind == ast.ImportStmt && !record.SourceIndex.IsValid() {
				module.HasSideEffects = true
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, sourceIndex := range c.graph.ReachableModules {
			module := &c.graph.Modules[sourceIndex]
			if module.HasSideEffects {
				continue
			}
			for _, record := range module.Module.AST.ImportRecords {
				if record.Kind == ast.ImportStmt && record.SourceIndex.IsValid() &&
					c.graph.Modules[record.SourceIndex.GetIndex()].HasSideEffects {
					module.HasSideEffects = true
					changed = true
					break
				}
			}
		}
	}
}

func (c *linkerContext) markFileLive(sourceIndex uint32) {
	module := &c.graph.Modules[sourceIndex]

	// Don't mark this module more than once
	if module.IsLive {
		return
	}
	module.IsLive = true
	tree := &module.Module.AST

	for partIndex, part := range tree.Parts {
		canBeRemovedIfUnused := part.CanBeRemovedIfUnused

		// Import and re-export statements are only kept for what they import
		if len(part.Stmts) == 1 {
			switch part.Stmts[0].Data.(type) {
			case *js_ast.SImport, *js_ast.SExportFrom, *js_ast.SExportStar:
				canBeRemovedIfUnused = true
			}
		}

		// Also include any statement-level imports
		for _, importRecordIndex := range part.ImportRecordIndices {
			record := &tree.ImportRecords[importRecordIndex]
			if record.Kind != ast.ImportStmt {
				continue
			}

			if record.SourceIndex.IsValid() {
				otherSourceIndex := record.SourceIndex.GetIndex()

				// Don't include this module for its side effects if it can be
				// considered to have no side effects
				if c.options.TreeShaking && !c.graph.Modules[otherSourceIndex].HasSideEffects {
					continue
				}

				// Otherwise, include this module for its side effects
				c.markFileLive(otherSourceIndex)
			}

			// If we get here then the import was included for its side effects, so
			// we must also keep this part
			canBeRemovedIfUnused = false
		}

		// Include all parts in this module with side effects, or just include
		// everything if tree-shaking is disabled. Generated parts are still
		// tree-shaken when tree-shaking is disabled.
		if !canBeRemovedIfUnused || (!part.ForceTreeShaking && !c.options.TreeShaking) {
			c.markPartLive(sourceIndex, uint32(partIndex))
		}
	}
}

func (c *linkerContext) markPartLive(sourceIndex uint32, partIndex uint32) {
	tree := &c.graph.Modules[sourceIndex].Module.AST
	part := &tree.Parts[partIndex]

	// Don't mark this part more than once
	if part.IsLive {
		return
	}
	part.IsLive = true

	// Include the module containing this part
	c.markFileLive(sourceIndex)

	// Also include any dependencies
	for _, dep := range part.Dependencies {
		c.markPartLive(dep.SourceIndex, dep.PartIndex)
	}

	// Without code splitting, "import()" evaluates to the namespace object of
	// a module in the same output file
	if !c.options.CodeSplitting {
		for _, importRecordIndex := range part.ImportRecordIndices {
			if record := &tree.ImportRecords[importRecordIndex]; record.Kind == ast.ImportDynamic && record.SourceIndex.IsValid() {
				c.markPartLive(record.SourceIndex.GetIndex(), js_ast.NSExportPartIndex)
			}
		}
	}
}

func (c *linkerContext) markFileReachableForCodeSplitting(sourceIndex uint32, entryPointBit uint, distanceFromEntryPoint uint32) {
	module := &c.graph.Modules[sourceIndex]
	if !module.IsLive {
		return
	}
	traverseAgain := false

	// Track the minimum distance to an entry point
	if distanceFromEntryPoint < module.DistanceFromEntryPoint {
		module.DistanceFromEntryPoint = distanceFromEntryPoint
		traverseAgain = true
	}
	distanceFromEntryPoint++

	// Don't mark this module more than once
	if module.EntryBits.HasBit(entryPointBit) && !traverseAgain {
		return
	}
	module.EntryBits.SetBit(entryPointBit)
	tree := &module.Module.AST

	// Traverse into other modules. With code splitting, "import()" targets are
	// entry points of their own.
	for _, record := range tree.ImportRecords {
		if record.SourceIndex.IsValid() && (record.Kind != ast.ImportDynamic || !c.options.CodeSplitting) {
			c.markFileReachableForCodeSplitting(record.SourceIndex.GetIndex(), entryPointBit, distanceFromEntryPoint)
		}
	}

	// Traverse into the modules that live parts depend on
	for _, part := range tree.Parts {
		if !part.IsLive {
			continue
		}
		for _, dependency := range part.Dependencies {
			if dependency.SourceIndex != sourceIndex {
				c.markFileReachableForCodeSplitting(dependency.SourceIndex, entryPointBit, distanceFromEntryPoint)
			}
		}
	}
}
