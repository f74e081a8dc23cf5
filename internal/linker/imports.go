package linker

import (
	"fmt"
	"sort"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_lexer"
	"github.com/esmlink/esmlink/internal/logger"
)

type importTracker struct {
	sourceIndex uint32
	importRef   js_ast.Ref
}

type importStatus uint8

const (
	// The imported file has no matching export
	importNoMatch importStatus = iota

	// The imported file has a matching export
	importFound

	// The imported file is external and is kept as an import in the output
	importExternal
)

type matchImportKind uint8

const (
	// The import is either external or undefined
	matchImportIgnore matchImportKind = iota

	// "sourceIndex" and "ref" are in use
	matchImportNormal

	// The import could not be found
	matchImportMissing

	// A re-export chain revisited an import it already passed through
	matchImportCycle

	// More than one "export *" statement provides this name
	matchImportAmbiguous
)

type matchImportResult struct {
	kind        matchImportKind
	sourceIndex uint32
	ref         js_ast.Ref
	nameLoc     logger.Loc // Optional, goes with sourceIndex, ignore if zero

	// For "matchImportMissing", the import that failed and the module it
	// was looked up in
	failedTracker     importTracker
	failedSourceIndex uint32
}

type refsByStableOrder []js_ast.Ref

func (a refsByStableOrder) Len() int          { return len(a) }
func (a refsByStableOrder) Swap(i int, j int) { a[i], a[j] = a[j], a[i] }

func (a refsByStableOrder) Less(i int, j int) bool {
	ai, aj := a[i], a[j]
	return ai.SourceIndex < aj.SourceIndex || (ai.SourceIndex == aj.SourceIndex && ai.InnerIndex < aj.InnerIndex)
}

func (c *linkerContext) scanImportsAndExports() {
	c.timer.Begin("Scan imports and exports")
	defer c.timer.End("Scan imports and exports")

	// Step 1: Expand "export *" statements into each module's export table.
	// This must be done for every module before any import is matched since
	// imports are matched against these tables.
	c.timer.Begin("Step 1")
	for _, sourceIndex := range c.graph.ReachableModules {
		module := &c.graph.Modules[sourceIndex]
		if len(module.Module.AST.ExportStarImportRecords) > 0 {
			c.addExportsForExportStar(module.ResolvedExports, sourceIndex, nil)
		}

		// "export * from" an external module can only be expressed in the
		// output of an entry point chunk
		if !module.IsEntryPoint() {
			for _, importRecordIndex := range module.Module.AST.ExportStarImportRecords {
				record := &module.Module.AST.ImportRecords[importRecordIndex]
				if !record.SourceIndex.IsValid() {
					c.log.AddWarning(&module.Module.Source, record.Range, logger.MsgID_UnsupportedExternalExportStar,
						fmt.Sprintf("The names re-exported from external module %q are not available to importers of %q",
							record.Path.Text, module.Module.Source.PrettyPath))
				}
			}
		}
	}
	c.timer.End("Step 1")

	// Step 2: Match every import with the export it resolves to
	c.timer.Begin("Step 2")
	reported := make(map[importTracker]bool)
	for _, sourceIndex := range c.graph.ReachableModules {
		c.matchImportsWithExportsForModule(sourceIndex, reported)
	}
	c.timer.End("Step 2")

	if c.log.HasErrors() {
		return
	}

	// Step 3: Drop ambiguous names from each module's export table now that
	// every name can be traced to its terminal symbol
	c.timer.Begin("Step 3")
	for _, sourceIndex := range c.graph.ReachableModules {
		c.filterAmbiguousExports(sourceIndex)
	}
	c.timer.End("Step 3")

	// Step 4: Bind imports to exports. This adds cross-module part dependencies
	// and merges each import symbol into the symbol it resolved to.
	c.timer.Begin("Step 4")
	for _, sourceIndex := range c.graph.ReachableModules {
		module := &c.graph.Modules[sourceIndex]
		tree := &module.Module.AST

		// Local dependencies
		for partIndex := range tree.Parts {
			part := &tree.Parts[partIndex]
			for ref := range part.SymbolUses {
				for _, otherPartIndex := range c.graph.TopLevelSymbolToParts(sourceIndex, ref) {
					if otherPartIndex != uint32(partIndex) {
						part.Dependencies = append(part.Dependencies, js_ast.Dependency{
							SourceIndex: sourceIndex,
							PartIndex:   otherPartIndex,
						})
					}
				}
			}
		}

		refs := make([]js_ast.Ref, 0, len(module.ImportsToBind))
		for ref := range module.ImportsToBind {
			refs = append(refs, ref)
		}
		sort.Sort(refsByStableOrder(refs))

		for _, importRef := range refs {
			importToBind := module.ImportsToBind[importRef]
			other := &c.graph.Modules[importToBind.SourceIndex]
			if importToBind.Ref == other.Module.AST.ExportsRef {
				other.NeedsNamespaceObject = true
			}

			// Every part that uses this import now also uses the parts that
			// declare its target, and the statements that re-export it along the
			// way
			for _, partIndex := range tree.NamedImports[importRef].LocalPartsWithUses {
				part := &tree.Parts[partIndex]
				for _, otherPartIndex := range c.graph.TopLevelSymbolToParts(importToBind.SourceIndex, importToBind.Ref) {
					part.Dependencies = append(part.Dependencies, js_ast.Dependency{
						SourceIndex: importToBind.SourceIndex,
						PartIndex:   otherPartIndex,
					})
				}
				part.Dependencies = append(part.Dependencies, importToBind.ReExports...)
			}

			js_ast.MergeSymbols(c.graph.Symbols, importRef, importToBind.Ref)
		}
	}
	c.timer.End("Step 4")

	// Step 5: Entry points export their own namespace, and without code
	// splitting so does every module loaded with "import()"
	c.timer.Begin("Step 5")
	for _, sourceIndex := range c.graph.ReachableModules {
		module := &c.graph.Modules[sourceIndex]
		if c.options.CodeSplitting {
			continue
		}
		for _, record := range module.Module.AST.ImportRecords {
			if record.Kind == ast.ImportDynamic && record.SourceIndex.IsValid() {
				c.graph.Modules[record.SourceIndex.GetIndex()].NeedsNamespaceObject = true
			}
		}
	}
	for _, sourceIndex := range c.graph.ReachableModules {
		if c.graph.Modules[sourceIndex].NeedsNamespaceObject {
			c.createNamespaceObject(sourceIndex)
		}
	}
	c.timer.End("Step 5")
}

func (c *linkerContext) addExportsForExportStar(
	resolvedExports map[string]graph.ExportSpecifier,
	sourceIndex uint32,
	sourceIndexStack []uint32,
) {
	// Avoid infinite loops due to cycles in the export star graph
	for _, prevSourceIndex := range sourceIndexStack {
		if prevSourceIndex == sourceIndex {
			return
		}
	}
	sourceIndexStack = append(sourceIndexStack, sourceIndex)
	tree := &c.graph.Modules[sourceIndex].Module.AST

	for _, importRecordIndex := range tree.ExportStarImportRecords {
		record := &tree.ImportRecords[importRecordIndex]
		if !record.SourceIndex.IsValid() {
			// This will be resolved at run time instead
			continue
		}
		otherSourceIndex := record.SourceIndex.GetIndex()
		otherTree := &c.graph.Modules[otherSourceIndex].Module.AST

		// Accumulate this module's exports
	nextExport:
		for alias, name := range otherTree.NamedExports {
			// Export star statements ignore exports named "default"
			if alias == "default" {
				continue
			}

			// This export star is shadowed if any module in the stack has a
			// matching real named export
			for _, prevSourceIndex := range sourceIndexStack {
				if _, ok := c.graph.Modules[prevSourceIndex].Module.AST.NamedExports[alias]; ok {
					continue nextExport
				}
			}

			if existing, ok := resolvedExports[alias]; !ok {
				resolvedExports[alias] = graph.ExportSpecifier{
					Ref:         name.Ref,
					SourceIndex: otherSourceIndex,
					NameLoc:     name.AliasLoc,
				}
			} else if existing.SourceIndex != otherSourceIndex {
				// Two different re-exports colliding makes it potentially ambiguous
				existing.PotentiallyAmbiguousExportStarRefs =
					append(existing.PotentiallyAmbiguousExportStarRefs, graph.ImportSpecifier{
						SourceIndex: otherSourceIndex,
						Ref:         name.Ref,
						NameLoc:     name.AliasLoc,
					})
				resolvedExports[alias] = existing
			}
		}

		// Search further through this module's export stars
		c.addExportsForExportStar(resolvedExports, otherSourceIndex, sourceIndexStack)
	}
}

func (c *linkerContext) matchImportsWithExportsForModule(sourceIndex uint32, reported map[importTracker]bool) {
	module := &c.graph.Modules[sourceIndex]
	tree := &module.Module.AST

	// Sort imports for determinism. Otherwise our unit tests will randomly
	// fail sometimes when error messages are reordered.
	refs := make([]js_ast.Ref, 0, len(tree.NamedImports))
	for ref := range tree.NamedImports {
		refs = append(refs, ref)
	}
	sort.Sort(refsByStableOrder(refs))

	for _, importRef := range refs {
		// Re-use memory for the cycle detector
		c.cycleDetector = c.cycleDetector[:0]

		tracker := importTracker{sourceIndex: sourceIndex, importRef: importRef}
		result, reExports := c.matchImportWithExport(tracker, nil)
		namedImport := tree.NamedImports[importRef]
		symbol := c.graph.Symbols.Get(importRef)

		switch result.kind {
		case matchImportNormal:
			module.ImportsToBind[importRef] = graph.ImportSpecifier{
				ReExports:   reExports,
				SourceIndex: result.sourceIndex,
				Ref:         result.ref,
				NameLoc:     result.nameLoc,
			}

		case matchImportCycle:
			// Every import in the cycle runs into it, but it's reported once
			alreadyReported := reported[tracker]
			for _, member := range c.cycleMembers() {
				alreadyReported = alreadyReported || reported[member]
				reported[member] = true
			}
			reported[tracker] = true
			if !alreadyReported {
				c.log.AddErrorWithNotes(&module.Module.Source, js_lexer.RangeOfIdentifier(module.Module.Source, namedImport.AliasLoc),
					logger.MsgID_CircularReexport,
					fmt.Sprintf("Detected cycle while resolving import %q", namedImport.Alias),
					c.cycleNotes())
			}

		case matchImportAmbiguous:
			if symbol.NamespaceAlias != nil {
				// A property access on a namespace can't be an explicit import of
				// the dropped name, so it just evaluates to "undefined"
				symbol.ImportItemIsMissing = true
			} else if !reported[tracker] {
				reported[tracker] = true
				c.log.AddError(&module.Module.Source, js_lexer.RangeOfIdentifier(module.Module.Source, namedImport.AliasLoc),
					logger.MsgID_AmbiguousExport,
					fmt.Sprintf("Ambiguous import %q has multiple matching exports", namedImport.Alias))
			}

		case matchImportMissing:
			failed := result.failedTracker
			failedModule := &c.graph.Modules[failed.sourceIndex]
			failedImport := failedModule.Module.AST.NamedImports[failed.importRef]
			r := js_lexer.RangeOfIdentifier(failedModule.Module.Source, failedImport.AliasLoc)
			otherPath := c.graph.Modules[result.failedSourceIndex].Module.Source.PrettyPath

			if symbol.NamespaceAlias != nil {
				symbol.ImportItemIsMissing = true
				if !reported[tracker] {
					reported[tracker] = true
					c.log.AddWarning(&module.Module.Source, js_lexer.RangeOfIdentifier(module.Module.Source, namedImport.AliasLoc),
						logger.MsgID_MissingExport,
						fmt.Sprintf("Import %q will always be undefined because there is no matching export in %q",
							namedImport.Alias, otherPath))
				}
			} else if !reported[failed] {
				reported[failed] = true
				c.log.AddError(&failedModule.Module.Source, r, logger.MsgID_MissingExport,
					fmt.Sprintf("No matching export in %q for import %q", otherPath, failedImport.Alias))
			}
		}
	}
}

func (c *linkerContext) matchImportWithExport(
	tracker importTracker, reExportsIn []js_ast.Dependency,
) (result matchImportResult, reExports []js_ast.Dependency) {
	var ambiguousResults []matchImportResult
	reExports = reExportsIn

loop:
	for {
		// Make sure we avoid infinite loops trying to resolve cycles:
		//
		//   // foo.js
		//   export {a as b} from './foo.js'
		//   export {b as c} from './foo.js'
		//   export {c as a} from './foo.js'
		//
		// This uses a O(n^2) array scan instead of a O(n) map because the vast
		// majority of cases have one or two elements.
		for _, previousTracker := range c.cycleDetector {
			if tracker == previousTracker {
				c.cycleDetector = append(c.cycleDetector, tracker)
				result = matchImportResult{kind: matchImportCycle}
				break loop
			}
		}
		c.cycleDetector = append(c.cycleDetector, tracker)

		// Resolve the import by one step
		nextTracker, status, nameLoc, potentiallyAmbiguousExportStarRefs := c.advanceImportTracker(tracker)
		switch status {
		case importExternal:
			// The import stays an import of the external module. If this is the
			// end of a re-export chain, bind to the symbol of the last bundled
			// module in the chain since that module's statement is what remains
			// in the output.
			if result.kind != matchImportNormal {
				result = matchImportResult{kind: matchImportIgnore}
			}

		case importNoMatch:
			namedImport := c.graph.Modules[tracker.sourceIndex].Module.AST.NamedImports[tracker.importRef]
			record := &c.graph.Modules[tracker.sourceIndex].Module.AST.ImportRecords[namedImport.ImportRecordIndex]
			result = matchImportResult{
				kind:              matchImportMissing,
				failedTracker:     tracker,
				failedSourceIndex: record.SourceIndex.GetIndex(),
			}

		case importFound:
			result = matchImportResult{
				kind:        matchImportNormal,
				sourceIndex: nextTracker.sourceIndex,
				ref:         nextTracker.importRef,
				nameLoc:     nameLoc,
			}

			// Depend on the statement(s) that declared this import symbol in the
			// original module
			for _, partIndex := range c.graph.TopLevelSymbolToParts(tracker.sourceIndex, tracker.importRef) {
				reExports = append(reExports, js_ast.Dependency{
					SourceIndex: tracker.sourceIndex,
					PartIndex:   partIndex,
				})
			}

			_, isReExport := c.graph.Modules[nextTracker.sourceIndex].Module.AST.NamedImports[nextTracker.importRef]

			// If there are multiple ambiguous results due to use of "export *"
			// statements, trace them all to see if they point to the same symbol.
			// If they point to different symbols, return an invalid symbol.
			if len(potentiallyAmbiguousExportStarRefs) > 0 {
				if isReExport {
					result, reExports = c.matchImportWithExport(nextTracker, reExports)
					if result.kind == matchImportCycle || result.kind == matchImportMissing {
						break loop
					}
				}

				for _, ambiguousTracker := range potentiallyAmbiguousExportStarRefs {
					otherTree := &c.graph.Modules[ambiguousTracker.SourceIndex].Module.AST

					// If this is a re-export of another import, follow the import
					if _, ok := otherTree.NamedImports[ambiguousTracker.Ref]; ok {
						// Save and restore the cycle detector to avoid mixing information
						oldCycleDetector := c.cycleDetector
						ambiguousResult, _ := c.matchImportWithExport(importTracker{
							sourceIndex: ambiguousTracker.SourceIndex,
							importRef:   ambiguousTracker.Ref,
						}, nil)
						c.cycleDetector = oldCycleDetector
						ambiguousResults = append(ambiguousResults, ambiguousResult)
					} else {
						ambiguousResults = append(ambiguousResults, matchImportResult{
							kind:        matchImportNormal,
							sourceIndex: ambiguousTracker.SourceIndex,
							ref:         ambiguousTracker.Ref,
							nameLoc:     ambiguousTracker.NameLoc,
						})
					}
				}
				break loop
			}

			// If this is a re-export of another import, continue for another
			// iteration of the loop to resolve that import as well
			if isReExport {
				tracker = nextTracker
				continue
			}

		default:
			panic("Internal error")
		}

		// Stop now if we didn't explicitly "continue" above
		break
	}

	// If there is a potential ambiguity, all results must be the same
	for _, ambiguousResult := range ambiguousResults {
		if ambiguousResult.kind != result.kind || ambiguousResult.ref != result.ref {
			return matchImportResult{kind: matchImportAmbiguous}, nil
		}
	}

	return
}

// Resolves an import by one step. For a match this also returns where the
// matching export is named in the module that exports it.
func (c *linkerContext) advanceImportTracker(tracker importTracker) (importTracker, importStatus, logger.Loc, []graph.ImportSpecifier) {
	tree := &c.graph.Modules[tracker.sourceIndex].Module.AST
	namedImport := tree.NamedImports[tracker.importRef]
	record := &tree.ImportRecords[namedImport.ImportRecordIndex]

	// Imports of external modules stay imports
	if !record.SourceIndex.IsValid() {
		return importTracker{}, importExternal, logger.Loc{}, nil
	}
	otherSourceIndex := record.SourceIndex.GetIndex()
	other := &c.graph.Modules[otherSourceIndex]

	// "import * as ns" and "export * as ns" bind to the namespace object
	if namedImport.AliasIsStar {
		return importTracker{sourceIndex: otherSourceIndex, importRef: other.Module.AST.ExportsRef}, importFound, logger.Loc{}, nil
	}

	// Match this import with an export from the imported module
	if matchingExport, ok := other.ResolvedExports[namedImport.Alias]; ok {
		return importTracker{
			sourceIndex: matchingExport.SourceIndex,
			importRef:   matchingExport.Ref,
		}, importFound, matchingExport.NameLoc, matchingExport.PotentiallyAmbiguousExportStarRefs
	}

	return importTracker{sourceIndex: otherSourceIndex}, importNoMatch, logger.Loc{}, nil
}

// The trackers between the first and the second visit of the tracker that
// ended the chain
func (c *linkerContext) cycleMembers() []importTracker {
	last := len(c.cycleDetector) - 1
	for i, tracker := range c.cycleDetector[:last] {
		if tracker == c.cycleDetector[last] {
			return c.cycleDetector[i:last]
		}
	}
	return nil
}

// Each step of the chain that led back to itself
func (c *linkerContext) cycleNotes() []logger.MsgData {
	var notes []logger.MsgData
	for _, tracker := range c.cycleDetector[:len(c.cycleDetector)-1] {
		module := &c.graph.Modules[tracker.sourceIndex]
		namedImport := module.Module.AST.NamedImports[tracker.importRef]
		record := &module.Module.AST.ImportRecords[namedImport.ImportRecordIndex]
		path := record.Path.Text
		if record.SourceIndex.IsValid() {
			path = c.graph.Modules[record.SourceIndex.GetIndex()].Module.Source.PrettyPath
		}
		notes = append(notes, logger.RangeData(&module.Module.Source,
			js_lexer.RangeOfIdentifier(module.Module.Source, namedImport.AliasLoc),
			fmt.Sprintf("%q is imported from %q here:", namedImport.Alias, path)))
	}
	return notes
}

// Returns the module and symbol that an export of "sourceIndex" ultimately
// refers to. Exports that are themselves imports were bound during linking.
func (c *linkerContext) terminalExport(export graph.ExportSpecifier) graph.ImportSpecifier {
	if importToBind, ok := c.graph.Modules[export.SourceIndex].ImportsToBind[export.Ref]; ok {
		return importToBind
	}
	return graph.ImportSpecifier{SourceIndex: export.SourceIndex, Ref: export.Ref, NameLoc: export.NameLoc}
}

func (c *linkerContext) filterAmbiguousExports(sourceIndex uint32) {
	module := &c.graph.Modules[sourceIndex]
	aliases := make([]string, 0, len(module.ResolvedExports))

nextAlias:
	for _, alias := range module.SortedExportAliases() {
		export := module.ResolvedExports[alias]

		// Re-exporting multiple symbols with the same name causes an ambiguous
		// export. These names cannot be used and should not end up in generated
		// code.
		if len(export.PotentiallyAmbiguousExportStarRefs) > 0 {
			main := c.terminalExport(export)
			for _, ambiguousExport := range export.PotentiallyAmbiguousExportStarRefs {
				other := c.terminalExport(graph.ExportSpecifier{
					Ref:         ambiguousExport.Ref,
					SourceIndex: ambiguousExport.SourceIndex,
					NameLoc:     ambiguousExport.NameLoc,
				})
				if main.Ref != other.Ref {
					c.logAmbiguousExport(sourceIndex, alias, main, other)
					delete(module.ResolvedExports, alias)
					continue nextAlias
				}
			}
		}

		aliases = append(aliases, alias)
	}

	module.SortedAndFilteredExportAliases = aliases
}

func (c *linkerContext) logAmbiguousExport(sourceIndex uint32, alias string, main graph.ImportSpecifier, other graph.ImportSpecifier) {
	module := &c.graph.Modules[sourceIndex]
	tree := &module.Module.AST

	var r logger.Range
	if len(tree.ExportStarImportRecords) > 0 {
		r = tree.ImportRecords[tree.ExportStarImportRecords[0]].Range
	}

	var notes []logger.MsgData
	for i, match := range []graph.ImportSpecifier{main, other} {
		text := "One matching export is here:"
		if i > 0 {
			text = "Another matching export is here:"
		}
		matchSource := &c.graph.Modules[match.SourceIndex].Module.Source
		notes = append(notes, logger.RangeData(matchSource, js_lexer.RangeOfIdentifier(*matchSource, match.NameLoc), text))
	}

	c.log.AddWarningWithNotes(&module.Module.Source, r, logger.MsgID_AmbiguousExport,
		fmt.Sprintf("The export %q is ambiguous and has been removed from %q", alias, module.Module.Source.PrettyPath),
		notes)
}

// Fills in the reserved part 0 of a module with its namespace object:
//
//	var foo_exports = Object.freeze({ get a() { return a; }, ... });
//
// Getters keep every property a live binding of the export it names.
func (c *linkerContext) createNamespaceObject(sourceIndex uint32) {
	module := &c.graph.Modules[sourceIndex]
	tree := &module.Module.AST
	part := &tree.Parts[js_ast.NSExportPartIndex]

	objectRef := c.graph.GenerateNewSymbol(sourceIndex, js_ast.SymbolUnbound, "Object")
	part.SymbolUses[objectRef] = js_ast.SymbolUse{CountEstimate: 1}

	properties := make([]js_ast.Property, 0, len(module.SortedAndFilteredExportAliases))
	for _, alias := range module.SortedAndFilteredExportAliases {
		export := c.terminalExport(module.ResolvedExports[alias])

		// Depend on the parts that declare the export and the statements that
		// re-export it along the way
		for _, partIndex := range c.graph.TopLevelSymbolToParts(export.SourceIndex, export.Ref) {
			part.Dependencies = append(part.Dependencies, js_ast.Dependency{
				SourceIndex: export.SourceIndex,
				PartIndex:   partIndex,
			})
		}
		part.Dependencies = append(part.Dependencies, export.ReExports...)

		use := part.SymbolUses[export.Ref]
		use.CountEstimate++
		part.SymbolUses[export.Ref] = use

		properties = append(properties, js_ast.Property{
			Kind:     js_ast.PropertyGet,
			IsMethod: true,
			Key:      js_ast.Expr{Data: &js_ast.EString{Value: alias}},
			ValueOrNil: js_ast.Expr{Data: &js_ast.EFunction{Fn: js_ast.Fn{
				Body: js_ast.FnBody{Stmts: []js_ast.Stmt{{Data: &js_ast.SReturn{
					ValueOrNil: js_ast.Expr{Data: &js_ast.EIdentifier{Ref: export.Ref}},
				}}}},
			}}},
		})
	}

	part.Stmts = []js_ast.Stmt{{Data: &js_ast.SLocal{
		Kind: js_ast.LocalVar,
		Decls: []js_ast.Decl{{
			Binding: js_ast.Binding{Data: &js_ast.BIdentifier{Ref: tree.ExportsRef}},
			ValueOrNil: js_ast.Expr{Data: &js_ast.ECall{
				Target: js_ast.Expr{Data: &js_ast.EDot{
					Target: js_ast.Expr{Data: &js_ast.EIdentifier{Ref: objectRef}},
					Name:   "freeze",
				}},
				Args: []js_ast.Expr{{Data: &js_ast.EObject{Properties: properties}}},
			}},
		}},
	}}}

	// The namespace object is only kept if something uses it
	part.CanBeRemovedIfUnused = true
	part.ForceTreeShaking = true
}
