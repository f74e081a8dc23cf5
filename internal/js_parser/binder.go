package js_parser

// The binder is the second pass over the tree. It creates a scope tree,
// declares a symbol for every binding, and resolves every identifier to the
// symbol it refers to. It also splits the top level of the module into parts
// for tree shaking and collects the import and export tables of the module.
//
// Declarations are done before references are resolved in each scope, since
// function declarations and "var" can be referenced before they appear in
// the source. All "var" declarations of a function body are hoisted in a
// separate pre-pass for the same reason.

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_lexer"
	"github.com/esmlink/esmlink/internal/logger"
)

type binder struct {
	log           logger.Log
	source        logger.Source
	names         []string
	importRecords []ast.ImportRecord
	symbols       []js_ast.Symbol
	moduleScope   *js_ast.Scope
	currentScope  *js_ast.Scope
	hasErrors     bool

	// The closest function body or module scope, which is where "var"
	// declarations end up
	fnScope *js_ast.Scope

	namedImports            map[js_ast.Ref]js_ast.NamedImport
	namedExports            map[string]js_ast.NamedExport
	exportStarImportRecords []uint32
	exportsRef              js_ast.Ref

	// Maps the symbol of each "import * as ns" statement to the part of the
	// statement. Property accesses on these namespaces become import items.
	starImportParts         map[js_ast.Ref]uint32
	importItemsForNamespace map[js_ast.Ref]map[string]js_ast.Ref
	generatedImportItems    []generatedImportItem

	// The top-level statement currently being visited
	currentPart *js_ast.Part
}

type generatedImportItem struct {
	partIndex uint32
	ref       js_ast.Ref
}

func newBinder(log logger.Log, source logger.Source, names []string, importRecords []ast.ImportRecord) *binder {
	return &binder{
		log:                     log,
		source:                  source,
		names:                   names,
		importRecords:           importRecords,
		namedImports:            make(map[js_ast.Ref]js_ast.NamedImport),
		namedExports:            make(map[string]js_ast.NamedExport),
		starImportParts:         make(map[js_ast.Ref]uint32),
		importItemsForNamespace: make(map[js_ast.Ref]map[string]js_ast.Ref),
	}
}

func (b *binder) loadName(ref js_ast.Ref) string {
	if ref.SourceIndex != nameRefMarker {
		panic("Internal error: the name of this ref was already bound")
	}
	return b.names[ref.InnerIndex]
}

func (b *binder) newSymbol(kind js_ast.SymbolKind, name string) js_ast.Ref {
	ref := js_ast.Ref{SourceIndex: b.source.Index, InnerIndex: uint32(len(b.symbols))}
	b.symbols = append(b.symbols, js_ast.Symbol{
		Kind:         kind,
		OriginalName: name,
		Link:         js_ast.InvalidRef,
	})
	return ref
}

func (b *binder) pushScope(kind js_ast.ScopeKind) {
	parent := b.currentScope
	scope := &js_ast.Scope{
		Kind:    kind,
		Parent:  parent,
		Members: make(map[string]js_ast.ScopeMember),
	}
	if parent != nil {
		parent.Children = append(parent.Children, scope)
	}
	b.currentScope = scope
}

func (b *binder) popScope() {
	b.currentScope = b.currentScope.Parent
}

func (b *binder) reportDuplicate(name string, first logger.Loc, second logger.Loc) {
	// Always report the error at the later declaration
	if second.Start < first.Start {
		first, second = second, first
	}
	r := js_lexer.RangeOfIdentifier(b.source, second)
	b.log.AddErrorWithNotes(&b.source, r, logger.MsgID_DuplicateBinding,
		fmt.Sprintf("The symbol %q has already been declared", name),
		[]logger.MsgData{logger.RangeData(&b.source, js_lexer.RangeOfIdentifier(b.source, first),
			fmt.Sprintf("The symbol %q was originally declared here:", name))})
	b.hasErrors = true
}

func (b *binder) addError(r logger.Range, text string) {
	b.log.AddError(&b.source, r, logger.MsgID_ParseError, text)
	b.hasErrors = true
}

func (b *binder) declareSymbolInScope(scope *js_ast.Scope, kind js_ast.SymbolKind, loc logger.Loc, name string) js_ast.Ref {
	if existing, ok := scope.Members[name]; ok {
		symbol := &b.symbols[existing.Ref.InnerIndex]

		switch {
		case symbol.Kind == js_ast.SymbolUnbound:
			// A reference that was resolved before the declaration was seen
			symbol.Kind = kind
			scope.Members[name] = js_ast.ScopeMember{Ref: existing.Ref, Loc: loc}
			return existing.Ref

		case symbol.Kind == js_ast.SymbolHoisted && kind == js_ast.SymbolHoisted:
			// "var" declarations and arguments can be declared more than once
			return existing.Ref
		}

		b.reportDuplicate(name, existing.Loc, loc)
		return existing.Ref
	}

	ref := b.newSymbol(kind, name)
	scope.Members[name] = js_ast.ScopeMember{Ref: ref, Loc: loc}
	return ref
}

func (b *binder) declareSymbol(kind js_ast.SymbolKind, loc logger.Loc, name string) js_ast.Ref {
	return b.declareSymbolInScope(b.currentScope, kind, loc, name)
}

func (b *binder) declareBinding(binding js_ast.Binding, kind js_ast.SymbolKind) {
	js_ast.ForEachIdentifierBinding(binding, func(loc logger.Loc, id *js_ast.BIdentifier) {
		id.Ref = b.declareSymbol(kind, loc, b.loadName(id.Ref))
	})
}

func (b *binder) findSymbol(name string) js_ast.Ref {
	for s := b.currentScope; s != nil; s = s.Parent {
		if member, ok := s.Members[name]; ok {
			return member.Ref
		}
	}

	// Allocate an "unbound" symbol in the module scope. Unbound names refer to
	// globals, and later references to the same name share this symbol.
	ref := b.newSymbol(js_ast.SymbolUnbound, name)
	b.moduleScope.Members[name] = js_ast.ScopeMember{Ref: ref, Loc: logger.Loc{Start: -1}}
	return ref
}

func (b *binder) recordUsage(ref js_ast.Ref) {
	b.symbols[ref.InnerIndex].UseCountEstimate++
	if b.currentPart != nil {
		use := b.currentPart.SymbolUses[ref]
		use.CountEstimate++
		b.currentPart.SymbolUses[ref] = use
	}
}

func (b *binder) recordDeclaredSymbol(ref js_ast.Ref) {
	if b.currentPart != nil {
		b.currentPart.DeclaredSymbols = append(b.currentPart.DeclaredSymbols, js_ast.DeclaredSymbol{Ref: ref, IsTopLevel: true})
	}
}

func (b *binder) recordImportRecord(index uint32) {
	if b.currentPart != nil {
		b.currentPart.ImportRecordIndices = append(b.currentPart.ImportRecordIndices, index)
	}
}

func (b *binder) addExport(alias string, ref js_ast.Ref, loc logger.Loc) {
	if existing, ok := b.namedExports[alias]; ok {
		first, second := existing.AliasLoc, loc
		if second.Start < first.Start {
			first, second = second, first
		}
		b.log.AddErrorWithNotes(&b.source, js_lexer.RangeOfIdentifier(b.source, second), logger.MsgID_DuplicateBinding,
			fmt.Sprintf("Multiple exports with the same name %q", alias),
			[]logger.MsgData{logger.RangeData(&b.source, js_lexer.RangeOfIdentifier(b.source, first),
				fmt.Sprintf("The name %q was originally exported here:", alias))})
		b.hasErrors = true
		return
	}
	b.namedExports[alias] = js_ast.NamedExport{Ref: ref, AliasLoc: loc}
}

func (b *binder) bindModule(stmts []js_ast.Stmt) js_ast.AST {
	b.pushScope(js_ast.ScopeModule)
	b.moduleScope = b.currentScope
	b.fnScope = b.currentScope

	// The namespace object of this module is declared by the reserved part
	b.exportsRef = b.newSymbol(js_ast.SymbolGenerated, b.source.IdentifierName+"_exports")
	b.moduleScope.Generated = append(b.moduleScope.Generated, b.exportsRef)

	b.hoistVarDecls(stmts)
	b.declareStmts(stmts, true /* isModuleScope */)

	parts := make([]js_ast.Part, 0, len(stmts)+1)
	parts = append(parts, js_ast.Part{
		DeclaredSymbols:      []js_ast.DeclaredSymbol{{Ref: b.exportsRef, IsTopLevel: true}},
		SymbolUses:           make(map[js_ast.Ref]js_ast.SymbolUse),
		CanBeRemovedIfUnused: true,
	})

	for _, stmt := range stmts {
		part := js_ast.Part{
			Stmts:      []js_ast.Stmt{stmt},
			SymbolUses: make(map[js_ast.Ref]js_ast.SymbolUse),
		}
		b.currentPart = &part
		b.visitStmt(stmt)
		b.currentPart = nil
		part.CanBeRemovedIfUnused = b.stmtCanBeRemovedIfUnused(stmt)
		parts = append(parts, part)
	}

	// Import items for "ns.prop" are declared by the import statement, which
	// may come after the property access in the source
	for _, item := range b.generatedImportItems {
		part := &parts[item.partIndex]
		part.DeclaredSymbols = append(part.DeclaredSymbols, js_ast.DeclaredSymbol{Ref: item.ref, IsTopLevel: true})
	}

	topLevelSymbolToParts := make(map[js_ast.Ref][]uint32)
	for partIndex, part := range parts {
		for _, declared := range part.DeclaredSymbols {
			if declared.IsTopLevel {
				topLevelSymbolToParts[declared.Ref] = append(topLevelSymbolToParts[declared.Ref], uint32(partIndex))
			}
		}
		for ref := range part.SymbolUses {
			if namedImport, ok := b.namedImports[ref]; ok {
				namedImport.LocalPartsWithUses = append(namedImport.LocalPartsWithUses, uint32(partIndex))
				b.namedImports[ref] = namedImport
			}
		}
	}

	return js_ast.AST{
		Parts:                   parts,
		Symbols:                 b.symbols,
		ModuleScope:             b.moduleScope,
		ImportRecords:           b.importRecords,
		NamedImports:            b.namedImports,
		NamedExports:            b.namedExports,
		ExportStarImportRecords: b.exportStarImportRecords,
		ExportsRef:              b.exportsRef,
		TopLevelSymbolToParts:   topLevelSymbolToParts,
	}
}

// Declares every "var" in these statements in the current function scope.
// This doesn't descend into nested functions, which have their own scope.
func (b *binder) hoistVarDecls(stmts []js_ast.Stmt) {
	for _, stmt := range stmts {
		b.hoistVarDeclsInStmt(stmt)
	}
}

func (b *binder) hoistVarDeclsInStmt(stmt js_ast.Stmt) {
	switch s := stmt.Data.(type) {
	case *js_ast.SLocal:
		if s.Kind == js_ast.LocalVar {
			js_ast.ForEachIdentifierBindingInDecls(s.Decls, func(loc logger.Loc, id *js_ast.BIdentifier) {
				id.Ref = b.declareSymbolInScope(b.fnScope, js_ast.SymbolHoisted, loc, b.loadName(id.Ref))
			})
		}

	case *js_ast.SBlock:
		b.hoistVarDecls(s.Stmts)

	case *js_ast.SIf:
		b.hoistVarDeclsInStmt(s.Yes)
		if s.NoOrNil.Data != nil {
			b.hoistVarDeclsInStmt(s.NoOrNil)
		}

	case *js_ast.SFor:
		if s.InitOrNil.Data != nil {
			b.hoistVarDeclsInStmt(s.InitOrNil)
		}
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SForIn:
		b.hoistVarDeclsInStmt(s.Init)
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SForOf:
		b.hoistVarDeclsInStmt(s.Init)
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SDoWhile:
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SWhile:
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SWith:
		b.hoistVarDeclsInStmt(s.Body)

	case *js_ast.SLabel:
		b.hoistVarDeclsInStmt(s.Stmt)

	case *js_ast.STry:
		b.hoistVarDecls(s.Body)
		if s.Catch != nil {
			b.hoistVarDecls(s.Catch.Body)
		}
		if s.Finally != nil {
			b.hoistVarDecls(s.Finally.Stmts)
		}

	case *js_ast.SSwitch:
		for _, c := range s.Cases {
			b.hoistVarDecls(c.Body)
		}
	}
}

// Declares the block-scoped and function declarations of these statements in
// the current scope. Imports and exports are only present at the top level.
func (b *binder) declareStmts(stmts []js_ast.Stmt, isModuleScope bool) {
	for i, stmt := range stmts {
		switch s := stmt.Data.(type) {
		case *js_ast.SImport:
			if isModuleScope {
				b.declareImport(s, uint32(i)+1)
			}

		case *js_ast.SFunction:
			s.Fn.Name.Ref = b.declareSymbol(js_ast.SymbolHoistedFunction, s.Fn.Name.Loc, b.loadName(s.Fn.Name.Ref))
			if s.IsExport {
				b.addExport(b.symbols[s.Fn.Name.Ref.InnerIndex].OriginalName, s.Fn.Name.Ref, s.Fn.Name.Loc)
			}

		case *js_ast.SClass:
			s.Class.Name.Ref = b.declareSymbol(js_ast.SymbolClass, s.Class.Name.Loc, b.loadName(s.Class.Name.Ref))
			if s.IsExport {
				b.addExport(b.symbols[s.Class.Name.Ref.InnerIndex].OriginalName, s.Class.Name.Ref, s.Class.Name.Loc)
			}

		case *js_ast.SLocal:
			switch s.Kind {
			case js_ast.LocalConst:
				for _, decl := range s.Decls {
					b.declareBinding(decl.Binding, js_ast.SymbolConst)
				}
			case js_ast.LocalLet:
				for _, decl := range s.Decls {
					b.declareBinding(decl.Binding, js_ast.SymbolOther)
				}
			}
			if s.IsExport {
				js_ast.ForEachIdentifierBindingInDecls(s.Decls, func(loc logger.Loc, id *js_ast.BIdentifier) {
					b.addExport(b.symbols[id.Ref.InnerIndex].OriginalName, id.Ref, loc)
				})
			}

		case *js_ast.SExportDefault:
			b.declareExportDefault(s)

		case *js_ast.SExportFrom:
			for j := range s.Items {
				item := &s.Items[j]
				ref := b.newSymbol(js_ast.SymbolImport, item.OriginalName)
				b.moduleScope.Generated = append(b.moduleScope.Generated, ref)
				item.Name.Ref = ref
				b.namedImports[ref] = js_ast.NamedImport{
					Alias:             item.OriginalName,
					AliasLoc:          item.Name.Loc,
					NamespaceRef:      s.NamespaceRef,
					ImportRecordIndex: s.ImportRecordIndex,
					IsExported:        true,
				}
				b.addExport(item.Alias, ref, item.AliasLoc)
			}

		case *js_ast.SExportStar:
			if s.Alias == nil {
				b.exportStarImportRecords = append(b.exportStarImportRecords, s.ImportRecordIndex)
				break
			}

			// "export * as ns from 'path'"
			ref := b.newSymbol(js_ast.SymbolImport, s.Alias.OriginalName)
			b.moduleScope.Generated = append(b.moduleScope.Generated, ref)
			s.NamespaceRef = ref
			b.namedImports[ref] = js_ast.NamedImport{
				AliasLoc:          s.Alias.Loc,
				NamespaceRef:      ref,
				ImportRecordIndex: s.ImportRecordIndex,
				AliasIsStar:       true,
				IsExported:        true,
			}
			b.addExport(s.Alias.OriginalName, ref, s.Alias.Loc)
		}
	}
}

func (b *binder) declareImport(s *js_ast.SImport, partIndex uint32) {
	if s.StarNameLoc != nil {
		ref := b.declareSymbol(js_ast.SymbolImport, *s.StarNameLoc, b.loadName(s.NamespaceRef))
		s.NamespaceRef = ref
		b.namedImports[ref] = js_ast.NamedImport{
			AliasLoc:          *s.StarNameLoc,
			NamespaceRef:      ref,
			ImportRecordIndex: s.ImportRecordIndex,
			AliasIsStar:       true,
		}
		b.starImportParts[ref] = partIndex
	}

	if s.DefaultName != nil {
		ref := b.declareSymbol(js_ast.SymbolImport, s.DefaultName.Loc, b.loadName(s.DefaultName.Ref))
		s.DefaultName.Ref = ref
		b.namedImports[ref] = js_ast.NamedImport{
			Alias:             "default",
			AliasLoc:          s.DefaultName.Loc,
			NamespaceRef:      s.NamespaceRef,
			ImportRecordIndex: s.ImportRecordIndex,
		}
	}

	if s.Items != nil {
		for i := range *s.Items {
			item := &(*s.Items)[i]
			ref := b.declareSymbol(js_ast.SymbolImport, item.Name.Loc, b.loadName(item.Name.Ref))
			item.Name.Ref = ref
			b.namedImports[ref] = js_ast.NamedImport{
				Alias:             item.Alias,
				AliasLoc:          item.AliasLoc,
				NamespaceRef:      s.NamespaceRef,
				ImportRecordIndex: s.ImportRecordIndex,
			}
		}
	}
}

func (b *binder) declareExportDefault(s *js_ast.SExportDefault) {
	if s.Value.Stmt != nil {
		switch s2 := s.Value.Stmt.Data.(type) {
		case *js_ast.SFunction:
			if s2.Fn.Name != nil {
				// "export default function foo() {}"
				s2.Fn.Name.Ref = b.declareSymbol(js_ast.SymbolHoistedFunction, s2.Fn.Name.Loc, b.loadName(s2.Fn.Name.Ref))
				s.DefaultName.Ref = s2.Fn.Name.Ref
			} else {
				// "export default function() {}"
				s.DefaultName.Ref = b.newDefaultSymbol()
				s2.Fn.Name = &js_ast.LocRef{Loc: s.DefaultName.Loc, Ref: s.DefaultName.Ref}
			}

		case *js_ast.SClass:
			if s2.Class.Name != nil {
				// "export default class Foo {}"
				s2.Class.Name.Ref = b.declareSymbol(js_ast.SymbolClass, s2.Class.Name.Loc, b.loadName(s2.Class.Name.Ref))
				s.DefaultName.Ref = s2.Class.Name.Ref
			} else {
				// "export default class {}"
				s.DefaultName.Ref = b.newDefaultSymbol()
				s2.Class.Name = &js_ast.LocRef{Loc: s.DefaultName.Loc, Ref: s.DefaultName.Ref}
			}
		}
	} else {
		// "export default 123"
		s.DefaultName.Ref = b.newDefaultSymbol()
	}

	b.addExport("default", s.DefaultName.Ref, s.DefaultName.Loc)
}

func (b *binder) newDefaultSymbol() js_ast.Ref {
	ref := b.newSymbol(js_ast.SymbolGenerated, b.source.IdentifierName+"_default")
	b.moduleScope.Generated = append(b.moduleScope.Generated, ref)
	return ref
}

// Returns the import item that stands in for "ns.prop", creating it the
// first time the property is accessed
func (b *binder) importItemForNamespace(nsRef js_ast.Ref, alias string, aliasLoc logger.Loc, partIndex uint32) js_ast.Ref {
	items := b.importItemsForNamespace[nsRef]
	if items == nil {
		items = make(map[string]js_ast.Ref)
		b.importItemsForNamespace[nsRef] = items
	}
	if ref, ok := items[alias]; ok {
		return ref
	}

	ref := b.newSymbol(js_ast.SymbolImport, alias)
	b.symbols[ref.InnerIndex].NamespaceAlias = &js_ast.NamespaceAlias{NamespaceRef: nsRef, Alias: alias}
	b.moduleScope.Generated = append(b.moduleScope.Generated, ref)
	items[alias] = ref

	nsImport := b.namedImports[nsRef]
	b.namedImports[ref] = js_ast.NamedImport{
		Alias:             alias,
		AliasLoc:          aliasLoc,
		NamespaceRef:      nsRef,
		ImportRecordIndex: nsImport.ImportRecordIndex,
	}
	b.generatedImportItems = append(b.generatedImportItems, generatedImportItem{partIndex: partIndex, ref: ref})
	return ref
}

func (b *binder) visitStmtsInScope(kind js_ast.ScopeKind, stmts []js_ast.Stmt) {
	b.pushScope(kind)
	b.declareStmts(stmts, false /* isModuleScope */)
	for _, stmt := range stmts {
		b.visitStmt(stmt)
	}
	b.popScope()
}

// The body of "if", loops, and labels is a statement that gets its own scope
func (b *binder) visitSingleStmt(stmt js_ast.Stmt) {
	if s, ok := stmt.Data.(*js_ast.SBlock); ok {
		b.visitStmtsInScope(js_ast.ScopeBlock, s.Stmts)
		return
	}
	b.visitStmtsInScope(js_ast.ScopeBlock, []js_ast.Stmt{stmt})
}

func (b *binder) isTopLevel() bool {
	return b.currentScope == b.moduleScope
}

func (b *binder) visitStmt(stmt js_ast.Stmt) {
	switch s := stmt.Data.(type) {
	case *js_ast.SEmpty, *js_ast.SDebugger, *js_ast.SDirective, *js_ast.SBreak, *js_ast.SContinue:

	case *js_ast.SImport:
		if b.isTopLevel() {
			if s.StarNameLoc != nil {
				b.recordDeclaredSymbol(s.NamespaceRef)
			}
			if s.DefaultName != nil {
				b.recordDeclaredSymbol(s.DefaultName.Ref)
			}
			if s.Items != nil {
				for _, item := range *s.Items {
					b.recordDeclaredSymbol(item.Name.Ref)
				}
			}
		}
		b.recordImportRecord(s.ImportRecordIndex)

	case *js_ast.SExportClause:
		for i := range s.Items {
			item := &s.Items[i]
			name := b.loadName(item.Name.Ref)
			member, ok := b.moduleScope.Members[name]
			if !ok || b.symbols[member.Ref.InnerIndex].Kind == js_ast.SymbolUnbound {
				b.addError(js_lexer.RangeOfIdentifier(b.source, item.Name.Loc), fmt.Sprintf("%q is not declared in this file", name))
				continue
			}
			item.Name.Ref = member.Ref
			b.addExport(item.Alias, member.Ref, item.AliasLoc)
		}

	case *js_ast.SExportFrom:
		for _, item := range s.Items {
			b.recordDeclaredSymbol(item.Name.Ref)
		}
		b.recordImportRecord(s.ImportRecordIndex)

	case *js_ast.SExportStar:
		if s.Alias != nil {
			b.recordDeclaredSymbol(s.NamespaceRef)
		}
		b.recordImportRecord(s.ImportRecordIndex)

	case *js_ast.SExportDefault:
		if s.Value.Expr != nil {
			b.recordDeclaredSymbol(s.DefaultName.Ref)
			b.visitExpr(s.Value.Expr)
		} else {
			b.visitStmt(*s.Value.Stmt)
		}

	case *js_ast.SBlock:
		b.visitStmtsInScope(js_ast.ScopeBlock, s.Stmts)

	case *js_ast.SExpr:
		b.visitExpr(&s.Value)

	case *js_ast.SThrow:
		b.visitExpr(&s.Value)

	case *js_ast.SReturn:
		if s.ValueOrNil.Data != nil {
			b.visitExpr(&s.ValueOrNil)
		}

	case *js_ast.SLocal:
		for i := range s.Decls {
			decl := &s.Decls[i]
			b.visitBinding(decl.Binding)
			if decl.ValueOrNil.Data != nil {
				b.visitExpr(&decl.ValueOrNil)
			}
		}

		if s.Kind == js_ast.LocalVar {
			js_ast.ForEachIdentifierBindingInDecls(s.Decls, func(loc logger.Loc, id *js_ast.BIdentifier) {
				b.checkVarThroughBlocks(loc, id.Ref)
			})
		}

		if b.isTopLevel() || (s.Kind == js_ast.LocalVar && b.fnScope == b.moduleScope) {
			js_ast.ForEachIdentifierBindingInDecls(s.Decls, func(loc logger.Loc, id *js_ast.BIdentifier) {
				b.recordDeclaredSymbol(id.Ref)
			})
		}

	case *js_ast.SFunction:
		if b.isTopLevel() {
			b.recordDeclaredSymbol(s.Fn.Name.Ref)
		}
		b.visitFn(&s.Fn, false /* isExpr */)

	case *js_ast.SClass:
		if b.isTopLevel() {
			b.recordDeclaredSymbol(s.Class.Name.Ref)
		}
		b.visitClass(&s.Class)

	case *js_ast.SLabel:
		b.visitSingleStmt(s.Stmt)

	case *js_ast.SIf:
		b.visitExpr(&s.Test)
		b.visitSingleStmt(s.Yes)
		if s.NoOrNil.Data != nil {
			b.visitSingleStmt(s.NoOrNil)
		}

	case *js_ast.SFor:
		b.pushScope(js_ast.ScopeBlock)
		if s.InitOrNil.Data != nil {
			b.declareStmts([]js_ast.Stmt{s.InitOrNil}, false /* isModuleScope */)
			b.visitStmt(s.InitOrNil)
		}
		if s.TestOrNil.Data != nil {
			b.visitExpr(&s.TestOrNil)
		}
		if s.UpdateOrNil.Data != nil {
			b.visitExpr(&s.UpdateOrNil)
		}
		b.visitSingleStmt(s.Body)
		b.popScope()

	case *js_ast.SForIn:
		b.pushScope(js_ast.ScopeBlock)
		b.visitForLoopInit(s.Init)
		b.visitExpr(&s.Value)
		b.visitSingleStmt(s.Body)
		b.popScope()

	case *js_ast.SForOf:
		b.pushScope(js_ast.ScopeBlock)
		b.visitForLoopInit(s.Init)
		b.visitExpr(&s.Value)
		b.visitSingleStmt(s.Body)
		b.popScope()

	case *js_ast.SDoWhile:
		b.visitSingleStmt(s.Body)
		b.visitExpr(&s.Test)

	case *js_ast.SWhile:
		b.visitExpr(&s.Test)
		b.visitSingleStmt(s.Body)

	case *js_ast.SWith:
		b.visitExpr(&s.Value)
		b.pushScope(js_ast.ScopeWith)
		b.visitSingleStmt(s.Body)
		b.popScope()

	case *js_ast.STry:
		b.visitStmtsInScope(js_ast.ScopeBlock, s.Body)

		if s.Catch != nil {
			b.pushScope(js_ast.ScopeCatchBinding)
			if s.Catch.BindingOrNil.Data != nil {
				kind := js_ast.SymbolOther
				if _, ok := s.Catch.BindingOrNil.Data.(*js_ast.BIdentifier); ok {
					kind = js_ast.SymbolCatchIdentifier
				}
				b.declareBinding(s.Catch.BindingOrNil, kind)
				b.visitBinding(s.Catch.BindingOrNil)
			}
			b.visitStmtsInScope(js_ast.ScopeBlock, s.Catch.Body)
			b.popScope()
		}

		if s.Finally != nil {
			b.visitStmtsInScope(js_ast.ScopeBlock, s.Finally.Stmts)
		}

	case *js_ast.SSwitch:
		b.visitExpr(&s.Test)

		// All cases share the same scope
		b.pushScope(js_ast.ScopeBlock)
		for _, c := range s.Cases {
			b.declareStmts(c.Body, false /* isModuleScope */)
		}
		for i := range s.Cases {
			c := &s.Cases[i]
			if c.ValueOrNil.Data != nil {
				b.visitExpr(&c.ValueOrNil)
			}
			for _, stmt := range c.Body {
				b.visitStmt(stmt)
			}
		}
		b.popScope()

	default:
		panic(fmt.Sprintf("Unexpected statement of type %T", stmt.Data))
	}
}

func (b *binder) visitForLoopInit(init js_ast.Stmt) {
	if s, ok := init.Data.(*js_ast.SExpr); ok {
		b.visitAssignTarget(&s.Value)
		return
	}
	b.declareStmts([]js_ast.Stmt{init}, false /* isModuleScope */)
	b.visitStmt(init)
}

// A "var" in a nested block must not collide with a block-scoped declaration
// of the same name in any of the blocks it is hoisted through
func (b *binder) checkVarThroughBlocks(loc logger.Loc, ref js_ast.Ref) {
	name := b.symbols[ref.InnerIndex].OriginalName
	for s := b.currentScope; s != nil && s != b.fnScope; s = s.Parent {
		if member, ok := s.Members[name]; ok && member.Ref != ref &&
			b.symbols[member.Ref.InnerIndex].Kind != js_ast.SymbolCatchIdentifier {
			b.reportDuplicate(name, member.Loc, loc)
			return
		}
	}
}

func (b *binder) visitBinding(binding js_ast.Binding) {
	switch d := binding.Data.(type) {
	case *js_ast.BMissing, *js_ast.BIdentifier:

	case *js_ast.BArray:
		for i := range d.Items {
			item := &d.Items[i]
			b.visitBinding(item.Binding)
			if item.DefaultValue.Data != nil {
				b.visitExpr(&item.DefaultValue)
			}
		}

	case *js_ast.BObject:
		for i := range d.Properties {
			property := &d.Properties[i]
			if property.IsComputed {
				b.visitExpr(&property.Key)
			}
			b.visitBinding(property.Value)
			if property.DefaultValue.Data != nil {
				b.visitExpr(&property.DefaultValue)
			}
		}

	default:
		panic("Internal error")
	}
}

func (b *binder) visitFn(fn *js_ast.Fn, isExpr bool) {
	// The name of a function expression is only visible inside the function
	if isExpr && fn.Name != nil {
		b.pushScope(js_ast.ScopeFunctionArgs)
		fn.Name.Ref = b.declareSymbol(js_ast.SymbolHoistedFunction, fn.Name.Loc, b.loadName(fn.Name.Ref))
	}

	b.visitArgsAndBody(fn.Args, &fn.Body)

	if isExpr && fn.Name != nil {
		b.popScope()
	}
}

func (b *binder) visitArgsAndBody(args []js_ast.Arg, body *js_ast.FnBody) {
	b.pushScope(js_ast.ScopeFunctionBody)
	oldFnScope := b.fnScope
	b.fnScope = b.currentScope

	// Duplicate parameter names are not allowed in strict mode
	argLocs := make(map[string]logger.Loc)
	for _, arg := range args {
		js_ast.ForEachIdentifierBinding(arg.Binding, func(loc logger.Loc, id *js_ast.BIdentifier) {
			name := b.loadName(id.Ref)
			if first, ok := argLocs[name]; ok {
				b.reportDuplicate(name, first, loc)
			}
			argLocs[name] = loc
			id.Ref = b.declareSymbol(js_ast.SymbolHoisted, loc, name)
		})
	}

	b.hoistVarDecls(body.Stmts)
	b.declareStmts(body.Stmts, false /* isModuleScope */)

	for i := range args {
		arg := &args[i]
		b.visitBinding(arg.Binding)
		if arg.DefaultOrNil.Data != nil {
			b.visitExpr(&arg.DefaultOrNil)
		}
	}
	for _, stmt := range body.Stmts {
		b.visitStmt(stmt)
	}

	b.fnScope = oldFnScope
	b.popScope()
}

func (b *binder) visitClass(class *js_ast.Class) {
	if class.ExtendsOrNil.Data != nil {
		b.visitExpr(&class.ExtendsOrNil)
	}

	b.pushScope(js_ast.ScopeClassBody)

	for i := range class.Properties {
		property := &class.Properties[i]

		if property.Kind == js_ast.PropertyClassStaticBlock {
			b.pushScope(js_ast.ScopeFunctionBody)
			oldFnScope := b.fnScope
			b.fnScope = b.currentScope
			b.hoistVarDecls(property.StaticBlock.Stmts)
			b.declareStmts(property.StaticBlock.Stmts, false /* isModuleScope */)
			for _, stmt := range property.StaticBlock.Stmts {
				b.visitStmt(stmt)
			}
			b.fnScope = oldFnScope
			b.popScope()
			continue
		}

		if property.IsComputed {
			b.visitExpr(&property.Key)
		}
		if property.ValueOrNil.Data != nil {
			b.visitExpr(&property.ValueOrNil)
		}
		if property.InitializerOrNil.Data != nil {
			b.visitExpr(&property.InitializerOrNil)
		}
	}

	b.popScope()
}

func (b *binder) visitIdentifier(e *js_ast.EIdentifier) {
	e.Ref = b.findSymbol(b.loadName(e.Ref))
	b.recordUsage(e.Ref)
}

// Destructuring assignment targets are expressions that bind nothing
func (b *binder) visitAssignTarget(expr *js_ast.Expr) {
	switch e := expr.Data.(type) {
	case *js_ast.EIdentifier:
		b.visitIdentifier(e)
		if symbol := &b.symbols[e.Ref.InnerIndex]; symbol.Kind == js_ast.SymbolImport {
			b.addError(js_lexer.RangeOfIdentifier(b.source, expr.Loc), fmt.Sprintf("Cannot assign to import %q", symbol.OriginalName))
		}

	case *js_ast.EDot:
		b.visitExpr(&e.Target)

	case *js_ast.EIndex:
		b.visitExpr(&e.Target)
		b.visitExpr(&e.Index)

	case *js_ast.EArray:
		for i := range e.Items {
			b.visitAssignTargetWithDefault(&e.Items[i])
		}

	case *js_ast.EObject:
		for i := range e.Properties {
			property := &e.Properties[i]
			if property.IsComputed {
				b.visitExpr(&property.Key)
			}
			if property.ValueOrNil.Data != nil {
				b.visitAssignTargetWithDefault(&property.ValueOrNil)
			}
			if property.InitializerOrNil.Data != nil {
				b.visitExpr(&property.InitializerOrNil)
			}
		}

	default:
		b.visitExpr(expr)
	}
}

func (b *binder) visitAssignTargetWithDefault(expr *js_ast.Expr) {
	switch e := expr.Data.(type) {
	case *js_ast.EMissing:

	case *js_ast.ESpread:
		b.visitAssignTarget(&e.Value)

	case *js_ast.EBinary:
		if e.Op == js_ast.BinOpAssign {
			b.visitAssignTarget(&e.Left)
			b.visitExpr(&e.Right)
			return
		}
		b.visitExpr(expr)

	default:
		b.visitAssignTarget(expr)
	}
}

func (b *binder) visitExprs(exprs []js_ast.Expr) {
	for i := range exprs {
		b.visitExpr(&exprs[i])
	}
}

func (b *binder) visitExpr(expr *js_ast.Expr) {
	switch e := expr.Data.(type) {
	case *js_ast.EMissing, *js_ast.EBoolean, *js_ast.ENull, *js_ast.EUndefined, *js_ast.ENumber,
		*js_ast.EBigInt, *js_ast.EString, *js_ast.ERegExp, *js_ast.EThis, *js_ast.ESuper,
		*js_ast.ENewTarget, *js_ast.EImportMeta, *js_ast.EPrivateName:

	case *js_ast.EIdentifier:
		name := b.loadName(e.Ref)
		ref := b.findSymbol(name)

		// "undefined" is only a constant if nothing shadows it
		if name == "undefined" && b.symbols[ref.InnerIndex].Kind == js_ast.SymbolUnbound {
			expr.Data = &js_ast.EUndefined{}
			return
		}

		e.Ref = ref
		b.recordUsage(ref)

	case *js_ast.EDot:
		// Property accesses on a namespace import are bound to the export with
		// that name, which lets unused exports be tree shaken away
		if id, ok := e.Target.Data.(*js_ast.EIdentifier); ok && !e.OptionalChain {
			nsRef := b.findSymbol(b.loadName(id.Ref))
			if partIndex, ok := b.starImportParts[nsRef]; ok {
				itemRef := b.importItemForNamespace(nsRef, e.Name, e.NameLoc, partIndex)
				expr.Data = &js_ast.EIdentifier{Ref: itemRef}
				b.recordUsage(itemRef)
				return
			}
		}
		b.visitExpr(&e.Target)

	case *js_ast.EIndex:
		b.visitExpr(&e.Target)
		b.visitExpr(&e.Index)

	case *js_ast.ECall:
		b.visitExpr(&e.Target)
		b.visitExprs(e.Args)

	case *js_ast.ENew:
		b.visitExpr(&e.Target)
		b.visitExprs(e.Args)

	case *js_ast.EUnary:
		if e.Op.IsUpdate() {
			b.visitAssignTarget(&e.Value)
		} else {
			b.visitExpr(&e.Value)
		}

	case *js_ast.EBinary:
		if e.Op.IsAssign() {
			b.visitAssignTarget(&e.Left)
		} else {
			b.visitExpr(&e.Left)
		}
		b.visitExpr(&e.Right)

	case *js_ast.EIf:
		b.visitExpr(&e.Test)
		b.visitExpr(&e.Yes)
		b.visitExpr(&e.No)

	case *js_ast.EArray:
		b.visitExprs(e.Items)

	case *js_ast.ESpread:
		b.visitExpr(&e.Value)

	case *js_ast.EAwait:
		b.visitExpr(&e.Value)

	case *js_ast.EYield:
		if e.ValueOrNil.Data != nil {
			b.visitExpr(&e.ValueOrNil)
		}

	case *js_ast.ETemplate:
		if e.TagOrNil.Data != nil {
			b.visitExpr(&e.TagOrNil)
		}
		for i := range e.Parts {
			b.visitExpr(&e.Parts[i].Value)
		}

	case *js_ast.EObject:
		for i := range e.Properties {
			property := &e.Properties[i]
			if property.IsComputed {
				b.visitExpr(&property.Key)
			}
			if property.ValueOrNil.Data != nil {
				b.visitExpr(&property.ValueOrNil)
			}
			if property.InitializerOrNil.Data != nil {
				b.visitExpr(&property.InitializerOrNil)
			}
		}

	case *js_ast.EArrow:
		b.visitArgsAndBody(e.Args, &e.Body)

	case *js_ast.EFunction:
		b.visitFn(&e.Fn, true /* isExpr */)

	case *js_ast.EClass:
		if e.Class.Name != nil {
			b.pushScope(js_ast.ScopeClassName)
			e.Class.Name.Ref = b.declareSymbol(js_ast.SymbolClass, e.Class.Name.Loc, b.loadName(e.Class.Name.Ref))
			b.visitClass(&e.Class)
			b.popScope()
		} else {
			b.visitClass(&e.Class)
		}

	case *js_ast.EImportCall:
		b.visitExpr(&e.Expr)
		if e.ImportRecordIndex.IsValid() {
			b.recordImportRecord(e.ImportRecordIndex.GetIndex())
		}

	default:
		panic(fmt.Sprintf("Unexpected expression of type %T", expr.Data))
	}
}
