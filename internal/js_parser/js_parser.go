package js_parser

// This parser does two passes over the file. The first pass parses the source
// into a tree but does not declare or bind any symbols, since that is pretty
// much impossible to do correctly in a single pass with the grammar
// ambiguities around arrow functions and destructuring. Identifier names are
// stashed in the refs of the tree. The second pass ("binder.go") builds
// scopes, declares every symbol, binds every identifier to its symbol and
// splits the top level into parts.

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_lexer"
	"github.com/esmlink/esmlink/internal/logger"
)

type fnOpts struct {
	allowAwait bool
	allowYield bool
}

type parser struct {
	log            logger.Log
	source         logger.Source
	options        Options
	lexer          js_lexer.Lexer
	importRecords  []ast.ImportRecord
	allowIn        bool
	currentFnOpts  fnOpts
	allocatedNames []string
	hashbang       string

	// The range of a "{a = 1}" shorthand default in an object literal. This is
	// only valid if the object literal turns out to be a destructuring target,
	// so the error is deferred until we know.
	deferredDefault logger.Range
}

// Refs created by the first pass don't point to symbols yet. Instead, the
// inner index points into "allocatedNames" and the source index is this
// marker. The binder replaces every such ref with a real one, so a marker ref
// that survives the binder is a bug.
const nameRefMarker = ^uint32(0) - 1

// The name is temporarily stored in the ref until the binding pass happens,
// at which point a symbol will be generated and the ref will point to the
// symbol instead.
func (p *parser) storeNameInRef(name string) js_ast.Ref {
	ref := js_ast.Ref{SourceIndex: nameRefMarker, InnerIndex: uint32(len(p.allocatedNames))}
	p.allocatedNames = append(p.allocatedNames, name)
	return ref
}

func (p *parser) addRangeError(r logger.Range, text string) {
	p.log.AddError(&p.source, r, logger.MsgID_ParseError, text)
}

func (p *parser) addImportRecord(kind ast.ImportKind, loc logger.Loc, text string, flags ast.ImportRecordFlags) uint32 {
	index := uint32(len(p.importRecords))
	p.importRecords = append(p.importRecords, ast.ImportRecord{
		Kind:  kind,
		Range: p.source.RangeOfString(loc),
		Path:  logger.Path{Text: text},
		Flags: flags,
	})
	return index
}

type parseStmtOpts struct {
	allowImportAndExport bool
	isExport             bool
	isNameOptional       bool // For "export default" pseudo-statements
}

// This assumes the "function" token has already been parsed
func (p *parser) parseFnStmt(loc logger.Loc, opts parseStmtOpts, isAsync bool) js_ast.Stmt {
	isGenerator := p.lexer.Token == js_lexer.TAsterisk
	if isGenerator {
		p.lexer.Next()
	}

	var name *js_ast.LocRef
	if !opts.isNameOptional || p.lexer.Token == js_lexer.TIdentifier {
		name = &js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}
	}

	fn := p.parseFn(name, fnOpts{
		allowAwait: isAsync,
		allowYield: isGenerator,
	})
	return js_ast.Stmt{Loc: loc, Data: &js_ast.SFunction{Fn: fn, IsExport: opts.isExport}}
}

func (p *parser) parsePath() (logger.Loc, string) {
	loc := p.lexer.Loc()
	text := p.lexer.StringLiteral
	if p.lexer.Token == js_lexer.TNoSubstitutionTemplateLiteral {
		p.lexer.Next()
	} else {
		p.lexer.Expect(js_lexer.TStringLiteral)
	}
	return loc, text
}

func (p *parser) parseStmt(opts parseStmtOpts) js_ast.Stmt {
	loc := p.lexer.Loc()

	switch p.lexer.Token {
	case js_lexer.TSemicolon:
		p.lexer.Next()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SEmpty{}}

	case js_lexer.TExport:
		if !opts.allowImportAndExport {
			p.lexer.Unexpected()
		}
		p.lexer.Next()

		switch p.lexer.Token {
		case js_lexer.TClass, js_lexer.TConst, js_lexer.TFunction, js_lexer.TVar:
			opts.isExport = true
			return p.parseStmt(opts)

		case js_lexer.TIdentifier:
			if p.lexer.IsContextualKeyword("let") {
				opts.isExport = true
				return p.parseStmt(opts)
			}
			if p.lexer.IsContextualKeyword("async") {
				p.lexer.Next()
				p.lexer.Expect(js_lexer.TFunction)
				opts.isExport = true
				return p.parseFnStmt(loc, opts, true /* isAsync */)
			}
			p.lexer.Unexpected()
			return js_ast.Stmt{}

		case js_lexer.TDefault:
			defaultLoc := p.lexer.Loc()
			p.lexer.Next()

			// The name of the default export is generated by the binder
			name := js_ast.LocRef{Loc: defaultLoc, Ref: js_ast.InvalidRef}

			if p.lexer.Token == js_lexer.TFunction || p.lexer.Token == js_lexer.TClass {
				stmt := p.parseStmt(parseStmtOpts{isNameOptional: true})
				return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportDefault{DefaultName: name, Value: js_ast.ExprOrStmt{Stmt: &stmt}}}
			}

			if p.lexer.IsContextualKeyword("async") {
				asyncLoc := p.lexer.Loc()
				p.lexer.Next()
				if p.lexer.Token == js_lexer.TFunction && !p.lexer.HasNewlineBefore {
					p.lexer.Next()
					stmt := p.parseFnStmt(asyncLoc, parseStmtOpts{isNameOptional: true}, true /* isAsync */)
					return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportDefault{DefaultName: name, Value: js_ast.ExprOrStmt{Stmt: &stmt}}}
				}
				expr := p.parseSuffix(p.parseAsyncPrefixExpr(asyncLoc, js_ast.LComma), js_ast.LComma)
				p.lexer.ExpectOrInsertSemicolon()
				return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportDefault{DefaultName: name, Value: js_ast.ExprOrStmt{Expr: &expr}}}
			}

			expr := p.parseExpr(js_ast.LComma)
			p.lexer.ExpectOrInsertSemicolon()
			return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportDefault{DefaultName: name, Value: js_ast.ExprOrStmt{Expr: &expr}}}

		case js_lexer.TAsterisk:
			p.lexer.Next()
			var alias *js_ast.ExportStarAlias
			flags := ast.IsReexport | ast.IsExportStar
			if p.lexer.IsContextualKeyword("as") {
				// "export * as ns from 'path'"
				p.lexer.Next()
				name := p.parseClauseAlias()
				alias = &js_ast.ExportStarAlias{Loc: p.lexer.Loc(), OriginalName: name}
				p.lexer.Next()
				flags |= ast.ContainsImportStar
			}
			p.lexer.ExpectContextualKeyword("from")
			pathLoc, pathText := p.parsePath()
			p.lexer.ExpectOrInsertSemicolon()
			importRecordIndex := p.addImportRecord(ast.ImportStmt, pathLoc, pathText, flags)
			return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportStar{
				NamespaceRef:      js_ast.InvalidRef,
				Alias:             alias,
				ImportRecordIndex: importRecordIndex,
			}}

		case js_lexer.TOpenBrace:
			items, firstKeywordItemLoc := p.parseExportClause()
			if p.lexer.IsContextualKeyword("from") {
				p.lexer.Next()
				pathLoc, pathText := p.parsePath()
				importRecordIndex := p.addImportRecord(ast.ImportStmt, pathLoc, pathText, ast.IsReexport)
				p.lexer.ExpectOrInsertSemicolon()
				return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportFrom{
					Items:             items,
					NamespaceRef:      js_ast.InvalidRef,
					ImportRecordIndex: importRecordIndex,
				}}
			}

			// A keyword can only be exported by name in an "export from" statement
			if firstKeywordItemLoc.Start != 0 {
				r := js_lexer.RangeOfIdentifier(p.source, firstKeywordItemLoc)
				p.lexer.AddRangeErrorAndPanic(r, fmt.Sprintf("Expected identifier but found %q", p.source.TextForRange(r)))
			}

			p.lexer.ExpectOrInsertSemicolon()
			return js_ast.Stmt{Loc: loc, Data: &js_ast.SExportClause{Items: items}}

		default:
			p.lexer.Unexpected()
			return js_ast.Stmt{}
		}

	case js_lexer.TFunction:
		p.lexer.Next()
		return p.parseFnStmt(loc, opts, false /* isAsync */)

	case js_lexer.TClass:
		p.lexer.Next()
		var name *js_ast.LocRef
		if !opts.isNameOptional || p.lexer.Token == js_lexer.TIdentifier {
			name = &js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}
		}
		class := p.parseClass(name)
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SClass{Class: class, IsExport: opts.isExport}}

	case js_lexer.TVar:
		p.lexer.Next()
		decls := p.parseDecls()
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SLocal{Kind: js_ast.LocalVar, Decls: decls, IsExport: opts.isExport}}

	case js_lexer.TConst:
		p.lexer.Next()
		decls := p.parseDecls()
		p.lexer.ExpectOrInsertSemicolon()
		p.requireInitializers(decls)
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SLocal{Kind: js_ast.LocalConst, Decls: decls, IsExport: opts.isExport}}

	case js_lexer.TIf:
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TOpenParen)
		test := p.parseExpr(js_ast.LLowest)
		p.lexer.Expect(js_lexer.TCloseParen)
		yes := p.parseStmt(parseStmtOpts{})
		var no js_ast.Stmt
		if p.lexer.Token == js_lexer.TElse {
			p.lexer.Next()
			no = p.parseStmt(parseStmtOpts{})
		}
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SIf{Test: test, Yes: yes, NoOrNil: no}}

	case js_lexer.TDo:
		p.lexer.Next()
		body := p.parseStmt(parseStmtOpts{})
		p.lexer.Expect(js_lexer.TWhile)
		p.lexer.Expect(js_lexer.TOpenParen)
		test := p.parseExpr(js_ast.LLowest)
		p.lexer.Expect(js_lexer.TCloseParen)

		// This is a weird corner case where automatic semicolon insertion applies
		// even without a newline present
		if p.lexer.Token == js_lexer.TSemicolon {
			p.lexer.Next()
		}
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SDoWhile{Body: body, Test: test}}

	case js_lexer.TWhile:
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TOpenParen)
		test := p.parseExpr(js_ast.LLowest)
		p.lexer.Expect(js_lexer.TCloseParen)
		body := p.parseStmt(parseStmtOpts{})
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SWhile{Test: test, Body: body}}

	case js_lexer.TWith:
		// Module code is always strict mode code
		p.addRangeError(p.lexer.Range(), "With statements cannot be used in strict mode")
		panic(js_lexer.LexerPanic{})

	case js_lexer.TSwitch:
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TOpenParen)
		test := p.parseExpr(js_ast.LLowest)
		p.lexer.Expect(js_lexer.TCloseParen)
		p.lexer.Expect(js_lexer.TOpenBrace)
		cases := []js_ast.Case{}
		foundDefault := false

		for p.lexer.Token != js_lexer.TCloseBrace {
			var value js_ast.Expr
			body := []js_ast.Stmt{}

			if p.lexer.Token == js_lexer.TDefault {
				if foundDefault {
					p.addRangeError(p.lexer.Range(), "Multiple default clauses are not allowed")
					panic(js_lexer.LexerPanic{})
				}
				foundDefault = true
				p.lexer.Next()
				p.lexer.Expect(js_lexer.TColon)
			} else {
				p.lexer.Expect(js_lexer.TCase)
				value = p.parseExpr(js_ast.LLowest)
				p.lexer.Expect(js_lexer.TColon)
			}

		caseBody:
			for {
				switch p.lexer.Token {
				case js_lexer.TCloseBrace, js_lexer.TCase, js_lexer.TDefault:
					break caseBody

				default:
					body = append(body, p.parseStmt(parseStmtOpts{}))
				}
			}

			cases = append(cases, js_ast.Case{ValueOrNil: value, Body: body})
		}

		p.lexer.Expect(js_lexer.TCloseBrace)
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SSwitch{Test: test, Cases: cases}}

	case js_lexer.TTry:
		p.lexer.Next()
		p.lexer.Expect(js_lexer.TOpenBrace)
		body := p.parseStmtsUpTo(js_lexer.TCloseBrace, parseStmtOpts{})
		p.lexer.Next()

		var catch *js_ast.Catch = nil
		var finally *js_ast.Finally = nil

		if p.lexer.Token == js_lexer.TCatch {
			catchLoc := p.lexer.Loc()
			p.lexer.Next()
			var binding js_ast.Binding

			// The catch binding is optional, and can be omitted
			if p.lexer.Token != js_lexer.TOpenBrace {
				p.lexer.Expect(js_lexer.TOpenParen)
				binding = p.parseBinding()
				p.lexer.Expect(js_lexer.TCloseParen)
			}

			p.lexer.Expect(js_lexer.TOpenBrace)
			stmts := p.parseStmtsUpTo(js_lexer.TCloseBrace, parseStmtOpts{})
			p.lexer.Next()
			catch = &js_ast.Catch{Loc: catchLoc, BindingOrNil: binding, Body: stmts}
		}

		if p.lexer.Token == js_lexer.TFinally || catch == nil {
			finallyLoc := p.lexer.Loc()
			p.lexer.Expect(js_lexer.TFinally)
			p.lexer.Expect(js_lexer.TOpenBrace)
			stmts := p.parseStmtsUpTo(js_lexer.TCloseBrace, parseStmtOpts{})
			p.lexer.Next()
			finally = &js_ast.Finally{Loc: finallyLoc, Stmts: stmts}
		}

		return js_ast.Stmt{Loc: loc, Data: &js_ast.STry{Body: body, Catch: catch, Finally: finally}}

	case js_lexer.TFor:
		return p.parseForStmt(loc)

	case js_lexer.TImport:
		return p.parseImportStmt(loc, opts)

	case js_lexer.TBreak:
		p.lexer.Next()
		name := p.parseLabelName()
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SBreak{Label: name}}

	case js_lexer.TContinue:
		p.lexer.Next()
		name := p.parseLabelName()
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SContinue{Label: name}}

	case js_lexer.TReturn:
		p.lexer.Next()
		var value js_ast.Expr
		if p.lexer.Token != js_lexer.TSemicolon &&
			!p.lexer.HasNewlineBefore &&
			p.lexer.Token != js_lexer.TCloseBrace &&
			p.lexer.Token != js_lexer.TEndOfFile {
			value = p.parseExpr(js_ast.LLowest)
		}
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SReturn{ValueOrNil: value}}

	case js_lexer.TThrow:
		p.lexer.Next()
		if p.lexer.HasNewlineBefore {
			p.addRangeError(logger.Range{Loc: logger.Loc{Start: loc.Start + 5}}, "Unexpected newline after \"throw\"")
			panic(js_lexer.LexerPanic{})
		}
		expr := p.parseExpr(js_ast.LLowest)
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SThrow{Value: expr}}

	case js_lexer.TDebugger:
		p.lexer.Next()
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SDebugger{}}

	case js_lexer.TOpenBrace:
		p.lexer.Next()
		stmts := p.parseStmtsUpTo(js_lexer.TCloseBrace, parseStmtOpts{})
		p.lexer.Next()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SBlock{Stmts: stmts}}

	default:
		isIdentifier := p.lexer.Token == js_lexer.TIdentifier
		name := p.lexer.Identifier

		var expr js_ast.Expr
		if isIdentifier && name == "async" {
			p.lexer.Next()
			if p.lexer.Token == js_lexer.TFunction && !p.lexer.HasNewlineBefore {
				p.lexer.Next()
				return p.parseFnStmt(loc, opts, true /* isAsync */)
			}
			expr = p.parseSuffix(p.parseAsyncPrefixExpr(loc, js_ast.LLowest), js_ast.LLowest)
		} else if isIdentifier && name == "let" {
			p.lexer.Next()

			// Module code is strict mode code, where "let" is always a keyword
			// when followed by something that could start a binding
			switch p.lexer.Token {
			case js_lexer.TIdentifier, js_lexer.TOpenBracket, js_lexer.TOpenBrace:
				decls := p.parseDecls()
				p.lexer.ExpectOrInsertSemicolon()
				return js_ast.Stmt{Loc: loc, Data: &js_ast.SLocal{Kind: js_ast.LocalLet, Decls: decls, IsExport: opts.isExport}}
			}
			expr = p.parseSuffix(js_ast.Expr{Loc: loc, Data: &js_ast.EIdentifier{Ref: p.storeNameInRef(name)}}, js_ast.LLowest)
		} else {
			expr = p.parseExpr(js_ast.LLowest)
		}

		// Parse a labeled statement
		if _, ok := expr.Data.(*js_ast.EIdentifier); ok && isIdentifier && p.lexer.Token == js_lexer.TColon {
			p.lexer.Next()
			stmt := p.parseStmt(parseStmtOpts{})
			return js_ast.Stmt{Loc: loc, Data: &js_ast.SLabel{Name: name, Stmt: stmt}}
		}

		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SExpr{Value: expr}}
	}
}

func (p *parser) parseForStmt(loc logger.Loc) js_ast.Stmt {
	p.lexer.Next()

	// "for await (let x of y) {}"
	isAwait := p.lexer.IsContextualKeyword("await")
	if isAwait {
		if !p.currentFnOpts.allowAwait {
			p.addRangeError(p.lexer.Range(), "Cannot use \"await\" outside an async function")
			panic(js_lexer.LexerPanic{})
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TOpenParen)

	var init js_ast.Stmt
	var test js_ast.Expr
	var update js_ast.Expr

	// "in" expressions aren't allowed here
	p.allowIn = false

	var decls []js_ast.Decl
	initLoc := p.lexer.Loc()
	isVar := false
	switch p.lexer.Token {
	case js_lexer.TVar:
		isVar = true
		p.lexer.Next()
		decls = p.parseDecls()
		init = js_ast.Stmt{Loc: initLoc, Data: &js_ast.SLocal{Kind: js_ast.LocalVar, Decls: decls}}

	case js_lexer.TConst:
		p.lexer.Next()
		decls = p.parseDecls()
		init = js_ast.Stmt{Loc: initLoc, Data: &js_ast.SLocal{Kind: js_ast.LocalConst, Decls: decls}}

	case js_lexer.TSemicolon:

	default:
		if p.lexer.IsContextualKeyword("let") {
			p.lexer.Next()
			decls = p.parseDecls()
			init = js_ast.Stmt{Loc: initLoc, Data: &js_ast.SLocal{Kind: js_ast.LocalLet, Decls: decls}}
		} else {
			init = js_ast.Stmt{Loc: initLoc, Data: &js_ast.SExpr{Value: p.parseExpr(js_ast.LLowest)}}
		}
	}

	// "in" expressions are allowed again
	p.allowIn = true

	// Detect for-of loops
	if p.lexer.IsContextualKeyword("of") || isAwait {
		if isAwait && !p.lexer.IsContextualKeyword("of") {
			if init.Data != nil {
				p.lexer.ExpectedString("\"of\"")
			} else {
				p.lexer.Unexpected()
			}
		}
		p.forbidInitializers(decls, "of", false)
		p.lexer.Next()
		value := p.parseExpr(js_ast.LComma)
		p.lexer.Expect(js_lexer.TCloseParen)
		body := p.parseStmt(parseStmtOpts{})
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SForOf{IsAwait: isAwait, Init: init, Value: value, Body: body}}
	}

	// Detect for-in loops
	if p.lexer.Token == js_lexer.TIn {
		p.forbidInitializers(decls, "in", isVar)
		p.lexer.Next()
		value := p.parseExpr(js_ast.LLowest)
		p.lexer.Expect(js_lexer.TCloseParen)
		body := p.parseStmt(parseStmtOpts{})
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SForIn{Init: init, Value: value, Body: body}}
	}

	// Only require "const" statement initializers when we know we're a normal for loop
	if local, ok := init.Data.(*js_ast.SLocal); ok && local.Kind == js_ast.LocalConst {
		p.requireInitializers(decls)
	}

	p.lexer.Expect(js_lexer.TSemicolon)

	if p.lexer.Token != js_lexer.TSemicolon {
		test = p.parseExpr(js_ast.LLowest)
	}

	p.lexer.Expect(js_lexer.TSemicolon)

	if p.lexer.Token != js_lexer.TCloseParen {
		update = p.parseExpr(js_ast.LLowest)
	}

	p.lexer.Expect(js_lexer.TCloseParen)
	body := p.parseStmt(parseStmtOpts{})
	return js_ast.Stmt{Loc: loc, Data: &js_ast.SFor{InitOrNil: init, TestOrNil: test, UpdateOrNil: update, Body: body}}
}

func (p *parser) parseImportStmt(loc logger.Loc, opts parseStmtOpts) js_ast.Stmt {
	p.lexer.Next()
	stmt := js_ast.SImport{NamespaceRef: js_ast.InvalidRef}
	var flags ast.ImportRecordFlags

	switch p.lexer.Token {
	case js_lexer.TOpenParen, js_lexer.TDot:
		// "import('path')"
		// "import.meta"
		expr := p.parseSuffix(p.parseImportExpr(loc, js_ast.LLowest), js_ast.LLowest)
		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Stmt{Loc: loc, Data: &js_ast.SExpr{Value: expr}}

	case js_lexer.TStringLiteral, js_lexer.TNoSubstitutionTemplateLiteral:
		// "import 'path'"
		if !opts.allowImportAndExport {
			p.lexer.Unexpected()
		}
		flags |= ast.WasOriginallyBareImport

	case js_lexer.TAsterisk:
		// "import * as ns from 'path'"
		if !opts.allowImportAndExport {
			p.lexer.Unexpected()
		}

		p.lexer.Next()
		p.lexer.ExpectContextualKeyword("as")
		starLoc := p.lexer.Loc()
		stmt.NamespaceRef = p.parseIdentifierRef()
		stmt.StarNameLoc = &starLoc
		p.lexer.ExpectContextualKeyword("from")
		flags |= ast.ContainsImportStar

	case js_lexer.TOpenBrace:
		// "import {item1, item2} from 'path'"
		if !opts.allowImportAndExport {
			p.lexer.Unexpected()
		}

		items := p.parseImportClause()
		stmt.Items = &items
		p.lexer.ExpectContextualKeyword("from")

	case js_lexer.TIdentifier:
		// "import defaultItem from 'path'"
		if !opts.allowImportAndExport {
			p.lexer.Unexpected()
		}

		stmt.DefaultName = &js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}

		if p.lexer.Token == js_lexer.TComma {
			p.lexer.Next()
			switch p.lexer.Token {
			case js_lexer.TAsterisk:
				// "import defaultItem, * as ns from 'path'"
				p.lexer.Next()
				p.lexer.ExpectContextualKeyword("as")
				starLoc := p.lexer.Loc()
				stmt.NamespaceRef = p.parseIdentifierRef()
				stmt.StarNameLoc = &starLoc
				flags |= ast.ContainsImportStar

			case js_lexer.TOpenBrace:
				// "import defaultItem, {item1, item2} from 'path'"
				items := p.parseImportClause()
				stmt.Items = &items

			default:
				p.lexer.Unexpected()
			}
		}

		p.lexer.ExpectContextualKeyword("from")

	default:
		p.lexer.Unexpected()
		return js_ast.Stmt{}
	}

	pathLoc, pathText := p.parsePath()
	stmt.ImportRecordIndex = p.addImportRecord(ast.ImportStmt, pathLoc, pathText, flags)
	p.lexer.ExpectOrInsertSemicolon()
	return js_ast.Stmt{Loc: loc, Data: &stmt}
}

func (p *parser) parseLabelName() string {
	if p.lexer.Token != js_lexer.TIdentifier || p.lexer.HasNewlineBefore {
		return ""
	}

	name := p.lexer.Identifier
	p.lexer.Next()
	return name
}

// An alias in an import or export clause may be a keyword or a string
func (p *parser) parseClauseAlias() string {
	if p.lexer.Token == js_lexer.TStringLiteral {
		return p.lexer.StringLiteral
	}
	if !p.lexer.IsIdentifierOrKeyword() {
		p.lexer.Expected(js_lexer.TIdentifier)
	}
	return p.lexer.Identifier
}

func (p *parser) parseImportClause() []js_ast.ClauseItem {
	items := []js_ast.ClauseItem{}
	p.lexer.Expect(js_lexer.TOpenBrace)

	for p.lexer.Token != js_lexer.TCloseBrace {
		isIdentifier := p.lexer.Token == js_lexer.TIdentifier
		aliasLoc := p.lexer.Loc()
		alias := p.parseClauseAlias()
		name := js_ast.LocRef{Loc: aliasLoc, Ref: p.storeNameInRef(alias)}
		originalName := alias
		p.lexer.Next()

		if p.lexer.IsContextualKeyword("as") {
			p.lexer.Next()
			originalName = p.lexer.Identifier
			name = js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}
		} else if !isIdentifier {
			// An import where the name is a keyword must have an alias
			p.lexer.ExpectedString("\"as\"")
		}

		items = append(items, js_ast.ClauseItem{
			Alias:        alias,
			AliasLoc:     aliasLoc,
			Name:         name,
			OriginalName: originalName,
		})

		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseBrace)
	return items
}

func (p *parser) parseExportClause() ([]js_ast.ClauseItem, logger.Loc) {
	items := []js_ast.ClauseItem{}
	firstKeywordItemLoc := logger.Loc{}
	p.lexer.Expect(js_lexer.TOpenBrace)

	for p.lexer.Token != js_lexer.TCloseBrace {
		alias := p.parseClauseAlias()
		aliasLoc := p.lexer.Loc()
		name := js_ast.LocRef{Loc: aliasLoc, Ref: p.storeNameInRef(alias)}
		originalName := alias

		// The name can actually be a keyword if we're really an "export from"
		// statement. However, we won't know until later. Allow keywords as
		// identifiers for now and throw an error later if there's no "from".
		//
		//   // This is fine
		//   export { default } from 'path'
		//
		//   // This is a syntax error
		//   export { default }
		//
		if p.lexer.Token != js_lexer.TIdentifier && firstKeywordItemLoc.Start == 0 {
			firstKeywordItemLoc = p.lexer.Loc()
		}
		p.lexer.Next()

		if p.lexer.IsContextualKeyword("as") {
			p.lexer.Next()
			alias = p.parseClauseAlias()
			aliasLoc = p.lexer.Loc()
			p.lexer.Next()
		}

		items = append(items, js_ast.ClauseItem{
			Alias:        alias,
			AliasLoc:     aliasLoc,
			Name:         name,
			OriginalName: originalName,
		})

		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseBrace)
	return items, firstKeywordItemLoc
}

func (p *parser) parseDecls() []js_ast.Decl {
	decls := []js_ast.Decl{}

	for {
		var value js_ast.Expr
		local := p.parseBinding()

		if p.lexer.Token == js_lexer.TEquals {
			p.lexer.Next()
			value = p.parseExpr(js_ast.LComma)
		}

		decls = append(decls, js_ast.Decl{Binding: local, ValueOrNil: value})

		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	return decls
}

func (p *parser) requireInitializers(decls []js_ast.Decl) {
	for _, d := range decls {
		if d.ValueOrNil.Data == nil {
			r := js_lexer.RangeOfIdentifier(p.source, d.Binding.Loc)
			if _, ok := d.Binding.Data.(*js_ast.BIdentifier); ok {
				p.addRangeError(r, "This constant must be initialized")
			} else {
				p.addRangeError(r, "This destructuring must be initialized")
			}
			panic(js_lexer.LexerPanic{})
		}
	}
}

func (p *parser) forbidInitializers(decls []js_ast.Decl, loopType string, isVar bool) {
	if len(decls) > 1 {
		p.addRangeError(js_lexer.RangeOfIdentifier(p.source, decls[0].Binding.Loc),
			fmt.Sprintf("for-%s loops must have a single declaration", loopType))
		panic(js_lexer.LexerPanic{})
	} else if len(decls) == 1 && decls[0].ValueOrNil.Data != nil {
		if isVar {
			if _, ok := decls[0].Binding.Data.(*js_ast.BIdentifier); ok {
				// This is a weird special case. Initializers are allowed in "var"
				// statements with identifier bindings.
				return
			}
		}
		p.addRangeError(logger.Range{Loc: decls[0].ValueOrNil.Loc},
			fmt.Sprintf("for-%s loop variables cannot have an initializer", loopType))
		panic(js_lexer.LexerPanic{})
	}
}

func (p *parser) parseFnBodyStmts(opts fnOpts) js_ast.FnBody {
	oldFnOpts := p.currentFnOpts
	oldAllowIn := p.allowIn
	p.currentFnOpts = opts
	p.allowIn = true

	loc := p.lexer.Loc()
	p.lexer.Expect(js_lexer.TOpenBrace)
	stmts := p.parseStmtsUpTo(js_lexer.TCloseBrace, parseStmtOpts{})
	p.lexer.Next()

	p.currentFnOpts = oldFnOpts
	p.allowIn = oldAllowIn
	return js_ast.FnBody{Loc: loc, Stmts: stmts}
}

func (p *parser) parseStmtsUpTo(end js_lexer.T, opts parseStmtOpts) []js_ast.Stmt {
	stmts := []js_ast.Stmt{}
	isDirectivePrologue := true

	for p.lexer.Token != end {
		stmt := p.parseStmt(opts)

		// Strings at the start of a body are directives such as "use strict"
		if isDirectivePrologue {
			isDirectivePrologue = false
			if s, ok := stmt.Data.(*js_ast.SExpr); ok {
				if str, ok := s.Value.Data.(*js_ast.EString); ok && str.Raw != "" {
					stmt.Data = &js_ast.SDirective{Raw: str.Raw}
					isDirectivePrologue = true
				}
			}
		}

		stmts = append(stmts, stmt)
	}

	return stmts
}

type Options struct {
	// If false, "import()" expressions with a string argument don't create
	// import records and are kept as-is
	IsBundling bool
}

func Parse(log logger.Log, source logger.Source, options Options) (result js_ast.AST, ok bool) {
	ok = true
	defer func() {
		r := recover()
		if _, isLexerPanic := r.(js_lexer.LexerPanic); isLexerPanic {
			ok = false
		} else if r != nil {
			panic(r)
		}
	}()

	p := &parser{
		log:     log,
		source:  source,
		options: options,
		lexer:   js_lexer.NewLexer(log, source),
		allowIn: true,

		// Top-level await is allowed in modules
		currentFnOpts: fnOpts{allowAwait: true},
	}

	if p.lexer.Token == js_lexer.THashbang {
		p.hashbang = p.lexer.Identifier
		p.lexer.Next()
	}

	// Parse the file in the first pass, but do not declare and bind symbols
	stmts := p.parseStmtsUpTo(js_lexer.TEndOfFile, parseStmtOpts{allowImportAndExport: true})

	if !options.IsBundling {
		for i := range p.importRecords {
			p.importRecords[i].Flags |= ast.IsExternal
		}
	}

	// Declare and bind symbols in a second pass over the tree
	b := newBinder(log, source, p.allocatedNames, p.importRecords)
	result = b.bindModule(stmts)
	result.Hashbang = p.hashbang
	result.ApproximateLineCount = int32(p.lexer.ApproximateNewlineCount) + 1

	// Errors from the binder such as duplicate declarations are fatal too
	if b.hasErrors {
		ok = false
	}
	return
}
