package js_printer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_lexer"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/renamer"
	"github.com/esmlink/esmlink/internal/sourcemap"
)

var positiveInfinity = math.Inf(1)
var negativeInfinity = math.Inf(-1)

type printer struct {
	symbols        js_ast.SymbolMap
	renamer        renamer.Renamer
	importRecords  []ast.ImportRecord
	js             []byte
	options        Options
	builder        sourcemap.ChunkBuilder
	stmtStart      int
	exportDefault  int
	arrowExprStart int
	prevOpEnd      int
	prevNumEnd     int
	prevRegExpEnd  int
	prevOp         js_ast.OpCode
}

func (p *printer) print(text string) {
	p.js = append(p.js, text...)
}

// This is the same as "print(string(bytes))" without any unnecessary temporary
// allocations
func (p *printer) printBytes(bytes []byte) {
	p.js = append(p.js, bytes...)
}

func (p *printer) printQuoted(text string) {
	p.printBytes(helpers.QuoteForJSON(text, false))
}

func (p *printer) addSourceMapping(loc logger.Loc) {
	if p.options.AddSourceMappings {
		p.builder.AddSourceMapping(loc, p.js)
	}
}

func (p *printer) printIndent() {
	for i := 0; i < p.options.Indent; i++ {
		p.print("  ")
	}
}

// Returns the name a reference to this symbol prints as, if it prints as a
// plain identifier at all
func (p *printer) identifierName(ref js_ast.Ref) (string, bool) {
	ref = js_ast.FollowSymbols(p.symbols, ref)
	symbol := p.symbols.Get(ref)
	if symbol.ImportItemIsMissing || symbol.NamespaceAlias != nil {
		return "", false
	}
	return p.renamer.NameForSymbol(ref), true
}

func (p *printer) printSymbol(ref js_ast.Ref) {
	p.printSpaceBeforeIdentifier()
	p.print(p.renamer.NameForSymbol(ref))
}

func (p *printer) printClauseAlias(alias string) {
	if js_lexer.IsIdentifier(alias) {
		p.printSpaceBeforeIdentifier()
		p.print(alias)
	} else {
		p.printQuoted(alias)
	}
}

func (p *printer) printSpace() {
	p.print(" ")
}

func (p *printer) printNewline() {
	p.print("\n")
}

func (p *printer) printSpaceBeforeOperator(next js_ast.OpCode) {
	if p.prevOpEnd == len(p.js) {
		prev := p.prevOp

		// "+ + y" => "+ +y"
		// "+ ++ y" => "+ ++y"
		// "x + + y" => "x+ +y"
		// "x ++ + y" => "x+++y"
		// "x + ++ y" => "x+ ++y"
		// "-- >" => "-- >"
		// "< ! --" => "<! --"
		if ((prev == js_ast.BinOpAdd || prev == js_ast.UnOpPos) && (next == js_ast.BinOpAdd || next == js_ast.UnOpPos || next == js_ast.UnOpPreInc)) ||
			((prev == js_ast.BinOpSub || prev == js_ast.UnOpNeg) && (next == js_ast.BinOpSub || next == js_ast.UnOpNeg || next == js_ast.UnOpPreDec)) ||
			(prev == js_ast.UnOpPostDec && next == js_ast.BinOpGt) ||
			(prev == js_ast.UnOpNot && next == js_ast.UnOpPreDec && len(p.js) > 1 && p.js[len(p.js)-2] == '<') {
			p.print(" ")
		}
	}
}

func (p *printer) printSemicolonAfterStatement() {
	p.print(";\n")
}

func (p *printer) printSpaceBeforeIdentifier() {
	buffer := p.js
	n := len(buffer)
	if n > 0 && (js_lexer.IsIdentifierContinue(rune(buffer[n-1])) || n == p.prevRegExpEnd) {
		p.print(" ")
	}
}

func (p *printer) printNumber(value float64, level js_ast.L) {
	absValue := math.Abs(value)

	if value != value {
		p.printSpaceBeforeIdentifier()
		p.print("NaN")
	} else if value == positiveInfinity || value == negativeInfinity {
		wrap := value == negativeInfinity && level >= js_ast.LPrefix
		if wrap {
			p.print("(")
		}
		if value == negativeInfinity {
			p.printSpaceBeforeOperator(js_ast.UnOpNeg)
			p.print("-")
		} else {
			p.printSpaceBeforeIdentifier()
		}
		p.print("Infinity")
		if wrap {
			p.print(")")
		}
	} else {
		if !math.Signbit(value) {
			p.printSpaceBeforeIdentifier()
			p.printNonNegativeFloat(absValue)

			// Remember the end of the latest number
			p.prevNumEnd = len(p.js)
		} else if level >= js_ast.LPrefix {
			// Expressions such as "(-1).toString" need to wrap negative numbers.
			// Instead of testing for "value < 0" we test for "signbit(value)" and
			// "!isNaN(value)" because we need this to be true for "-0" and "-0 < 0"
			// is false.
			p.print("(-")
			p.printNonNegativeFloat(absValue)
			p.print(")")
		} else {
			p.printSpaceBeforeOperator(js_ast.UnOpNeg)
			p.print("-")
			p.printNonNegativeFloat(absValue)

			// Remember the end of the latest number
			p.prevNumEnd = len(p.js)
		}
	}
}

// Formats a number the way "Number.prototype.toString" does: integers below
// 1e21 are written out in full and everything else uses the shortest
// representation that round-trips.
func (p *printer) printNonNegativeFloat(absValue float64) {
	if absValue < 1e21 && absValue == math.Trunc(absValue) {
		p.print(strconv.FormatFloat(absValue, 'f', -1, 64))
		return
	}

	text := strconv.FormatFloat(absValue, 'g', -1, 64)
	if e := strings.IndexByte(text, 'e'); e != -1 {
		mantissa, exponent := text[:e], text[e+1:]
		sign := ""
		if exponent[0] == '-' {
			sign = "-"
		}
		exponent = strings.TrimLeft(exponent[1:], "0")

		// Small exponents read better without scientific notation
		if sign == "-" {
			if n, err := strconv.Atoi(exponent); err == nil && n <= 6 {
				p.print(strconv.FormatFloat(absValue, 'f', -1, 64))
				return
			}
		}
		text = mantissa + "e" + sign + exponent
	}
	p.print(text)
}

func (p *printer) printBinding(binding js_ast.Binding) {
	p.addSourceMapping(binding.Loc)

	switch b := binding.Data.(type) {
	case *js_ast.BMissing:

	case *js_ast.BIdentifier:
		p.printSymbol(b.Ref)

	case *js_ast.BArray:
		p.print("[")
		for i, item := range b.Items {
			if i != 0 {
				p.print(",")
				p.printSpace()
			}
			if b.HasSpread && i+1 == len(b.Items) {
				p.print("...")
			}
			p.printBinding(item.Binding)

			if item.DefaultValue.Data != nil {
				p.printSpace()
				p.print("=")
				p.printSpace()
				p.printExpr(item.DefaultValue, js_ast.LComma, 0)
			}

			// Make sure there's a comma after trailing missing items
			if _, ok := item.Binding.Data.(*js_ast.BMissing); ok && i == len(b.Items)-1 {
				p.print(",")
			}
		}
		p.print("]")

	case *js_ast.BObject:
		p.print("{")
		if len(b.Properties) > 0 {
			p.printSpace()
			for i, property := range b.Properties {
				if i != 0 {
					p.print(",")
					p.printSpace()
				}

				if property.IsSpread {
					p.print("...")
				} else {
					if property.IsComputed {
						p.print("[")
						p.printExpr(property.Key, js_ast.LComma, 0)
						p.print("]:")
						p.printSpace()
					} else if !p.isShorthandBinding(property) {
						p.printPropertyKey(property.Key)
						p.print(":")
						p.printSpace()
					}
				}

				p.printBinding(property.Value)

				if property.DefaultValue.Data != nil {
					p.printSpace()
					p.print("=")
					p.printSpace()
					p.printExpr(property.DefaultValue, js_ast.LComma, 0)
				}
			}
			p.printSpace()
		}
		p.print("}")

	default:
		panic(fmt.Sprintf("Unexpected binding of type %T", binding.Data))
	}
}

func (p *printer) isShorthandBinding(property js_ast.PropertyBinding) bool {
	str, ok := property.Key.Data.(*js_ast.EString)
	if !ok || str.Raw != "" {
		return false
	}
	id, ok := property.Value.Data.(*js_ast.BIdentifier)
	return ok && p.renamer.NameForSymbol(id.Ref) == str.Value
}

func (p *printer) printPropertyKey(key js_ast.Expr) {
	p.addSourceMapping(key.Loc)

	switch k := key.Data.(type) {
	case *js_ast.EString:
		if k.Raw != "" {
			p.print(k.Raw)
		} else if js_lexer.IsIdentifier(k.Value) {
			p.printSpaceBeforeIdentifier()
			p.print(k.Value)
		} else {
			p.printQuoted(k.Value)
		}

	case *js_ast.EPrivateName:
		p.printSpaceBeforeIdentifier()
		p.print(k.Name)

	default:
		p.printExpr(key, js_ast.LLowest, 0)
	}
}

func (p *printer) printFnArgs(args []js_ast.Arg, hasRestArg bool) {
	p.print("(")

	for i, arg := range args {
		if i != 0 {
			p.print(",")
			p.printSpace()
		}
		if hasRestArg && i+1 == len(args) {
			p.print("...")
		}
		p.printBinding(arg.Binding)

		if arg.DefaultOrNil.Data != nil {
			p.printSpace()
			p.print("=")
			p.printSpace()
			p.printExpr(arg.DefaultOrNil, js_ast.LComma, 0)
		}
	}

	p.print(")")
}

func (p *printer) printFn(fn js_ast.Fn) {
	p.printFnArgs(fn.Args, fn.HasRestArg)
	p.printSpace()
	p.printBlock(fn.Body.Loc, fn.Body.Stmts)
}

func (p *printer) printClass(class js_ast.Class) {
	if class.ExtendsOrNil.Data != nil {
		p.print(" extends")
		p.printSpace()
		p.printExpr(class.ExtendsOrNil, js_ast.LNew-1, 0)
	}
	p.printSpace()

	p.addSourceMapping(class.BodyLoc)
	p.print("{")
	p.printNewline()
	p.options.Indent++

	for _, item := range class.Properties {
		p.printIndent()

		if item.Kind == js_ast.PropertyClassStaticBlock {
			p.print("static")
			p.printSpace()
			p.printBlock(item.StaticBlock.Loc, item.StaticBlock.Stmts)
			p.printNewline()
			continue
		}

		p.printProperty(item)

		// Need semicolons after class fields
		if !item.IsMethod {
			p.printSemicolonAfterStatement()
		} else {
			p.printNewline()
		}
	}

	p.options.Indent--
	p.printIndent()
	p.print("}")
}

func (p *printer) printProperty(item js_ast.Property) {
	if item.Kind == js_ast.PropertySpread {
		p.print("...")
		p.printExpr(item.ValueOrNil, js_ast.LComma, 0)
		return
	}

	if item.IsStatic {
		p.printSpaceBeforeIdentifier()
		p.print("static")
		p.printSpace()
	}

	switch item.Kind {
	case js_ast.PropertyGet:
		p.printSpaceBeforeIdentifier()
		p.print("get")
		p.printSpace()

	case js_ast.PropertySet:
		p.printSpaceBeforeIdentifier()
		p.print("set")
		p.printSpace()
	}

	if item.IsMethod {
		if item.IsAsync {
			p.printSpaceBeforeIdentifier()
			p.print("async")
			p.printSpace()
		}
		if item.IsGenerator {
			p.print("*")
		}
	}

	if item.IsComputed {
		p.print("[")
		p.printExpr(item.Key, js_ast.LComma, 0)
		p.print("]")
	} else {
		// Shorthand properties keep their short form as long as the value still
		// prints with the same name as the key
		if str, ok := item.Key.Data.(*js_ast.EString); ok && str.Raw == "" && !item.IsMethod {
			if id, ok := item.ValueOrNil.Data.(*js_ast.EIdentifier); ok {
				if name, ok := p.identifierName(id.Ref); ok && name == str.Value {
					p.addSourceMapping(item.Key.Loc)
					p.printSpaceBeforeIdentifier()
					p.print(name)
					if item.InitializerOrNil.Data != nil {
						p.printSpace()
						p.print("=")
						p.printSpace()
						p.printExpr(item.InitializerOrNil, js_ast.LComma, 0)
					}
					return
				}
			}
		}
		p.printPropertyKey(item.Key)
	}

	if item.IsMethod {
		if fn, ok := item.ValueOrNil.Data.(*js_ast.EFunction); ok {
			p.printFn(fn.Fn)
			return
		}
	}

	// Class fields keep their value in the initializer
	if item.ValueOrNil.Data == nil {
		if item.InitializerOrNil.Data != nil {
			p.printSpace()
			p.print("=")
			p.printSpace()
			p.printExpr(item.InitializerOrNil, js_ast.LComma, 0)
		}
		return
	}

	p.print(":")
	p.printSpace()
	p.printExpr(item.ValueOrNil, js_ast.LComma, 0)

	if item.InitializerOrNil.Data != nil {
		p.printSpace()
		p.print("=")
		p.printSpace()
		p.printExpr(item.InitializerOrNil, js_ast.LComma, 0)
	}
}

func (p *printer) printUndefined(level js_ast.L) {
	if level >= js_ast.LPrefix {
		p.print("(void 0)")
	} else {
		p.printSpaceBeforeIdentifier()
		p.print("void 0")
	}
}

func (p *printer) printDotThenPrefix(alias string) {
	if js_lexer.IsIdentifier(alias) {
		p.print(".")
		p.print(alias)
	} else {
		p.print("[")
		p.printQuoted(alias)
		p.print("]")
	}
}

type printExprFlags uint8

const (
	forbidCall printExprFlags = 1 << iota
	forbidIn
)

func (p *printer) printExpr(expr js_ast.Expr, level js_ast.L, flags printExprFlags) {
	p.addSourceMapping(expr.Loc)

	switch e := expr.Data.(type) {
	case *js_ast.EMissing:

	case *js_ast.EUndefined:
		p.printUndefined(level)

	case *js_ast.ESuper:
		p.printSpaceBeforeIdentifier()
		p.print("super")

	case *js_ast.ENull:
		p.printSpaceBeforeIdentifier()
		p.print("null")

	case *js_ast.EThis:
		p.printSpaceBeforeIdentifier()
		p.print("this")

	case *js_ast.ESpread:
		p.print("...")
		p.printExpr(e.Value, js_ast.LComma, 0)

	case *js_ast.ENewTarget:
		p.printSpaceBeforeIdentifier()
		p.print("new.target")

	case *js_ast.EImportMeta:
		p.printSpaceBeforeIdentifier()
		p.print("import.meta")

	case *js_ast.ENew:
		wrap := level >= js_ast.LCall
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		p.print("new")
		p.printSpace()
		p.printExpr(e.Target, js_ast.LNew, forbidCall)
		p.printCallArgs(e.Args)
		if wrap {
			p.print(")")
		}

	case *js_ast.ECall:
		wrap := level >= js_ast.LNew || (flags&forbidCall) != 0
		if wrap {
			p.print("(")
		}
		p.printExpr(e.Target, js_ast.LPostfix, 0)
		if e.OptionalChain {
			p.print("?.")
		}
		p.printCallArgs(e.Args)
		if wrap {
			p.print(")")
		}

	case *js_ast.EImportCall:
		if e.ImportRecordIndex.IsValid() {
			if nsRef, ok := p.options.InlinedDynamicImports[e.ImportRecordIndex.GetIndex()]; ok {
				// The target module is part of this chunk and has already been
				// evaluated, so the import resolves to its namespace object
				wrap := level >= js_ast.LNew || (flags&forbidCall) != 0
				if wrap {
					p.print("(")
				}
				p.printSpaceBeforeIdentifier()
				p.print("Promise.resolve().then(() => ")
				p.printSymbol(nsRef)
				p.print(")")
				if wrap {
					p.print(")")
				}
				return
			}
		}

		wrap := level >= js_ast.LNew || (flags&forbidCall) != 0
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		p.print("import(")
		if e.ImportRecordIndex.IsValid() {
			p.addSourceMapping(e.Expr.Loc)
			p.printQuoted(p.importRecords[e.ImportRecordIndex.GetIndex()].Path.Text)
		} else {
			p.printExpr(e.Expr, js_ast.LComma, 0)
		}
		p.print(")")
		if wrap {
			p.print(")")
		}

	case *js_ast.EDot:
		start := len(p.js)
		p.printExpr(e.Target, js_ast.LPostfix, flags&forbidCall)

		// "1.toString" is a syntax error but "1..toString" is not
		if _, ok := e.Target.Data.(*js_ast.ENumber); ok && p.prevNumEnd == len(p.js) && isAllDigits(p.js[start:]) {
			p.print(".")
		}

		if e.OptionalChain {
			p.print("?")
		}
		if js_lexer.IsIdentifier(e.Name) || strings.HasPrefix(e.Name, "#") {
			p.print(".")
			p.addSourceMapping(e.NameLoc)
			p.print(e.Name)
		} else {
			if e.OptionalChain {
				p.print(".")
			}
			p.print("[")
			p.addSourceMapping(e.NameLoc)
			p.printQuoted(e.Name)
			p.print("]")
		}

	case *js_ast.EIndex:
		p.printExpr(e.Target, js_ast.LPostfix, flags&forbidCall)
		if e.OptionalChain {
			p.print("?")
		}

		// "a.#b" has no computed form
		if private, ok := e.Index.Data.(*js_ast.EPrivateName); ok {
			p.print(".")
			p.addSourceMapping(e.Index.Loc)
			p.print(private.Name)
			break
		}

		if e.OptionalChain {
			p.print(".")
		}
		p.print("[")
		p.printExpr(e.Index, js_ast.LLowest, 0)
		p.print("]")

	case *js_ast.EIf:
		wrap := level >= js_ast.LConditional
		if wrap {
			p.print("(")
			flags &= ^forbidIn
		}
		p.printExpr(e.Test, js_ast.LConditional, flags&forbidIn)
		p.printSpace()
		p.print("?")
		p.printSpace()
		p.printExpr(e.Yes, js_ast.LYield, 0)
		p.printSpace()
		p.print(":")
		p.printSpace()
		p.printExpr(e.No, js_ast.LYield, flags&forbidIn)
		if wrap {
			p.print(")")
		}

	case *js_ast.EArrow:
		wrap := level >= js_ast.LAssign
		if wrap {
			p.print("(")
		}
		if e.IsAsync {
			p.printSpaceBeforeIdentifier()
			p.print("async")
			p.printSpace()
		}
		p.printFnArgs(e.Args, e.HasRestArg)
		p.printSpace()
		p.print("=>")
		p.printSpace()

		wasPrinted := false
		if len(e.Body.Stmts) == 1 && e.PreferExpr {
			if s, ok := e.Body.Stmts[0].Data.(*js_ast.SReturn); ok && s.ValueOrNil.Data != nil {
				p.arrowExprStart = len(p.js)
				p.printExpr(s.ValueOrNil, js_ast.LComma, flags&forbidIn)
				wasPrinted = true
			}
		}
		if !wasPrinted {
			p.printBlock(e.Body.Loc, e.Body.Stmts)
		}
		if wrap {
			p.print(")")
		}

	case *js_ast.EFunction:
		n := len(p.js)
		wrap := p.stmtStart == n || p.exportDefault == n
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		if e.Fn.IsAsync {
			p.print("async ")
		}
		p.print("function")
		if e.Fn.IsGenerator {
			p.print("*")
			p.printSpace()
		}
		if e.Fn.Name != nil {
			p.printSpaceBeforeIdentifier()
			p.printSymbol(e.Fn.Name.Ref)
		}
		p.printFn(e.Fn)
		if wrap {
			p.print(")")
		}

	case *js_ast.EClass:
		n := len(p.js)
		wrap := p.stmtStart == n || p.exportDefault == n
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		p.print("class")
		if e.Class.Name != nil {
			p.printSymbol(e.Class.Name.Ref)
		}
		p.printClass(e.Class)
		if wrap {
			p.print(")")
		}

	case *js_ast.EArray:
		p.print("[")
		if len(e.Items) > 0 {
			if !e.IsSingleLine {
				p.options.Indent++
			}

			for i, item := range e.Items {
				if i != 0 {
					p.print(",")
				}
				if !e.IsSingleLine {
					p.printNewline()
					p.printIndent()
				} else if i != 0 {
					p.printSpace()
				}
				p.printExpr(item, js_ast.LComma, 0)

				// Make sure there's a comma after trailing missing items
				if _, ok := item.Data.(*js_ast.EMissing); ok && i == len(e.Items)-1 {
					p.print(",")
				}
			}

			if !e.IsSingleLine {
				p.options.Indent--
				p.printNewline()
				p.printIndent()
			}
		}
		p.print("]")

	case *js_ast.EObject:
		n := len(p.js)
		wrap := p.stmtStart == n || p.arrowExprStart == n
		if wrap {
			p.print("(")
		}
		p.print("{")
		if len(e.Properties) != 0 {
			if !e.IsSingleLine {
				p.options.Indent++
			}

			for i, item := range e.Properties {
				if i != 0 {
					p.print(",")
				}
				if !e.IsSingleLine {
					p.printNewline()
					p.printIndent()
				} else {
					p.printSpace()
				}
				p.printProperty(item)
			}

			if !e.IsSingleLine {
				p.options.Indent--
				p.printNewline()
				p.printIndent()
			} else {
				p.printSpace()
			}
		}
		p.print("}")
		if wrap {
			p.print(")")
		}

	case *js_ast.EBoolean:
		p.printSpaceBeforeIdentifier()
		if e.Value {
			p.print("true")
		} else {
			p.print("false")
		}

	case *js_ast.EString:
		if e.Raw != "" {
			p.print(e.Raw)
		} else {
			p.printQuoted(e.Value)
		}

	case *js_ast.ETemplate:
		if e.TagOrNil.Data != nil {
			p.printExpr(e.TagOrNil, js_ast.LPostfix, 0)
		}
		p.print("`")
		p.print(e.HeadRaw)
		for _, part := range e.Parts {
			p.print("${")
			p.printExpr(part.Value, js_ast.LLowest, 0)
			p.print("}")
			p.print(part.TailRaw)
		}
		p.print("`")

	case *js_ast.ERegExp:
		buffer := p.js
		n := len(buffer)

		// Avoid forming a single-line comment or "</script" sequence
		if n > 0 && buffer[n-1] == '/' {
			p.print(" ")
		}
		p.print(e.Value)

		// Need a space before the next identifier to avoid it turning into flags
		p.prevRegExpEnd = len(p.js)

	case *js_ast.EBigInt:
		p.printSpaceBeforeIdentifier()
		p.print(e.Value)
		p.print("n")

	case *js_ast.ENumber:
		p.printNumber(e.Value, level)

	case *js_ast.EIdentifier:
		ref := js_ast.FollowSymbols(p.symbols, e.Ref)
		symbol := p.symbols.Get(ref)

		if symbol.ImportItemIsMissing {
			p.printUndefined(level)
		} else if symbol.NamespaceAlias != nil {
			// An unresolved property access on a namespace import prints as written
			p.printSymbol(symbol.NamespaceAlias.NamespaceRef)
			p.printDotThenPrefix(symbol.NamespaceAlias.Alias)
		} else {
			p.printSymbol(ref)
		}

	case *js_ast.EPrivateName:
		p.printSpaceBeforeIdentifier()
		p.print(e.Name)

	case *js_ast.EAwait:
		wrap := level >= js_ast.LPrefix
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		p.print("await")
		p.printSpace()
		p.printExpr(e.Value, js_ast.LPrefix-1, 0)
		if wrap {
			p.print(")")
		}

	case *js_ast.EYield:
		wrap := level >= js_ast.LAssign
		if wrap {
			p.print("(")
		}
		p.printSpaceBeforeIdentifier()
		p.print("yield")
		if e.ValueOrNil.Data != nil {
			if e.IsStar {
				p.print("*")
			}
			p.printSpace()
			p.printExpr(e.ValueOrNil, js_ast.LYield, 0)
		}
		if wrap {
			p.print(")")
		}

	case *js_ast.EUnary:
		entry := js_ast.OpTable[e.Op]
		wrap := level >= entry.Level
		if wrap {
			p.print("(")
		}

		if !e.Op.IsPrefix() {
			p.printExpr(e.Value, js_ast.LPostfix-1, 0)
		}

		if entry.IsKeyword {
			p.printSpaceBeforeIdentifier()
			p.print(entry.Text)
			p.printSpace()
		} else {
			p.printSpaceBeforeOperator(e.Op)
			p.print(entry.Text)
			p.prevOp = e.Op
			p.prevOpEnd = len(p.js)
		}

		if e.Op.IsPrefix() {
			p.printExpr(e.Value, js_ast.LPrefix-1, 0)
		}

		if wrap {
			p.print(")")
		}

	case *js_ast.EBinary:
		entry := js_ast.OpTable[e.Op]
		wrap := level >= entry.Level || (e.Op == js_ast.BinOpIn && (flags&forbidIn) != 0)

		// Destructuring assignments must be parenthesized at the start of a statement
		n := len(p.js)
		if (n == p.stmtStart || n == p.arrowExprStart) && e.Op == js_ast.BinOpAssign {
			if _, ok := e.Left.Data.(*js_ast.EObject); ok {
				wrap = true
			}
		}

		if wrap {
			p.print("(")
			flags &= ^forbidIn
		}

		leftLevel := entry.Level - 1
		rightLevel := entry.Level - 1

		if e.Op.IsRightAssociative() {
			leftLevel = entry.Level
		}
		if e.Op.IsLeftAssociative() {
			rightLevel = entry.Level
		}

		switch e.Op {
		case js_ast.BinOpNullishCoalescing:
			// "??" can't directly contain "||" or "&&" without being wrapped in parentheses
			if left, ok := e.Left.Data.(*js_ast.EBinary); ok && (left.Op == js_ast.BinOpLogicalOr || left.Op == js_ast.BinOpLogicalAnd) {
				leftLevel = js_ast.LPrefix
			}
			if right, ok := e.Right.Data.(*js_ast.EBinary); ok && (right.Op == js_ast.BinOpLogicalOr || right.Op == js_ast.BinOpLogicalAnd) {
				rightLevel = js_ast.LPrefix
			}

		case js_ast.BinOpPow:
			// "**" can't contain certain unary expressions
			if left, ok := e.Left.Data.(*js_ast.EUnary); ok && left.Op.IsPrefix() {
				leftLevel = js_ast.LCall
			} else if _, ok := e.Left.Data.(*js_ast.EAwait); ok {
				leftLevel = js_ast.LCall
			} else if _, ok := e.Left.Data.(*js_ast.EUndefined); ok {
				// Undefined is printed as "void 0"
				leftLevel = js_ast.LCall
			} else if _, ok := e.Left.Data.(*js_ast.ENumber); ok {
				// Negative numbers are printed using a unary operator
				leftLevel = js_ast.LCall
			}
		}

		p.printExpr(e.Left, leftLevel, flags&forbidIn)

		if e.Op != js_ast.BinOpComma {
			p.printSpace()
		}

		if entry.IsKeyword {
			p.printSpaceBeforeIdentifier()
			p.print(entry.Text)
		} else {
			p.printSpaceBeforeOperator(e.Op)
			p.print(entry.Text)
			p.prevOp = e.Op
			p.prevOpEnd = len(p.js)
		}

		p.printSpace()
		p.printExpr(e.Right, rightLevel, flags&forbidIn)

		if wrap {
			p.print(")")
		}

	default:
		panic(fmt.Sprintf("Unexpected expression of type %T", expr.Data))
	}
}

func isAllDigits(text []byte) bool {
	for _, c := range text {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(text) > 0
}

func (p *printer) printCallArgs(args []js_ast.Expr) {
	p.print("(")
	for i, arg := range args {
		if i != 0 {
			p.print(",")
			p.printSpace()
		}
		p.printExpr(arg, js_ast.LComma, 0)
	}
	p.print(")")
}

func (p *printer) printDeclStmt(isExport bool, keyword string, decls []js_ast.Decl) {
	p.printSpaceBeforeIdentifier()
	if isExport {
		p.print("export ")
	}
	p.printDecls(keyword, decls, 0)
	p.printSemicolonAfterStatement()
}

func (p *printer) printForLoopInit(init js_ast.Stmt, flags printExprFlags) {
	switch s := init.Data.(type) {
	case *js_ast.SExpr:
		p.printExpr(s.Value, js_ast.LLowest, flags)
	case *js_ast.SLocal:
		p.printDecls(s.Kind.String(), s.Decls, flags)
	default:
		panic("Internal error")
	}
}

func (p *printer) printDecls(keyword string, decls []js_ast.Decl, flags printExprFlags) {
	p.print(keyword)
	p.printSpace()

	for i, decl := range decls {
		if i != 0 {
			p.print(",")
			p.printSpace()
		}
		p.printBinding(decl.Binding)

		if decl.ValueOrNil.Data != nil {
			p.printSpace()
			p.print("=")
			p.printSpace()
			p.printExpr(decl.ValueOrNil, js_ast.LComma, flags)
		}
	}
}

func (p *printer) printBody(body js_ast.Stmt) {
	if block, ok := body.Data.(*js_ast.SBlock); ok {
		p.printSpace()
		p.printBlock(body.Loc, block.Stmts)
		p.printNewline()
	} else {
		p.printNewline()
		p.options.Indent++
		p.printStmt(body)
		p.options.Indent--
	}
}

func (p *printer) printBlock(loc logger.Loc, stmts []js_ast.Stmt) {
	p.addSourceMapping(loc)
	p.print("{")
	p.printNewline()

	p.options.Indent++
	for _, stmt := range stmts {
		p.printStmt(stmt)
	}
	p.options.Indent--

	p.printIndent()
	p.print("}")
}

func wrapToAvoidAmbiguousElse(s js_ast.S) bool {
	for {
		switch current := s.(type) {
		case *js_ast.SIf:
			if current.NoOrNil.Data == nil {
				return true
			}
			s = current.NoOrNil.Data

		case *js_ast.SFor:
			s = current.Body.Data

		case *js_ast.SForIn:
			s = current.Body.Data

		case *js_ast.SForOf:
			s = current.Body.Data

		case *js_ast.SWhile:
			s = current.Body.Data

		case *js_ast.SWith:
			s = current.Body.Data

		case *js_ast.SLabel:
			s = current.Stmt.Data

		default:
			return false
		}
	}
}

func (p *printer) printIf(s *js_ast.SIf) {
	p.printSpaceBeforeIdentifier()
	p.print("if")
	p.printSpace()
	p.print("(")
	p.printExpr(s.Test, js_ast.LLowest, 0)
	p.print(")")

	if yes, ok := s.Yes.Data.(*js_ast.SBlock); ok {
		p.printSpace()
		p.printBlock(s.Yes.Loc, yes.Stmts)

		if s.NoOrNil.Data != nil {
			p.printSpace()
		} else {
			p.printNewline()
		}
	} else if s.NoOrNil.Data != nil && wrapToAvoidAmbiguousElse(s.Yes.Data) {
		p.printSpace()
		p.print("{")
		p.printNewline()

		p.options.Indent++
		p.printStmt(s.Yes)
		p.options.Indent--

		p.printIndent()
		p.print("}")
		p.printSpace()
	} else {
		p.printNewline()
		p.options.Indent++
		p.printStmt(s.Yes)
		p.options.Indent--

		if s.NoOrNil.Data != nil {
			p.printIndent()
		}
	}

	if s.NoOrNil.Data != nil {
		p.printSpaceBeforeIdentifier()
		p.print("else")

		if no, ok := s.NoOrNil.Data.(*js_ast.SBlock); ok {
			p.printSpace()
			p.printBlock(s.NoOrNil.Loc, no.Stmts)
			p.printNewline()
		} else if no, ok := s.NoOrNil.Data.(*js_ast.SIf); ok {
			p.printSpace()
			p.printIf(no)
		} else {
			p.printNewline()
			p.options.Indent++
			p.printStmt(s.NoOrNil)
			p.options.Indent--
		}
	}
}

func (p *printer) printPath(importRecordIndex uint32) {
	record := p.importRecords[importRecordIndex]
	p.addSourceMapping(record.Range.Loc)
	p.printQuoted(record.Path.Text)
}

func (p *printer) printClauseItems(items []js_ast.ClauseItem, isImport bool) {
	p.print("{")
	if len(items) > 0 {
		p.printSpace()
		for i, item := range items {
			if i != 0 {
				p.print(",")
				p.printSpace()
			}

			name := p.renamer.NameForSymbol(item.Name.Ref)
			if isImport {
				// "import { alias as name }"
				p.printClauseAlias(item.Alias)
				if name != item.Alias {
					p.print(" as ")
					p.addSourceMapping(item.Name.Loc)
					p.print(name)
				}
			} else {
				// "export { name as alias }"
				p.addSourceMapping(item.Name.Loc)
				p.print(name)
				if name != item.Alias {
					p.print(" as ")
					p.printClauseAlias(item.Alias)
				}
			}
		}
		p.printSpace()
	}
	p.print("}")
}

func (p *printer) printStmt(stmt js_ast.Stmt) {
	p.printIndent()
	p.addSourceMapping(stmt.Loc)

	switch s := stmt.Data.(type) {
	case *js_ast.SFunction:
		p.printSpaceBeforeIdentifier()
		if s.IsExport {
			p.print("export ")
		}
		if s.Fn.IsAsync {
			p.print("async ")
		}
		p.print("function")
		if s.Fn.IsGenerator {
			p.print("*")
			p.printSpace()
		}
		p.printSymbol(s.Fn.Name.Ref)
		p.printFn(s.Fn)
		p.printNewline()

	case *js_ast.SClass:
		p.printSpaceBeforeIdentifier()
		if s.IsExport {
			p.print("export ")
		}
		p.print("class")
		p.printSymbol(s.Class.Name.Ref)
		p.printClass(s.Class)
		p.printNewline()

	case *js_ast.SEmpty:
		p.print(";")
		p.printNewline()

	case *js_ast.SDirective:
		p.printSpaceBeforeIdentifier()
		p.print(s.Raw)
		p.printSemicolonAfterStatement()

	case *js_ast.SExportDefault:
		p.printSpaceBeforeIdentifier()
		p.print("export default")
		p.printSpace()

		if s.Value.Expr != nil {
			// Functions and classes must be wrapped to avoid confusion with their statement forms
			p.exportDefault = len(p.js)

			p.printExpr(*s.Value.Expr, js_ast.LComma, 0)
			p.printSemicolonAfterStatement()
			return
		}

		switch s2 := s.Value.Stmt.Data.(type) {
		case *js_ast.SFunction:
			p.printSpaceBeforeIdentifier()
			if s2.Fn.IsAsync {
				p.print("async ")
			}
			p.print("function")
			if s2.Fn.IsGenerator {
				p.print("*")
				p.printSpace()
			}
			if s2.Fn.Name != nil {
				p.printSymbol(s2.Fn.Name.Ref)
			}
			p.printFn(s2.Fn)
			p.printNewline()

		case *js_ast.SClass:
			p.printSpaceBeforeIdentifier()
			p.print("class")
			if s2.Class.Name != nil {
				p.printSymbol(s2.Class.Name.Ref)
			}
			p.printClass(s2.Class)
			p.printNewline()

		default:
			panic("Internal error")
		}

	case *js_ast.SExportStar:
		p.printSpaceBeforeIdentifier()
		p.print("export")
		p.printSpace()
		p.print("*")
		p.printSpace()
		if s.Alias != nil {
			p.print("as")
			p.printSpace()
			p.printClauseAlias(s.Alias.OriginalName)
			p.printSpace()
			p.printSpaceBeforeIdentifier()
		}
		p.print("from")
		p.printSpace()
		p.printPath(s.ImportRecordIndex)
		p.printSemicolonAfterStatement()

	case *js_ast.SExportClause:
		p.printSpaceBeforeIdentifier()
		p.print("export")
		p.printSpace()
		p.printClauseItems(s.Items, false /* isImport */)
		p.printSemicolonAfterStatement()

	case *js_ast.SExportFrom:
		p.printSpaceBeforeIdentifier()
		p.print("export")
		p.printSpace()
		p.print("{")

		if len(s.Items) > 0 {
			p.printSpace()
			for i, item := range s.Items {
				if i != 0 {
					p.print(",")
					p.printSpace()
				}
				p.printClauseAlias(item.OriginalName)
				if item.OriginalName != item.Alias {
					p.print(" as ")
					p.printClauseAlias(item.Alias)
				}
			}
			p.printSpace()
		}

		p.print("}")
		p.printSpace()
		p.print("from")
		p.printSpace()
		p.printPath(s.ImportRecordIndex)
		p.printSemicolonAfterStatement()

	case *js_ast.SLocal:
		p.printDeclStmt(s.IsExport, s.Kind.String(), s.Decls)

	case *js_ast.SIf:
		p.printIf(s)

	case *js_ast.SDoWhile:
		p.printSpaceBeforeIdentifier()
		p.print("do")
		if block, ok := s.Body.Data.(*js_ast.SBlock); ok {
			p.printSpace()
			p.printBlock(s.Body.Loc, block.Stmts)
			p.printSpace()
		} else {
			p.printNewline()
			p.options.Indent++
			p.printStmt(s.Body)
			p.options.Indent--
			p.printIndent()
		}

		p.print("while")
		p.printSpace()
		p.print("(")
		p.printExpr(s.Test, js_ast.LLowest, 0)
		p.print(")")
		p.printSemicolonAfterStatement()

	case *js_ast.SForIn:
		p.printSpaceBeforeIdentifier()
		p.print("for")
		p.printSpace()
		p.print("(")
		p.printForLoopInit(s.Init, forbidIn)
		p.printSpace()
		p.printSpaceBeforeIdentifier()
		p.print("in")
		p.printSpace()
		p.printExpr(s.Value, js_ast.LLowest, 0)
		p.print(")")
		p.printBody(s.Body)

	case *js_ast.SForOf:
		p.printSpaceBeforeIdentifier()
		p.print("for")
		if s.IsAwait {
			p.print(" await")
		}
		p.printSpace()
		p.print("(")
		p.printForLoopInit(s.Init, 0)
		p.printSpace()
		p.printSpaceBeforeIdentifier()
		p.print("of")
		p.printSpace()
		p.printExpr(s.Value, js_ast.LComma, 0)
		p.print(")")
		p.printBody(s.Body)

	case *js_ast.SWhile:
		p.printSpaceBeforeIdentifier()
		p.print("while")
		p.printSpace()
		p.print("(")
		p.printExpr(s.Test, js_ast.LLowest, 0)
		p.print(")")
		p.printBody(s.Body)

	case *js_ast.SWith:
		p.printSpaceBeforeIdentifier()
		p.print("with")
		p.printSpace()
		p.print("(")
		p.printExpr(s.Value, js_ast.LLowest, 0)
		p.print(")")
		p.printBody(s.Body)

	case *js_ast.SLabel:
		p.printSpaceBeforeIdentifier()
		p.print(s.Name)
		p.print(":")
		p.printBody(s.Stmt)

	case *js_ast.STry:
		p.printSpaceBeforeIdentifier()
		p.print("try")
		p.printSpace()
		p.printBlock(stmt.Loc, s.Body)

		if s.Catch != nil {
			p.printSpace()
			p.print("catch")
			if s.Catch.BindingOrNil.Data != nil {
				p.printSpace()
				p.print("(")
				p.printBinding(s.Catch.BindingOrNil)
				p.print(")")
			}
			p.printSpace()
			p.printBlock(s.Catch.Loc, s.Catch.Body)
		}

		if s.Finally != nil {
			p.printSpace()
			p.print("finally")
			p.printSpace()
			p.printBlock(s.Finally.Loc, s.Finally.Stmts)
		}

		p.printNewline()

	case *js_ast.SFor:
		p.printSpaceBeforeIdentifier()
		p.print("for")
		p.printSpace()
		p.print("(")
		if s.InitOrNil.Data != nil {
			p.printForLoopInit(s.InitOrNil, forbidIn)
		}
		p.print(";")
		if s.TestOrNil.Data != nil {
			p.printSpace()
			p.printExpr(s.TestOrNil, js_ast.LLowest, 0)
		}
		p.print(";")
		if s.UpdateOrNil.Data != nil {
			p.printSpace()
			p.printExpr(s.UpdateOrNil, js_ast.LLowest, 0)
		}
		p.print(")")
		p.printBody(s.Body)

	case *js_ast.SSwitch:
		p.printSpaceBeforeIdentifier()
		p.print("switch")
		p.printSpace()
		p.print("(")
		p.printExpr(s.Test, js_ast.LLowest, 0)
		p.print(")")
		p.printSpace()
		p.print("{")
		p.printNewline()
		p.options.Indent++

		for _, c := range s.Cases {
			p.printIndent()

			if c.ValueOrNil.Data != nil {
				p.print("case")
				p.printSpace()
				p.printExpr(c.ValueOrNil, js_ast.LLowest, 0)
			} else {
				p.print("default")
			}
			p.print(":")

			if len(c.Body) == 1 {
				if block, ok := c.Body[0].Data.(*js_ast.SBlock); ok {
					p.printSpace()
					p.printBlock(c.Body[0].Loc, block.Stmts)
					p.printNewline()
					continue
				}
			}

			p.printNewline()
			p.options.Indent++
			for _, stmt := range c.Body {
				p.printStmt(stmt)
			}
			p.options.Indent--
		}

		p.options.Indent--
		p.printIndent()
		p.print("}")
		p.printNewline()

	case *js_ast.SImport:
		p.printSpaceBeforeIdentifier()
		p.print("import")
		p.printSpace()

		itemCount := 0

		if s.DefaultName != nil {
			p.printSymbol(s.DefaultName.Ref)
			itemCount++
		}

		if s.Items != nil {
			if itemCount > 0 {
				p.print(",")
				p.printSpace()
			}
			p.printClauseItems(*s.Items, true /* isImport */)
			itemCount++
		}

		if s.StarNameLoc != nil {
			if itemCount > 0 {
				p.print(",")
				p.printSpace()
			}
			p.print("*")
			p.printSpace()
			p.print("as ")
			p.printSymbol(s.NamespaceRef)
			itemCount++
		}

		if itemCount > 0 {
			p.printSpace()
			p.printSpaceBeforeIdentifier()
			p.print("from")
			p.printSpace()
		}

		p.printPath(s.ImportRecordIndex)
		p.printSemicolonAfterStatement()

	case *js_ast.SBlock:
		p.printBlock(stmt.Loc, s.Stmts)
		p.printNewline()

	case *js_ast.SDebugger:
		p.printSpaceBeforeIdentifier()
		p.print("debugger")
		p.printSemicolonAfterStatement()

	case *js_ast.SBreak:
		p.printSpaceBeforeIdentifier()
		p.print("break")
		if s.Label != "" {
			p.print(" ")
			p.print(s.Label)
		}
		p.printSemicolonAfterStatement()

	case *js_ast.SContinue:
		p.printSpaceBeforeIdentifier()
		p.print("continue")
		if s.Label != "" {
			p.print(" ")
			p.print(s.Label)
		}
		p.printSemicolonAfterStatement()

	case *js_ast.SReturn:
		p.printSpaceBeforeIdentifier()
		p.print("return")
		if s.ValueOrNil.Data != nil {
			p.printSpace()
			p.printExpr(s.ValueOrNil, js_ast.LLowest, 0)
		}
		p.printSemicolonAfterStatement()

	case *js_ast.SThrow:
		p.printSpaceBeforeIdentifier()
		p.print("throw")
		p.printSpace()
		p.printExpr(s.Value, js_ast.LLowest, 0)
		p.printSemicolonAfterStatement()

	case *js_ast.SExpr:
		p.stmtStart = len(p.js)
		p.printExpr(s.Value, js_ast.LLowest, 0)
		p.printSemicolonAfterStatement()

	default:
		panic(fmt.Sprintf("Unexpected statement of type %T", stmt.Data))
	}
}

type Options struct {
	// If we're writing out a source map, this table of line start indices lets
	// us do binary search on to figure out what line a given AST node came from
	LineOffsetTables []sourcemap.LineOffsetTable

	// Dynamic imports of modules that were bundled into the same chunk. These
	// map the import record index to the namespace object of the target.
	InlinedDynamicImports map[uint32]js_ast.Ref

	Indent            int
	AddSourceMappings bool
}

type PrintResult struct {
	JS []byte

	// This source map chunk just contains the VLQ-encoded offsets for the "JS"
	// field above. It's not a full source map. The linker will be joining many
	// source map chunks together to form the final source map.
	SourceMapChunk sourcemap.Chunk
}

func Print(tree js_ast.AST, symbols js_ast.SymbolMap, r renamer.Renamer, options Options) PrintResult {
	p := &printer{
		symbols:        symbols,
		renamer:        r,
		importRecords:  tree.ImportRecords,
		options:        options,
		stmtStart:      -1,
		exportDefault:  -1,
		arrowExprStart: -1,
		prevOpEnd:      -1,
		prevNumEnd:     -1,
		prevRegExpEnd:  -1,
		builder:        sourcemap.MakeChunkBuilder(options.LineOffsetTables),
	}

	for _, part := range tree.Parts {
		for _, stmt := range part.Stmts {
			p.printStmt(stmt)
		}
	}

	return PrintResult{
		JS:             p.js,
		SourceMapChunk: p.builder.GenerateChunk(p.js),
	}
}
