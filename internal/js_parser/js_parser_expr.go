package js_parser

import (
	"fmt"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_lexer"
	"github.com/esmlink/esmlink/internal/logger"
)

func (p *parser) parseExpr(level js_ast.L) js_ast.Expr {
	oldDeferred := p.deferredDefault
	p.deferredDefault = logger.Range{}

	expr := p.parseExprOrBindings(level)

	if p.deferredDefault.Len > 0 {
		p.lexer.AddRangeErrorAndPanic(p.deferredDefault, "Unexpected \"=\"")
	}
	p.deferredDefault = oldDeferred
	return expr
}

// Like "parseExpr" but the result may still turn out to be a destructuring
// pattern, so shorthand defaults are not reported yet
func (p *parser) parseExprOrBindings(level js_ast.L) js_ast.Expr {
	return p.parseSuffix(p.parsePrefix(level), level)
}

func (p *parser) checkBindingName(r logger.Range, name string) {
	if js_lexer.StrictModeReservedWords[name] {
		p.lexer.AddRangeErrorAndPanic(r, fmt.Sprintf("%q is a reserved word and cannot be used in strict mode", name))
	}
	if name == "eval" || name == "arguments" {
		p.lexer.AddRangeErrorAndPanic(r, fmt.Sprintf("Declarations with the name %q cannot be used in strict mode", name))
	}
}

func (p *parser) parseIdentifierRef() js_ast.Ref {
	p.checkBindingName(p.lexer.Range(), p.lexer.Identifier)
	ref := p.storeNameInRef(p.lexer.Identifier)
	p.lexer.Expect(js_lexer.TIdentifier)
	return ref
}

func (p *parser) parseFn(name *js_ast.LocRef, opts fnOpts) js_ast.Fn {
	oldFnOpts := p.currentFnOpts
	p.currentFnOpts = opts

	args := []js_ast.Arg{}
	hasRestArg := false
	p.lexer.Expect(js_lexer.TOpenParen)

	for p.lexer.Token != js_lexer.TCloseParen {
		if !hasRestArg && p.lexer.Token == js_lexer.TDotDotDot {
			p.lexer.Next()
			hasRestArg = true
		}

		arg := js_ast.Arg{Binding: p.parseBinding()}
		if !hasRestArg && p.lexer.Token == js_lexer.TEquals {
			p.lexer.Next()
			arg.DefaultOrNil = p.parseExpr(js_ast.LComma)
		}
		args = append(args, arg)

		// A rest argument must be the last one
		if p.lexer.Token != js_lexer.TComma || hasRestArg {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseParen)
	p.currentFnOpts = oldFnOpts

	body := p.parseFnBodyStmts(opts)
	return js_ast.Fn{
		Name:        name,
		Args:        args,
		Body:        body,
		HasRestArg:  hasRestArg,
		IsAsync:     opts.allowAwait,
		IsGenerator: opts.allowYield,
	}
}

// This assumes the "function" token has already been parsed
func (p *parser) parseFnExpr(loc logger.Loc, isAsync bool) js_ast.Expr {
	isGenerator := p.lexer.Token == js_lexer.TAsterisk
	if isGenerator {
		p.lexer.Next()
	}

	var name *js_ast.LocRef
	if p.lexer.Token == js_lexer.TIdentifier {
		name = &js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}
	}

	fn := p.parseFn(name, fnOpts{
		allowAwait: isAsync,
		allowYield: isGenerator,
	})
	return js_ast.Expr{Loc: loc, Data: &js_ast.EFunction{Fn: fn}}
}

// This assumes the "class" token has already been parsed
func (p *parser) parseClass(name *js_ast.LocRef) js_ast.Class {
	var extends js_ast.Expr

	if p.lexer.Token == js_lexer.TExtends {
		p.lexer.Next()
		extends = p.parseExpr(js_ast.LNew)
	}

	bodyLoc := p.lexer.Loc()
	p.lexer.Expect(js_lexer.TOpenBrace)
	properties := []js_ast.Property{}

	// Class bodies are always parsed with "in" allowed
	oldAllowIn := p.allowIn
	p.allowIn = true

	for p.lexer.Token != js_lexer.TCloseBrace {
		if p.lexer.Token == js_lexer.TSemicolon {
			p.lexer.Next()
			continue
		}
		properties = append(properties, p.parseProperty(js_ast.PropertyNormal, propertyOpts{isClass: true}))
	}

	p.allowIn = oldAllowIn
	p.lexer.Expect(js_lexer.TCloseBrace)
	return js_ast.Class{Name: name, ExtendsOrNil: extends, BodyLoc: bodyLoc, Properties: properties}
}

type propertyOpts struct {
	isAsync     bool
	isGenerator bool
	isStatic    bool
	isClass     bool
}

func (p *parser) parseProperty(kind js_ast.PropertyKind, opts propertyOpts) js_ast.Property {
	var key js_ast.Expr
	keyRange := p.lexer.Range()
	isComputed := false

	switch p.lexer.Token {
	case js_lexer.TNumericLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.ENumber{Value: p.lexer.Number}}
		p.lexer.Next()

	case js_lexer.TStringLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EString{Value: p.lexer.StringLiteral, Raw: p.lexer.Raw()}}
		p.lexer.Next()

	case js_lexer.TBigIntegerLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EBigInt{Value: p.lexer.Identifier}}
		p.lexer.Next()

	case js_lexer.TPrivateIdentifier:
		if !opts.isClass {
			p.lexer.Unexpected()
		}
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EPrivateName{Name: p.lexer.Identifier}}
		p.lexer.Next()

	case js_lexer.TOpenBracket:
		isComputed = true
		p.lexer.Next()
		key = p.parseExpr(js_ast.LComma)
		p.lexer.Expect(js_lexer.TCloseBracket)

	case js_lexer.TAsterisk:
		if kind != js_ast.PropertyNormal || opts.isGenerator {
			p.lexer.Unexpected()
		}
		p.lexer.Next()
		opts.isGenerator = true
		return p.parseProperty(js_ast.PropertyNormal, opts)

	default:
		name := p.lexer.Identifier
		nameRange := p.lexer.Range()
		if !p.lexer.IsIdentifierOrKeyword() {
			p.lexer.Expect(js_lexer.TIdentifier)
		}
		isIdentifier := p.lexer.Token == js_lexer.TIdentifier
		p.lexer.Next()

		// Support contextual keywords
		if kind == js_ast.PropertyNormal && !opts.isGenerator && !opts.isAsync && isIdentifier {
			// Does the following token look like a key?
			couldBeModifierKeyword := p.lexer.IsIdentifierOrKeyword()
			if !couldBeModifierKeyword {
				switch p.lexer.Token {
				case js_lexer.TOpenBracket, js_lexer.TNumericLiteral, js_lexer.TStringLiteral,
					js_lexer.TAsterisk, js_lexer.TPrivateIdentifier, js_lexer.TBigIntegerLiteral:
					couldBeModifierKeyword = true
				}
			}

			// If so, check for a modifier keyword
			if couldBeModifierKeyword {
				switch name {
				case "get":
					return p.parseProperty(js_ast.PropertyGet, opts)

				case "set":
					return p.parseProperty(js_ast.PropertySet, opts)

				case "async":
					if !p.lexer.HasNewlineBefore {
						opts.isAsync = true
						return p.parseProperty(kind, opts)
					}

				case "static":
					if opts.isClass && !opts.isStatic {
						opts.isStatic = true
						return p.parseProperty(kind, opts)
					}
				}
			}

			// "static {}" is a class static block
			if opts.isClass && !opts.isStatic && name == "static" && p.lexer.Token == js_lexer.TOpenBrace {
				blockLoc := p.lexer.Loc()
				body := p.parseFnBodyStmts(fnOpts{})
				return js_ast.Property{
					Kind:        js_ast.PropertyClassStaticBlock,
					StaticBlock: &js_ast.ClassStaticBlock{Loc: blockLoc, Stmts: body.Stmts},
				}
			}
		}

		key = js_ast.Expr{Loc: nameRange.Loc, Data: &js_ast.EString{Value: name}}

		// Parse a shorthand property
		if !opts.isClass && kind == js_ast.PropertyNormal && !opts.isAsync && !opts.isGenerator && isIdentifier &&
			p.lexer.Token != js_lexer.TColon && p.lexer.Token != js_lexer.TOpenParen {
			value := js_ast.Expr{Loc: key.Loc, Data: &js_ast.EIdentifier{Ref: p.storeNameInRef(name)}}

			// Destructuring patterns have an optional default value
			var initializer js_ast.Expr
			if p.lexer.Token == js_lexer.TEquals {
				p.deferredDefault = p.lexer.Range()
				p.lexer.Next()
				initializer = p.parseExpr(js_ast.LComma)
			}

			return js_ast.Property{
				Kind:             kind,
				Key:              key,
				ValueOrNil:       value,
				InitializerOrNil: initializer,
			}
		}
	}

	// Parse a class field with an optional initial value
	if opts.isClass && kind == js_ast.PropertyNormal && !opts.isAsync && !opts.isGenerator && p.lexer.Token != js_lexer.TOpenParen {
		var initializer js_ast.Expr
		if p.lexer.Token == js_lexer.TEquals {
			p.lexer.Next()

			// Class field initializers are evaluated like method bodies
			oldFnOpts := p.currentFnOpts
			p.currentFnOpts = fnOpts{}
			initializer = p.parseExpr(js_ast.LComma)
			p.currentFnOpts = oldFnOpts
		}

		p.lexer.ExpectOrInsertSemicolon()
		return js_ast.Property{
			Kind:             kind,
			IsComputed:       isComputed,
			IsStatic:         opts.isStatic,
			Key:              key,
			InitializerOrNil: initializer,
		}
	}

	// Parse a method expression
	if p.lexer.Token == js_lexer.TOpenParen || kind != js_ast.PropertyNormal || opts.isClass || opts.isAsync || opts.isGenerator {
		loc := p.lexer.Loc()
		fn := p.parseFn(nil, fnOpts{
			allowAwait: opts.isAsync,
			allowYield: opts.isGenerator,
		})

		// Getters and setters have a fixed number of arguments
		if kind == js_ast.PropertyGet && len(fn.Args) > 0 {
			p.lexer.AddRangeErrorAndPanic(keyRange, "Getter functions must have no arguments")
		}
		if kind == js_ast.PropertySet && len(fn.Args) != 1 {
			p.lexer.AddRangeErrorAndPanic(keyRange, "Setter functions must have one argument")
		}

		return js_ast.Property{
			Kind:        kind,
			IsComputed:  isComputed,
			IsMethod:    true,
			IsStatic:    opts.isStatic,
			IsAsync:     opts.isAsync,
			IsGenerator: opts.isGenerator,
			Key:         key,
			ValueOrNil:  js_ast.Expr{Loc: loc, Data: &js_ast.EFunction{Fn: fn}},
		}
	}

	// Parse an object key/value pair
	p.lexer.Expect(js_lexer.TColon)
	value := p.parseExprOrBindings(js_ast.LComma)
	return js_ast.Property{
		Kind:       kind,
		IsComputed: isComputed,
		Key:        key,
		ValueOrNil: value,
	}
}

func (p *parser) parsePropertyBinding() js_ast.PropertyBinding {
	var key js_ast.Expr
	isComputed := false

	switch p.lexer.Token {
	case js_lexer.TDotDotDot:
		p.lexer.Next()
		value := js_ast.Binding{Loc: p.lexer.Loc(), Data: &js_ast.BIdentifier{Ref: p.parseIdentifierRef()}}
		return js_ast.PropertyBinding{
			IsSpread: true,
			Value:    value,
		}

	case js_lexer.TNumericLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.ENumber{Value: p.lexer.Number}}
		p.lexer.Next()

	case js_lexer.TStringLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EString{Value: p.lexer.StringLiteral, Raw: p.lexer.Raw()}}
		p.lexer.Next()

	case js_lexer.TBigIntegerLiteral:
		key = js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EBigInt{Value: p.lexer.Identifier}}
		p.lexer.Next()

	case js_lexer.TOpenBracket:
		isComputed = true
		p.lexer.Next()
		key = p.parseExpr(js_ast.LComma)
		p.lexer.Expect(js_lexer.TCloseBracket)

	default:
		name := p.lexer.Identifier
		loc := p.lexer.Loc()
		r := p.lexer.Range()
		if !p.lexer.IsIdentifierOrKeyword() {
			p.lexer.Expect(js_lexer.TIdentifier)
		}
		isIdentifier := p.lexer.Token == js_lexer.TIdentifier
		p.lexer.Next()
		key = js_ast.Expr{Loc: loc, Data: &js_ast.EString{Value: name}}

		if p.lexer.Token != js_lexer.TColon {
			// Only identifiers can be shorthand bindings
			if !isIdentifier {
				p.lexer.Expect(js_lexer.TColon)
			}
			p.checkBindingName(r, name)
			value := js_ast.Binding{Loc: loc, Data: &js_ast.BIdentifier{Ref: p.storeNameInRef(name)}}

			var defaultValue js_ast.Expr
			if p.lexer.Token == js_lexer.TEquals {
				p.lexer.Next()
				defaultValue = p.parseExpr(js_ast.LComma)
			}

			return js_ast.PropertyBinding{
				Key:          key,
				Value:        value,
				DefaultValue: defaultValue,
			}
		}
	}

	p.lexer.Expect(js_lexer.TColon)
	value := p.parseBinding()

	var defaultValue js_ast.Expr
	if p.lexer.Token == js_lexer.TEquals {
		p.lexer.Next()
		defaultValue = p.parseExpr(js_ast.LComma)
	}

	return js_ast.PropertyBinding{
		IsComputed:   isComputed,
		Key:          key,
		Value:        value,
		DefaultValue: defaultValue,
	}
}

func (p *parser) parseBinding() js_ast.Binding {
	loc := p.lexer.Loc()

	switch p.lexer.Token {
	case js_lexer.TIdentifier:
		return js_ast.Binding{Loc: loc, Data: &js_ast.BIdentifier{Ref: p.parseIdentifierRef()}}

	case js_lexer.TOpenBracket:
		p.lexer.Next()
		items := []js_ast.ArrayBinding{}
		hasSpread := false

		// "in" expressions are allowed
		oldAllowIn := p.allowIn
		p.allowIn = true

		for p.lexer.Token != js_lexer.TCloseBracket {
			if p.lexer.Token == js_lexer.TComma {
				binding := js_ast.Binding{Loc: p.lexer.Loc(), Data: &js_ast.BMissing{}}
				items = append(items, js_ast.ArrayBinding{Binding: binding})
			} else {
				if p.lexer.Token == js_lexer.TDotDotDot {
					p.lexer.Next()
					hasSpread = true
				}

				binding := p.parseBinding()

				var defaultValue js_ast.Expr
				if !hasSpread && p.lexer.Token == js_lexer.TEquals {
					p.lexer.Next()
					defaultValue = p.parseExpr(js_ast.LComma)
				}

				items = append(items, js_ast.ArrayBinding{Binding: binding, DefaultValue: defaultValue})

				// The spread must be the last item
				if hasSpread {
					break
				}
			}

			if p.lexer.Token != js_lexer.TComma {
				break
			}
			p.lexer.Next()
		}

		p.allowIn = oldAllowIn
		p.lexer.Expect(js_lexer.TCloseBracket)
		return js_ast.Binding{Loc: loc, Data: &js_ast.BArray{Items: items, HasSpread: hasSpread}}

	case js_lexer.TOpenBrace:
		p.lexer.Next()
		properties := []js_ast.PropertyBinding{}

		// "in" expressions are allowed
		oldAllowIn := p.allowIn
		p.allowIn = true

		for p.lexer.Token != js_lexer.TCloseBrace {
			property := p.parsePropertyBinding()
			properties = append(properties, property)

			// The spread must be the last item
			if property.IsSpread {
				break
			}

			if p.lexer.Token != js_lexer.TComma {
				break
			}
			p.lexer.Next()
		}

		p.allowIn = oldAllowIn
		p.lexer.Expect(js_lexer.TCloseBrace)
		return js_ast.Binding{Loc: loc, Data: &js_ast.BObject{Properties: properties}}
	}

	p.lexer.Expect(js_lexer.TIdentifier)
	return js_ast.Binding{}
}

func (p *parser) parseArrowBody(loc logger.Loc, args []js_ast.Arg, hasRestArg bool, opts fnOpts) js_ast.Expr {
	p.lexer.Expect(js_lexer.TEqualsGreaterThan)

	if p.lexer.Token == js_lexer.TOpenBrace {
		body := p.parseFnBodyStmts(opts)
		return js_ast.Expr{Loc: loc, Data: &js_ast.EArrow{
			Args:       args,
			Body:       body,
			HasRestArg: hasRestArg,
			IsAsync:    opts.allowAwait,
		}}
	}

	oldFnOpts := p.currentFnOpts
	oldAllowIn := p.allowIn
	p.currentFnOpts = opts
	p.allowIn = true

	expr := p.parseExpr(js_ast.LComma)

	p.currentFnOpts = oldFnOpts
	p.allowIn = oldAllowIn

	return js_ast.Expr{Loc: loc, Data: &js_ast.EArrow{
		Args:       args,
		Body:       js_ast.FnBody{Loc: expr.Loc, Stmts: []js_ast.Stmt{{Loc: expr.Loc, Data: &js_ast.SReturn{ValueOrNil: expr}}}},
		HasRestArg: hasRestArg,
		IsAsync:    opts.allowAwait,
		PreferExpr: true,
	}}
}

// This parses an expression in parentheses, which may turn out to be the
// argument list of an arrow function. The "async" keyword has already been
// consumed if "isAsync" is true, in which case this may also be a call to a
// function named "async".
func (p *parser) parseParenExpr(loc logger.Loc, isAsync bool) js_ast.Expr {
	items := []js_ast.Expr{}
	spreadRange := logger.Range{}
	p.lexer.Expect(js_lexer.TOpenParen)

	// Shorthand defaults inside are fine if this is an arrow function
	oldDeferred := p.deferredDefault
	p.deferredDefault = logger.Range{}

	// "in" expressions are allowed
	oldAllowIn := p.allowIn
	p.allowIn = true

	for p.lexer.Token != js_lexer.TCloseParen {
		itemLoc := p.lexer.Loc()

		if p.lexer.Token == js_lexer.TDotDotDot {
			spreadRange = p.lexer.Range()
			p.lexer.Next()
			item := p.parseExprOrBindings(js_ast.LComma)
			items = append(items, js_ast.Expr{Loc: itemLoc, Data: &js_ast.ESpread{Value: item}})
		} else {
			items = append(items, p.parseExprOrBindings(js_ast.LComma))
		}

		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseParen)
	p.allowIn = oldAllowIn

	// Are these arguments to an arrow function?
	if p.lexer.Token == js_lexer.TEqualsGreaterThan {
		if p.lexer.HasNewlineBefore {
			p.lexer.Unexpected()
		}

		args := []js_ast.Arg{}
		hasRestArg := false
		for i, item := range items {
			if spread, ok := item.Data.(*js_ast.ESpread); ok {
				if i+1 != len(items) {
					p.lexer.AddRangeErrorAndPanic(spreadRange, "Unexpected \"...\"")
				}
				hasRestArg = true
				item = spread.Value
			}

			var defaultValue js_ast.Expr
			if assign, ok := item.Data.(*js_ast.EBinary); ok && assign.Op == js_ast.BinOpAssign && !hasRestArg {
				item = assign.Left
				defaultValue = assign.Right
			}

			args = append(args, js_ast.Arg{Binding: p.convertExprToBinding(item), DefaultOrNil: defaultValue})
		}

		p.deferredDefault = oldDeferred
		return p.parseArrowBody(loc, args, hasRestArg, fnOpts{allowAwait: isAsync})
	}

	// This was a call to a function named "async"
	if isAsync {
		if p.deferredDefault.Len > 0 {
			p.lexer.AddRangeErrorAndPanic(p.deferredDefault, "Unexpected \"=\"")
		}
		p.deferredDefault = oldDeferred
		return js_ast.Expr{Loc: loc, Data: &js_ast.ECall{
			Target: js_ast.Expr{Loc: loc, Data: &js_ast.EIdentifier{Ref: p.storeNameInRef("async")}},
			Args:   items,
		}}
	}

	// Now that we know this isn't an arrow function, report deferred errors
	if p.deferredDefault.Len > 0 {
		p.lexer.AddRangeErrorAndPanic(p.deferredDefault, "Unexpected \"=\"")
	}
	if spreadRange.Len > 0 {
		p.lexer.AddRangeErrorAndPanic(spreadRange, "Unexpected \"...\"")
	}
	if len(items) == 0 {
		p.lexer.Expected(js_lexer.TEqualsGreaterThan)
	}
	p.deferredDefault = oldDeferred

	// Join the items with the comma operator
	value := items[0]
	for _, item := range items[1:] {
		value = js_ast.Expr{Loc: value.Loc, Data: &js_ast.EBinary{Op: js_ast.BinOpComma, Left: value, Right: item}}
	}
	return value
}

func (p *parser) convertExprToBinding(expr js_ast.Expr) js_ast.Binding {
	switch e := expr.Data.(type) {
	case *js_ast.EMissing:
		return js_ast.Binding{Loc: expr.Loc, Data: &js_ast.BMissing{}}

	case *js_ast.EIdentifier:
		name := p.allocatedNames[e.Ref.InnerIndex]
		p.checkBindingName(js_lexer.RangeOfIdentifier(p.source, expr.Loc), name)
		return js_ast.Binding{Loc: expr.Loc, Data: &js_ast.BIdentifier{Ref: e.Ref}}

	case *js_ast.EArray:
		items := []js_ast.ArrayBinding{}
		hasSpread := false
		for i, item := range e.Items {
			if spread, ok := item.Data.(*js_ast.ESpread); ok {
				if i+1 != len(e.Items) {
					break
				}
				hasSpread = true
				item = spread.Value
			}

			var defaultValue js_ast.Expr
			if assign, ok := item.Data.(*js_ast.EBinary); ok && assign.Op == js_ast.BinOpAssign && !hasSpread {
				item = assign.Left
				defaultValue = assign.Right
			}

			items = append(items, js_ast.ArrayBinding{Binding: p.convertExprToBinding(item), DefaultValue: defaultValue})
		}
		if hasSpread || len(items) == len(e.Items) {
			return js_ast.Binding{Loc: expr.Loc, Data: &js_ast.BArray{Items: items, HasSpread: hasSpread}}
		}

	case *js_ast.EObject:
		properties := []js_ast.PropertyBinding{}
		for i, property := range e.Properties {
			if property.IsMethod || property.Kind == js_ast.PropertyGet || property.Kind == js_ast.PropertySet {
				break
			}

			if property.Kind == js_ast.PropertySpread {
				if i+1 != len(e.Properties) {
					break
				}
				properties = append(properties, js_ast.PropertyBinding{
					IsSpread: true,
					Value:    p.convertExprToBinding(property.ValueOrNil),
				})
				continue
			}

			value := property.ValueOrNil
			defaultValue := property.InitializerOrNil
			if assign, ok := value.Data.(*js_ast.EBinary); ok && assign.Op == js_ast.BinOpAssign && defaultValue.Data == nil {
				value = assign.Left
				defaultValue = assign.Right
			}

			properties = append(properties, js_ast.PropertyBinding{
				IsComputed:   property.IsComputed,
				Key:          property.Key,
				Value:        p.convertExprToBinding(value),
				DefaultValue: defaultValue,
			})
		}
		if len(properties) == len(e.Properties) {
			return js_ast.Binding{Loc: expr.Loc, Data: &js_ast.BObject{Properties: properties}}
		}
	}

	p.lexer.AddRangeErrorAndPanic(logger.Range{Loc: expr.Loc}, "Invalid binding pattern")
	return js_ast.Binding{}
}

// This assumes "async" has already been consumed
func (p *parser) parseAsyncPrefixExpr(asyncLoc logger.Loc, level js_ast.L) js_ast.Expr {
	if !p.lexer.HasNewlineBefore {
		switch p.lexer.Token {
		// "async function() {}"
		case js_lexer.TFunction:
			p.lexer.Next()
			return p.parseFnExpr(asyncLoc, true /* isAsync */)

		// "async x => {}"
		case js_lexer.TIdentifier:
			arg := js_ast.Arg{Binding: js_ast.Binding{Loc: p.lexer.Loc(), Data: &js_ast.BIdentifier{Ref: p.parseIdentifierRef()}}}
			if p.lexer.Token != js_lexer.TEqualsGreaterThan {
				p.lexer.Expected(js_lexer.TEqualsGreaterThan)
			}
			return p.parseArrowBody(asyncLoc, []js_ast.Arg{arg}, false, fnOpts{allowAwait: true})

		// "async()"
		// "async () => {}"
		case js_lexer.TOpenParen:
			return p.parseParenExpr(asyncLoc, true /* isAsync */)
		}
	}

	// "async"
	// "async + 1"
	ref := p.storeNameInRef("async")

	// "async => {}"
	if p.lexer.Token == js_lexer.TEqualsGreaterThan && level <= js_ast.LAssign {
		arg := js_ast.Arg{Binding: js_ast.Binding{Loc: asyncLoc, Data: &js_ast.BIdentifier{Ref: ref}}}
		return p.parseArrowBody(asyncLoc, []js_ast.Arg{arg}, false, fnOpts{})
	}

	return js_ast.Expr{Loc: asyncLoc, Data: &js_ast.EIdentifier{Ref: ref}}
}

// This assumes the "import" token has already been parsed
func (p *parser) parseImportExpr(loc logger.Loc, level js_ast.L) js_ast.Expr {
	// "import.meta"
	if p.lexer.Token == js_lexer.TDot {
		p.lexer.Next()
		if !p.lexer.IsContextualKeyword("meta") {
			p.lexer.ExpectedString("\"meta\"")
		}
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EImportMeta{}}
	}

	if level > js_ast.LCall {
		r := js_lexer.RangeOfIdentifier(p.source, loc)
		p.lexer.AddRangeErrorAndPanic(r, "Cannot use an \"import\" expression here without parentheses")
	}

	// "in" expressions are allowed
	oldAllowIn := p.allowIn
	p.allowIn = true

	p.lexer.Expect(js_lexer.TOpenParen)
	value := p.parseExpr(js_ast.LComma)
	if p.lexer.Token == js_lexer.TComma {
		p.lexer.AddRangeErrorAndPanic(p.lexer.Range(), "Import attributes are not supported")
	}
	p.lexer.Expect(js_lexer.TCloseParen)

	p.allowIn = oldAllowIn

	// Only string literals can be resolved at build time. Everything else is
	// left for the runtime to deal with.
	if str, ok := value.Data.(*js_ast.EString); ok && str.Raw != "" && p.options.IsBundling {
		index := p.addImportRecord(ast.ImportDynamic, value.Loc, str.Value, 0)
		return js_ast.Expr{Loc: loc, Data: &js_ast.EImportCall{Expr: value, ImportRecordIndex: ast.MakeIndex32(index)}}
	}
	return js_ast.Expr{Loc: loc, Data: &js_ast.EImportCall{Expr: value}}
}

func (p *parser) parseTemplateParts() (parts []js_ast.TemplatePart) {
	// Allow "in" inside template literals
	oldAllowIn := p.allowIn
	p.allowIn = true

	for {
		p.lexer.Next()
		value := p.parseExpr(js_ast.LLowest)
		p.lexer.RescanCloseBraceAsTemplateToken()
		tailRaw := p.lexer.StringLiteral
		parts = append(parts, js_ast.TemplatePart{Value: value, TailRaw: tailRaw})
		if p.lexer.Token == js_lexer.TTemplateTail {
			p.lexer.Next()
			break
		}
	}

	p.allowIn = oldAllowIn
	return parts
}

func (p *parser) parseCallArgs() []js_ast.Expr {
	// Allow "in" inside call arguments
	oldAllowIn := p.allowIn
	p.allowIn = true

	args := []js_ast.Expr{}
	p.lexer.Expect(js_lexer.TOpenParen)

	for p.lexer.Token != js_lexer.TCloseParen {
		loc := p.lexer.Loc()
		isSpread := p.lexer.Token == js_lexer.TDotDotDot
		if isSpread {
			p.lexer.Next()
		}
		arg := p.parseExpr(js_ast.LComma)
		if isSpread {
			arg = js_ast.Expr{Loc: loc, Data: &js_ast.ESpread{Value: arg}}
		}
		args = append(args, arg)
		if p.lexer.Token != js_lexer.TComma {
			break
		}
		p.lexer.Next()
	}

	p.lexer.Expect(js_lexer.TCloseParen)
	p.allowIn = oldAllowIn
	return args
}

func isValidAssignTarget(expr js_ast.Expr, allowPatterns bool) bool {
	switch expr.Data.(type) {
	case *js_ast.EIdentifier, *js_ast.EDot, *js_ast.EIndex:
		return true
	case *js_ast.EArray, *js_ast.EObject:
		return allowPatterns
	}
	return false
}

func (p *parser) parsePrefix(level js_ast.L) js_ast.Expr {
	loc := p.lexer.Loc()

	switch p.lexer.Token {
	case js_lexer.TSuper:
		p.lexer.Next()

		switch p.lexer.Token {
		case js_lexer.TOpenParen, js_lexer.TDot, js_lexer.TOpenBracket:
			return js_ast.Expr{Loc: loc, Data: &js_ast.ESuper{}}
		}

		p.lexer.Unexpected()
		return js_ast.Expr{}

	case js_lexer.TOpenParen:
		return p.parseParenExpr(loc, false /* isAsync */)

	case js_lexer.TFalse:
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EBoolean{Value: false}}

	case js_lexer.TTrue:
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EBoolean{Value: true}}

	case js_lexer.TNull:
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.ENull{}}

	case js_lexer.TThis:
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EThis{}}

	case js_lexer.TIdentifier:
		name := p.lexer.Identifier
		nameRange := p.lexer.Range()
		p.lexer.Next()

		// Handle async and await expressions
		switch name {
		case "async":
			if nameRange.Len == 5 {
				return p.parseAsyncPrefixExpr(loc, level)
			}

		case "await":
			if !p.currentFnOpts.allowAwait {
				p.lexer.AddRangeErrorAndPanic(nameRange, "Cannot use \"await\" outside an async function")
			}
			value := p.parseExpr(js_ast.LPrefix)
			if p.lexer.Token == js_lexer.TAsteriskAsterisk {
				p.lexer.Unexpected()
			}
			return js_ast.Expr{Loc: loc, Data: &js_ast.EAwait{Value: value}}

		case "yield":
			if !p.currentFnOpts.allowYield {
				p.lexer.AddRangeErrorAndPanic(nameRange, "Cannot use \"yield\" outside a generator function")
			}
			if level > js_ast.LAssign {
				p.lexer.AddRangeErrorAndPanic(nameRange, "Cannot use a \"yield\" expression here without parentheses")
			}
			return p.parseYieldExpr(loc)
		}

		// Handle the start of an arrow function
		if p.lexer.Token == js_lexer.TEqualsGreaterThan && !p.lexer.HasNewlineBefore && level <= js_ast.LAssign {
			p.checkBindingName(nameRange, name)
			arg := js_ast.Arg{Binding: js_ast.Binding{Loc: loc, Data: &js_ast.BIdentifier{Ref: p.storeNameInRef(name)}}}
			return p.parseArrowBody(loc, []js_ast.Arg{arg}, false, fnOpts{})
		}

		return js_ast.Expr{Loc: loc, Data: &js_ast.EIdentifier{Ref: p.storeNameInRef(name)}}

	case js_lexer.TStringLiteral:
		value := p.lexer.StringLiteral
		raw := p.lexer.Raw()
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EString{Value: value, Raw: raw}}

	case js_lexer.TNoSubstitutionTemplateLiteral:
		head := p.lexer.StringLiteral
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.ETemplate{HeadRaw: head}}

	case js_lexer.TTemplateHead:
		head := p.lexer.StringLiteral
		parts := p.parseTemplateParts()
		return js_ast.Expr{Loc: loc, Data: &js_ast.ETemplate{HeadRaw: head, Parts: parts}}

	case js_lexer.TNumericLiteral:
		value := p.lexer.Number
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.ENumber{Value: value}}

	case js_lexer.TBigIntegerLiteral:
		value := p.lexer.Identifier
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.EBigInt{Value: value}}

	case js_lexer.TSlash, js_lexer.TSlashEquals:
		p.lexer.ScanRegExp()
		value := p.lexer.Raw()
		p.lexer.Next()
		return js_ast.Expr{Loc: loc, Data: &js_ast.ERegExp{Value: value}}

	case js_lexer.TVoid:
		return p.parseUnaryExpr(loc, js_ast.UnOpVoid)

	case js_lexer.TTypeof:
		return p.parseUnaryExpr(loc, js_ast.UnOpTypeof)

	case js_lexer.TDelete:
		expr := p.parseUnaryExpr(loc, js_ast.UnOpDelete)
		if _, ok := expr.Data.(*js_ast.EUnary).Value.Data.(*js_ast.EIdentifier); ok {
			r := js_lexer.RangeOfIdentifier(p.source, loc)
			p.lexer.AddRangeErrorAndPanic(r, "Delete of a bare identifier cannot be used in strict mode")
		}
		return expr

	case js_lexer.TMinus:
		return p.parseUnaryExpr(loc, js_ast.UnOpNeg)

	case js_lexer.TPlus:
		return p.parseUnaryExpr(loc, js_ast.UnOpPos)

	case js_lexer.TTilde:
		return p.parseUnaryExpr(loc, js_ast.UnOpCpl)

	case js_lexer.TExclamation:
		return p.parseUnaryExpr(loc, js_ast.UnOpNot)

	case js_lexer.TMinusMinus:
		return p.parseUpdateExpr(loc, js_ast.UnOpPreDec)

	case js_lexer.TPlusPlus:
		return p.parseUpdateExpr(loc, js_ast.UnOpPreInc)

	case js_lexer.TFunction:
		p.lexer.Next()
		return p.parseFnExpr(loc, false /* isAsync */)

	case js_lexer.TClass:
		p.lexer.Next()
		var name *js_ast.LocRef
		if p.lexer.Token == js_lexer.TIdentifier {
			name = &js_ast.LocRef{Loc: p.lexer.Loc(), Ref: p.parseIdentifierRef()}
		}
		class := p.parseClass(name)
		return js_ast.Expr{Loc: loc, Data: &js_ast.EClass{Class: class}}

	case js_lexer.TNew:
		p.lexer.Next()

		// Special-case the weird "new.target" expression here
		if p.lexer.Token == js_lexer.TDot {
			p.lexer.Next()
			if !p.lexer.IsContextualKeyword("target") {
				p.lexer.ExpectedString("\"target\"")
			}
			p.lexer.Next()
			return js_ast.Expr{Loc: loc, Data: &js_ast.ENewTarget{}}
		}

		target := p.parseExpr(js_ast.LMember)
		args := []js_ast.Expr{}

		if p.lexer.Token == js_lexer.TOpenParen {
			args = p.parseCallArgs()
		}

		return js_ast.Expr{Loc: loc, Data: &js_ast.ENew{Target: target, Args: args}}

	case js_lexer.TOpenBracket:
		p.lexer.Next()
		isSingleLine := !p.lexer.HasNewlineBefore
		items := []js_ast.Expr{}

		// Allow "in" inside arrays
		oldAllowIn := p.allowIn
		p.allowIn = true

		for p.lexer.Token != js_lexer.TCloseBracket {
			switch p.lexer.Token {
			case js_lexer.TComma:
				items = append(items, js_ast.Expr{Loc: p.lexer.Loc(), Data: &js_ast.EMissing{}})

			case js_lexer.TDotDotDot:
				dotsLoc := p.lexer.Loc()
				p.lexer.Next()
				item := p.parseExprOrBindings(js_ast.LComma)
				items = append(items, js_ast.Expr{Loc: dotsLoc, Data: &js_ast.ESpread{Value: item}})

			default:
				items = append(items, p.parseExprOrBindings(js_ast.LComma))
			}

			if p.lexer.Token != js_lexer.TComma {
				break
			}
			p.lexer.Next()
			if p.lexer.HasNewlineBefore {
				isSingleLine = false
			}
		}

		if p.lexer.HasNewlineBefore {
			isSingleLine = false
		}
		p.lexer.Expect(js_lexer.TCloseBracket)
		p.allowIn = oldAllowIn

		return js_ast.Expr{Loc: loc, Data: &js_ast.EArray{Items: items, IsSingleLine: isSingleLine}}

	case js_lexer.TOpenBrace:
		p.lexer.Next()
		isSingleLine := !p.lexer.HasNewlineBefore
		properties := []js_ast.Property{}

		// Allow "in" inside object literals
		oldAllowIn := p.allowIn
		p.allowIn = true

		for p.lexer.Token != js_lexer.TCloseBrace {
			if p.lexer.Token == js_lexer.TDotDotDot {
				p.lexer.Next()
				value := p.parseExprOrBindings(js_ast.LComma)
				properties = append(properties, js_ast.Property{Kind: js_ast.PropertySpread, ValueOrNil: value})
			} else {
				properties = append(properties, p.parseProperty(js_ast.PropertyNormal, propertyOpts{}))
			}

			if p.lexer.Token != js_lexer.TComma {
				break
			}
			p.lexer.Next()
			if p.lexer.HasNewlineBefore {
				isSingleLine = false
			}
		}

		if p.lexer.HasNewlineBefore {
			isSingleLine = false
		}
		p.lexer.Expect(js_lexer.TCloseBrace)
		p.allowIn = oldAllowIn

		return js_ast.Expr{Loc: loc, Data: &js_ast.EObject{Properties: properties, IsSingleLine: isSingleLine}}

	case js_lexer.TImport:
		p.lexer.Next()
		return p.parseImportExpr(loc, level)

	case js_lexer.TPrivateIdentifier:
		// "#x in obj"
		name := p.lexer.Identifier
		p.lexer.Next()
		if p.lexer.Token != js_lexer.TIn {
			p.lexer.Expected(js_lexer.TIn)
		}
		return js_ast.Expr{Loc: loc, Data: &js_ast.EPrivateName{Name: name}}

	default:
		p.lexer.Unexpected()
		return js_ast.Expr{}
	}
}

func (p *parser) parseUnaryExpr(loc logger.Loc, op js_ast.OpCode) js_ast.Expr {
	p.lexer.Next()
	value := p.parseExpr(js_ast.LPrefix)

	// "-x ** 2" is ambiguous and is a syntax error
	if p.lexer.Token == js_lexer.TAsteriskAsterisk {
		p.lexer.Unexpected()
	}
	return js_ast.Expr{Loc: loc, Data: &js_ast.EUnary{Op: op, Value: value}}
}

func (p *parser) parseUpdateExpr(loc logger.Loc, op js_ast.OpCode) js_ast.Expr {
	p.lexer.Next()
	value := p.parseExpr(js_ast.LPrefix)
	if !isValidAssignTarget(value, false) {
		p.lexer.AddRangeErrorAndPanic(logger.Range{Loc: value.Loc}, "Invalid assignment target")
	}
	return js_ast.Expr{Loc: loc, Data: &js_ast.EUnary{Op: op, Value: value}}
}

// This assumes "yield" has already been consumed
func (p *parser) parseYieldExpr(loc logger.Loc) js_ast.Expr {
	var value js_ast.Expr
	isStar := false

	switch p.lexer.Token {
	case js_lexer.TCloseBrace, js_lexer.TCloseBracket, js_lexer.TCloseParen,
		js_lexer.TColon, js_lexer.TComma, js_lexer.TSemicolon, js_lexer.TEndOfFile:

	default:
		if !p.lexer.HasNewlineBefore || p.lexer.Token == js_lexer.TAsterisk {
			if p.lexer.Token == js_lexer.TAsterisk {
				isStar = true
				p.lexer.Next()
			}
			value = p.parseExpr(js_ast.LYield)
		}
	}

	return js_ast.Expr{Loc: loc, Data: &js_ast.EYield{ValueOrNil: value, IsStar: isStar}}
}

var binaryOps = map[js_lexer.T]js_ast.OpCode{
	js_lexer.TPlus:                              js_ast.BinOpAdd,
	js_lexer.TMinus:                             js_ast.BinOpSub,
	js_lexer.TAsterisk:                          js_ast.BinOpMul,
	js_lexer.TSlash:                             js_ast.BinOpDiv,
	js_lexer.TPercent:                           js_ast.BinOpRem,
	js_lexer.TAsteriskAsterisk:                  js_ast.BinOpPow,
	js_lexer.TLessThan:                          js_ast.BinOpLt,
	js_lexer.TLessThanEquals:                    js_ast.BinOpLe,
	js_lexer.TGreaterThan:                       js_ast.BinOpGt,
	js_lexer.TGreaterThanEquals:                 js_ast.BinOpGe,
	js_lexer.TIn:                                js_ast.BinOpIn,
	js_lexer.TInstanceof:                        js_ast.BinOpInstanceof,
	js_lexer.TLessThanLessThan:                  js_ast.BinOpShl,
	js_lexer.TGreaterThanGreaterThan:            js_ast.BinOpShr,
	js_lexer.TGreaterThanGreaterThanGreaterThan: js_ast.BinOpUShr,
	js_lexer.TEqualsEquals:                      js_ast.BinOpLooseEq,
	js_lexer.TExclamationEquals:                 js_ast.BinOpLooseNe,
	js_lexer.TEqualsEqualsEquals:                js_ast.BinOpStrictEq,
	js_lexer.TExclamationEqualsEquals:           js_ast.BinOpStrictNe,
	js_lexer.TQuestionQuestion:                  js_ast.BinOpNullishCoalescing,
	js_lexer.TBarBar:                            js_ast.BinOpLogicalOr,
	js_lexer.TAmpersandAmpersand:                js_ast.BinOpLogicalAnd,
	js_lexer.TBar:                               js_ast.BinOpBitwiseOr,
	js_lexer.TAmpersand:                         js_ast.BinOpBitwiseAnd,
	js_lexer.TCaret:                             js_ast.BinOpBitwiseXor,

	js_lexer.TEquals:                                  js_ast.BinOpAssign,
	js_lexer.TPlusEquals:                              js_ast.BinOpAddAssign,
	js_lexer.TMinusEquals:                             js_ast.BinOpSubAssign,
	js_lexer.TAsteriskEquals:                          js_ast.BinOpMulAssign,
	js_lexer.TSlashEquals:                             js_ast.BinOpDivAssign,
	js_lexer.TPercentEquals:                           js_ast.BinOpRemAssign,
	js_lexer.TAsteriskAsteriskEquals:                  js_ast.BinOpPowAssign,
	js_lexer.TLessThanLessThanEquals:                  js_ast.BinOpShlAssign,
	js_lexer.TGreaterThanGreaterThanEquals:            js_ast.BinOpShrAssign,
	js_lexer.TGreaterThanGreaterThanGreaterThanEquals: js_ast.BinOpUShrAssign,
	js_lexer.TBarEquals:                               js_ast.BinOpBitwiseOrAssign,
	js_lexer.TAmpersandEquals:                         js_ast.BinOpBitwiseAndAssign,
	js_lexer.TCaretEquals:                             js_ast.BinOpBitwiseXorAssign,
	js_lexer.TQuestionQuestionEquals:                  js_ast.BinOpNullishCoalescingAssign,
	js_lexer.TBarBarEquals:                            js_ast.BinOpLogicalOrAssign,
	js_lexer.TAmpersandAmpersandEquals:                js_ast.BinOpLogicalAndAssign,
}

func (p *parser) parseSuffix(left js_ast.Expr, level js_ast.L) js_ast.Expr {
	for {
		switch p.lexer.Token {
		case js_lexer.TDot:
			p.lexer.Next()

			if p.lexer.Token == js_lexer.TPrivateIdentifier {
				// "a.#b"
				name := p.lexer.Identifier
				nameLoc := p.lexer.Loc()
				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EIndex{
					Target: left,
					Index:  js_ast.Expr{Loc: nameLoc, Data: &js_ast.EPrivateName{Name: name}},
				}}
			} else {
				// "a.b"
				if !p.lexer.IsIdentifierOrKeyword() {
					p.lexer.Expect(js_lexer.TIdentifier)
				}
				name := p.lexer.Identifier
				nameLoc := p.lexer.Loc()
				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EDot{Target: left, Name: name, NameLoc: nameLoc}}
			}

		case js_lexer.TQuestionDot:
			p.lexer.Next()

			switch p.lexer.Token {
			case js_lexer.TOpenBracket:
				// "a?.[b]"
				p.lexer.Next()

				// Allow "in" inside the brackets
				oldAllowIn := p.allowIn
				p.allowIn = true

				index := p.parseExpr(js_ast.LLowest)

				p.allowIn = oldAllowIn
				p.lexer.Expect(js_lexer.TCloseBracket)
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EIndex{Target: left, Index: index, OptionalChain: true}}

			case js_lexer.TOpenParen:
				// "a?.()"
				if level >= js_ast.LCall {
					return left
				}
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.ECall{Target: left, Args: p.parseCallArgs(), OptionalChain: true}}

			case js_lexer.TPrivateIdentifier:
				// "a?.#b"
				name := p.lexer.Identifier
				nameLoc := p.lexer.Loc()
				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EIndex{
					Target:        left,
					Index:         js_ast.Expr{Loc: nameLoc, Data: &js_ast.EPrivateName{Name: name}},
					OptionalChain: true,
				}}

			default:
				// "a?.b"
				if !p.lexer.IsIdentifierOrKeyword() {
					p.lexer.Expect(js_lexer.TIdentifier)
				}
				name := p.lexer.Identifier
				nameLoc := p.lexer.Loc()
				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EDot{Target: left, Name: name, NameLoc: nameLoc, OptionalChain: true}}
			}

		case js_lexer.TNoSubstitutionTemplateLiteral:
			head := p.lexer.StringLiteral
			p.lexer.Next()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.ETemplate{TagOrNil: left, HeadRaw: head}}

		case js_lexer.TTemplateHead:
			head := p.lexer.StringLiteral
			parts := p.parseTemplateParts()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.ETemplate{TagOrNil: left, HeadRaw: head, Parts: parts}}

		case js_lexer.TOpenBracket:
			p.lexer.Next()

			// Allow "in" inside the brackets
			oldAllowIn := p.allowIn
			p.allowIn = true

			index := p.parseExpr(js_ast.LLowest)

			p.allowIn = oldAllowIn
			p.lexer.Expect(js_lexer.TCloseBracket)
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EIndex{Target: left, Index: index}}

		case js_lexer.TOpenParen:
			if level >= js_ast.LCall {
				return left
			}
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.ECall{Target: left, Args: p.parseCallArgs()}}

		case js_lexer.TQuestion:
			if level >= js_ast.LConditional {
				return left
			}
			p.lexer.Next()

			// Allow "in" in between "?" and ":"
			oldAllowIn := p.allowIn
			p.allowIn = true

			yes := p.parseExpr(js_ast.LComma)

			p.allowIn = oldAllowIn
			p.lexer.Expect(js_lexer.TColon)
			no := p.parseExpr(js_ast.LComma)
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EIf{Test: left, Yes: yes, No: no}}

		case js_lexer.TMinusMinus:
			if p.lexer.HasNewlineBefore || level >= js_ast.LPostfix {
				return left
			}
			if !isValidAssignTarget(left, false) {
				p.lexer.AddRangeErrorAndPanic(logger.Range{Loc: left.Loc}, "Invalid assignment target")
			}
			p.lexer.Next()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EUnary{Op: js_ast.UnOpPostDec, Value: left}}

		case js_lexer.TPlusPlus:
			if p.lexer.HasNewlineBefore || level >= js_ast.LPostfix {
				return left
			}
			if !isValidAssignTarget(left, false) {
				p.lexer.AddRangeErrorAndPanic(logger.Range{Loc: left.Loc}, "Invalid assignment target")
			}
			p.lexer.Next()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EUnary{Op: js_ast.UnOpPostInc, Value: left}}

		case js_lexer.TComma:
			if level >= js_ast.LComma {
				return left
			}
			p.lexer.Next()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EBinary{Op: js_ast.BinOpComma, Left: left, Right: p.parseExpr(js_ast.LComma)}}

		default:
			op, ok := binaryOps[p.lexer.Token]
			if !ok {
				return left
			}
			opLevel := js_ast.OpTable[op].Level

			if op.IsAssign() {
				if level > js_ast.LAssign {
					return left
				}
				if !isValidAssignTarget(left, op == js_ast.BinOpAssign) {
					p.lexer.AddRangeErrorAndPanic(logger.Range{Loc: left.Loc}, "Invalid assignment target")
				}

				// The target is a destructuring pattern, so shorthand defaults in
				// it are valid after all
				if op == js_ast.BinOpAssign {
					switch left.Data.(type) {
					case *js_ast.EArray, *js_ast.EObject:
						p.deferredDefault = logger.Range{}
					}
				}

				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EBinary{Op: op, Left: left, Right: p.parseExpr(js_ast.LAssign - 1)}}
				continue
			}

			if op == js_ast.BinOpIn && !p.allowIn {
				return left
			}

			if op.IsRightAssociative() {
				// "a ** b ** c" is "a ** (b ** c)"
				if level >= opLevel {
					return left
				}
				p.lexer.Next()
				left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EBinary{Op: op, Left: left, Right: p.parseExpr(opLevel - 1)}}
				continue
			}

			if level >= opLevel {
				return left
			}
			p.lexer.Next()
			left = js_ast.Expr{Loc: left.Loc, Data: &js_ast.EBinary{Op: op, Left: left, Right: p.parseExpr(opLevel)}}
		}
	}
}
