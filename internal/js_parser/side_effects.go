package js_parser

import (
	"github.com/esmlink/esmlink/internal/js_ast"
)

// A top-level statement can be removed if none of its declarations are used
// and evaluating it has no observable effect. This errs on the side of
// keeping code: anything that could throw or call into user code is kept.
func (b *binder) stmtCanBeRemovedIfUnused(stmt js_ast.Stmt) bool {
	switch s := stmt.Data.(type) {
	case *js_ast.SEmpty, *js_ast.SDirective, *js_ast.SExportClause, *js_ast.SFunction:
		return true

	case *js_ast.SClass:
		return b.classCanBeRemovedIfUnused(&s.Class)

	case *js_ast.SExpr:
		return b.exprCanBeRemovedIfUnused(s.Value)

	case *js_ast.SLocal:
		for _, decl := range s.Decls {
			// Destructuring can call getters and iterators
			if _, ok := decl.Binding.Data.(*js_ast.BIdentifier); !ok {
				return false
			}
			if decl.ValueOrNil.Data != nil && !b.exprCanBeRemovedIfUnused(decl.ValueOrNil) {
				return false
			}
		}
		return true

	case *js_ast.SExportDefault:
		if s.Value.Expr != nil {
			return b.exprCanBeRemovedIfUnused(*s.Value.Expr)
		}
		return b.stmtCanBeRemovedIfUnused(*s.Value.Stmt)
	}

	// Imports and re-exports are kept so that the modules they refer to are
	// evaluated, even if nothing they bind is used
	return false
}

func (b *binder) classCanBeRemovedIfUnused(class *js_ast.Class) bool {
	if class.ExtendsOrNil.Data != nil && !b.exprCanBeRemovedIfUnused(class.ExtendsOrNil) {
		return false
	}

	for _, property := range class.Properties {
		if property.Kind == js_ast.PropertyClassStaticBlock {
			if len(property.StaticBlock.Stmts) > 0 {
				return false
			}
			continue
		}

		if property.IsComputed && !b.exprCanBeRemovedIfUnused(property.Key) {
			return false
		}

		// Static field initializers run when the class is evaluated
		if property.IsStatic && property.InitializerOrNil.Data != nil && !b.exprCanBeRemovedIfUnused(property.InitializerOrNil) {
			return false
		}
	}

	return true
}

func (b *binder) exprCanBeRemovedIfUnused(expr js_ast.Expr) bool {
	switch e := expr.Data.(type) {
	case *js_ast.EMissing, *js_ast.ENull, *js_ast.EUndefined, *js_ast.EBoolean, *js_ast.ENumber,
		*js_ast.EBigInt, *js_ast.EString, *js_ast.ERegExp, *js_ast.EFunction,
		*js_ast.EArrow, *js_ast.EImportMeta:
		return true

	case *js_ast.EClass:
		return b.classCanBeRemovedIfUnused(&e.Class)

	case *js_ast.EIdentifier:
		// Reading an unbound global throws if it doesn't exist
		symbol := &b.symbols[e.Ref.InnerIndex]
		if symbol.Kind != js_ast.SymbolUnbound {
			return true
		}
		switch symbol.OriginalName {
		case "NaN", "Infinity":
			return true
		}
		return false

	case *js_ast.EArray:
		for _, item := range e.Items {
			// Spreading calls the iterator of the value
			if _, ok := item.Data.(*js_ast.ESpread); ok {
				return false
			}
			if !b.exprCanBeRemovedIfUnused(item) {
				return false
			}
		}
		return true

	case *js_ast.EObject:
		for _, property := range e.Properties {
			// Spreading can call getters on the value
			if property.Kind == js_ast.PropertySpread {
				return false
			}
			if property.IsComputed && !b.exprCanBeRemovedIfUnused(property.Key) {
				return false
			}
			if property.ValueOrNil.Data != nil && !b.exprCanBeRemovedIfUnused(property.ValueOrNil) {
				return false
			}
		}
		return true

	case *js_ast.ETemplate:
		if e.TagOrNil.Data != nil {
			return false
		}
		for _, part := range e.Parts {
			if !b.exprCanBeRemovedIfUnused(part.Value) {
				return false
			}
		}
		return true

	case *js_ast.EIf:
		return b.exprCanBeRemovedIfUnused(e.Test) &&
			b.exprCanBeRemovedIfUnused(e.Yes) &&
			b.exprCanBeRemovedIfUnused(e.No)

	case *js_ast.EUnary:
		switch e.Op {
		case js_ast.UnOpTypeof:
			// "typeof x" never throws, even for unbound globals
			if _, ok := e.Value.Data.(*js_ast.EIdentifier); ok {
				return true
			}
			return b.exprCanBeRemovedIfUnused(e.Value)

		case js_ast.UnOpVoid, js_ast.UnOpNot:
			return b.exprCanBeRemovedIfUnused(e.Value)

		case js_ast.UnOpNeg, js_ast.UnOpPos, js_ast.UnOpCpl:
			// Only literals are safe here since other values may have "valueOf"
			switch e.Value.Data.(type) {
			case *js_ast.ENumber, *js_ast.EBigInt:
				return true
			}
		}

	case *js_ast.EBinary:
		switch e.Op {
		case js_ast.BinOpStrictEq, js_ast.BinOpStrictNe, js_ast.BinOpComma,
			js_ast.BinOpLogicalOr, js_ast.BinOpLogicalAnd, js_ast.BinOpNullishCoalescing:
			return b.exprCanBeRemovedIfUnused(e.Left) && b.exprCanBeRemovedIfUnused(e.Right)
		}
	}

	return false
}
