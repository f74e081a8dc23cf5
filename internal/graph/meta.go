package graph

// The data in this file is created by the linker while it binds imports to
// exports. It's kept separate from the AST so that the AST stays exactly as
// the parser produced it.

import (
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/logger"
)

// This is the result of binding an import: the symbol the import resolved to
// and the module that declares it
type ImportSpecifier struct {
	// This is an array of intermediate statements that re-exported this symbol
	// in a chain before getting to the final symbol. This can be done either
	// with "export * from" or "export {} from". If this is done with "export *
	// from" then this may not be the result of a single chain but may instead
	// form a diamond shape if this same symbol was re-exported multiple times
	// from different files.
	ReExports []js_ast.Dependency

	SourceIndex uint32
	NameLoc     logger.Loc // Optional, goes with sourceIndex, ignore if zero
	Ref         js_ast.Ref
}

// An entry in a module's resolved export table
type ExportSpecifier struct {
	// This is the symbol that the name is bound to. It may be an import symbol
	// if this is a re-export, in which case it must be followed through the
	// "ImportsToBind" map of the declaring module.
	Ref js_ast.Ref

	// Export star resolution happens first before import resolution. That means
	// it cannot yet determine if duplicate names from export star resolution are
	// ambiguous (point to different symbols) or not (point to the same symbol).
	// This issue can happen in the following scenario:
	//
	//   // entry.js
	//   export * from './a'
	//   export * from './b'
	//
	//   // a.js
	//   export * from './c'
	//
	//   // b.js
	//   export {x} from './c'
	//
	//   // c.js
	//   export let x = 1, y = 2
	//
	// In this case "entry.js" should have two exports "x" and "y", neither of
	// which are ambiguous. To handle this case, ambiguity resolution must be
	// deferred until import resolution time. That is done using this array.
	PotentiallyAmbiguousExportStarRefs []ImportSpecifier

	// This is the file that the named export above came from. This will be
	// different from the file that contains this object if this is a re-export.
	SourceIndex uint32
	NameLoc     logger.Loc // Optional, goes with sourceIndex, ignore if zero
}

type BindingKind uint8

const (
	BindingVariable BindingKind = iota
	BindingFunction
	BindingClass
	BindingImport
	BindingReExport
)

func (kind BindingKind) String() string {
	switch kind {
	case BindingVariable:
		return "variable"
	case BindingFunction:
		return "function"
	case BindingClass:
		return "class"
	case BindingImport:
		return "import"
	case BindingReExport:
		return "re-export"
	default:
		panic("Internal error")
	}
}

// A name declared in the top-level scope of a module. The pair of source index
// and part index is where a live binding points: consumers read whatever that
// statement's declaration currently holds.
type Binding struct {
	Ref         js_ast.Ref
	Name        string
	SourceIndex uint32
	PartIndex   uint32
	Kind        BindingKind

	// Set once tree shaking has decided to keep the declaring statement
	IsRetained bool
}
