package graph

import (
	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/logger"
)

// A module is created by the scan phase once per unique resolved path. The
// source index in "Source.Index" is its dense id within a build.
type Module struct {
	Source logger.Source
	AST    js_ast.AST

	// Every import record that resolved to another module in the graph, in
	// source order
	Edges []Edge

	// Modules that import this one statically or through "import()", in the
	// order they were scanned. These are filled in after the scan completes.
	Importers        []uint32
	DynamicImporters []uint32
}

type EdgeKind uint8

const (
	EdgeImport EdgeKind = iota
	EdgeReExport
	EdgeDynamicImport
)

func (kind EdgeKind) String() string {
	switch kind {
	case EdgeImport:
		return "import"
	case EdgeReExport:
		return "re-export"
	case EdgeDynamicImport:
		return "dynamic-import"
	default:
		panic("Internal error")
	}
}

type Edge struct {
	From uint32
	To   uint32

	// The specifier as written in the importing module
	Specifier string

	Kind              EdgeKind
	ImportRecordIndex uint32
}

// Returns true if any statement of this module is side-effecting by itself.
// Import and re-export statements don't count since they are only effectful
// through the module they point to.
func (m *Module) HasOwnSideEffects() bool {
	for partIndex, part := range m.AST.Parts {
		if uint32(partIndex) == js_ast.NSExportPartIndex || part.CanBeRemovedIfUnused {
			continue
		}
		if len(part.Stmts) == 1 {
			switch part.Stmts[0].Data.(type) {
			case *js_ast.SImport, *js_ast.SExportFrom, *js_ast.SExportStar:
				continue
			}
		}
		return true
	}
	return false
}
