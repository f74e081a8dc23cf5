package ast

// This file contains the data structures that connect a parsed module to the
// module graph. The parser fills in import records with the raw specifier and
// the scan phase fills in where each one resolved to.

import (
	"github.com/esmlink/esmlink/internal/logger"
)

type ImportKind uint8

const (
	// An entry point provided by the user
	ImportEntryPoint ImportKind = iota

	// An ES6 import or re-export statement
	ImportStmt

	// An "import()" expression with a string argument
	ImportDynamic
)

func (kind ImportKind) String() string {
	switch kind {
	case ImportEntryPoint:
		return "entry-point"
	case ImportStmt:
		return "import-statement"
	case ImportDynamic:
		return "dynamic-import"
	default:
		panic("Internal error")
	}
}

func (kind ImportKind) IsDynamic() bool {
	return kind == ImportDynamic
}

type ImportRecordFlags uint8

const (
	// If true, this record comes from "export ... from" instead of "import"
	IsReexport ImportRecordFlags = 1 << iota

	// If true, this record comes from "export * from" (with or without "as")
	IsExportStar

	// If true, the import contains syntax like "* as ns"
	ContainsImportStar

	// If true, this was originally written as a bare "import 'file'" statement
	WasOriginallyBareImport

	// Set by the scan phase when the resolver reported the path as external.
	// External imports are never loaded and are kept as-is in the output.
	IsExternal
)

func (flags ImportRecordFlags) Has(flag ImportRecordFlags) bool {
	return (flags & flag) != 0
}

type ImportRecord struct {
	// The specifier as written, then the resolved path after scanning
	Path  logger.Path
	Range logger.Range

	// The resolved source index for an internal import (within the bundle) or
	// invalid for an external import (not included in the bundle)
	SourceIndex Index32

	Flags ImportRecordFlags
	Kind  ImportKind
}

// This stores a 32-bit index where the zero value is an invalid index. This is
// a better alternative to storing the index as a pointer since that has the
// same properties but takes up more space and costs an extra pointer traversal.
type Index32 struct {
	flippedBits uint32
}

func MakeIndex32(index uint32) Index32 {
	return Index32{flippedBits: ^index}
}

func (i Index32) IsValid() bool {
	return i.flippedBits != 0
}

func (i Index32) GetIndex() uint32 {
	return ^i.flippedBits
}
