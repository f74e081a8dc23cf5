package js_ast

import (
	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/logger"
)

// Every module is parsed into a list of top-level statements. Each statement
// becomes one "part", which is the unit of tree shaking and the "declaring
// statement" half of a live binding. Identifiers are references to symbols
// ("Ref") instead of strings so that modules can be merged into one scope by
// linking symbols together instead of rewriting the tree.

type L int

// https://developer.mozilla.org/en-US/docs/Web/JavaScript/Reference/Operators/Operator_Precedence
const (
	LLowest L = iota
	LComma
	LSpread
	LYield
	LAssign
	LConditional
	LNullishCoalescing
	LLogicalOr
	LLogicalAnd
	LBitwiseOr
	LBitwiseXor
	LBitwiseAnd
	LEquals
	LCompare
	LShift
	LAdd
	LMultiply
	LExponentiation
	LPrefix
	LPostfix
	LNew
	LCall
	LMember
)

type OpCode int

func (op OpCode) IsPrefix() bool {
	return op < UnOpPostDec
}

func (op OpCode) IsLeftAssociative() bool {
	return op >= BinOpAdd && op < BinOpComma && op != BinOpPow
}

func (op OpCode) IsRightAssociative() bool {
	return op >= BinOpAssign || op == BinOpPow
}

func (op OpCode) IsAssign() bool {
	return op >= BinOpAssign
}

func (op OpCode) IsUpdate() bool {
	return op >= UnOpPreDec && op <= UnOpPostInc
}

// If you add a new operator, remember to add it to "OpTable" too
const (
	// Prefix
	UnOpPos OpCode = iota
	UnOpNeg
	UnOpCpl
	UnOpNot
	UnOpVoid
	UnOpTypeof
	UnOpDelete

	// Prefix update
	UnOpPreDec
	UnOpPreInc

	// Postfix update
	UnOpPostDec
	UnOpPostInc

	// Left-associative
	BinOpAdd
	BinOpSub
	BinOpMul
	BinOpDiv
	BinOpRem
	BinOpPow
	BinOpLt
	BinOpLe
	BinOpGt
	BinOpGe
	BinOpIn
	BinOpInstanceof
	BinOpShl
	BinOpShr
	BinOpUShr
	BinOpLooseEq
	BinOpLooseNe
	BinOpStrictEq
	BinOpStrictNe
	BinOpNullishCoalescing
	BinOpLogicalOr
	BinOpLogicalAnd
	BinOpBitwiseOr
	BinOpBitwiseAnd
	BinOpBitwiseXor

	// Non-associative
	BinOpComma

	// Right-associative
	BinOpAssign
	BinOpAddAssign
	BinOpSubAssign
	BinOpMulAssign
	BinOpDivAssign
	BinOpRemAssign
	BinOpPowAssign
	BinOpShlAssign
	BinOpShrAssign
	BinOpUShrAssign
	BinOpBitwiseOrAssign
	BinOpBitwiseAndAssign
	BinOpBitwiseXorAssign
	BinOpNullishCoalescingAssign
	BinOpLogicalOrAssign
	BinOpLogicalAndAssign
)

type opTableEntry struct {
	Text      string
	Level     L
	IsKeyword bool
}

var OpTable = []opTableEntry{
	// Prefix
	{"+", LPrefix, false},
	{"-", LPrefix, false},
	{"~", LPrefix, false},
	{"!", LPrefix, false},
	{"void", LPrefix, true},
	{"typeof", LPrefix, true},
	{"delete", LPrefix, true},

	// Prefix update
	{"--", LPrefix, false},
	{"++", LPrefix, false},

	// Postfix update
	{"--", LPostfix, false},
	{"++", LPostfix, false},

	// Left-associative
	{"+", LAdd, false},
	{"-", LAdd, false},
	{"*", LMultiply, false},
	{"/", LMultiply, false},
	{"%", LMultiply, false},
	{"**", LExponentiation, false}, // Right-associative
	{"<", LCompare, false},
	{"<=", LCompare, false},
	{">", LCompare, false},
	{">=", LCompare, false},
	{"in", LCompare, true},
	{"instanceof", LCompare, true},
	{"<<", LShift, false},
	{">>", LShift, false},
	{">>>", LShift, false},
	{"==", LEquals, false},
	{"!=", LEquals, false},
	{"===", LEquals, false},
	{"!==", LEquals, false},
	{"??", LNullishCoalescing, false},
	{"||", LLogicalOr, false},
	{"&&", LLogicalAnd, false},
	{"|", LBitwiseOr, false},
	{"&", LBitwiseAnd, false},
	{"^", LBitwiseXor, false},

	// Non-associative
	{",", LComma, false},

	// Right-associative
	{"=", LAssign, false},
	{"+=", LAssign, false},
	{"-=", LAssign, false},
	{"*=", LAssign, false},
	{"/=", LAssign, false},
	{"%=", LAssign, false},
	{"**=", LAssign, false},
	{"<<=", LAssign, false},
	{">>=", LAssign, false},
	{">>>=", LAssign, false},
	{"|=", LAssign, false},
	{"&=", LAssign, false},
	{"^=", LAssign, false},
	{"??=", LAssign, false},
	{"||=", LAssign, false},
	{"&&=", LAssign, false},
}

type LocRef struct {
	Loc logger.Loc
	Ref Ref
}

type PropertyKind uint8

const (
	PropertyNormal PropertyKind = iota
	PropertyGet
	PropertySet
	PropertySpread
	PropertyClassStaticBlock
)

type Property struct {
	Kind        PropertyKind
	IsComputed  bool
	IsMethod    bool
	IsStatic    bool
	IsAsync     bool
	IsGenerator bool

	// The key is an EString for identifier keys, an EPrivateName for "#x", or
	// any expression when computed. It's unused for spread properties.
	Key Expr

	// This is omitted for class fields without an initializer. For object
	// shorthand properties this is the identifier the key was written as.
	ValueOrNil Expr

	// Object literals used as destructuring assignment targets can have
	// defaults: "({ a = 1 } = b)". Class fields use this for their value.
	InitializerOrNil Expr

	// Only used for class static blocks
	StaticBlock *ClassStaticBlock
}

type ClassStaticBlock struct {
	Loc   logger.Loc
	Stmts []Stmt
}

type PropertyBinding struct {
	IsComputed   bool
	IsSpread     bool
	Key          Expr
	Value        Binding
	DefaultValue Expr
}

type Arg struct {
	Binding      Binding
	DefaultOrNil Expr
}

type Fn struct {
	Name        *LocRef
	Args        []Arg
	Body        FnBody
	HasRestArg  bool
	IsAsync     bool
	IsGenerator bool
}

type FnBody struct {
	Loc   logger.Loc
	Stmts []Stmt
}

type Class struct {
	Name         *LocRef
	ExtendsOrNil Expr
	BodyLoc      logger.Loc
	Properties   []Property
}

type ArrayBinding struct {
	Binding      Binding
	DefaultValue Expr
}

type Binding struct {
	Loc  logger.Loc
	Data B
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type B interface{ isBinding() }

func (*BMissing) isBinding()    {}
func (*BIdentifier) isBinding() {}
func (*BArray) isBinding()      {}
func (*BObject) isBinding()     {}

// A hole in an array pattern: "[a, , b]"
type BMissing struct{}

type BIdentifier struct{ Ref Ref }

type BArray struct {
	Items []ArrayBinding

	// If true, the last item is the target of a rest element: "[a, ...b]"
	HasSpread bool
}

type BObject struct{ Properties []PropertyBinding }

type Expr struct {
	Loc  logger.Loc
	Data E
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type E interface{ isExpr() }

func (*EArray) isExpr()         {}
func (*EUnary) isExpr()         {}
func (*EBinary) isExpr()        {}
func (*EBoolean) isExpr()       {}
func (*ESuper) isExpr()         {}
func (*ENull) isExpr()          {}
func (*EUndefined) isExpr()     {}
func (*EThis) isExpr()          {}
func (*ENew) isExpr()           {}
func (*ENewTarget) isExpr()     {}
func (*EImportMeta) isExpr()    {}
func (*ECall) isExpr()          {}
func (*EDot) isExpr()           {}
func (*EIndex) isExpr()         {}
func (*EArrow) isExpr()         {}
func (*EFunction) isExpr()      {}
func (*EClass) isExpr()         {}
func (*EIdentifier) isExpr()    {}
func (*EPrivateName) isExpr()   {}
func (*ENumber) isExpr()        {}
func (*EBigInt) isExpr()        {}
func (*EObject) isExpr()        {}
func (*ESpread) isExpr()        {}
func (*EString) isExpr()        {}
func (*ETemplate) isExpr()      {}
func (*ERegExp) isExpr()        {}
func (*EAwait) isExpr()         {}
func (*EYield) isExpr()         {}
func (*EIf) isExpr()            {}
func (*EImportCall) isExpr()    {}
func (*EMissing) isExpr()       {}

// A hole in an array literal: "[a, , b]"
type EMissing struct{}

type EArray struct {
	Items        []Expr
	IsSingleLine bool
}

type EUnary struct {
	Op    OpCode
	Value Expr
}

type EBinary struct {
	Left  Expr
	Right Expr
	Op    OpCode
}

type EBoolean struct{ Value bool }

type ESuper struct{}

type ENull struct{}

type EUndefined struct{}

type EThis struct{}

type ENewTarget struct{}

type EImportMeta struct{}

type ENew struct {
	Target Expr
	Args   []Expr
}

type ECall struct {
	Target        Expr
	Args          []Expr
	OptionalChain bool
}

type EDot struct {
	Target        Expr
	Name          string
	NameLoc       logger.Loc
	OptionalChain bool
}

type EIndex struct {
	Target        Expr
	Index         Expr
	OptionalChain bool
}

type EArrow struct {
	Args       []Arg
	Body       FnBody
	HasRestArg bool
	IsAsync    bool

	// If true, the body is a single "return" statement that should be printed
	// as an expression body: "() => x"
	PreferExpr bool
}

type EFunction struct{ Fn Fn }

type EClass struct{ Class Class }

type EIdentifier struct{ Ref Ref }

type EPrivateName struct{ Name string }

type ENumber struct{ Value float64 }

type EBigInt struct{ Value string }

type EObject struct {
	Properties   []Property
	IsSingleLine bool
}

type ESpread struct{ Value Expr }

// The value is the decoded string. The raw source text of the literal, quotes
// included, is kept when the string came from source so that it can be printed
// as written.
type EString struct {
	Value string
	Raw   string
}

type TemplatePart struct {
	Value   Expr
	TailRaw string
}

type ETemplate struct {
	TagOrNil Expr
	HeadRaw  string
	Parts    []TemplatePart
}

type ERegExp struct{ Value string }

type EAwait struct{ Value Expr }

type EYield struct {
	ValueOrNil Expr
	IsStar     bool
}

type EIf struct {
	Test Expr
	Yes  Expr
	No   Expr
}

// A dynamic "import()" expression. If the argument is a string literal, the
// import record index is valid and the linker rewrites the path.
type EImportCall struct {
	Expr              Expr
	ImportRecordIndex ast.Index32
}

type Stmt struct {
	Loc  logger.Loc
	Data S
}

// This interface is never called. Its purpose is to encode a variant type in
// Go's type system.
type S interface{ isStmt() }

func (*SBlock) isStmt()         {}
func (*SEmpty) isStmt()         {}
func (*SDebugger) isStmt()      {}
func (*SDirective) isStmt()     {}
func (*SExportClause) isStmt()  {}
func (*SExportFrom) isStmt()    {}
func (*SExportDefault) isStmt() {}
func (*SExportStar) isStmt()    {}
func (*SExpr) isStmt()          {}
func (*SFunction) isStmt()      {}
func (*SClass) isStmt()         {}
func (*SLabel) isStmt()         {}
func (*SIf) isStmt()            {}
func (*SFor) isStmt()           {}
func (*SForIn) isStmt()         {}
func (*SForOf) isStmt()         {}
func (*SDoWhile) isStmt()       {}
func (*SWhile) isStmt()         {}
func (*SWith) isStmt()          {}
func (*STry) isStmt()           {}
func (*SSwitch) isStmt()        {}
func (*SImport) isStmt()        {}
func (*SReturn) isStmt()        {}
func (*SThrow) isStmt()         {}
func (*SLocal) isStmt()         {}
func (*SBreak) isStmt()         {}
func (*SContinue) isStmt()      {}

type SBlock struct{ Stmts []Stmt }

type SEmpty struct{}

type SDebugger struct{}

// A string literal at the start of a function body or module: "use strict"
type SDirective struct{ Raw string }

type ClauseItem struct {
	Alias    string
	AliasLoc logger.Loc
	Name     LocRef

	// The name as written before "as" in "export { name as alias }". This is
	// kept for re-exports, where "Name" refers to a generated import item.
	OriginalName string
}

// "export { a, b as c }"
type SExportClause struct{ Items []ClauseItem }

// "export { a, b as c } from 'path'"
type SExportFrom struct {
	Items             []ClauseItem
	NamespaceRef      Ref
	ImportRecordIndex uint32
}

type ExprOrStmt struct {
	Expr *Expr
	Stmt *Stmt
}

type SExportDefault struct {
	DefaultName LocRef
	Value       ExprOrStmt // May be a SFunction or SClass
}

type ExportStarAlias struct {
	Loc          logger.Loc
	OriginalName string
}

// "export * from 'path'" or "export * as ns from 'path'"
type SExportStar struct {
	NamespaceRef      Ref
	Alias             *ExportStarAlias
	ImportRecordIndex uint32
}

type SExpr struct{ Value Expr }

type SFunction struct {
	Fn       Fn
	IsExport bool
}

type SClass struct {
	Class    Class
	IsExport bool
}

type SLabel struct {
	Name string
	Stmt Stmt
}

type SIf struct {
	Test    Expr
	Yes     Stmt
	NoOrNil Stmt
}

type SFor struct {
	InitOrNil   Stmt // May be a SConst, SLet, SVar, or SExpr
	TestOrNil   Expr
	UpdateOrNil Expr
	Body        Stmt
}

type SForIn struct {
	Init  Stmt // May be a SConst, SLet, SVar, or SExpr
	Value Expr
	Body  Stmt
}

type SForOf struct {
	Init    Stmt // May be a SConst, SLet, SVar, or SExpr
	Value   Expr
	Body    Stmt
	IsAwait bool
}

type SDoWhile struct {
	Body Stmt
	Test Expr
}

type SWhile struct {
	Test Expr
	Body Stmt
}

type SWith struct {
	Value   Expr
	BodyLoc logger.Loc
	Body    Stmt
}

type Catch struct {
	Loc          logger.Loc
	BindingOrNil Binding
	Body         []Stmt
}

type Finally struct {
	Loc   logger.Loc
	Stmts []Stmt
}

type STry struct {
	Body    []Stmt
	Catch   *Catch
	Finally *Finally
}

type Case struct {
	ValueOrNil Expr // If this is nil, this is "default" instead of "case"
	Body       []Stmt
}

type SSwitch struct {
	Test  Expr
	Cases []Case
}

// This object represents all of these types of import statements:
//
//	import 'path'
//	import {item1, item2} from 'path'
//	import * as ns from 'path'
//	import defaultItem, {item1, item2} from 'path'
//	import defaultItem, * as ns from 'path'
//
// Many parts are optional and can be combined in different ways. The only
// restriction is that you cannot have both a clause and a star namespace.
type SImport struct {
	// If this is a star import: This is a Ref for the namespace symbol. The Loc
	// for the symbol is StarLoc.
	//
	// Otherwise: This is an auto-generated Ref for the namespace representing
	// the imported file. In this case StarLoc is nil. The NamespaceRef is used
	// when converting this module to a namespace object in the linker.
	NamespaceRef      Ref
	DefaultName       *LocRef
	Items             *[]ClauseItem
	StarNameLoc       *logger.Loc
	ImportRecordIndex uint32
}

type SReturn struct{ ValueOrNil Expr }

type SThrow struct{ Value Expr }

type LocalKind uint8

const (
	LocalVar LocalKind = iota
	LocalLet
	LocalConst
)

func (kind LocalKind) String() string {
	switch kind {
	case LocalLet:
		return "let"
	case LocalConst:
		return "const"
	default:
		return "var"
	}
}

type Decl struct {
	Binding    Binding
	ValueOrNil Expr
}

type SLocal struct {
	Decls    []Decl
	Kind     LocalKind
	IsExport bool
}

type SBreak struct{ Label string }

type SContinue struct{ Label string }

type Ref struct {
	SourceIndex uint32
	InnerIndex  uint32
}

var InvalidRef Ref = Ref{^uint32(0), ^uint32(0)}

type SymbolKind uint8

const (
	// An unbound symbol is one that isn't declared in the file it's referenced
	// in. For example, using "window" without declaring it will be unbound.
	// Unbound names are reserved so that no renamed symbol shadows them.
	SymbolUnbound SymbolKind = iota

	// This has special merging behavior. You're allowed to re-declare these
	// symbols more than once in the same scope. These symbols are also hoisted
	// out of the scope they are declared in to the closest containing function
	// or module scope.
	SymbolHoisted
	SymbolHoistedFunction

	// A class name is both a declaration and, inside the class body, an
	// immutable binding of its own
	SymbolClass

	// Declared by "const"
	SymbolConst

	// An import item or a re-export. The linker links these to the symbol they
	// resolve to in another module.
	SymbolImport

	// The binding of a catch clause, which "var" may re-declare
	SymbolCatchIdentifier

	// Automatically generated by the parser or the linker, such as the symbol
	// for an "export default" expression or a namespace object
	SymbolGenerated

	// All other block-scoped declarations ("let", parameters, etc.)
	SymbolOther
)

func (kind SymbolKind) IsHoisted() bool {
	return kind == SymbolHoisted || kind == SymbolHoistedFunction
}

type Symbol struct {
	// This is the name that came from the parser. Printed names may be renamed
	// during minification or to avoid name collisions. Do not use the original
	// name during printing.
	OriginalName string

	// An estimate of the number of uses of this symbol. This is used to detect
	// whether a symbol is used or not. For example, TypeScript imports that are
	// unused must be removed because they are probably type-only imports. This
	// is an estimate and may not be completely accurate due to oversights in the
	// code. But it should always be non-zero when the symbol is used.
	UseCountEstimate uint32

	// This is used to link symbols together across files. For example, an
	// import item in one file is linked to the export it resolves to in another
	// file. Use "FollowSymbols" to find the canonical symbol.
	Link Ref

	Kind SymbolKind

	// Names of import items from external modules must be kept: they are
	// printed inside an "import {}" clause whose alias is fixed.
	MustNotBeRenamed bool

	// Set by the linker for a property access on a namespace import when the
	// target module has no such export. Uses are printed as "void 0".
	ImportItemIsMissing bool

	// Import items generated for "ns.prop" keep the namespace they came from.
	// If the item is never linked to an export (the module is external), uses
	// of the item are printed as the original property access.
	NamespaceAlias *NamespaceAlias
}

type NamespaceAlias struct {
	NamespaceRef Ref
	Alias        string
}

type SymbolMap struct {
	// This could be represented as a "map[Ref]Symbol" but a two-level array was
	// more efficient in profiles. This appears to be because it doesn't involve
	// a hash. This representation also makes it trivial to quickly merge symbol
	// maps from multiple files together. Each file only generates symbols in a
	// single inner array, so you can join the maps together by just make a
	// single outer array containing all of the inner arrays.
	SymbolsForSource [][]Symbol
}

func NewSymbolMap(sourceCount int) SymbolMap {
	return SymbolMap{make([][]Symbol, sourceCount)}
}

func (sm SymbolMap) Get(ref Ref) *Symbol {
	return &sm.SymbolsForSource[ref.SourceIndex][ref.InnerIndex]
}

// Returns the canonical ref by following links, compressing the path as it
// goes. Call "FollowAllSymbols" before reading from multiple goroutines.
func FollowSymbols(symbols SymbolMap, ref Ref) Ref {
	symbol := symbols.Get(ref)
	if symbol.Link == InvalidRef {
		return ref
	}

	link := FollowSymbols(symbols, symbol.Link)

	// Only write if needed to avoid concurrent update hazards
	if symbol.Link != link {
		symbol.Link = link
	}

	return link
}

func FollowAllSymbols(symbols SymbolMap) {
	for sourceIndex, inner := range symbols.SymbolsForSource {
		for symbolIndex := range inner {
			FollowSymbols(symbols, Ref{uint32(sourceIndex), uint32(symbolIndex)})
		}
	}
}

// Makes "old" point to "new" by joining the linked lists for the two symbols
// together. That way "FollowSymbols" on both "old" and "new" will result in
// the same ref.
func MergeSymbols(symbols SymbolMap, old Ref, new Ref) Ref {
	if old == new {
		return new
	}

	oldSymbol := symbols.Get(old)
	if oldSymbol.Link != InvalidRef {
		oldSymbol.Link = MergeSymbols(symbols, oldSymbol.Link, new)
		return oldSymbol.Link
	}

	newSymbol := symbols.Get(new)
	if newSymbol.Link != InvalidRef {
		newSymbol.Link = MergeSymbols(symbols, old, newSymbol.Link)
		return newSymbol.Link
	}

	oldSymbol.Link = new
	newSymbol.UseCountEstimate += oldSymbol.UseCountEstimate
	if oldSymbol.MustNotBeRenamed {
		newSymbol.MustNotBeRenamed = true
	}
	return new
}

type ScopeKind uint8

const (
	ScopeBlock ScopeKind = iota
	ScopeWith
	ScopeCatchBinding
	ScopeClassName
	ScopeClassBody
	ScopeFunctionArgs
	ScopeFunctionBody

	// The module scope is the top-level scope of a module
	ScopeModule
)

func (kind ScopeKind) StopsHoisting() bool {
	return kind >= ScopeFunctionBody
}

type ScopeMember struct {
	Ref Ref
	Loc logger.Loc
}

type Scope struct {
	Kind     ScopeKind
	Parent   *Scope
	Children []*Scope
	Members  map[string]ScopeMember

	// Symbols declared in this scope that have no name in "Members", such as
	// the generated name of an "export default" expression
	Generated []Ref
}

type SymbolUse struct {
	CountEstimate uint32
}

type DeclaredSymbol struct {
	Ref        Ref
	IsTopLevel bool
}

type Dependency struct {
	SourceIndex uint32
	PartIndex   uint32
}

// Each part is a top-level statement of a module, or the reserved namespace
// part. Tree shaking operates on parts.
type Part struct {
	Stmts []Stmt

	// All symbols that are declared in this part. Note that a given symbol may
	// have multiple declarations, and so may end up being declared in multiple
	// parts (e.g. multiple "var" declarations with the same name). Also note
	// that this list isn't deduplicated and may contain duplicates.
	DeclaredSymbols []DeclaredSymbol

	// An estimate of the number of uses of all symbols used within this part.
	SymbolUses map[Ref]SymbolUse

	// Each is an index into the file-level import record list
	ImportRecordIndices []uint32

	// Parts that this part depends on in other modules. These are filled in by
	// the linker for generated code such as namespace objects.
	Dependencies []Dependency

	// If true, this part can be removed if none of the declared symbols are
	// used. If the file containing this part is imported, then all parts that
	// don't have this flag enabled must be included.
	CanBeRemovedIfUnused bool

	// This is used for generated parts that we don't want to be present if they
	// aren't needed. This enables tree shaking for these parts even if global
	// tree shaking isn't enabled.
	ForceTreeShaking bool

	// This is true if this file has been marked as live by the tree shaking
	// algorithm.
	IsLive bool
}

type NamedImport struct {
	Alias    string
	AliasLoc logger.Loc

	// Parts within this file that use this import
	LocalPartsWithUses []uint32

	NamespaceRef      Ref
	ImportRecordIndex uint32

	// If true, the alias refers to the entire export table of the module
	// instead of a single export: "import * as ns" or "export * as ns"
	AliasIsStar bool

	// Set for "export {a} from" items, which are re-exported without being
	// usable as a local name
	IsExported bool
}

type NamedExport struct {
	Ref      Ref
	AliasLoc logger.Loc
}

// The part reserved for the namespace object of each module
const NSExportPartIndex = uint32(0)

type AST struct {
	Parts         []Part
	Symbols       []Symbol
	ModuleScope   *Scope
	ImportRecords []ast.ImportRecord

	// These are used when bundling. They are filled in during the parser pass
	// since we already have to traverse the AST then anyway and the parser pass
	// is conveniently fully parallelized.
	NamedImports            map[Ref]NamedImport
	NamedExports            map[string]NamedExport
	ExportStarImportRecords []uint32

	// This is the symbol of the namespace object for this module. The object
	// itself lives in part 0 and is only generated if something uses it.
	ExportsRef Ref

	TopLevelSymbolToParts map[Ref][]uint32

	Hashbang             string
	ApproximateLineCount int32
}

// Visits the leaf identifiers of a binding pattern in source order. Holes
// contribute nothing, a rest element contributes its target, and defaults do
// not change which names are bound.
func ForEachIdentifierBinding(binding Binding, callback func(loc logger.Loc, b *BIdentifier)) {
	switch b := binding.Data.(type) {
	case *BMissing:

	case *BIdentifier:
		callback(binding.Loc, b)

	case *BArray:
		for _, item := range b.Items {
			ForEachIdentifierBinding(item.Binding, callback)
		}

	case *BObject:
		for _, property := range b.Properties {
			ForEachIdentifierBinding(property.Value, callback)
		}

	default:
		panic("Internal error")
	}
}

func ForEachIdentifierBindingInDecls(decls []Decl, callback func(loc logger.Loc, b *BIdentifier)) {
	for _, decl := range decls {
		ForEachIdentifierBinding(decl.Binding, callback)
	}
}
