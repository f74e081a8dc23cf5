package renamer

import (
	"testing"

	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSymbols(sources ...[]string) js_ast.SymbolMap {
	symbols := js_ast.NewSymbolMap(len(sources))
	for i, names := range sources {
		inner := make([]js_ast.Symbol, len(names))
		for j, name := range names {
			inner[j] = js_ast.Symbol{OriginalName: name, Kind: js_ast.SymbolOther, Link: js_ast.InvalidRef}
		}
		symbols.SymbolsForSource[i] = inner
	}
	return symbols
}

func ref(sourceIndex uint32, innerIndex uint32) js_ast.Ref {
	return js_ast.Ref{SourceIndex: sourceIndex, InnerIndex: innerIndex}
}

func TestComputeReservedNames(t *testing.T) {
	symbols := makeSymbols([]string{"window", "x", "keep"})
	symbols.Get(ref(0, 0)).Kind = js_ast.SymbolUnbound
	symbols.Get(ref(0, 2)).MustNotBeRenamed = true

	scope := &js_ast.Scope{
		Kind: js_ast.ScopeModule,
		Members: map[string]js_ast.ScopeMember{
			"window": {Ref: ref(0, 0), Loc: logger.Loc{Start: -1}},
			"x":      {Ref: ref(0, 1)},
		},
		Generated: []js_ast.Ref{ref(0, 2)},
	}

	names := ComputeReservedNames([]*js_ast.Scope{scope}, symbols)
	assert.Contains(t, names, "window")
	assert.Contains(t, names, "keep")
	assert.Contains(t, names, "class")
	assert.Contains(t, names, "let")
	assert.NotContains(t, names, "x")
}

func TestNoOpRenamer(t *testing.T) {
	symbols := makeSymbols([]string{"a", "b"})
	js_ast.MergeSymbols(symbols, ref(0, 0), ref(0, 1))

	r := NewNoOpRenamer(symbols)
	assert.Equal(t, "b", r.NameForSymbol(ref(0, 0)))
	assert.Equal(t, "b", r.NameForSymbol(ref(0, 1)))
}

func TestNumberRenamerTopLevel(t *testing.T) {
	symbols := makeSymbols([]string{"x", "y"}, []string{"x", "y", "x2"})
	r := NewNumberRenamer(symbols, map[string]uint32{"y": 1})

	r.AddTopLevelSymbol(ref(0, 0))
	r.AddTopLevelSymbol(ref(1, 0))
	r.AddTopLevelSymbol(ref(1, 2))
	r.AddTopLevelSymbol(ref(0, 1))
	r.AddTopLevelSymbol(ref(1, 1))

	assert.Equal(t, "x", r.NameForSymbol(ref(0, 0)))
	assert.Equal(t, "x2", r.NameForSymbol(ref(1, 0)))
	assert.Equal(t, "x22", r.NameForSymbol(ref(1, 2)))
	assert.Equal(t, "y2", r.NameForSymbol(ref(0, 1)))
	assert.Equal(t, "y3", r.NameForSymbol(ref(1, 1)))

	// Adding a symbol twice keeps its first name
	r.AddTopLevelSymbol(ref(1, 0))
	assert.Equal(t, "x2", r.NameForSymbol(ref(1, 0)))
}

func TestNumberRenamerLinkedSymbols(t *testing.T) {
	symbols := makeSymbols([]string{"foo"}, []string{"foo", "bar"})

	// An import in source 1 bound to the export in source 0
	js_ast.MergeSymbols(symbols, ref(1, 1), ref(0, 0))

	r := NewNumberRenamer(symbols, map[string]uint32{})
	r.AddTopLevelSymbol(ref(0, 0))
	r.AddTopLevelSymbol(ref(1, 0))
	r.AddTopLevelSymbol(ref(1, 1))

	assert.Equal(t, "foo", r.NameForSymbol(ref(0, 0)))
	assert.Equal(t, "foo2", r.NameForSymbol(ref(1, 0)))
	assert.Equal(t, "foo", r.NameForSymbol(ref(1, 1)))
}

func TestNumberRenamerSkipsUnboundAndReserved(t *testing.T) {
	symbols := makeSymbols([]string{"console", "React"})
	symbols.Get(ref(0, 0)).Kind = js_ast.SymbolUnbound
	symbols.Get(ref(0, 1)).MustNotBeRenamed = true

	r := NewNumberRenamer(symbols, map[string]uint32{"console": 1, "React": 1})
	r.AddTopLevelSymbol(ref(0, 0))
	r.AddTopLevelSymbol(ref(0, 1))

	assert.Equal(t, "console", r.NameForSymbol(ref(0, 0)))
	assert.Equal(t, "React", r.NameForSymbol(ref(0, 1)))
}

func TestNumberRenamerNestedScopes(t *testing.T) {
	// Source 0 has a top-level "x" and two sibling functions that each declare
	// "x" and "y". Source 1 has a nested "x" as well.
	symbols := makeSymbols([]string{"x", "x", "y", "x", "y"}, []string{"x"})
	r := NewNumberRenamer(symbols, map[string]uint32{"y": 1})
	r.AddTopLevelSymbol(ref(0, 0))

	first := &js_ast.Scope{Kind: js_ast.ScopeFunctionBody, Members: map[string]js_ast.ScopeMember{
		"x": {Ref: ref(0, 1)},
		"y": {Ref: ref(0, 2)},
	}}
	second := &js_ast.Scope{Kind: js_ast.ScopeFunctionBody, Members: map[string]js_ast.ScopeMember{
		"x": {Ref: ref(0, 3)},
		"y": {Ref: ref(0, 4)},
	}}
	other := &js_ast.Scope{Kind: js_ast.ScopeBlock, Members: map[string]js_ast.ScopeMember{
		"x": {Ref: ref(1, 0)},
	}}

	r.AssignNamesByScope(map[uint32][]*js_ast.Scope{
		0: {first, second},
		1: {other},
	})

	assert.Equal(t, "x", r.NameForSymbol(ref(0, 0)))

	// Nested names avoid top-level names, but siblings may reuse each other's
	assert.Equal(t, "x2", r.NameForSymbol(ref(0, 1)))
	assert.Equal(t, "y2", r.NameForSymbol(ref(0, 2)))
	assert.Equal(t, "x2", r.NameForSymbol(ref(0, 3)))
	assert.Equal(t, "y2", r.NameForSymbol(ref(0, 4)))
	assert.Equal(t, "x2", r.NameForSymbol(ref(1, 0)))
}

func TestNumberRenamerChildScopes(t *testing.T) {
	symbols := makeSymbols([]string{"a", "a", "a"})
	r := NewNumberRenamer(symbols, map[string]uint32{})
	r.AddTopLevelSymbol(ref(0, 0))

	inner := &js_ast.Scope{Kind: js_ast.ScopeBlock, Members: map[string]js_ast.ScopeMember{
		"a": {Ref: ref(0, 2)},
	}}
	outer := &js_ast.Scope{Kind: js_ast.ScopeFunctionBody, Members: map[string]js_ast.ScopeMember{
		"a": {Ref: ref(0, 1)},
	}, Children: []*js_ast.Scope{inner}}
	inner.Parent = outer

	r.AssignNamesByScope(map[uint32][]*js_ast.Scope{0: {outer}})

	require.Equal(t, "a2", r.NameForSymbol(ref(0, 1)))
	require.Equal(t, "a3", r.NameForSymbol(ref(0, 2)))
}

func TestExportRenamer(t *testing.T) {
	r := ExportRenamer{}
	assert.Equal(t, "a", r.NextRenamedName("a"))
	assert.Equal(t, "a2", r.NextRenamedName("a"))
	assert.Equal(t, "a3", r.NextRenamedName("a"))

	// A name that looks like a generated one still gets its own suffix
	assert.Equal(t, "a22", r.NextRenamedName("a2"))

	r.Reserve("b")
	assert.Equal(t, "b2", r.NextRenamedName("b"))

	r.Reserve("c2")
	assert.Equal(t, "c", r.NextRenamedName("c"))
	assert.Equal(t, "c3", r.NextRenamedName("c"))
}
