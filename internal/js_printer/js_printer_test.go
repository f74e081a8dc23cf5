package js_printer

import (
	"testing"

	"github.com/esmlink/esmlink/internal/js_ast"
	"github.com/esmlink/esmlink/internal/js_parser"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/renamer"
	"github.com/esmlink/esmlink/internal/sourcemap"
	"github.com/esmlink/esmlink/internal/test"
	"github.com/stretchr/testify/require"
)

func parseForTest(t *testing.T, contents string, isBundling bool) (js_ast.AST, js_ast.SymbolMap) {
	t.Helper()
	log := logger.NewDeferLog()
	tree, ok := js_parser.Parse(log, test.SourceForTest(contents), js_parser.Options{IsBundling: isBundling})
	msgs := log.Done()
	test.AssertEqualWithDiff(t, test.MsgsToString(msgs), "")
	if !ok {
		t.Fatal("Parse error")
	}
	symbols := js_ast.NewSymbolMap(1)
	symbols.SymbolsForSource[0] = tree.Symbols
	return tree, symbols
}

func expectPrintedCommon(t *testing.T, contents string, expected string, options Options) {
	t.Helper()
	t.Run(contents, func(t *testing.T) {
		t.Helper()
		tree, symbols := parseForTest(t, contents, false)
		r := renamer.NewNoOpRenamer(symbols)
		js := Print(tree, symbols, r, options).JS
		test.AssertEqualWithDiff(t, string(js), expected)
	})
}

func expectPrinted(t *testing.T, contents string, expected string) {
	t.Helper()
	expectPrintedCommon(t, contents, expected, Options{})
}

func TestNumber(t *testing.T) {
	expectPrinted(t, "x = 0", "x = 0;\n")
	expectPrinted(t, "x = 123", "x = 123;\n")
	expectPrinted(t, "x = 1.5", "x = 1.5;\n")
	expectPrinted(t, "x = 0.000001", "x = 0.000001;\n")
	expectPrinted(t, "x = 1e-7", "x = 1e-7;\n")
	expectPrinted(t, "x = -1", "x = -1;\n")
	expectPrinted(t, "x = 1..toString()", "x = 1..toString();\n")
	expectPrinted(t, "x = 1.5.toString()", "x = 1.5.toString();\n")
	expectPrinted(t, "x = 123n", "x = 123n;\n")
}

func TestString(t *testing.T) {
	expectPrinted(t, "x = 'abc'", "x = 'abc';\n")
	expectPrinted(t, "x = \"abc\"", "x = \"abc\";\n")
	expectPrinted(t, "x = `a${b}c`", "x = `a${b}c`;\n")
	expectPrinted(t, "x = tag`a${b}c`", "x = tag`a${b}c`;\n")
	expectPrinted(t, "x = /a/g.test(y)", "x = /a/g.test(y);\n")
}

func TestUndefined(t *testing.T) {
	expectPrinted(t, "x = undefined", "x = void 0;\n")
	expectPrinted(t, "x = typeof undefined", "x = typeof void 0;\n")
	expectPrinted(t, "let undefined; x = undefined", "let undefined;\nx = undefined;\n")
}

func TestUnary(t *testing.T) {
	expectPrinted(t, "x = - -y", "x = - -y;\n")
	expectPrinted(t, "x = -(-y)", "x = - -y;\n")
	expectPrinted(t, "x = a + +b", "x = a + +b;\n")
	expectPrinted(t, "x = a - -b", "x = a - -b;\n")
	expectPrinted(t, "x = !y", "x = !y;\n")
	expectPrinted(t, "x = typeof y", "x = typeof y;\n")
	expectPrinted(t, "x++", "x++;\n")
	expectPrinted(t, "--x", "--x;\n")
}

func TestBinary(t *testing.T) {
	expectPrinted(t, "x = a + b * c", "x = a + b * c;\n")
	expectPrinted(t, "x = (a + b) * c", "x = (a + b) * c;\n")
	expectPrinted(t, "x = a - (b - c)", "x = a - (b - c);\n")
	expectPrinted(t, "x = (a - b) - c", "x = a - b - c;\n")
	expectPrinted(t, "x = a ** b ** c", "x = a ** b ** c;\n")
	expectPrinted(t, "x = (a ** b) ** c", "x = (a ** b) ** c;\n")
	expectPrinted(t, "x = (-a) ** b", "x = (-a) ** b;\n")
	expectPrinted(t, "x = (a || b) ?? c", "x = (a || b) ?? c;\n")
	expectPrinted(t, "x = a ?? (b && c)", "x = a ?? (b && c);\n")
	expectPrinted(t, "x = (a, b)", "x = (a, b);\n")
	expectPrinted(t, "a = b = c", "a = b = c;\n")
}

func TestCall(t *testing.T) {
	expectPrinted(t, "f(a, b)", "f(a, b);\n")
	expectPrinted(t, "new A(b)", "new A(b);\n")
	expectPrinted(t, "new (f())()", "new (f())();\n")
	expectPrinted(t, "a?.b?.(c)", "a?.b?.(c);\n")
	expectPrinted(t, "a?.[b]", "a?.[b];\n")
	expectPrinted(t, "a['b c']", "a['b c'];\n")
}

func TestObject(t *testing.T) {
	expectPrinted(t, "x = {}", "x = {};\n")
	expectPrinted(t, "x = { a: 1, b }", "x = { a: 1, b };\n")
	expectPrinted(t, "x = { 'a b': 1, [c]: 2, ...d }", "x = { 'a b': 1, [c]: 2, ...d };\n")
	expectPrinted(t, "x = { get a() {}, set a(v) {} }", "x = { get a() {\n}, set a(v) {\n} };\n")
	expectPrinted(t, "x = {\n  a: 1\n}", "x = {\n  a: 1\n};\n")
	expectPrinted(t, "({}).x", "({}).x;\n")
	expectPrinted(t, "({ a } = b)", "({ a } = b);\n")
}

func TestArray(t *testing.T) {
	expectPrinted(t, "x = []", "x = [];\n")
	expectPrinted(t, "x = [1, 2]", "x = [1, 2];\n")
	expectPrinted(t, "x = [, 1]", "x = [, 1];\n")
	expectPrinted(t, "x = [1, ,]", "x = [1, ,];\n")
	expectPrinted(t, "x = [...a]", "x = [...a];\n")
	expectPrinted(t, "x = [\n  1\n]", "x = [\n  1\n];\n")
}

func TestFunction(t *testing.T) {
	expectPrinted(t, "function f() {}", "function f() {\n}\n")
	expectPrinted(t, "function f(a, b = 2, ...c) { return a + b }", "function f(a, b = 2, ...c) {\n  return a + b;\n}\n")
	expectPrinted(t, "async function f() { await x }", "async function f() {\n  await x;\n}\n")
	expectPrinted(t, "function* f() { yield x; yield* y }", "function* f() {\n  yield x;\n  yield* y;\n}\n")
	expectPrinted(t, "(function() {})()", "(function() {\n})();\n")
	expectPrinted(t, "x = function() {}", "x = function() {\n};\n")
}

func TestArrow(t *testing.T) {
	expectPrinted(t, "x = y => y", "x = (y) => y;\n")
	expectPrinted(t, "x = async (a, b) => a", "x = async (a, b) => a;\n")
	expectPrinted(t, "x = () => ({})", "x = () => ({});\n")
	expectPrinted(t, "x = () => { return 1 }", "x = () => {\n  return 1;\n};\n")
	expectPrinted(t, "x = (a || (() => b))", "x = a || (() => b);\n")
}

func TestClass(t *testing.T) {
	expectPrinted(t, "class A {}", "class A {\n}\n")
	expectPrinted(t, "class A extends B { static x = 1; y; m() {} }",
		"class A extends B {\n  static x = 1;\n  y;\n  m() {\n  }\n}\n")
	expectPrinted(t, "class A { #x = 1; get #y() { return this.#x } }",
		"class A {\n  #x = 1;\n  get #y() {\n    return this.#x;\n  }\n}\n")
	expectPrinted(t, "class A { static { x() } }", "class A {\n  static {\n    x();\n  }\n}\n")
	expectPrinted(t, "class A { #x; m(o) { return o?.#x + this.#x.y } }",
		"class A {\n  #x;\n  m(o) {\n    return o?.#x + this.#x.y;\n  }\n}\n")
	expectPrinted(t, "x = class {}", "x = class {\n};\n")
}

func TestDestructuring(t *testing.T) {
	expectPrinted(t, "let { a, b: [c, , d = 1], ...e } = f", "let { a, b: [c, , d = 1], ...e } = f;\n")
	expectPrinted(t, "let [a, ...b] = c", "let [a, ...b] = c;\n")
	expectPrinted(t, "let { 'a b': c } = d", "let { 'a b': c } = d;\n")
	expectPrinted(t, "let { [a]: b } = c", "let { [a]: b } = c;\n")
}

func TestStatements(t *testing.T) {
	expectPrinted(t, "if (a) b(); else c()", "if (a)\n  b();\nelse\n  c();\n")
	expectPrinted(t, "if (a) { b() } else if (c) { d() }", "if (a) {\n  b();\n} else if (c) {\n  d();\n}\n")
	expectPrinted(t, "if (a) { if (b) c() } else d()", "if (a) {\n  if (b)\n    c();\n} else\n  d();\n")
	expectPrinted(t, "for (let i = 0; i < 10; i++) {}", "for (let i = 0; i < 10; i++) {\n}\n")
	expectPrinted(t, "for (;;) break", "for (;;)\n  break;\n")
	expectPrinted(t, "for (const x of y) z(x)", "for (const x of y)\n  z(x);\n")
	expectPrinted(t, "for (const x in y) {}", "for (const x in y) {\n}\n")
	expectPrinted(t, "while (x) x--", "while (x)\n  x--;\n")
	expectPrinted(t, "do x(); while (y)", "do\n  x();\nwhile (y);\n")
	expectPrinted(t, "try { a() } catch (e) { b(e) } finally { c() }", "try {\n  a();\n} catch (e) {\n  b(e);\n} finally {\n  c();\n}\n")
	expectPrinted(t, "try {} catch {}", "try {\n} catch {\n}\n")
	expectPrinted(t, "switch (x) { case 1: y(); break; default: z() }", "switch (x) {\n  case 1:\n    y();\n    break;\n  default:\n    z();\n}\n")
	expectPrinted(t, "a: for (;;) continue a", "a:\n  for (;;)\n    continue a;\n")
	expectPrinted(t, "throw new Error('x')", "throw new Error('x');\n")
	expectPrinted(t, "debugger", "debugger;\n")
	expectPrinted(t, "'use strict'; x()", "'use strict';\nx();\n")
}

func TestImportExport(t *testing.T) {
	expectPrinted(t, "import './a'", "import \"./a\";\n")
	expectPrinted(t, "import x from './a'", "import x from \"./a\";\n")
	expectPrinted(t, "import x, { y as z, w } from './a'", "import x, { y as z, w } from \"./a\";\n")
	expectPrinted(t, "import * as ns from './a'", "import * as ns from \"./a\";\n")
	expectPrinted(t, "import { 'a b' as c } from './a'", "import { \"a b\" as c } from \"./a\";\n")
	expectPrinted(t, "export const a = 1", "export const a = 1;\n")
	expectPrinted(t, "export function f() {}", "export function f() {\n}\n")
	expectPrinted(t, "let a; export { a as b, a }", "let a;\nexport { a as b, a };\n")
	expectPrinted(t, "export { a as b } from './a'", "export { a as b } from \"./a\";\n")
	expectPrinted(t, "export * from './a'", "export * from \"./a\";\n")
	expectPrinted(t, "export * as ns from './a'", "export * as ns from \"./a\";\n")
	expectPrinted(t, "export default 1", "export default 1;\n")
	expectPrinted(t, "export default (function() {})", "export default (function() {\n});\n")
	expectPrinted(t, "export default function() {}", "export default function stdin_default() {\n}\n")
	expectPrinted(t, "export default class A {}", "export default class A {\n}\n")
}

func TestNamespacePropertyAccess(t *testing.T) {
	// Unlinked property accesses on a namespace import print as written
	expectPrinted(t, "import * as ns from './a'; ns.foo(); y = ns.baz",
		"import * as ns from \"./a\";\nns.foo();\ny = ns.baz;\n")
}

func TestDynamicImport(t *testing.T) {
	expectPrinted(t, "import('./a')", "import('./a');\n")

	tree, symbols := parseForTest(t, "x = import('./a'); y = import('./b')", true)
	r := renamer.NewNoOpRenamer(symbols)
	js := Print(tree, symbols, r, Options{
		InlinedDynamicImports: map[uint32]js_ast.Ref{0: tree.ExportsRef},
	}).JS
	test.AssertEqualWithDiff(t, string(js),
		"x = Promise.resolve().then(() => stdin_exports);\ny = import(\"./b\");\n")
}

func TestMissingImportItem(t *testing.T) {
	tree, symbols := parseForTest(t, "import * as ns from './a'; x = ns.missing", true)

	// The linker marks accesses of exports that don't exist
	for i := range tree.Symbols {
		if tree.Symbols[i].NamespaceAlias != nil {
			tree.Symbols[i].ImportItemIsMissing = true
		}
	}

	r := renamer.NewNoOpRenamer(symbols)
	js := Print(tree, symbols, r, Options{}).JS
	test.AssertEqualWithDiff(t, string(js), "import * as ns from \"./a\";\nx = void 0;\n")
}

func TestIndent(t *testing.T) {
	expectPrintedCommon(t, "if (a) b()", "  if (a)\n    b();\n", Options{Indent: 1})
}

func TestSourceMappings(t *testing.T) {
	contents := "let a = 1;\nfunction f() {\n  return a;\n}\n"
	tree, symbols := parseForTest(t, contents, false)
	r := renamer.NewNoOpRenamer(symbols)
	result := Print(tree, symbols, r, Options{
		LineOffsetTables:  sourcemap.GenerateLineOffsetTables(contents, tree.ApproximateLineCount),
		AddSourceMappings: true,
	})
	require.Equal(t, contents, string(result.JS))

	sm, err := sourcemap.DecodeMappings([]string{"<stdin>"}, result.SourceMapChunk.Buffer)
	require.NoError(t, err)

	// The output matches the input, so every statement maps to itself
	mapping := sm.Find(2, 2)
	require.NotNil(t, mapping)
	require.Equal(t, int32(2), mapping.OriginalLine)
	require.Equal(t, int32(2), mapping.OriginalColumn)

	mapping = sm.Find(1, 0)
	require.NotNil(t, mapping)
	require.Equal(t, int32(1), mapping.OriginalLine)
	require.Equal(t, int32(0), mapping.OriginalColumn)
}
