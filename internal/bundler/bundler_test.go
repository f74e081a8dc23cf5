package bundler

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/graph"
	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/resolver"
	"github.com/esmlink/esmlink/internal/sourcemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bundled struct {
	files      map[string]string
	entryPaths []string
	options    config.Options
}

type bundleResult struct {
	bundle     Bundle
	scanMsgs   []logger.Msg
	outputs    []graph.OutputFile
	compileLog []logger.Msg
}

func hasErrors(msgs []logger.Msg) bool {
	for _, msg := range msgs {
		if msg.Kind == logger.Error {
			return true
		}
	}
	return false
}

func runBundle(t *testing.T, args bundled) bundleResult {
	t.Helper()
	mockFS := fs.MockFS(args.files, "/")
	args.options.EntryPoints = args.entryPaths
	res := resolver.NewResolver(mockFS, &args.options)

	log := logger.NewDeferLog()
	bundle := ScanBundle(log, mockFS, res, DefaultASTProvider(), nil, args.options)
	result := bundleResult{bundle: bundle, scanMsgs: log.Done()}

	// Stop now if there were any errors during the scan
	if hasErrors(result.scanMsgs) {
		return result
	}

	log = logger.NewDeferLog()
	result.outputs = bundle.Compile(log, nil, args.options)
	result.compileLog = log.Done()
	return result
}

func outputByPath(t *testing.T, outputs []graph.OutputFile, path string) string {
	t.Helper()
	for _, output := range outputs {
		if output.Path == path {
			return string(output.Contents)
		}
	}
	require.Failf(t, "missing output", "no output file named %q", path)
	return ""
}

func findMsg(msgs []logger.Msg, id logger.MsgID) *logger.Msg {
	for i := range msgs {
		if msgs[i].ID == id {
			return &msgs[i]
		}
	}
	return nil
}

func assertInOrder(t *testing.T, text string, parts ...string) {
	t.Helper()
	offset := 0
	for _, part := range parts {
		index := strings.Index(text[offset:], part)
		if !assert.GreaterOrEqual(t, index, 0, "expected %q after offset %d in:\n%s", part, offset, text) {
			return
		}
		offset += index + len(part)
	}
}

func TestSimpleImport(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `
				import { a } from './a'
				console.log(a)
			`,
			"/a.js": `
				export const a = 1
				export const b = 2
			`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.scanMsgs)
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 1)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "// a.js\n", "const a = 1;\n", "// entry.js\n", "console.log(a);\n")
	assert.NotContains(t, out, "const b")
	assert.NotContains(t, out, "import")
	assert.Equal(t, graph.OutputEntryPoint, result.outputs[0].Kind)
	assert.Equal(t, "entry.js", result.outputs[0].EntryPoint)
}

func TestTreeShakingDisabled(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { a } from './a'; console.log(a)`,
			"/a.js":     `export const a = 1; export const b = 2`,
		},
		entryPaths: []string{"/entry.js"},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "const a = 1;\n")
	assert.Contains(t, out, "const b = 2;\n")
}

func TestSideEffectImports(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js":  `import './effect'; import './pure'; console.log('entry')`,
			"/effect.js": `console.log('effect')`,
			"/pure.js":   `export const unused = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "// effect.js\n", "console.log('effect');\n", "// entry.js\n")
	assert.NotContains(t, out, "pure.js")
	assert.NotContains(t, out, "unused")
}

func TestSideEffectsThroughPureModule(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js":  `import './pure'`,
			"/pure.js":   `import './effect'; export const x = 1`,
			"/effect.js": `console.log('effect')`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "console.log('effect');\n")
	assert.NotContains(t, out, "const x")
}

func TestEntryPointExports(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `
				export { a } from './a'
				export function f() {}
			`,
			"/a.js": `export const a = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "const a = 1;\n", "function f() {\n}\n", "export { a, f };\n")
	assert.NotContains(t, out, "from")
}

func TestExecOrderDiamond(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import './b'; import './c'; console.log('entry')`,
			"/b.js":     `import './d'; console.log('b')`,
			"/c.js":     `import './d'; console.log('c')`,
			"/d.js":     `console.log('d')`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "// d.js\n", "// b.js\n", "// c.js\n", "// entry.js\n")
}

func TestCircularDependency(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import './a'`,
			"/a.js":     `import './b'; console.log('a')`,
			"/b.js":     `import './a'; console.log('b')`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})

	msg := findMsg(result.compileLog, logger.MsgID_CircularDependency)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Warning, msg.Kind)
	assert.Equal(t, "Circular import dependency: a.js -> b.js -> a.js", msg.Data.Text)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "// b.js\n", "// a.js\n")
}

func TestCircularLiveBinding(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import './a'`,
			"/a.js": `
				import { update } from './b'
				export let value = 1
				export function setValue(v) { value = v }
				update()
				console.log(value)
			`,
			"/b.js": `
				import { value, setValue } from './a'
				export function update() { setValue(value + 1) }
			`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.False(t, hasErrors(result.compileLog))

	// Both modules name the same binding, so reads see every assignment
	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "// b.js\n", "setValue(value + 1);\n", "// a.js\n", "let value = 1;\n", "value = v;\n", "update();\n", "console.log(value);\n")
	assert.Equal(t, 1, strings.Count(out, "let value"))
	assert.NotContains(t, out, "value2")
	assert.NotContains(t, out, "setValue2")
}

func TestUnusedPureModuleRetainsNothing(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import './lib'; console.log('entry')`,
			"/lib.js": `
				export const x = 1
				export function f() { return x }
				export class C {}
				const o = { list: [1, 2], s: ` + "`t${x}`" + ` }
				let y = typeof x
			`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "console.log('entry');\n")
	for _, text := range []string{"lib.js", "const x", "function f", "class C", "list", "typeof"} {
		assert.NotContains(t, out, text)
	}
}

func TestScanEdgesAndImporters(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/e.js": `import './a'; import './b'; import('./c')`,
			"/a.js": `import './b'; console.log('a')`,
			"/b.js": `console.log('b')`,
			"/c.js": `console.log('c')`,
		},
		entryPaths: []string{"/e.js"},
	})
	require.Empty(t, result.scanMsgs)

	modules := result.bundle.Modules()
	require.Len(t, modules, 4)
	paths := make([]string, len(modules))
	for i, module := range modules {
		paths[i] = module.Source.PrettyPath
	}
	require.Equal(t, []string{"e.js", "a.js", "b.js", "c.js"}, paths)

	require.Len(t, modules[0].Edges, 3)
	assert.Equal(t, graph.Edge{From: 0, To: 1, Specifier: "./a", Kind: graph.EdgeImport, ImportRecordIndex: 0}, modules[0].Edges[0])
	assert.Equal(t, graph.Edge{From: 0, To: 2, Specifier: "./b", Kind: graph.EdgeImport, ImportRecordIndex: 1}, modules[0].Edges[1])
	assert.Equal(t, graph.Edge{From: 0, To: 3, Specifier: "./c", Kind: graph.EdgeDynamicImport, ImportRecordIndex: 2}, modules[0].Edges[2])
	require.Len(t, modules[1].Edges, 1)
	assert.Equal(t, uint32(2), modules[1].Edges[0].To)
	assert.Empty(t, modules[2].Edges)

	assert.Empty(t, modules[0].Importers)
	assert.Equal(t, []uint32{0}, modules[1].Importers)
	assert.Equal(t, []uint32{0, 1}, modules[2].Importers)
	assert.Empty(t, modules[3].Importers)
	assert.Equal(t, []uint32{0}, modules[3].DynamicImporters)
}

func TestPrivateClassMembers(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `
				class A {
					#x = 1
					get y() { return this.#x }
					static has(o) { return #x in o && o?.#x }
				}
				console.log(new A().y)
			`,
		},
		entryPaths: []string{"/entry.js"},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assertInOrder(t, out, "#x = 1;\n", "return this.#x;\n", "return #x in o && o?.#x;\n")
	assert.NotContains(t, out, "[#x]")
}

func TestUnresolvedImport(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import './a'`,
			"/a.js":     `import { x } from './missing'; console.log(x)`,
		},
		entryPaths: []string{"/entry.js"},
	})
	require.Nil(t, result.outputs)

	msg := findMsg(result.scanMsgs, logger.MsgID_UnresolvedModule)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Error, msg.Kind)
	assert.Equal(t, `Could not resolve "./missing"`, msg.Data.Text)
	require.NotNil(t, msg.Data.Location)
	assert.Equal(t, "a.js", msg.Data.Location.File)

	// The notes lead from the entry point to the failing import
	require.Len(t, msg.Notes, 2)
	assert.Equal(t, `"entry.js" is an entry point`, msg.Notes[0].Text)
	assert.Equal(t, `"a.js" is imported by "entry.js" here:`, msg.Notes[1].Text)
}

func TestUnresolvedPackage(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import x from 'lodash'; console.log(x)`,
		},
		entryPaths: []string{"/entry.js"},
	})

	msg := findMsg(result.scanMsgs, logger.MsgID_UnresolvedModule)
	require.NotNil(t, msg)
	assert.Equal(t, `Could not resolve "lodash" (mark it as external to exclude it from the bundle)`, msg.Data.Text)
}

func TestUnresolvedEntryPoint(t *testing.T) {
	result := runBundle(t, bundled{
		files:      map[string]string{"/entry.js": ``},
		entryPaths: []string{"/nope.js"},
	})

	msg := findMsg(result.scanMsgs, logger.MsgID_UnresolvedModule)
	require.NotNil(t, msg)
	assert.Equal(t, `Could not resolve "/nope.js"`, msg.Data.Text)
}

func TestDuplicateEntryPoint(t *testing.T) {
	result := runBundle(t, bundled{
		files:      map[string]string{"/entry.js": `console.log(1)`},
		entryPaths: []string{"/entry.js", "./entry.js"},
	})
	require.Len(t, result.scanMsgs, 1)
	assert.Equal(t, logger.Warning, result.scanMsgs[0].Kind)
	assert.Equal(t, `Duplicate entry point "entry.js"`, result.scanMsgs[0].Data.Text)
	assert.Len(t, result.outputs, 1)
}

func TestExternalModule(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `
				import x from 'lodash'
				export * as fs from 'node:fs'
				console.log(x)
			`,
		},
		entryPaths: []string{"/entry.js"},
		options: config.Options{
			TreeShaking:     true,
			ExternalModules: config.MakeExternalModules([]string{"lodash", "node:fs"}),
		},
	})
	require.Empty(t, result.scanMsgs)
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, `import x from "lodash";`)
	assert.Contains(t, out, `import * as fs from "node:fs";`)
	assert.Contains(t, out, "export { fs };\n")
}

func TestMissingExport(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { nope } from './a'; console.log(nope)`,
			"/a.js":     `export const a = 1`,
		},
		entryPaths: []string{"/entry.js"},
	})
	assert.Empty(t, result.outputs)

	msg := findMsg(result.compileLog, logger.MsgID_MissingExport)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Error, msg.Kind)
	assert.Equal(t, `No matching export in "a.js" for import "nope"`, msg.Data.Text)
}

func TestMissingNamespaceProperty(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import * as ns from './a'; console.log(ns.a, ns.nope)`,
			"/a.js":     `export const a = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})

	msg := findMsg(result.compileLog, logger.MsgID_MissingExport)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Warning, msg.Kind)
	assert.Equal(t, `Import "nope" will always be undefined because there is no matching export in "a.js"`, msg.Data.Text)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "console.log(a, void 0);\n")
}

func TestCircularReexport(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { x } from './a'; console.log(x)`,
			"/a.js":     `export { x } from './b'`,
			"/b.js":     `export { x } from './a'`,
		},
		entryPaths: []string{"/entry.js"},
	})
	assert.Empty(t, result.outputs)

	msg := findMsg(result.compileLog, logger.MsgID_CircularReexport)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Error, msg.Kind)
	assert.Equal(t, `Detected cycle while resolving import "x"`, msg.Data.Text)

	count := 0
	for _, other := range result.compileLog {
		if other.ID == logger.MsgID_CircularReexport {
			count++
		}
	}
	assert.Equal(t, 1, count)

	var notes []string
	for _, note := range msg.Notes {
		notes = append(notes, note.Text)
	}
	assert.Contains(t, notes, `"x" is imported from "b.js" here:`)
	assert.Contains(t, notes, `"x" is imported from "a.js" here:`)
	for _, note := range notes {
		assert.NotContains(t, note, "/")
	}
}

func TestAmbiguousImport(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { x } from './a'; console.log(x)`,
			"/a.js":     `export * from './b'; export * from './c'`,
			"/b.js":     `export const x = 1`,
			"/c.js":     `export const x = 2`,
		},
		entryPaths: []string{"/entry.js"},
	})
	assert.Empty(t, result.outputs)

	msg := findMsg(result.compileLog, logger.MsgID_AmbiguousExport)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Error, msg.Kind)
	assert.Equal(t, `Ambiguous import "x" has multiple matching exports`, msg.Data.Text)
}

func TestAmbiguousExportIsRemoved(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `export * from './b'; export * from './c'`,
			"/b.js":     `export const x = 1; export const y = 1`,
			"/c.js":     `export const x = 2`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})

	msg := findMsg(result.compileLog, logger.MsgID_AmbiguousExport)
	require.NotNil(t, msg)
	assert.Equal(t, logger.Warning, msg.Kind)
	assert.Contains(t, msg.Data.Text, `The export "x" is ambiguous`)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "export { y };\n")
	assert.NotContains(t, out, "const x")
}

func TestCodeSplittingHoist(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/a.js":      `import { shared } from './shared'; console.log('a', shared)`,
			"/b.js":      `import { shared } from './shared'; console.log('b', shared)`,
			"/shared.js": `export const shared = 123`,
		},
		entryPaths: []string{"/a.js", "/b.js"},
		options:    config.Options{TreeShaking: true, CodeSplitting: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 3)

	shared := result.outputs[2]
	assert.Equal(t, graph.OutputShared, shared.Kind)
	assert.True(t, strings.HasPrefix(shared.Path, "chunk-"))
	assert.Contains(t, string(shared.Contents), "const shared = 123;\n")
	assert.Contains(t, string(shared.Contents), "export { shared };\n")

	for _, path := range []string{"a.js", "b.js"} {
		out := outputByPath(t, result.outputs, path)
		assert.Contains(t, out, `import { shared } from "./`+shared.Path+`";`)
		assert.NotContains(t, out, "123")
	}
}

func TestCodeSplittingDuplicate(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/a.js":      `import { shared } from './shared'; console.log('a', shared)`,
			"/b.js":      `import { shared } from './shared'; console.log('b', shared)`,
			"/shared.js": `export const shared = 123`,
		},
		entryPaths: []string{"/a.js", "/b.js"},
		options: config.Options{
			TreeShaking:   true,
			CodeSplitting: true,
			SharedModules: config.SharedModulesDuplicate,
		},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 2)

	for _, path := range []string{"a.js", "b.js"} {
		out := outputByPath(t, result.outputs, path)
		assert.Contains(t, out, "const shared = 123;\n")
		assert.NotContains(t, out, "import")
	}
}

func TestMultipleEntryPointsWithoutSplitting(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/a.js":      `import './shared'; console.log('a')`,
			"/b.js":      `import './shared'; console.log('b')`,
			"/shared.js": `console.log('shared')`,
		},
		entryPaths: []string{"/a.js", "/b.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 2)
	assert.Equal(t, "a.js", result.outputs[0].Path)
	assert.Equal(t, "b.js", result.outputs[1].Path)

	for _, output := range result.outputs {
		assert.Contains(t, string(output.Contents), "console.log('shared');\n")
	}
}

func TestEntryPointNameCollision(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/x/index.js": `console.log('x')`,
			"/y/index.js": `console.log('y')`,
		},
		entryPaths: []string{"/x/index.js", "/y/index.js"},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 2)
	assert.NotEqual(t, result.outputs[0].Path, result.outputs[1].Path)
}

func TestDynamicImportWithSplitting(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import('./lazy').then(ns => console.log(ns))`,
			"/lazy.js":  `export const value = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true, CodeSplitting: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 2)

	assert.Contains(t, outputByPath(t, result.outputs, "entry.js"), "./lazy.js")
	lazy := result.outputs[1]
	assert.Equal(t, "lazy.js", lazy.Path)
	assert.Equal(t, graph.OutputDynamicImport, lazy.Kind)
	assert.Contains(t, string(lazy.Contents), "export { value };\n")
}

func TestDynamicImportWithoutSplitting(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import('./lazy').then(ns => console.log(ns))`,
			"/lazy.js":  `export const value = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{TreeShaking: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 1)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.Contains(t, out, "Promise.resolve().then(() => ")
	assert.Contains(t, out, "Object.freeze(")
	assert.Contains(t, out, "const value = 1;\n")
}

func TestHashbang(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": "#!/usr/bin/env node\nconsole.log(1)",
		},
		entryPaths: []string{"/entry.js"},
	})
	require.Empty(t, result.compileLog)

	out := outputByPath(t, result.outputs, "entry.js")
	assert.True(t, strings.HasPrefix(out, "#!/usr/bin/env node\n"))
}

func TestSourceMap(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { a } from './a'; console.log(a)`,
			"/a.js":     `export const a = 1`,
		},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{SourceMap: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 1)

	output := result.outputs[0]
	assert.True(t, strings.HasSuffix(string(output.Contents), "//# sourceMappingURL=entry.js.map\n"))

	var sourceMap struct {
		Version  int      `json:"version"`
		Sources  []string `json:"sources"`
		Mappings string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(output.SourceMap, &sourceMap))
	assert.Equal(t, 3, sourceMap.Version)
	assert.Equal(t, []string{"a.js", "entry.js"}, sourceMap.Sources)
	assert.NotEmpty(t, sourceMap.Mappings)
}

// Returns the 0-based line and column of the first "needle" in "text"
func lineColumnOf(t *testing.T, text string, needle string) (int32, int32) {
	t.Helper()
	i := strings.Index(text, needle)
	require.GreaterOrEqual(t, i, 0, "missing %q in:\n%s", needle, text)
	before := text[:i]
	return int32(strings.Count(before, "\n")), int32(i - (strings.LastIndexByte(before, '\n') + 1))
}

func TestSourceMapPositions(t *testing.T) {
	files := map[string]string{
		"/a.js":     "// header\n\nexport const label = 'AAA'\n",
		"/entry.js": "import { label } from './a'\n\n\nconsole.log(label)\n",
	}
	result := runBundle(t, bundled{
		files:      files,
		entryPaths: []string{"/entry.js"},
		options:    config.Options{SourceMap: true},
	})
	require.Empty(t, result.compileLog)
	require.Len(t, result.outputs, 1)
	out := string(result.outputs[0].Contents)

	var sourceMap struct {
		Sources  []string `json:"sources"`
		Mappings string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(result.outputs[0].SourceMap, &sourceMap))
	decoded, err := sourcemap.DecodeMappings(sourceMap.Sources, []byte(sourceMap.Mappings))
	require.NoError(t, err)

	for _, it := range []struct {
		needle string
		source string
	}{
		{"'AAA'", "a.js"},
		{"console.log(label)", "entry.js"},
	} {
		line, column := lineColumnOf(t, out, it.needle)
		mapping := decoded.Find(line, column)
		require.NotNil(t, mapping, it.needle)
		assert.Equal(t, it.source, decoded.Sources[mapping.SourceIndex], it.needle)

		originalLine, originalColumn := lineColumnOf(t, files["/"+it.source], it.needle)
		assert.Equal(t, originalLine, mapping.OriginalLine, it.needle)
		assert.Equal(t, originalColumn, mapping.OriginalColumn, it.needle)
	}
}

func TestRefuseToOverwriteInput(t *testing.T) {
	result := runBundle(t, bundled{
		files:      map[string]string{"/entry.js": `console.log(1)`},
		entryPaths: []string{"/entry.js"},
		options:    config.Options{AbsOutputDir: "/"},
	})

	require.Len(t, result.compileLog, 1)
	assert.Equal(t, "Refusing to overwrite input file: entry.js", result.compileLog[0].Data.Text)
}

func TestMetafile(t *testing.T) {
	result := runBundle(t, bundled{
		files: map[string]string{
			"/entry.js": `import { a } from './a'; import x from 'ext'; console.log(a, x)`,
			"/a.js":     `export const a = 1; export const b = 2`,
		},
		entryPaths: []string{"/entry.js"},
		options: config.Options{
			TreeShaking:     true,
			NeedsMetafile:   true,
			ExternalModules: config.MakeExternalModules([]string{"ext"}),
		},
	})
	require.Empty(t, result.compileLog)

	type binding struct {
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		Retained bool   `json:"retained"`
	}
	var metafile struct {
		Inputs map[string]struct {
			Bytes   int `json:"bytes"`
			Imports []struct {
				Path     string `json:"path"`
				Kind     string `json:"kind"`
				External bool   `json:"external"`
			} `json:"imports"`
			ImportedBy            []string `json:"importedBy"`
			DynamicallyImportedBy []string `json:"dynamicallyImportedBy"`
		} `json:"inputs"`
		Outputs map[string]struct {
			Bytes      int    `json:"bytes"`
			Kind       string `json:"kind"`
			EntryPoint string `json:"entryPoint"`
			Inputs     map[string]struct {
				BytesInOutput          int       `json:"bytesInOutput"`
				DistanceFromEntryPoint int       `json:"distanceFromEntryPoint"`
				Bindings               []binding `json:"bindings"`
			} `json:"inputs"`
		} `json:"outputs"`
	}
	text := result.bundle.GenerateMetadataJSON(result.outputs)
	require.NoError(t, json.Unmarshal([]byte(text), &metafile))

	require.Contains(t, metafile.Inputs, "entry.js")
	entryImports := metafile.Inputs["entry.js"].Imports
	require.Len(t, entryImports, 2)
	assert.Equal(t, "a.js", entryImports[0].Path)
	assert.Equal(t, "import", entryImports[0].Kind)
	assert.Equal(t, "ext", entryImports[1].Path)
	assert.True(t, entryImports[1].External)
	assert.Empty(t, metafile.Inputs["entry.js"].ImportedBy)
	assert.Equal(t, []string{"entry.js"}, metafile.Inputs["a.js"].ImportedBy)
	assert.Empty(t, metafile.Inputs["a.js"].DynamicallyImportedBy)

	require.Contains(t, metafile.Outputs, "entry.js")
	output := metafile.Outputs["entry.js"]
	assert.Equal(t, len(result.outputs[0].Contents), output.Bytes)
	assert.Equal(t, "entry", output.Kind)
	assert.Equal(t, "entry.js", output.EntryPoint)
	assert.Equal(t, 1, output.Inputs["a.js"].DistanceFromEntryPoint)
	assert.Equal(t, 0, output.Inputs["entry.js"].DistanceFromEntryPoint)
	assert.Contains(t, output.Inputs["a.js"].Bindings, binding{Name: "a", Kind: "variable", Retained: true})
	assert.Contains(t, output.Inputs["a.js"].Bindings, binding{Name: "b", Kind: "variable", Retained: false})
}

func TestDeterministicOutput(t *testing.T) {
	args := bundled{
		files: map[string]string{
			"/a.js":  `import { s, t } from './s'; console.log(s, t)`,
			"/b.js":  `import { s } from './s'; import './c'; console.log(s)`,
			"/c.js":  `import { t } from './s'; console.log(t)`,
			"/s.js":  `export let s = 1, t = 2`,
			"/d.js":  `import('./a')`,
			"/e.js":  `export * from './s'`,
			"/f.js":  `import * as ns from './e'; console.log(ns)`,
			"/g.js":  `import './f'`,
			"/h.js":  `import './g'; import './d'`,
			"/i.js":  `import './h'; import './b'`,
			"/j.js":  `import './i'`,
			"/k.js":  `import './j'; import './a'`,
			"/l.js":  `import './k'`,
			"/m.js":  `import './l'`,
			"/n.js":  `import './m'`,
			"/o.js":  `import './n'`,
			"/p.js":  `import './o'`,
			"/q.js":  `import './p'`,
			"/r.js":  `import './q'`,
			"/z.js":  `import './r'; import './b'`,
			"/zz.js": `import './z'; import './a'`,
		},
		entryPaths: []string{"/a.js", "/b.js", "/zz.js"},
		options:    config.Options{TreeShaking: true, CodeSplitting: true, Concurrency: 4},
	}

	first := runBundle(t, args)
	require.Empty(t, first.compileLog)
	for i := 0; i < 5; i++ {
		next := runBundle(t, args)
		require.Len(t, next.outputs, len(first.outputs))
		for j := range first.outputs {
			assert.Equal(t, first.outputs[j].Path, next.outputs[j].Path)
			assert.Equal(t, string(first.outputs[j].Contents), string(next.outputs[j].Contents))
		}
	}
}

func TestSharedChunkNamesAreContentHashes(t *testing.T) {
	// The name of a shared chunk only depends on the modules in it
	paths := []string{"shared.js"}
	result := runBundle(t, bundled{
		files: map[string]string{
			"/a.js":      `import { shared } from './shared'; console.log(shared)`,
			"/b.js":      `import { shared } from './shared'; console.log(shared)`,
			"/shared.js": `export const shared = 1`,
		},
		entryPaths: []string{"/a.js", "/b.js"},
		options:    config.Options{TreeShaking: true, CodeSplitting: true},
	})
	require.Len(t, result.outputs, 3)
	assert.Equal(t, "chunk-"+helpers.HashStringsToHex(paths)+".js", result.outputs[2].Path)
}
