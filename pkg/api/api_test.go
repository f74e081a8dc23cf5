package api_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/esmlink/esmlink/internal/resolver"
	"github.com/esmlink/esmlink/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWithFiles(files map[string]string, cwd string, configure func(*api.BuildOptions)) api.BuildResult {
	options := api.DefaultBuildOptions()
	options.FS = fs.MockFS(files, cwd)
	configure(&options)
	return api.Build(options)
}

func TestBuildSingleEntryPoint(t *testing.T) {
	result := buildWithFiles(map[string]string{
		"/src/entry.js": `import { greet } from './greet'; greet()`,
		"/src/greet.js": `export function greet() { console.log('hi') } export function unused() {}`,
	}, "/src", func(options *api.BuildOptions) {
		options.EntryPoints = []string{"entry.js"}
	})
	require.NoError(t, result.Err())
	assert.Empty(t, result.Warnings)
	require.Len(t, result.OutputChunks, 1)

	chunk := result.OutputChunks[0]
	assert.Equal(t, "entry.js", chunk.Path)
	assert.Equal(t, "", chunk.AbsPath)
	assert.Equal(t, api.ChunkEntryPoint, chunk.Kind)
	assert.Equal(t, "entry.js", chunk.EntryPoint)
	assert.Contains(t, string(chunk.Contents), "function greet() {\n")
	assert.NotContains(t, string(chunk.Contents), "unused")
	assert.Empty(t, result.Metafile)
	assert.Equal(t, []string{"/src/entry.js", "/src/greet.js"}, result.Inputs)
}

func TestBuildOutdirIsRelativeToWorkingDir(t *testing.T) {
	result := buildWithFiles(map[string]string{
		"/src/entry.js": `console.log(1)`,
	}, "/src", func(options *api.BuildOptions) {
		options.EntryPoints = []string{"./entry.js"}
		options.Outdir = "out"
	})
	require.NoError(t, result.Err())
	require.Len(t, result.OutputChunks, 1)
	assert.Equal(t, "/src/out/entry.js", result.OutputChunks[0].AbsPath)
}

func TestBuildNoEntryPoints(t *testing.T) {
	result := buildWithFiles(map[string]string{}, "/", func(options *api.BuildOptions) {})
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "No entry points were specified", result.Errors[0].Text)
	assert.Equal(t, "", result.Errors[0].ID)
	assert.Nil(t, result.OutputChunks)
	assert.EqualError(t, result.Err(), "No entry points were specified")
}

func TestBuildUnresolvedImport(t *testing.T) {
	result := buildWithFiles(map[string]string{
		"/entry.js": `import './missing'`,
	}, "/", func(options *api.BuildOptions) {
		options.EntryPoints = []string{"/entry.js"}
	})
	assert.Nil(t, result.OutputChunks)
	require.Len(t, result.Errors, 1)

	msg := result.Errors[0]
	assert.Equal(t, "UnresolvedModule", msg.ID)
	assert.Equal(t, `Could not resolve "./missing"`, msg.Text)
	require.NotNil(t, msg.Location)
	assert.Equal(t, "entry.js", msg.Location.File)
	assert.Equal(t, 1, msg.Location.Line)
	assert.Equal(t, `import './missing'`, msg.Location.LineText)
	require.Len(t, msg.Notes, 1)
	assert.Equal(t, `"entry.js" is an entry point`, msg.Notes[0].Text)

	err := result.Err()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "UnresolvedModule: entry.js:1:"))
	assert.True(t, strings.HasSuffix(err.Error(), `Could not resolve "./missing"`))
}

func TestBuildReportsWarnings(t *testing.T) {
	result := buildWithFiles(map[string]string{
		"/entry.js": `import './a'`,
		"/a.js":     `import './b'; console.log('a')`,
		"/b.js":     `import './a'; console.log('b')`,
	}, "/", func(options *api.BuildOptions) {
		options.EntryPoints = []string{"/entry.js"}
	})
	require.NoError(t, result.Err())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "CircularDependency", result.Warnings[0].ID)
	assert.Len(t, result.OutputChunks, 1)
}

func TestBuildSharedModulePolicies(t *testing.T) {
	files := map[string]string{
		"/a.js":      `import { s } from './shared'; console.log(s)`,
		"/b.js":      `import { s } from './shared'; console.log(s)`,
		"/shared.js": `export const s = 1`,
	}

	for _, test := range []struct {
		name     string
		policy   api.SharedModules
		expected []api.ChunkKind
	}{
		{name: "hoist", policy: api.SharedModulesHoist, expected: []api.ChunkKind{api.ChunkEntryPoint, api.ChunkEntryPoint, api.ChunkShared}},
		{name: "duplicate", policy: api.SharedModulesDuplicate, expected: []api.ChunkKind{api.ChunkEntryPoint, api.ChunkEntryPoint}},
	} {
		t.Run(test.name, func(t *testing.T) {
			result := buildWithFiles(files, "/", func(options *api.BuildOptions) {
				options.EntryPoints = []string{"/a.js", "/b.js"}
				options.Splitting = true
				options.SharedModules = test.policy
			})
			require.NoError(t, result.Err())

			var kinds []api.ChunkKind
			for _, chunk := range result.OutputChunks {
				kinds = append(kinds, chunk.Kind)
			}
			assert.Equal(t, test.expected, kinds)
		})
	}
}

func TestBuildSourcemapAndMetafile(t *testing.T) {
	result := buildWithFiles(map[string]string{
		"/entry.js": `export const x = 1`,
	}, "/", func(options *api.BuildOptions) {
		options.EntryPoints = []string{"/entry.js"}
		options.Sourcemap = true
		options.Metafile = true
	})
	require.NoError(t, result.Err())
	require.Len(t, result.OutputChunks, 1)
	assert.NotEmpty(t, result.OutputChunks[0].SourceMap)

	var metafile map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Metafile), &metafile))
	assert.Contains(t, metafile["inputs"], "entry.js")
	assert.Contains(t, metafile["outputs"], "entry.js")
}

// Redirects "virtual:" specifiers to files and defers everything else
type virtualResolver struct {
	fallback *resolver.Resolver
}

func (r virtualResolver) Resolve(sourceDir string, importPath string, kind ast.ImportKind) *resolver.ResolveResult {
	if name := strings.TrimPrefix(importPath, "virtual:"); name != importPath {
		return &resolver.ResolveResult{Path: logger.Path{Text: "/virtual/" + name + ".js", Namespace: "file"}}
	}
	return r.fallback.Resolve(sourceDir, importPath, kind)
}

func TestBuildCustomResolver(t *testing.T) {
	files := map[string]string{
		"/entry.js":          `import { value } from 'virtual:config'; console.log(value)`,
		"/virtual/config.js": `export const value = 'virtual'`,
	}
	mockFS := fs.MockFS(files, "/")

	options := api.DefaultBuildOptions()
	options.FS = mockFS
	options.EntryPoints = []string{"/entry.js"}
	options.Resolver = virtualResolver{fallback: resolver.NewResolver(mockFS, &config.Options{})}

	result := api.Build(options)
	require.NoError(t, result.Err())
	require.Len(t, result.OutputChunks, 1)
	assert.Contains(t, string(result.OutputChunks[0].Contents), "const value = 'virtual';\n")
}

func TestChunkKindString(t *testing.T) {
	assert.Equal(t, "entry", api.ChunkEntryPoint.String())
	assert.Equal(t, "dynamic", api.ChunkDynamicImport.String())
	assert.Equal(t, "shared", api.ChunkShared.String())
}
