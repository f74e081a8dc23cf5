package resolver

import (
	"testing"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/config"
	"github.com/esmlink/esmlink/internal/fs"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	mockFS := fs.MockFS(map[string]string{
		"/src/entry.js":          "",
		"/src/exact":             "",
		"/src/util.js":           "",
		"/src/util.mjs":          "",
		"/src/esm.mjs":           "",
		"/src/lib/index.js":      "",
		"/src/lib/other.js":      "",
		"/src/noindex/readme.md": "",
		"/shared/helpers.js":     "",
	}, "/src")

	options := &config.Options{ExternalModules: config.MakeExternalModules([]string{"react", "./vendor.js"})}
	r := NewResolver(mockFS, options)

	testCases := []struct {
		description string
		sourceDir   string
		importPath  string
		kind        ast.ImportKind
		expected    *ResolveResult
	}{
		{
			description: "exact path",
			sourceDir:   "/src",
			importPath:  "./util.js",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/util.js", Namespace: "file"}},
		},
		{
			description: "exact path without extension",
			sourceDir:   "/src",
			importPath:  "./exact",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/exact", Namespace: "file"}},
		},
		{
			description: "js extension before mjs",
			sourceDir:   "/src",
			importPath:  "./util",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/util.js", Namespace: "file"}},
		},
		{
			description: "mjs extension",
			sourceDir:   "/src",
			importPath:  "./esm",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/esm.mjs", Namespace: "file"}},
		},
		{
			description: "directory index",
			sourceDir:   "/src",
			importPath:  "./lib",
			kind:        ast.ImportDynamic,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/lib/index.js", Namespace: "file"}},
		},
		{
			description: "parent directory",
			sourceDir:   "/src/lib",
			importPath:  "../../shared/helpers",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/shared/helpers.js", Namespace: "file"}},
		},
		{
			description: "absolute path",
			sourceDir:   "/src/lib",
			importPath:  "/src/lib/other.js",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/lib/other.js", Namespace: "file"}},
		},
		{
			description: "entry point without a leading dot",
			sourceDir:   "/src",
			importPath:  "entry.js",
			kind:        ast.ImportEntryPoint,
			expected:    &ResolveResult{Path: logger.Path{Text: "/src/entry.js", Namespace: "file"}},
		},
		{
			description: "external package",
			sourceDir:   "/src",
			importPath:  "react",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "react"}, IsExternal: true},
		},
		{
			description: "external package subpath",
			sourceDir:   "/src",
			importPath:  "react/jsx-runtime",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "react/jsx-runtime"}, IsExternal: true},
		},
		{
			description: "external relative path",
			sourceDir:   "/src",
			importPath:  "./vendor.js",
			kind:        ast.ImportStmt,
			expected:    &ResolveResult{Path: logger.Path{Text: "./vendor.js"}, IsExternal: true},
		},
		{
			description: "package with external prefix but different name",
			sourceDir:   "/src",
			importPath:  "react-dom",
			kind:        ast.ImportStmt,
		},
		{
			description: "bare specifier",
			sourceDir:   "/src",
			importPath:  "lodash",
			kind:        ast.ImportStmt,
		},
		{
			description: "missing file",
			sourceDir:   "/src",
			importPath:  "./missing",
			kind:        ast.ImportStmt,
		},
		{
			description: "directory without index",
			sourceDir:   "/src",
			importPath:  "./noindex",
			kind:        ast.ImportStmt,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			result := r.Resolve(testCase.sourceDir, testCase.importPath, testCase.kind)
			if testCase.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, *testCase.expected, *result)
		})
	}
}

func TestPrettyPath(t *testing.T) {
	mockFS := fs.MockFS(map[string]string{}, "/project")

	assert.Equal(t, "src/entry.js", PrettyPath(mockFS, logger.Path{Text: "/project/src/entry.js", Namespace: "file"}))
	assert.Equal(t, "/other/entry.js", PrettyPath(mockFS, logger.Path{Text: "/other/entry.js", Namespace: "file"}))
	assert.Equal(t, "react", PrettyPath(mockFS, logger.Path{Text: "react"}))
}
