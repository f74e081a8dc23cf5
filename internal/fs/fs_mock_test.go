package fs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFSBasic(t *testing.T) {
	fs := MockFS(map[string]string{
		"/README.md":    "// README.md",
		"/package.json": "// package.json",
		"/src/index.js": "// src/index.js",
		"/src/util.js":  "// src/util.js",
	}, "/")

	// Test a missing file
	_, err := fs.ReadFile("/missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.txt")

	// Test an existing file
	readme, err := fs.ReadFile("/README.md")
	require.NoError(t, err)
	assert.Equal(t, "// README.md", readme)

	// Test an existing nested file
	index, err := fs.ReadFile("/src/index.js")
	require.NoError(t, err)
	assert.Equal(t, "// src/index.js", index)

	// Test a missing directory
	_, err = fs.ReadDirectory("/missing")
	require.Error(t, err)

	// Test a nested directory
	src, err := fs.ReadDirectory("/src/")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "util.js"}, src.SortedKeys())
	require.NotNil(t, src.Get("index.js"))
	assert.Equal(t, FileEntry, src.Get("index.js").Kind())
	assert.Nil(t, src.Get("missing.js"))

	// Test the top-level directory
	slash, err := fs.ReadDirectory("/")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "package.json", "src"}, slash.SortedKeys())
	assert.Equal(t, DirEntry, slash.Get("src").Kind())
	assert.Equal(t, "src", slash.Get("src").Base())
}

func TestMockFSPaths(t *testing.T) {
	fs := MockFS(map[string]string{}, "/work")

	assert.True(t, fs.IsAbs("/a/b.js"))
	assert.False(t, fs.IsAbs("./b.js"))
	assert.Equal(t, "/a", fs.Dir("/a/b.js"))
	assert.Equal(t, "b.js", fs.Base("/a/b.js"))
	assert.Equal(t, "/a/c.js", fs.Join("/a/b", "../c.js"))
	assert.Equal(t, "/work", fs.Cwd())
}

func TestMockFSRel(t *testing.T) {
	fs := MockFS(map[string]string{}, "/")

	expect := func(a string, b string, c string) {
		t.Helper()
		t.Run(fmt.Sprintf("Rel(%q, %q) == %q", a, b, c), func(t *testing.T) {
			rel, ok := fs.Rel(a, b)
			require.True(t, ok)
			assert.Equal(t, c, rel)
		})
	}

	expect("/a/b", "/a/b", ".")
	expect("/a/b", "/a/b/c", "c")
	expect("/a/b", "/a/b/c/d", "c/d")
	expect("/a/b/c", "/a/b", "..")
	expect("/a/b/c/d", "/a/b", "../..")
	expect("/a/b/c", "/a/b/x", "../x")
	expect("/a/b/c/d", "/a/b/x", "../../x")
	expect("/a/b/c", "/a/b/x/y", "../x/y")
	expect("/a/b/c/d", "/a/b/x/y", "../../x/y")
	expect("/", "/a/b", "a/b")

	expect("a/b", "a/c", "../c")
	expect("./a/b", "./a/c", "../c")
	expect(".", "./a/b", "a/b")
	expect(".", ".//a/b", "a/b")
	expect(".", "././a/b", "a/b")
}
