package fs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestAFSReadFromMemory(t *testing.T) {
	ctx := context.Background()
	service := afs.New()
	baseURL := "mem://localhost/esmlink/fs_afs_test"

	for name, contents := range map[string]string{
		"/src/index.js":     "import './util.js'",
		"/src/util.js":      "export let x = 1",
		"/src/lib/index.js": "export default 2",
	} {
		require.NoError(t, service.Upload(ctx, baseURL+name, file.DefaultFileOsMode, strings.NewReader(contents)))
	}

	fs := AFS(ctx, service, baseURL)

	contents, err := fs.ReadFile(baseURL + "/src/util.js")
	require.NoError(t, err)
	assert.Equal(t, "export let x = 1", contents)

	_, err = fs.ReadFile(baseURL + "/src/missing.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")

	entries, err := fs.ReadDirectory(baseURL + "/src")
	require.NoError(t, err)
	require.NotNil(t, entries.Get("index.js"))
	assert.Equal(t, FileEntry, entries.Get("index.js").Kind())
	require.NotNil(t, entries.Get("lib"))
	assert.Equal(t, DirEntry, entries.Get("lib").Kind())
	assert.Nil(t, entries.Get("src"))
}

func TestAFSPaths(t *testing.T) {
	fs := AFS(context.Background(), afs.New(), "/work")

	assert.True(t, fs.IsAbs("mem://localhost/a/b.js"))
	assert.True(t, fs.IsAbs("/a/b.js"))
	assert.Equal(t, "mem://localhost/a", fs.Dir("mem://localhost/a/b.js"))
	assert.Equal(t, "/a", fs.Dir("/a/b.js"))
	assert.Equal(t, "b.js", fs.Base("mem://localhost/a/b.js"))
	assert.Equal(t, "mem://localhost/c.js", fs.Join("mem://localhost/a", "../c.js"))
	assert.Equal(t, "/a/c.js", fs.Join("/a", "./c.js"))

	rel, ok := fs.Rel("mem://localhost/a", "mem://localhost/a/b/c.js")
	require.True(t, ok)
	assert.Equal(t, "b/c.js", rel)

	_, ok = fs.Rel("/a", "mem://localhost/a/b.js")
	assert.False(t, ok)
}
