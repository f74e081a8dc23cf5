package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/esmlink/esmlink/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func newTestContext(t *testing.T, baseURL string, files map[string]string) (*cliContext, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	service := afs.New()
	for name, contents := range files {
		require.NoError(t, service.Upload(ctx, baseURL+name, file.DefaultFileOsMode, strings.NewReader(contents)))
	}
	stdout := &bytes.Buffer{}
	return &cliContext{ctx: ctx, service: service, cwd: baseURL, stdout: stdout}, stdout
}

func TestParseFlags(t *testing.T) {
	c, _ := newTestContext(t, "/work", nil)
	options, err := c.parseOptions([]string{
		"--outdir=out",
		"--splitting",
		"--shared=duplicate",
		"--external=react",
		"--external=lodash",
		"--tree-shaking=false",
		"--log-level=warning",
		"--metafile=meta.json",
		"a.js",
		"b.js",
	})
	require.NoError(t, err)

	build := options.build
	assert.Equal(t, []string{"a.js", "b.js"}, build.EntryPoints)
	assert.Equal(t, "out", build.Outdir)
	assert.True(t, build.Splitting)
	assert.False(t, build.TreeShaking)
	assert.False(t, build.Sourcemap)
	assert.Equal(t, api.SharedModulesDuplicate, build.SharedModules)
	assert.Equal(t, []string{"react", "lodash"}, build.External)
	assert.Equal(t, api.LogLevelWarning, build.LogLevel)
	assert.Equal(t, "/work", build.AbsWorkingDir)
	assert.True(t, build.Metafile)
	assert.Equal(t, "/work/meta.json", options.metafile)
	assert.False(t, options.watch)
}

func TestParseDefaults(t *testing.T) {
	c, _ := newTestContext(t, "/work", nil)
	options, err := c.parseOptions([]string{"entry.js"})
	require.NoError(t, err)

	build := options.build
	assert.True(t, build.TreeShaking)
	assert.False(t, build.Splitting)
	assert.Equal(t, api.SharedModulesHoist, build.SharedModules)
	assert.Equal(t, api.LogLevelInfo, build.LogLevel)
	assert.False(t, build.Metafile)
	assert.Equal(t, "", options.metafile)
}

func TestConfigFileIsOverriddenByFlags(t *testing.T) {
	baseURL := "mem://localhost/esmlink/cli_config_test"
	c, _ := newTestContext(t, baseURL, map[string]string{
		"/esmlink.yaml": strings.Join([]string{
			"entryPoints: [src/main.js]",
			"outdir: dist",
			"treeShaking: false",
			"sourcemap: true",
			"shared: duplicate",
			"external: [react]",
			"concurrency: 2",
		}, "\n"),
	})

	options, err := c.parseOptions([]string{"--config=esmlink.yaml", "--tree-shaking", "--external=vue"})
	require.NoError(t, err)

	build := options.build
	assert.Equal(t, []string{"src/main.js"}, build.EntryPoints)
	assert.Equal(t, "dist", build.Outdir)
	assert.True(t, build.TreeShaking)
	assert.True(t, build.Sourcemap)
	assert.Equal(t, api.SharedModulesDuplicate, build.SharedModules)
	assert.Equal(t, []string{"react", "vue"}, build.External)
	assert.Equal(t, 2, build.Concurrency)
}

func TestParseErrors(t *testing.T) {
	baseURL := "mem://localhost/esmlink/cli_errors_test"
	c, _ := newTestContext(t, baseURL, map[string]string{
		"/bad-shared.yaml": "shared: sometimes",
		"/typo.yaml":       "outDirectory: dist",
	})

	for _, test := range []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "unknown flag", args: []string{"--minify", "a.js"}, contains: "minify"},
		{name: "invalid choice", args: []string{"--shared=sometimes", "a.js"}, contains: "sometimes"},
		{name: "missing config", args: []string{"--config=missing.yaml"}, contains: "failed to read config file"},
		{name: "invalid config value", args: []string{"--config=bad-shared.yaml"}, contains: `Invalid shared module policy "sometimes"`},
		{name: "unknown config key", args: []string{"--config=typo.yaml"}, contains: "failed to parse config file"},
		{name: "sourcemap to stdout", args: []string{"--sourcemap", "a.js"}, contains: `Cannot use "sourcemap" without "outdir"`},
		{name: "watch to stdout", args: []string{"--watch", "a.js"}, contains: `Cannot use "watch" without "outdir"`},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := c.parseOptions(test.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.contains)
		})
	}
}

func TestBuildWritesThroughAFS(t *testing.T) {
	baseURL := "mem://localhost/esmlink/cli_build_test"
	c, _ := newTestContext(t, baseURL, map[string]string{
		"/src/entry.js": `import { value } from './value'; console.log(value)`,
		"/src/value.js": `export const value = 123`,
	})

	code := c.run([]string{"--outdir=out", "--sourcemap", "--metafile=meta.json", "--log-level=silent", "src/entry.js"})
	require.Equal(t, 0, code)

	contents, err := c.service.DownloadWithURL(c.ctx, baseURL+"/out/entry.js")
	require.NoError(t, err)
	assert.Contains(t, string(contents), "const value = 123;\n")
	assert.Contains(t, string(contents), "//# sourceMappingURL=entry.js.map\n")

	sourceMap, err := c.service.DownloadWithURL(c.ctx, baseURL+"/out/entry.js.map")
	require.NoError(t, err)
	assert.Contains(t, string(sourceMap), `"src/value.js"`)

	metafile, err := c.service.DownloadWithURL(c.ctx, baseURL+"/meta.json")
	require.NoError(t, err)
	assert.Contains(t, string(metafile), `"src/entry.js"`)
}

func TestBuildWritesToStdout(t *testing.T) {
	baseURL := "mem://localhost/esmlink/cli_stdout_test"
	c, stdout := newTestContext(t, baseURL, map[string]string{
		"/entry.js": `console.log('stdout')`,
	})

	require.Equal(t, 0, c.run([]string{"--log-level=silent", "entry.js"}))
	assert.Contains(t, stdout.String(), "console.log('stdout');\n")
}

func TestBuildFailureExitCode(t *testing.T) {
	baseURL := "mem://localhost/esmlink/cli_failure_test"
	c, stdout := newTestContext(t, baseURL, map[string]string{
		"/entry.js": `import './missing'`,
	})

	assert.Equal(t, 1, c.run([]string{"--log-level=silent", "entry.js"}))
	assert.Empty(t, stdout.String())
}

func TestWatchDirs(t *testing.T) {
	dirs := watchDirs([]string{
		"/b/two.js",
		"/a/one.js",
		"/a/other.js",
		"file:///c/three.js",
		"mem://localhost/d/four.js",
		"relative.js",
	})
	assert.Equal(t, []string{"/a", "/b", "/c"}, dirs)
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "entry.js")
	require.NoError(t, os.WriteFile(entry, []byte("console.log(1)"), 0644))

	w, err := newWatcher(10 * time.Millisecond)
	require.NoError(t, err)
	defer w.close()
	w.setInputs([]string{entry})
	assert.Equal(t, map[string]bool{dir: true}, w.dirs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rebuilds := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.run(ctx, func() []string {
			rebuilds <- struct{}{}
			return []string{entry}
		})
	}()

	require.NoError(t, os.WriteFile(entry, []byte("console.log(2)"), 0644))
	select {
	case <-rebuilds:
	case <-time.After(5 * time.Second):
		require.Fail(t, "no rebuild after the entry point changed")
	}

	cancel()
	require.NoError(t, <-done)
}
