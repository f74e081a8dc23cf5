package helpers

import (
	"testing"

	"github.com/esmlink/esmlink/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoiner(t *testing.T) {
	j := Joiner{}
	assert.Equal(t, uint32(0), j.Length())
	j.EnsureNewlineAtEnd()
	assert.Equal(t, uint32(0), j.Length())

	j.AddString("let a = 1;")
	j.AddBytes([]byte("\nlet b = 2;"))
	j.AddString("")
	assert.Equal(t, byte(';'), j.LastByte())
	j.EnsureNewlineAtEnd()
	j.EnsureNewlineAtEnd()
	assert.Equal(t, "let a = 1;\nlet b = 2;\n", string(j.Done()))
	assert.Equal(t, uint32(len("let a = 1;\nlet b = 2;\n")), j.Length())

	single := Joiner{}
	data := []byte("only")
	single.AddBytes(data)
	assert.Equal(t, &data[0], &single.Done()[0])
}

func TestBitSet(t *testing.T) {
	bs := NewBitSet(10)
	assert.True(t, bs.IsAllZeros())
	bs.SetBit(9)
	bs.SetBit(0)
	assert.True(t, bs.HasBit(0))
	assert.True(t, bs.HasBit(9))
	assert.False(t, bs.HasBit(5))
	assert.False(t, bs.IsAllZeros())

	other := NewBitSet(10)
	other.SetBit(0)
	assert.NotEqual(t, bs.String(), other.String())
	other.SetBit(9)
	assert.Equal(t, bs.String(), other.String())
}

func TestHashStringsToHex(t *testing.T) {
	a := HashStringsToHex([]string{"a.js", "b.js"})
	assert.Len(t, a, 8)
	assert.Equal(t, a, HashStringsToHex([]string{"a.js", "b.js"}))
	assert.NotEqual(t, a, HashStringsToHex([]string{"b.js", "a.js"}))
	assert.NotEqual(t, a, HashStringsToHex([]string{"a.jsb.js"}))
}

func TestRelativeImportPath(t *testing.T) {
	assert.Equal(t, "./chunk.js", RelativeImportPath("", "chunk.js"))
	assert.Equal(t, "./chunk.js", RelativeImportPath(".", "chunk.js"))
	assert.Equal(t, "../chunk.js", RelativeImportPath("pages", "chunk.js"))
	assert.Equal(t, "./shared/chunk.js", RelativeImportPath("", "shared/chunk.js"))
	assert.Equal(t, "../shared/chunk.js", RelativeImportPath("a/b", "a/shared/chunk.js"))
}

func TestPlatformIndependentPathDirBaseExt(t *testing.T) {
	for _, test := range []struct{ path, dir, base, ext string }{
		{"/a/b.js", "/a", "b", ".js"},
		{"/b.js", "/", "b", ".js"},
		{"C:\\src\\b.min.js", "C:\\src", "b.min", ".js"},
		{"b", "", "b", ""},
		{"dir/", "", "dir", ""},
	} {
		dir, base, ext := PlatformIndependentPathDirBaseExt(test.path)
		assert.Equal(t, []string{test.dir, test.base, test.ext}, []string{dir, base, ext}, test.path)
	}
}

func TestTimer(t *testing.T) {
	var nilTimer *Timer
	nilTimer.Begin("ignored")
	nilTimer.End("ignored")

	timer := &Timer{}
	timer.Begin("Build")
	timer.Begin("Scan")
	timer.End("Scan")
	timer.Begin("Link")
	timer.End("Link")
	timer.End("Build")

	log := logger.NewDeferLog()
	timer.Log(log)
	msgs := log.Done()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Timing information", msgs[0].Data.Text)
	require.Len(t, msgs[0].Notes, 3)
	assert.Regexp(t, `^Build: \d+ms$`, msgs[0].Notes[0].Text)
	assert.Regexp(t, `^  Scan: \d+ms$`, msgs[0].Notes[1].Text)
	assert.Regexp(t, `^  Link: \d+ms$`, msgs[0].Notes[2].Text)

	assert.Panics(t, func() {
		timer.Begin("Outer")
		timer.End("Inner")
	})
}

func TestPrettyPrintedStack(t *testing.T) {
	stack := PrettyPrintedStack()
	assert.Contains(t, stack, "helpers.TestPrettyPrintedStack (helpers/helpers_test.go:")
}
