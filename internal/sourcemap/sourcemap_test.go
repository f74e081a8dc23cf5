package sourcemap

import (
	"encoding/json"
	"testing"

	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLQ(t *testing.T) {
	for _, value := range []int{0, 1, -1, 15, 16, -16, 31, 32, 1000, -123456, 1 << 20} {
		encoded := encodeVLQ(nil, value)
		decoded, next := DecodeVLQ(encoded, 0)
		assert.Equal(t, value, decoded)
		assert.Equal(t, len(encoded), next)
	}

	// Known encodings from the source map format
	assert.Equal(t, "A", string(encodeVLQ(nil, 0)))
	assert.Equal(t, "C", string(encodeVLQ(nil, 1)))
	assert.Equal(t, "D", string(encodeVLQ(nil, -1)))
	assert.Equal(t, "gB", string(encodeVLQ(nil, 16)))
}

func TestDecodeVLQTruncated(t *testing.T) {
	// A continuation bit at the end of the input must not read out of bounds
	_, next := DecodeVLQ([]byte("g"), 0)
	assert.Equal(t, 1, next)

	_, next = DecodeVLQ([]byte("!"), 0)
	assert.Equal(t, 0, next)
}

func TestDecodeMappings(t *testing.T) {
	sm, err := DecodeMappings([]string{"a.js", "b.js"}, []byte("AAAA,EAAE;ACCA;;GAAG"))
	require.NoError(t, err)
	require.Equal(t, []Mapping{
		{GeneratedLine: 0, GeneratedColumn: 0, SourceIndex: 0, OriginalLine: 0, OriginalColumn: 0},
		{GeneratedLine: 0, GeneratedColumn: 2, SourceIndex: 0, OriginalLine: 0, OriginalColumn: 2},
		{GeneratedLine: 1, GeneratedColumn: 0, SourceIndex: 1, OriginalLine: 1, OriginalColumn: 2},
		{GeneratedLine: 3, GeneratedColumn: 3, SourceIndex: 1, OriginalLine: 1, OriginalColumn: 5},
	}, sm.Mappings)

	require.Equal(t, int32(2), sm.Find(0, 5).OriginalColumn)
	require.Equal(t, int32(0), sm.Find(0, 1).OriginalColumn)
	require.Nil(t, sm.Find(2, 0))
	require.Nil(t, sm.Find(3, 2))

	_, err = DecodeMappings([]string{"a.js"}, []byte("AEAA"))
	require.Error(t, err)

	_, err = DecodeMappings([]string{"a.js"}, []byte("A!AA"))
	require.Error(t, err)
}

func TestLineOffsetTables(t *testing.T) {
	tables := GenerateLineOffsetTables("a\nbb\r\nccc", 3)
	require.Len(t, tables, 3)
	assert.Equal(t, int32(0), tables[0].byteOffsetToStartOfLine)
	assert.Equal(t, int32(2), tables[1].byteOffsetToStartOfLine)
	assert.Equal(t, int32(6), tables[2].byteOffsetToStartOfLine)

	// Columns past a non-ASCII character are counted in UTF-16 code units
	tables = GenerateLineOffsetTables("x = '\U0001F600' + y", 1)
	require.Len(t, tables, 1)
	builder := MakeChunkBuilder(tables)
	builder.AddSourceMapping(logger.Loc{Start: int32(len("x = '\U0001F600' + "))}, nil)
	chunk := builder.GenerateChunk(nil)
	sm, err := DecodeMappings([]string{"a.js"}, chunk.Buffer)
	require.NoError(t, err)
	require.Len(t, sm.Mappings, 1)
	assert.Equal(t, int32(11), sm.Mappings[0].OriginalColumn)
}

func buildChunk(t *testing.T, contents string, locs []int32) Chunk {
	t.Helper()
	builder := MakeChunkBuilder(GenerateLineOffsetTables(contents, 1))

	// The generated code is identical to the original code
	for _, loc := range locs {
		builder.AddSourceMapping(logger.Loc{Start: loc}, []byte(contents[:loc]))
	}
	return builder.GenerateChunk([]byte(contents))
}

func TestChunkBuilder(t *testing.T) {
	chunk := buildChunk(t, "a;\n  b;\n", []int32{0, 5})
	assert.Equal(t, "AAAA;AAAA,EACE;", string(chunk.Buffer))
	assert.Equal(t, 2, chunk.EndState.GeneratedLine)
	assert.Equal(t, 0, chunk.FinalGeneratedColumn)
	assert.False(t, chunk.ShouldIgnore)

	// Duplicate locations are only recorded once
	chunk = buildChunk(t, "a;", []int32{0, 0})
	assert.Equal(t, "AAAA", string(chunk.Buffer))
	assert.Equal(t, 2, chunk.FinalGeneratedColumn)

	chunk = buildChunk(t, "a;\n", nil)
	assert.True(t, chunk.ShouldIgnore)
}

func TestAppendSourceMapChunk(t *testing.T) {
	first := buildChunk(t, "a;\n", []int32{0})
	second := buildChunk(t, "b;\n", []int32{0})

	j := helpers.Joiner{}
	AppendSourceMapChunk(&j, SourceMapState{}, SourceMapState{SourceIndex: 0}, first.Buffer)

	// The second chunk comes from another source and starts after a blank line
	prevEndState := first.EndState
	AppendSourceMapChunk(&j, prevEndState, SourceMapState{SourceIndex: 1, GeneratedLine: 1}, second.Buffer)

	mappings := j.Done()
	assert.Equal(t, "AAAA;;ACAA;", string(mappings))

	sm, err := DecodeMappings([]string{"a.js", "b.js"}, mappings)
	require.NoError(t, err)
	require.Equal(t, []Mapping{
		{GeneratedLine: 0, GeneratedColumn: 0, SourceIndex: 0},
		{GeneratedLine: 2, GeneratedColumn: 0, SourceIndex: 1},
	}, sm.Mappings)
}

func TestAppendSourceMapChunkSameLine(t *testing.T) {
	first := buildChunk(t, "a;", []int32{0})
	second := buildChunk(t, "b;", []int32{0})

	j := helpers.Joiner{}
	AppendSourceMapChunk(&j, SourceMapState{}, SourceMapState{}, first.Buffer)
	AppendSourceMapChunk(&j, first.EndState, SourceMapState{SourceIndex: 1, GeneratedColumn: first.FinalGeneratedColumn}, second.Buffer)

	sm, err := DecodeMappings([]string{"a.js", "b.js"}, j.Done())
	require.NoError(t, err)
	require.Equal(t, []Mapping{
		{GeneratedLine: 0, GeneratedColumn: 0, SourceIndex: 0},
		{GeneratedLine: 0, GeneratedColumn: 2, SourceIndex: 1},
	}, sm.Mappings)
}

func TestLineColumnOffset(t *testing.T) {
	offset := LineColumnOffset{}
	offset.AdvanceString("ab\ncd")
	assert.Equal(t, LineColumnOffset{Lines: 1, Columns: 2}, offset)

	offset.AdvanceBytes([]byte("\U0001F600"))
	assert.Equal(t, LineColumnOffset{Lines: 1, Columns: 4}, offset)

	assert.True(t, LineColumnOffset{Lines: 0, Columns: 9}.ComesBefore(offset))
	assert.False(t, offset.ComesBefore(LineColumnOffset{Lines: 1, Columns: 4}))

	offset.Add(LineColumnOffset{Lines: 0, Columns: 1})
	assert.Equal(t, LineColumnOffset{Lines: 1, Columns: 5}, offset)
	offset.Add(LineColumnOffset{Lines: 2, Columns: 1})
	assert.Equal(t, LineColumnOffset{Lines: 3, Columns: 1}, offset)
}

func TestDebugID(t *testing.T) {
	a := DebugID([]byte("let a;\n"), []byte("AAAA"))
	b := DebugID([]byte("let a;\n"), []byte("AAAA"))
	c := DebugID([]byte("let b;\n"), []byte("AAAA"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), id.Version())
}

func TestGenerate(t *testing.T) {
	text := Generate("out.js", []Source{{PrettyPath: "a.js", Contents: "let a;\n"}}, []byte("AAAA"), "id")
	assert.Equal(t, `{
  "version": 3,
  "file": "out.js",
  "sources": ["a.js"],
  "sourcesContent": [
    "let a;\n"
  ],
  "mappings": "AAAA",
  "names": [],
  "debugId": "id"
}
`, string(text))

	var parsed struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent"`
		Mappings       string   `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(Generate("out.js", nil, nil, ""), &parsed))
	assert.Equal(t, 3, parsed.Version)
	assert.Empty(t, parsed.Sources)

	assert.Equal(t, "//# sourceMappingURL=out.js.map\n", URLComment("out.js.map"))
}
