package sourcemap

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/esmlink/esmlink/internal/helpers"
	"github.com/esmlink/esmlink/internal/logger"
	"github.com/google/uuid"
)

type Mapping struct {
	GeneratedLine   int32 // 0-based
	GeneratedColumn int32 // 0-based count of UTF-16 code units

	SourceIndex    int32 // 0-based
	OriginalLine   int32 // 0-based
	OriginalColumn int32 // 0-based count of UTF-16 code units
}

// A decoded source map. Only the parts the bundler itself produces are
// supported: there are no names and every mapping has an original position.
type SourceMap struct {
	Sources  []string
	Mappings []Mapping
}

func (sm *SourceMap) Find(line int32, column int32) *Mapping {
	mappings := sm.Mappings

	// Binary search
	count := len(mappings)
	index := 0
	for count > 0 {
		step := count / 2
		i := index + step
		mapping := mappings[i]
		if mapping.GeneratedLine < line || (mapping.GeneratedLine == line && mapping.GeneratedColumn <= column) {
			index = i + 1
			count -= step + 1
		} else {
			count = step
		}
	}

	// Handle search failure
	if index > 0 {
		mapping := &mappings[index-1]

		// Match the behavior of the popular "source-map" library from Mozilla
		if mapping.GeneratedLine == line {
			return mapping
		}
	}
	return nil
}

var base64 = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/")

// A single base 64 digit can contain 6 bits of data. For the base 64 variable
// length quantities we use in the source map spec, the first bit is the sign,
// the next four bits are the actual value, and the 6th bit is the continuation
// bit. The continuation bit tells us whether there are more digits in this
// value following this digit.
//
//	Continuation
//	|    Sign
//	|    |
//	V    V
//	101011
func encodeVLQ(encoded []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = ((-value) << 1) | 1
	} else {
		vlq = value << 1
	}

	// Handle the common case
	if (vlq >> 5) == 0 {
		digit := vlq & 31
		encoded = append(encoded, base64[digit])
		return encoded
	}

	for {
		digit := vlq & 31
		vlq >>= 5

		// If there are still more digits in this value, we must make sure the
		// continuation bit is marked
		if vlq != 0 {
			digit |= 32
		}

		encoded = append(encoded, base64[digit])

		if vlq == 0 {
			break
		}
	}

	return encoded
}

func DecodeVLQ(encoded []byte, start int) (int, int) {
	shift := 0
	vlq := 0

	for start < len(encoded) {
		index := bytes.IndexByte(base64, encoded[start])
		if index < 0 {
			break
		}

		// Decode a single byte
		vlq |= (index & 31) << shift
		start++
		shift += 5

		// Stop if there's no continuation bit
		if (index & 32) == 0 {
			break
		}
	}

	// Recover the value
	value := vlq >> 1
	if (vlq & 1) != 0 {
		value = -value
	}
	return value, start
}

var errInvalidMappings = errors.New("invalid source map mappings")

// Decodes a "mappings" string into absolute positions
func DecodeMappings(sources []string, mappings []byte) (*SourceMap, error) {
	var result []Mapping
	var generatedLine, generatedColumn, sourceIndex, originalLine, originalColumn int
	current := 0

	for current < len(mappings) {
		switch mappings[current] {
		case ';':
			generatedLine++
			generatedColumn = 0
			current++
			continue

		case ',':
			current++
			continue
		}

		delta, next := DecodeVLQ(mappings, current)
		if next == current {
			return nil, errInvalidMappings
		}
		generatedColumn += delta
		current = next

		// Mappings without an original position carry no information here
		if current == len(mappings) || mappings[current] == ',' || mappings[current] == ';' {
			continue
		}

		delta, current = DecodeVLQ(mappings, current)
		sourceIndex += delta
		delta, current = DecodeVLQ(mappings, current)
		originalLine += delta
		delta, current = DecodeVLQ(mappings, current)
		originalColumn += delta

		if sourceIndex < 0 || sourceIndex >= len(sources) || originalLine < 0 || originalColumn < 0 || generatedColumn < 0 {
			return nil, errInvalidMappings
		}

		result = append(result, Mapping{
			GeneratedLine:   int32(generatedLine),
			GeneratedColumn: int32(generatedColumn),
			SourceIndex:     int32(sourceIndex),
			OriginalLine:    int32(originalLine),
			OriginalColumn:  int32(originalColumn),
		})
	}

	return &SourceMap{Sources: sources, Mappings: result}, nil
}

type LineColumnOffset struct {
	Lines   int
	Columns int
}

func (a LineColumnOffset) ComesBefore(b LineColumnOffset) bool {
	return a.Lines < b.Lines || (a.Lines == b.Lines && a.Columns < b.Columns)
}

func (a *LineColumnOffset) Add(b LineColumnOffset) {
	if b.Lines == 0 {
		a.Columns += b.Columns
	} else {
		a.Lines += b.Lines
		a.Columns = b.Columns
	}
}

func (offset *LineColumnOffset) AdvanceBytes(bytes []byte) {
	columns := offset.Columns
	for len(bytes) > 0 {
		c, width := utf8.DecodeRune(bytes)
		bytes = bytes[width:]
		switch c {
		case '\r', '\n', '\u2028', '\u2029':
			// Handle Windows-specific "\r\n" newlines
			if c == '\r' && len(bytes) > 0 && bytes[0] == '\n' {
				columns++
				continue
			}

			offset.Lines++
			columns = 0

		default:
			// Mozilla's "source-map" library counts columns using UTF-16 code units
			if c <= 0xFFFF {
				columns++
			} else {
				columns += 2
			}
		}
	}
	offset.Columns = columns
}

func (offset *LineColumnOffset) AdvanceString(text string) {
	offset.AdvanceBytes([]byte(text))
}

// Coordinates in source maps are stored using relative offsets for size
// reasons. When joining together chunks of a source map that were emitted
// in parallel for different modules, we need to fix up the first segment of
// each chunk to be relative to the end of the previous chunk.
type SourceMapState struct {
	// This isn't stored in the source map. It's only used by the linker to join
	// source map chunks together correctly.
	GeneratedLine int

	// These are stored in the source map in VLQ format.
	GeneratedColumn int
	SourceIndex     int
	OriginalLine    int
	OriginalColumn  int
}

// Source map chunks are computed in parallel. Each chunk is relative to the
// zero state instead of being relative to the end state of the previous
// chunk, since it's impossible to know the end state of the previous chunk in
// a parallel computation.
//
// After all chunks are computed, they are joined together in a second pass.
// This rewrites the first mapping in each chunk to be relative to the end
// state of the previous chunk.
func AppendSourceMapChunk(j *helpers.Joiner, prevEndState SourceMapState, startState SourceMapState, buffer []byte) {
	// Handle line breaks in between this mapping and the previous one
	if startState.GeneratedLine != 0 {
		j.AddBytes(bytes.Repeat([]byte{';'}, startState.GeneratedLine))
		prevEndState.GeneratedColumn = 0
	}

	// Skip past any leading semicolons, which indicate line breaks
	semicolons := 0
	for semicolons < len(buffer) && buffer[semicolons] == ';' {
		semicolons++
	}
	if semicolons > 0 {
		j.AddBytes(buffer[:semicolons])
		prevEndState.GeneratedColumn = 0
		startState.GeneratedColumn = 0
	}
	if semicolons == len(buffer) {
		return
	}

	// Strip off the first mapping from the buffer and rewrite it to be relative
	// to the end state of the previous chunk
	generatedColumn, i := DecodeVLQ(buffer, semicolons)
	sourceIndex, i := DecodeVLQ(buffer, i)
	originalLine, i := DecodeVLQ(buffer, i)
	originalColumn, i := DecodeVLQ(buffer, i)

	startState.GeneratedColumn += generatedColumn
	startState.SourceIndex += sourceIndex
	startState.OriginalLine += originalLine
	startState.OriginalColumn += originalColumn
	j.AddBytes(appendMappingToBuffer(nil, j.LastByte(), prevEndState, startState))

	// Everything after the first mapping is already relative to it
	j.AddBytes(buffer[i:])
}

func appendMappingToBuffer(buffer []byte, lastByte byte, prevState SourceMapState, currentState SourceMapState) []byte {
	// Put commas in between mappings
	if lastByte != 0 && lastByte != ';' && lastByte != '"' {
		buffer = append(buffer, ',')
	}

	// Record the mapping (note that the generated line is recorded using ';' elsewhere)
	buffer = encodeVLQ(buffer, currentState.GeneratedColumn-prevState.GeneratedColumn)
	buffer = encodeVLQ(buffer, currentState.SourceIndex-prevState.SourceIndex)
	buffer = encodeVLQ(buffer, currentState.OriginalLine-prevState.OriginalLine)
	buffer = encodeVLQ(buffer, currentState.OriginalColumn-prevState.OriginalColumn)
	return buffer
}

type LineOffsetTable struct {
	// Columns are counted in UTF-16 code units to match the "source-map"
	// library from Mozilla. Most lines are ASCII, for which bytes and columns
	// are the same, so a per-byte table is only built for lines that need it.
	columnsForNonASCII        []int32
	byteOffsetToFirstNonASCII int32

	byteOffsetToStartOfLine int32
}

func GenerateLineOffsetTables(contents string, approximateLineCount int32) []LineOffsetTable {
	var columnsForNonASCII []int32
	byteOffsetToFirstNonASCII := int32(0)
	lineByteOffset := 0
	columnByteOffset := 0
	column := int32(0)

	// Preallocate the top-level table using the approximate line count from the lexer
	lineOffsetTables := make([]LineOffsetTable, 0, approximateLineCount)

	for i, c := range contents {
		// Mark the start of the next line
		if column == 0 {
			lineByteOffset = i
		}

		// Start the mapping if this character is non-ASCII
		if c > 0x7F && columnsForNonASCII == nil {
			columnByteOffset = i - lineByteOffset
			byteOffsetToFirstNonASCII = int32(columnByteOffset)
			columnsForNonASCII = []int32{}
		}

		// Update the per-byte column offsets
		if columnsForNonASCII != nil {
			for lineBytesSoFar := i - lineByteOffset; columnByteOffset <= lineBytesSoFar; columnByteOffset++ {
				columnsForNonASCII = append(columnsForNonASCII, column)
			}
		}

		switch c {
		case '\r', '\n', '\u2028', '\u2029':
			// Handle Windows-specific "\r\n" newlines
			if c == '\r' && i+1 < len(contents) && contents[i+1] == '\n' {
				column++
				continue
			}

			lineOffsetTables = append(lineOffsetTables, LineOffsetTable{
				byteOffsetToStartOfLine:   int32(lineByteOffset),
				byteOffsetToFirstNonASCII: byteOffsetToFirstNonASCII,
				columnsForNonASCII:        columnsForNonASCII,
			})
			columnByteOffset = 0
			byteOffsetToFirstNonASCII = 0
			columnsForNonASCII = nil
			column = 0

		default:
			if c <= 0xFFFF {
				column++
			} else {
				column += 2
			}
		}
	}

	// Mark the start of the next line
	if column == 0 {
		lineByteOffset = len(contents)
	}

	// Do one last update for the column at the end of the file
	if columnsForNonASCII != nil {
		for lineBytesSoFar := len(contents) - lineByteOffset; columnByteOffset <= lineBytesSoFar; columnByteOffset++ {
			columnsForNonASCII = append(columnsForNonASCII, column)
		}
	}

	lineOffsetTables = append(lineOffsetTables, LineOffsetTable{
		byteOffsetToStartOfLine:   int32(lineByteOffset),
		byteOffsetToFirstNonASCII: byteOffsetToFirstNonASCII,
		columnsForNonASCII:        columnsForNonASCII,
	})
	return lineOffsetTables
}

// The mappings of one printed module, relative to the start of its output
type Chunk struct {
	Buffer []byte

	// This end state will be used to rewrite the start of the following source
	// map chunk so that the delta-encoded VLQ numbers are preserved.
	EndState SourceMapState

	// There probably isn't a source mapping at the end of the file (nor should
	// there be) but if we're appending another source map chunk after this one,
	// we'll need to know how many characters were in the last line we generated.
	FinalGeneratedColumn int

	ShouldIgnore bool
}

type ChunkBuilder struct {
	sourceMap           []byte
	lineOffsetTables    []LineOffsetTable
	prevState           SourceMapState
	lastGeneratedUpdate int
	generatedColumn     int
	prevOriginalLoc     logger.Loc
	hasPrevState        bool

	// Some consumers return nothing for a position unless its line starts with
	// a mapping at column zero. The previous mapping is repeated at the start
	// of lines that would otherwise begin without one.
	lineStartsWithMapping bool
}

func MakeChunkBuilder(lineOffsetTables []LineOffsetTable) ChunkBuilder {
	return ChunkBuilder{
		prevOriginalLoc:  logger.Loc{Start: -1},
		lineOffsetTables: lineOffsetTables,
	}
}

// Maps the current end of "output" to the original location
func (b *ChunkBuilder) AddSourceMapping(originalLoc logger.Loc, output []byte) {
	// Avoid generating duplicate mappings
	if originalLoc == b.prevOriginalLoc {
		return
	}
	b.prevOriginalLoc = originalLoc

	// Binary search to find the line
	lineOffsetTables := b.lineOffsetTables
	count := len(lineOffsetTables)
	originalLine := 0
	for count > 0 {
		step := count / 2
		i := originalLine + step
		if lineOffsetTables[i].byteOffsetToStartOfLine <= originalLoc.Start {
			originalLine = i + 1
			count = count - step - 1
		} else {
			count = step
		}
	}
	originalLine--

	// Use the line to compute the column
	line := &lineOffsetTables[originalLine]
	originalColumn := int(originalLoc.Start - line.byteOffsetToStartOfLine)
	if line.columnsForNonASCII != nil && originalColumn >= int(line.byteOffsetToFirstNonASCII) {
		originalColumn = int(line.columnsForNonASCII[originalColumn-int(line.byteOffsetToFirstNonASCII)])
	}

	b.updateGeneratedLineAndColumn(output)

	// If this line doesn't start with a mapping and we're about to add a mapping
	// that's not at the start, insert a mapping first so the line starts with one.
	if !b.lineStartsWithMapping && b.generatedColumn > 0 && b.hasPrevState {
		b.appendMapping(SourceMapState{
			GeneratedLine:   b.prevState.GeneratedLine,
			GeneratedColumn: 0,
			SourceIndex:     b.prevState.SourceIndex,
			OriginalLine:    b.prevState.OriginalLine,
			OriginalColumn:  b.prevState.OriginalColumn,
		})
	}

	b.appendMapping(SourceMapState{
		GeneratedLine:   b.prevState.GeneratedLine,
		GeneratedColumn: b.generatedColumn,
		OriginalLine:    originalLine,
		OriginalColumn:  originalColumn,
	})

	// This line now has a mapping on it, so don't insert another one
	b.lineStartsWithMapping = true
}

func (b *ChunkBuilder) GenerateChunk(output []byte) Chunk {
	b.updateGeneratedLineAndColumn(output)
	shouldIgnore := true
	for _, c := range b.sourceMap {
		if c != ';' {
			shouldIgnore = false
			break
		}
	}
	return Chunk{
		Buffer:               b.sourceMap,
		EndState:             b.prevState,
		FinalGeneratedColumn: b.generatedColumn,
		ShouldIgnore:         shouldIgnore,
	}
}

// Scan over the printed text since the last source mapping and update the
// generated line and column numbers
func (b *ChunkBuilder) updateGeneratedLineAndColumn(output []byte) {
	for i, c := range string(output[b.lastGeneratedUpdate:]) {
		switch c {
		case '\r', '\n', '\u2028', '\u2029':
			// Handle Windows-specific "\r\n" newlines
			if c == '\r' {
				newlineCheck := b.lastGeneratedUpdate + i + 1
				if newlineCheck < len(output) && output[newlineCheck] == '\n' {
					continue
				}
			}

			// If we're about to move to the next line and the previous line didn't have
			// any mappings, add a mapping at the start of the previous line.
			if !b.lineStartsWithMapping && b.hasPrevState {
				b.appendMapping(SourceMapState{
					GeneratedLine:   b.prevState.GeneratedLine,
					GeneratedColumn: 0,
					SourceIndex:     b.prevState.SourceIndex,
					OriginalLine:    b.prevState.OriginalLine,
					OriginalColumn:  b.prevState.OriginalColumn,
				})
			}

			b.prevState.GeneratedLine++
			b.prevState.GeneratedColumn = 0
			b.generatedColumn = 0
			b.sourceMap = append(b.sourceMap, ';')

			// This new line doesn't have a mapping yet
			b.lineStartsWithMapping = false

		default:
			// Mozilla's "source-map" library counts columns using UTF-16 code units
			if c <= 0xFFFF {
				b.generatedColumn++
			} else {
				b.generatedColumn += 2
			}
		}
	}

	b.lastGeneratedUpdate = len(output)
}

func (b *ChunkBuilder) appendMapping(currentState SourceMapState) {
	var lastByte byte
	if len(b.sourceMap) != 0 {
		lastByte = b.sourceMap[len(b.sourceMap)-1]
	}

	b.sourceMap = appendMappingToBuffer(b.sourceMap, lastByte, b.prevState, currentState)
	b.prevState = currentState
	b.hasPrevState = true
}

type Source struct {
	PrettyPath string
	Contents   string
}

// Returns a deterministic identifier for a generated file. It's a name-based
// UUID over the generated code and its mappings, so identical builds produce
// identical ids.
func DebugID(code []byte, mappings []byte) string {
	data := make([]byte, 0, len(code)+len(mappings)+1)
	data = append(data, code...)
	data = append(data, 0)
	data = append(data, mappings...)
	return uuid.NewSHA1(uuid.NameSpaceURL, data).String()
}

// Serializes a version 3 source map. Keys are always written in the same
// order so the output is byte-for-byte reproducible.
func Generate(file string, sources []Source, mappings []byte, debugID string) []byte {
	j := helpers.Joiner{}
	j.AddString("{\n  \"version\": 3")

	j.AddString(",\n  \"file\": ")
	j.AddBytes(helpers.QuoteForJSON(file, false))

	j.AddString(",\n  \"sources\": [")
	for i, source := range sources {
		if i != 0 {
			j.AddString(", ")
		}
		j.AddBytes(helpers.QuoteForJSON(source.PrettyPath, false))
	}
	j.AddString("]")

	j.AddString(",\n  \"sourcesContent\": [")
	for i, source := range sources {
		if i != 0 {
			j.AddString(",")
		}
		j.AddString("\n    ")
		j.AddBytes(helpers.QuoteForJSON(source.Contents, false))
	}
	if len(sources) > 0 {
		j.AddString("\n  ")
	}
	j.AddString("]")

	j.AddString(",\n  \"mappings\": \"")
	j.AddBytes(mappings)
	j.AddString("\"")

	j.AddString(",\n  \"names\": []")

	if debugID != "" {
		j.AddString(",\n  \"debugId\": ")
		j.AddBytes(helpers.QuoteForJSON(debugID, false))
	}

	j.AddString("\n}\n")
	return j.Done()
}

// Returns the comment that links generated code to its source map
func URLComment(mapFileName string) string {
	sb := strings.Builder{}
	sb.WriteString("//# sourceMappingURL=")
	sb.WriteString(mapFileName)
	sb.WriteString("\n")
	return sb.String()
}
