package linker

import (
	"fmt"
	"strings"

	"github.com/esmlink/esmlink/internal/ast"
	"github.com/esmlink/esmlink/internal/helpers"
)

// Describes one output file for the "outputs" map of the metafile: where its
// code came from, what it imports and exports, and which top-level bindings
// of each of its modules were retained by tree shaking.
func (c *linkerContext) generateMetadataForChunk(chunk *chunkInfo, compileResults []compileResult, bytes int) string {
	sb := strings.Builder{}
	quote := func(text string) string {
		return string(helpers.QuoteForJSON(text, false))
	}

	sb.WriteString(fmt.Sprintf("{\n      \"bytes\": %d", bytes))
	sb.WriteString(fmt.Sprintf(",\n      \"kind\": %s", quote(chunk.kind.String())))
	if chunk.isEntryPoint {
		sb.WriteString(fmt.Sprintf(",\n      \"entryPoint\": %s", quote(c.graph.Modules[chunk.sourceIndex].Module.Source.PrettyPath)))
	}

	// Imports of other chunks, then the chunks loaded with "import()"
	type chunkImport struct {
		path string
		kind string
	}
	var imports []chunkImport
	chunkDir, _, _ := helpers.PlatformIndependentPathDirBaseExt(chunk.relPath)
	for _, crossChunkImport := range chunk.crossChunkImports {
		imports = append(imports, chunkImport{
			path: helpers.RelativeImportPath(chunkDir, c.chunks[crossChunkImport.chunkIndex].relPath),
			kind: "import-statement",
		})
	}
	if c.options.CodeSplitting {
		seen := make(map[uint32]bool)
		for _, sourceIndex := range chunk.filesInChunkInOrder {
			for _, record := range c.graph.Modules[sourceIndex].Module.AST.ImportRecords {
				if record.Kind != ast.ImportDynamic || !record.SourceIndex.IsValid() {
					continue
				}
				otherChunkIndex := c.graph.Modules[record.SourceIndex.GetIndex()].EntryPointChunkIndex
				if !seen[otherChunkIndex] {
					seen[otherChunkIndex] = true
					imports = append(imports, chunkImport{
						path: helpers.RelativeImportPath(chunkDir, c.chunks[otherChunkIndex].relPath),
						kind: "dynamic-import",
					})
				}
			}
		}
	}

	sb.WriteString(",\n      \"imports\": [")
	for i, imported := range imports {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(fmt.Sprintf("\n        {\n          \"path\": %s,\n          \"kind\": %s\n        }",
			quote(imported.path), quote(imported.kind)))
	}
	if len(imports) > 0 {
		sb.WriteString("\n      ")
	}
	sb.WriteByte(']')

	sb.WriteString(",\n      \"exports\": [")
	for i, export := range c.entryExports(chunk) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quote(export.alias))
	}
	sb.WriteByte(']')

	sb.WriteString(",\n      \"inputs\": {")
	for i, result := range compileResults {
		if i > 0 {
			sb.WriteByte(',')
		}
		module := &c.graph.Modules[result.sourceIndex]
		sb.WriteString(fmt.Sprintf("\n        %s: {\n          \"bytesInOutput\": %d",
			quote(module.Module.Source.PrettyPath), len(result.JS)))
		sb.WriteString(fmt.Sprintf(",\n          \"distanceFromEntryPoint\": %d", module.DistanceFromEntryPoint))

		sb.WriteString(",\n          \"bindings\": [")
		bindings := c.graph.Bindings(result.sourceIndex)
		for j, binding := range bindings {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(fmt.Sprintf("\n            { \"name\": %s, \"kind\": %s, \"retained\": %v }",
				quote(binding.Name), quote(binding.Kind.String()), binding.IsRetained))
		}
		if len(bindings) > 0 {
			sb.WriteString("\n          ")
		}
		sb.WriteString("]\n        }")
	}
	if len(compileResults) > 0 {
		sb.WriteString("\n      ")
	}
	sb.WriteString("}\n    }")

	return sb.String()
}
