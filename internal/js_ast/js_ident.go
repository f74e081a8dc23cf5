package js_ast

import (
	"github.com/esmlink/esmlink/internal/helpers"
)

// For readability, the names of certain automatically-generated symbols are
// derived from the file name. For example, instead of the default export of
// "util.js" being called "default" it's called "util_default".
//
// These generated names have nothing to do with avoiding collisions. They
// still go through the renamer like every other symbol.
func GenerateNonUniqueNameFromPath(path string) string {
	// Get the file name without the extension
	dir, base, _ := helpers.PlatformIndependentPathDirBaseExt(path)

	// If the name is "index", use the directory name instead. A directory is
	// usually imported by naming it, which resolves to its "index.js".
	if base == "index" {
		_, dirBase, _ := helpers.PlatformIndependentPathDirBaseExt(dir)
		if dirBase != "" {
			base = dirBase
		}
	}

	// Convert it to an ASCII identifier
	bytes := []byte{}
	needsGap := false
	for _, c := range base {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (len(bytes) > 0 && c >= '0' && c <= '9') {
			if needsGap {
				bytes = append(bytes, '_')
				needsGap = false
			}
			bytes = append(bytes, byte(c))
		} else if len(bytes) > 0 {
			needsGap = true
		}
	}

	// Make sure the name isn't empty
	if len(bytes) == 0 {
		return "_"
	}
	return string(bytes)
}
