package helpers

import "strings"

// Module ids are "/"-separated regardless of the host platform since they may
// also be afs URLs. Both kinds of slash are accepted as separators.
func PlatformIndependentPathDirBaseExt(path string) (dir string, base string, ext string) {
	absRootSlash := -1

	// Make sure we don't strip off the slash for the root of the file system
	if len(path) > 0 && (path[0] == '/' || path[0] == '\\') {
		absRootSlash = 0 // Unix
	} else if len(path) > 2 && path[1] == ':' && (path[2] == '/' || path[2] == '\\') {
		if c := path[0]; (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			absRootSlash = 2 // Windows
		}
	}

	for {
		i := strings.LastIndexAny(path, "/\\")

		// Stop if there are no more slashes
		if i < 0 {
			base = path
			break
		}

		// Stop if we found a non-trailing slash
		if i == absRootSlash {
			dir, base = path[:i+1], path[i+1:]
			break
		}
		if i+1 != len(path) {
			dir, base = path[:i], path[i+1:]
			break
		}

		// Ignore trailing slashes
		path = path[:i]
	}

	// Strip off the extension
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		ext = base[dot:]
		base = base[:dot]
	}

	return
}

// Returns "target" relative to the directory "fromDir". Both must be
// "/"-separated. The result always starts with "./" or "../" so that it can be
// used as an import specifier.
func RelativeImportPath(fromDir string, target string) string {
	from := splitPath(fromDir)
	to := splitPath(target)

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	var sb strings.Builder
	if common == len(from) {
		sb.WriteString("./")
	} else {
		for i := common; i < len(from); i++ {
			sb.WriteString("../")
		}
	}
	sb.WriteString(strings.Join(to[common:], "/"))
	return sb.String()
}

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}
