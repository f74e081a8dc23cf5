package helpers

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Used in the text of internal errors after recovering from a panic. Each
// line is "function (dir/file.go:line)" with package paths shortened.
func PrettyPrintedStack() string {
	pcs := make([]uintptr, 64)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	sb := strings.Builder{}

	for {
		frame, more := frames.Next()
		name := frame.Function
		if slash := strings.LastIndexByte(name, '/'); slash != -1 {
			name = name[slash+1:]
		}
		file := filepath.Join(filepath.Base(filepath.Dir(frame.File)), filepath.Base(frame.File))
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s (%s:%d)", name, file, frame.Line)
		if !more {
			break
		}
	}

	return sb.String()
}
