//go:build darwin || linux

package logger

import (
	"os"

	"golang.org/x/sys/unix"
)

const SupportsColorEscapes = true

// Asking for the window size fails with ENOTTY on anything that isn't a
// terminal, so one ioctl answers both questions on every unix we build for.
func GetTerminalInfo(file *os.File) TerminalInfo {
	size, err := unix.IoctlGetWinsize(int(file.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return TerminalInfo{}
	}
	return TerminalInfo{
		IsTTY:           true,
		UseColorEscapes: !hasNoColorEnvironmentVariable(),
		Width:           int(size.Col),
		Height:          int(size.Row),
	}
}
