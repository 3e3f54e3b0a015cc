//go:build darwin

package buildutil

import "golang.org/x/sys/unix"

// totalSystemRAM returns the total physical RAM in bytes on macOS.
func totalSystemRAM() (uint64, error) {
	return unix.SysctlUint64("hw.memsize")
}
