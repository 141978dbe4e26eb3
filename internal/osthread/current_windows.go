//go:build windows

package osthread

import "golang.org/x/sys/windows"

// Current returns the Win32 thread id of the calling thread.
func Current() ID {
	return ID(windows.GetCurrentThreadId())
}
