//go:build linux

package osthread

import "golang.org/x/sys/unix"

// Current returns the kernel thread id of the calling thread.
func Current() ID {
	return ID(unix.Gettid())
}
