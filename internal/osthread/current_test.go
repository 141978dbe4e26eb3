package osthread

import (
	"runtime"
	"testing"
)

func TestCurrent_StableWhileLocked(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	a := Current()
	runtime.Gosched()
	b := Current()
	if a == 0 {
		t.Fatal("Current returned 0")
	}
	if a != b {
		t.Fatalf("thread id changed while locked: %d != %d", a, b)
	}
}

func TestCurrent_DistinctLockedThreads(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	mine := Current()

	ch := make(chan ID)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		ch <- Current()
	}()
	if other := <-ch; other == mine {
		t.Fatalf("two locked goroutines reported the same id %d", mine)
	}
}
