package reftable

import (
	"errors"
	"sync"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnRefEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := New(0)

	h, err := table.Insert(KindLocal, "test")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	kind, ok := table.KindOf(h)
	if !ok || kind != KindLocal {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}

	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove should fail")
	}
}

func TestTable_ZeroHandle(t *testing.T) {
	table := New(0)
	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 should never resolve")
	}
	if _, ok := table.Remove(0); ok {
		t.Fatal("handle 0 should never be removable")
	}
	if _, ok := table.KindOf(0); ok {
		t.Fatal("handle 0 should have no kind")
	}
}

func TestTable_FreeListReuse(t *testing.T) {
	table := New(0)

	h1, _ := table.Insert(KindGlobal, 1)
	h2, _ := table.Insert(KindGlobal, 2)
	table.Remove(h1)

	h3, _ := table.Insert(KindGlobal, 3)
	if h3 != h1 {
		t.Fatalf("expected freed handle %d to be reused, got %d", h1, h3)
	}

	v, _ := table.Get(h2)
	if v != 2 {
		t.Fatalf("h2 value = %v", v)
	}
}

func TestTable_Capacity(t *testing.T) {
	table := New(2)

	if _, err := table.Insert(KindLocal, "a"); err != nil {
		t.Fatal(err)
	}
	h, err := table.Insert(KindLocal, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := table.Insert(KindLocal, "c"); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}

	table.Remove(h)
	if _, err := table.Insert(KindLocal, "c"); err != nil {
		t.Fatalf("insert after release should succeed: %v", err)
	}

	table.Grow(4)
	if table.Capacity() != 4 {
		t.Fatalf("Capacity = %d, want 4", table.Capacity())
	}
	table.Grow(1)
	if table.Capacity() != 4 {
		t.Fatal("Grow should never lower capacity")
	}
}

func TestTable_Observer(t *testing.T) {
	table := New(0)
	obs := &testObserver{}
	unsubscribe := table.Subscribe(obs)

	h, _ := table.Insert(KindLocal, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventInserted || obs.events[0].Handle != h {
		t.Fatalf("unexpected event %+v", obs.events[0])
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventRemoved || obs.events[1].Kind != KindLocal {
		t.Fatalf("unexpected event %+v", obs.events[1])
	}

	unsubscribe()
	table.Insert(KindLocal, "after")
	if len(obs.events) != 2 {
		t.Fatal("unsubscribed observer should not receive events")
	}
}

func TestTable_ObserverFunc(t *testing.T) {
	table := New(0)
	var inserted, removed int
	table.Subscribe(ObserverFunc(func(e Event) {
		switch e.Type {
		case EventInserted:
			inserted++
		case EventRemoved:
			removed++
		}
	}))

	h, _ := table.Insert(KindGlobal, struct{}{})
	table.Remove(h)
	if inserted != 1 || removed != 1 {
		t.Fatalf("inserted=%d removed=%d", inserted, removed)
	}
}

func TestTable_ClearAndClose(t *testing.T) {
	table := New(0)
	for i := 0; i < 5; i++ {
		table.Insert(KindLocal, i)
	}

	if n := table.Clear(); n != 5 {
		t.Fatalf("Clear dropped %d, want 5", n)
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d after Clear", table.Len())
	}

	table.Insert(KindLocal, "x")
	if err := table.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Insert(KindLocal, "y"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := New(0)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h, err := table.Insert(KindGlobal, i)
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok := table.Remove(h); !ok {
					t.Error("remove failed")
					return
				}
			}
		}()
	}
	wg.Wait()
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
}
