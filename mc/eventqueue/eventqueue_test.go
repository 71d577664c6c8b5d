package eventqueue

import (
	"testing"

	"github.com/ldowney/slaprint/mc/cmdmap"
)

func TestPushPopFIFO(t *testing.T) {
	q := New(4)
	q.Push(Entry{Event: cmdmap.MoveZAxisRequested})
	q.Push(Entry{Event: cmdmap.HomeRAxisRequested})

	e, ok := q.Pop()
	if !ok || e.Event != cmdmap.MoveZAxisRequested {
		t.Fatalf("expected MoveZAxisRequested first, got %v ok=%v", e.Event, ok)
	}
	e, ok = q.Pop()
	if !ok || e.Event != cmdmap.HomeRAxisRequested {
		t.Fatalf("expected HomeRAxisRequested second, got %v ok=%v", e.Event, ok)
	}
	if !q.Empty() {
		t.Fatal("expected queue empty")
	}
}

func TestFull(t *testing.T) {
	q := New(2)
	if !q.Push(Entry{}) || !q.Push(Entry{}) {
		t.Fatal("expected first two pushes to succeed")
	}
	if q.Push(Entry{}) {
		t.Fatal("expected push to fail once full")
	}
	if !q.Full() {
		t.Fatal("expected Full() true")
	}
}

func TestClear(t *testing.T) {
	q := New(4)
	q.Push(Entry{Event: cmdmap.PauseRequested})
	q.Clear()
	if !q.Empty() {
		t.Fatal("expected empty after Clear")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected Pop to fail after Clear")
	}
}

func TestWrapAround(t *testing.T) {
	q := New(2)
	q.Push(Entry{Event: cmdmap.MoveZAxisRequested})
	q.Pop()
	q.Push(Entry{Event: cmdmap.MoveRAxisRequested})
	q.Push(Entry{Event: cmdmap.HomeZAxisRequested})
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	e, _ := q.Pop()
	if e.Event != cmdmap.MoveRAxisRequested {
		t.Fatalf("expected MoveRAxisRequested, got %v", e.Event)
	}
}
