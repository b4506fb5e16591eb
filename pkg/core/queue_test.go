package core_test

import (
	core "catalogmirror/pkg/core"
	"testing"
)

func TestWorkQueueFIFOAndLatestValueWins(t *testing.T) {
	q := core.NewWorkQueue[string, int]()
	if q.Len() != 0 {
		t.Fatalf("expected len 0, got %d", q.Len())
	}
	q.Add("a", 1)
	q.Add("b", 2)
	q.Add("a", 3) // duplicate keeps position, replaces value
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
	if k, v, ok := q.Get(); !ok || k != "a" || v != 3 {
		t.Fatalf("expected first a=3, got %v=%v %v", k, v, ok)
	}
	if k, v, ok := q.Get(); !ok || k != "b" || v != 2 {
		t.Fatalf("expected second b=2, got %v=%v %v", k, v, ok)
	}
	if _, _, ok := q.Get(); ok {
		t.Fatalf("expected empty queue")
	}
	q.Add("a", 4)
	if k, v, ok := q.Get(); !ok || k != "a" || v != 4 {
		t.Fatalf("expected re-added a=4, got %v=%v %v", k, v, ok)
	}
}
