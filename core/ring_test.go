package core

import "testing"

func TestRingBasic(t *testing.T) {
	r := NewRing[uint8](4)

	if !r.Empty() {
		t.Fatal("Expected new ring to be empty")
	}
	if r.Cap() != 4 {
		t.Errorf("Expected capacity 4, got %d", r.Cap())
	}

	for i := uint8(0); i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed", i)
		}
	}
	if r.Push(4) {
		t.Error("Expected push into a full ring to fail")
	}
	if !r.Full() {
		t.Error("Expected ring to report full")
	}

	for i := uint8(0); i < 4; i++ {
		v, ok := r.Pop()
		if !ok {
			t.Fatalf("Pop %d failed", i)
		}
		if v != i {
			t.Errorf("Expected %d, got %d", i, v)
		}
	}
	if !r.Empty() {
		t.Error("Expected ring to be empty after draining")
	}
	if _, ok := r.Pop(); ok {
		t.Error("Expected pop from empty ring to fail")
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing[int](4)

	// Keep the ring partially filled so the cursors wrap many times.
	next, expect := 0, 0
	for loop := 0; loop < 1024; loop++ {
		for r.Push(next) {
			next++
		}
		if r.Len() != 4 {
			t.Fatalf("loop %d: expected 4 resident items, got %d", loop, r.Len())
		}
		for i := 0; i < 3; i++ {
			v, ok := r.Pop()
			if !ok {
				t.Fatalf("loop %d: unexpected empty ring", loop)
			}
			if v != expect {
				t.Fatalf("loop %d: expected %d, got %d", loop, expect, v)
			}
			expect++
		}
	}
}

func TestRingMinimalSize(t *testing.T) {
	r := NewRing[uint16](1)

	for i := uint16(0); i < 300; i++ {
		if !r.Push(i) {
			t.Fatalf("Push(%d) failed on empty ring", i)
		}
		if r.Push(i + 1) {
			t.Fatal("Expected second push to fail")
		}
		front, ok := r.Front()
		if !ok || *front != i {
			t.Fatalf("Expected front %d", i)
		}
		v, ok := r.Pop()
		if !ok || v != i {
			t.Fatalf("Expected pop %d, got %d (ok=%v)", i, v, ok)
		}
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)
	r.Push(2)
	r.Reset()

	if !r.Empty() {
		t.Error("Expected ring to be empty after Reset")
	}
	r.Push(7)
	if v, _ := r.Pop(); v != 7 {
		t.Errorf("Expected 7 after reset, got %d", v)
	}
}
