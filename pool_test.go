package archcore

import "testing"

func TestPoolOfSlotsConstructGet(t *testing.T) {
	tests := []struct {
		name  string
		value int
	}{
		{"zero", 0},
		{"positive", 42},
		{"negative", -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoolOfSlots[int](4, newSpinLock())
			idx := p.Construct(tt.value)

			got, err := p.Get(idx)
			if err != nil {
				t.Fatalf("Get(%d) error = %v", idx, err)
			}
			if *got != tt.value {
				t.Errorf("Get(%d) = %d, want %d", idx, *got, tt.value)
			}
		})
	}
}

func TestPoolOfSlotsDestructThenOutOfRange(t *testing.T) {
	p := NewPoolOfSlots[string](4, newSpinLock())
	idx := p.Construct("hello")

	if err := p.Destruct(idx); err != nil {
		t.Fatalf("Destruct() error = %v", err)
	}
	if _, err := p.Get(idx); err == nil {
		t.Errorf("Get() after Destruct() = nil error, want OutOfRangeError")
	}
	if p.IsAllocated(idx) {
		t.Errorf("IsAllocated() after Destruct() = true, want false")
	}
}

func TestPoolOfSlotsDestructAlreadyVacantIsNoOp(t *testing.T) {
	p := NewPoolOfSlots[int](4, newSpinLock())
	idx := p.Construct(1)
	if err := p.Destruct(idx); err != nil {
		t.Fatalf("first Destruct() error = %v", err)
	}
	if err := p.Destruct(idx); err == nil {
		t.Errorf("second Destruct() on vacant slot = nil error, want OutOfRangeError")
	}
}

// TestPoolOfSlotsAddressStability is scenario (d) from §8: allocate 200
// entries across two groups (GROUP_CAP=128), free every other even index,
// allocate 50 more, and confirm every previously captured live pointer
// still dereferences to its original value.
func TestPoolOfSlotsAddressStability(t *testing.T) {
	const groupCap = 128
	const total = 200

	p := NewPoolOfSlots[int](groupCap, newSpinLock())
	indices := make([]uint32, total)
	original := make(map[uint32]int, total)
	for i := 0; i < total; i++ {
		indices[i] = p.Construct(i)
		original[indices[i]] = i
	}

	ptrs := make(map[uint32]*int, total)
	for _, idx := range indices {
		ptr, err := p.Get(idx)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", idx, err)
		}
		ptrs[idx] = ptr
	}

	freed := map[uint32]bool{}
	for i := 0; i < total; i += 4 {
		idx := indices[i]
		if err := p.Destruct(idx); err != nil {
			t.Fatalf("Destruct(%d) error = %v", idx, err)
		}
		freed[idx] = true
	}

	for i := 0; i < 50; i++ {
		p.Construct(1000 + i)
	}

	for idx, ptr := range ptrs {
		if freed[idx] {
			continue
		}
		got, err := p.Get(idx)
		if err != nil {
			t.Fatalf("Get(%d) after churn error = %v", idx, err)
		}
		if got != ptr {
			t.Errorf("index %d: pointer changed after churn", idx)
		}
		if *got != original[idx] {
			t.Errorf("index %d: value changed after churn: got %d, want %d", idx, *got, original[idx])
		}
	}
}

func TestPoolOfSlotsConstructAt(t *testing.T) {
	p := NewPoolOfSlots[int](4, newSpinLock())

	ptr, constructed := p.ConstructAt(10, false, 99)
	if !constructed {
		t.Fatalf("ConstructAt on vacant slot reported constructed=false")
	}
	if *ptr != 99 {
		t.Errorf("ConstructAt value = %d, want 99", *ptr)
	}

	ptr2, constructed2 := p.ConstructAt(10, false, 1000)
	if constructed2 {
		t.Errorf("ConstructAt(overwrite=false) on live slot reported constructed=true")
	}
	if *ptr2 != 99 {
		t.Errorf("ConstructAt(overwrite=false) changed value to %d, want unchanged 99", *ptr2)
	}

	ptr3, constructed3 := p.ConstructAt(10, true, 7)
	if !constructed3 {
		t.Errorf("ConstructAt(overwrite=true) reported constructed=false")
	}
	if *ptr3 != 7 {
		t.Errorf("ConstructAt(overwrite=true) value = %d, want 7", *ptr3)
	}
}
