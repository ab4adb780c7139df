package archcore

import "testing"

func TestEntityPoolAllocateIsAlive(t *testing.T) {
	p := NewEntityPool(4, newSpinLock())

	e := p.AllocateEntity()
	if !p.IsAlive(e) {
		t.Fatalf("IsAlive(%v) = false immediately after allocate", e)
	}

	p.DeallocateEntity(e)
	if p.IsAlive(e) {
		t.Errorf("IsAlive(%v) = true after deallocate", e)
	}
}

func TestEntityPoolDeallocateStaleIsNoOp(t *testing.T) {
	p := NewEntityPool(4, newSpinLock())

	e := p.AllocateEntity()
	p.DeallocateEntity(e)
	reused := p.AllocateEntity()
	if reused.Handle() != e.Handle() {
		t.Fatalf("expected handle reuse, got %d want %d", reused.Handle(), e.Handle())
	}

	// Deallocating the stale original entity must not affect the new
	// occupant of the same handle (§8 invariant 6).
	p.DeallocateEntity(e)
	if !p.IsAlive(reused) {
		t.Errorf("IsAlive(reused) = false after deallocating a stale handle-sharing entity")
	}
}

// TestEntityPoolVersioning is scenario (c) from §8: allocate ten entities,
// deallocate entity #4, allocate one more. The new entity's handle equals
// 4 and its version is exactly one greater than the freed entity's.
func TestEntityPoolVersioning(t *testing.T) {
	p := NewEntityPool(128, newSpinLock())

	entities := make([]Entity, 10)
	for i := range entities {
		entities[i] = p.AllocateEntity()
	}

	freed := entities[4]
	p.DeallocateEntity(freed)

	reallocated := p.AllocateEntity()
	if reallocated.Handle() != freed.Handle() {
		t.Fatalf("reallocated handle = %d, want %d", reallocated.Handle(), freed.Handle())
	}
	if reallocated.Version() != freed.Version()+1 {
		t.Errorf("reallocated version = %d, want %d", reallocated.Version(), freed.Version()+1)
	}
}

func TestEntityPoolRestoreEntity(t *testing.T) {
	p := NewEntityPool(4, newSpinLock())

	restored := p.RestoreEntity(9)
	if !p.IsAlive(restored) {
		t.Fatalf("IsAlive(restored) = false after RestoreEntity on a vacant handle")
	}
	if restored.Handle() != 9 {
		t.Errorf("restored handle = %d, want 9", restored.Handle())
	}

	// Restoring an already-live handle must not bump its version.
	restoredAgain := p.RestoreEntity(9)
	if restoredAgain.Version() != restored.Version() {
		t.Errorf("RestoreEntity on a live handle changed version: got %d, want %d", restoredAgain.Version(), restored.Version())
	}
}

func TestInvalidEntity(t *testing.T) {
	inv := InvalidEntity()
	if !inv.IsInvalid() {
		t.Errorf("InvalidEntity().IsInvalid() = false")
	}
	if inv.Handle() != InvalidHandle {
		t.Errorf("InvalidEntity().Handle() = %d, want %d", inv.Handle(), InvalidHandle)
	}
}
