package archcore

import (
	"encoding/binary"
	"math"
	"testing"
)

type dsPosition struct {
	X, Y float64
}

type dsVelocity struct {
	DX, DY float64
}

func newTestDataStore() (*DataStore, *TypeRegistry, *ArchetypeRegistry) {
	types := NewTypeRegistry(newSpinLock())
	archetypes := NewArchetypeRegistry(types, newSpinLock())
	entities := NewEntityPool(GroupCapacity, newSpinLock())
	return NewDataStore(archetypes, entities, newSpinLock()), types, archetypes
}

func TestDataStoreAttachArchetypeIsIdempotent(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)

	archeHandle, err := archetypes.GetOrCreateArchetype(position)
	if err != nil {
		t.Fatalf("GetOrCreateArchetype() error = %v", err)
	}

	h1 := ds.AttachArchetype(archeHandle.Archetype())
	h2 := ds.AttachArchetype(archeHandle.Archetype())
	if h1 != h2 {
		t.Errorf("AttachArchetype() not idempotent: %v != %v", h1, h2)
	}
}

func TestDataStoreNewEntityAndLookup(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)
	archeHandle, _ := archetypes.GetOrCreateArchetype(position)
	instance := ds.AttachArchetype(archeHandle.Archetype())

	e, err := ds.NewEntity(instance)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	if !ds.Entities.IsAlive(e) {
		t.Fatalf("entity not alive after NewEntity()")
	}
	if got := ds.GetArchetypeInstance(e); got != instance {
		t.Errorf("GetArchetypeInstance() = %v, want %v", got, instance)
	}
}

func TestDataStoreGetArchetypeInstanceDeadEntity(t *testing.T) {
	ds, _, _ := newTestDataStore()
	dead := NewEntity(123, 456)
	if got := ds.GetArchetypeInstance(dead); got != InvalidInstanceHandle {
		t.Errorf("GetArchetypeInstance(dead) = %v, want InvalidInstanceHandle", got)
	}
}

func TestDataStoreDestroyEntity(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)
	archeHandle, _ := archetypes.GetOrCreateArchetype(position)
	instance := ds.AttachArchetype(archeHandle.Archetype())

	e, _ := ds.NewEntity(instance)
	ds.DestroyEntity(e)

	if ds.Entities.IsAlive(e) {
		t.Errorf("entity still alive after DestroyEntity()")
	}
	inst := ds.instances.Get(instance)
	if inst.Contains(e) {
		t.Errorf("instance still tracks a row for a destroyed entity")
	}
}

// TestDataStoreAddComponentPreservesData moves an entity from {Position}
// to {Position, Velocity} and checks the new archetype has both columns,
// the Position bytes survive the move, and the old instance drops the row.
func TestDataStoreAddComponentPreservesData(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)
	velocity := GetOrCreateTypeInfo[dsVelocity](types, ClassificationData)

	archeHandle, _ := archetypes.GetOrCreateArchetype(position)
	instance := ds.AttachArchetype(archeHandle.Archetype())
	e, err := ds.NewEntity(instance)
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}

	oldInst := ds.instances.Get(instance)
	oldLoc := oldInst.locations[e.Handle()]
	writeFloat64(columnCell(oldInst.Archetype, oldLoc.node, 0, oldLoc.row)[:8], 3.5)

	moved, err := ds.AddComponent(e, velocity)
	if err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if moved.Handle() != e.Handle() {
		t.Errorf("AddComponent() returned a different entity handle")
	}

	newHandle := ds.GetArchetypeInstance(moved)
	newInst := ds.instances.Get(newHandle)
	if len(newInst.Archetype.Components) != 2 {
		t.Fatalf("new archetype has %d components, want 2", len(newInst.Archetype.Components))
	}

	newLoc := newInst.locations[moved.Handle()]
	var positionIdx = -1
	for i, c := range newInst.Archetype.Components {
		if c.NameHash == position.NameHash {
			positionIdx = i
		}
	}
	if positionIdx < 0 {
		t.Fatalf("moved archetype lost the Position component")
	}

	gotX := readFloat64(columnCell(newInst.Archetype, newLoc.node, positionIdx, newLoc.row)[:8])
	if gotX != 3.5 {
		t.Errorf("Position.X after move = %v, want 3.5", gotX)
	}

	if oldInst.Contains(e) {
		t.Errorf("old instance still tracks the moved entity")
	}
}

func TestDataStoreRemoveComponent(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)
	velocity := GetOrCreateTypeInfo[dsVelocity](types, ClassificationData)

	archeHandle, _ := archetypes.GetOrCreateArchetype(position, velocity)
	instance := ds.AttachArchetype(archeHandle.Archetype())
	e, _ := ds.NewEntity(instance)

	moved, err := ds.RemoveComponent(e, velocity)
	if err != nil {
		t.Fatalf("RemoveComponent() error = %v", err)
	}

	newHandle := ds.GetArchetypeInstance(moved)
	newInst := ds.instances.Get(newHandle)
	if len(newInst.Archetype.Components) != 1 {
		t.Fatalf("archetype after RemoveComponent has %d components, want 1", len(newInst.Archetype.Components))
	}
	if newInst.Archetype.Components[0].NameHash != position.NameHash {
		t.Errorf("remaining component = %q, want Position", newInst.Archetype.Components[0].Name)
	}
}

func TestDataStoreAddRemoveOnStaleEntityErrors(t *testing.T) {
	ds, types, archetypes := newTestDataStore()
	position := GetOrCreateTypeInfo[dsPosition](types, ClassificationData)
	velocity := GetOrCreateTypeInfo[dsVelocity](types, ClassificationData)

	dead := NewEntity(999, 1)
	if _, err := ds.AddComponent(dead, velocity); err == nil {
		t.Errorf("AddComponent(dead entity) returned nil error")
	}
	archeHandle, _ := archetypes.GetOrCreateArchetype(position)
	instance := ds.AttachArchetype(archeHandle.Archetype())
	e, _ := ds.NewEntity(instance)
	ds.DestroyEntity(e)
	if _, err := ds.RemoveComponent(e, position); err == nil {
		t.Errorf("RemoveComponent(destroyed entity) returned nil error")
	}
}

func writeFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}
