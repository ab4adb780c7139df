package archcore

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// InstanceHandle is a stable index into an ArchetypeInstanceRegistry's
// Pool-of-Slots, naming one ArchetypeInstance (§4.5).
type InstanceHandle uint32

// InvalidInstanceHandle is the reserved "no instance" value.
const InvalidInstanceHandle InstanceHandle = InstanceHandle(InvalidHandle)

// IsValid reports whether h names a real instance slot.
func (h InstanceHandle) IsValid() bool { return uint32(h) != InvalidHandle }

// rowLocation pins down exactly where one entity's component row lives.
type rowLocation struct {
	node *ChunkNode
	row  uint32
}

// ArchetypeInstance is the runtime state associated with an archetype
// inside a Data Store: its chunks, free list, and entity-row bookkeeping
// (§3, §4.5). Index is assigned at insertion into the registry and is
// stable thereafter.
type ArchetypeInstance struct {
	Index     uint32
	Archetype *Archetype
	Chunks    *ChunkList

	// locks holds the component IDs marked through AddLock and cleared
	// through RemoveLock, mirroring the teacher's storage.go ("locks
	// mask.Mask256") field. The Data Store's own row moves neither set nor
	// check it.
	locks mask.Mask256

	locations map[uint32]rowLocation
}

// AddLock marks componentID as locked for this instance.
func (inst *ArchetypeInstance) AddLock(componentID uint32) { inst.locks.Mark(componentID) }

// RemoveLock clears componentID's lock for this instance.
func (inst *ArchetypeInstance) RemoveLock(componentID uint32) { inst.locks.Unmark(componentID) }

// Locked reports whether componentID is currently locked.
func (inst *ArchetypeInstance) Locked(componentID uint32) bool {
	var probe mask.Mask256
	probe.Mark(componentID)
	return inst.locks.ContainsAny(probe)
}

func newArchetypeInstance(a *Archetype, chunkBytes uint32) *ArchetypeInstance {
	return &ArchetypeInstance{
		Archetype: a,
		Chunks:    newChunkList(chunkBytes, a.CapacityInChunk),
		locations: make(map[uint32]rowLocation),
	}
}

// Contains reports whether entity currently has a row in this instance.
func (inst *ArchetypeInstance) Contains(e Entity) bool {
	_, ok := inst.locations[e.Handle()]
	return ok
}

// insertRow appends entity as a new row, allocating a fresh chunk node if
// the current tail is full or absent.
func (inst *ArchetypeInstance) insertRow(e Entity) rowLocation {
	tail := inst.Chunks.Tail()
	if tail == nil || tail.chunk.LiveCount >= inst.Archetype.CapacityInChunk {
		tail = inst.Chunks.AllocateChunkNode()
	}
	row := tail.chunk.LiveCount
	tail.Entities[row] = e
	tail.chunk.LiveCount++
	loc := rowLocation{node: tail, row: row}
	inst.locations[e.Handle()] = loc
	return loc
}

// removeRow removes entity's row via swap-with-last, the standard dense
// archetype-column maintenance technique (grounded in the reflect-backed
// columnar storage of delaneyj/arche's ecs package), returning the entity
// that was moved into the vacated slot so the caller can patch its tracked
// location, or InvalidEntity if the removed row was already last.
func (inst *ArchetypeInstance) removeRow(e Entity) Entity {
	loc, ok := inst.locations[e.Handle()]
	if !ok {
		return InvalidEntity()
	}
	delete(inst.locations, e.Handle())

	node := loc.node
	lastRow := node.chunk.LiveCount - 1
	moved := InvalidEntity()
	if loc.row != lastRow {
		moveRowWithinNode(inst.Archetype, node, lastRow, loc.row)
		moved = node.Entities[lastRow]
		node.Entities[loc.row] = moved
		inst.locations[moved.Handle()] = rowLocation{node: node, row: loc.row}
	}
	node.Entities[lastRow] = InvalidEntity()
	node.chunk.LiveCount--
	if node.chunk.LiveCount == 0 {
		inst.Chunks.FreeChunkNode(node)
	}
	return moved
}

func moveRowWithinNode(a *Archetype, node *ChunkNode, srcRow, dstRow uint32) {
	for i, c := range a.Components {
		info := a.ComponentInfos[i]
		size := c.Size
		if size == 0 {
			continue
		}
		srcOff := info.OffsetInChunk + srcRow*size
		dstOff := info.OffsetInChunk + dstRow*size
		copy(node.chunk.Data[dstOff:dstOff+size], node.chunk.Data[srcOff:srcOff+size])
	}
}

// columnCell returns the raw byte slice backing component ci's value at
// row within node, per the archetype's precomputed layout.
func columnCell(a *Archetype, node *ChunkNode, ci int, row uint32) []byte {
	info := a.ComponentInfos[ci]
	size := a.Components[ci].Size
	off := info.OffsetInChunk + row*size
	return node.chunk.Data[off : off+size]
}

// ArchetypeInstanceRegistry owns every ArchetypeInstance inside a Data
// Store, keyed by both a stable pool index and the owning archetype's hash
// (§4.5).
type ArchetypeInstanceRegistry struct {
	pool       *PoolOfSlots[*ArchetypeInstance]
	byHash     map[uint32]uint32
	lock       lockStrategy
	chunkBytes uint32
}

func newArchetypeInstanceRegistry(chunkBytes uint32, lock lockStrategy) *ArchetypeInstanceRegistry {
	return &ArchetypeInstanceRegistry{
		pool:       NewPoolOfSlots[*ArchetypeInstance](0, newSpinLock()),
		byHash:     make(map[uint32]uint32),
		lock:       lock,
		chunkBytes: chunkBytes,
	}
}

// AttachArchetype is idempotent: the first call creates the instance
// (assigned a stable index), subsequent calls return the cached handle
// (§4.5).
func (r *ArchetypeInstanceRegistry) AttachArchetype(a *Archetype) InstanceHandle {
	var result InstanceHandle
	withLock(r.lock, func() {
		if idx, ok := r.byHash[a.Hash]; ok {
			result = InstanceHandle(idx)
			return
		}
		instance := newArchetypeInstance(a, r.chunkBytes)
		idx := r.pool.Construct(instance)
		ptr, err := r.pool.Get(idx)
		if err != nil {
			// The slot we just constructed must be live; a miss here
			// means the pool's own invariants broke.
			panic(bark.AddTrace(fmt.Errorf("archcore: instance pool lost freshly constructed slot %d: %w", idx, err)))
		}
		(*ptr).Index = idx
		r.byHash[a.Hash] = idx
		result = InstanceHandle(idx)
	})
	return result
}

// Get resolves a handle to its instance, or nil if invalid/detached.
func (r *ArchetypeInstanceRegistry) Get(handle InstanceHandle) *ArchetypeInstance {
	if !handle.IsValid() {
		return nil
	}
	ptr, err := r.pool.Get(uint32(handle))
	if err != nil {
		return nil
	}
	return *ptr
}

// GetByHash resolves an already-attached archetype's instance by hash.
func (r *ArchetypeInstanceRegistry) GetByHash(hash uint32) *ArchetypeInstance {
	var out *ArchetypeInstance
	withLock(r.lock, func() {
		idx, ok := r.byHash[hash]
		if !ok {
			return
		}
		ptr, err := r.pool.Get(idx)
		if err == nil {
			out = *ptr
		}
	})
	return out
}

// DetachByHash releases the instance owning hash, walking and freeing all
// of its chunks (§4.5: "instance destructor walks the lists and releases
// all chunks").
func (r *ArchetypeInstanceRegistry) DetachByHash(hash uint32) {
	withLock(r.lock, func() {
		idx, ok := r.byHash[hash]
		if !ok {
			return
		}
		if ptr, err := r.pool.Get(idx); err == nil {
			(*ptr).Chunks.Clear()
		}
		delete(r.byHash, hash)
		_ = r.pool.Destruct(idx)
	})
}

// DetachByIndex releases the instance at idx.
func (r *ArchetypeInstanceRegistry) DetachByIndex(idx uint32) {
	withLock(r.lock, func() {
		ptr, err := r.pool.Get(idx)
		if err != nil {
			return
		}
		delete(r.byHash, (*ptr).Archetype.Hash)
		(*ptr).Chunks.Clear()
		_ = r.pool.Destruct(idx)
	})
}

// DetachByArchetype releases the instance owning a, if any.
func (r *ArchetypeInstanceRegistry) DetachByArchetype(a *Archetype) {
	r.DetachByHash(a.Hash)
}

// DataStore maps live entities to archetype instances and owns the
// chunk-linked lists holding component data (§4.5).
type DataStore struct {
	Archetypes *ArchetypeRegistry
	Entities   *EntityPool

	instances        *ArchetypeInstanceRegistry
	entityToInstance *PoolOfSlots[InstanceHandle]
}

// NewDataStore constructs a store over the given registries.
func NewDataStore(archetypes *ArchetypeRegistry, entities *EntityPool, lock lockStrategy) *DataStore {
	return &DataStore{
		Archetypes:       archetypes,
		Entities:         entities,
		instances:        newArchetypeInstanceRegistry(ChunkBytes, lock),
		entityToInstance: NewPoolOfSlots[InstanceHandle](0, newSpinLock()),
	}
}

// AttachArchetype idempotently installs an instance for archetype,
// returning its stable handle (§4.5).
func (ds *DataStore) AttachArchetype(archetype *Archetype) InstanceHandle {
	handle := ds.instances.AttachArchetype(archetype)
	Config.notifyChunkAllocated(ds.instances.Get(handle))
	return handle
}

// DetachArchetype tears down the instance for archetype, if attached.
func (ds *DataStore) DetachArchetype(archetype *Archetype) {
	if inst := ds.instances.GetByHash(archetype.Hash); inst != nil {
		Config.notifyChunkFreed(inst)
	}
	ds.instances.DetachByArchetype(archetype)
}

// GetArchetypeInstance returns the instance handle entity currently lives
// in, or InvalidInstanceHandle if the entity is dead or unmapped (§4.5).
func (ds *DataStore) GetArchetypeInstance(e Entity) InstanceHandle {
	if !ds.Entities.IsAlive(e) {
		return InvalidInstanceHandle
	}
	ptr, err := ds.entityToInstance.Get(e.Handle())
	if err != nil {
		return InvalidInstanceHandle
	}
	return *ptr
}

// NewEntity allocates a fresh entity and places it in the archetype
// instance named by handle. This is a Data Store convenience the base
// Runtime Archetype/Entity contracts don't spell out mechanically, but
// which §1's Purpose calls for directly ("exposes fast structural
// mutation... and lookup").
func (ds *DataStore) NewEntity(handle InstanceHandle) (Entity, error) {
	inst := ds.instances.Get(handle)
	if inst == nil {
		return Entity{}, OutOfRangeError{Index: uint32(handle)}
	}
	e := ds.Entities.AllocateEntity()
	inst.insertRow(e)
	ds.entityToInstance.ConstructAt(e.Handle(), true, handle)
	return e, nil
}

// DestroyEntity removes entity's row from its current instance and frees
// its handle in the Entity Pool. A stale or already-dead entity is a
// silent no-op, matching the spec's StaleEntity policy (§7).
func (ds *DataStore) DestroyEntity(e Entity) {
	handle := ds.GetArchetypeInstance(e)
	if handle.IsValid() {
		if inst := ds.instances.Get(handle); inst != nil {
			inst.removeRow(e)
		}
	}
	ds.Entities.DeallocateEntity(e)
}

// AddComponent moves entity into the archetype formed by including
// additions into its current component set, copying forward every
// overlapping component's bytes and default-constructing the rest via
// their vtables (nil entries mean "zero-fill", per §6's vtable contract).
func (ds *DataStore) AddComponent(e Entity, additions ...*TypeDescriptor) (Entity, error) {
	curHandle := ds.GetArchetypeInstance(e)
	if !curHandle.IsValid() {
		return Entity{}, StaleEntityError{Entity: e}
	}
	curInst := ds.instances.Get(curHandle)

	newHandle, _, err := ds.Archetypes.Include(curInst.Archetype, additions)
	if err != nil {
		return Entity{}, err
	}
	newArchetype := newHandle.Archetype()
	return ds.moveEntity(e, curInst, newArchetype)
}

// RemoveComponent moves entity into the archetype formed by excluding
// removals from its current component set.
func (ds *DataStore) RemoveComponent(e Entity, removals ...*TypeDescriptor) (Entity, error) {
	curHandle := ds.GetArchetypeInstance(e)
	if !curHandle.IsValid() {
		return Entity{}, StaleEntityError{Entity: e}
	}
	curInst := ds.instances.Get(curHandle)

	newHandle, err := ds.Archetypes.Exclude(curInst.Archetype, removals)
	if err != nil {
		return Entity{}, err
	}
	newArchetype := newHandle.Archetype()
	return ds.moveEntity(e, curInst, newArchetype)
}

// moveEntity relocates entity's row from curInst into (possibly newly
// attached) instance for newArchetype, copying every component column the
// two archetypes share and default-constructing any newly-gained column.
func (ds *DataStore) moveEntity(e Entity, curInst *ArchetypeInstance, newArchetype *Archetype) (Entity, error) {
	if newArchetype.Hash == curInst.Archetype.Hash {
		return e, nil
	}

	newInstHandle := ds.AttachArchetype(newArchetype)
	newInst := ds.instances.Get(newInstHandle)

	oldLoc := curInst.locations[e.Handle()]
	newLoc := newInst.insertRow(e)

	byNameHash := make(map[uint32]int, len(curInst.Archetype.Components))
	for i, c := range curInst.Archetype.Components {
		byNameHash[c.NameHash] = i
	}

	for ni, nc := range newArchetype.Components {
		dst := columnCell(newArchetype, newLoc.node, ni, newLoc.row)
		if oi, ok := byNameHash[nc.NameHash]; ok {
			src := columnCell(curInst.Archetype, oldLoc.node, oi, oldLoc.row)
			copy(dst, src)
			continue
		}
		if nc.VTable.DefaultConstruct != nil {
			nc.VTable.DefaultConstruct(dst)
			continue
		}
		// A nil DefaultConstruct means "trivially constructible": zero-fill
		// the cell, since a reused chunk or row can still hold the bytes of
		// an earlier occupant.
		clear(dst)
	}

	curInst.removeRow(e)
	ds.entityToInstance.ConstructAt(e.Handle(), true, newInstHandle)
	return e, nil
}
