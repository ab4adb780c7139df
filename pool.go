package archcore

// slotSentinel marks "no slot" in a group's intra-group free list. Because
// GroupCapacity must stay below 1<<16, every real local index fits in a
// uint16 with 0xFFFF left over as the sentinel (§5, Pool-of-Slots).
const slotSentinel = uint16(0xFFFF)

// poolGroup is one fixed-capacity slab. Unlike the original hive_group<T>,
// which threads its intra-group free list through a union of the slot's own
// storage and next/prev indices, Go's T may hold pointers or slices that are
// unsafe to bit-stuff; a parallel freeNext/freePrev array gets the same O(1)
// construct/destruct behavior without relying on unsafe aliasing of T.
type poolGroup[T any] struct {
	values    []T
	occupied  []bool
	freeNext  []uint16
	freePrev  []uint16
	freeHead  uint16
	freeCount uint16
}

func newPoolGroup[T any](capacity uint16) *poolGroup[T] {
	g := &poolGroup[T]{
		values:   make([]T, capacity),
		occupied: make([]bool, capacity),
		freeNext: make([]uint16, capacity),
		freePrev: make([]uint16, capacity),
		freeHead: 0,
		freeCount: capacity,
	}
	for i := uint16(0); i < capacity; i++ {
		if i > 0 {
			g.freePrev[i] = i - 1
		} else {
			g.freePrev[i] = slotSentinel
		}
		if i+1 < capacity {
			g.freeNext[i] = i + 1
		} else {
			g.freeNext[i] = slotSentinel
		}
	}
	if capacity > 0 {
		g.freePrev[0] = slotSentinel
	} else {
		g.freeHead = slotSentinel
	}
	return g
}

func (g *poolGroup[T]) full() bool { return g.freeCount == 0 }

// popFree detaches and returns the head of the intra-group free list.
func (g *poolGroup[T]) popFree() uint16 {
	idx := g.freeHead
	g.freeHead = g.freeNext[idx]
	if g.freeHead != slotSentinel {
		g.freePrev[g.freeHead] = slotSentinel
	}
	g.freeCount--
	g.occupied[idx] = true
	return idx
}

// pushFree returns a slot to the head of the intra-group free list.
func (g *poolGroup[T]) pushFree(idx uint16) {
	var zero T
	g.values[idx] = zero
	g.occupied[idx] = false
	g.freeNext[idx] = g.freeHead
	g.freePrev[idx] = slotSentinel
	if g.freeHead != slotSentinel {
		g.freePrev[g.freeHead] = idx
	}
	g.freeHead = idx
	g.freeCount++
}

// removeFree unlinks idx from wherever it sits in the free list, used by
// ConstructAt to claim a caller-chosen index rather than just the head.
func (g *poolGroup[T]) removeFree(idx uint16) {
	prev := g.freePrev[idx]
	next := g.freeNext[idx]
	if prev != slotSentinel {
		g.freeNext[prev] = next
	} else {
		g.freeHead = next
	}
	if next != slotSentinel {
		g.freePrev[next] = prev
	}
	g.freeCount--
	g.occupied[idx] = true
}

// PoolOfSlots is a slab arena of fixed-capacity groups: stable addresses,
// O(1) construct/destruct, chained together as groups fill and empty. It
// backs the Archetype Instance table and the Data Store's entity-to-instance
// map (§5); the Entity Pool keeps its version table in its own entityGroup
// slabs, built the same way. The zero value is not usable; build one with
// NewPoolOfSlots.
type PoolOfSlots[T any] struct {
	groupCap uint16
	groups   []*poolGroup[T]
	// freeGroups holds the indices (into groups) of every group with at
	// least one free slot, in no particular order; the last entry is
	// tried first so repeated construct/destruct churn stays cache-hot.
	freeGroups []int
	lock       lockStrategy
}

// NewPoolOfSlots constructs a pool whose groups each hold groupCap slots,
// guarded by the given lock strategy (use newSpinLock() for synchronous
// callers, newYieldingLock() for cooperative/async callers, per the spec's
// Design Notes on a single lock-acquisition abstraction).
func NewPoolOfSlots[T any](groupCap uint16, lock lockStrategy) *PoolOfSlots[T] {
	if groupCap == 0 {
		groupCap = GroupCapacity
	}
	return &PoolOfSlots[T]{
		groupCap: groupCap,
		lock:     lock,
	}
}

// Construct installs value into a free slot and returns its stable global
// index (group_idx*groupCap + local_idx, §5). A new group is appended when
// every existing group is full.
func (p *PoolOfSlots[T]) Construct(value T) uint32 {
	var idx uint32
	withLock(p.lock, func() {
		gi := p.acquireFreeGroupLocked()
		g := p.groups[gi]
		li := g.popFree()
		g.values[li] = value
		if g.full() {
			p.removeFreeGroupLocked(gi)
		}
		idx = uint32(gi)*uint32(p.groupCap) + uint32(li)
	})
	return idx
}

// Destruct frees the slot at index, zeroing its value so it cannot leak a
// stale reference while sitting on the free list.
func (p *PoolOfSlots[T]) Destruct(index uint32) error {
	var outErr error
	withLock(p.lock, func() {
		gi, li, err := p.split(index)
		if err != nil {
			outErr = err
			return
		}
		g := p.groups[gi]
		if !g.occupied[li] {
			outErr = OutOfRangeError{Index: index}
			return
		}
		wasFull := g.full()
		g.pushFree(li)
		if wasFull {
			p.freeGroups = append(p.freeGroups, gi)
		}
	})
	return outErr
}

// Get returns a pointer to the live value at index. The pointer is stable
// for the slot's lifetime (Pool-of-Slots never relocates live values).
func (p *PoolOfSlots[T]) Get(index uint32) (*T, error) {
	gi, li, err := p.split(index)
	if err != nil {
		return nil, err
	}
	g := p.groups[gi]
	if !g.occupied[li] {
		return nil, OutOfRangeError{Index: index}
	}
	return &g.values[li], nil
}

// IsAllocated reports whether index currently holds a live value.
func (p *PoolOfSlots[T]) IsAllocated(index uint32) bool {
	gi, li, err := p.split(index)
	if err != nil {
		return false
	}
	return p.groups[gi].occupied[li]
}

func (p *PoolOfSlots[T]) split(index uint32) (groupIdx, localIdx int, err error) {
	gi := int(index / uint32(p.groupCap))
	li := int(index % uint32(p.groupCap))
	if gi >= len(p.groups) {
		return 0, 0, OutOfRangeError{Index: index}
	}
	return gi, li, nil
}

// acquireFreeGroupLocked returns the index of a group with a free slot,
// appending a new group if none exists. Caller must hold p.lock.
func (p *PoolOfSlots[T]) acquireFreeGroupLocked() int {
	if n := len(p.freeGroups); n > 0 {
		return p.freeGroups[n-1]
	}
	p.groups = append(p.groups, newPoolGroup[T](p.groupCap))
	gi := len(p.groups) - 1
	p.freeGroups = append(p.freeGroups, gi)
	return gi
}

func (p *PoolOfSlots[T]) removeFreeGroupLocked(gi int) {
	for i, v := range p.freeGroups {
		if v == gi {
			last := len(p.freeGroups) - 1
			p.freeGroups[i] = p.freeGroups[last]
			p.freeGroups = p.freeGroups[:last]
			return
		}
	}
}

// ConstructAt is the spec's construct_at(global_index, overwrite, args)
// (§4.1): if index is already live and overwrite is false, the existing
// value is left untouched and false is returned; if live and overwrite is
// true, the slot is reconstructed in place; if vacant, it is claimed and
// constructed. Missing groups up to index are appended automatically so
// the index is always reachable.
func (p *PoolOfSlots[T]) ConstructAt(index uint32, overwrite bool, value T) (*T, bool) {
	var ptr *T
	var constructed bool
	withLock(p.lock, func() {
		gi := int(index / uint32(p.groupCap))
		li := int(index % uint32(p.groupCap))
		p.ensureGroupLocked(gi)
		g := p.groups[gi]
		if g.occupied[li] {
			if !overwrite {
				ptr = &g.values[li]
				constructed = false
				return
			}
			g.values[li] = value
			ptr = &g.values[li]
			constructed = true
			return
		}
		g.removeFree(uint16(li))
		g.values[li] = value
		if g.full() {
			p.removeFreeGroupLocked(gi)
		}
		ptr = &g.values[li]
		constructed = true
	})
	return ptr, constructed
}

// ensureGroupLocked grows the group slice so index gi is valid, appending
// fully-free groups and registering them as free. Caller must hold p.lock.
func (p *PoolOfSlots[T]) ensureGroupLocked(gi int) {
	for gi >= len(p.groups) {
		p.groups = append(p.groups, newPoolGroup[T](p.groupCap))
		p.freeGroups = append(p.freeGroups, len(p.groups)-1)
	}
}

// Len returns the total slot capacity currently allocated across all groups.
func (p *PoolOfSlots[T]) Len() int {
	return len(p.groups) * int(p.groupCap)
}
