package archcore

import (
	"sort"
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
)

// sentinelOrder is the spec's u32::MAX sentinel reported in Include's
// orders[] for an input component already present in the source archetype
// (§4.3).
const sentinelOrder uint32 = 0xFFFFFFFF

// defaultChunkHeaderSize is the fixed size reserved at the front of every
// chunk, matching the concrete scenario in §8(a). The node links and the
// live count are kept as Go fields (see Chunk and ChunkNode), so nothing is
// written into these bytes.
const defaultChunkHeaderSize uint32 = 64

// ComponentInfo records where one component's column lives inside a
// chunk laid out for a given archetype (§3).
type ComponentInfo struct {
	IndexInArchetype uint32
	OffsetInChunk    uint32
}

// Archetype is an immutable, interned set of component types plus its
// precomputed chunk layout (§3). Once registered=true its fields never
// change; the pointer is the canonical identity for its sorted component
// set (§8 invariant 3, 4).
type Archetype struct {
	Hash            uint32
	Components      []*TypeDescriptor // strictly sorted ascending by NameHash
	ComponentInfos  []ComponentInfo
	CapacityInChunk uint32
	ChunkHeaderSize uint32

	// Signature marks every component's ComponentID, giving O(1)
	// ContainsAll/ContainsAny/ContainsNone membership tests without
	// walking Components (the teacher's query.go does the same bitset
	// trick over mask.Mask for its archetype/query matching).
	Signature mask.Mask256

	registered bool
	refCount   int32
	registry   *ArchetypeRegistry
}

// Matches reports whether the archetype carries every component marked in
// required and none marked in excluded — the bitset-level counterpart of
// walking Components, used by higher layers doing component-set queries.
func (a *Archetype) Matches(required, excluded mask.Mask256) bool {
	return a.Signature.ContainsAll(required) && a.Signature.ContainsNone(excluded)
}

// nameHashes returns the archetype's component name_hashes, already sorted
// since Components is maintained sorted.
func (a *Archetype) nameHashes() []uint32 {
	out := make([]uint32, len(a.Components))
	for i, c := range a.Components {
		out[i] = c.NameHash
	}
	return out
}

// ArchetypeHandle is the reference-counted strong owner described in §9
// ("Weak-reference cycle"): the registry holds only a weak (map) entry,
// external callers hold a strong ArchetypeHandle, and the last Release
// unregisters the archetype under the registry lock, idempotently.
type ArchetypeHandle struct {
	a *Archetype
}

// Archetype returns the underlying descriptor. Valid for the handle's
// lifetime.
func (h *ArchetypeHandle) Archetype() *Archetype { return h.a }

// AddRef returns a new strong handle sharing the same archetype, bumping
// its reference count.
func (h *ArchetypeHandle) AddRef() *ArchetypeHandle {
	atomic.AddInt32(&h.a.refCount, 1)
	return &ArchetypeHandle{a: h.a}
}

// Release drops this handle's reference. When the count reaches zero the
// archetype is unregistered from its owning registry.
func (h *ArchetypeHandle) Release() {
	if atomic.AddInt32(&h.a.refCount, -1) == 0 {
		h.a.registry.unregister(h.a.Hash)
	}
}

// ArchetypeRegistry interns Archetype descriptors keyed by Archetype.Hash
// and performs the include/exclude set algebra over them (§4.3).
type ArchetypeRegistry struct {
	types           *TypeRegistry
	lock            lockStrategy
	byHash          map[uint32]*Archetype
	chunkHeaderSize uint32
}

// NewArchetypeRegistry constructs a registry whose archetypes' component
// types are resolved against types.
func NewArchetypeRegistry(types *TypeRegistry, lock lockStrategy) *ArchetypeRegistry {
	return &ArchetypeRegistry{
		types:           types,
		lock:            lock,
		byHash:          make(map[uint32]*Archetype),
		chunkHeaderSize: defaultChunkHeaderSize,
	}
}

// GetArchetype is a lookup-only probe by archetype hash (§4.3).
func (r *ArchetypeRegistry) GetArchetype(hash uint32) *Archetype {
	var out *Archetype
	withLock(r.lock, func() {
		out = r.byHash[hash]
	})
	return out
}

// GetOrCreateArchetype normalises components (stable-sort by NameHash,
// dedupe), rejects an empty set or any non-component type, computes the
// archetype hash, and on miss solves the chunk layout and two-phase-commits
// the result (§4.3).
func (r *ArchetypeRegistry) GetOrCreateArchetype(components ...*TypeDescriptor) (*ArchetypeHandle, error) {
	normalized, err := normalizeComponents(components)
	if err != nil {
		return nil, err
	}
	return r.getOrCreateSorted(normalized)
}

// getOrCreateSorted assumes components is already strictly sorted and
// deduplicated by NameHash, and non-empty.
func (r *ArchetypeRegistry) getOrCreateSorted(components []*TypeDescriptor) (*ArchetypeHandle, error) {
	hash := archetypeHash32(nameHashesOf(components))

	if existing := r.GetArchetype(hash); existing != nil {
		atomic.AddInt32(&existing.refCount, 1)
		return &ArchetypeHandle{a: existing}, nil
	}

	capacity, infos, err := solveLayout(components, r.chunkHeaderSize)
	if err != nil {
		return nil, err
	}

	var signature mask.Mask256
	for _, c := range components {
		if c.hasID {
			signature.Mark(c.ComponentID)
		}
	}

	draft := &Archetype{
		Hash:            hash,
		Components:      components,
		ComponentInfos:  infos,
		CapacityInChunk: capacity,
		ChunkHeaderSize: r.chunkHeaderSize,
		Signature:       signature,
		registry:        r,
		refCount:        1,
	}

	var installed *Archetype
	withLock(r.lock, func() {
		if incumbent, ok := r.byHash[hash]; ok {
			installed = incumbent
			return
		}
		draft.registered = true
		r.byHash[hash] = draft
		installed = draft
	})

	if installed != draft {
		atomic.AddInt32(&installed.refCount, 1)
		return &ArchetypeHandle{a: installed}, nil
	}
	Config.notifyArchetypeRegistered(installed)
	return &ArchetypeHandle{a: installed}, nil
}

// unregister removes hash from the registry, idempotently (a second call
// for an already-absent hash is a silent no-op, matching the spec's
// "idempotent under the registry lock").
func (r *ArchetypeRegistry) unregister(hash uint32) {
	removed := false
	withLock(r.lock, func() {
		if _, ok := r.byHash[hash]; !ok {
			return
		}
		delete(r.byHash, hash)
		removed = true
	})
	if removed {
		Config.notifyArchetypeUnregistered(hash)
	}
}

// Include returns the archetype whose component set is the union of a and
// additions, plus orders[i] = the destination index of additions[i] in the
// new archetype's sorted component list, or sentinelOrder if additions[i]
// was already present in a (§4.3, §8 invariant 9, scenario (e)).
func (r *ArchetypeRegistry) Include(a *Archetype, additions []*TypeDescriptor) (*ArchetypeHandle, []uint32, error) {
	existing := make(map[uint32]bool, len(a.Components))
	for _, c := range a.Components {
		existing[c.NameHash] = true
	}

	dedupedAdds, err := normalizeComponents(additions)
	if err != nil && len(additions) > 0 {
		// An empty additions set is a legal no-op Include; only a
		// non-empty-but-invalid set is an error.
		return nil, nil, err
	}

	merged := mergeSortedComponents(a.Components, dedupedAdds)

	destIndex := make(map[uint32]uint32, len(merged))
	for i, c := range merged {
		destIndex[c.NameHash] = uint32(i)
	}

	orders := make([]uint32, len(additions))
	for i, t := range additions {
		if existing[t.NameHash] {
			orders[i] = sentinelOrder
			continue
		}
		orders[i] = destIndex[t.NameHash]
	}

	handle, err := r.getOrCreateSorted(merged)
	if err != nil {
		return nil, nil, err
	}
	return handle, orders, nil
}

// Exclude returns the archetype of the set difference a.Components minus
// removals, computed by an O(n+m) sorted set_difference (§4.3). Per the
// spec's Design Notes (§9, Open Questions), this does NOT recurse into
// itself (the source draft's bug); it calls the difference directly.
func (r *ArchetypeRegistry) Exclude(a *Archetype, removals []*TypeDescriptor) (*ArchetypeHandle, error) {
	removeSet := make(map[uint32]bool, len(removals))
	for _, t := range removals {
		removeSet[t.NameHash] = true
	}

	remaining := make([]*TypeDescriptor, 0, len(a.Components))
	for _, c := range a.Components {
		if !removeSet[c.NameHash] {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		return nil, EmptyArchetypeError{}
	}

	return r.getOrCreateSorted(remaining)
}

// normalizeComponents stable-sorts by NameHash, deduplicates, and rejects
// an empty input or any non-component type (§4.3).
func normalizeComponents(components []*TypeDescriptor) ([]*TypeDescriptor, error) {
	if len(components) == 0 {
		return nil, EmptyArchetypeError{}
	}
	for _, c := range components {
		if c.Classification == ClassificationNone {
			return nil, NotAComponentError{TypeName: c.Name}
		}
	}

	cp := make([]*TypeDescriptor, len(components))
	copy(cp, components)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].NameHash < cp[j].NameHash })

	out := cp[:0:0]
	var lastHash uint32
	haveLast := false
	for _, c := range cp {
		if haveLast && c.NameHash == lastHash {
			continue
		}
		out = append(out, c)
		lastHash = c.NameHash
		haveLast = true
	}
	if len(out) == 0 {
		return nil, EmptyArchetypeError{}
	}
	return out, nil
}

// mergeSortedComponents performs the O(n+m) merge-preserving-sortedness
// described in §4.3: a and b are each strictly sorted and internally
// deduplicated by NameHash; duplicates across a and b keep a's descriptor.
func mergeSortedComponents(a, b []*TypeDescriptor) []*TypeDescriptor {
	out := make([]*TypeDescriptor, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].NameHash < b[j].NameHash:
			out = append(out, a[i])
			i++
		case a[i].NameHash > b[j].NameHash:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func nameHashesOf(components []*TypeDescriptor) []uint32 {
	out := make([]uint32, len(components))
	for i, c := range components {
		out[i] = c.NameHash
	}
	return out
}

// solveLayout is the layout solver from §4.3: find the maximum capacity
// such that chunkHeaderSize + per-component aligned offsets fit within
// ChunkBytes, starting from the initial guess
// (ChunkBytes-chunkHeaderSize)/S + 1 and decrementing while the non-strict
// inequality total <= ChunkBytes is violated (§9 Open Questions: the
// non-strict form is the correct termination predicate).
func solveLayout(components []*TypeDescriptor, chunkHeaderSize uint32) (uint32, []ComponentInfo, error) {
	var sizeSum uint32
	for _, c := range components {
		sizeSum += c.Size
	}

	var capacity uint32
	if sizeSum == 0 {
		// An archetype made entirely of zero-size (tag) components has no
		// per-entity storage to bound capacity on; use a fixed cap of
		// 1<<20 entities per chunk.
		capacity = 1 << 20
	} else {
		available := ChunkBytes
		if chunkHeaderSize < available {
			available -= chunkHeaderSize
		} else {
			available = 0
		}
		capacity = available/sizeSum + 1
	}

	for {
		infos, total := layoutAt(components, chunkHeaderSize, capacity)
		if total <= ChunkBytes {
			if capacity < 1 {
				return 0, nil, ArchetypeTooLargeError{TotalUnitSize: sizeSum, ChunkBytes: ChunkBytes}
			}
			return capacity, infos, nil
		}
		if capacity == 0 {
			return 0, nil, ArchetypeTooLargeError{TotalUnitSize: sizeSum, ChunkBytes: ChunkBytes}
		}
		capacity--
	}
}

// layoutAt computes each component's offset_in_chunk for a fixed capacity,
// returning the resulting total size consumed (§4.3's offset_i recurrence).
func layoutAt(components []*TypeDescriptor, chunkHeaderSize, capacity uint32) ([]ComponentInfo, uint32) {
	infos := make([]ComponentInfo, len(components))
	offset := alignUp(chunkHeaderSize, components[0].Alignment)
	var total uint32
	for i, c := range components {
		if i > 0 {
			offset = alignUp(offset+components[i-1].Size*capacity, c.Alignment)
		}
		infos[i] = ComponentInfo{IndexInArchetype: uint32(i), OffsetInChunk: offset}
		total = offset + c.Size*capacity
	}
	return infos, total
}
