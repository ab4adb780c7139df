package archcore

import "hash/fnv"

// nameHash32 computes the 32-bit interning key for a type or archetype name,
// matching the spec's name_hash (§2.1, §3.1). FNV-1a is the teacher pack's
// standard choice for small-key hashing and is stable across runs, unlike
// Go's built-in map seed-randomized hashing.
func nameHash32(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// contentHash64 computes the 64-bit structural fingerprint of a type
// (size, alignment, and field layout serialized) used to detect genuine
// name_hash collisions between unrelated types (§2.1 "content_hash").
func contentHash64(content []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(content)
	return h.Sum64()
}

// archetypeHash32 computes an archetype's interning key as the FNV-1a hash
// of its sorted component name_hashes, each written as 4 little-endian
// bytes (§3.1).
func archetypeHash32(sortedNameHashes []uint32) uint32 {
	h := fnv.New32a()
	var buf [4]byte
	for _, nh := range sortedNameHashes {
		buf[0] = byte(nh)
		buf[1] = byte(nh >> 8)
		buf[2] = byte(nh >> 16)
		buf[3] = byte(nh >> 24)
		_, _ = h.Write(buf[:])
	}
	return h.Sum32()
}

// alignUp rounds n up to the next multiple of align, which must be a power
// of two. Used by the layout solver to place each component column on its
// required alignment boundary within a chunk (§3.3).
func alignUp(n, align uint32) uint32 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}
