package archcore

// Chunk is a fixed-size memory block holding a header region followed by
// component columns (§3). The header region is reserved space at the front
// of Data (ComponentInfo.OffsetInChunk already accounts for it); there is
// no on-disk/wire header format to serialize (Non-goals: no serialization
// format), so LiveCount is tracked as a plain Go field rather than bytes
// packed into Data.
type Chunk struct {
	Data      []byte
	LiveCount uint32
}

func newChunk(size uint32) *Chunk {
	return &Chunk{Data: make([]byte, size)}
}

// ChunkNode is a doubly-linked-list node wrapping a Chunk (§3). Nodes also
// chain onto a ChunkList's free list when their chunk has been released
// back to the instance for reuse.
type ChunkNode struct {
	chunk      *Chunk
	prev, next *ChunkNode

	// Entities tracks, per row, which entity currently occupies it; it is
	// sized to the owning archetype's capacity_in_chunk and is bookkeeping
	// for the Data Store's structural mutation, not part of the chunk's
	// component-column memory itself.
	Entities []Entity
}

// Chunk returns the node's backing chunk.
func (n *ChunkNode) Chunk() *Chunk { return n.chunk }

// Next returns the next node in iteration order, or nil at the tail.
func (n *ChunkNode) Next() *ChunkNode { return n.next }

// ChunkList is the per-ArchetypeInstance chunk lifecycle manager (§4.5):
// chunks form a doubly-linked list in insertion order, plus a free list of
// released chunk nodes available for reuse before a new one is malloc'd.
type ChunkList struct {
	head, tail *ChunkNode
	freeHead   *ChunkNode
	chunkBytes uint32
	capacity   uint32
}

func newChunkList(chunkBytes, capacity uint32) *ChunkList {
	return &ChunkList{chunkBytes: chunkBytes, capacity: capacity}
}

// AllocateChunkNode pops a node from the free list if one exists, else
// allocates a fresh Chunk of chunkBytes and wraps it in a new node; either
// way the node is appended to the tail, preserving iteration order (§4.5).
func (l *ChunkList) AllocateChunkNode() *ChunkNode {
	var node *ChunkNode
	if l.freeHead != nil {
		node = l.freeHead
		l.freeHead = node.next
		node.next = nil
		node.chunk.LiveCount = 0
		for i := range node.Entities {
			node.Entities[i] = InvalidEntity()
		}
	} else {
		node = &ChunkNode{chunk: newChunk(l.chunkBytes), Entities: make([]Entity, l.capacity)}
		for i := range node.Entities {
			node.Entities[i] = InvalidEntity()
		}
	}
	l.appendTail(node)
	return node
}

func (l *ChunkList) appendTail(node *ChunkNode) {
	node.prev = l.tail
	node.next = nil
	if l.tail != nil {
		l.tail.next = node
	} else {
		l.head = node
	}
	l.tail = node
}

// FreeChunkNode unlinks node from the live list and pushes it onto the
// free list for reuse. The source's chunk_root_node::remove_chunk_node was
// a stub; §9 Open Questions resolves it by the obvious invariant: unlink
// then free (here, "free" means "make available for reuse", since chunk
// storage is retained by the instance rather than released to the OS).
func (l *ChunkList) FreeChunkNode(node *ChunkNode) {
	l.unlink(node)
	node.next = l.freeHead
	node.prev = nil
	l.freeHead = node
}

func (l *ChunkList) unlink(node *ChunkNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else if l.head == node {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else if l.tail == node {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}

// Clear drops the live list and the free list, releasing every node to the
// garbage collector; this resolves the source's other chunk_root_node stub
// (§9 Open Questions: "walk-and-free all nodes").
func (l *ChunkList) Clear() {
	l.head = nil
	l.tail = nil
	l.freeHead = nil
}

// Chunks returns the live chunk nodes in insertion order.
func (l *ChunkList) Chunks() []*ChunkNode {
	out := make([]*ChunkNode, 0, 4)
	for n := l.head; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Head returns the first live node, or nil if the list is empty.
func (l *ChunkList) Head() *ChunkNode { return l.head }

// Tail returns the last live node, or nil if the list is empty.
func (l *ChunkList) Tail() *ChunkNode { return l.tail }
