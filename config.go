package archcore

import "log"

// ChunkBytes is the fixed size, in bytes, of every chunk allocated by an
// ArchetypeInstance. It stands in for the spec's compile-time CHUNK_BYTES
// constant; override it before constructing any registry/store.
var ChunkBytes uint32 = 16384

// GroupCapacity is the number of slots held by one Pool-of-Slots group. It
// stands in for the spec's compile-time GROUP_CAP constant and must stay
// below 1<<16 so a slot's local index fits a uint16.
var GroupCapacity uint16 = 128

// RegistryEvents lets an embedder observe Type/Archetype Registry activity
// without this package importing a concrete logger, mirroring the teacher's
// Config.SetTableEvents hook pattern.
type RegistryEvents struct {
	// OnDuplicateTypeHash fires when two distinct types hash to the same
	// name_hash with differing content_hash; the incumbent always wins.
	OnDuplicateTypeHash func(incumbent *TypeDescriptor, rejectedName string)
	// OnArchetypeRegistered fires once an archetype is installed into the
	// registry (draft -> registered transition, §4.6).
	OnArchetypeRegistered func(a *Archetype)
	// OnArchetypeUnregistered fires when an archetype's last strong
	// reference is released and it is removed from the registry.
	OnArchetypeUnregistered func(hash uint32)
}

// ChunkEvents lets an embedder observe archetype instances being attached
// to and detached from a Data Store. OnChunkAllocated fires on every
// DataStore.AttachArchetype call, including repeat calls for an
// already-attached archetype and the attaches made by AddComponent and
// RemoveComponent; OnChunkFreed fires when DataStore.DetachArchetype finds
// an attached instance. Neither fires for the individual chunk allocations
// and releases an instance makes as rows are inserted and removed.
type ChunkEvents struct {
	OnChunkAllocated func(instance *ArchetypeInstance)
	OnChunkFreed     func(instance *ArchetypeInstance)
}

// Config holds process-wide configuration for the storage core, following
// the teacher's package-level Config var.
var Config config

type config struct {
	registryEvents RegistryEvents
	chunkEvents    ChunkEvents
}

// SetRegistryEvents installs hooks for Type/Archetype Registry activity.
func (c *config) SetRegistryEvents(e RegistryEvents) {
	c.registryEvents = e
}

// SetChunkEvents installs hooks for chunk allocation/release activity.
func (c *config) SetChunkEvents(e ChunkEvents) {
	c.chunkEvents = e
}

func (c *config) logDuplicateTypeHash(incumbent *TypeDescriptor, rejectedName string) {
	if c.registryEvents.OnDuplicateTypeHash != nil {
		c.registryEvents.OnDuplicateTypeHash(incumbent, rejectedName)
		return
	}
	log.Printf("archcore: duplicate type hash for %q, incumbent %q wins", rejectedName, incumbent.Name)
}

func (c *config) notifyArchetypeRegistered(a *Archetype) {
	if c.registryEvents.OnArchetypeRegistered != nil {
		c.registryEvents.OnArchetypeRegistered(a)
	}
}

func (c *config) notifyArchetypeUnregistered(hash uint32) {
	if c.registryEvents.OnArchetypeUnregistered != nil {
		c.registryEvents.OnArchetypeUnregistered(hash)
	}
}

func (c *config) notifyChunkAllocated(instance *ArchetypeInstance) {
	if c.chunkEvents.OnChunkAllocated != nil {
		c.chunkEvents.OnChunkAllocated(instance)
	}
}

func (c *config) notifyChunkFreed(instance *ArchetypeInstance) {
	if c.chunkEvents.OnChunkFreed != nil {
		c.chunkEvents.OnChunkFreed(instance)
	}
}
