package archcore

// factory implements the factory pattern used throughout this package for
// constructing the storage core's top-level objects, mirroring the
// teacher's package-level Factory convention.
type factory struct{}

// Factory is the global factory instance for constructing registries,
// pools, and stores.
var Factory factory

// NewTypeRegistry constructs a Type Registry guarded by a spin lock.
func (f factory) NewTypeRegistry() *TypeRegistry {
	return NewTypeRegistry(newSpinLock())
}

// NewCooperativeTypeRegistry constructs a Type Registry guarded by a
// yielding lock, for callers already inside a task scheduler (§4.2 "Async
// variant").
func (f factory) NewCooperativeTypeRegistry() *TypeRegistry {
	return NewTypeRegistry(newYieldingLock())
}

// NewArchetypeRegistry constructs an Archetype Registry over types,
// guarded by a spin lock.
func (f factory) NewArchetypeRegistry(types *TypeRegistry) *ArchetypeRegistry {
	return NewArchetypeRegistry(types, newSpinLock())
}

// NewCooperativeArchetypeRegistry constructs an Archetype Registry guarded
// by a yielding lock.
func (f factory) NewCooperativeArchetypeRegistry(types *TypeRegistry) *ArchetypeRegistry {
	return NewArchetypeRegistry(types, newYieldingLock())
}

// NewEntityPool constructs an Entity Pool guarded by a spin lock, with
// groups of GroupCapacity handles.
func (f factory) NewEntityPool() *EntityPool {
	return NewEntityPool(GroupCapacity, newSpinLock())
}

// NewCooperativeEntityPool constructs an Entity Pool guarded by a yielding
// lock.
func (f factory) NewCooperativeEntityPool() *EntityPool {
	return NewEntityPool(GroupCapacity, newYieldingLock())
}

// NewDataStore constructs a Data Store over the given registries, guarded
// by a spin lock.
func (f factory) NewDataStore(archetypes *ArchetypeRegistry, entities *EntityPool) *DataStore {
	return NewDataStore(archetypes, entities, newSpinLock())
}

// FactoryNewPoolOfSlots constructs a generic Pool-of-Slots with groups of
// GroupCapacity, guarded by a spin lock.
func FactoryNewPoolOfSlots[T any]() *PoolOfSlots[T] {
	return NewPoolOfSlots[T](GroupCapacity, newSpinLock())
}
