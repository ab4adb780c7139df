/*
Package archcore is the storage core of an archetype-based Entity-Component-System.

It groups entities by the set of components attached to them, lays out
component values as columnar arrays inside fixed-size memory chunks, and
exposes fast structural mutation (add/remove components) and lookup. It is
composed of four subsystems:

  - a Type Registry that interns per-type descriptors (size, alignment,
    field layout, component classification) derived from reflection;
  - an Archetype Registry that interns immutable archetype descriptors (a
    sorted set of component types plus their computed chunk layout) and
    supports set-algebra over them (include, exclude);
  - an Entity Pool that issues versioned 64-bit entity identifiers with
    O(1) allocate/free/liveness checks;
  - a Data Store that maps live entities to archetype instances and owns
    the chunk-linked lists holding component data.

Below the store sits a Pool-of-Slots container (a slotted, stable-address
arena built from fixed-capacity groups chained together) that backs the
archetype-instance table and the entity-to-instance map. The Entity Pool
keeps its version table in slot groups of the same design.

Basic Usage:

	types := archcore.Factory.NewTypeRegistry()
	archetypes := archcore.Factory.NewArchetypeRegistry(types)
	entities := archcore.Factory.NewEntityPool()
	store := archcore.Factory.NewDataStore(archetypes, entities)

	position := archcore.GetOrCreateTypeInfo[Position](types, archcore.ClassificationData)
	velocity := archcore.GetOrCreateTypeInfo[Velocity](types, archcore.ClassificationData)

	archeHandle, _ := archetypes.GetOrCreateArchetype(position, velocity)
	instance := store.AttachArchetype(archeHandle.Archetype())
	entity, _ := store.NewEntity(instance)

archcore is the storage core underlying higher-level "world" / query /
scheduler layers; those layers are out of scope for this package.
*/
package archcore
