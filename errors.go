package archcore

import "fmt"

// UnknownTypeError describes a Type Registry lookup miss. GetTypeInfo and
// GetTypeInfoByName report a miss by returning nil and do not return this
// value.
type UnknownTypeError struct {
	NameHash uint32
}

func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("archcore: unknown type, name_hash=%#x", e.NameHash)
}

// DuplicateTypeHashError describes a name_hash collision between an
// incumbent descriptor and a rejected draft of differing content_hash. The
// incumbent always wins. RegisterTypeInfo does not build or return this
// value; it reports the collision through RegistryEvents.OnDuplicateTypeHash
// (incumbent descriptor and rejected name) or, with no hook set, log.Printf.
type DuplicateTypeHashError struct {
	NameHash         uint32
	IncumbentName    string
	IncumbentContent uint64
	RejectedName     string
	RejectedContent  uint64
}

func (e DuplicateTypeHashError) Error() string {
	return fmt.Sprintf(
		"archcore: type hash collision for name_hash=%#x: incumbent %q (content=%#x) kept over %q (content=%#x)",
		e.NameHash, e.IncumbentName, e.IncumbentContent, e.RejectedName, e.RejectedContent,
	)
}

// NotAComponentError is returned when archetype creation is attempted with
// a type whose classification is ClassificationNone.
type NotAComponentError struct {
	TypeName string
}

func (e NotAComponentError) Error() string {
	return fmt.Sprintf("archcore: type %q is not a component (classification none)", e.TypeName)
}

// EmptyArchetypeError is returned when archetype creation is attempted with
// zero component types.
type EmptyArchetypeError struct{}

func (e EmptyArchetypeError) Error() string {
	return "archcore: cannot create an archetype with zero components"
}

// ArchetypeTooLargeError is returned when the layout solver cannot fit even
// a single entity's worth of components inside one chunk.
type ArchetypeTooLargeError struct {
	TotalUnitSize uint32
	ChunkBytes    uint32
}

func (e ArchetypeTooLargeError) Error() string {
	return fmt.Sprintf(
		"archcore: archetype components (%d bytes/entity) cannot fit in a %d byte chunk",
		e.TotalUnitSize, e.ChunkBytes,
	)
}

// StaleEntityError is returned by Data Store structural mutations invoked
// on a dead or stale entity (§7). At the Entity Pool layer itself this
// condition is a silent no-op; it is surfaced as an error here because the
// Data Store's Add/RemoveComponent are ordinary fallible Go calls.
type StaleEntityError struct {
	Entity Entity
}

func (e StaleEntityError) Error() string {
	return fmt.Sprintf("archcore: entity (handle=%d, version=%d) is not alive", e.Entity.Handle(), e.Entity.Version())
}

// OutOfRangeError is returned by Pool-of-Slots Get and Destruct when the
// requested index falls outside any allocated group or names a vacant slot.
type OutOfRangeError struct {
	Index uint32
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("archcore: index %d out of range", e.Index)
}

// AllocFailureError wraps a failed raw chunk allocation.
type AllocFailureError struct {
	Requested uint32
}

func (e AllocFailureError) Error() string {
	return fmt.Sprintf("archcore: failed to allocate %d bytes for a chunk", e.Requested)
}
