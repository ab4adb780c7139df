package archcore

import (
	"log"
	"reflect"
	"sort"
)

// ComponentClassification tags how a registered type participates in
// archetypes (§3, TypeDescriptor.classification).
type ComponentClassification int

const (
	// ClassificationNone marks a type that is not a component; it may be
	// registered (e.g. as a field type) but cannot appear in an archetype.
	ClassificationNone ComponentClassification = iota
	// ClassificationData is an ordinary per-entity data component.
	ClassificationData
	// ClassificationTag is a zero-size marker component.
	ClassificationTag
	// ClassificationShared marks a shared component. The layout solver and
	// the Data Store treat it like a data component: it gets its own column
	// with one value per entity row.
	ClassificationShared
)

// FieldDescriptor describes one field of a registered type (§3).
type FieldDescriptor struct {
	Name   string
	Type   *TypeDescriptor
	Offset uint32
}

// VTable is the type-erased construct/copy/move/destruct table for a
// registered type (§6, §9 "Polymorphic type-erased component storage").
// A nil entry means "trivially copyable/destructible: use memcpy / no-op",
// matching the spec's vtable contract exactly.
type VTable struct {
	DefaultConstruct func(ptr []byte)
	CopyConstruct    func(dst, src []byte)
	MoveConstruct    func(dst, src []byte)
	Destruct         func(ptr []byte)
}

// TypeDescriptor is the runtime witness of a registered type's layout,
// field structure, and component classification (§3). Instances are owned
// by a TypeRegistry and are immutable once installed; addresses are stable
// for the registry's lifetime (§3 invariant iii).
type TypeDescriptor struct {
	Name           string
	NameHash       uint32
	ContentHash    uint64
	Size           uint32
	Alignment      uint32
	Classification ComponentClassification
	Fields         []FieldDescriptor
	VTable         VTable

	// ComponentID is a dense, registry-assigned bit position used only by
	// Archetype.Signature (a mask.Mask256) for O(1) containment checks; it
	// is unset (0) for non-component types. uint32 matches mask.Mask256's
	// Mark/Unmark bit-position parameter (the teacher's storage.go/query.go
	// call sites all pass a uint32 here).
	ComponentID uint32
	hasID       bool
}

// TypeRegistry interns TypeDescriptors by NameHash, guarded by a
// lockStrategy (spin by default, §4.2).
type TypeRegistry struct {
	lock            lockStrategy
	byKey           map[uint32]*TypeDescriptor
	nextComponentID uint32
}

// NewTypeRegistry constructs an empty registry guarded by lock.
func NewTypeRegistry(lock lockStrategy) *TypeRegistry {
	return &TypeRegistry{
		lock:  lock,
		byKey: make(map[uint32]*TypeDescriptor),
	}
}

// GetTypeInfo is a lookup-only, thread-safe probe by name_hash (§4.2).
func (r *TypeRegistry) GetTypeInfo(nameHash uint32) *TypeDescriptor {
	var out *TypeDescriptor
	withLock(r.lock, func() {
		out = r.byKey[nameHash]
	})
	return out
}

// GetTypeInfoByName is a convenience wrapper around GetTypeInfo.
func (r *TypeRegistry) GetTypeInfoByName(name string) *TypeDescriptor {
	return r.GetTypeInfo(nameHash32(name))
}

// RegisterTypeInfo two-phase-commits draft into the registry: if
// draft.NameHash is already present, the incoming draft is discarded and
// the incumbent is returned (reported via Config's OnDuplicateTypeHash hook
// when content hashes disagree); otherwise draft is installed and returned
// (§4.2).
func (r *TypeRegistry) RegisterTypeInfo(draft *TypeDescriptor) *TypeDescriptor {
	var out *TypeDescriptor
	withLock(r.lock, func() {
		if incumbent, ok := r.byKey[draft.NameHash]; ok {
			if incumbent.ContentHash != draft.ContentHash {
				Config.logDuplicateTypeHash(incumbent, draft.Name)
			}
			out = incumbent
			return
		}
		if draft.Classification != ClassificationNone {
			draft.ComponentID = r.nextComponentID
			draft.hasID = true
			r.nextComponentID++
		}
		r.byKey[draft.NameHash] = draft
		out = draft
	})
	return out
}

// reflectOracle adapts Go's reflect package to the spec's "compile-time
// reflection oracle" (§6): type_name, size, alignment, field_count, and
// per-field type/offset/name. reflect.Type stands in for the oracle the
// spec asks embedders to supply; Go has no separate compile-time facility
// to plug in here.
type reflectOracle struct {
	rt reflect.Type
}

func newReflectOracle(rt reflect.Type) reflectOracle {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return reflectOracle{rt: rt}
}

func (o reflectOracle) typeName() string     { return o.rt.PkgPath() + "." + o.rt.Name() }
func (o reflectOracle) size() uint32         { return uint32(o.rt.Size()) }
func (o reflectOracle) alignment() uint32    { return uint32(o.rt.Align()) }
func (o reflectOracle) fieldCount() int {
	if o.rt.Kind() != reflect.Struct {
		return 0
	}
	return o.rt.NumField()
}

func (o reflectOracle) field(i int) (name string, ft reflect.Type, offset uint32) {
	f := o.rt.Field(i)
	return f.Name, f.Type, uint32(f.Offset)
}

// GetOrCreateTypeInfo is the generic helper from §4.2: probe by hash; on
// miss synthesise a descriptor from the reflection oracle, recursively
// resolving and registering struct field types first so construction stays
// bottom-up (§3 invariant ii), then two-phase-commit the result.
func GetOrCreateTypeInfo[T any](r *TypeRegistry, classification ComponentClassification) *TypeDescriptor {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil {
		rt = reflect.TypeOf(&zero).Elem()
	}
	return getOrCreateTypeInfoReflect(r, rt, classification)
}

func getOrCreateTypeInfoReflect(r *TypeRegistry, rt reflect.Type, classification ComponentClassification) *TypeDescriptor {
	oracle := newReflectOracle(rt)
	name := oracle.typeName()
	nameHash := nameHash32(name)
	if existing := r.GetTypeInfo(nameHash); existing != nil {
		return existing
	}

	draft := &TypeDescriptor{
		Name:           name,
		NameHash:       nameHash,
		Size:           oracle.size(),
		Alignment:      oracle.alignment(),
		Classification: classification,
	}

	n := oracle.fieldCount()
	draft.Fields = make([]FieldDescriptor, 0, n)
	contentBytes := make([]byte, 0, 8+n*16)
	contentBytes = appendU64(contentBytes, uint64(draft.Size)<<32|uint64(draft.Alignment))
	for i := 0; i < n; i++ {
		fname, ftype, foffset := oracle.field(i)
		// Fields are registered as plain-data descriptors (classification
		// none): a struct field is part of the layout, not itself an
		// independently addressable component.
		fieldDesc := getOrCreateTypeInfoReflect(r, ftype, ClassificationNone)
		draft.Fields = append(draft.Fields, FieldDescriptor{
			Name:   fname,
			Type:   fieldDesc,
			Offset: foffset,
		})
		contentBytes = appendU64(contentBytes, uint64(fieldDesc.NameHash)<<32|uint64(foffset))
	}
	draft.ContentHash = contentHash64(contentBytes)
	draft.VTable = vtableFor(rt)

	return r.RegisterTypeInfo(draft)
}

func appendU64(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56),
	)
}

// vtableFor derives the default VTable for a reflected type. Every entry
// starts nil ("trivially copyable/destructible: use memcpy/no-op", §6):
// the Data Store moves rows with plain byte copies regardless, so a
// function-pointer construct/destruct table only matters for a type that
// needs real initialization logic beyond zero-fill, which callers attach
// explicitly via TypeDescriptor.VTable after registration. A type whose
// representation is not trivially copyable (holds a pointer, slice, map,
// etc.) is logged, since raw byte moves silently alias rather than deep
// copy such fields.
func vtableFor(rt reflect.Type) VTable {
	if !isTriviallyCopyable(rt) {
		log.Printf("archcore: type %s is not trivially copyable; attach an explicit VTable before using it as a component", rt)
	}
	return VTable{}
}

// isTriviallyCopyable reports whether rt's Go representation holds no
// pointers, slices, maps, interfaces, or channels — i.e. whether treating
// it as raw, relocatable bytes (the Data Store's move strategy) is safe
// without a caller-supplied vtable.
func isTriviallyCopyable(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.Func, reflect.String, reflect.UnsafePointer:
		return false
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if !isTriviallyCopyable(rt.Field(i).Type) {
				return false
			}
		}
		return true
	case reflect.Array:
		return isTriviallyCopyable(rt.Elem())
	default:
		return true
	}
}

// sortFieldsByOffset sorts fields in place by Offset; it lives here because
// it operates purely on TypeDescriptor.Fields.
func sortFieldsByOffset(fields []FieldDescriptor) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Offset < fields[j].Offset })
}
