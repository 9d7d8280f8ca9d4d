package types

import "fmt"

// TypeID identifies a type descriptor within a Registry snapshot.
// IDs are only meaningful relative to the snapshot they came from;
// two snapshots may number structurally identical types differently.
type TypeID uint32

// PrimitiveKind enumerates the fixed-width primitive types.
type PrimitiveKind uint8

const (
	KindBool PrimitiveKind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindU128
	KindI8
	KindI16
	KindI32
	KindI64
	KindI128
	KindString
)

// String returns the lowercase name of the primitive kind.
func (k PrimitiveKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindI128:
		return "i128"
	case KindString:
		return "str"
	default:
		return fmt.Sprintf("primitive(%d)", uint8(k))
	}
}

// Bits returns the width of an integer kind in bits, or 0 for
// non-integer kinds (bool, str).
func (k PrimitiveKind) Bits() int {
	switch k {
	case KindU8, KindI8:
		return 8
	case KindU16, KindI16:
		return 16
	case KindU32, KindI32:
		return 32
	case KindU64, KindI64:
		return 64
	case KindU128, KindI128:
		return 128
	default:
		return 0
	}
}

// Signed reports whether the kind is a signed integer.
func (k PrimitiveKind) Signed() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64, KindI128:
		return true
	default:
		return false
	}
}

// BitOrder selects how booleans map onto the bits of each store unit
// in a BitSequence.
type BitOrder uint8

const (
	// Lsb0 fills each byte starting from the least significant bit.
	Lsb0 BitOrder = iota
	// Msb0 fills each byte starting from the most significant bit.
	Msb0
)

func (o BitOrder) String() string {
	if o == Msb0 {
		return "msb0"
	}
	return "lsb0"
}

// TypeDef is the closed set of type descriptor shapes. Exactly one of
// the *Def structs below implements it.
type TypeDef interface {
	isTypeDef()
}

// PrimitiveDef describes a fixed-width primitive.
type PrimitiveDef struct {
	Kind PrimitiveKind
}

// CompactDef marks that the inner integer type uses the variable-length
// compact encoding instead of its fixed-width form.
type CompactDef struct {
	Inner TypeID
}

// SequenceDef describes a length-prefixed homogeneous list.
type SequenceDef struct {
	Inner TypeID
}

// ArrayDef describes a fixed-length homogeneous list with no length
// prefix on the wire.
type ArrayDef struct {
	Len   uint32
	Inner TypeID
}

// TupleDef describes an ordered, heterogeneous, unnamed product type.
type TupleDef struct {
	Fields []TypeID
}

// Field is a single member of a Composite or a Variant arm. Name may be
// empty for tuple-style composites.
type Field struct {
	Name string
	Type TypeID
}

// CompositeDef describes a struct-like product type. Fields encode in
// declared order regardless of names.
type CompositeDef struct {
	Fields []Field
}

// VariantArm is one arm of a tagged union. Index is the discriminant
// byte that precedes the arm's fields on the wire.
type VariantArm struct {
	Name   string
	Index  uint8
	Fields []Field
}

// VariantDef describes a tagged union.
type VariantDef struct {
	Arms []VariantArm
}

// Arm returns the arm with the given name, or nil.
func (d VariantDef) Arm(name string) *VariantArm {
	for i := range d.Arms {
		if d.Arms[i].Name == name {
			return &d.Arms[i]
		}
	}
	return nil
}

// ArmByIndex returns the arm with the given discriminant, or nil.
func (d VariantDef) ArmByIndex(index uint8) *VariantArm {
	for i := range d.Arms {
		if d.Arms[i].Index == index {
			return &d.Arms[i]
		}
	}
	return nil
}

// BitSequenceDef describes a packed boolean sequence. Store is the
// integer kind the node declares as the backing store; Order is the bit
// fill order within each store unit.
type BitSequenceDef struct {
	Store PrimitiveKind
	Order BitOrder
}

func (PrimitiveDef) isTypeDef()   {}
func (CompactDef) isTypeDef()     {}
func (SequenceDef) isTypeDef()    {}
func (ArrayDef) isTypeDef()       {}
func (TupleDef) isTypeDef()       {}
func (CompositeDef) isTypeDef()   {}
func (VariantDef) isTypeDef()     {}
func (BitSequenceDef) isTypeDef() {}

// Type is one registry entry: an optional path (the node's name for the
// type, cosmetic only) plus the structural definition.
type Type struct {
	Path []string
	Def  TypeDef
	Docs []string
}

// Name returns the last path segment, or "" for anonymous types.
func (t *Type) Name() string {
	if len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// references returns every TypeID the definition points at directly.
func references(def TypeDef) []TypeID {
	switch d := def.(type) {
	case PrimitiveDef, BitSequenceDef:
		return nil
	case CompactDef:
		return []TypeID{d.Inner}
	case SequenceDef:
		return []TypeID{d.Inner}
	case ArrayDef:
		return []TypeID{d.Inner}
	case TupleDef:
		return d.Fields
	case CompositeDef:
		ids := make([]TypeID, 0, len(d.Fields))
		for _, f := range d.Fields {
			ids = append(ids, f.Type)
		}
		return ids
	case VariantDef:
		var ids []TypeID
		for _, arm := range d.Arms {
			for _, f := range arm.Fields {
				ids = append(ids, f.Type)
			}
		}
		return ids
	default:
		return nil
	}
}
