package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/palletbridge/palletbridge/scale"
	"github.com/palletbridge/palletbridge/types"
)

// The node's metadata blob is itself SCALE-encoded over a well-known
// meta-schema: a magic number, a format version, the portable type
// registry, and the pallet catalog. This decoder handles format
// version 14.

const (
	metadataMagic    = 0x6d657461 // "meta"
	maxDecodedFields = 1 << 16
)

// SupportedFormat is the metadata format version the decoder accepts.
const SupportedFormat = 14

// Decode parses a node's metadata blob into an immutable snapshot.
func Decode(data []byte) (*Metadata, error) {
	r := scale.NewReader(data)

	raw, err := r.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if magic := binary.LittleEndian.Uint32(raw); magic != metadataMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidMetadata, magic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if version != SupportedFormat {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrInvalidMetadata, version)
	}

	d := metaDecoder{r: r}
	rawTypes, err := d.decodePortableRegistry()
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistry(rawTypes)
	if err != nil {
		return nil, err
	}
	pallets, err := d.decodePallets(rawTypes)
	if err != nil {
		return nil, err
	}
	if err := d.skipExtrinsic(); err != nil {
		return nil, err
	}
	// Top-level runtime type id.
	if _, err := scale.DecodeCompactUint(r); err != nil {
		return nil, fmt.Errorf("%w: runtime type: %v", ErrInvalidMetadata, err)
	}

	return New(reg, pallets)
}

// rawType is a portable registry entry before conversion, kept around
// so bit-sequence store/order references and call/event variant types
// can be resolved after the whole registry is read.
type rawType struct {
	path []string
	def  types.TypeDef
	docs []string

	// Only for bit sequences: unresolved store/order type references.
	isBitSeq     bool
	bitStoreType types.TypeID
	bitOrderType types.TypeID
}

type metaDecoder struct {
	r *scale.Reader
}

func (d *metaDecoder) count(what string) (int, error) {
	n, err := scale.DecodeCompactUint(d.r)
	if err != nil {
		return 0, fmt.Errorf("%w: %s count: %v", ErrInvalidMetadata, what, err)
	}
	if n > uint64(d.r.Remaining()) {
		return 0, fmt.Errorf("%w: %s count %d exceeds remaining input", ErrInvalidMetadata, what, n)
	}
	return int(n), nil
}

func (d *metaDecoder) str(what string) (string, error) {
	s, err := scale.DecodeString(d.r)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidMetadata, what, err)
	}
	return s, nil
}

func (d *metaDecoder) strs(what string) ([]string, error) {
	n, err := d.count(what)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.str(what)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *metaDecoder) typeID(what string) (types.TypeID, error) {
	id, err := scale.DecodeCompactUint(d.r)
	if err != nil {
		return 0, fmt.Errorf("%w: %s type id: %v", ErrInvalidMetadata, what, err)
	}
	if id > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: %s type id %d overflows u32", ErrInvalidMetadata, what, id)
	}
	return types.TypeID(id), nil
}

func (d *metaDecoder) option(what string) (bool, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("%w: %s option: %v", ErrInvalidMetadata, what, err)
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s option tag %d", ErrInvalidMetadata, what, tag)
	}
}

func (d *metaDecoder) byteVec(what string) ([]byte, error) {
	n, err := d.count(what)
	if err != nil {
		return nil, err
	}
	raw, err := d.r.ReadBytes(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMetadata, what, err)
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

func (d *metaDecoder) decodePortableRegistry() (map[types.TypeID]*rawType, error) {
	n, err := d.count("registry")
	if err != nil {
		return nil, err
	}
	out := make(map[types.TypeID]*rawType, n)
	for i := 0; i < n; i++ {
		id, err := d.typeID("registry entry")
		if err != nil {
			return nil, err
		}
		rt, err := d.decodeType()
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", id, err)
		}
		out[id] = rt
	}
	return out, nil
}

func (d *metaDecoder) decodeType() (*rawType, error) {
	path, err := d.strs("type path")
	if err != nil {
		return nil, err
	}
	// Type parameters are cosmetic at this level; read and drop them.
	nParams, err := d.count("type params")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nParams; i++ {
		if _, err := d.str("type param name"); err != nil {
			return nil, err
		}
		some, err := d.option("type param")
		if err != nil {
			return nil, err
		}
		if some {
			if _, err := d.typeID("type param"); err != nil {
				return nil, err
			}
		}
	}

	rt := &rawType{path: path}
	tag, err := d.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: type def tag: %v", ErrInvalidMetadata, err)
	}
	switch tag {
	case 0: // composite
		fields, err := d.decodeFields()
		if err != nil {
			return nil, err
		}
		rt.def = types.CompositeDef{Fields: fields}
	case 1: // variant
		arms, err := d.decodeVariantArms()
		if err != nil {
			return nil, err
		}
		rt.def = types.VariantDef{Arms: arms}
	case 2: // sequence
		inner, err := d.typeID("sequence")
		if err != nil {
			return nil, err
		}
		rt.def = types.SequenceDef{Inner: inner}
	case 3: // array
		raw, err := d.r.ReadBytes(4)
		if err != nil {
			return nil, fmt.Errorf("%w: array len: %v", ErrInvalidMetadata, err)
		}
		inner, err := d.typeID("array")
		if err != nil {
			return nil, err
		}
		rt.def = types.ArrayDef{Len: binary.LittleEndian.Uint32(raw), Inner: inner}
	case 4: // tuple
		n, err := d.count("tuple")
		if err != nil {
			return nil, err
		}
		ids := make([]types.TypeID, 0, n)
		for i := 0; i < n; i++ {
			id, err := d.typeID("tuple element")
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		rt.def = types.TupleDef{Fields: ids}
	case 5: // primitive
		kindByte, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: primitive kind: %v", ErrInvalidMetadata, err)
		}
		kind, err := primitiveKind(kindByte)
		if err != nil {
			return nil, err
		}
		rt.def = types.PrimitiveDef{Kind: kind}
	case 6: // compact
		inner, err := d.typeID("compact")
		if err != nil {
			return nil, err
		}
		rt.def = types.CompactDef{Inner: inner}
	case 7: // bit sequence
		store, err := d.typeID("bit store")
		if err != nil {
			return nil, err
		}
		order, err := d.typeID("bit order")
		if err != nil {
			return nil, err
		}
		rt.isBitSeq = true
		rt.bitStoreType = store
		rt.bitOrderType = order
	default:
		return nil, fmt.Errorf("%w: type def tag %d", ErrInvalidMetadata, tag)
	}

	rt.docs, err = d.strs("type docs")
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (d *metaDecoder) decodeFields() ([]types.Field, error) {
	n, err := d.count("fields")
	if err != nil {
		return nil, err
	}
	if n > maxDecodedFields {
		return nil, fmt.Errorf("%w: field count %d", ErrInvalidMetadata, n)
	}
	var fields []types.Field
	for i := 0; i < n; i++ {
		var name string
		named, err := d.option("field name")
		if err != nil {
			return nil, err
		}
		if named {
			name, err = d.str("field name")
			if err != nil {
				return nil, err
			}
		}
		id, err := d.typeID("field")
		if err != nil {
			return nil, err
		}
		// type_name, docs
		hasTypeName, err := d.option("field type name")
		if err != nil {
			return nil, err
		}
		if hasTypeName {
			if _, err := d.str("field type name"); err != nil {
				return nil, err
			}
		}
		if _, err := d.strs("field docs"); err != nil {
			return nil, err
		}
		fields = append(fields, types.Field{Name: name, Type: id})
	}
	return fields, nil
}

func (d *metaDecoder) decodeVariantArms() ([]types.VariantArm, error) {
	n, err := d.count("variants")
	if err != nil {
		return nil, err
	}
	var arms []types.VariantArm
	for i := 0; i < n; i++ {
		name, err := d.str("variant name")
		if err != nil {
			return nil, err
		}
		fields, err := d.decodeFields()
		if err != nil {
			return nil, err
		}
		index, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: variant index: %v", ErrInvalidMetadata, err)
		}
		if _, err := d.strs("variant docs"); err != nil {
			return nil, err
		}
		arms = append(arms, types.VariantArm{Name: name, Index: index, Fields: fields})
	}
	return arms, nil
}

func primitiveKind(b byte) (types.PrimitiveKind, error) {
	switch b {
	case 0:
		return types.KindBool, nil
	case 2:
		return types.KindString, nil
	case 3:
		return types.KindU8, nil
	case 4:
		return types.KindU16, nil
	case 5:
		return types.KindU32, nil
	case 6:
		return types.KindU64, nil
	case 7:
		return types.KindU128, nil
	case 9:
		return types.KindI8, nil
	case 10:
		return types.KindI16, nil
	case 11:
		return types.KindI32, nil
	case 12:
		return types.KindI64, nil
	case 13:
		return types.KindI128, nil
	default:
		// char, u256 and i256 have no codec support here.
		return 0, fmt.Errorf("%w: unsupported primitive kind %d", ErrInvalidMetadata, b)
	}
}

// buildRegistry converts raw portable types into a validated registry,
// resolving bit-sequence store and order references against the raw
// map so the final descriptors are self-contained.
func buildRegistry(rawTypes map[types.TypeID]*rawType) (*types.Registry, error) {
	entries := make(map[types.TypeID]types.Type, len(rawTypes))
	for id, rt := range rawTypes {
		def := rt.def
		if rt.isBitSeq {
			store, ok := rawTypes[rt.bitStoreType]
			if !ok {
				return nil, fmt.Errorf("%w: bit store type %d missing", ErrInvalidMetadata, rt.bitStoreType)
			}
			prim, ok := store.def.(types.PrimitiveDef)
			if !ok {
				return nil, fmt.Errorf("%w: bit store type %d is not primitive", ErrInvalidMetadata, rt.bitStoreType)
			}
			// Wider stores pad the wire to whole store units, which the
			// codec does not model; reject them like char and u256.
			if prim.Kind != types.KindU8 {
				return nil, fmt.Errorf("%w: unsupported bit store %s", ErrInvalidMetadata, prim.Kind)
			}
			order, ok := rawTypes[rt.bitOrderType]
			if !ok {
				return nil, fmt.Errorf("%w: bit order type %d missing", ErrInvalidMetadata, rt.bitOrderType)
			}
			def = types.BitSequenceDef{Store: prim.Kind, Order: bitOrderFromPath(order.path)}
		}
		entries[id] = types.Type{Path: rt.path, Def: def, Docs: rt.docs}
	}
	return types.NewRegistry(entries)
}

func bitOrderFromPath(path []string) types.BitOrder {
	if len(path) > 0 && path[len(path)-1] == "Msb0" {
		return types.Msb0
	}
	return types.Lsb0
}

func (d *metaDecoder) decodePallets(rawTypes map[types.TypeID]*rawType) ([]Pallet, error) {
	n, err := d.count("pallets")
	if err != nil {
		return nil, err
	}
	pallets := make([]Pallet, 0, n)
	for i := 0; i < n; i++ {
		p, err := d.decodePallet(rawTypes)
		if err != nil {
			return nil, err
		}
		pallets = append(pallets, p)
	}
	return pallets, nil
}

func (d *metaDecoder) decodePallet(rawTypes map[types.TypeID]*rawType) (Pallet, error) {
	var p Pallet
	var err error

	if p.Name, err = d.str("pallet name"); err != nil {
		return p, err
	}

	hasStorage, err := d.option("pallet storage")
	if err != nil {
		return p, err
	}
	if hasStorage {
		if p.StoragePrefix, err = d.str("storage prefix"); err != nil {
			return p, err
		}
		nEntries, err := d.count("storage entries")
		if err != nil {
			return p, err
		}
		for j := 0; j < nEntries; j++ {
			entry, err := d.decodeStorageEntry()
			if err != nil {
				return p, fmt.Errorf("pallet %s: %w", p.Name, err)
			}
			p.Storage = append(p.Storage, entry)
		}
	} else {
		p.StoragePrefix = p.Name
	}

	hasCalls, err := d.option("pallet calls")
	if err != nil {
		return p, err
	}
	if hasCalls {
		callType, err := d.typeID("pallet calls")
		if err != nil {
			return p, err
		}
		if p.Calls, err = callsFromVariantType(rawTypes, callType); err != nil {
			return p, fmt.Errorf("pallet %s: %w", p.Name, err)
		}
	}

	hasEvents, err := d.option("pallet events")
	if err != nil {
		return p, err
	}
	if hasEvents {
		eventType, err := d.typeID("pallet events")
		if err != nil {
			return p, err
		}
		if p.Events, err = variantsFromType(rawTypes, eventType); err != nil {
			return p, fmt.Errorf("pallet %s: %w", p.Name, err)
		}
	}

	nConstants, err := d.count("constants")
	if err != nil {
		return p, err
	}
	for j := 0; j < nConstants; j++ {
		var c Constant
		if c.Name, err = d.str("constant name"); err != nil {
			return p, err
		}
		if c.Type, err = d.typeID("constant"); err != nil {
			return p, err
		}
		if c.Value, err = d.byteVec("constant value"); err != nil {
			return p, err
		}
		if c.Docs, err = d.strs("constant docs"); err != nil {
			return p, err
		}
		p.Constants = append(p.Constants, c)
	}

	hasErrors, err := d.option("pallet errors")
	if err != nil {
		return p, err
	}
	if hasErrors {
		errorType, err := d.typeID("pallet errors")
		if err != nil {
			return p, err
		}
		if p.Errors, err = variantsFromType(rawTypes, errorType); err != nil {
			return p, fmt.Errorf("pallet %s: %w", p.Name, err)
		}
	}

	index, err := d.r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("%w: pallet index: %v", ErrInvalidMetadata, err)
	}
	p.Index = index
	return p, nil
}

func (d *metaDecoder) decodeStorageEntry() (StorageEntry, error) {
	var e StorageEntry
	var err error

	if e.Name, err = d.str("storage name"); err != nil {
		return e, err
	}
	modifier, err := d.r.ReadByte()
	if err != nil {
		return e, fmt.Errorf("%w: storage modifier: %v", ErrInvalidMetadata, err)
	}
	if modifier > 1 {
		return e, fmt.Errorf("%w: storage modifier %d", ErrInvalidMetadata, modifier)
	}
	e.Modifier = StorageModifier(modifier)

	shape, err := d.r.ReadByte()
	if err != nil {
		return e, fmt.Errorf("%w: storage shape: %v", ErrInvalidMetadata, err)
	}
	switch shape {
	case 0: // plain
		if e.Value, err = d.typeID("storage value"); err != nil {
			return e, err
		}
	case 1: // map
		nHashers, err := d.count("storage hashers")
		if err != nil {
			return e, err
		}
		hashers := make([]StorageHasher, 0, nHashers)
		for i := 0; i < nHashers; i++ {
			b, err := d.r.ReadByte()
			if err != nil {
				return e, fmt.Errorf("%w: storage hasher: %v", ErrInvalidMetadata, err)
			}
			if b > byte(HasherIdentity) {
				return e, fmt.Errorf("%w: storage hasher %d", ErrInvalidMetadata, b)
			}
			hashers = append(hashers, StorageHasher(b))
		}
		keyType, err := d.typeID("storage key")
		if err != nil {
			return e, err
		}
		if e.Value, err = d.typeID("storage value"); err != nil {
			return e, err
		}
		e.Keys = storageKeys(hashers, keyType)
	default:
		return e, fmt.Errorf("%w: storage shape tag %d", ErrInvalidMetadata, shape)
	}

	if e.Default, err = d.byteVec("storage default"); err != nil {
		return e, err
	}
	if e.Docs, err = d.strs("storage docs"); err != nil {
		return e, err
	}
	return e, nil
}

// storageKeys pairs each declared hasher with its key type. A single
// hasher covers the whole key type; multiple hashers split a tuple key
// into per-component entries when possible, falling back to hashing the
// whole key with the first hasher otherwise. The split against the
// actual tuple shape happens at resolution time in the client, which
// has the registry at hand; here each hasher is recorded against the
// single declared key type.
func storageKeys(hashers []StorageHasher, keyType types.TypeID) []StorageKey {
	if len(hashers) == 0 {
		return nil
	}
	keys := make([]StorageKey, 0, len(hashers))
	for _, h := range hashers {
		keys = append(keys, StorageKey{Hasher: h, Type: keyType})
	}
	return keys
}

func (d *metaDecoder) skipExtrinsic() error {
	if _, err := d.typeID("extrinsic"); err != nil {
		return err
	}
	if _, err := d.r.ReadByte(); err != nil {
		return fmt.Errorf("%w: extrinsic version: %v", ErrInvalidMetadata, err)
	}
	n, err := d.count("signed extensions")
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := d.str("signed extension id"); err != nil {
			return err
		}
		if _, err := d.typeID("signed extension"); err != nil {
			return err
		}
		if _, err := d.typeID("signed extension additional"); err != nil {
			return err
		}
	}
	return nil
}

func callsFromVariantType(rawTypes map[types.TypeID]*rawType, id types.TypeID) ([]Call, error) {
	arms, err := armsOf(rawTypes, id, "call")
	if err != nil {
		return nil, err
	}
	calls := make([]Call, 0, len(arms))
	for _, arm := range arms {
		c := Call{Name: arm.Name, Index: arm.Index}
		for _, f := range arm.Fields {
			c.Args = append(c.Args, CallArg{Name: f.Name, Type: f.Type})
		}
		calls = append(calls, c)
	}
	return calls, nil
}

func variantsFromType(rawTypes map[types.TypeID]*rawType, id types.TypeID) ([]Variant, error) {
	arms, err := armsOf(rawTypes, id, "event/error")
	if err != nil {
		return nil, err
	}
	vars := make([]Variant, 0, len(arms))
	for _, arm := range arms {
		vars = append(vars, Variant{Name: arm.Name, Index: arm.Index, Fields: arm.Fields})
	}
	return vars, nil
}

func armsOf(rawTypes map[types.TypeID]*rawType, id types.TypeID, what string) ([]types.VariantArm, error) {
	rt, ok := rawTypes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s type %d missing", ErrInvalidMetadata, what, id)
	}
	def, ok := rt.def.(types.VariantDef)
	if !ok {
		return nil, fmt.Errorf("%w: %s type %d is not a variant", ErrInvalidMetadata, what, id)
	}
	return def.Arms, nil
}
