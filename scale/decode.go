package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/palletbridge/palletbridge/types"
)

// Decode deserializes a value of the given type from data, returning
// the value and the number of bytes consumed. Trailing bytes are left
// for the caller, which lets several back-to-back values be decoded by
// composition.
func Decode(data []byte, id types.TypeID, reg *types.Registry) (Value, int, error) {
	r := NewReader(data)
	v, err := DecodeFrom(r, id, reg)
	if err != nil {
		return Value{}, r.Offset(), err
	}
	return v, r.Offset(), nil
}

// DecodeFrom deserializes a value of the given type from the reader,
// consuming exactly the bytes the shape requires.
func DecodeFrom(r *Reader, id types.TypeID, reg *types.Registry) (Value, error) {
	d := decoder{reg: reg, r: r}
	return d.decode(id, 0)
}

type decoder struct {
	reg *types.Registry
	r   *Reader
}

func (d *decoder) decode(id types.TypeID, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: at type %d", ErrDepthLimit, id)
	}
	t, err := d.reg.Resolve(id)
	if err != nil {
		return Value{}, err
	}

	switch def := t.Def.(type) {
	case types.PrimitiveDef:
		return d.decodePrimitive(def.Kind)

	case types.CompactDef:
		return d.decodeCompact(def.Inner)

	case types.SequenceDef:
		count, err := DecodeCompactUint(d.r)
		if err != nil {
			return Value{}, err
		}
		// Every element occupies at least one byte, so a count beyond
		// the remaining input can never decode. Checking up front keeps
		// hostile length prefixes from driving allocation.
		if count > uint64(d.r.Remaining()) {
			return Value{}, fmt.Errorf("%w: sequence count %d exceeds %d remaining bytes", ErrUnexpectedEOF, count, d.r.Remaining())
		}
		if count == 0 {
			return Sequence(), nil
		}
		elems := make([]Value, 0, count)
		for i := uint64(0); i < count; i++ {
			elem, err := d.decode(def.Inner, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("sequence element %d: %w", i, err)
			}
			elems = append(elems, elem)
		}
		return Sequence(elems...), nil

	case types.ArrayDef:
		if def.Len == 0 {
			return Tuple(), nil
		}
		// The declared length comes from node metadata, so it gets the
		// same treatment as a sequence count: every non-zero-width
		// element needs at least one byte. Zero-width elements consume
		// no input and escape that check entirely, so they are capped
		// outright.
		if d.zeroWidth(def.Inner, depth) {
			if uint64(def.Len) > maxZeroWidthLen {
				return Value{}, fmt.Errorf("%w: array of %d zero-width elements", ErrLengthLimit, def.Len)
			}
		} else if uint64(def.Len) > uint64(d.r.Remaining()) {
			return Value{}, fmt.Errorf("%w: array length %d exceeds %d remaining bytes", ErrUnexpectedEOF, def.Len, d.r.Remaining())
		}
		elems := make([]Value, 0, def.Len)
		for i := uint32(0); i < def.Len; i++ {
			elem, err := d.decode(def.Inner, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("array element %d: %w", i, err)
			}
			elems = append(elems, elem)
		}
		return Tuple(elems...), nil

	case types.TupleDef:
		if len(def.Fields) == 0 {
			return Tuple(), nil
		}
		elems := make([]Value, 0, len(def.Fields))
		for i, fid := range def.Fields {
			elem, err := d.decode(fid, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("tuple element %d: %w", i, err)
			}
			elems = append(elems, elem)
		}
		return Tuple(elems...), nil

	case types.CompositeDef:
		fields, err := d.decodeFields(def.Fields, depth)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindComposite, Fields: fields}, nil

	case types.VariantDef:
		tag, err := d.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		arm := def.ArmByIndex(tag)
		if arm == nil {
			return Value{}, fmt.Errorf("%w: tag %d on type %d", ErrInvalidDiscriminant, tag, id)
		}
		fields, err := d.decodeFields(arm.Fields, depth)
		if err != nil {
			return Value{}, fmt.Errorf("variant %s: %w", arm.Name, err)
		}
		return Value{Kind: KindVariant, Name: arm.Name, Fields: fields}, nil

	case types.BitSequenceDef:
		if def.Store != types.KindU8 {
			return Value{}, fmt.Errorf("%w: bit sequence store %s is not supported", ErrShapeMismatch, def.Store)
		}
		return d.decodeBits(def.Order)

	default:
		return Value{}, fmt.Errorf("%w: type %d has unsupported definition %T", ErrShapeMismatch, id, t.Def)
	}
}

func (d *decoder) decodeFields(defs []types.Field, depth int) ([]Field, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	fields := make([]Field, 0, len(defs))
	for i, f := range defs {
		fv, err := d.decode(f.Type, depth+1)
		if err != nil {
			if f.Name != "" {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields = append(fields, Field{Name: f.Name, Value: fv})
	}
	return fields, nil
}

func (d *decoder) decodePrimitive(kind types.PrimitiveKind) (Value, error) {
	switch kind {
	case types.KindBool:
		b, err := d.r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		switch b {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		default:
			return Value{}, fmt.Errorf("%w: invalid bool byte %#x", ErrShapeMismatch, b)
		}

	case types.KindString:
		s, err := DecodeString(d.r)
		if err != nil {
			return Value{}, err
		}
		return Str(s), nil

	case types.KindU8, types.KindU16, types.KindU32, types.KindU64:
		u, err := d.readUintLE(kind.Bits() / 8)
		if err != nil {
			return Value{}, err
		}
		return U64(u), nil

	case types.KindI8, types.KindI16, types.KindI32, types.KindI64:
		u, err := d.readUintLE(kind.Bits() / 8)
		if err != nil {
			return Value{}, err
		}
		return I64(signExtend(u, kind.Bits())), nil

	case types.KindU128, types.KindI128:
		raw, err := d.r.ReadBytes(16)
		if err != nil {
			return Value{}, err
		}
		be := make([]byte, 16)
		for i, b := range raw {
			be[15-i] = b
		}
		v := new(big.Int).SetBytes(be)
		if kind == types.KindI128 && v.BitLen() == 128 {
			v.Sub(v, new(big.Int).Lsh(big.NewInt(1), 128))
		}
		return Big(v), nil

	default:
		return Value{}, fmt.Errorf("%w: unsupported primitive kind %s", ErrShapeMismatch, kind)
	}
}

func (d *decoder) decodeCompact(inner types.TypeID) (Value, error) {
	t, err := d.reg.Resolve(inner)
	if err != nil {
		return Value{}, err
	}
	prim, ok := t.Def.(types.PrimitiveDef)
	if !ok || prim.Kind.Bits() == 0 || prim.Kind.Signed() {
		return Value{}, fmt.Errorf("%w: compact inner type %d is not an unsigned integer", ErrShapeMismatch, inner)
	}

	small, wide, err := DecodeCompact(d.r)
	if err != nil {
		return Value{}, err
	}
	if wide != nil {
		if wide.BitLen() > prim.Kind.Bits() {
			return Value{}, fmt.Errorf("%w: %s overflows compact<%s>", ErrInvalidCompact, wide, prim.Kind)
		}
		return Big(wide), nil
	}
	if bits := prim.Kind.Bits(); bits < 64 && small >= uint64(1)<<bits {
		return Value{}, fmt.Errorf("%w: %d overflows compact<%s>", ErrInvalidCompact, small, prim.Kind)
	}
	return U64(small), nil
}

func (d *decoder) decodeBits(order types.BitOrder) (Value, error) {
	count, err := DecodeCompactUint(d.r)
	if err != nil {
		return Value{}, err
	}
	byteLen := (count + 7) / 8
	if byteLen > uint64(d.r.Remaining()) {
		return Value{}, fmt.Errorf("%w: bit sequence of %d bits exceeds %d remaining bytes", ErrUnexpectedEOF, count, d.r.Remaining())
	}
	packed, err := d.r.ReadBytes(int(byteLen))
	if err != nil {
		return Value{}, err
	}
	bits := make([]bool, count)
	for i := range bits {
		if order == types.Msb0 {
			bits[i] = packed[i/8]&(1<<(7-uint(i%8))) != 0
		} else {
			bits[i] = packed[i/8]&(1<<uint(i%8)) != 0
		}
	}
	return Value{Kind: KindBits, Bits: bits}, nil
}

func (d *decoder) readUintLE(byteLen int) (uint64, error) {
	raw, err := d.r.ReadBytes(byteLen)
	if err != nil {
		return 0, err
	}
	var tmp [8]byte
	copy(tmp[:], raw)
	return binary.LittleEndian.Uint64(tmp[:]), nil
}

func signExtend(u uint64, bits int) int64 {
	if bits == 64 {
		return int64(u)
	}
	shift := 64 - uint(bits)
	return int64(u<<shift) >> shift
}

// zeroWidth reports whether a value of the type encodes to zero bytes.
// Only tuples, composites and arrays can be empty all the way down;
// every other shape carries at least a tag, count or payload byte.
func (d *decoder) zeroWidth(id types.TypeID, depth int) bool {
	if depth > maxDepth {
		return false
	}
	t, err := d.reg.Resolve(id)
	if err != nil {
		return false
	}
	switch def := t.Def.(type) {
	case types.TupleDef:
		for _, fid := range def.Fields {
			if !d.zeroWidth(fid, depth+1) {
				return false
			}
		}
		return true
	case types.CompositeDef:
		for _, f := range def.Fields {
			if !d.zeroWidth(f.Type, depth+1) {
				return false
			}
		}
		return true
	case types.ArrayDef:
		return def.Len == 0 || d.zeroWidth(def.Inner, depth+1)
	default:
		return false
	}
}
