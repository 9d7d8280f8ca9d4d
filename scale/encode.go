package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/palletbridge/palletbridge/types"
)

// Encode serializes v against the descriptor registered under id.
// Dispatch is purely on the descriptor; v's shape must structurally
// match or the call fails with ErrShapeMismatch.
func Encode(v Value, id types.TypeID, reg *types.Registry) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, v, id, reg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo appends the encoding of v to buf. Callers composing several
// back-to-back values (call arguments, storage keys) share one buffer.
func EncodeTo(buf *bytes.Buffer, v Value, id types.TypeID, reg *types.Registry) error {
	e := encoder{reg: reg, buf: buf}
	return e.encode(v, id, 0)
}

type encoder struct {
	reg *types.Registry
	buf *bytes.Buffer
}

func (e *encoder) encode(v Value, id types.TypeID, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: at type %d", ErrDepthLimit, id)
	}
	t, err := e.reg.Resolve(id)
	if err != nil {
		return err
	}

	switch def := t.Def.(type) {
	case types.PrimitiveDef:
		return e.encodePrimitive(v, def.Kind)

	case types.CompactDef:
		return e.encodeCompact(v, def.Inner)

	case types.SequenceDef:
		if v.Kind != KindSequence {
			return fmt.Errorf("%w: sequence type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		AppendCompact(e.buf, uint64(len(v.List)))
		for i, elem := range v.List {
			if err := e.encode(elem, def.Inner, depth+1); err != nil {
				return fmt.Errorf("sequence element %d: %w", i, err)
			}
		}
		return nil

	case types.ArrayDef:
		if v.Kind != KindTuple && v.Kind != KindSequence {
			return fmt.Errorf("%w: array type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		if uint32(len(v.List)) != def.Len {
			return fmt.Errorf("%w: array type %d wants %d elements, value has %d", ErrShapeMismatch, id, def.Len, len(v.List))
		}
		for i, elem := range v.List {
			if err := e.encode(elem, def.Inner, depth+1); err != nil {
				return fmt.Errorf("array element %d: %w", i, err)
			}
		}
		return nil

	case types.TupleDef:
		if v.Kind != KindTuple {
			return fmt.Errorf("%w: tuple type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		if len(v.List) != len(def.Fields) {
			return fmt.Errorf("%w: tuple type %d wants %d elements, value has %d", ErrShapeMismatch, id, len(def.Fields), len(v.List))
		}
		for i, elem := range v.List {
			if err := e.encode(elem, def.Fields[i], depth+1); err != nil {
				return fmt.Errorf("tuple element %d: %w", i, err)
			}
		}
		return nil

	case types.CompositeDef:
		if v.Kind != KindComposite {
			return fmt.Errorf("%w: composite type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		return e.encodeFields(v.Fields, def.Fields, depth)

	case types.VariantDef:
		if v.Kind != KindVariant {
			return fmt.Errorf("%w: variant type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		arm := def.Arm(v.Name)
		if arm == nil {
			return fmt.Errorf("%w: %q on type %d", ErrUnknownVariant, v.Name, id)
		}
		e.buf.WriteByte(arm.Index)
		if err := e.encodeFields(v.Fields, arm.Fields, depth); err != nil {
			return fmt.Errorf("variant %s: %w", arm.Name, err)
		}
		return nil

	case types.BitSequenceDef:
		if def.Store != types.KindU8 {
			return fmt.Errorf("%w: bit sequence store %s is not supported", ErrShapeMismatch, def.Store)
		}
		if v.Kind != KindBits {
			return fmt.Errorf("%w: bit sequence type %d given %s value", ErrShapeMismatch, id, v.Kind)
		}
		appendBits(e.buf, v.Bits, def.Order)
		return nil

	default:
		return fmt.Errorf("%w: type %d has unsupported definition %T", ErrShapeMismatch, id, t.Def)
	}
}

// encodeFields encodes value fields against descriptor fields in
// declared order. When both sides are fully named, value fields are
// matched by name so callers need not mirror declaration order.
func (e *encoder) encodeFields(vals []Field, defs []types.Field, depth int) error {
	if len(vals) != len(defs) {
		return fmt.Errorf("%w: want %d fields, value has %d", ErrShapeMismatch, len(defs), len(vals))
	}
	byName := len(defs) > 0
	for _, f := range defs {
		if f.Name == "" {
			byName = false
			break
		}
	}
	if byName {
		for _, vf := range vals {
			if vf.Name == "" {
				byName = false
				break
			}
		}
	}

	for i, f := range defs {
		fv := vals[i].Value
		if byName {
			found := false
			for _, vf := range vals {
				if vf.Name == f.Name {
					fv = vf.Value
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: missing field %q", ErrShapeMismatch, f.Name)
			}
		}
		if err := e.encode(fv, f.Type, depth+1); err != nil {
			if f.Name != "" {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

func (e *encoder) encodePrimitive(v Value, kind types.PrimitiveKind) error {
	switch kind {
	case types.KindBool:
		if v.Kind != KindBool {
			return fmt.Errorf("%w: bool wants bool value, got %s", ErrShapeMismatch, v.Kind)
		}
		if v.Bool {
			e.buf.WriteByte(1)
		} else {
			e.buf.WriteByte(0)
		}
		return nil

	case types.KindString:
		if v.Kind != KindString {
			return fmt.Errorf("%w: str wants string value, got %s", ErrShapeMismatch, v.Kind)
		}
		AppendString(e.buf, v.Str)
		return nil

	case types.KindU8, types.KindU16, types.KindU32, types.KindU64:
		u, err := v.asUint(kind.Bits())
		if err != nil {
			return err
		}
		writeUintLE(e.buf, u, kind.Bits()/8)
		return nil

	case types.KindI8, types.KindI16, types.KindI32, types.KindI64:
		i, err := v.asInt(kind.Bits())
		if err != nil {
			return err
		}
		writeUintLE(e.buf, uint64(i), kind.Bits()/8)
		return nil

	case types.KindU128, types.KindI128:
		return e.encode128(v, kind)

	default:
		return fmt.Errorf("%w: unsupported primitive kind %s", ErrShapeMismatch, kind)
	}
}

func (e *encoder) encode128(v Value, kind types.PrimitiveKind) error {
	w := new(big.Int)
	switch v.Kind {
	case KindUint:
		w.SetUint64(v.Uint)
	case KindInt:
		if !kind.Signed() && v.Int < 0 {
			return fmt.Errorf("%w: negative value for %s", ErrShapeMismatch, kind)
		}
		w.SetInt64(v.Int)
	case KindBig:
		w.Set(v.Big)
	default:
		return fmt.Errorf("%w: %s wants integer value, got %s", ErrShapeMismatch, kind, v.Kind)
	}

	if kind.Signed() {
		lo := new(big.Int).Lsh(big.NewInt(-1), 127)
		hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
		if w.Cmp(lo) < 0 || w.Cmp(hi) > 0 {
			return fmt.Errorf("%w: %s out of range for i128", ErrShapeMismatch, w)
		}
		if w.Sign() < 0 {
			w.Add(w, new(big.Int).Lsh(big.NewInt(1), 128))
		}
	} else {
		if w.Sign() < 0 || w.BitLen() > 128 {
			return fmt.Errorf("%w: %s out of range for u128", ErrShapeMismatch, w)
		}
	}

	raw := w.Bytes() // big-endian
	var out [16]byte
	for i, b := range raw {
		out[len(raw)-1-i] = b
	}
	e.buf.Write(out[:])
	return nil
}

func (e *encoder) encodeCompact(v Value, inner types.TypeID) error {
	t, err := e.reg.Resolve(inner)
	if err != nil {
		return err
	}
	prim, ok := t.Def.(types.PrimitiveDef)
	if !ok || prim.Kind.Bits() == 0 || prim.Kind.Signed() {
		return fmt.Errorf("%w: compact inner type %d is not an unsigned integer", ErrShapeMismatch, inner)
	}

	switch v.Kind {
	case KindUint:
		if bits := prim.Kind.Bits(); bits < 64 && v.Uint >= uint64(1)<<bits {
			return fmt.Errorf("%w: %d out of range for compact<%s>", ErrShapeMismatch, v.Uint, prim.Kind)
		}
		AppendCompact(e.buf, v.Uint)
		return nil
	case KindBig:
		if v.Big.Sign() < 0 || v.Big.BitLen() > prim.Kind.Bits() {
			return fmt.Errorf("%w: %s out of range for compact<%s>", ErrShapeMismatch, v.Big, prim.Kind)
		}
		return AppendCompactBig(e.buf, v.Big)
	default:
		return fmt.Errorf("%w: compact wants integer value, got %s", ErrShapeMismatch, v.Kind)
	}
}

func (v Value) asUint(bits int) (uint64, error) {
	var u uint64
	switch v.Kind {
	case KindUint:
		u = v.Uint
	case KindBig:
		if v.Big.Sign() < 0 || !v.Big.IsUint64() {
			return 0, fmt.Errorf("%w: %s out of range for u%d", ErrShapeMismatch, v.Big, bits)
		}
		u = v.Big.Uint64()
	default:
		return 0, fmt.Errorf("%w: u%d wants unsigned value, got %s", ErrShapeMismatch, bits, v.Kind)
	}
	if bits < 64 && u >= uint64(1)<<bits {
		return 0, fmt.Errorf("%w: %d out of range for u%d", ErrShapeMismatch, u, bits)
	}
	return u, nil
}

func (v Value) asInt(bits int) (int64, error) {
	var i int64
	switch v.Kind {
	case KindInt:
		i = v.Int
	case KindUint:
		if v.Uint > uint64(1)<<63-1 {
			return 0, fmt.Errorf("%w: %d out of range for i%d", ErrShapeMismatch, v.Uint, bits)
		}
		i = int64(v.Uint)
	case KindBig:
		if !v.Big.IsInt64() {
			return 0, fmt.Errorf("%w: %s out of range for i%d", ErrShapeMismatch, v.Big, bits)
		}
		i = v.Big.Int64()
	default:
		return 0, fmt.Errorf("%w: i%d wants signed value, got %s", ErrShapeMismatch, bits, v.Kind)
	}
	if bits < 64 {
		limit := int64(1) << (bits - 1)
		if i < -limit || i >= limit {
			return 0, fmt.Errorf("%w: %d out of range for i%d", ErrShapeMismatch, i, bits)
		}
	}
	return i, nil
}

func writeUintLE(buf *bytes.Buffer, v uint64, byteLen int) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:byteLen])
}

// appendBits packs bits into bytes after a compact bit-count prefix.
// Only u8 stores reach here; wider stores pad the wire to whole store
// units and are rejected at dispatch.
func appendBits(buf *bytes.Buffer, bits []bool, order types.BitOrder) {
	AppendCompact(buf, uint64(len(bits)))
	bytesLen := (len(bits) + 7) / 8
	packed := make([]byte, bytesLen)
	for i, bit := range bits {
		if !bit {
			continue
		}
		if order == types.Msb0 {
			packed[i/8] |= 1 << (7 - uint(i%8))
		} else {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	buf.Write(packed)
}
