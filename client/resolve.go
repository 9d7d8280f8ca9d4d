package client

import (
	"bytes"
	"fmt"

	"github.com/palletbridge/palletbridge/metadata"
	"github.com/palletbridge/palletbridge/scale"
	"github.com/palletbridge/palletbridge/types"
)

// Every operation follows the same template: locate the metadata entry,
// validate the compatibility hash when one was supplied, then hand the
// declared type ids to the codec engine. Validation failures always win
// over codec work; an operation with a stale hash never reaches the
// encoder.

// EncodeCall resolves a call payload against the snapshot and produces
// the raw call bytes: pallet index, call index, then each argument
// encoded in declared order. Envelope assembly and signing are the
// caller's concern.
func EncodeCall(meta *metadata.Metadata, payload CallPayload) ([]byte, error) {
	p, err := meta.Pallet(payload.Pallet)
	if err != nil {
		return nil, err
	}
	c, err := p.Call(payload.Call)
	if err != nil {
		return nil, err
	}
	if payload.expected != nil {
		live, err := meta.CallHash(payload.Pallet, payload.Call)
		if err != nil {
			return nil, err
		}
		if err := metadata.Validate(*payload.expected, live); err != nil {
			return nil, fmt.Errorf("call %s.%s: %w", payload.Pallet, payload.Call, err)
		}
	}
	if len(payload.Args) != len(c.Args) {
		return nil, fmt.Errorf("%w: call %s.%s wants %d arguments, got %d",
			scale.ErrShapeMismatch, payload.Pallet, payload.Call, len(c.Args), len(payload.Args))
	}

	var buf bytes.Buffer
	buf.WriteByte(p.Index)
	buf.WriteByte(c.Index)
	for i, arg := range payload.Args {
		if err := scale.EncodeTo(&buf, arg, c.Args[i].Type, meta.Registry()); err != nil {
			return nil, fmt.Errorf("call %s.%s argument %s: %w", payload.Pallet, payload.Call, c.Args[i].Name, err)
		}
	}
	return buf.Bytes(), nil
}

// StorageKeyFor resolves a storage address into the byte key the node
// expects, returning the entry descriptor alongside for value decoding.
func StorageKeyFor(meta *metadata.Metadata, addr StorageAddress) ([]byte, *metadata.StorageEntry, error) {
	p, err := meta.Pallet(addr.Pallet)
	if err != nil {
		return nil, nil, err
	}
	e, err := p.StorageEntry(addr.Entry)
	if err != nil {
		return nil, nil, err
	}
	if addr.expected != nil {
		live, err := meta.StorageHash(addr.Pallet, addr.Entry)
		if err != nil {
			return nil, nil, err
		}
		if err := metadata.Validate(*addr.expected, live); err != nil {
			return nil, nil, fmt.Errorf("storage %s.%s: %w", addr.Pallet, addr.Entry, err)
		}
	}

	keys, err := keyComponents(meta, e)
	if err != nil {
		return nil, nil, err
	}
	if len(addr.Args) != len(keys) {
		return nil, nil, fmt.Errorf("%w: storage %s.%s wants %d key arguments, got %d",
			scale.ErrShapeMismatch, addr.Pallet, addr.Entry, len(keys), len(addr.Args))
	}

	key := storagePrefix(p.StoragePrefix, e.Name)
	for i, arg := range addr.Args {
		encoded, err := scale.Encode(arg, keys[i].Type, meta.Registry())
		if err != nil {
			return nil, nil, fmt.Errorf("storage %s.%s key %d: %w", addr.Pallet, addr.Entry, i, err)
		}
		hashed, err := hashKeyComponent(keys[i].Hasher, encoded)
		if err != nil {
			return nil, nil, fmt.Errorf("storage %s.%s key %d: %w", addr.Pallet, addr.Entry, i, err)
		}
		key = append(key, hashed...)
	}
	return key, e, nil
}

// keyComponents returns one (hasher, type) pair per expected key
// argument. Multi-hasher maps declare a single tuple key type; it is
// split here, where the registry is at hand.
func keyComponents(meta *metadata.Metadata, e *metadata.StorageEntry) ([]metadata.StorageKey, error) {
	if len(e.Keys) <= 1 {
		return e.Keys, nil
	}
	t, err := meta.Registry().Resolve(e.Keys[0].Type)
	if err != nil {
		return nil, err
	}
	tuple, ok := t.Def.(types.TupleDef)
	if !ok || len(tuple.Fields) != len(e.Keys) {
		return nil, fmt.Errorf("%w: storage %s declares %d hashers over non-matching key type",
			scale.ErrShapeMismatch, e.Name, len(e.Keys))
	}
	out := make([]metadata.StorageKey, len(e.Keys))
	for i := range e.Keys {
		out[i] = metadata.StorageKey{Hasher: e.Keys[i].Hasher, Type: tuple.Fields[i]}
	}
	return out, nil
}

// DecodeStorageValue decodes a fetched storage value. A nil raw slice
// means the node reported the key absent: entries with a declared
// default fall back to it, optional entries report absence.
func DecodeStorageValue(meta *metadata.Metadata, e *metadata.StorageEntry, raw []byte) (scale.Value, bool, error) {
	if raw == nil {
		if e.Modifier == metadata.ModifierDefault {
			v, _, err := scale.Decode(e.Default, e.Value, meta.Registry())
			if err != nil {
				return scale.Value{}, false, fmt.Errorf("storage %s default: %w", e.Name, err)
			}
			return v, true, nil
		}
		return scale.Value{}, false, nil
	}
	v, _, err := scale.Decode(raw, e.Value, meta.Registry())
	if err != nil {
		return scale.Value{}, false, fmt.Errorf("storage %s value: %w", e.Name, err)
	}
	return v, true, nil
}

// ConstantValue locates and decodes a pallet constant from the bytes
// embedded in the metadata itself. No transport round-trip happens.
func ConstantValue(meta *metadata.Metadata, addr ConstantAddress) (scale.Value, error) {
	p, err := meta.Pallet(addr.Pallet)
	if err != nil {
		return scale.Value{}, err
	}
	c, err := p.Constant(addr.Name)
	if err != nil {
		return scale.Value{}, err
	}
	if addr.expected != nil {
		live, err := meta.ConstantHash(addr.Pallet, addr.Name)
		if err != nil {
			return scale.Value{}, err
		}
		if err := metadata.Validate(*addr.expected, live); err != nil {
			return scale.Value{}, fmt.Errorf("constant %s.%s: %w", addr.Pallet, addr.Name, err)
		}
	}
	v, _, err := scale.Decode(c.Value, c.Type, meta.Registry())
	if err != nil {
		return scale.Value{}, fmt.Errorf("constant %s.%s: %w", addr.Pallet, addr.Name, err)
	}
	return v, nil
}

// Event is one decoded event record.
type Event struct {
	Pallet string
	Name   string
	Fields []scale.Field
}

// DecodeEvent decodes a single raw event record: pallet index byte,
// variant discriminant byte, then the variant's fields in order.
// Returns the event and the number of bytes consumed.
func DecodeEvent(meta *metadata.Metadata, data []byte) (Event, int, error) {
	r := scale.NewReader(data)
	ev, err := decodeEventFrom(meta, r)
	if err != nil {
		return Event{}, r.Offset(), err
	}
	return ev, r.Offset(), nil
}

// DecodeEvents decodes a compact-count-prefixed list of event records,
// the layout the node stores per block.
func DecodeEvents(meta *metadata.Metadata, data []byte) ([]Event, error) {
	r := scale.NewReader(data)
	count, err := scale.DecodeCompactUint(r)
	if err != nil {
		return nil, err
	}
	if count > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: event count %d exceeds %d remaining bytes",
			scale.ErrUnexpectedEOF, count, r.Remaining())
	}
	events := make([]Event, 0, count)
	for i := uint64(0); i < count; i++ {
		ev, err := decodeEventFrom(meta, r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeEventFrom(meta *metadata.Metadata, r *scale.Reader) (Event, error) {
	palletIndex, err := r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	p, err := meta.PalletByIndex(palletIndex)
	if err != nil {
		return Event{}, err
	}
	variantIndex, err := r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	v, err := p.Event(variantIndex)
	if err != nil {
		return Event{}, err
	}

	fields := make([]scale.Field, 0, len(v.Fields))
	for _, f := range v.Fields {
		fv, err := scale.DecodeFrom(r, f.Type, meta.Registry())
		if err != nil {
			return Event{}, fmt.Errorf("event %s.%s field %s: %w", p.Name, v.Name, f.Name, err)
		}
		fields = append(fields, scale.Field{Name: f.Name, Value: fv})
	}
	return Event{Pallet: p.Name, Name: v.Name, Fields: fields}, nil
}

// ModuleError is one decoded module error.
type ModuleError struct {
	Pallet string
	Name   string
	Fields []scale.Field
}

// DecodeModuleError decodes a raw module error: pallet index byte,
// error discriminant byte, then any declared fields.
func DecodeModuleError(meta *metadata.Metadata, data []byte) (ModuleError, error) {
	r := scale.NewReader(data)
	palletIndex, err := r.ReadByte()
	if err != nil {
		return ModuleError{}, err
	}
	p, err := meta.PalletByIndex(palletIndex)
	if err != nil {
		return ModuleError{}, err
	}
	variantIndex, err := r.ReadByte()
	if err != nil {
		return ModuleError{}, err
	}
	v, err := p.Error(variantIndex)
	if err != nil {
		return ModuleError{}, err
	}

	fields := make([]scale.Field, 0, len(v.Fields))
	for _, f := range v.Fields {
		fv, err := scale.DecodeFrom(r, f.Type, meta.Registry())
		if err != nil {
			return ModuleError{}, fmt.Errorf("error %s.%s field %s: %w", p.Name, v.Name, f.Name, err)
		}
		fields = append(fields, scale.Field{Name: f.Name, Value: fv})
	}
	return ModuleError{Pallet: p.Name, Name: v.Name, Fields: fields}, nil
}
