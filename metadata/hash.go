package metadata

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/palletbridge/palletbridge/types"
)

// Hash is a compatibility hash over a metadata entry's fully resolved
// type shape. Equal hashes guarantee the codec engine produces
// identical bytes for the entry under both snapshots; unequal hashes
// mean the entry is wire-incompatible (or was never compatible).
type Hash [32]byte

// String returns the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Validate compares an expected hash (from a precompiled descriptor)
// against the live one, surfacing ErrIncompatibleMetadata on mismatch.
func Validate(expected, actual Hash) error {
	if expected != actual {
		return fmt.Errorf("%w: descriptor hash %s, live hash %s", ErrIncompatibleMetadata, expected, actual)
	}
	return nil
}

// Tag bytes for the canonical serialization fed to the hasher. The
// layout only needs to be deterministic and injective; it is not a wire
// format and never leaves the process.
const (
	hashTagPrimitive byte = iota + 1
	hashTagCompact
	hashTagSequence
	hashTagArray
	hashTagTuple
	hashTagComposite
	hashTagVariant
	hashTagBitSeq
	hashTagRecurse
	hashTagCall
	hashTagStorage
	hashTagConstant
	hashTagVariantSet
	hashTagPallet
	hashTagMetadata
)

// shapeHasher streams the canonical serialization of resolved type
// shapes into a blake2b-256 digest. Type ids never enter the stream;
// every id is substituted with its resolved descriptor, so registries
// that renumber structurally identical types hash identically.
type shapeHasher struct {
	reg *types.Registry
	h   hash.Hash

	// visiting maps a type id to its position on the current expansion
	// path. A revisited id is emitted as a back-reference to that
	// position, which breaks cycles while staying renumbering-stable.
	visiting map[types.TypeID]uint32
	depth    uint32
}

func newShapeHasher(reg *types.Registry) *shapeHasher {
	h, _ := blake2b.New256(nil)
	return &shapeHasher{reg: reg, h: h, visiting: make(map[types.TypeID]uint32)}
}

func (s *shapeHasher) sum() Hash {
	var out Hash
	copy(out[:], s.h.Sum(nil))
	return out
}

func (s *shapeHasher) writeByte(b byte) {
	s.h.Write([]byte{b})
}

func (s *shapeHasher) writeU32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	s.h.Write(tmp[:])
}

func (s *shapeHasher) writeBytes(b []byte) {
	s.writeU32(uint32(len(b)))
	s.h.Write(b)
}

// writeType streams the resolved shape of id. Field and variant names
// and docs are deliberately excluded; discriminants, field order and
// nested shapes are included.
func (s *shapeHasher) writeType(id types.TypeID) error {
	if pos, ok := s.visiting[id]; ok {
		s.writeByte(hashTagRecurse)
		s.writeU32(s.depth - pos)
		return nil
	}
	t, err := s.reg.Resolve(id)
	if err != nil {
		return err
	}
	s.visiting[id] = s.depth
	s.depth++
	defer func() {
		s.depth--
		delete(s.visiting, id)
	}()

	switch def := t.Def.(type) {
	case types.PrimitiveDef:
		s.writeByte(hashTagPrimitive)
		s.writeByte(byte(def.Kind))
	case types.CompactDef:
		s.writeByte(hashTagCompact)
		return s.writeType(def.Inner)
	case types.SequenceDef:
		s.writeByte(hashTagSequence)
		return s.writeType(def.Inner)
	case types.ArrayDef:
		s.writeByte(hashTagArray)
		s.writeU32(def.Len)
		return s.writeType(def.Inner)
	case types.TupleDef:
		s.writeByte(hashTagTuple)
		s.writeU32(uint32(len(def.Fields)))
		for _, fid := range def.Fields {
			if err := s.writeType(fid); err != nil {
				return err
			}
		}
	case types.CompositeDef:
		s.writeByte(hashTagComposite)
		s.writeU32(uint32(len(def.Fields)))
		for _, f := range def.Fields {
			if err := s.writeType(f.Type); err != nil {
				return err
			}
		}
	case types.VariantDef:
		s.writeByte(hashTagVariant)
		s.writeU32(uint32(len(def.Arms)))
		for _, arm := range def.Arms {
			s.writeByte(arm.Index)
			s.writeU32(uint32(len(arm.Fields)))
			for _, f := range arm.Fields {
				if err := s.writeType(f.Type); err != nil {
					return err
				}
			}
		}
	case types.BitSequenceDef:
		s.writeByte(hashTagBitSeq)
		s.writeByte(byte(def.Store))
		s.writeByte(byte(def.Order))
	default:
		return fmt.Errorf("%w: unhashable definition %T", types.ErrUnknownType, t.Def)
	}
	return nil
}

func (s *shapeHasher) writeVariants(vars []Variant) error {
	s.writeU32(uint32(len(vars)))
	for _, v := range vars {
		s.writeByte(v.Index)
		s.writeU32(uint32(len(v.Fields)))
		for _, f := range v.Fields {
			if err := s.writeType(f.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// CallHash computes the compatibility hash of one call: the pallet and
// call discriminants plus every argument's resolved shape in order.
func (m *Metadata) CallHash(pallet, call string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	c, err := p.Call(call)
	if err != nil {
		return Hash{}, err
	}
	return m.callHash(p, c)
}

func (m *Metadata) callHash(p *Pallet, c *Call) (Hash, error) {
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagCall)
	s.writeByte(p.Index)
	s.writeByte(c.Index)
	s.writeU32(uint32(len(c.Args)))
	for _, a := range c.Args {
		if err := s.writeType(a.Type); err != nil {
			return Hash{}, err
		}
	}
	return s.sum(), nil
}

// StorageHash computes the compatibility hash of one storage entry:
// modifier, every key component's hasher and resolved shape, the value
// shape, and the declared default bytes.
func (m *Metadata) StorageHash(pallet, entry string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	e, err := p.StorageEntry(entry)
	if err != nil {
		return Hash{}, err
	}
	return m.storageHash(e)
}

func (m *Metadata) storageHash(e *StorageEntry) (Hash, error) {
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagStorage)
	s.writeByte(byte(e.Modifier))
	s.writeU32(uint32(len(e.Keys)))
	for _, k := range e.Keys {
		s.writeByte(byte(k.Hasher))
		if err := s.writeType(k.Type); err != nil {
			return Hash{}, err
		}
	}
	if err := s.writeType(e.Value); err != nil {
		return Hash{}, err
	}
	s.writeBytes(e.Default)
	return s.sum(), nil
}

// ConstantHash computes the compatibility hash of one constant: its
// resolved shape plus the embedded value bytes.
func (m *Metadata) ConstantHash(pallet, constant string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	c, err := p.Constant(constant)
	if err != nil {
		return Hash{}, err
	}
	return m.constantHash(c)
}

func (m *Metadata) constantHash(c *Constant) (Hash, error) {
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagConstant)
	if err := s.writeType(c.Type); err != nil {
		return Hash{}, err
	}
	s.writeBytes(c.Value)
	return s.sum(), nil
}

// EventsHash computes the compatibility hash of a pallet's whole event
// variant set. Adding, removing or reshaping any variant changes it;
// renaming one does not.
func (m *Metadata) EventsHash(pallet string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagVariantSet)
	s.writeByte(p.Index)
	if err := s.writeVariants(p.Events); err != nil {
		return Hash{}, err
	}
	return s.sum(), nil
}

// ErrorsHash computes the compatibility hash of a pallet's error
// variant set.
func (m *Metadata) ErrorsHash(pallet string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagVariantSet)
	s.writeByte(p.Index)
	if err := s.writeVariants(p.Errors); err != nil {
		return Hash{}, err
	}
	return s.sum(), nil
}

// PalletHash combines a pallet's call, storage, constant, event and
// error hashes in a fixed order.
func (m *Metadata) PalletHash(pallet string) (Hash, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return Hash{}, err
	}
	return m.palletHash(p)
}

func (m *Metadata) palletHash(p *Pallet) (Hash, error) {
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagPallet)
	s.writeByte(p.Index)

	s.writeU32(uint32(len(p.Calls)))
	for i := range p.Calls {
		h, err := m.callHash(p, &p.Calls[i])
		if err != nil {
			return Hash{}, err
		}
		s.h.Write(h[:])
	}

	s.writeU32(uint32(len(p.Storage)))
	for i := range p.Storage {
		h, err := m.storageHash(&p.Storage[i])
		if err != nil {
			return Hash{}, err
		}
		s.h.Write(h[:])
	}

	s.writeU32(uint32(len(p.Constants)))
	for i := range p.Constants {
		h, err := m.constantHash(&p.Constants[i])
		if err != nil {
			return Hash{}, err
		}
		s.h.Write(h[:])
	}

	for _, vars := range [][]Variant{p.Events, p.Errors} {
		sub := newShapeHasher(m.registry)
		if err := sub.writeVariants(vars); err != nil {
			return Hash{}, err
		}
		h := sub.sum()
		s.h.Write(h[:])
	}
	return s.sum(), nil
}

// MetadataHash combines every pallet hash in declared pallet order into
// one hash over the whole snapshot.
func (m *Metadata) MetadataHash() (Hash, error) {
	s := newShapeHasher(m.registry)
	s.writeByte(hashTagMetadata)
	s.writeU32(uint32(len(m.pallets)))
	for i := range m.pallets {
		h, err := m.palletHash(&m.pallets[i])
		if err != nil {
			return Hash{}, err
		}
		s.h.Write(h[:])
	}
	return s.sum(), nil
}
