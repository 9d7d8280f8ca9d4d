package metadata

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletbridge/palletbridge/scale"
	"github.com/palletbridge/palletbridge/types"
)

// blob builds a format-version-14 metadata byte blob by hand, mirroring
// what a node would serve.
type blob struct {
	buf bytes.Buffer
}

func (b *blob) u8(v byte)        { b.buf.WriteByte(v) }
func (b *blob) compact(v uint64) { scale.AppendCompact(&b.buf, v) }
func (b *blob) str(s string)     { scale.AppendString(&b.buf, s) }

func (b *blob) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
}

func (b *blob) strs(ss ...string) {
	b.compact(uint64(len(ss)))
	for _, s := range ss {
		b.str(s)
	}
}

func (b *blob) option(some bool) {
	if some {
		b.u8(1)
	} else {
		b.u8(0)
	}
}

func (b *blob) byteVec(data []byte) {
	b.compact(uint64(len(data)))
	b.buf.Write(data)
}

// typeHeader writes the id, path and (empty) type params of one
// portable registry entry.
func (b *blob) typeHeader(id uint64, path ...string) {
	b.compact(id)
	b.strs(path...)
	b.compact(0) // type params
}

// field writes one variant/composite field: optional name, type id,
// no type name, no docs.
func (b *blob) field(name string, ty uint64) {
	if name == "" {
		b.option(false)
	} else {
		b.option(true)
		b.str(name)
	}
	b.compact(ty)
	b.option(false) // type name
	b.strs()        // docs
}

func buildTestBlob() []byte {
	var b blob
	b.u32(metadataMagic)
	b.u8(SupportedFormat)

	// Portable registry: u32, u64, call variant, event variant, error variant.
	b.compact(5)

	b.typeHeader(0)
	b.u8(5) // primitive
	b.u8(5) // u32
	b.strs()

	b.typeHeader(1)
	b.u8(5) // primitive
	b.u8(6) // u64
	b.strs()

	b.typeHeader(2, "pallet_balances", "pallet", "Call")
	b.u8(1)       // variant
	b.compact(1)  // one arm
	b.str("transfer")
	b.compact(2) // two fields
	b.field("dest", 0)
	b.field("value", 1)
	b.u8(0)  // arm index
	b.strs() // arm docs
	b.strs() // type docs

	b.typeHeader(3, "pallet_balances", "pallet", "Event")
	b.u8(1)
	b.compact(1)
	b.str("Transferred")
	b.compact(1)
	b.field("amount", 1)
	b.u8(0)
	b.strs("A transfer happened.")
	b.strs()

	b.typeHeader(4, "pallet_balances", "pallet", "Error")
	b.u8(1)
	b.compact(1)
	b.str("InsufficientBalance")
	b.compact(0)
	b.u8(0)
	b.strs()
	b.strs()

	// One pallet.
	b.compact(1)
	b.str("Balances")

	b.option(true) // storage
	b.str("Balances")
	b.compact(2)

	b.str("TotalIssuance")
	b.u8(1) // default modifier
	b.u8(0) // plain
	b.compact(1)
	b.byteVec([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	b.strs()

	b.str("Account")
	b.u8(1) // default modifier
	b.u8(1) // map
	b.compact(1)
	b.u8(2) // blake2_128_concat
	b.compact(0) // key type
	b.compact(1) // value type
	b.byteVec([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	b.strs()

	b.option(true) // calls
	b.compact(2)

	b.option(true) // events
	b.compact(3)

	// Constants.
	b.compact(1)
	b.str("ExistentialDeposit")
	b.compact(1)
	b.byteVec([]byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0})
	b.strs()

	b.option(true) // errors
	b.compact(4)

	b.u8(7) // pallet index

	// Extrinsic metadata.
	b.compact(0) // type
	b.u8(4)      // version
	b.compact(0) // signed extensions

	// Runtime type.
	b.compact(0)

	return b.buf.Bytes()
}

func TestDecodeMetadataBlob(t *testing.T) {
	m, err := Decode(buildTestBlob())
	require.NoError(t, err)

	require.Len(t, m.Pallets(), 1)
	p, err := m.Pallet("Balances")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), p.Index)
	assert.Equal(t, "Balances", p.StoragePrefix)

	c, err := p.Call("transfer")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.Index)
	require.Len(t, c.Args, 2)
	assert.Equal(t, "dest", c.Args[0].Name)
	assert.Equal(t, types.TypeID(0), c.Args[0].Type)
	assert.Equal(t, "value", c.Args[1].Name)
	assert.Equal(t, types.TypeID(1), c.Args[1].Type)

	ti, err := p.StorageEntry("TotalIssuance")
	require.NoError(t, err)
	assert.True(t, ti.IsPlain())
	assert.Equal(t, ModifierDefault, ti.Modifier)
	assert.Equal(t, types.TypeID(1), ti.Value)

	acct, err := p.StorageEntry("Account")
	require.NoError(t, err)
	require.Len(t, acct.Keys, 1)
	assert.Equal(t, HasherBlake2_128Concat, acct.Keys[0].Hasher)
	assert.Equal(t, types.TypeID(0), acct.Keys[0].Type)

	k, err := p.Constant("ExistentialDeposit")
	require.NoError(t, err)
	assert.Equal(t, types.TypeID(1), k.Type)
	assert.Equal(t, []byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0}, k.Value)

	ev, err := p.Event(0)
	require.NoError(t, err)
	assert.Equal(t, "Transferred", ev.Name)
	require.Len(t, ev.Fields, 1)
	assert.Equal(t, types.TypeID(1), ev.Fields[0].Type)

	pe, err := p.Error(0)
	require.NoError(t, err)
	assert.Equal(t, "InsufficientBalance", pe.Name)

	// The embedded constant bytes decode against the registry.
	v, consumed, err := scale.Decode(k.Value, k.Type, m.Registry())
	require.NoError(t, err)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, scale.U64(1000), v)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := buildTestBlob()
	data[0] ^= 0xFF
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	data := buildTestBlob()
	data[4] = 12
	_, err := Decode(data)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

// bitStoreBlob builds a blob whose registry holds one bit sequence
// over a store primitive of the given kind byte.
func bitStoreBlob(storeKind byte) []byte {
	var b blob
	b.u32(metadataMagic)
	b.u8(SupportedFormat)

	b.compact(3)

	b.typeHeader(0)
	b.u8(5) // primitive
	b.u8(storeKind)
	b.strs()

	b.typeHeader(1, "bitvec", "order", "Lsb0")
	b.u8(0)      // composite
	b.compact(0) // no fields
	b.strs()

	b.typeHeader(2)
	b.u8(7)      // bit sequence
	b.compact(0) // store
	b.compact(1) // order
	b.strs()

	b.compact(0) // no pallets

	b.compact(0) // extrinsic type
	b.u8(4)
	b.compact(0)

	b.compact(0) // runtime type

	return b.buf.Bytes()
}

func TestDecodeBitStoreWidth(t *testing.T) {
	// u8 stores are the only layout the codec packs; wider stores pad
	// the wire to whole store units and must be rejected like char and
	// u256 primitives.
	m, err := Decode(bitStoreBlob(3)) // u8
	require.NoError(t, err)
	ty, err := m.Registry().Resolve(2)
	require.NoError(t, err)
	def, ok := ty.Def.(types.BitSequenceDef)
	require.True(t, ok)
	assert.Equal(t, types.KindU8, def.Store)
	assert.Equal(t, types.Lsb0, def.Order)

	_, err = Decode(bitStoreBlob(4)) // u16
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	_, err = Decode(bitStoreBlob(5)) // u32
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestDecodeRejectsTruncation(t *testing.T) {
	data := buildTestBlob()
	for _, cut := range []int{0, 3, 5, 20, len(data) / 2, len(data) - 1} {
		_, err := Decode(data[:cut])
		assert.Error(t, err, "truncation at %d must fail", cut)
	}
}

func TestDecodedMetadataHashesMatchHandBuilt(t *testing.T) {
	// A decoded snapshot and a hand-built one describing the same
	// shapes must agree on compatibility hashes even though they were
	// constructed through different paths.
	decoded, err := Decode(buildTestBlob())
	require.NoError(t, err)

	reg, err := types.NewRegistry(map[types.TypeID]types.Type{
		10: {Def: types.PrimitiveDef{Kind: types.KindU32}},
		11: {Def: types.PrimitiveDef{Kind: types.KindU64}},
	})
	require.NoError(t, err)
	hand, err := New(reg, []Pallet{{
		Name:  "Balances",
		Index: 7,
		Calls: []Call{{Name: "transfer", Index: 0, Args: []CallArg{
			{Name: "dest", Type: 10},
			{Name: "value", Type: 11},
		}}},
	}})
	require.NoError(t, err)

	hd, err := decoded.CallHash("Balances", "transfer")
	require.NoError(t, err)
	hh, err := hand.CallHash("Balances", "transfer")
	require.NoError(t, err)
	assert.Equal(t, hd, hh)
}
