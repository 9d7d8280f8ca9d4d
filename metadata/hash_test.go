package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palletbridge/palletbridge/types"
)

// snapshot builds a one-pallet metadata snapshot over the given type
// entries. The pallet references ids by the caller's numbering, so the
// same logical snapshot can be built under different numberings.
func snapshot(t *testing.T, entries map[types.TypeID]types.Type, p Pallet) *Metadata {
	t.Helper()
	reg, err := types.NewRegistry(entries)
	require.NoError(t, err)
	m, err := New(reg, []Pallet{p})
	require.NoError(t, err)
	return m
}

// balancesFixture returns a pallet wired against ids produced by
// shifting a base numbering, so tests can renumber the whole graph.
func balancesFixture(base types.TypeID) (map[types.TypeID]types.Type, Pallet) {
	idU32 := base
	idU64 := base + 1
	idAccount := base + 2

	entries := map[types.TypeID]types.Type{
		idU32: {Def: types.PrimitiveDef{Kind: types.KindU32}},
		idU64: {Def: types.PrimitiveDef{Kind: types.KindU64}},
		idAccount: {Path: []string{"Account"}, Def: types.CompositeDef{Fields: []types.Field{
			{Name: "free", Type: idU64},
			{Name: "nonce", Type: idU32},
		}}},
	}
	pallet := Pallet{
		Name:          "Balances",
		Index:         5,
		StoragePrefix: "Balances",
		Calls: []Call{
			{Name: "transfer", Index: 0, Args: []CallArg{
				{Name: "dest", Type: idU32},
				{Name: "value", Type: idU64},
			}},
		},
		Storage: []StorageEntry{
			{Name: "TotalIssuance", Modifier: ModifierDefault, Value: idU64, Default: []byte{0, 0, 0, 0, 0, 0, 0, 0}},
			{Name: "Account", Modifier: ModifierDefault, Keys: []StorageKey{
				{Hasher: HasherBlake2_128Concat, Type: idU32},
			}, Value: idAccount},
		},
		Constants: []Constant{
			{Name: "ExistentialDeposit", Type: idU64, Value: []byte{1, 0, 0, 0, 0, 0, 0, 0}},
		},
		Events: []Variant{
			{Name: "Transferred", Index: 0, Fields: []types.Field{{Name: "amount", Type: idU64}}},
		},
		Errors: []Variant{
			{Name: "InsufficientBalance", Index: 0},
		},
	}
	return entries, pallet
}

func TestHashStableUnderRenumbering(t *testing.T) {
	entriesA, palletA := balancesFixture(0)
	entriesB, palletB := balancesFixture(700)
	a := snapshot(t, entriesA, palletA)
	b := snapshot(t, entriesB, palletB)

	for name, f := range map[string]func(*Metadata) (Hash, error){
		"call":     func(m *Metadata) (Hash, error) { return m.CallHash("Balances", "transfer") },
		"storage":  func(m *Metadata) (Hash, error) { return m.StorageHash("Balances", "Account") },
		"constant": func(m *Metadata) (Hash, error) { return m.ConstantHash("Balances", "ExistentialDeposit") },
		"events":   func(m *Metadata) (Hash, error) { return m.EventsHash("Balances") },
		"errors":   func(m *Metadata) (Hash, error) { return m.ErrorsHash("Balances") },
		"pallet":   func(m *Metadata) (Hash, error) { return m.PalletHash("Balances") },
		"metadata": func(m *Metadata) (Hash, error) { return m.MetadataHash() },
	} {
		t.Run(name, func(t *testing.T) {
			ha, err := f(a)
			require.NoError(t, err)
			hb, err := f(b)
			require.NoError(t, err)
			assert.Equal(t, ha, hb, "renumbered registries must hash identically")
		})
	}
}

func TestHashSensitivity(t *testing.T) {
	entries, pallet := balancesFixture(0)
	base := snapshot(t, entries, pallet)
	baseCall, err := base.CallHash("Balances", "transfer")
	require.NoError(t, err)
	baseEvents, err := base.EventsHash("Balances")
	require.NoError(t, err)
	baseStorage, err := base.StorageHash("Balances", "Account")
	require.NoError(t, err)

	t.Run("field type change", func(t *testing.T) {
		entries, pallet := balancesFixture(0)
		pallet.Calls[0].Args[1].Type = 0 // u64 -> u32
		m := snapshot(t, entries, pallet)
		h, err := m.CallHash("Balances", "transfer")
		require.NoError(t, err)
		assert.NotEqual(t, baseCall, h)
	})

	t.Run("discriminant change", func(t *testing.T) {
		entries, pallet := balancesFixture(0)
		pallet.Events[0].Index = 3
		m := snapshot(t, entries, pallet)
		h, err := m.EventsHash("Balances")
		require.NoError(t, err)
		assert.NotEqual(t, baseEvents, h)
	})

	t.Run("added variant", func(t *testing.T) {
		entries, pallet := balancesFixture(0)
		pallet.Events = append(pallet.Events, Variant{Name: "Burned", Index: 1})
		m := snapshot(t, entries, pallet)
		h, err := m.EventsHash("Balances")
		require.NoError(t, err)
		assert.NotEqual(t, baseEvents, h)
	})

	t.Run("rename and docs only", func(t *testing.T) {
		entries, pallet := balancesFixture(0)
		pallet.Calls[0].Args[0].Name = "destination"
		pallet.Calls[0].Docs = []string{"transfer some funds"}
		pallet.Events[0].Name = "TransferHappened"
		acct := entries[2]
		acct.Path = []string{"RenamedAccount"}
		acct.Def = types.CompositeDef{Fields: []types.Field{
			{Name: "liquid", Type: 1},
			{Name: "sequence", Type: 0},
		}}
		entries[2] = acct
		m := snapshot(t, entries, pallet)

		h, err := m.CallHash("Balances", "transfer")
		require.NoError(t, err)
		assert.Equal(t, baseCall, h, "cosmetic renames must not invalidate")

		he, err := m.EventsHash("Balances")
		require.NoError(t, err)
		assert.Equal(t, baseEvents, he)

		hs, err := m.StorageHash("Balances", "Account")
		require.NoError(t, err)
		assert.Equal(t, baseStorage, hs, "renamed composite fields must not invalidate")
	})
}

func TestHashRecursiveTypesTerminate(t *testing.T) {
	recursive := func(base types.TypeID) (map[types.TypeID]types.Type, Pallet) {
		idU8 := base
		idNode := base + 1
		idList := base + 2
		entries := map[types.TypeID]types.Type{
			idU8: {Def: types.PrimitiveDef{Kind: types.KindU8}},
			// Mutually recursive: Node -> List -> Node.
			idNode: {Def: types.CompositeDef{Fields: []types.Field{
				{Name: "value", Type: idU8},
				{Name: "children", Type: idList},
			}}},
			idList: {Def: types.VariantDef{Arms: []types.VariantArm{
				{Name: "Nil", Index: 0},
				{Name: "Cons", Index: 1, Fields: []types.Field{{Type: idNode}}},
			}}},
		}
		pallet := Pallet{
			Name:  "Tree",
			Index: 1,
			Calls: []Call{{Name: "plant", Index: 0, Args: []CallArg{{Name: "root", Type: idNode}}}},
		}
		return entries, pallet
	}

	entriesA, palletA := recursive(0)
	a := snapshot(t, entriesA, palletA)
	first, err := a.CallHash("Tree", "plant")
	require.NoError(t, err)
	again, err := a.CallHash("Tree", "plant")
	require.NoError(t, err)
	assert.Equal(t, first, again, "recursive hash must be deterministic")

	entriesB, palletB := recursive(40)
	b := snapshot(t, entriesB, palletB)
	other, err := b.CallHash("Tree", "plant")
	require.NoError(t, err)
	assert.Equal(t, first, other, "recursive hash must survive renumbering")
}

func TestValidate(t *testing.T) {
	entries, pallet := balancesFixture(0)
	m := snapshot(t, entries, pallet)

	h, err := m.CallHash("Balances", "transfer")
	require.NoError(t, err)

	assert.NoError(t, Validate(h, h))

	var other Hash
	other[0] = 0xFF
	err = Validate(other, h)
	assert.ErrorIs(t, err, ErrIncompatibleMetadata)
}

func TestHashEntryNotFound(t *testing.T) {
	entries, pallet := balancesFixture(0)
	m := snapshot(t, entries, pallet)

	_, err := m.CallHash("Balances", "teleport")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = m.CallHash("Oracle", "transfer")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func BenchmarkPalletHash(b *testing.B) {
	entries, pallet := balancesFixture(0)
	reg, err := types.NewRegistry(entries)
	if err != nil {
		b.Fatal(err)
	}
	m, err := New(reg, []Pallet{pallet})
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.PalletHash("Balances"); err != nil {
			b.Fatal(err)
		}
	}
}
