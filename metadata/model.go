package metadata

import (
	"fmt"

	"github.com/palletbridge/palletbridge/types"
)

// StorageHasher enumerates the key-hashing algorithms a storage map may
// declare per key component.
type StorageHasher uint8

const (
	HasherBlake2_128 StorageHasher = iota
	HasherBlake2_256
	HasherBlake2_128Concat
	HasherTwox128
	HasherTwox256
	HasherTwox64Concat
	HasherIdentity
)

func (h StorageHasher) String() string {
	switch h {
	case HasherBlake2_128:
		return "blake2_128"
	case HasherBlake2_256:
		return "blake2_256"
	case HasherBlake2_128Concat:
		return "blake2_128_concat"
	case HasherTwox128:
		return "twox_128"
	case HasherTwox256:
		return "twox_256"
	case HasherTwox64Concat:
		return "twox_64_concat"
	case HasherIdentity:
		return "identity"
	default:
		return fmt.Sprintf("hasher(%d)", uint8(h))
	}
}

// StorageModifier says whether a missing storage value decodes as the
// declared default or is reported as absent.
type StorageModifier uint8

const (
	ModifierOptional StorageModifier = iota
	ModifierDefault
)

// CallArg is one argument of a dispatchable call.
type CallArg struct {
	Name string
	Type types.TypeID
}

// Call describes one dispatchable call of a pallet. Index is the
// discriminant byte that follows the pallet index on the wire.
type Call struct {
	Name  string
	Index uint8
	Args  []CallArg
	Docs  []string
}

// StorageKey is one key component of a storage map.
type StorageKey struct {
	Hasher StorageHasher
	Type   types.TypeID
}

// StorageEntry describes one storage item. Plain entries have no Keys;
// maps carry one StorageKey per key component, applied in order when
// the full key is built.
type StorageEntry struct {
	Name     string
	Modifier StorageModifier
	Keys     []StorageKey
	Value    types.TypeID
	Default  []byte
	Docs     []string
}

// IsPlain reports whether the entry is a plain value rather than a map.
func (e *StorageEntry) IsPlain() bool {
	return len(e.Keys) == 0
}

// Constant describes one pallet constant. Value holds the literal
// SCALE-encoded bytes embedded in the metadata itself.
type Constant struct {
	Name  string
	Type  types.TypeID
	Value []byte
	Docs  []string
}

// Variant describes one event or error variant of a pallet.
type Variant struct {
	Name   string
	Index  uint8
	Fields []types.Field
	Docs   []string
}

// Pallet is one named module of the node's metadata.
type Pallet struct {
	Name          string
	Index         uint8
	StoragePrefix string
	Calls         []Call
	Storage       []StorageEntry
	Constants     []Constant
	Events        []Variant
	Errors        []Variant

	callsByName     map[string]*Call
	callsByIndex    map[uint8]*Call
	storageByName   map[string]*StorageEntry
	constantsByName map[string]*Constant
	eventsByIndex   map[uint8]*Variant
	errorsByIndex   map[uint8]*Variant
}

// Call returns the named call descriptor.
func (p *Pallet) Call(name string) (*Call, error) {
	c, ok := p.callsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: call %s.%s", ErrEntryNotFound, p.Name, name)
	}
	return c, nil
}

// CallByIndex returns the call with the given discriminant byte.
func (p *Pallet) CallByIndex(index uint8) (*Call, error) {
	c, ok := p.callsByIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: call index %d in pallet %s", ErrEntryNotFound, index, p.Name)
	}
	return c, nil
}

// StorageEntry returns the named storage descriptor.
func (p *Pallet) StorageEntry(name string) (*StorageEntry, error) {
	e, ok := p.storageByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: storage %s.%s", ErrEntryNotFound, p.Name, name)
	}
	return e, nil
}

// Constant returns the named constant descriptor.
func (p *Pallet) Constant(name string) (*Constant, error) {
	c, ok := p.constantsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: constant %s.%s", ErrEntryNotFound, p.Name, name)
	}
	return c, nil
}

// Event returns the event variant with the given discriminant byte.
func (p *Pallet) Event(index uint8) (*Variant, error) {
	v, ok := p.eventsByIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: event index %d in pallet %s", ErrEntryNotFound, index, p.Name)
	}
	return v, nil
}

// Error returns the error variant with the given discriminant byte.
func (p *Pallet) Error(index uint8) (*Variant, error) {
	v, ok := p.errorsByIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: error index %d in pallet %s", ErrEntryNotFound, index, p.Name)
	}
	return v, nil
}

// Metadata is one immutable snapshot of a node's self-description:
// the type registry plus every pallet, with pre-built name and index
// lookups. Safe for unsynchronized concurrent reads.
type Metadata struct {
	registry *types.Registry
	pallets  []Pallet

	palletsByName  map[string]*Pallet
	palletsByIndex map[uint8]*Pallet
}

// New builds a snapshot from a validated registry and pallet list. It
// verifies that every type id any pallet references resolves in the
// registry (the registry itself guarantees the rest of the transitive
// closure) and builds the lookup indexes.
func New(reg *types.Registry, pallets []Pallet) (*Metadata, error) {
	m := &Metadata{
		registry:       reg,
		pallets:        pallets,
		palletsByName:  make(map[string]*Pallet, len(pallets)),
		palletsByIndex: make(map[uint8]*Pallet, len(pallets)),
	}

	for i := range m.pallets {
		p := &m.pallets[i]
		if err := checkPalletTypes(reg, p); err != nil {
			return nil, err
		}
		p.buildIndexes()
		m.palletsByName[p.Name] = p
		m.palletsByIndex[p.Index] = p
	}
	return m, nil
}

func checkPalletTypes(reg *types.Registry, p *Pallet) error {
	check := func(id types.TypeID, what string) error {
		if !reg.Has(id) {
			return fmt.Errorf("%w: pallet %s %s references type %d", types.ErrIncompleteRegistry, p.Name, what, id)
		}
		return nil
	}
	for _, c := range p.Calls {
		for _, a := range c.Args {
			if err := check(a.Type, "call "+c.Name); err != nil {
				return err
			}
		}
	}
	for _, e := range p.Storage {
		for _, k := range e.Keys {
			if err := check(k.Type, "storage "+e.Name); err != nil {
				return err
			}
		}
		if err := check(e.Value, "storage "+e.Name); err != nil {
			return err
		}
	}
	for _, c := range p.Constants {
		if err := check(c.Type, "constant "+c.Name); err != nil {
			return err
		}
	}
	for _, v := range p.Events {
		for _, f := range v.Fields {
			if err := check(f.Type, "event "+v.Name); err != nil {
				return err
			}
		}
	}
	for _, v := range p.Errors {
		for _, f := range v.Fields {
			if err := check(f.Type, "error "+v.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pallet) buildIndexes() {
	p.callsByName = make(map[string]*Call, len(p.Calls))
	p.callsByIndex = make(map[uint8]*Call, len(p.Calls))
	for i := range p.Calls {
		c := &p.Calls[i]
		p.callsByName[c.Name] = c
		p.callsByIndex[c.Index] = c
	}
	p.storageByName = make(map[string]*StorageEntry, len(p.Storage))
	for i := range p.Storage {
		p.storageByName[p.Storage[i].Name] = &p.Storage[i]
	}
	p.constantsByName = make(map[string]*Constant, len(p.Constants))
	for i := range p.Constants {
		p.constantsByName[p.Constants[i].Name] = &p.Constants[i]
	}
	p.eventsByIndex = make(map[uint8]*Variant, len(p.Events))
	for i := range p.Events {
		p.eventsByIndex[p.Events[i].Index] = &p.Events[i]
	}
	p.errorsByIndex = make(map[uint8]*Variant, len(p.Errors))
	for i := range p.Errors {
		p.errorsByIndex[p.Errors[i].Index] = &p.Errors[i]
	}
}

// Registry returns the snapshot's type registry.
func (m *Metadata) Registry() *types.Registry {
	return m.registry
}

// Pallets returns the pallets in declared order. The slice must not be
// mutated.
func (m *Metadata) Pallets() []Pallet {
	return m.pallets
}

// Pallet returns the named pallet.
func (m *Metadata) Pallet(name string) (*Pallet, error) {
	p, ok := m.palletsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: pallet %s", ErrEntryNotFound, name)
	}
	return p, nil
}

// PalletByIndex returns the pallet with the given discriminant byte.
func (m *Metadata) PalletByIndex(index uint8) (*Pallet, error) {
	p, ok := m.palletsByIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: pallet index %d", ErrEntryNotFound, index)
	}
	return p, nil
}
