package client

import (
	"github.com/palletbridge/palletbridge/metadata"
	"github.com/palletbridge/palletbridge/scale"
)

// StorageAddress names one storage entry plus the key arguments needed
// to reach a single value in it. Addresses produced ahead of time (by
// the descriptor generator) also carry the compatibility hash they were
// generated against; such addresses are validated against the live
// snapshot before any bytes are built.
type StorageAddress struct {
	Pallet string
	Entry  string
	Args   []scale.Value

	expected *metadata.Hash
}

// NewStorageAddress builds an unvalidated storage address.
func NewStorageAddress(pallet, entry string, args ...scale.Value) StorageAddress {
	return StorageAddress{Pallet: pallet, Entry: entry, Args: args}
}

// WithHash returns a copy that will be validated against h.
func (a StorageAddress) WithHash(h metadata.Hash) StorageAddress {
	a.expected = &h
	return a
}

// Unvalidated returns a copy with validation disabled. The caller
// accepts the risk of a decode failure instead of an up-front
// incompatibility error.
func (a StorageAddress) Unvalidated() StorageAddress {
	a.expected = nil
	return a
}

// CallPayload names one dispatchable call plus its arguments.
type CallPayload struct {
	Pallet string
	Call   string
	Args   []scale.Value

	expected *metadata.Hash
}

// NewCallPayload builds an unvalidated call payload.
func NewCallPayload(pallet, call string, args ...scale.Value) CallPayload {
	return CallPayload{Pallet: pallet, Call: call, Args: args}
}

// WithHash returns a copy that will be validated against h.
func (p CallPayload) WithHash(h metadata.Hash) CallPayload {
	p.expected = &h
	return p
}

// Unvalidated returns a copy with validation disabled.
func (p CallPayload) Unvalidated() CallPayload {
	p.expected = nil
	return p
}

// ConstantAddress names one pallet constant.
type ConstantAddress struct {
	Pallet string
	Name   string

	expected *metadata.Hash
}

// NewConstantAddress builds an unvalidated constant address.
func NewConstantAddress(pallet, name string) ConstantAddress {
	return ConstantAddress{Pallet: pallet, Name: name}
}

// WithHash returns a copy that will be validated against h.
func (a ConstantAddress) WithHash(h metadata.Hash) ConstantAddress {
	a.expected = &h
	return a
}

// Unvalidated returns a copy with validation disabled.
func (a ConstantAddress) Unvalidated() ConstantAddress {
	a.expected = nil
	return a
}
