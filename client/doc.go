// Package client is the operation resolver: the single entry point that
// turns named operations (read a storage value, build a call payload,
// read a constant, decode an event record) into exact bytes and back,
// against whatever metadata snapshot the connected node currently
// advertises.
//
// Every operation follows the same template: locate the metadata entry
// by name, validate the compatibility hash when the address carries one,
// then delegate all byte work to the scale codec. The resolver never
// touches raw bytes itself beyond framing (pallet and call index bytes,
// storage key prefixes) and never judges compatibility itself; that is
// the metadata package's hasher.
//
// OfflineClient works against a fixed snapshot with no node connection.
// OnlineClient adds the transport collaborator and keeps its snapshot
// fresh across runtime upgrades via an atomic whole-snapshot swap.
package client
