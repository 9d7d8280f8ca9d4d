// Package metadata models a ledger node's published self-description:
// the catalog of pallets with their calls, storage entries, constants,
// events and errors, together with the type registry every entry
// references.
//
// A Metadata value is an immutable snapshot. It is constructed once per
// fetch (usually from the node's SCALE-encoded metadata blob, see
// Decode) and shared by reference across any number of concurrent
// operations. A runtime upgrade produces a new snapshot that replaces
// the old one as a unit; snapshots are never patched in place.
//
// The package also implements the compatibility hasher: structural
// hashes over an entry's fully resolved type shape that are stable
// across registry-id renumbering and cosmetic renames but sensitive to
// any change that affects the wire encoding. Precompiled descriptors
// carry such hashes and are checked against the live snapshot before
// any encoding or decoding happens.
package metadata
