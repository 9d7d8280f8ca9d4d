// Package types defines the runtime type registry: an indexed, immutable
// catalog of type descriptors describing every shape reachable from a
// node's published metadata.
//
// Every descriptor references other entries by TypeID. A Registry is
// validated at construction time so that every reference resolves within
// the same snapshot; after that it is read-only and safe for concurrent
// use without locking.
//
// The descriptor set is closed: Primitive, Compact, Sequence, Array,
// Tuple, Composite, Variant and BitSequence. Consumers (the scale codec,
// the metadata compatibility hasher) dispatch exhaustively on the
// concrete TypeDef.
package types
