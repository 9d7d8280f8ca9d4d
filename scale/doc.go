// Package scale implements the SCALE codec engine: a generic encoder and
// decoder that walks a type registry to serialize and deserialize
// arbitrary typed values without compile-time knowledge of their shape.
//
// Values are represented as a generic Value tree (see Value) that mirrors
// the descriptor shapes at the value level. A Value carries no type id of
// its own; the id is supplied alongside it when encoding, and drives the
// shape of the tree produced when decoding.
//
// Encoding is total and deterministic: two calls with equal inputs always
// produce identical bytes. All orderings come from the descriptor's
// declared order, never from map iteration.
//
// Decoding is defensive: it never allocates proportionally to an
// untrusted length prefix without first bound-checking it against the
// remaining input, and it bounds recursion depth so that malformed or
// adversarial registries terminate with ErrDepthLimit instead of
// exhausting the stack.
package scale
