package metadata

import "errors"

var (
	// ErrEntryNotFound is returned when a pallet, call, storage entry,
	// constant, event or error lookup misses.
	ErrEntryNotFound = errors.New("metadata: entry not found")

	// ErrIncompatibleMetadata is returned when a precompiled
	// descriptor's compatibility hash does not match the live
	// snapshot. It always wins over silently encoding against a stale
	// shape.
	ErrIncompatibleMetadata = errors.New("metadata: incompatible with live metadata")

	// ErrInvalidMetadata is returned when a node's metadata blob cannot
	// be parsed: bad magic, unsupported version, or structure that does
	// not follow the advertised meta-schema.
	ErrInvalidMetadata = errors.New("metadata: invalid metadata blob")
)
