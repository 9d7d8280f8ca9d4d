package scale

import "errors"

var (
	// ErrShapeMismatch is returned when a value's shape does not match
	// the descriptor it is being encoded against.
	ErrShapeMismatch = errors.New("scale: value shape does not match type descriptor")

	// ErrUnknownVariant is returned when a value selects a variant arm
	// name the descriptor does not declare.
	ErrUnknownVariant = errors.New("scale: unknown variant arm")

	// ErrInvalidDiscriminant is returned when a decoded variant tag
	// matches no declared arm.
	ErrInvalidDiscriminant = errors.New("scale: discriminant matches no variant arm")

	// ErrUnexpectedEOF is returned when fewer bytes remain than the
	// shape requires.
	ErrUnexpectedEOF = errors.New("scale: unexpected end of input")

	// ErrInvalidCompact is returned when a compact mode tag or byte
	// length is inconsistent with the encoded value.
	ErrInvalidCompact = errors.New("scale: invalid compact encoding")

	// ErrDepthLimit is returned when descriptor traversal exceeds the
	// recursion bound. Well-formed node metadata never triggers this.
	ErrDepthLimit = errors.New("scale: type recursion depth limit exceeded")

	// ErrLengthLimit is returned when a declared array length would
	// materialize more zero-width elements than the decoder allows.
	// Well-formed node metadata never triggers this.
	ErrLengthLimit = errors.New("scale: declared length limit exceeded")
)

// maxDepth bounds descriptor recursion during encode and decode.
// Real-world runtime types nest a few dozen levels at most.
const maxDepth = 128

// maxZeroWidthLen bounds arrays of zero-width elements, which consume
// no input and so escape the EOF checks that bound everything else.
const maxZeroWidthLen = 1 << 10
