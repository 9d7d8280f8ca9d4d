package scale

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Compact integers use a two-bit mode tag in the low bits of the first
// byte:
//
//	0b00  single byte, value < 2^6
//	0b01  two bytes little-endian, value < 2^14
//	0b10  four bytes little-endian, value < 2^30
//	0b11  (len-4) in the upper six bits, then len little-endian bytes
//
// The ladder is part of the wire format and must be reproduced exactly:
// each value has a single canonical encoding using the smallest mode
// that fits it.

const (
	compactMax1 = 1 << 6  // exclusive upper bound of single-byte mode
	compactMax2 = 1 << 14 // exclusive upper bound of two-byte mode
	compactMax4 = 1 << 30 // exclusive upper bound of four-byte mode
)

// AppendCompact appends the compact encoding of v to buf.
func AppendCompact(buf *bytes.Buffer, v uint64) {
	switch {
	case v < compactMax1:
		buf.WriteByte(byte(v) << 2)
	case v < compactMax2:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v)<<2|0b01)
		buf.Write(tmp[:])
	case v < compactMax4:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v)<<2|0b10)
		buf.Write(tmp[:])
	default:
		appendCompactBig(buf, new(big.Int).SetUint64(v))
	}
}

// AppendCompactBig appends the compact encoding of v, which must be
// non-negative. Values that fit in the small modes use them; larger
// values use the big-number mode.
func AppendCompactBig(buf *bytes.Buffer, v *big.Int) error {
	if v.Sign() < 0 {
		return fmt.Errorf("%w: compact values are unsigned, got %s", ErrShapeMismatch, v)
	}
	if v.IsUint64() {
		AppendCompact(buf, v.Uint64())
		return nil
	}
	appendCompactBig(buf, v)
	return nil
}

func appendCompactBig(buf *bytes.Buffer, v *big.Int) {
	raw := v.Bytes() // big-endian, minimal
	n := len(raw)
	buf.WriteByte(byte(n-4)<<2 | 0b11)
	// Emit little-endian.
	for i := n - 1; i >= 0; i-- {
		buf.WriteByte(raw[i])
	}
}

// DecodeCompact reads a compact integer of arbitrary width. Small modes
// come back with a nil big component; the big-number mode returns the
// value as a big.Int when it exceeds 64 bits.
func DecodeCompact(r *Reader) (uint64, *big.Int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint64(first >> 2), nil, nil
	case 0b01:
		second, err := r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		v := uint64(binary.LittleEndian.Uint16([]byte{first, second})) >> 2
		if v < compactMax1 {
			return 0, nil, fmt.Errorf("%w: two-byte mode used for value %d", ErrInvalidCompact, v)
		}
		return v, nil, nil
	case 0b10:
		rest, err := r.ReadBytes(3)
		if err != nil {
			return 0, nil, err
		}
		v := uint64(binary.LittleEndian.Uint32([]byte{first, rest[0], rest[1], rest[2]})) >> 2
		if v < compactMax2 {
			return 0, nil, fmt.Errorf("%w: four-byte mode used for value %d", ErrInvalidCompact, v)
		}
		return v, nil, nil
	default:
		n := int(first>>2) + 4
		raw, err := r.ReadBytes(n)
		if err != nil {
			return 0, nil, err
		}
		if raw[n-1] == 0 {
			return 0, nil, fmt.Errorf("%w: big-number mode with zero high byte", ErrInvalidCompact)
		}
		// Reverse little-endian input for big.Int.
		be := make([]byte, n)
		for i, b := range raw {
			be[n-1-i] = b
		}
		v := new(big.Int).SetBytes(be)
		if v.IsUint64() {
			u := v.Uint64()
			if u < compactMax4 {
				return 0, nil, fmt.Errorf("%w: big-number mode used for value %d", ErrInvalidCompact, u)
			}
			return u, nil, nil
		}
		return 0, v, nil
	}
}

// DecodeCompactUint reads a compact integer and requires it to fit in a
// uint64. Used for length prefixes and other bounded counters.
func DecodeCompactUint(r *Reader) (uint64, error) {
	small, wide, err := DecodeCompact(r)
	if err != nil {
		return 0, err
	}
	if wide != nil {
		return 0, fmt.Errorf("%w: value %s overflows u64 counter", ErrInvalidCompact, wide)
	}
	return small, nil
}

// DecodeString reads a compact-length-prefixed UTF-8 string.
func DecodeString(r *Reader) (string, error) {
	n, err := DecodeCompactUint(r)
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		return "", fmt.Errorf("%w: string length %d exceeds %d remaining bytes", ErrUnexpectedEOF, n, r.Remaining())
	}
	raw, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// AppendString appends a compact-length-prefixed UTF-8 string.
func AppendString(buf *bytes.Buffer, s string) {
	AppendCompact(buf, uint64(len(s)))
	buf.WriteString(s)
}
