package client

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/palletbridge/palletbridge/metadata"
)

// Storage keys start with a fixed name-derived prefix:
// twox128(storage prefix) ++ twox128(entry name), followed by each key
// argument encoded and passed through its declared hasher.

func twox128(data []byte) []byte {
	out := make([]byte, 16)
	d := xxhash.New()
	d.Write(data)
	binary.LittleEndian.PutUint64(out[:8], d.Sum64())
	d.ResetWithSeed(1)
	d.Write(data)
	binary.LittleEndian.PutUint64(out[8:], d.Sum64())
	return out
}

func twox256(data []byte) []byte {
	out := make([]byte, 32)
	d := xxhash.New()
	for seed := uint64(0); seed < 4; seed++ {
		d.ResetWithSeed(seed)
		d.Write(data)
		binary.LittleEndian.PutUint64(out[seed*8:seed*8+8], d.Sum64())
	}
	return out
}

func twox64(data []byte) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, xxhash.Sum64(data))
	return out
}

func blake2bSum(size int, data []byte) []byte {
	h, _ := blake2b.New(size, nil)
	h.Write(data)
	return h.Sum(nil)
}

// storagePrefix returns the 32-byte prefix shared by every key of one
// storage entry.
func storagePrefix(palletPrefix, entryName string) []byte {
	out := make([]byte, 0, 32)
	out = append(out, twox128([]byte(palletPrefix))...)
	out = append(out, twox128([]byte(entryName))...)
	return out
}

// hashKeyComponent applies the declared hasher to one encoded key
// argument. Concat variants keep the plain encoding after the digest so
// keys stay reversible for iteration.
func hashKeyComponent(hasher metadata.StorageHasher, encoded []byte) ([]byte, error) {
	switch hasher {
	case metadata.HasherIdentity:
		return encoded, nil
	case metadata.HasherBlake2_128:
		return blake2bSum(16, encoded), nil
	case metadata.HasherBlake2_256:
		return blake2bSum(32, encoded), nil
	case metadata.HasherBlake2_128Concat:
		return append(blake2bSum(16, encoded), encoded...), nil
	case metadata.HasherTwox128:
		return twox128(encoded), nil
	case metadata.HasherTwox256:
		return twox256(encoded), nil
	case metadata.HasherTwox64Concat:
		return append(twox64(encoded), encoded...), nil
	default:
		return nil, fmt.Errorf("unsupported storage hasher %s", hasher)
	}
}
