package storage

import (
	"encoding/binary"

	"github.com/pierrec/xxHash/xxHash64"
	"golang.org/x/crypto/blake2b"

	"github.com/btc-parachain/chainrpc/internal/metadata"
)

// The storage key scheme is fixed by the chain: a 32-byte prefix of
// twox128(pallet) ++ twox128(item), then the hashed map key where present.

func twox128(data []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[:8], xxHash64.Checksum(data, 0))
	binary.LittleEndian.PutUint64(out[8:], xxHash64.Checksum(data, 1))
	return out
}

func twox64Concat(data []byte) []byte {
	out := make([]byte, 8, 8+len(data))
	binary.LittleEndian.PutUint64(out, xxHash64.Checksum(data, 0))
	return append(out, data...)
}

func blake2128Concat(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return append(h.Sum(nil), data...)
}

func hashMapKey(hasher metadata.Hasher, encodedKey []byte) []byte {
	switch hasher {
	case metadata.HasherTwox64Concat:
		return twox64Concat(encodedKey)
	case metadata.HasherBlake2_128Concat:
		return blake2128Concat(encodedKey)
	default:
		return encodedKey
	}
}
