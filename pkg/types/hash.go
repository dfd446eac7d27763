package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidHash = errors.New("invalid hash")

// H256 is a 32-byte chain hash (block hashes, extrinsic hashes, storage roots).
type H256 [32]byte

func (h H256) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h H256) String() string {
	return h.Hex()
}

func (h H256) IsZero() bool {
	return h == H256{}
}

// ParseH256 parses a 0x-prefixed 64-digit hex string.
func ParseH256(s string) (H256, error) {
	var h H256

	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, errors.Join(ErrInvalidHash, err)
	}
	if len(raw) != len(h) {
		return h, errors.Join(ErrInvalidHash, fmt.Errorf("expected 32 bytes, got %d", len(raw)))
	}

	copy(h[:], raw)
	return h, nil
}

// AccountID is the raw 32-byte public-key-derived account identifier.
type AccountID [32]byte

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAccountID parses a 0x-prefixed 64-digit hex string.
func ParseAccountID(s string) (AccountID, error) {
	h, err := ParseH256(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(h), nil
}

// BlockRef identifies a block by hash and, where known, by height.
type BlockRef struct {
	Hash   H256
	Number uint64
}
