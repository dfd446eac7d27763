package keyring

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/btc-parachain/chainrpc/pkg/types"
)

var ErrInvalidAddress = errors.New("invalid address")

// ss58Prefix is the domain separator mixed into the address checksum.
var ss58Prefix = []byte("SS58PRE")

// EncodeAddress renders an account as a base58 address with an embedded
// network prefix and a 2-byte checksum.
func EncodeAddress(account types.AccountID, prefix uint8) string {
	data := append([]byte{prefix}, account[:]...)
	sum := addressChecksum(data)
	return base58.Encode(append(data, sum...))
}

// DecodeAddress parses an address and verifies its checksum and prefix.
func DecodeAddress(addr string, prefix uint8) (types.AccountID, error) {
	var account types.AccountID

	raw, err := base58.Decode(addr)
	if err != nil {
		return account, errors.Join(ErrInvalidAddress, err)
	}
	if len(raw) != 1+len(account)+2 {
		return account, errors.Join(ErrInvalidAddress, fmt.Errorf("unexpected length %d", len(raw)))
	}
	if raw[0] != prefix {
		return account, errors.Join(ErrInvalidAddress, fmt.Errorf("network prefix %d, expected %d", raw[0], prefix))
	}

	data, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	if !bytes.Equal(sum, addressChecksum(data)) {
		return account, errors.Join(ErrInvalidAddress, errors.New("checksum mismatch"))
	}

	copy(account[:], data[1:])
	return account, nil
}

func addressChecksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Prefix)
	h.Write(data)
	return h.Sum(nil)[:2]
}
