// Package keyring provides the default signing capability: an ed25519 key
// loaded from a JSON keyfile. Private key material never leaves this
// package.
package keyring

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/btc-parachain/chainrpc/pkg/types"
)

var (
	ErrKeyNotFound  = errors.New("key not found in keyfile")
	ErrInvalidSeed  = errors.New("invalid secret seed")
	ErrKeyfileParse = errors.New("failed to parse keyfile")
)

// Keyring signs with a single ed25519 key. Signing requests are serialized;
// the underlying key material is treated as single-writer.
type Keyring struct {
	mu      sync.Mutex
	priv    ed25519.PrivateKey
	account types.AccountID
}

// FromSeed builds a keyring from a raw 32-byte seed.
func FromSeed(seed []byte) (*Keyring, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Join(ErrInvalidSeed, fmt.Errorf("expected %d bytes, got %d", ed25519.SeedSize, len(seed)))
	}

	priv := ed25519.NewKeyFromSeed(seed)

	var account types.AccountID
	copy(account[:], priv.Public().(ed25519.PublicKey))

	return &Keyring{priv: priv, account: account}, nil
}

// FromSeedHex builds a keyring from a 0x-prefixed hex seed.
func FromSeedHex(s string) (*Keyring, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Join(ErrInvalidSeed, err)
	}
	return FromSeed(seed)
}

// Load reads the named seed from a JSON keyfile of the form
// {"name": "0x<seed-hex>", ...}.
func Load(path, name string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys map[string]string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.Join(ErrKeyfileParse, err)
	}

	seed, ok := keys[name]
	if !ok {
		return nil, errors.Join(ErrKeyNotFound, fmt.Errorf("key %q", name))
	}

	return FromSeedHex(seed)
}

// Sign implements types.Signer.
func (k *Keyring) Sign(payload []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return ed25519.Sign(k.priv, payload), nil
}

func (k *Keyring) PublicKey() []byte {
	return []byte(k.priv.Public().(ed25519.PublicKey))
}

func (k *Keyring) AccountID() types.AccountID {
	return k.account
}

// Address returns the keyring's SS58 address under the given network
// prefix.
func (k *Keyring) Address(prefix uint8) string {
	return EncodeAddress(k.account, prefix)
}
