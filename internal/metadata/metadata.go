// Package metadata models the chain's type metadata: which pallets exist,
// their dispatchable calls, events, errors and storage entries, and the
// wire types of each. All encoding and decoding elsewhere in the client is
// resolved against a Metadata instance fetched from the connected node.
package metadata

import (
	"errors"
	"fmt"

	"github.com/btc-parachain/chainrpc/pkg/scale"
)

var (
	ErrPalletNotFound  = errors.New("pallet not found in metadata")
	ErrCallNotFound    = errors.New("call not found in metadata")
	ErrEventNotFound   = errors.New("event not found in metadata")
	ErrStorageNotFound = errors.New("storage entry not found in metadata")
	ErrInvalidMetadata = errors.New("invalid metadata blob")
)

// Hasher selects how a map key is hashed into the storage key.
type Hasher uint8

const (
	HasherIdentity Hasher = iota
	HasherTwox64Concat
	HasherBlake2_128Concat
)

// CallDef describes one dispatchable: its index within the pallet and the
// ordered, named argument types.
type CallDef struct {
	Name  string
	Index uint8
	Args  []scale.Field
}

type EventDef struct {
	Name   string
	Index  uint8
	Fields []scale.Field
}

// ErrorDef names a pallet dispatch error by index, used to surface chain
// rejections verbatim.
type ErrorDef struct {
	Name  string
	Index uint8
}

// StorageEntry describes one storage item. Key is nil for plain (non-map)
// entries. A nil Value means the entry is served raw and decoded by the
// caller (used for the event records entry, whose type depends on the full
// registry).
type StorageEntry struct {
	Name   string
	Hasher Hasher
	Key    *scale.TypeDescriptor
	Value  *scale.TypeDescriptor
}

type Pallet struct {
	Name    string
	Index   uint8
	Calls   []CallDef
	Events  []EventDef
	Errors  []ErrorDef
	Storage []StorageEntry
}

// Metadata is the full schema advertised by a node, versioned by the
// runtime spec version. Instances are immutable after decoding.
type Metadata struct {
	SpecVersion uint32
	TxVersion   uint32
	Pallets     []Pallet
}

func (m *Metadata) Pallet(name string) (*Pallet, error) {
	for i := range m.Pallets {
		if m.Pallets[i].Name == name {
			return &m.Pallets[i], nil
		}
	}
	return nil, errors.Join(ErrPalletNotFound, fmt.Errorf("pallet %q", name))
}

func (m *Metadata) PalletByIndex(index uint8) (*Pallet, error) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == index {
			return &m.Pallets[i], nil
		}
	}
	return nil, errors.Join(ErrPalletNotFound, fmt.Errorf("pallet index %d", index))
}

// ResolveCall resolves a pallet/method pair to its dispatch indices and
// argument types.
func (m *Metadata) ResolveCall(pallet, method string) (palletIndex, callIndex uint8, args []scale.Field, err error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return 0, 0, nil, err
	}
	for _, c := range p.Calls {
		if c.Name == method {
			return p.Index, c.Index, c.Args, nil
		}
	}
	return 0, 0, nil, errors.Join(ErrCallNotFound, fmt.Errorf("call %s::%s", pallet, method))
}

// ResolveStorage resolves a pallet/item pair to its storage entry.
func (m *Metadata) ResolveStorage(pallet, item string) (*Pallet, *StorageEntry, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return nil, nil, err
	}
	for i := range p.Storage {
		if p.Storage[i].Name == item {
			return p, &p.Storage[i], nil
		}
	}
	return nil, nil, errors.Join(ErrStorageNotFound, fmt.Errorf("storage %s::%s", pallet, item))
}

// ErrorName resolves a (pallet index, error index) pair from a failed
// dispatch into pallet and error names.
func (m *Metadata) ErrorName(palletIndex, errorIndex uint8) (pallet, name string, err error) {
	p, err := m.PalletByIndex(palletIndex)
	if err != nil {
		return "", "", err
	}
	for _, e := range p.Errors {
		if e.Index == errorIndex {
			return p.Name, e.Name, nil
		}
	}
	return p.Name, fmt.Sprintf("Error(%d)", errorIndex), nil
}
