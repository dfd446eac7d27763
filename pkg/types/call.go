package types

import "fmt"

// Call addresses a dispatchable on a pallet. Args are ordered and typed
// against the chain metadata at submission time; a Call itself carries no
// encoding. Immutable once constructed.
type Call struct {
	Pallet string
	Method string
	Args   []any
}

func NewCall(pallet, method string, args ...any) Call {
	return Call{Pallet: pallet, Method: method, Args: args}
}

func (c Call) String() string {
	return fmt.Sprintf("%s::%s", c.Pallet, c.Method)
}

// StorageKey addresses a storage item on a pallet. Args are the map keys for
// mapped items and must be empty for plain items.
type StorageKey struct {
	Pallet string
	Item   string
	Args   []any
}

func NewStorageKey(pallet, item string, args ...any) StorageKey {
	return StorageKey{Pallet: pallet, Item: item, Args: args}
}

func (k StorageKey) String() string {
	return fmt.Sprintf("%s::%s", k.Pallet, k.Item)
}
