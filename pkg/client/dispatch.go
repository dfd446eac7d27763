package client

import (
	"errors"
	"fmt"

	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var ErrNotDispatchError = errors.New("event carries no dispatch error")

// DispatchError is a failed extrinsic outcome resolved against the chain
// metadata.
type DispatchError struct {
	// Pallet and Name are set for module errors ("issue", "IssueCompleted").
	Pallet string
	Name   string
	// Kind is the dispatch error arm ("Module", "BadOrigin", ...).
	Kind string
}

func (e *DispatchError) Error() string {
	if e.Kind == "Module" {
		return fmt.Sprintf("dispatch error: %s::%s", e.Pallet, e.Name)
	}
	return "dispatch error: " + e.Kind
}

// ResolveDispatchError extracts the failure from a system::ExtrinsicFailed
// event, naming module errors through the metadata.
func (c *Client) ResolveDispatchError(ev *types.Event) (*DispatchError, error) {
	if ev.Pallet != "system" || ev.Variant != "ExtrinsicFailed" || len(ev.Fields) == 0 {
		return nil, errors.Join(ErrNotDispatchError, fmt.Errorf("%s::%s", ev.Pallet, ev.Variant))
	}

	errValue, ok := ev.Fields[0].(scale.EnumValue)
	if !ok {
		return nil, errors.Join(ErrNotDispatchError, fmt.Errorf("field decoded to %T", ev.Fields[0]))
	}

	if errValue.Name != "Module" {
		return &DispatchError{Kind: errValue.Name}, nil
	}
	if len(errValue.Fields) != 2 {
		return nil, errors.Join(ErrNotDispatchError, fmt.Errorf("module error carries %d fields", len(errValue.Fields)))
	}

	palletIndex, ok1 := errValue.Fields[0].(uint8)
	errorIndex, ok2 := errValue.Fields[1].(uint8)
	if !ok1 || !ok2 {
		return nil, errors.Join(ErrNotDispatchError, errors.New("module error indices are not bytes"))
	}

	pallet, name, err := c.meta.ErrorName(palletIndex, errorIndex)
	if err != nil {
		return nil, err
	}
	return &DispatchError{Kind: "Module", Pallet: pallet, Name: name}, nil
}
