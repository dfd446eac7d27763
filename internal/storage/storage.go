// Package storage resolves typed storage keys and reads chain state.
package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/internal/retry"
	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

// ErrPlainKeyWithArgs is returned when map key arguments are supplied for a
// plain storage entry, or missing for a mapped one.
var ErrPlainKeyWithArgs = errors.New("storage key arguments do not match entry shape")

// Conn is the transport surface the engine needs.
//
//go:generate moq -pkg mocks -out ./mocks/conn_mock.go . Conn
type Conn interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Engine resolves storage keys against metadata and performs point-in-time
// or latest-state reads. Key prefixes are cached; they are pure hashes of
// pallet and item names.
type Engine struct {
	conn   Conn
	meta   *metadata.Metadata
	logger *slog.Logger
	policy retry.Policy

	prefixes *gocache.Cache
}

func NewEngine(conn Conn, meta *metadata.Metadata, logger *slog.Logger, policy retry.Policy) *Engine {
	return &Engine{
		conn:     conn,
		meta:     meta,
		logger:   logger,
		policy:   policy,
		prefixes: gocache.New(gocache.NoExpiration, 0),
	}
}

// classify marks transport failures retryable; everything else — decode
// errors, unknown keys, chain-level responses — cannot be fixed by trying
// again.
func classify(err error) retry.Class {
	if errors.Is(err, jsonrpc.ErrTransport) {
		return retry.Retryable
	}
	return retry.Fatal
}

// KeyBytes resolves a typed storage key to its raw addressable location.
func (e *Engine) KeyBytes(key types.StorageKey) ([]byte, error) {
	_, entry, err := e.meta.ResolveStorage(key.Pallet, key.Item)
	if err != nil {
		return nil, err
	}

	prefix, err := e.prefix(key.Pallet, key.Item)
	if err != nil {
		return nil, err
	}

	switch {
	case entry.Key == nil && len(key.Args) == 0:
		return prefix, nil
	case entry.Key == nil:
		return nil, errors.Join(ErrPlainKeyWithArgs, fmt.Errorf("%s is a plain entry, got %d args", key, len(key.Args)))
	case len(key.Args) != 1:
		return nil, errors.Join(ErrPlainKeyWithArgs, fmt.Errorf("%s is a map, expected 1 key arg, got %d", key, len(key.Args)))
	}

	encodedKey, err := scale.Marshal(key.Args[0], entry.Key)
	if err != nil {
		return nil, err
	}

	hashed := hashMapKey(entry.Hasher, encodedKey)
	full := make([]byte, 0, len(prefix)+len(hashed))
	full = append(full, prefix...)
	return append(full, hashed...), nil
}

// Get reads the latest state. A key with no stored value yields
// (nil, false, nil), not an error.
func (e *Engine) Get(ctx context.Context, key types.StorageKey) (any, bool, error) {
	return e.get(ctx, key, nil)
}

// GetAt reads state as of the given block.
func (e *Engine) GetAt(ctx context.Context, key types.StorageKey, at types.H256) (any, bool, error) {
	return e.get(ctx, key, &at)
}

func (e *Engine) get(ctx context.Context, key types.StorageKey, at *types.H256) (any, bool, error) {
	_, entry, err := e.meta.ResolveStorage(key.Pallet, key.Item)
	if err != nil {
		return nil, false, err
	}

	raw, found, err := e.GetRaw(ctx, key, at)
	if err != nil || !found {
		return nil, false, err
	}

	if entry.Value == nil {
		// raw entry, decoded by the caller
		return raw, true, nil
	}

	value, err := scale.Unmarshal(raw, entry.Value)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// GetRaw reads the undecoded value bytes at the key, retrying transport
// failures within the engine's backoff budget.
func (e *Engine) GetRaw(ctx context.Context, key types.StorageKey, at *types.H256) ([]byte, bool, error) {
	keyBytes, err := e.KeyBytes(key)
	if err != nil {
		return nil, false, err
	}

	params := []any{hexEncode(keyBytes)}
	if at != nil {
		params = append(params, at.Hex())
	}

	res, err := retry.DoWithData(ctx, e.logger, e.policy, "state_getStorage "+key.String(), classify, func() (json.RawMessage, error) {
		return e.conn.Call(ctx, "state_getStorage", params...)
	})
	if err != nil {
		return nil, false, err
	}

	var encoded *string
	if err := json.Unmarshal(res, &encoded); err != nil {
		return nil, false, errors.Join(scale.ErrSchemaMismatch, err)
	}
	if encoded == nil {
		return nil, false, nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(*encoded, "0x"))
	if err != nil {
		return nil, false, errors.Join(scale.ErrSchemaMismatch, err)
	}
	return raw, true, nil
}

func (e *Engine) prefix(pallet, item string) ([]byte, error) {
	cacheKey := pallet + "::" + item
	if cached, ok := e.prefixes.Get(cacheKey); ok {
		return cached.([]byte), nil
	}

	prefix := append(twox128([]byte(pallet)), twox128([]byte(item))...)
	e.prefixes.Set(cacheKey, prefix, gocache.NoExpiration)
	return prefix, nil
}

func hexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
