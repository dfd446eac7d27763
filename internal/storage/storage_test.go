package storage_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/internal/retry"
	"github.com/btc-parachain/chainrpc/internal/storage"
	"github.com/btc-parachain/chainrpc/internal/storage/mocks"
	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 5 * time.Millisecond
	p.MaxRetries = 2
	return p
}

func newEngine(conn storage.Conn) *storage.Engine {
	return storage.NewEngine(conn, metadata.DefaultRegistry(), slog.Default(), testPolicy())
}

func storedHex(t *testing.T, value any, td *scale.TypeDescriptor) json.RawMessage {
	t.Helper()
	raw, err := scale.Marshal(value, td)
	require.NoError(t, err)
	out, err := json.Marshal("0x" + hex.EncodeToString(raw))
	require.NoError(t, err)
	return out
}

func TestKeyBytes(t *testing.T) {
	engine := newEngine(&mocks.ConnMock{})

	t.Run("plain entry is the 32-byte prefix", func(t *testing.T) {
		key, err := engine.KeyBytes(types.NewStorageKey("oracle", "ExchangeRate"))

		require.NoError(t, err)
		require.Len(t, key, 32)
	})

	t.Run("mapped entry appends the hashed map key", func(t *testing.T) {
		account := make([]byte, 32)
		account[0] = 1

		key, err := engine.KeyBytes(types.NewStorageKey("vault_registry", "Vaults", account))

		require.NoError(t, err)
		// prefix + blake2_128 digest + the concatenated encoded key
		require.Len(t, key, 32+16+32)
		require.Equal(t, account, key[48:])
	})

	t.Run("deterministic", func(t *testing.T) {
		account := make([]byte, 32)

		first, err := engine.KeyBytes(types.NewStorageKey("vault_registry", "Vaults", account))
		require.NoError(t, err)
		second, err := engine.KeyBytes(types.NewStorageKey("vault_registry", "Vaults", account))
		require.NoError(t, err)

		require.Equal(t, first, second)
	})

	t.Run("args on plain entry rejected", func(t *testing.T) {
		_, err := engine.KeyBytes(types.NewStorageKey("oracle", "ExchangeRate", uint32(1)))

		require.ErrorIs(t, err, storage.ErrPlainKeyWithArgs)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := engine.KeyBytes(types.NewStorageKey("oracle", "Nope"))

		require.ErrorIs(t, err, metadata.ErrStorageNotFound)
	})
}

func TestGet(t *testing.T) {
	t.Run("decodes stored value", func(t *testing.T) {
		// Given a node serving the oracle exchange rate
		conn := &mocks.ConnMock{
			CallFunc: func(_ context.Context, method string, params ...any) (json.RawMessage, error) {
				require.Equal(t, "state_getStorage", method)
				require.Len(t, params, 1)
				return storedHex(t, big.NewInt(2500), scale.U128()), nil
			},
		}

		// When
		value, found, err := newEngine(conn).Get(context.Background(), types.NewStorageKey("oracle", "ExchangeRate"))

		// Then
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, big.NewInt(2500), value)
	})

	t.Run("absent value is None not an error", func(t *testing.T) {
		conn := &mocks.ConnMock{
			CallFunc: func(context.Context, string, ...any) (json.RawMessage, error) {
				return json.RawMessage("null"), nil
			},
		}

		account := make([]byte, 32)
		value, found, err := newEngine(conn).Get(context.Background(), types.NewStorageKey("vault_registry", "Vaults", account))

		require.NoError(t, err)
		require.False(t, found)
		require.Nil(t, value)
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		attempts := 0
		conn := &mocks.ConnMock{
			CallFunc: func(context.Context, string, ...any) (json.RawMessage, error) {
				attempts++
				if attempts < 3 {
					return nil, errors.Join(jsonrpc.ErrTransport, errors.New("socket closed"))
				}
				return storedHex(t, uint32(99), scale.U32()), nil
			},
		}

		value, found, err := newEngine(conn).Get(context.Background(), types.NewStorageKey("system", "Number"))

		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, uint32(99), value)
		require.Equal(t, 3, attempts)
	})

	t.Run("decode errors are fatal", func(t *testing.T) {
		conn := &mocks.ConnMock{
			CallFunc: func(context.Context, string, ...any) (json.RawMessage, error) {
				// a single byte cannot be a u32
				return json.RawMessage(`"0x01"`), nil
			},
		}

		_, _, err := newEngine(conn).Get(context.Background(), types.NewStorageKey("system", "Number"))

		require.ErrorIs(t, err, scale.ErrSchemaMismatch)
	})

	t.Run("retry budget exhaustion surfaces RetriesExhausted", func(t *testing.T) {
		conn := &mocks.ConnMock{
			CallFunc: func(context.Context, string, ...any) (json.RawMessage, error) {
				return nil, errors.Join(jsonrpc.ErrTransport, errors.New("socket closed"))
			},
		}

		_, _, err := newEngine(conn).Get(context.Background(), types.NewStorageKey("system", "Number"))

		require.ErrorIs(t, err, retry.ErrRetriesExhausted)
		require.ErrorIs(t, err, jsonrpc.ErrTransport)
	})
}

func TestGetAt(t *testing.T) {
	// Given a point-in-time read
	at, err := types.ParseH256("0x1100000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)

	conn := &mocks.ConnMock{
		CallFunc: func(_ context.Context, _ string, params ...any) (json.RawMessage, error) {
			// the block hash rides along as the second parameter
			require.Len(t, params, 2)
			require.Equal(t, at.Hex(), params[1])
			return storedHex(t, uint32(7), scale.U32()), nil
		},
	}

	value, found, err := newEngine(conn).GetAt(context.Background(), types.NewStorageKey("system", "Number"), at)

	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint32(7), value)
}
