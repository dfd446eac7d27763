package client_test

import (
	"context"
	"encoding/hex"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/pkg/client"
	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

type serverRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// newTestNode serves the connection handshake plus any method handlers the
// test registers.
func newTestNode(t *testing.T, handlers map[string]func(params []any) any) *httptest.Server {
	t.Helper()

	blob, err := metadata.DefaultRegistry().Encode()
	require.NoError(t, err)
	metaHex := "0x" + hex.EncodeToString(blob)
	genesis := "0x" + strings.Repeat("ab", 32)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req serverRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			var result any
			switch req.Method {
			case "state_getMetadata":
				result = metaHex
			case "state_getRuntimeVersion":
				result = map[string]any{"specVersion": 17, "transactionVersion": 2}
			case "chain_getBlockHash":
				result = genesis
			default:
				handler, ok := handlers[req.Method]
				if !ok {
					t.Errorf("unexpected method %s", req.Method)
					return
				}
				result = handler(req.Params)
			}
			if err := conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}); err != nil {
				return
			}
		}
	}))

	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})

	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnect(t *testing.T) {
	t.Run("handshake pins runtime and genesis", func(t *testing.T) {
		srv := newTestNode(t, nil)

		c, err := client.Connect(context.Background(), wsURL(srv))
		require.NoError(t, err)
		defer c.Close()

		require.EqualValues(t, 17, c.SpecVersion())
		require.NotNil(t, c.Metadata())

		_, _, _, err = c.Metadata().ResolveCall("issue", "request_issue")
		require.NoError(t, err)
	})

	t.Run("matching spec version pin", func(t *testing.T) {
		srv := newTestNode(t, nil)

		c, err := client.Connect(context.Background(), wsURL(srv), client.WithExpectedSpecVersion(17))
		require.NoError(t, err)
		defer c.Close()
	})

	t.Run("mismatched spec version pin", func(t *testing.T) {
		srv := newTestNode(t, nil)

		_, err := client.Connect(context.Background(), wsURL(srv), client.WithExpectedSpecVersion(16))
		require.ErrorIs(t, err, client.ErrInvalidSpecVersion)
	})
}

func TestGet(t *testing.T) {
	// Given a node serving the oracle exchange rate
	stored, err := scale.Marshal(big.NewInt(1234), scale.U128())
	require.NoError(t, err)
	srv := newTestNode(t, map[string]func([]any) any{
		"state_getStorage": func([]any) any {
			return "0x" + hex.EncodeToString(stored)
		},
	})

	c, err := client.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	// When
	value, found, err := c.Get(context.Background(), types.NewStorageKey("oracle", "ExchangeRate"))

	// Then
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, big.NewInt(1234), value)
}

func TestAccountNonce(t *testing.T) {
	srv := newTestNode(t, map[string]func([]any) any{
		"system_accountNextIndex": func(params []any) any {
			require.Len(t, params, 1)
			return 41
		},
	})

	c, err := client.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	n, err := c.AccountNonce(context.Background(), types.AccountID{1})
	require.NoError(t, err)
	require.EqualValues(t, 41, n)
}

func TestSubmitWithoutSigner(t *testing.T) {
	srv := newTestNode(t, nil)

	c, err := client.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Submit(context.Background(), types.NewCall("issue", "cancel_issue", make([]byte, 32)))
	require.ErrorIs(t, err, client.ErrNoSigner)
}

func TestResolveDispatchError(t *testing.T) {
	srv := newTestNode(t, nil)

	c, err := client.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer c.Close()

	t.Run("module error resolves to a name", func(t *testing.T) {
		ev := &types.Event{
			Pallet:  "system",
			Variant: "ExtrinsicFailed",
			Fields: []any{scale.EnumValue{Name: "Module", Fields: []any{
				uint8(metadata.PalletIndexIssue), uint8(1),
			}}},
		}

		dispatchErr, err := c.ResolveDispatchError(ev)
		require.NoError(t, err)
		require.Equal(t, "issue", dispatchErr.Pallet)
		require.Equal(t, "CommitPeriodExpired", dispatchErr.Name)
		require.Contains(t, dispatchErr.Error(), "issue::CommitPeriodExpired")
	})

	t.Run("non-module arm", func(t *testing.T) {
		ev := &types.Event{
			Pallet:  "system",
			Variant: "ExtrinsicFailed",
			Fields:  []any{scale.EnumValue{Name: "BadOrigin"}},
		}

		dispatchErr, err := c.ResolveDispatchError(ev)
		require.NoError(t, err)
		require.Equal(t, "BadOrigin", dispatchErr.Kind)
	})

	t.Run("unrelated event", func(t *testing.T) {
		ev := &types.Event{Pallet: "issue", Variant: "ExecuteIssue"}

		_, err := c.ResolveDispatchError(ev)
		require.ErrorIs(t, err, client.ErrNotDispatchError)
	})
}
