package jsonrpc_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/retry"
)

type serverRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func newTestServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
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

func fastReconnectPolicy() retry.Policy {
	return retry.Policy{
		InitialInterval:     10 * time.Millisecond,
		MaxInterval:         50 * time.Millisecond,
		Multiplier:          1.5,
		RandomizationFactor: 0,
		MaxRetries:          5,
		MaxElapsedTime:      5 * time.Second,
	}
}

func respond(conn *websocket.Conn, id uint64, result any) error {
	return conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func notify(conn *websocket.Conn, method, subID string, result any) error {
	return conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  map[string]any{"subscription": subID, "result": result},
	})
}

func recv(t *testing.T, ch <-chan json.RawMessage) (json.RawMessage, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification")
		return nil, false
	}
}

func TestCall_OutOfOrderCorrelation(t *testing.T) {
	// Given a server that answers the second request first
	srv := newTestServer(t, func(conn *websocket.Conn) {
		var first, second serverRequest
		if err := conn.ReadJSON(&first); err != nil {
			return
		}
		if err := conn.ReadJSON(&second); err != nil {
			return
		}
		_ = respond(conn, second.ID, second.Method)
		_ = respond(conn, first.ID, first.Method)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer client.Close()

	// When two calls are in flight concurrently
	results := make(chan string, 2)
	for _, method := range []string{"chain_getBlockHash", "system_health"} {
		go func(method string) {
			res, callErr := client.Call(context.Background(), method)
			require.NoError(t, callErr)
			var echoed string
			require.NoError(t, json.Unmarshal(res, &echoed))
			results <- echoed
		}(method)
		time.Sleep(50 * time.Millisecond) // keep request order deterministic
	}

	// Then each caller receives its own response
	received := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			received[r] = true
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for call results")
		}
	}
	require.True(t, received["chain_getBlockHash"])
	require.True(t, received["system_health"])
}

func TestCall_RPCError(t *testing.T) {
	// Given a server that rejects the call
	srv := newTestServer(t, func(conn *websocket.Conn) {
		var req serverRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": 1010, "message": "Invalid Transaction"},
		})
	})

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer client.Close()

	// When
	_, err = client.Call(context.Background(), "author_submitExtrinsic", "0x00")

	// Then the chain-level error surfaces typed, not as a transport failure
	var rpcErr *jsonrpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 1010, rpcErr.Code)
	require.NotErrorIs(t, err, jsonrpc.ErrTransport)
}

func TestCall_Timeout(t *testing.T) {
	// Given a server that never answers
	srv := newTestServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv), jsonrpc.WithCallTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer client.Close()

	// When
	_, err = client.Call(context.Background(), "system_health")

	// Then
	require.ErrorIs(t, err, jsonrpc.ErrTransport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribe_DeliversAndUnsubscribes(t *testing.T) {
	unsubscribed := make(chan string, 1)

	srv := newTestServer(t, func(conn *websocket.Conn) {
		for {
			var req serverRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "chain_subscribeFinalizedHeads":
				_ = respond(conn, req.ID, "sub-1")
				_ = notify(conn, "chain_finalizedHead", "sub-1", map[string]any{"number": "0x1"})
				_ = notify(conn, "chain_finalizedHead", "sub-1", map[string]any{"number": "0x2"})
			case "chain_unsubscribeFinalizedHeads":
				unsubscribed <- fmt.Sprintf("%v", req.Params[0])
				_ = respond(conn, req.ID, true)
			}
		}
	})

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer client.Close()

	// When
	sub, err := client.Subscribe(context.Background(), "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	require.NoError(t, err)

	// Then both notifications arrive in order
	first, ok := recv(t, sub.Notifications())
	require.True(t, ok)
	require.JSONEq(t, `{"number":"0x1"}`, string(first))

	second, ok := recv(t, sub.Notifications())
	require.True(t, ok)
	require.JSONEq(t, `{"number":"0x2"}`, string(second))

	// and unsubscribing releases the stream cleanly
	sub.Unsubscribe()

	select {
	case id := <-unsubscribed:
		require.Equal(t, "sub-1", id)
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw the unsubscribe call")
	}

	_, open := <-sub.Notifications()
	require.False(t, open)
	require.NoError(t, sub.Err())
}

func TestSubscribe_ReconnectResubscribes(t *testing.T) {
	var connCount atomic.Int32

	srv := newTestServer(t, func(conn *websocket.Conn) {
		n := connCount.Add(1)
		var req serverRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subID := fmt.Sprintf("sub-%d", n)
		_ = respond(conn, req.ID, subID)
		_ = notify(conn, "chain_finalizedHead", subID, int(n)*100)

		if n == 1 {
			// drop the connection under the subscriber
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv), jsonrpc.WithReconnectPolicy(fastReconnectPolicy()))
	require.NoError(t, err)
	defer client.Close()

	sub, err := client.Subscribe(context.Background(), "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	require.NoError(t, err)

	// When the connection drops after the first notification

	// Then the consumer sees a gap, not a terminated stream
	first, ok := recv(t, sub.Notifications())
	require.True(t, ok)
	require.Equal(t, "100", string(first))

	second, ok := recv(t, sub.Notifications())
	require.True(t, ok)
	require.Equal(t, "200", string(second))

	require.GreaterOrEqual(t, connCount.Load(), int32(2))
}

func TestSubscribe_ReconnectBudgetExhausted(t *testing.T) {
	srv := newTestServer(t, func(conn *websocket.Conn) {
		var req serverRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = respond(conn, req.ID, "sub-1")
	})

	policy := fastReconnectPolicy()
	policy.MaxRetries = 2

	client, err := jsonrpc.Connect(context.Background(), wsURL(srv), jsonrpc.WithReconnectPolicy(policy))
	require.NoError(t, err)
	defer client.Close()

	sub, err := client.Subscribe(context.Background(), "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	require.NoError(t, err)

	// When the endpoint goes away for good
	srv.CloseClientConnections()
	srv.Close()

	// Then the stream terminates with ErrSubscriptionLost
	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, open := <-sub.Notifications():
			if !open {
				require.ErrorIs(t, sub.Err(), jsonrpc.ErrSubscriptionLost)
				return
			}
		case <-deadline:
			t.Fatal("subscription was never marked lost")
		}
	}
}
