package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransport covers connection-level failures: dial errors, dropped
	// sockets, write failures, response timeouts. Always retryable.
	ErrTransport = errors.New("transport failure")
	// ErrSubscriptionLost terminates a subscription stream once the
	// reconnect budget is exhausted.
	ErrSubscriptionLost = errors.New("subscription lost")
	// ErrClientClosed is returned for operations on a closed client.
	ErrClientClosed = errors.New("client closed")
)

// RPCError is an error object returned by the node. It is a chain-level
// response, not a transport failure, so it is not retryable by itself.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
