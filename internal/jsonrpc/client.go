// Package jsonrpc implements the websocket transport to a chain node: a
// persistent duplex JSON-RPC 2.0 connection with request/response
// correlation, subscription multiplexing and automatic reconnect.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/btc-parachain/chainrpc/internal/retry"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultSubBuffer   = 256
	// unclaimed notifications are kept briefly for subscriptions whose
	// confirmation response has not been routed yet
	maxUnclaimedPerSub = 16
)

var errNotConnected = errors.New("not connected")

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type inbound struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
	Method  string          `json:"method"`
	Params  *inboundParams  `json:"params"`
}

type inboundParams struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

// Client is a websocket JSON-RPC connection. It is safe for concurrent use;
// in-flight calls are correlated by request id, so responses may arrive out
// of order.
type Client struct {
	url             string
	logger          *slog.Logger
	dialer          *websocket.Dialer
	callTimeout     time.Duration
	subBuffer       int
	reconnectPolicy retry.Policy

	nextID atomic.Uint64

	closeCtx    context.Context
	closeCancel context.CancelFunc

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[uint64]chan callResult
	subs      map[string]*Subscription
	unclaimed map[string][]json.RawMessage
	closed    bool
}

func WithLogger(logger *slog.Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallTimeout sets the default timeout applied to calls whose context
// carries no deadline.
func WithCallTimeout(d time.Duration) func(*Client) {
	return func(c *Client) {
		c.callTimeout = d
	}
}

// WithReconnectPolicy bounds the reconnect loop after a dropped connection.
func WithReconnectPolicy(p retry.Policy) func(*Client) {
	return func(c *Client) {
		c.reconnectPolicy = p
	}
}

// WithSubscriptionBuffer sets the per-subscription notification buffer.
func WithSubscriptionBuffer(n int) func(*Client) {
	return func(c *Client) {
		c.subBuffer = n
	}
}

// Connect dials the node and starts the read loop.
func Connect(ctx context.Context, url string, opts ...func(*Client)) (*Client, error) {
	closeCtx, closeCancel := context.WithCancel(context.Background())

	c := &Client{
		url:             url,
		logger:          slog.Default(),
		dialer:          websocket.DefaultDialer,
		callTimeout:     defaultCallTimeout,
		subBuffer:       defaultSubBuffer,
		reconnectPolicy: retry.DefaultPolicy(),
		closeCtx:        closeCtx,
		closeCancel:     closeCancel,
		pending:         make(map[uint64]chan callResult),
		subs:            make(map[string]*Subscription),
		unclaimed:       make(map[string][]json.RawMessage),
	}

	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		closeCancel()
		return nil, errors.Join(ErrTransport, err)
	}

	c.conn = conn
	go c.readLoop(conn)

	return c, nil
}

// Call performs a request/response round trip. Node-side errors come back
// as *RPCError; connection-level failures and timeouts wrap ErrTransport.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, errors.Join(ErrTransport, errNotConnected)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.removePending(id)
		callsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, errors.Join(ErrTransport, err)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			callsTotal.WithLabelValues(method, "error").Inc()
			return nil, res.err
		}
		callsTotal.WithLabelValues(method, "ok").Inc()
		return res.result, nil

	case <-ctx.Done():
		c.removePending(id)
		callsTotal.WithLabelValues(method, "timeout").Inc()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Join(ErrTransport, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// Subscribe opens a long-lived notification stream. The subscription is
// reissued automatically after a reconnect; consumers observe a gap, not a
// terminated stream, unless the reconnect budget is exhausted.
func (c *Client) Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (*Subscription, error) {
	res, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}

	id, err := normalizeSubID(res)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		client:      c,
		method:      method,
		unsubMethod: unsubMethod,
		params:      params,
		id:          id,
		ch:          make(chan json.RawMessage, c.subBuffer),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.subs[id] = sub
	for _, raw := range c.unclaimed[id] {
		sub.deliver(raw)
	}
	delete(c.unclaimed, id)
	c.mu.Unlock()

	return sub, nil
}

// Close terminates the connection, fails in-flight calls and closes all
// subscription streams cleanly.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil

	pending := c.pending
	c.pending = make(map[uint64]chan callResult)

	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	c.closeCancel()

	for _, ch := range pending {
		ch <- callResult{err: ErrClientClosed}
	}
	for _, s := range subs {
		s.fail(nil)
	}

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("discarding unparseable message", slog.String("err", err.Error()))
		return
	}

	switch {
	case msg.ID != nil:
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		c.mu.Unlock()
		if !ok {
			// late response for a call that timed out locally
			return
		}
		if msg.Error != nil {
			ch <- callResult{err: msg.Error}
			return
		}
		ch <- callResult{result: msg.Result}

	case msg.Params != nil:
		id, err := normalizeSubID(msg.Params.Subscription)
		if err != nil {
			c.logger.Warn("notification without usable subscription id", slog.String("err", err.Error()))
			return
		}

		c.mu.Lock()
		sub, ok := c.subs[id]
		if !ok {
			if len(c.unclaimed[id]) < maxUnclaimedPerSub {
				c.unclaimed[id] = append(c.unclaimed[id], msg.Params.Result)
			}
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		sub.deliver(msg.Params.Result)
	}
}

// handleDisconnect runs on the read loop of the failed connection. It fails
// all in-flight calls, then tries to bring the connection back and reissue
// every active subscription.
func (c *Client) handleDisconnect(failed *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint64]chan callResult)
	c.mu.Unlock()

	_ = failed.Close()

	for _, ch := range pending {
		ch <- callResult{err: errors.Join(ErrTransport, cause)}
	}

	c.logger.Warn("connection lost, reconnecting", slog.String("url", c.url), slog.String("err", cause.Error()))

	conn, err := retry.DoWithData(c.closeCtx, c.logger, c.reconnectPolicy, "reconnect", nil, func() (*websocket.Conn, error) {
		conn, _, dialErr := c.dialer.DialContext(c.closeCtx, c.url, nil)
		if dialErr != nil {
			return nil, errors.Join(ErrTransport, dialErr)
		}
		return conn, nil
	})
	if err != nil {
		c.failSubscriptions(errors.Join(ErrSubscriptionLost, cause))
		c.logger.Error("reconnect budget exhausted", slog.String("url", c.url), slog.String("err", err.Error()))
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	reconnectsTotal.Inc()
	go c.readLoop(conn)

	for _, sub := range subs {
		if err := c.resubscribe(sub); err != nil {
			c.logger.Error("resubscription failed",
				slog.String("method", sub.method),
				slog.String("err", err.Error()),
			)
		}
	}

	c.logger.Info("reconnected", slog.String("url", c.url))
}

func (c *Client) resubscribe(sub *Subscription) error {
	ctx, cancel := context.WithTimeout(c.closeCtx, c.callTimeout)
	defer cancel()

	res, err := c.Call(ctx, sub.method, sub.params...)
	if err != nil {
		c.removeSub(sub)
		sub.fail(errors.Join(ErrSubscriptionLost, err))
		return err
	}

	newID, err := normalizeSubID(res)
	if err != nil {
		c.removeSub(sub)
		sub.fail(errors.Join(ErrSubscriptionLost, err))
		return err
	}

	c.mu.Lock()
	delete(c.subs, sub.id)
	sub.id = newID
	c.subs[newID] = sub
	for _, raw := range c.unclaimed[newID] {
		sub.deliver(raw)
	}
	delete(c.unclaimed, newID)
	c.mu.Unlock()

	return nil
}

func (c *Client) failSubscriptions(err error) {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

func (c *Client) removePending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) removeSub(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub.id)
	c.mu.Unlock()
}

// normalizeSubID accepts both string and numeric subscription ids.
func normalizeSubID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10), nil
	}
	return "", errors.Join(ErrTransport, errors.New("unparseable subscription id: "+string(raw)))
}
