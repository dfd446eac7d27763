// Package client is the typed entry point to a parachain node: connect,
// query storage, submit signed extrinsics, and watch finalized events.
package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/btc-parachain/chainrpc/internal/events"
	"github.com/btc-parachain/chainrpc/internal/extrinsic"
	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/internal/nonce"
	"github.com/btc-parachain/chainrpc/internal/retry"
	"github.com/btc-parachain/chainrpc/internal/storage"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var (
	// ErrInvalidSpecVersion is returned on connect when the node's runtime
	// does not match the pinned spec version. Submitting against a
	// mismatched runtime would produce invalid signatures at best.
	ErrInvalidSpecVersion = errors.New("unexpected runtime spec version")
	// ErrNoSigner is returned from Submit when the client was connected
	// without signing capability.
	ErrNoSigner = errors.New("no signer configured")
	ErrClosed   = errors.New("client closed")
)

// Client wires the transport, codec, storage and submission layers behind
// one connection. Safe for concurrent use.
type Client struct {
	rpc    *jsonrpc.Client
	meta   *metadata.Metadata
	spec   extrinsic.ChainSpec
	logger *slog.Logger
	policy retry.Policy

	signer    types.Signer
	nonces    *nonce.Tracker
	store     *storage.Engine
	submitter *extrinsic.Submitter

	subscriber *events.Subscriber
	eventsOnce sync.Once
	eventsCtx  context.Context
	eventsStop context.CancelFunc

	expectedSpecVersion uint32
	cursorFile          string
	watcherBuffer       int
	tip                 uint64
}

func WithLogger(logger *slog.Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSigner enables Submit. Without one the client is query-only.
func WithSigner(signer types.Signer) func(*Client) {
	return func(c *Client) {
		c.signer = signer
	}
}

// WithExpectedSpecVersion refuses the connection unless the node runs
// exactly this runtime version. Zero disables the check.
func WithExpectedSpecVersion(v uint32) func(*Client) {
	return func(c *Client) {
		c.expectedSpecVersion = v
	}
}

// WithRetryPolicy bounds every retried operation: reconnects, storage
// reads, head processing.
func WithRetryPolicy(p retry.Policy) func(*Client) {
	return func(c *Client) {
		c.policy = p
	}
}

// WithEventCursor persists event progress at the given path so a restart
// backfills missed finalized blocks.
func WithEventCursor(path string) func(*Client) {
	return func(c *Client) {
		c.cursorFile = path
	}
}

func WithWatcherBuffer(n int) func(*Client) {
	return func(c *Client) {
		c.watcherBuffer = n
	}
}

// WithTip attaches a priority tip to every submitted extrinsic.
func WithTip(tip uint64) func(*Client) {
	return func(c *Client) {
		c.tip = tip
	}
}

// Connect dials the node, loads its metadata and runtime version, and
// verifies the spec version pin.
func Connect(ctx context.Context, url string, opts ...func(*Client)) (*Client, error) {
	c := &Client{
		logger:        slog.Default(),
		policy:        retry.DefaultPolicy(),
		watcherBuffer: 0,
	}
	for _, opt := range opts {
		opt(c)
	}

	rpc, err := jsonrpc.Connect(ctx, url,
		jsonrpc.WithLogger(c.logger),
		jsonrpc.WithReconnectPolicy(c.policy),
	)
	if err != nil {
		return nil, err
	}
	c.rpc = rpc

	if err := c.handshake(ctx); err != nil {
		_ = rpc.Close()
		return nil, err
	}

	c.store = storage.NewEngine(rpc, c.meta, c.logger, c.policy)
	c.nonces = nonce.NewTracker(c.logger, c.fetchAccountNonce)
	if c.signer != nil {
		builder := extrinsic.NewBuilder(c.meta, c.spec)
		c.submitter = extrinsic.NewSubmitter(submitConn{rpc}, builder, c.signer, c.nonces, c.logger,
			extrinsic.WithTip(c.tip), extrinsic.WithRetryPolicy(c.policy))
	}

	c.eventsCtx, c.eventsStop = context.WithCancel(context.Background())

	c.logger.Info("connected",
		slog.String("url", url),
		slog.Any("specVersion", c.spec.SpecVersion),
		slog.String("genesis", c.spec.GenesisHash.Hex()))
	return c, nil
}

// handshake loads metadata, runtime version and genesis hash, the three
// things every signed payload commits to.
func (c *Client) handshake(ctx context.Context) error {
	res, err := c.rpc.Call(ctx, "state_getMetadata")
	if err != nil {
		return err
	}
	var metaHex string
	if err := json.Unmarshal(res, &metaHex); err != nil {
		return fmt.Errorf("undecodable metadata response: %w", err)
	}
	blob, err := hex.DecodeString(strings.TrimPrefix(metaHex, "0x"))
	if err != nil {
		return errors.Join(metadata.ErrInvalidMetadata, err)
	}
	c.meta, err = metadata.Decode(blob)
	if err != nil {
		return err
	}

	res, err = c.rpc.Call(ctx, "state_getRuntimeVersion")
	if err != nil {
		return err
	}
	var version struct {
		SpecVersion        uint32 `json:"specVersion"`
		TransactionVersion uint32 `json:"transactionVersion"`
	}
	if err := json.Unmarshal(res, &version); err != nil {
		return fmt.Errorf("undecodable runtime version: %w", err)
	}

	if c.expectedSpecVersion != 0 && version.SpecVersion != c.expectedSpecVersion {
		return errors.Join(ErrInvalidSpecVersion,
			fmt.Errorf("node runs spec %d, client pinned to %d", version.SpecVersion, c.expectedSpecVersion))
	}

	res, err = c.rpc.Call(ctx, "chain_getBlockHash", 0)
	if err != nil {
		return err
	}
	var genesisHex string
	if err := json.Unmarshal(res, &genesisHex); err != nil {
		return fmt.Errorf("undecodable genesis hash: %w", err)
	}
	genesis, err := types.ParseH256(genesisHex)
	if err != nil {
		return err
	}

	c.spec = extrinsic.ChainSpec{
		GenesisHash: genesis,
		SpecVersion: version.SpecVersion,
		TxVersion:   version.TransactionVersion,
	}
	return nil
}

func (c *Client) fetchAccountNonce(ctx context.Context, account types.AccountID) (uint32, error) {
	res, err := retry.DoWithData(ctx, c.logger, c.policy, "system_accountNextIndex", transportOnly, func() (json.RawMessage, error) {
		return c.rpc.Call(ctx, "system_accountNextIndex", account.Hex())
	})
	if err != nil {
		return 0, err
	}
	var n uint32
	if err := json.Unmarshal(res, &n); err != nil {
		return 0, fmt.Errorf("undecodable account nonce: %w", err)
	}
	return n, nil
}

func transportOnly(err error) retry.Class {
	if errors.Is(err, jsonrpc.ErrTransport) {
		return retry.Retryable
	}
	return retry.Fatal
}

// Metadata exposes the decoded chain metadata, for callers that resolve
// dispatch errors or inspect pallet layouts themselves.
func (c *Client) Metadata() *metadata.Metadata {
	return c.meta
}

// SpecVersion reports the runtime version the connection was established
// against.
func (c *Client) SpecVersion() uint32 {
	return c.spec.SpecVersion
}

// Get reads the latest value of a storage key. Absent values yield
// found=false, never an error.
func (c *Client) Get(ctx context.Context, key types.StorageKey) (any, bool, error) {
	return c.store.Get(ctx, key)
}

// GetAt reads a storage key as of a specific block.
func (c *Client) GetAt(ctx context.Context, key types.StorageKey, at types.H256) (any, bool, error) {
	return c.store.GetAt(ctx, key, at)
}

// AccountNonce reads the chain's next expected nonce for an account. This
// bypasses the local tracker; Submit consults the tracker.
func (c *Client) AccountNonce(ctx context.Context, account types.AccountID) (uint32, error) {
	return c.fetchAccountNonce(ctx, account)
}

// FinalizedHead returns the most recent finalized block.
func (c *Client) FinalizedHead(ctx context.Context) (types.BlockRef, error) {
	res, err := c.rpc.Call(ctx, "chain_getFinalizedHead")
	if err != nil {
		return types.BlockRef{}, err
	}
	var hexHash string
	if err := json.Unmarshal(res, &hexHash); err != nil {
		return types.BlockRef{}, fmt.Errorf("undecodable finalized head: %w", err)
	}
	hash, err := types.ParseH256(hexHash)
	if err != nil {
		return types.BlockRef{}, err
	}

	ref := types.BlockRef{Hash: hash}
	res, err = c.rpc.Call(ctx, "chain_getHeader", hash.Hex())
	if err != nil {
		return ref, nil
	}
	var header struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(res, &header); err == nil {
		if _, serr := fmt.Sscanf(header.Number, "0x%x", &ref.Number); serr != nil {
			ref.Number = 0
		}
	}
	return ref, nil
}

// Submit signs the call and follows it through the transaction pool.
func (c *Client) Submit(ctx context.Context, call types.Call) (*extrinsic.Handle, error) {
	if c.submitter == nil {
		return nil, ErrNoSigner
	}
	return c.submitter.Submit(ctx, call)
}

// Watch streams decoded events from finalized blocks matching the filters.
// The first watcher starts the shared event subscription; it runs until
// Close.
func (c *Client) Watch(filters ...types.EventFilter) (*events.Watcher, error) {
	var startErr error
	c.eventsOnce.Do(func() {
		opts := []func(*events.Subscriber){events.WithRetryPolicy(c.policy)}
		if c.watcherBuffer > 0 {
			opts = append(opts, events.WithWatcherBuffer(c.watcherBuffer))
		}
		if c.cursorFile != "" {
			cursor, err := events.OpenCursor(c.cursorFile)
			if err != nil {
				startErr = err
				return
			}
			opts = append(opts, events.WithCursor(cursor))
			go func() {
				<-c.eventsCtx.Done()
				_ = cursor.Close()
			}()
		}

		c.subscriber = events.NewSubscriber(eventConn{c.rpc}, c.store, c.meta, c.logger, opts...)
		go func() {
			if err := c.subscriber.Run(c.eventsCtx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("event subscription terminated", slog.String("err", err.Error()))
			}
		}()
	})
	if startErr != nil {
		return nil, startErr
	}
	if c.subscriber == nil {
		return nil, ErrClosed
	}
	return c.subscriber.Watch(filters...)
}

// Close stops event processing and tears down the connection.
func (c *Client) Close() error {
	if c.eventsStop != nil {
		c.eventsStop()
	}
	return c.rpc.Close()
}

// submitConn and eventConn adapt the concrete transport to the interfaces
// the extrinsic and events packages accept.
type submitConn struct {
	rpc *jsonrpc.Client
}

func (c submitConn) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.rpc.Call(ctx, method, params...)
}

func (c submitConn) Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (extrinsic.Stream, error) {
	return c.rpc.Subscribe(ctx, method, unsubMethod, params...)
}

type eventConn struct {
	rpc *jsonrpc.Client
}

func (c eventConn) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.rpc.Call(ctx, method, params...)
}

func (c eventConn) Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (events.Stream, error) {
	return c.rpc.Subscribe(ctx, method, unsubMethod, params...)
}
