package extrinsic

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/nonce"
	"github.com/btc-parachain/chainrpc/internal/retry"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

// poolInvalidTx is the node's error code for transactions the pool rejects
// as invalid, which includes stale and future nonces.
const poolInvalidTx = 1010

var (
	// ErrSubmissionRejected is returned when the node refuses an extrinsic
	// outright. The allocated nonce is rolled back.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrNonceConflict marks a pool rejection that persisted through a
	// nonce resync and single resubmission.
	ErrNonceConflict = errors.New("nonce conflict")
)

// Stream is a live notification feed for one submission.
type Stream interface {
	Notifications() <-chan json.RawMessage
	Err() error
	Unsubscribe()
}

// Conn is the transport surface the submitter needs.
//
//go:generate moq -pkg mocks -out ./mocks/conn_mock.go . Conn
type Conn interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (Stream, error)
}

// Submitter signs and submits calls, following each one through the pool.
// Safe for concurrent use; the nonce tracker serializes number allocation.
type Submitter struct {
	conn    Conn
	builder *Builder
	signer  types.Signer
	nonces  *nonce.Tracker
	logger  *slog.Logger
	policy  retry.Policy
	tip     uint64
}

func WithTip(tip uint64) func(*Submitter) {
	return func(s *Submitter) {
		s.tip = tip
	}
}

// WithRetryPolicy bounds the backoff loop around transport failures during
// submission.
func WithRetryPolicy(p retry.Policy) func(*Submitter) {
	return func(s *Submitter) {
		s.policy = p
	}
}

func NewSubmitter(conn Conn, builder *Builder, signer types.Signer, nonces *nonce.Tracker, logger *slog.Logger, opts ...func(*Submitter)) *Submitter {
	s := &Submitter{
		conn:    conn,
		builder: builder,
		signer:  signer,
		nonces:  nonces,
		logger:  logger,
		policy:  retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit signs the call and places it in the transaction pool, returning a
// handle over its lifecycle. A pool rejection for an invalid nonce triggers
// one resync-and-resubmit before the error is surfaced.
func (s *Submitter) Submit(ctx context.Context, call types.Call) (*Handle, error) {
	account := s.signer.AccountID()

	allocated, err := s.nonces.Next(ctx, account)
	if err != nil {
		return nil, err
	}

	stream, err := s.submitWithNonce(ctx, call, allocated)
	if err == nil {
		return s.watch(call, stream), nil
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		// never got past the transport; the node never saw the number
		s.nonces.Rollback(account, allocated)
		return nil, err
	}
	if rpcErr.Code != poolInvalidTx {
		s.nonces.Rollback(account, allocated)
		submissionsTotal.WithLabelValues(call.Pallet, "rejected").Inc()
		return nil, errors.Join(ErrSubmissionRejected, err)
	}

	// The pool holds a different view of the account's sequence, typically
	// because another signer for the same account got there first. Refetch
	// and try once with a fresh number.
	s.logger.Warn("pool rejected nonce, resyncing",
		slog.String("call", call.String()), slog.Any("nonce", allocated))
	nonceConflicts.Inc()

	resynced, err := s.nonces.Resync(ctx, account)
	if err != nil {
		return nil, err
	}

	stream, err = s.submitWithNonce(ctx, call, resynced)
	if err != nil {
		s.nonces.Rollback(account, resynced)
		if !errors.As(err, &rpcErr) {
			return nil, err
		}
		submissionsTotal.WithLabelValues(call.Pallet, "rejected").Inc()
		return nil, errors.Join(ErrNonceConflict, err)
	}
	return s.watch(call, stream), nil
}

// classify keeps transport failures inside the retry loop. Chain-level
// rejections carry an RPC error and retrying cannot change the answer.
func classify(err error) retry.Class {
	if errors.Is(err, jsonrpc.ErrTransport) {
		return retry.Retryable
	}
	return retry.Fatal
}

func (s *Submitter) submitWithNonce(ctx context.Context, call types.Call, n uint32) (Stream, error) {
	signed, err := s.builder.Build(s.signer, call, n, s.tip)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("submitting extrinsic",
		slog.String("call", call.String()),
		slog.Any("nonce", n),
		slog.Int("bytes", len(signed)))

	// The pool deduplicates identical extrinsics, so replaying the same
	// signed bytes over a flaky transport cannot double-submit.
	return retry.DoWithData(ctx, s.logger, s.policy, "author_submitAndWatchExtrinsic", classify,
		func() (Stream, error) {
			return s.conn.Subscribe(ctx,
				"author_submitAndWatchExtrinsic", "author_unwatchExtrinsic",
				"0x"+hex.EncodeToString(signed))
		})
}

// Handle follows one submission through the pool. Updates carries every
// status transition and is closed after a terminal one.
type Handle struct {
	call    types.Call
	stream  Stream
	updates chan types.StatusUpdate
	done    chan struct{}
	quit    chan struct{}
	cancel  sync.Once
}

func (s *Submitter) watch(call types.Call, stream Stream) *Handle {
	h := &Handle{
		call:    call,
		stream:  stream,
		updates: make(chan types.StatusUpdate, 8),
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	go h.run(s)
	return h
}

// Updates streams status transitions in pool order. Consumers that fall
// behind the channel buffer block delivery, never lose transitions.
func (h *Handle) Updates() <-chan types.StatusUpdate {
	return h.updates
}

// Done is closed once the submission reaches a terminal status or the
// stream is lost.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// deliver blocks on the consumer but never outlives a Cancel.
func (h *Handle) deliver(update types.StatusUpdate) {
	select {
	case h.updates <- update:
	case <-h.quit:
	}
}

// Cancel stops local tracking and unwatches the extrinsic on the node.
// The transaction itself stays in the pool; an extrinsic cannot be recalled
// once submitted.
func (h *Handle) Cancel() {
	h.cancel.Do(func() {
		close(h.quit)
	})
}

// Wait blocks until a terminal status and returns it.
func (h *Handle) Wait(ctx context.Context) (types.StatusUpdate, error) {
	var last types.StatusUpdate
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case update, ok := <-h.updates:
			if !ok {
				return last, nil
			}
			last = update
		}
	}
}

func (h *Handle) run(s *Submitter) {
	defer close(h.done)
	defer close(h.updates)
	defer h.stream.Unsubscribe()

	// Cancel aborts any in-flight header lookup, not just the next select.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-h.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		var raw json.RawMessage
		var ok bool
		select {
		case <-h.quit:
			submissionsTotal.WithLabelValues(h.call.Pallet, "cancelled").Inc()
			return
		case raw, ok = <-h.stream.Notifications():
		}
		if !ok {
			// stream ended without a terminal status
			if err := h.stream.Err(); err != nil {
				h.deliver(types.StatusUpdate{Status: types.StatusFailed, Err: err})
				submissionsTotal.WithLabelValues(h.call.Pallet, "lost").Inc()
			}
			return
		}

		update, terminal, err := s.decodeStatus(ctx, raw)
		if err != nil {
			s.logger.Error("undecodable pool status",
				slog.String("call", h.call.String()), slog.String("err", err.Error()))
			continue
		}

		h.deliver(update)
		if terminal {
			outcome := "finalized"
			if update.Status == types.StatusFailed {
				outcome = "failed"
			}
			submissionsTotal.WithLabelValues(h.call.Pallet, outcome).Inc()
			return
		}
	}
}

// decodeStatus maps one pool notification to a lifecycle transition. Pool
// statuses arrive either as a bare string ("ready") or as a single-key
// object ({"inBlock": "0x..."}).
func (s *Submitter) decodeStatus(ctx context.Context, raw json.RawMessage) (types.StatusUpdate, bool, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "ready", "broadcast":
			return types.StatusUpdate{Status: types.StatusSubmitted}, false, nil
		case "dropped", "invalid":
			return types.StatusUpdate{
				Status: types.StatusFailed,
				Err:    fmt.Errorf("%w: pool status %q", ErrSubmissionRejected, name),
			}, true, nil
		}
		return types.StatusUpdate{}, false, fmt.Errorf("unknown pool status %q", name)
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return types.StatusUpdate{}, false, err
	}

	for key, value := range tagged {
		switch key {
		case "broadcast":
			return types.StatusUpdate{Status: types.StatusSubmitted}, false, nil
		case "retracted":
			// the block containing it was retracted; it is back in the pool
			return types.StatusUpdate{Status: types.StatusSubmitted}, false, nil
		case "inBlock":
			block, err := s.blockRef(ctx, value)
			return types.StatusUpdate{Status: types.StatusInBlock, Block: block}, false, err
		case "finalized":
			block, err := s.blockRef(ctx, value)
			return types.StatusUpdate{Status: types.StatusFinalized, Block: block}, true, err
		case "dropped", "invalid", "usurped", "finalityTimeout":
			return types.StatusUpdate{
				Status: types.StatusFailed,
				Err:    fmt.Errorf("%w: pool status %q", ErrSubmissionRejected, key),
			}, true, nil
		}
	}
	return types.StatusUpdate{}, false, fmt.Errorf("unknown pool status %s", string(raw))
}

// blockRef resolves the block hash in a status notification, filling in the
// height with a best-effort header lookup.
func (s *Submitter) blockRef(ctx context.Context, raw json.RawMessage) (types.BlockRef, error) {
	var hexHash string
	if err := json.Unmarshal(raw, &hexHash); err != nil {
		return types.BlockRef{}, err
	}
	hash, err := types.ParseH256(hexHash)
	if err != nil {
		return types.BlockRef{}, err
	}

	ref := types.BlockRef{Hash: hash}
	res, err := s.conn.Call(ctx, "chain_getHeader", hash.Hex())
	if err != nil {
		s.logger.Warn("header lookup failed", slog.String("block", hash.Hex()), slog.String("err", err.Error()))
		return ref, nil
	}

	var header struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(res, &header); err == nil {
		if n, perr := parseHexNumber(header.Number); perr == nil {
			ref.Number = n
		}
	}
	return ref, nil
}

func parseHexNumber(s string) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "0x%x", &n); err != nil {
		return 0, err
	}
	return n, nil
}
