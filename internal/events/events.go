// Package events streams decoded chain events from finalized blocks to any
// number of filtered watchers. Each finalized head is processed exactly
// once and in order; heights missed during an outage are backfilled before
// newer ones are touched.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/btc-parachain/chainrpc/internal/jsonrpc"
	"github.com/btc-parachain/chainrpc/internal/metadata"
	"github.com/btc-parachain/chainrpc/internal/retry"
	"github.com/btc-parachain/chainrpc/pkg/scale"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var ErrSubscriberClosed = errors.New("event subscriber closed")

// Stream is a live chain notification feed.
type Stream interface {
	Notifications() <-chan json.RawMessage
	Err() error
	Unsubscribe()
}

// Conn is the transport surface the subscriber needs.
//
//go:generate moq -pkg mocks -out ./mocks/conn_mock.go . Conn
type Conn interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Subscribe(ctx context.Context, method, unsubMethod string, params ...any) (Stream, error)
}

// StateReader reads raw storage bytes at a block.
//
//go:generate moq -pkg mocks -out ./mocks/state_reader_mock.go . StateReader
type StateReader interface {
	GetRaw(ctx context.Context, key types.StorageKey, at *types.H256) ([]byte, bool, error)
}

const defaultWatcherBuffer = 128

// Subscriber drives the finalized-head subscription and fans decoded
// events out to registered watchers.
type Subscriber struct {
	conn    Conn
	state   StateReader
	meta    *metadata.Metadata
	records *scale.TypeDescriptor
	logger  *slog.Logger
	cursor  *Cursor
	policy  retry.Policy
	buffer  int

	mu       sync.RWMutex
	watchers map[uuid.UUID]*Watcher
	closed   bool

	// highest fully processed height; 0 means nothing processed yet
	processed uint64
}

// WithCursor persists processed heights so a restart backfills missed
// blocks.
func WithCursor(cursor *Cursor) func(*Subscriber) {
	return func(s *Subscriber) {
		s.cursor = cursor
	}
}

// WithWatcherBuffer sets the per-watcher channel capacity.
func WithWatcherBuffer(n int) func(*Subscriber) {
	return func(s *Subscriber) {
		s.buffer = n
	}
}

// WithRetryPolicy bounds the backoff loop around transport failures while
// processing a block.
func WithRetryPolicy(p retry.Policy) func(*Subscriber) {
	return func(s *Subscriber) {
		s.policy = p
	}
}

func NewSubscriber(conn Conn, state StateReader, meta *metadata.Metadata, logger *slog.Logger, opts ...func(*Subscriber)) *Subscriber {
	s := &Subscriber{
		conn:     conn,
		state:    state,
		meta:     meta,
		records:  meta.EventRecordsDescriptor(),
		logger:   logger,
		policy:   retry.DefaultPolicy(),
		buffer:   defaultWatcherBuffer,
		watchers: make(map[uuid.UUID]*Watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch registers a consumer for events matching any of the filters. No
// filters means every event. The watcher sees heights in non-decreasing
// order; a slow watcher loses events rather than stalling the others.
func (s *Subscriber) Watch(filters ...types.EventFilter) (*Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}

	w := &Watcher{
		id:      uuid.New(),
		filters: filters,
		ch:      make(chan *types.Event, s.buffer),
		remove:  s.remove,
	}
	s.watchers[w.id] = w
	return w, nil
}

func (s *Subscriber) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.watchers[id]; ok {
		delete(s.watchers, id)
		close(w.ch)
	}
}

// Run processes finalized heads until the context is cancelled or the
// subscription is lost beyond recovery. On return all watcher channels are
// closed.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.closeWatchers()

	if s.cursor != nil {
		height, found, err := s.cursor.Load()
		if err != nil {
			return err
		}
		if found {
			s.processed = height
		}
	}

	stream, err := s.conn.Subscribe(ctx,
		"chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	if err != nil {
		return err
	}
	defer stream.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-stream.Notifications():
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return nil
			}
			if err := s.handleHead(ctx, raw); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w.ch)
	}
}

// handleHead processes every height up to and including the announced one.
// A restart or a slow notification stream leaves gaps; walking up from the
// last processed height keeps delivery gapless and ordered.
func (s *Subscriber) handleHead(ctx context.Context, raw json.RawMessage) error {
	var header struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return fmt.Errorf("undecodable finalized head: %w", err)
	}
	head, err := parseHexNumber(header.Number)
	if err != nil {
		return fmt.Errorf("undecodable head number %q: %w", header.Number, err)
	}

	start := head
	if s.processed > 0 {
		if head <= s.processed {
			// already seen, nothing to do
			return nil
		}
		start = s.processed + 1
	}
	if start < head {
		s.logger.Info("backfilling finalized blocks",
			slog.Uint64("from", start), slog.Uint64("to", head))
	}

	for height := start; height <= head; height++ {
		if err := s.processBlock(ctx, height); err != nil {
			return err
		}
		s.processed = height
		processedHeight.Set(float64(height))
		if s.cursor != nil {
			if err := s.cursor.Store(height); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify keeps transient transport failures inside the retry loop; a
// reconnecting transport surfaces them for every call issued during the
// outage window, and those must widen the backfill gap, not kill the
// subscription.
func classify(err error) retry.Class {
	if errors.Is(err, jsonrpc.ErrTransport) {
		return retry.Retryable
	}
	return retry.Fatal
}

func (s *Subscriber) processBlock(ctx context.Context, height uint64) error {
	res, err := retry.DoWithData(ctx, s.logger, s.policy, "chain_getBlockHash", classify,
		func() (json.RawMessage, error) {
			return s.conn.Call(ctx, "chain_getBlockHash", height)
		})
	if err != nil {
		return err
	}
	var hexHash string
	if err := json.Unmarshal(res, &hexHash); err != nil {
		return fmt.Errorf("block %d: undecodable hash: %w", height, err)
	}
	hash, err := types.ParseH256(hexHash)
	if err != nil {
		return fmt.Errorf("block %d: %w", height, err)
	}

	raw, found, err := s.state.GetRaw(ctx, types.NewStorageKey("system", "Events"), &hash)
	if err != nil {
		return fmt.Errorf("block %d: reading events: %w", height, err)
	}
	if !found {
		return nil
	}

	block := types.BlockRef{Hash: hash, Number: height}
	decoded, err := s.decodeRecords(raw, block)
	if err != nil {
		// A block whose event layout does not match the metadata cannot be
		// delivered, but stalling the stream over it helps nobody.
		s.logger.Error("skipping undecodable event records",
			slog.Uint64("height", height), slog.String("err", err.Error()))
		undecodableBlocks.Inc()
		return nil
	}

	s.publish(decoded)
	return nil
}

func (s *Subscriber) decodeRecords(raw []byte, block types.BlockRef) ([]*types.Event, error) {
	decoded, err := scale.Unmarshal(raw, s.records)
	if err != nil {
		return nil, err
	}
	records, ok := decoded.([]any)
	if !ok {
		return nil, errors.Join(scale.ErrSchemaMismatch, fmt.Errorf("event records decoded to %T", decoded))
	}

	events := make([]*types.Event, 0, len(records))
	for i, record := range records {
		fields, ok := record.(map[string]any)
		if !ok {
			return nil, errors.Join(scale.ErrSchemaMismatch, fmt.Errorf("event record %d decoded to %T", i, record))
		}
		pallet, ok := fields["event"].(scale.EnumValue)
		if !ok || len(pallet.Fields) != 1 {
			return nil, errors.Join(scale.ErrSchemaMismatch, fmt.Errorf("event record %d has no pallet arm", i))
		}
		variant, ok := pallet.Fields[0].(scale.EnumValue)
		if !ok {
			return nil, errors.Join(scale.ErrSchemaMismatch, fmt.Errorf("event record %d has no variant arm", i))
		}

		events = append(events, &types.Event{
			Pallet:    pallet.Name,
			Variant:   variant.Name,
			Fields:    variant.Fields,
			Block:     block,
			Finalized: true,
			Index:     uint32(i),
		})
	}
	return events, nil
}

func (s *Subscriber) publish(events []*types.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range events {
		eventsTotal.WithLabelValues(ev.Pallet).Inc()
		for _, w := range s.watchers {
			if !w.deliver(ev) {
				s.logger.Warn("watcher buffer full, dropping event",
					slog.String("watcher", w.id.String()),
					slog.String("event", ev.Pallet+"::"+ev.Variant),
					slog.Uint64("height", ev.Block.Number))
				watcherDrops.Inc()
			}
		}
	}
}

// Watcher is one registered event consumer.
type Watcher struct {
	id      uuid.UUID
	filters []types.EventFilter
	ch      chan *types.Event
	remove  func(uuid.UUID)
	cancel  sync.Once
}

// Events streams matching events. The channel is closed on Cancel or when
// the subscriber shuts down.
func (w *Watcher) Events() <-chan *types.Event {
	return w.ch
}

func (w *Watcher) Cancel() {
	w.cancel.Do(func() {
		w.remove(w.id)
	})
}

func (w *Watcher) matches(ev *types.Event) bool {
	if len(w.filters) == 0 {
		return true
	}
	for _, f := range w.filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// deliver is non-blocking: a full watcher buffer drops the event so one
// stalled consumer cannot hold back block processing. Reports false on a
// drop.
func (w *Watcher) deliver(ev *types.Event) bool {
	if !w.matches(ev) {
		return true
	}
	select {
	case w.ch <- ev:
		return true
	default:
		return false
	}
}

func parseHexNumber(s string) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "0x%x", &n); err != nil {
		return 0, err
	}
	return n, nil
}
