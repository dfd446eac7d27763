// Package nonce tracks per-account sequence numbers for concurrent
// submitters. The chain is the source of truth; the tracker keeps an
// in-memory high-water mark so parallel submissions from one process never
// reuse a number.
package nonce

import (
	"context"
	"log/slog"
	"sync"

	"github.com/btc-parachain/chainrpc/pkg/types"
)

// Fetcher queries the chain for an account's next expected nonce.
type Fetcher func(ctx context.Context, account types.AccountID) (uint32, error)

type Tracker struct {
	logger *slog.Logger
	fetch  Fetcher

	mu   sync.Mutex
	next map[types.AccountID]uint32
	seen map[types.AccountID]bool
}

func NewTracker(logger *slog.Logger, fetch Fetcher) *Tracker {
	return &Tracker{
		logger: logger,
		fetch:  fetch,
		next:   make(map[types.AccountID]uint32),
		seen:   make(map[types.AccountID]bool),
	}
}

// Next allocates the account's next nonce. Allocation is mutually
// exclusive per tracker, so concurrent submitters get strictly increasing
// numbers with no duplicates. The first allocation for an account is
// initialized from chain state.
func (t *Tracker) Next(ctx context.Context, account types.AccountID) (uint32, error) {
	t.mu.Lock()
	if t.seen[account] {
		n := t.next[account]
		t.next[account] = n + 1
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	// First use: ask the chain. The fetch happens outside the lock; a
	// concurrent first allocation may fetch too, the loser just adopts the
	// stored state.
	fetched, err := t.fetch(ctx, account)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen[account] {
		t.seen[account] = true
		t.next[account] = fetched
	}
	n := t.next[account]
	t.next[account] = n + 1
	return n, nil
}

// Rollback returns an allocated nonce after its extrinsic was rejected
// without reaching the chain. Only the most recent allocation can be
// returned; anything else would reorder numbers under concurrent use.
func (t *Tracker) Rollback(account types.AccountID, nonce uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen[account] && t.next[account] == nonce+1 {
		t.next[account] = nonce
		return
	}

	t.logger.Debug("nonce rollback skipped",
		slog.String("account", account.Hex()),
		slog.Uint64("nonce", uint64(nonce)),
	)
}

// Resync re-reads the account's nonce from the chain and allocates the
// next free number, returning it. Used after the node reports a nonce
// conflict. The allocation happens under the lock against whichever of the
// chain's view and the local counter is further ahead, so concurrent
// resyncs get distinct numbers and in-flight allocations are never
// reissued.
func (t *Tracker) Resync(ctx context.Context, account types.AccountID) (uint32, error) {
	fetched, err := t.fetch(ctx, account)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[account] = true
	if fetched >= t.next[account] {
		t.next[account] = fetched + 1
		return fetched, nil
	}

	// The chain is behind numbers already handed out, so the conflict came
	// from a sibling submission. Advance past it instead of rewinding.
	n := t.next[account]
	t.next[account] = n + 1
	return n, nil
}
