package nonce_test

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/chainrpc/internal/nonce"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

func fixedFetcher(n uint32) nonce.Fetcher {
	return func(context.Context, types.AccountID) (uint32, error) {
		return n, nil
	}
}

func TestNext_ConcurrentAllocationsAreGapless(t *testing.T) {
	// Given a tracker initialized from chain nonce 5
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(5))
	account := types.AccountID{1}

	const workers = 64

	// When many submitters allocate concurrently
	var wg sync.WaitGroup
	nonces := make([]uint32, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := tracker.Next(context.Background(), account)
			require.NoError(t, err)
			nonces[i] = n
		}(i)
	}
	wg.Wait()

	// Then the allocated numbers are exactly 5..5+workers-1, no duplicates,
	// no gaps
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, n := range nonces {
		require.Equal(t, uint32(5+i), n)
	}
}

func TestNext_IndependentAccounts(t *testing.T) {
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(0))

	a, b := types.AccountID{1}, types.AccountID{2}

	n, err := tracker.Next(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)

	n, err = tracker.Next(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n)

	n, err = tracker.Next(context.Background(), a)
	require.NoError(t, err)
	require.Equal(t, uint32(1), n)
}

func TestRollback(t *testing.T) {
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(10))
	account := types.AccountID{1}

	n1, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint32(10), n1)

	// When the extrinsic using n1 is rejected before reaching the chain
	tracker.Rollback(account, n1)

	// Then the number is reissued instead of leaving a permanent gap
	n2, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, n1, n2)
}

func TestRollback_OnlyMostRecent(t *testing.T) {
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(0))
	account := types.AccountID{1}

	first, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	second, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, first+1, second)

	// Rolling back the older allocation must be ignored
	tracker.Rollback(account, first)

	n, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, second+1, n)
}

func TestResync(t *testing.T) {
	// Given a fetcher whose answer moves between calls
	answers := []uint32{3, 7}
	calls := 0
	fetch := func(context.Context, types.AccountID) (uint32, error) {
		n := answers[calls]
		calls++
		return n, nil
	}

	tracker := nonce.NewTracker(slog.Default(), fetch)
	account := types.AccountID{1}

	n, err := tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint32(3), n)

	// When the chain reports our numbers stale
	n, err = tracker.Resync(context.Background(), account)

	// Then the fresh chain nonce is allocated and tracking continues after it
	require.NoError(t, err)
	require.Equal(t, uint32(7), n)

	n, err = tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint32(8), n)
}

func TestResync_ConcurrentConflictsGetDistinctNonces(t *testing.T) {
	// Given a chain that reports 6 to every resync
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(6))
	account := types.AccountID{1}

	const workers = 8

	// When several conflicted submitters resync at once
	var wg sync.WaitGroup
	nonces := make([]uint32, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := tracker.Resync(context.Background(), account)
			require.NoError(t, err)
			nonces[i] = n
		}(i)
	}
	wg.Wait()

	// Then each one gets its own number, starting from the chain's view
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, n := range nonces {
		require.Equal(t, uint32(6+i), n)
	}
}

func TestResync_NeverRewindsBelowAllocations(t *testing.T) {
	tracker := nonce.NewTracker(slog.Default(), fixedFetcher(4))
	account := types.AccountID{1}

	// nonces 4, 5, 6 are allocated and in flight
	for i := 0; i < 3; i++ {
		_, err := tracker.Next(context.Background(), account)
		require.NoError(t, err)
	}

	// When the chain still reports 4 because none of them landed yet
	n, err := tracker.Resync(context.Background(), account)

	// Then the in-flight numbers are not reissued
	require.NoError(t, err)
	require.Equal(t, uint32(7), n)

	n, err = tracker.Next(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, uint32(8), n)
}
