package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainrpc_events_total",
		Help: "Number of decoded chain events, by pallet",
	}, []string{"pallet"})

	watcherDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainrpc_watcher_drops_total",
		Help: "Number of events dropped on full watcher buffers",
	})

	undecodableBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainrpc_undecodable_blocks_total",
		Help: "Number of finalized blocks whose event records failed to decode",
	})

	processedHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chainrpc_processed_height",
		Help: "Highest fully processed finalized block height",
	})
)
