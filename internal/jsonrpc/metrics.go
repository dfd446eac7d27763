package jsonrpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainrpc_calls_total",
		Help: "Number of RPC calls issued, by method and outcome",
	}, []string{"method", "outcome"})

	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainrpc_reconnects_total",
		Help: "Number of websocket reconnect attempts that succeeded",
	})

	notificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainrpc_notifications_dropped_total",
		Help: "Number of subscription notifications dropped on full consumer buffers",
	})
)
