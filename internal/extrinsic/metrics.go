package extrinsic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainrpc_submissions_total",
		Help: "Number of extrinsic submissions, by pallet and outcome",
	}, []string{"pallet", "outcome"})

	nonceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainrpc_nonce_conflicts_total",
		Help: "Number of pool rejections resolved by a nonce resync",
	})
)
