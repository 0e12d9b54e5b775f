package kv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationErrors tracks Redis operation failures by operation.
var OperationErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_proxy_kv_errors_total",
		Help: "Total number of Redis operation errors",
	},
	[]string{"operation"},
)
