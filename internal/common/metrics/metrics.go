// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for RPCCallsTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeRPC       = "rpc_error"
	OutcomeProtocol  = "protocol_error"
)

var (
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invox_rpc_calls_total",
			Help: "Total number of JSON-RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	RPCCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invox_rpc_call_duration_seconds",
			Help:    "Round-trip duration of JSON-RPC calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ResponseValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invox_response_validation_failures_total",
			Help: "Total number of RPC results rejected by the shape check",
		},
		[]string{"operation"},
	)

	TransportRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invox_transport_retries_total",
			Help: "Total number of HTTP attempts retried by the transport",
		},
	)

	AudioBytesEncoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invox_audio_bytes_encoded_total",
			Help: "Total number of raw audio bytes base64-encoded for upload",
		},
	)

	ServiceUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "invox_service_up",
			Help: "1 when the last ping probe succeeded, 0 otherwise",
		},
	)
)
