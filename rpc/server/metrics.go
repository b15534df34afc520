package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/rpc/common"
)

// --------------------------------------------------------------------------
// Request Metrics
// --------------------------------------------------------------------------

// observe records one handled request: its count, its duration and, for failed
// requests, the return code
func observe(op common.MessageType, resp *common.Message, start time.Time) {
	requestCounter(op).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`iodmap_request_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	if resp != nil && (resp.Err != "" || resp.ErrCode != 0) {
		code := store.RetCode(resp.ErrCode)
		metrics.GetOrCreateCounter(fmt.Sprintf(`iodmap_request_errors_total{op=%q,code=%q}`, op, code)).Inc()
	}
}

// requestCounter returns the request counter of an operation
func requestCounter(op common.MessageType) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`iodmap_requests_total{op=%q}`, op))
}

// requestErrors counts requests that could not be routed, decoded or handled
var requestErrors = metrics.NewCounter(`iodmap_rpc_errors_total`)

// metricsHandler writes all metrics in Prometheus format
func metricsHandler(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}
