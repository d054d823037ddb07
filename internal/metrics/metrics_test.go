package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRPC(t *testing.T) {
	m := New()

	m.ObserveRPC("blocks.info", 0)
	m.ObserveRPC("blocks.info", 404)
	m.ObserveRPC("blocks.info", 404)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCalls.WithLabelValues("blocks.info", "0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RPCCalls.WithLabelValues("blocks.info", "404")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveRPC("x", 0) })
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RelayRequests.WithLabelValues("GET", "ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "exchange_json_rpc_relay_requests_total")
}
