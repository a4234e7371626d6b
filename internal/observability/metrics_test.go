package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danmuck/netframe/internal/testutil/testlog"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecorders(t *testing.T) {
	testlog.Start(t)
	node := "metrics-test"

	RecordFrame(node, DirectionIn, 11)
	RecordFrame(node, DirectionIn, 5)
	RecordFrame(node, DirectionOut, 11)
	if got := testutil.ToFloat64(framesTotal.WithLabelValues(node, DirectionIn)); got != 2 {
		t.Fatalf("frames in=%v", got)
	}
	if got := testutil.ToFloat64(framesTotal.WithLabelValues(node, DirectionOut)); got != 1 {
		t.Fatalf("frames out=%v", got)
	}

	RecordDecodeError(node, "malformed_length")
	if got := testutil.ToFloat64(decodeErrors.WithLabelValues(node, "malformed_length")); got != 1 {
		t.Fatalf("decode errors=%v", got)
	}

	ConnectionOpened(node, "tcp")
	ConnectionOpened(node, "tcp")
	ConnectionClosed(node, "tcp")
	if got := testutil.ToFloat64(activeConnections.WithLabelValues(node, "tcp")); got != 1 {
		t.Fatalf("active=%v", got)
	}

	RecordHTTPRequest(node, "GET", "/health", 200, 12*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(node, "GET", "/health", "200")); got != 1 {
		t.Fatalf("http requests=%v", got)
	}
}
