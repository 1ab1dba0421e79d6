package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bourse/internal/metrics"
)

func TestCollectorExposesRegisteredSeries(t *testing.T) {
	c := metrics.New()
	c.OrdersPlaced.WithLabelValues("limit", "buy").Inc()
	c.OrdersRejected.WithLabelValues("SILLY_VALUE").Inc()
	c.OrdersCancelled.Inc()
	c.Fills.Inc()
	c.BookDepth.WithLabelValues("buy").Set(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `bourse_orders_placed_total{side="buy",type="limit"} 1`)
	assert.Contains(t, body, `bourse_orders_rejected_total{reason="SILLY_VALUE"} 1`)
	assert.Contains(t, body, "bourse_orders_cancelled_total 1")
	assert.Contains(t, body, "bourse_fills_total 1")
	assert.True(t, strings.Contains(body, `bourse_book_depth{side="buy"} 42`))
}
