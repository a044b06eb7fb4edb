package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "erp"

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
	FeeRecordsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "fee_records_generated_total", Help: "Fee records created by generation runs",
	})
	PaymentsPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "payments_posted_total", Help: "Payments applied to fee records",
	})
	PaymentAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "payment_amount_total", Help: "Sum of posted payment amounts",
	})
	ResultsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "results_published_total", Help: "Term summaries flipped to published",
	})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_total", Help: "Notifications by kind and outcome",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, DBPing,
		FeeRecordsGenerated, PaymentsPosted, PaymentAmount, ResultsPublished, Notifications)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveHTTP(route string, code int, d time.Duration) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func ObservePayment(amount decimal.Decimal) {
	PaymentsPosted.Inc()
	f, _ := amount.Float64()
	PaymentAmount.Add(f)
}
