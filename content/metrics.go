package content

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogkit_content_api_requests_total",
			Help: "Total number of content API requests",
		},
		[]string{"operation", "result"},
	)

	apiDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blogkit_content_api_request_duration_seconds",
			Help:    "Duration of content API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
