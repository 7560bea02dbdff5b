// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package server

import (
	"strconv"
	"time"

	"github.com/db47h/hazsim/detect"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "hazsim"

// Metrics holds the server's prometheus collectors.
//
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	detection prometheus.Histogram
	hazards   *prometheus.CounterVec
	races     prometheus.Counter
	circuits  prometheus.Counter
}

// NewMetrics registers the server collectors with reg.
//
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		detection: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "detect",
			Name:      "duration_seconds",
			Help:      "Duration of race and hazard detection runs",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		hazards: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "detect",
			Name:      "hazards_total",
			Help:      "Hazards found by kind and method",
		}, []string{"kind", "method"}),
		races: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "detect",
			Name:      "race_conditions_total",
			Help:      "Race conditions found",
		}),
		circuits: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "circuits_created_total",
			Help:      "Circuits parsed and stored",
		}),
	}
}

func (m *Metrics) middleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observe(rep detect.Report, d time.Duration) {
	m.detection.Observe(d.Seconds())
	m.races.Add(float64(len(rep.RaceConditions)))
	for _, h := range rep.Hazards {
		m.hazards.WithLabelValues(string(h.Kind), string(h.Method)).Inc()
	}
}
