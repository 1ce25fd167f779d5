// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/touristsafety/safemap/tracking"
)

type metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	updates       prometheus.Counter
	registrations prometheus.Counter
	markers       prometheus.Histogram
}

func newMetrics(hub *tracking.Hub) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "safemap_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "safemap_http_request_duration_ms",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"route"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safemap_location_updates_total",
			Help: "Total accepted location updates",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safemap_registrations_total",
			Help: "Total tourists registered",
		}),
		markers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "safemap_map_markers",
			Help:    "Markers per rendered map layout",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 500},
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.updates,
		m.registrations,
		m.markers,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "safemap_live_subscribers",
			Help: "Websocket clients currently subscribed to updates",
		}, func() float64 { return float64(hub.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "safemap_dropped_subscribers_total",
			Help: "Websocket clients disconnected for falling behind",
		}, func() float64 { return float64(hub.Dropped()) }),
	)

	return m
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
