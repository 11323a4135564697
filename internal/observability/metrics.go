// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth operation results used as the "result" label.
const (
	ResultSuccess     = "success"
	ResultClientError = "client_error"
	ResultError       = "error"
)

// Metrics holds the account service's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	AuthOperations *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	SessionsSwept  prometheus.Counter
	BuildInfo      *prometheus.GaugeVec
}

// NewMetrics creates and registers the account metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_auth_operations_total",
				Help: "Total number of account operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		SessionsSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accounts_sessions_swept_total",
				Help: "Total number of expired web sessions removed by the sweeper",
			},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accounts_build_info",
				Help: "Always 1; labels carry the running build",
			},
			[]string{"version", "commit"},
		),
	}

	reg.MustRegister(m.AuthOperations, m.HTTPRequests, m.SessionsSwept, m.BuildInfo)
	return m
}

// RecordAuth counts one account operation.
func (m *Metrics) RecordAuth(operation, result string) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, result).Inc()
}

// RecordHTTP counts one HTTP response.
func (m *Metrics) RecordHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordSwept adds n removed sessions.
func (m *Metrics) RecordSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

// SetBuildInfo publishes the running version.
func (m *Metrics) SetBuildInfo(version, commit string) {
	if m == nil {
		return
	}
	m.BuildInfo.Reset()
	m.BuildInfo.WithLabelValues(version, commit).Set(1)
}
