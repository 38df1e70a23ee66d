// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TaskSignals counts task lifecycle events per feed.
	TaskSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "huey_task_signals",
			Help: "Task lifecycle signals by feed and outcome.",
		},
		[]string{"name", "url", "feed_type", "signal", "exc_type"},
	)

	// FetchRequestDelay measures how long a fetch task sat queued
	// between its scheduled tick and the start of its request.
	FetchRequestDelay = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "fetch_request_delay_seconds",
			Help: "Delay between the scheduled tick and the fetch request.",
		},
		[]string{"name", "url", "feed_type"},
	)

	// FetchRequestDuration measures the upstream HTTP request.
	FetchRequestDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "fetch_request_duration_seconds",
			Help: "Duration of the upstream feed request.",
		},
		[]string{"name", "url", "feed_type"},
	)

	// FetchSaveDuration measures the write to the raw bucket.
	FetchSaveDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "fetch_save_duration_seconds",
			Help: "Duration of the raw object-store write.",
		},
		[]string{"name", "url", "feed_type"},
	)
)

func init() {
	prometheus.MustRegister(TaskSignals, FetchRequestDelay, FetchRequestDuration, FetchSaveDuration)
}

// Serve exposes /metrics on addr in a background goroutine. Failures
// are logged, not fatal: a feed daemon outlives its metrics endpoint.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
}

// ErrType renders an error's concrete type as a label value, and the
// empty string for nil.
func ErrType(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
