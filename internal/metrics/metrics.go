// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

// Package metrics provides Prometheus metrics for downloads.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// No task IDs in labels.
var (
	// EventsTotal counts classified downloader lines by phase.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytdlmanager_events_total",
		Help: "Total number of classified downloader output lines, by phase.",
	}, []string{"phase"})

	// LinesUnclassified counts lines that produced no event.
	LinesUnclassified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytdlmanager_lines_unclassified_total",
		Help: "Total number of downloader output lines that produced no event.",
	})

	// ProcessStateTotal counts downloader process state transitions by target state.
	ProcessStateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytdlmanager_process_state_total",
		Help: "Total number of downloader process state transitions, by target state.",
	}, []string{"state"})

	// Tasks tracks the number of registered download tasks.
	Tasks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytdlmanager_tasks",
		Help: "Current number of registered download tasks.",
	})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
