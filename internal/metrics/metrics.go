package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Utterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_utterances_total",
			Help: "Speak requests by outcome (started, rejected, completed)",
		},
		[]string{"outcome"},
	)

	LookupMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lipsync_lookup_misses_total",
			Help: "Lookups that found no data, by kind (symbol, blendshape)",
		},
		[]string{"kind"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lipsync_tick_duration_seconds",
			Help:    "Engine and sink time for one frame, timed inside Frame; excludes frame-loop lag",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
	)

	UtteranceDrift = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lipsync_utterance_drift_milliseconds",
			Help:    "Actual minus planned utterance length",
			Buckets: []float64{-50, -20, -10, -5, 0, 5, 10, 20, 50, 100, 250},
		},
	)

	Speaking = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lipsync_speaking",
			Help: "1 while an utterance is being animated",
		},
	)

	TableReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lipsync_table_reloads_total",
			Help: "Weight tables swapped in by the hot-reload watcher",
		},
	)
)

// Outcome labels for Utterances.
const (
	OutcomeStarted   = "started"
	OutcomeRejected  = "rejected"
	OutcomeCompleted = "completed"
)

// Kind labels for LookupMisses.
const (
	MissSymbol     = "symbol"
	MissBlendshape = "blendshape"
)
