package xpbatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pendingEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "yuno_xp_pending_entries",
	Help: "Number of (user, guild) pairs with unflushed XP",
})

var flushedEntries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_xp_flushed_entries",
	Help: "Number of pending XP entries processed by flushes, by outcome",
}, []string{"outcome"})

var levelUps = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuno_xp_level_ups",
	Help: "Number of level-ups detected at flush time",
})

var flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "yuno_xp_flush_duration_seconds",
	Help:    "Duration of XP batch flushes",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
})
