package spamtracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var trackerEvictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuno_spam_tracker_evictions",
	Help: "Number of tracked users evicted to make room for new ones",
})

var trackedUsers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "yuno_spam_tracker_users",
	Help: "Number of (user, guild) pairs currently tracked by the spam filter",
})
