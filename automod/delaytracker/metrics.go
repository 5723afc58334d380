package delaytracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var delayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_cleanup_delay_requests",
	Help: "Number of auto-clean delay requests, by outcome",
}, []string{"outcome"})

var delayEvictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "yuno_cleanup_delay_evictions",
	Help: "Number of channel delay entries evicted to make room for new ones",
})

var sweepChannels = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuno_cleanup_sweep_channels",
	Help: "Number of channels visited by cleanup sweeps, by outcome",
}, []string{"outcome"})
