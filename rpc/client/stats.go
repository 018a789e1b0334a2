package client

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// Stats is a snapshot of the client counters
type Stats struct {
	Pushes          int64         `json:"pushes"`
	ValueRequests   int64         `json:"value_requests"`
	ValueTimeouts   int64         `json:"value_timeouts"`
	ReceivedConfigs int64         `json:"received_configs"`
	MeanLatency     time.Duration `json:"mean_latency"`
	P99Latency      time.Duration `json:"p99_latency"`
}

type clientStats struct {
	registry        metrics.Registry
	pushes          metrics.Counter
	valueRequests   metrics.Counter
	valueTimeouts   metrics.Counter
	receivedConfigs metrics.Counter
	latency         metrics.Timer
}

func newClientStats() *clientStats {
	r := metrics.NewRegistry()
	return &clientStats{
		registry:        r,
		pushes:          metrics.NewRegisteredCounter("pushes", r),
		valueRequests:   metrics.NewRegisteredCounter("value_requests", r),
		valueTimeouts:   metrics.NewRegisteredCounter("value_timeouts", r),
		receivedConfigs: metrics.NewRegisteredCounter("received_configs", r),
		latency:         metrics.NewRegisteredTimer("value_latency", r),
	}
}

// Stats returns the current counters of the client
func (c *ConfigClient) Stats() Stats {
	latency := c.stats.latency.Snapshot()
	return Stats{
		Pushes:          c.stats.pushes.Count(),
		ValueRequests:   c.stats.valueRequests.Count(),
		ValueTimeouts:   c.stats.valueTimeouts.Count(),
		ReceivedConfigs: c.stats.receivedConfigs.Count(),
		MeanLatency:     time.Duration(latency.Mean()),
		P99Latency:      time.Duration(latency.Percentile(0.99)),
	}
}

// Registry exposes the go-metrics registry, e.g. for metrics.Log
func (c *ConfigClient) Registry() metrics.Registry {
	return c.stats.registry
}
