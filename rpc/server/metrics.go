package server

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/dCfg/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics holds the metrics of one server instance in its own set, so
// several servers in one process do not share counters
type serverMetrics struct {
	set          *metrics.Set
	decodeErrors *metrics.Counter
}

func newServerMetrics(s *ConfigServer) *serverMetrics {
	set := metrics.NewSet()
	m := &serverMetrics{
		set:          set,
		decodeErrors: set.NewCounter("dcfg_server_decode_errors_total"),
	}
	set.NewGauge("dcfg_server_components", func() float64 {
		return float64(len(s.store.ComponentNames()))
	})
	return m
}

func (m *serverMetrics) received(t common.MessageType) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dcfg_server_messages_received_total{type=%q}`, t.String())).Inc()
}

func (m *serverMetrics) sent(t common.MessageType) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dcfg_server_messages_sent_total{type=%q}`, t.String())).Inc()
}

func (m *serverMetrics) decodeError() {
	m.decodeErrors.Inc()
}

// WriteMetrics writes the server metrics and the process metrics in
// Prometheus text format
func (s *ConfigServer) WriteMetrics(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
	metrics.WritePrometheus(w, true)
}
