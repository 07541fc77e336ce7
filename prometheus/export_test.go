package prometheus

import prom "github.com/prometheus/client_golang/prometheus"

func (m *Metrics) StartedCounter() prom.Counter { return m.started }

func (m *Metrics) FinishedCounter(outcome string) prom.Counter {
	return m.finished.WithLabelValues(outcome)
}

func (m *Metrics) ErrorsCounter(kind string) prom.Counter {
	return m.errors.WithLabelValues(kind)
}

func (m *Metrics) ChunkBytesCounter() prom.Counter { return m.chunkBytes }

func (m *Metrics) ActiveGauge() prom.Gauge { return m.active }
