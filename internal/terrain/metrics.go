package terrain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит Prometheus-метрики генератора
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	transfers prometheus.Counter
	cells     prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "generations_total",
			Help:      "Число прогонов генерации по источнику шума и результату.",
		}, []string{"source", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terragen",
			Name:      "generation_duration_seconds",
			Help:      "Длительность генерации ландшафта.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		transfers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "erosion_transfers_total",
			Help:      "Число переносов материала эрозией.",
		}),
		cells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terragen",
			Name:      "generated_cells_total",
			Help:      "Число сгенерированных ячеек сетки.",
		}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.duration, m.transfers, m.cells} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(source string, elapsed time.Duration, res *Result, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.runs.WithLabelValues(source, "error").Inc()
		return
	}
	m.runs.WithLabelValues(source, "ok").Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
	m.transfers.Add(float64(res.Erosion.Transfers))
	m.cells.Add(float64(res.Grid.Len()))
}
