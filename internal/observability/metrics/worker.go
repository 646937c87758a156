package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/batch-ocr/internal/entity"
)

// BatchMetrics tracks OCR invocations. It implements async.Observer so the
// scheduler can drive it directly.
type BatchMetrics struct {
	registry *prometheus.Registry

	invokeTotal    *prometheus.CounterVec
	invokeDuration *prometheus.HistogramVec
	invokeInFlight prometheus.Gauge
	progress       prometheus.Gauge
	imagesTotal    prometheus.Gauge
}

func NewBatchMetrics(tool string) *BatchMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"tool": filepath.Base(tool)}

	invokeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "batch_ocr",
			Subsystem:   "worker",
			Name:        "invocations_total",
			Help:        "OCR tool invocations by outcome status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	invokeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "batch_ocr",
			Subsystem:   "worker",
			Name:        "invocation_duration_seconds",
			Help:        "OCR tool invocation duration in seconds by outcome status.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	invokeInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "batch_ocr",
			Subsystem:   "worker",
			Name:        "invocations_in_flight",
			Help:        "Number of OCR tool processes currently running.",
			ConstLabels: constLabels,
		},
	)
	progress := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "batch_ocr",
			Subsystem:   "batch",
			Name:        "images_completed",
			Help:        "Images whose outcome is known.",
			ConstLabels: constLabels,
		},
	)
	imagesTotal := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "batch_ocr",
			Subsystem:   "batch",
			Name:        "images_total",
			Help:        "Images discovered for this run.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(invokeTotal, invokeDuration, invokeInFlight, progress, imagesTotal)

	return &BatchMetrics{
		registry:       registry,
		invokeTotal:    invokeTotal,
		invokeDuration: invokeDuration,
		invokeInFlight: invokeInFlight,
		progress:       progress,
		imagesTotal:    imagesTotal,
	}
}

func (m *BatchMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *BatchMetrics) Started(entity.ImageTask) {
	m.invokeInFlight.Inc()
}

func (m *BatchMetrics) Finished(outcome entity.Outcome, done, total int) {
	m.invokeInFlight.Dec()
	status := string(outcome.Status)
	if status == "" {
		status = "unknown"
	}
	m.invokeTotal.WithLabelValues(status).Inc()
	m.invokeDuration.WithLabelValues(status).Observe(outcome.Duration.Seconds())
	m.progress.Set(float64(done))
	m.imagesTotal.Set(float64(total))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *BatchMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
