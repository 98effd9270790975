// Package metrics exposes the Prometheus collectors of the voice service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var (
	// Pipeline metrics
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_pipeline_runs_total",
		Help: "Total number of speech pipeline runs by outcome stage",
	}, []string{"stage", "status"})

	pipelineLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_service_pipeline_latency_seconds",
		Help:    "End-to-end speech pipeline latency in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// Extraction metrics
	extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_extractions_total",
		Help: "Total number of text extractions by strategy",
	}, []string{"strategy", "status"})

	// Synthesis metrics
	synthesisCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_synthesis_calls_total",
		Help: "Total number of per-chunk synthesis calls",
	}, []string{"status"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_service_synthesis_latency_seconds",
		Help:    "Per-chunk synthesis latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	chunksPerRequest = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_service_chunks_per_request",
		Help:    "Number of chunks synthesized per request",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 30, 60, 120},
	})

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_service_audio_bytes_total",
		Help: "Total bytes of synthesized audio",
	})

	// Glue endpoint metrics
	paymentOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_payment_orders_total",
		Help: "Total number of payment orders by plan and outcome",
	}, []string{"plan", "status"})

	imagesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_images_generated_total",
		Help: "Total number of generated images",
	}, []string{"status"})

	// HTTP metrics
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_service_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "code"})
)

func status(success bool) string {
	if success {
		return statusSuccess
	}

	return statusError
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPipeline records the terminal stage of a pipeline run.
func RecordPipeline(stage string, success bool, started time.Time) {
	pipelineRuns.WithLabelValues(stage, status(success)).Inc()
	pipelineLatency.Observe(time.Since(started).Seconds())
}

// RecordExtraction records one extraction strategy attempt.
func RecordExtraction(strategy string, success bool) {
	extractions.WithLabelValues(strategy, status(success)).Inc()
}

// RecordSynthesisCall records one per-chunk synthesis call.
func RecordSynthesisCall(success bool, started time.Time) {
	synthesisCalls.WithLabelValues(status(success)).Inc()
	synthesisLatency.Observe(time.Since(started).Seconds())
}

// RecordSynthesis records a completed multi-chunk synthesis.
func RecordSynthesis(chunkCount, byteCount int) {
	chunksPerRequest.Observe(float64(chunkCount))
	audioBytes.Add(float64(byteCount))
}

// RecordPaymentOrder records a payment order attempt.
func RecordPaymentOrder(plan string, success bool) {
	paymentOrders.WithLabelValues(plan, status(success)).Inc()
}

// RecordImage records an image generation attempt.
func RecordImage(success bool) {
	imagesGenerated.WithLabelValues(status(success)).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, code string) {
	httpRequests.WithLabelValues(method, code).Inc()
}
