package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter holds the Prometheus collectors of the sync pipeline on its own
// registry.
type Exporter struct {
	registry *prometheus.Registry

	frames     *prometheus.CounterVec
	items      *prometheus.CounterVec
	malformed  prometheus.Counter
	flushes    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	batchSize  *prometheus.HistogramVec
	socketUp   *prometheus.GaugeVec
	reconnects *prometheus.CounterVec
}

// NewExporter creates the collectors.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Exporter{
		registry: reg,
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novadash_frames_received_total",
			Help: "Data frames received per channel",
		}, []string{"channel"}),
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novadash_items_received_total",
			Help: "Data items received per channel",
		}, []string{"channel"}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Name: "novadash_frames_malformed_total",
			Help: "Frames that were not valid JSON",
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novadash_queue_flushes_total",
			Help: "Non-empty batch flushes per queue",
		}, []string{"queue"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novadash_queue_dropped_total",
			Help: "Queue entries dropped because they failed to decode",
		}, []string{"queue"}),
		batchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "novadash_queue_batch_size",
			Help:    "Entries delivered per flush after dedup",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"queue"}),
		socketUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "novadash_socket_connected",
			Help: "1 when the socket is connected",
		}, []string{"socket"}),
		reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "novadash_socket_reconnects_total",
			Help: "Successful reconnects per socket",
		}, []string{"socket"}),
	}
}

// Handler returns an HTTP handler exposing the collectors.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on port until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics_listening", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
