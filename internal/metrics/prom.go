package metrics

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Route label values of MessagesReceived.
const (
	RouteHandled  = "handled"
	RouteUncaught = "uncaught"
)

var (
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_messages_published_total",
			Help: "Total number of envelopes acknowledged by the broker, by client",
		},
		[]string{"client"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_publish_errors_total",
			Help: "Total number of failed publishes, by client",
		},
		[]string{"client"},
	)

	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_messages_received_total",
			Help: "Total number of inbound messages dispatched, by client and route",
		},
		[]string{"client", "route"},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_handler_errors_total",
			Help: "Total number of topic handlers that returned an error or panicked, by client",
		},
		[]string{"client"},
	)

	InboundDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_inbound_dropped_total",
			Help: "Total number of inbound messages dropped on a full dispatch queue, by client",
		},
		[]string{"client"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rc_dispatch_duration_seconds",
			Help:    "Duration of inbound message dispatch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client"},
	)

	DriveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rc_drive_errors_total",
			Help: "Total number of drive-controller register failures, by unit and operation",
		},
		[]string{"unit", "op"},
	)

	UnitsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rc_units_online",
			Help: "Number of units whose last connection state is online",
		},
	)
)

type PromServerOpts struct {
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // Timeout for server shutdown, defaults to 5 seconds
	ReadHeaderTimeout time.Duration // Timeout for reading request headers, defaults to 3 seconds
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// StartPrometheusServer serves the default registry until ctx is canceled,
// then shuts the server down gracefully. wg is released once the listener
// has returned.
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, log *zap.Logger, opts *PromServerOpts) {
	effectiveOpts := defaultPrometheusServerOptions()
	if opts != nil {
		effectiveOpts.Addr = cmp.Or(opts.Addr, effectiveOpts.Addr)
		effectiveOpts.Path = cmp.Or(opts.Path, effectiveOpts.Path)
		effectiveOpts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effectiveOpts.ShutdownTimeout)
		effectiveOpts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effectiveOpts.ReadHeaderTimeout)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("metrics")

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting Prometheus metrics server", zap.String("addr", effectiveOpts.Addr), zap.String("path", effectiveOpts.Path))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
		close(serverClosed)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down metrics server", zap.Error(err))
		}

		select {
		case <-serverClosed:
			log.Info("metrics server shutdown complete")
		case <-shutdownCtx.Done():
			log.Warn("metrics server shutdown timed out")
		}
	}()
}
