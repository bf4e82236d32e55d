package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gridsentry/gridchaos/internal/config"
	"github.com/gridsentry/gridchaos/internal/controller"
	"github.com/gridsentry/gridchaos/internal/httpapi"
	"github.com/gridsentry/gridchaos/internal/logging"
	"github.com/gridsentry/gridchaos/internal/observability"
	"github.com/gridsentry/gridchaos/internal/telemetry"
	"github.com/gridsentry/gridchaos/powergrid"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewFromEnv().Error(context.Background(), "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	collector, err := observability.NewCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	var sink telemetry.Sink = telemetry.Noop{}
	if cfg.Telemetry.Enabled {
		sink = telemetry.NewInfluxSink(telemetry.Config{
			URL:    cfg.Telemetry.URL,
			Token:  cfg.Telemetry.Token,
			Org:    cfg.Telemetry.Org,
			Bucket: cfg.Telemetry.Bucket,
		}, log)
	}
	defer sink.Close()

	engine := powergrid.NewEngine()
	ctrl := controller.New(engine, log,
		controller.WithMetricsRecorder(collector),
		controller.WithDefaultMaxLoadLoss(cfg.Guardrail.DefaultMaxLoadLossPct),
	)

	bands := powergrid.HealthBands{
		CriticalBelowPu: cfg.Grid.CriticalVoltagePu,
		UnstableBelowPu: cfg.Grid.UnstableVoltagePu,
	}
	server := httpapi.NewServer(ctrl, sink, bands, cfg.Server.ReadOnly, log)
	router := server.Router(
		otelgin.Middleware(cfg.Tracing.ServiceName),
		collector.Middleware(),
	)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	log.Info(ctx, "starting control plane",
		logging.String("addr", cfg.Server.Addr),
		logging.Bool("read_only", cfg.Server.ReadOnly),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server exited", logging.Err(err))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down control plane")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
