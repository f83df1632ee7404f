package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagepulse/pagepulse/internal/api"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/ingest"
	"github.com/pagepulse/pagepulse/internal/logsink"
	"github.com/pagepulse/pagepulse/internal/monitor"
	"github.com/pagepulse/pagepulse/internal/observability"
	"github.com/pagepulse/pagepulse/internal/retention"
	"github.com/pagepulse/pagepulse/internal/storage"
)

const (
	natsConnectRetries = 5
	shutdownTimeout    = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Log.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
		gin.SetMode(gin.ReleaseMode)
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server shut down gracefully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	zapSink := logsink.NewZapSink(logger.Named("sink"))
	var sink logsink.Sink = zapSink
	var channels monitor.Channels
	monitorOpts := []monitor.Option{
		monitor.WithThresholds(cfg.Monitor.EffectiveThresholds()),
		monitor.WithCooldown(cfg.Monitor.Cooldown),
		monitor.WithMetrics(metrics),
	}

	if cfg.NATS.URL != "" {
		nc, err := connectNATS(cfg, logger)
		if err != nil {
			return err
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("failed to create JetStream context: %w", err)
		}

		natsSink, err := logsink.NewNATSSink(js, logger)
		if err != nil {
			return fmt.Errorf("failed to create log sink: %w", err)
		}
		sink = logsink.Multi{zapSink, natsSink}

		channel, err := monitor.NewJetStreamChannel(js, logger)
		if err != nil {
			return fmt.Errorf("failed to create alert channel: %w", err)
		}
		channels = append(channels, channel)

		subscriber, err := ingest.NewSubscriber(js, store, logger, metrics)
		if err != nil {
			return fmt.Errorf("failed to create ingest subscriber: %w", err)
		}
		if err := subscriber.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := subscriber.Stop(); err != nil {
				logger.Error("Failed to drain ingest subscription", zap.Error(err))
			}
		}()
	} else {
		logger.Info("NATS disabled, alerts are only persisted and logged")
	}
	if cfg.Monitor.Webhook.URL != "" {
		webhook, err := monitor.NewWebhookChannel(cfg.Monitor.Webhook, logger)
		if err != nil {
			return err
		}
		channels = append(channels, webhook)
	}
	monitorOpts = append(monitorOpts,
		monitor.WithLogSink(sink),
		monitor.WithNotificationChannel(channels))

	alertMonitor := monitor.NewAlertMonitor(store, logger, monitorOpts...)
	if cfg.Monitor.Enabled {
		if err := alertMonitor.Start(ctx, cfg.Monitor.Interval); err != nil {
			return fmt.Errorf("failed to start alert monitor: %w", err)
		}
		defer alertMonitor.Stop()
	}

	handler := api.NewHandler(store, logger, metrics)

	if cfg.Sampler.Interval > 0 {
		collector := monitor.NewMetricsCollector(store, cfg.Sampler.Interval, logger, metrics)
		if err := collector.Start(ctx); err != nil {
			return err
		}
		defer collector.Stop()
		handler.WithHostMetrics(collector)
	}

	janitor, err := retention.NewJanitor(store, cfg.Retention.Schedule, cfg.Retention.MaxAge, logger)
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, store, reg, metrics, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024), // 5MB
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	var err error
	for i := 0; i < natsConnectRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
	}

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}
