package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	gate "github.com/0x5487/order-gate"
	"github.com/0x5487/order-gate/api"
	"github.com/0x5487/order-gate/config"
	"github.com/0x5487/order-gate/exchange"
	"github.com/0x5487/order-gate/metrics"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	shutdownTimeout   = 5 * time.Second
	simulatedLatency  = 20 * time.Millisecond
	staleSweepEvery   = time.Second
	queueGaugeTimeout = 500 * time.Millisecond
)

func main() {
	cfg := config.MustLoad()

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Unable to build logger: %s", err.Error())
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	gate.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("order gate stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window, err := cfg.Window()
	if err != nil {
		return err
	}
	clk := clock.New()

	// the collector reads the queue length at scrape time, once the dispatcher exists
	var dispatcher *gate.Dispatcher
	collectorOpts := []metrics.Option{
		metrics.WithLogger(logger),
		metrics.WithStaleAfter(cfg.Metrics.StaleAfter),
		metrics.WithQueueLength(func() float64 {
			if dispatcher == nil {
				return 0
			}
			ctx, cancel := context.WithTimeout(context.Background(), queueGaugeTimeout)
			defer cancel()
			stats, err := dispatcher.GetStats(ctx)
			if err != nil {
				return 0
			}
			return float64(stats.QueueLength)
		}),
	}

	if cfg.Metrics.CSVPath != "" {
		csvWriter, err := metrics.OpenCSVFile(cfg.Metrics.CSVPath)
		if err != nil {
			return err
		}
		defer closeLogged(logger, "csv", csvWriter.Close)
		collectorOpts = append(collectorOpts, metrics.WithCSV(csvWriter))
	}
	if cfg.Metrics.AuditDir != "" {
		store, err := metrics.OpenAuditStore(cfg.Metrics.AuditDir)
		if err != nil {
			return err
		}
		defer closeLogged(logger, "audit store", store.Close)
		collectorOpts = append(collectorOpts, metrics.WithAuditStore(store))
	}
	collector := metrics.NewCollector(collectorOpts...)

	var venue gate.Exchange
	if cfg.KafkaEnabled() {
		producer := exchange.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer closeLogged(logger, "kafka producer", producer.Close)

		consumer := exchange.NewResponseConsumer(cfg.Kafka.Brokers, cfg.Kafka.ResponseTopic, cfg.Kafka.ConsumerGroup, collector, logger)
		defer closeLogged(logger, "kafka consumer", consumer.Close)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error("response consumer stopped", zap.Error(err))
			}
		}()

		venue = producer
		logger.Info("forwarding to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	} else {
		venue = exchange.NewSimulated(collector, simulatedLatency, clk)
		logger.Info("forwarding to simulated exchange")
	}

	hub := api.NewHub(logger)
	go hub.Run(ctx)

	publishLog := gate.NewAsyncPublishLog(gate.MultiPublishLog{collector, hub}, cfg.Metrics.RingSize)
	publishLog.Start()

	dispatcher, err = gate.NewDispatcher(window, cfg.RateLimit.OrdersPerSecond, venue,
		gate.WithClock(clk),
		gate.WithTickInterval(cfg.Dispatcher.TickInterval),
		gate.WithSessionCheckInterval(cfg.Dispatcher.SessionCheckInterval),
		gate.WithPublishLog(publishLog),
		gate.WithCredentials(cfg.GateCredentials()),
	)
	if err != nil {
		return err
	}

	dispatcherErr := make(chan error, 1)
	go func() {
		dispatcherErr <- dispatcher.Start()
	}()

	go collector.WatchStale(ctx, clk, staleSweepEvery)

	server := api.NewServer(gate.NewGateway(dispatcher), hub,
		api.WithMetricsHandler(collector.Handler()),
		api.WithLogger(logger),
	)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.HTTPServer.Addr)
	}()

	logger.Info("order gate started",
		zap.String("env", cfg.Env),
		zap.String("version", gate.GateVersion),
		zap.String("window", window.String()),
		zap.Int("orders_per_second", cfg.RateLimit.OrdersPerSecond))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down the order gate")
	case err := <-serverErr:
		runErr = err
	case err := <-dispatcherErr:
		runErr = err
		if runErr == nil {
			runErr = errors.New("dispatcher exited unexpectedly")
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down http server", zap.Error(err))
	}
	// the dispatcher logs out while draining, so the publish log must still be running
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down dispatcher", zap.Error(err))
	}
	if err := publishLog.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to flush publish log", zap.Error(err), zap.Int64("pending", publishLog.Pending()))
	}

	logger.Info("order gate stopped")
	return runErr
}

func closeLogged(logger *zap.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logger.Error("failed to close "+name, zap.Error(err))
	}
}
