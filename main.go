package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	yerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"go.uber.org/zap"

	"trading-system/internal/api"
	"trading-system/internal/config"
	"trading-system/internal/feed"
	"trading-system/internal/trading"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to JSON config (defaults are used when empty)")
	addr := flag.String("addr", "", "HTTP listen address, overrides the config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("trading system stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.Profiling.ApplicationName,
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags:            cfg.Profiling.Tags,
			Logger:          logger.Named("pyroscope").Sugar(),
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return yerrors.Wrap(err, "start profiler")
		}
		defer func() { _ = profiler.Stop() }()
	}

	sinks := trading.MultiSink{trading.NewLogSink(logger)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var publisher *feed.Publisher
	feedDone := make(chan struct{})
	if cfg.Feed.Enabled() {
		publisher = feed.NewPublisher(cfg.Feed, logger)
		sinks = append(sinks, publisher)
		go func() {
			publisher.Run(ctx)
			close(feedDone)
		}()
		logger.Info("event feed enabled", zap.Strings("brokers", cfg.Feed.Brokers), zap.String("topic", cfg.Feed.Topic))
	} else {
		close(feedDone)
	}

	service := trading.NewService(trading.Config{
		BookCapacity: cfg.Engine.BookCapacity,
		PriceScale:   cfg.Engine.PriceScale,
		Sink:         sinks,
	})
	for _, inst := range cfg.Instruments {
		if _, err := service.Register(trading.InstrumentSpec{
			ID:         inst.ID,
			Symbol:     inst.Symbol,
			PriceScale: inst.PriceScale,
		}); err != nil {
			return yerrors.Wrap(err, "register instrument").With("id", inst.ID)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServer(service, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-sys.Shutdown():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return yerrors.Wrap(err, "serve http")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	cancel()
	<-feedDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("close event feed", zap.Error(err))
		}
		if n := publisher.Dropped(); n > 0 {
			logger.Warn("feed events dropped during run", zap.Uint64("dropped", n))
		}
	}

	logger.Info("trading system stopped")
	return nil
}
