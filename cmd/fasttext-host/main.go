package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpcapi "github.com/kennethnrk/fasttext-services/internal/api/grpc"
	"github.com/kennethnrk/fasttext-services/internal/api/http/handler"
	"github.com/kennethnrk/fasttext-services/internal/api/http/router"
	"github.com/kennethnrk/fasttext-services/internal/cache"
	"github.com/kennethnrk/fasttext-services/internal/common/constants"
	"github.com/kennethnrk/fasttext-services/internal/config"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/logger"
	"github.com/kennethnrk/fasttext-services/internal/metrics"
	"github.com/kennethnrk/fasttext-services/internal/monitor"
	"github.com/kennethnrk/fasttext-services/internal/provision"
	"github.com/kennethnrk/fasttext-services/internal/registry"
	"github.com/kennethnrk/fasttext-services/internal/service"
	"github.com/kennethnrk/fasttext-services/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	envFile := flag.String("env", ".env", "path to a dotenv file, ignored when missing")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Initializing data store", zap.String("data_dir", cfg.Store.DataDir))
	st, err := store.Open(cfg.Store.DataDir, store.WithCompactAfter(cfg.Store.CompactAfter))
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	defer st.Close()

	m := metrics.New()

	// Redis is optional; the vectorizer runs uncached without it.
	var vectorCache cache.VectorCache
	var cachePinger handler.Pinger
	if cfg.Cache.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rc, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		cancel()
		if err != nil {
			log.Warn("Failed to connect to Redis, continuing without vector cache", zap.Error(err))
		} else {
			defer func() { _ = rc.Close() }()
			vectorCache, cachePinger = rc, rc
			log.Info("Connected to Redis", zap.String("address", cfg.Cache.RedisAddr))
		}
	}

	prov := provision.New(
		provision.WithHTTPClient(provision.NewHTTPClient(cfg.Download.Timeout, cfg.Download.HeaderTimeout)),
		provision.WithStore(st),
		provision.WithMetrics(m),
		provision.WithLogger(log.Named("provision")),
	)

	h := host.New(host.WithStore(st), host.WithMetrics(m), host.WithLogger(log.Named("host")))
	for _, sc := range cfg.Services() {
		svc, err := newService(sc.Kind, prov, vectorCache, m, log)
		if err != nil {
			return err
		}
		if _, err := h.Register(svc, sc); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 3)

	var grpcSrv *grpc.Server
	if addr := cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		grpcSrv = grpcapi.NewServer(h, log.Named("grpc"))
		go func() {
			log.Info("gRPC server listening", zap.String("address", addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server stopped: %w", err)
			}
		}()
	}

	var httpSrv *http.Server
	if addr := cfg.Server.HTTPAddr; addr != "" {
		r := router.Setup(router.Deps{
			Host:     h,
			Cache:    cachePinger,
			HostInfo: func() (store.HostInfo, bool, error) { return registry.GetHostInfo(st) },
			Metrics:  m,
			Logger:   log.Named("http"),
		})
		httpSrv = &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info("HTTP server listening", zap.String("address", addr))
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("HTTP server stopped: %w", err)
			}
		}()
	}

	mon := monitor.New(cfg.Store.DataDir, h.Ready,
		monitor.WithStore(st),
		monitor.WithMetrics(m),
		monitor.WithLogger(log.Named("monitor")),
	)
	go mon.Run(ctx, cfg.Monitor.Interval)

	go func() {
		start := time.Now()
		if err := h.LoadAll(ctx); err != nil {
			errCh <- fmt.Errorf("failed to load services: %w", err)
			return
		}
		log.Info("All services ready", zap.Duration("took", time.Since(start)))
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case runErr = <-errCh:
		log.Error("Shutting down after failure", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced to shutdown", zap.Error(err))
		}
	}
	if grpcSrv != nil {
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			log.Error("gRPC server forced to shutdown")
			grpcSrv.Stop()
		}
	}

	if err := st.Compact(); err != nil {
		log.Warn("Failed to compact store", zap.Error(err))
	}
	log.Info("Server exited")
	return runErr
}

func newService(kind constants.ServiceKind, prov *provision.Provisioner, vc cache.VectorCache, m *metrics.Metrics, log *zap.Logger) (service.Service, error) {
	switch kind {
	case constants.ServiceKindVectorizer:
		opts := []service.VectorizerOption{
			service.WithVectorizerMetrics(m),
			service.WithVectorizerLogger(log.Named("vectorizer")),
		}
		if vc != nil {
			opts = append(opts, service.WithCache(vc))
		}
		return service.NewVectorizer(prov, opts...), nil
	case constants.ServiceKindLanguageDetection:
		return service.NewLanguageDetector(prov), nil
	default:
		return nil, fmt.Errorf("unknown service kind %q", kind)
	}
}
