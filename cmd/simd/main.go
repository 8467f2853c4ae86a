package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/resilience-core/internal/metrics"
	"github.com/GoSim-25-26J-441/resilience-core/internal/simd"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/config"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/logger"
)

func main() {
	var configPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "path to daemon config YAML (optional)")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides config, default :50051)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config, default :8080)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	cfg := &config.Config{LogLevel: "info"}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if grpcAddr != "" {
		cfg.Server.GRPCAddr = grpcAddr
	}
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = ":50051"
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stdout))

	gracefulTimeout, err := cfg.Server.GetGracefulTimeout()
	if err != nil {
		logger.Error("invalid graceful timeout", "error", err)
		os.Exit(1)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store := simd.NewRunStore()
	executor := simd.NewRunExecutor(store)
	executor.SetDefaults(cfg.Defaults)
	executor.SetNotifier(simd.NewNotifier())

	grpcServer := simd.NewGRPCServer(store, executor)

	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", cfg.Server.GRPCAddr, "error", err)
		stop()
		os.Exit(1)
	}

	// WriteTimeout stays zero so /events streams are not cut off.
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           simd.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start servers.
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()

	executor.StopAll()
	shutdownGRPC(shutdownCtx, grpcServer)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	executor.Wait()
	logger.Info("shutdown complete")
}

// shutdownGRPC attempts a graceful stop, falling back to Stop after the
// context expires.
func shutdownGRPC(ctx context.Context, s *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.Stop()
	case <-stopped:
	}
}
