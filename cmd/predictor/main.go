// Command predictor serves progressive grade predictions.
//
// At startup the predictor loads one artifact bundle (six fitted stages plus
// the class baseline) from file or redis storage. A bundle that is missing a
// stage, a to-final schema or the final baseline is fatal: the process logs
// the cause and exits 1 before serving.
//
// The predictor serves an HTTP API on port 5000 (configurable) providing:
//   - POST /predict - Predict remaining quarters and the final grade
//   - GET /health - Liveness with the loaded stage names
//   - GET /healthz, /readyz - Probes
//   - GET /metrics - Prometheus metrics endpoint
//
// and the same prediction over gRPC (gradecast.v1.Predictor/Predict) on
// port 50051 unless -grpc-listen is empty.
//
// Usage:
//
//	predictor \
//	  -artifact-dir=./artifacts \
//	  -bundle=default \
//	  -cors-origins=http://localhost:3000
//
// Environment variables:
//
//	LISTEN            - HTTP listen address (default: :5000)
//	GRPC_LISTEN       - gRPC listen address (default: :50051)
//	STORAGE           - Artifact storage: file or redis (default: file)
//	ARTIFACT_DIR      - Bundle directory for file storage (default: artifacts)
//	BUNDLE            - Bundle name (default: default)
//	REDIS_ADDR        - Redis address for redis storage
//	PASS_THRESHOLD    - Normalized pass threshold (default: 0.75)
//	POLICY_FILE       - YAML policy overriding threshold and confidence
//	ZERO_IS_ABSENT    - Treat a supplied 0 as missing (default: true)
//	CLAMP_PREDICTIONS - Clamp stage outputs to [0,1] (default: true)
//	LOG_LEVEL         - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT        - Logging format: text, json (default: text)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/HatiCode/gradecast/cmd/predictor/config"
	"github.com/HatiCode/gradecast/cmd/predictor/logger"
	"github.com/HatiCode/gradecast/cmd/predictor/metrics"
	"github.com/HatiCode/gradecast/cmd/predictor/router"
	"github.com/HatiCode/gradecast/pkg/artifacts"
	"github.com/HatiCode/gradecast/pkg/httpx"
	"github.com/HatiCode/gradecast/pkg/models"
	"github.com/HatiCode/gradecast/pkg/predictor"
	"github.com/HatiCode/gradecast/pkg/rpc"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	logger.Info("starting gradecast predictor",
		"version", version,
		"bundle", cfg.Bundle,
		"storage", cfg.Storage,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("predictor failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	pol, err := cfg.Policy()
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, cfg.Bundle)

	src, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open artifact storage: %w", err)
	}
	defer func() {
		if err := src.close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	remoteClient, err := httpx.NewClient(cfg.RemoteTLS, cfg.RemoteTimeout)
	if err != nil {
		return fmt.Errorf("remote scoring client: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	arts, err := artifacts.Load(loadCtx, src.store, cfg.Bundle, models.BuildOptions{HTTPClient: remoteClient})
	cancelLoad()
	if err != nil {
		return fmt.Errorf("load artifacts: %w", err)
	}
	m.SetLoadedStages(arts.Len())

	name, ver := arts.Bundle()
	logger.Info("artifacts loaded",
		"bundle", name,
		"version", ver,
		"stages", arts.Names(),
	)

	svc := predictor.New(arts, predictor.Options{
		Policy:       pol,
		ZeroIsAbsent: cfg.ZeroIsAbsent,
		Clamp:        cfg.ClampPredictions,
	}, m, logger)

	serverTLS, err := cfg.TLS.Server()
	if err != nil {
		return fmt.Errorf("server tls: %w", err)
	}

	handler := router.SetupRoutes(svc, router.Options{
		Gatherer:       reg,
		Ready:          svc.Ready,
		AllowedOrigins: httpx.SplitOrigins(cfg.CORSOrigins),
	}, logger)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)
	if serverTLS != nil {
		httpServer.SetTLSConfig(serverTLS)
	}

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPCListen != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer = rpc.NewGRPCServer(svc, serverTLS, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("starting gRPC server", "addr", grpcListener.Addr().String())
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Stop(10 * time.Second)
	})

	return g.Wait()
}
