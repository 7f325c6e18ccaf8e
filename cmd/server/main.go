package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tablemates/internal/auth"
	"github.com/mmynk/tablemates/internal/chat"
	"github.com/mmynk/tablemates/internal/config"
	"github.com/mmynk/tablemates/internal/lifecycle"
	"github.com/mmynk/tablemates/internal/matching"
	"github.com/mmynk/tablemates/internal/metrics"
	"github.com/mmynk/tablemates/internal/middleware"
	"github.com/mmynk/tablemates/internal/naming"
	"github.com/mmynk/tablemates/internal/pool"
	"github.com/mmynk/tablemates/internal/scoring"
	"github.com/mmynk/tablemates/internal/service"
	"github.com/mmynk/tablemates/internal/storage"
	"github.com/mmynk/tablemates/internal/storage/dynamo"
	"github.com/mmynk/tablemates/internal/storage/sqlite"
	"github.com/mmynk/tablemates/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := logging.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.StoreBackend)

	provisioner, err := newProvisioner(cfg, logger)
	if err != nil {
		return err
	}

	collector, err := metrics.NewPrometheus(prometheus.DefaultRegisterer, "tablemates")
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	seed := cfg.GroupNameSeed
	if seed == 0 {
		if seed, err = naming.NewSeed(); err != nil {
			return err
		}
	}

	weights, err := cfg.Weights()
	if err != nil {
		return err
	}

	opts := []matching.Option{matching.WithLogger(logger), matching.WithMetrics(collector)}
	finalizer := matching.NewFinalizer(store, provisioner, naming.NewRandom(seed), opts...)
	selector, err := matching.NewSelector(store, pool.New(store), scoring.New(weights), finalizer, cfg.Policy(), opts...)
	if err != nil {
		return err
	}
	manager := lifecycle.New(store, provisioner,
		lifecycle.WithDinnerThreshold(cfg.Match.DinnerThreshold),
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(collector),
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	svc := service.NewMatchService(selector, manager, store, logger)

	mux := http.NewServeMux()
	path, handler := service.NewMatchServiceHandler(svc, connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
	))
	mux.Handle(path, handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders: []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
	}).Handler(loggingMiddleware(logger, mux))

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Wrap with h2c for HTTP/2 without TLS (required for Connect)
		Handler:           h2c.NewHandler(corsHandler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Connect server starting", "address", server.Addr, "chat_enabled", cfg.Stream.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		return dynamo.NewFromConfig(ctx, dynamo.Config{
			Region:      cfg.Dynamo.Region,
			Endpoint:    cfg.Dynamo.Endpoint,
			UsersTable:  cfg.Dynamo.UsersTable,
			GroupsTable: cfg.Dynamo.GroupsTable,
			StatusIndex: cfg.Dynamo.StatusIndex,
		})
	default:
		return sqlite.New(cfg.DBPath)
	}
}

func newProvisioner(cfg *config.Config, logger *slog.Logger) (chat.Provisioner, error) {
	if !cfg.Stream.Enabled() {
		logger.Warn("Stream credentials missing, chat provisioning disabled")
		return chat.Nop{Logger: logger}, nil
	}
	return chat.NewStream(chat.StreamConfig{
		APIKey:      cfg.Stream.APIKey,
		APISecret:   cfg.Stream.APISecret,
		BaseURL:     cfg.Stream.BaseURL,
		ChannelType: cfg.Stream.ChannelType,
		TokenTTL:    cfg.Stream.TokenTTL,
		Timeout:     cfg.Stream.Timeout,
	}, logger)
}

// loggingMiddleware logs all incoming requests at debug level.
// RPC outcomes are logged by the Connect interceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
