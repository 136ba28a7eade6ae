package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/gift-market/internal/adapter/artwork"
	"github.com/rl1809/gift-market/internal/adapter/handler"
	"github.com/rl1809/gift-market/internal/adapter/storage"
	"github.com/rl1809/gift-market/internal/config"
	"github.com/rl1809/gift-market/internal/core/service"
	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "gift-market",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(context.Background(), "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info(ctx, fmt.Sprintf("ledger store ready: driver=%s", store.Dialect()))

	dedup, closeDedup, err := openDedup(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeDedup()

	files, err := artwork.NewFileStore(artwork.Options{
		Dir:        cfg.Artwork.Dir,
		URLPrefix:  cfg.Artwork.URLPrefix,
		MaxBytes:   cfg.Artwork.MaxBytes,
		Extensions: cfg.Artwork.Extensions,
	})
	if err != nil {
		return err
	}

	market := service.NewMarketService(store, service.Options{
		StartingBalance: cfg.Market.StartingBalance,
		TxTimeout:       cfg.Market.TxTimeout,
		Logger:          log,
	})

	// gRPC
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogging(log)))
	handler.RegisterMarketServer(grpcServer, handler.NewGRPCHandler(market, handler.GRPCOptions{
		Dedup:    dedup,
		Artwork:  files,
		Logger:   log,
		AdminIDs: cfg.Admin.UserIDs,
	}))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// HTTP
	httpHandler := handler.NewHTTPHandler(market, handler.HTTPOptions{
		Dedup:          dedup,
		Artwork:        files,
		Logger:         log,
		MaxUploadBytes: cfg.Artwork.MaxBytes,
	})
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: handler.NewRouter(handler.RouterConfig{
			Handler:       httpHandler,
			Logger:        log,
			AdminIDs:      cfg.Admin.UserIDs,
			ArtworkDir:    files.Dir(),
			ArtworkPrefix: files.URLPrefix(),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "gRPC server listening on "+cfg.Server.GRPCAddr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info(gctx, "HTTP server listening on "+cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		log.Info(shutdownCtx, "HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info(shutdownCtx, "gRPC server stopped")
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	log.Info(context.Background(), "connections closed")
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*storage.SQLStore, error) {
	pool := storage.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	switch cfg.Driver {
	case config.DriverMySQL:
		return storage.NewMySQLStore(ctx, cfg.MySQLDSN(), pool)
	case config.DriverPostgres:
		return storage.NewPostgresStore(ctx, cfg.PostgresDSN(), pool)
	default:
		store, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store.SQLStore, nil
	}
}

// openDedup connects to Redis when enabled and falls back to an in-process
// guard otherwise.
func openDedup(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (port.DedupRepository, func(), error) {
	if !cfg.Enabled {
		log.Info(ctx, "redis disabled, using in-memory request dedupe")
		return storage.NewMemoryDedup(cfg.DedupTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	adapter := storage.NewRedisAdapter(rdb, cfg.DedupTTL)
	if err := adapter.Ping(ctx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	log.Info(ctx, "connected to redis")

	return adapter, func() { rdb.Close() }, nil
}
