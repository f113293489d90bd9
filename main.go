package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferreirogomes/nftmarket/blockchain_listener"
	"github.com/ferreirogomes/nftmarket/config"
	"github.com/ferreirogomes/nftmarket/events"
	"github.com/ferreirogomes/nftmarket/handlers"
	"github.com/ferreirogomes/nftmarket/logging"
	"github.com/ferreirogomes/nftmarket/middleware/ratelimit"
	"github.com/ferreirogomes/nftmarket/services"
	"github.com/ferreirogomes/nftmarket/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("servidor encerrou com erro", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, closePersister, err := newPersister(cfg)
	if err != nil {
		return err
	}
	defer closePersister()

	store := storage.NewStore(persister, logger)
	if err := store.Load(ctx); err != nil {
		return err
	}
	if cfg.ContractAddress != "" {
		store.SetContractAddress(cfg.ContractAddress)
	}

	chain, err := newGateway(cfg)
	if err != nil {
		return err
	}

	opts := []services.Option{
		services.WithCurrency(cfg.Currency),
		services.WithChainTimeout(cfg.ChainTimeout),
		services.WithLogger(logger),
	}

	if cfg.RedisAddr != "" {
		client, err := events.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, services.WithPublisher(events.NewRedisPublisher(client, events.WithChannel(cfg.EventsChannel))))
		logger.Info("publicando eventos no redis", "addr", cfg.RedisAddr, "channel", cfg.EventsChannel)
	}

	var svc *services.MarketplaceService
	listener := blockchain_listener.NewBlockchainListener(chain, func(ctx context.Context, ref string) {
		svc.ConfirmTransaction(ctx, ref)
	}, cfg.ConfirmInterval, cfg.ConfirmMaxAttempts)
	opts = append(opts, services.WithWatcher(listener))

	svc = services.NewMarketplaceService(store, chain, opts...)
	go listener.StartListening(ctx)

	routerOpts := handlers.RouterOptions{Logger: logger, TrustXFF: cfg.TrustXFF}
	if cfg.RateLimitRPS > 0 {
		limiter := ratelimit.NewStore(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limiter.StartJanitor(ctx, time.Minute)
		routerOpts.Limiter = limiter
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(svc, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ChainTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("marketplace escutando",
			"addr", srv.Addr,
			"network", chain.Network(),
			"operator", chain.Address(),
			"contract", store.ContractAddress(),
			"storage", cfg.StorageDriver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("encerrando")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPersister(cfg config.Config) (storage.Persister, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := storage.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	case config.StorageMemory:
		return storage.MemoryPersister{}, func() {}, nil
	default:
		p, err := storage.NewJSONFilePersister(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}
}

func newGateway(cfg config.Config) (services.ChainGateway, error) {
	if cfg.ChainDriver == config.ChainSolana {
		return services.NewSolanaIntegrationService(cfg.SolanaRPCURL, cfg.SolanaFeePayerKey, cfg.SolanaCluster)
	}
	return services.NewSimulatedGateway(), nil
}
