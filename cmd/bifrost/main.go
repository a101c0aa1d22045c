package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/credano/bifrost/adapters/events"
	"github.com/credano/bifrost/adapters/gateway"
	"github.com/credano/bifrost/adapters/store"
	"github.com/credano/bifrost/adapters/wallet"
	"github.com/credano/bifrost/config"
	"github.com/credano/bifrost/core"
	"github.com/credano/bifrost/ports"
	"github.com/credano/bifrost/service"
	transport "github.com/credano/bifrost/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session persistence and events ride on Redis when configured;
	// otherwise everything stays in-process.
	var sessionStore ports.SessionStore
	var publisher message.Publisher
	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to reach Redis", zap.Error(err))
		}
		defer redisClient.Close()

		sessionStore = store.NewRedisStore(redisClient, "default")

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			wmLogger,
		)
		if err != nil {
			logger.Fatal("failed to create Redis publisher", zap.Error(err))
		}
	} else {
		sessionStore = store.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}

	eventPub := events.NewWatermillPublisher(publisher)
	gatewayClient := gateway.NewHTTPGateway(cfg.GatewayURL, nil)
	walletClient := wallet.NewHTTPWallet(cfg.WalletConnectorURL, nil)

	watcher := service.NewTxWatcher(gatewayClient, eventPub, logger, service.WatcherConfig{
		PollInterval:    cfg.PollInterval,
		CleanupInterval: cfg.CleanupInterval,
		MaxRetries:      cfg.MaxPollRetries,
		PendingTTL:      cfg.PendingTTL,
		TerminalGrace:   cfg.TerminalGrace,
	}, service.WithCompletionFunc(func(tx core.WatchedTransaction) {
		logger.Info("transaction completed",
			zap.String("tx_hash", tx.TxHash),
			zap.String("state", string(tx.State)))
	}))
	defer watcher.Close()
	watcher.StartSweeper()

	auth := service.NewAuthService(walletClient, gatewayClient, sessionStore, eventPub, watcher, logger, service.AuthConfig{
		WalletCheckInterval: cfg.WalletCheckInterval,
		IdentityAssetPrefix: cfg.IdentityAssetPrefix,
	})

	// Restoration runs to completion before the router (and with it any
	// auto-authenticate trigger) comes up.
	if err := auth.RestoreSession(ctx); err != nil {
		logger.Warn("session restoration failed", zap.Error(err))
	}
	auth.StartWalletMonitor(ctx)

	router := transport.SetupRouter(auth, watcher)

	logger.Info("bifrost listening", zap.String("addr", cfg.ListenAddr))
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
