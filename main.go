package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-bidding/config"
	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/events"
	"auction-bidding/internal/fanout"
	model "auction-bidding/internal/models"
	"auction-bidding/internal/monitoring"
	"auction-bidding/internal/notifier"
	"auction-bidding/internal/repository"
	"auction-bidding/internal/server"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetLogLevel(cfg.LogLevel)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			utils.Fatal("failed to connect to redis", map[string]any{"error": err.Error()})
		}
		redisClient = client
	}

	store, err := openLedger(cfg, redisClient)
	if err != nil {
		utils.Fatal("failed to open ledger", map[string]any{"backend": cfg.LedgerBackend, "error": err.Error()})
	}

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, store); err != nil {
			utils.Fatal("failed to seed demo data", map[string]any{"error": err.Error()})
		}
	}

	monitor := monitoring.NewMonitor()

	hub := fanout.NewHub(monitor)
	go hub.Run(ctx)

	publishers := []events.Publisher{hub}
	if redisClient != nil {
		publishers = append(publishers, notifier.NewRedisPublisher(redisClient, cfg.RedisChannelPrefix))
	}
	if cfg.PubNubEnabled() {
		publishers = append(publishers, notifier.NewPubNubPublisher(notifier.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}))
	}

	dispatcher := events.NewDispatcher(events.Options{
		QueueSize:    cfg.EventQueueSize,
		Workers:      cfg.EventWorkers,
		MaxAttempts:  cfg.EventMaxAttempts,
		RetryBackoff: cfg.EventRetryBackoff,
	}, monitor, publishers...)

	biddingSvc := bidding.NewBiddingService(store, dispatcher, bidding.WithTracker(monitor))

	router := server.SetupRouter(biddingSvc, hub)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{
			"addr":       srv.Addr,
			"ledger":     cfg.LedgerBackend,
			"publishers": len(publishers),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("http server shutdown", map[string]any{"error": err.Error()})
	}
	// accepted bids still queued for delivery get the rest of the shutdown budget
	if err := dispatcher.Close(shutdownCtx); err != nil {
		utils.Error("event dispatcher shutdown", map[string]any{"error": err.Error()})
	}
	closeStores(store, redisClient, cfg.LedgerBackend)
}

// closeStores closes the ledger, then the shared redis client unless the redis ledger already owns it
func closeStores(store repository.LedgerStore, redisClient *redis.Client, backend string) {
	if err := store.Close(); err != nil {
		utils.Error("ledger close", map[string]any{"error": err.Error()})
	}
	if redisClient == nil || backend == "redis" {
		return
	}
	if err := redisClient.Close(); err != nil {
		utils.Error("redis client close", map[string]any{"error": err.Error()})
	}
}

// openLedger builds the store selected by LEDGER_BACKEND
func openLedger(cfg *config.Config, redisClient *redis.Client) (repository.LedgerStore, error) {
	switch cfg.LedgerBackend {
	case "memory":
		return repository.NewMemoryRepo(), nil
	case "pebble":
		return repository.NewPebbleStore(cfg.PebblePath, nil)
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis ledger requires REDIS_URL")
		}
		return repository.NewRedisStore(redisClient), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

// seedDemoData adds sample auctions and bidders. Auctions that already exist are kept as they are.
func seedDemoData(ctx context.Context, store repository.LedgerStore) error {
	now := time.Now().UTC()

	auctions := []model.Auction{
		{AuctionID: "auction1", Title: "Vintage Watch", SellerID: "seller1", StartingPrice: decimal.NewFromInt(100)},
		{AuctionID: "auction2", Title: "Signed Guitar", SellerID: "seller1", StartingPrice: decimal.NewFromInt(200)},
		{AuctionID: "auction3", Title: "First Edition Novel", SellerID: "seller2", StartingPrice: decimal.NewFromInt(150)},
	}
	for _, a := range auctions {
		if _, err := store.GetAuction(ctx, a.AuctionID); err == nil {
			continue
		}
		a.Increment = decimal.NewFromInt(1)
		a.StartTime = now
		a.EndTime = now.Add(24 * time.Hour)
		if err := store.CreateAuction(ctx, a); err != nil {
			return fmt.Errorf("seed auction %s: %w", a.AuctionID, err)
		}
	}

	users := []model.User{
		{UserID: "user1", Username: "alice", Balance: decimal.NewFromInt(1000)},
		{UserID: "user2", Username: "bob", Balance: decimal.NewFromInt(500)},
		{UserID: "user3", Username: "carol", Balance: decimal.NewFromInt(2500)},
	}
	for _, u := range users {
		if _, err := store.GetUser(ctx, u.UserID); err == nil {
			continue
		}
		if err := store.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.UserID, err)
		}
	}

	utils.Info("demo data ready", map[string]any{"auctions": len(auctions), "users": len(users)})
	return nil
}
