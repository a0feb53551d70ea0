package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShipStream/config"
	"github.com/BearBump/ShipStream/internal/api/shipments_api"
	"github.com/BearBump/ShipStream/internal/broker/kafka"
	"github.com/BearBump/ShipStream/internal/cache/rediscache"
	"github.com/BearBump/ShipStream/internal/fanout/redisfanout"
	"github.com/BearBump/ShipStream/internal/services/shipments"
	"github.com/BearBump/ShipStream/internal/services/sidefx"
	"github.com/BearBump/ShipStream/internal/storage/pgshipping"
)

type shipAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   shipAPIOpts
	api    *shipments_api.ShipmentsAPI
	fx     *sidefx.Runner

	closeDB func()
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.ShipStream.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	snapshotTTL := time.Duration(cfg.ShipStream.SnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 60 * time.Second
	}
	cacheTimeout := time.Duration(cfg.ShipStream.CacheTimeoutMillis) * time.Millisecond
	publishTimeout := time.Duration(cfg.ShipStream.PublishTimeoutMillis) * time.Millisecond
	storeTimeout := time.Duration(cfg.ShipStream.StoreTimeoutSeconds) * time.Second

	updatedTopic := cfg.Kafka.ShipmentUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "shipment.updated"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	pub := redisfanout.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	fx := sidefx.New(publishTimeout)
	svc := shipments.New(st, rc, pub, fx, snapshotTTL).
		WithCacheTimeout(cacheTimeout).
		WithStoreTimeout(storeTimeout).
		WithUpdateFeed(producer, updatedTopic)

	api := shipments_api.New(svc, shipments_api.StaticVerifier{
		OperatorToken: cfg.ShipStream.OperatorToken,
		UserTokens:    cfg.ShipStream.UserTokens,
	})
	if cfg.ShipStream.IngestRateLimitPerMinute > 0 {
		api.WithRateLimiter(rediscache.NewRateLimiter(redisAddr), int64(cfg.ShipStream.IngestRateLimitPerMinute))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &shipAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: shipAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		api:     api,
		fx:      fx,
		closeDB: st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipping.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipping.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	redisfanout.Close()
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *shipAPIApp) Run() error {
	return runShipAPI(a.ctx, a.opts, a.api, a.fx)
}
