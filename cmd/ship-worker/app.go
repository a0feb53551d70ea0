package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ShipStream/config"
	"github.com/BearBump/ShipStream/internal/broker/kafka"
	"github.com/BearBump/ShipStream/internal/broker/messages"
	"github.com/BearBump/ShipStream/internal/cache/rediscache"
	"github.com/BearBump/ShipStream/internal/fanout/redisfanout"
	"github.com/BearBump/ShipStream/internal/services/shipments"
	"github.com/BearBump/ShipStream/internal/services/sidefx"
	"github.com/BearBump/ShipStream/internal/storage/pgshipping"
)

type eventsConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (shipments.Repository, func(), error)
	newCache    func(cfg *config.Config) shipments.BytesCache
	newFanOut   func(cfg *config.Config) shipments.FanOut
	newProducer func(cfg *config.Config) shipments.FeedProducer
	newConsumer func(cfg *config.Config, topic, group string) eventsConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (shipments.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgshipping.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) shipments.BytesCache {
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newFanOut: func(cfg *config.Config) shipments.FanOut {
			return redisfanout.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newProducer: func(cfg *config.Config) shipments.FeedProducer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newConsumer: func(cfg *config.Config, topic, group string) eventsConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

// RunShipWorker consumes operator events from kafka and runs them through
// the same pipeline the HTTP ingest uses. It also exposes a small ops HTTP
// server (health, stats, swagger).
func RunShipWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerHTTPOpts) error {
	eventsTopic := cfg.Kafka.ShipmentEventsTopicName
	if eventsTopic == "" {
		eventsTopic = "shipment.events"
	}
	updatedTopic := cfg.Kafka.ShipmentUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "shipment.updated"
	}
	group := cfg.ShipStream.KafkaConsumerGroup
	if group == "" {
		group = "ship-worker"
	}

	snapshotTTL := time.Duration(cfg.ShipStream.SnapshotTTLSeconds) * time.Second
	if snapshotTTL <= 0 {
		snapshotTTL = 60 * time.Second
	}
	publishTimeout := time.Duration(cfg.ShipStream.PublishTimeoutMillis) * time.Millisecond
	storeTimeout := time.Duration(cfg.ShipStream.StoreTimeoutSeconds) * time.Second

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	fx := sidefx.New(publishTimeout)
	svc := shipments.New(repo, f.newCache(cfg), f.newFanOut(cfg), fx, snapshotTTL).
		WithStoreTimeout(storeTimeout).
		WithUpdateFeed(f.newProducer(cfg), updatedTopic)

	consumer := f.newConsumer(cfg, eventsTopic, group)
	defer func() { _ = consumer.Close() }()

	opts.fx = fx
	opts.cfg = cfg
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, opts)
	}()

	slog.Info("kafka consumer started", "topic", eventsTopic, "group", group)
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumer.Consume(ctx, func(_ []byte, value []byte) error {
			var m messages.ShipmentEventReceived
			if err := json.Unmarshal(value, &m); err != nil {
				slog.Warn("dropping undecodable shipment event", "error", err.Error())
				return nil
			}
			return svc.ApplyBrokerEvent(ctx, m)
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-consumeErr:
		return err
	case err := <-httpErr:
		return err
	}
}
