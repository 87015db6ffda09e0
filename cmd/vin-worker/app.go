package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/VinBox/config"
	"github.com/BearBump/VinBox/internal/broker/kafka"
	"github.com/BearBump/VinBox/internal/broker/messages"
	"github.com/BearBump/VinBox/internal/cache"
	"github.com/BearBump/VinBox/internal/cache/rediscache"
	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/integrations/decoder/fake"
	"github.com/BearBump/VinBox/internal/integrations/decoder/vpic"
	"github.com/BearBump/VinBox/internal/services/decodeproxy"
	"github.com/BearBump/VinBox/internal/services/refresher"
	"github.com/BearBump/VinBox/internal/storage/pgvehicle"
)

// vehicleStore описывает, что воркеру нужно от Postgres: выборка на перепроверку и применение vehicle.decoded.
type vehicleStore interface {
	refresher.Repository
	decodeproxy.Repository
	RefreshVehicle(ctx context.Context, vin string) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo vehicleStore, closeFn func(), err error)
	newCache       func(cfg *config.Config) (c cache.BytesCache, closeFn func())
	newProducer    func(cfg *config.Config) refresher.Producer
	newRateLimiter func(cfg *config.Config) refresher.Limiter
	newRegistry    func(cfg *config.Config) decoder.Provider
	newConsumer    func(cfg *config.Config, topic string) kafkaConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (vehicleStore, func(), error) {
			st, err := pgvehicle.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) (cache.BytesCache, func()) {
			rc := rediscache.New(cfg.Redis.Addr(), cfg.Redis.KeyPrefix)
			return rc, func() { _ = rc.Close() }
		},
		newProducer: func(cfg *config.Config) refresher.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) refresher.Limiter {
			rlPerMin := int64(cfg.VinBox.UpstreamRateLimitPerMinute)
			if rlPerMin <= 0 {
				rlPerMin = 120
			}
			return rediscache.NewRateLimiter(cfg.Redis.Addr(), rlPerMin)
		},
		newRegistry: func(cfg *config.Config) decoder.Provider {
			// "fake": локальный декодер без сети (демо, стенды).
			if cfg.VinBox.VPICBaseURL == "fake" {
				return fake.New()
			}
			timeout := time.Duration(cfg.VinBox.UpstreamTimeoutSeconds) * time.Second
			return vpic.New(cfg.VinBox.VPICBaseURL).WithTimeout(timeout)
		},
		newConsumer: func(cfg *config.Config, topic string) kafkaConsumer {
			group := cfg.VinBox.KafkaConsumerGroup
			if group == "" {
				group = "vin-worker"
			}
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
		},
	}
}

// RunVinWorker поднимает перепроверку неуспешных VIN, применение vehicle.decoded
// к Postgres/Redis и служебный HTTP. При пустом swaggerPath HTTP не поднимается.
func RunVinWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	topic := cfg.Kafka.VehicleDecodedTopicName
	if topic == "" {
		topic = messages.TopicVehicleDecoded
	}

	pollInterval := time.Duration(cfg.VinBox.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	batchSize := cfg.VinBox.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.VinBox.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	lease := time.Duration(cfg.VinBox.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	failureTTL := time.Duration(cfg.VinBox.FailureTTLSeconds) * time.Second

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	var bytesCache cache.BytesCache
	if f.newCache != nil {
		c, closeCache := f.newCache(cfg)
		if closeCache != nil {
			defer closeCache()
		}
		bytesCache = c
	}

	producer := f.newProducer(cfg)
	limiter := f.newRateLimiter(cfg)
	registry := f.newRegistry(cfg)

	r := refresher.New(repo, registry, producer, limiter, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease).
		WithPlanner(refresher.PlannerConfig{
			FailureDelay: failureTTL,
			Backoff1:     time.Duration(cfg.VinBox.WorkerBackoff1Seconds) * time.Second,
			Backoff2:     time.Duration(cfg.VinBox.WorkerBackoff2Seconds) * time.Second,
			Backoff3:     time.Duration(cfg.VinBox.WorkerBackoff3Seconds) * time.Second,
			Backoff4:     time.Duration(cfg.VinBox.WorkerBackoff4Seconds) * time.Second,
		})

	// продюсер не передаём: сервис только применяет сообщения
	applier := decodeproxy.New(repo, bytesCache, registry, decodeproxy.WithFailureTTL(failureTTL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx)
	})

	if f.newConsumer != nil {
		consumer := f.newConsumer(cfg, topic)
		defer func() { _ = consumer.Close() }()
		g.Go(func() error {
			return runConsumer(gctx, consumer, topic, applier)
		})
	}

	if swaggerPath != "" {
		g.Go(func() error {
			return runWorkerHTTPServer(gctx, workerHTTPOpts{
				httpAddr:    cfg.VinBox.WorkerHTTPAddr,
				swaggerPath: swaggerPath,
				refresher:   r,
				requeue:     repo.RefreshVehicle,
				cfg:         cfg,
			})
		})
	} else {
		slog.Warn("worker swaggerPath is empty, HTTP server disabled")
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type decodedApplier interface {
	ApplyDecoded(ctx context.Context, msg messages.VehicleDecoded) error
}

// runConsumer крутит Consume до отмены ctx. Битые сообщения пропускаются (коммитятся),
// ошибку применения Consume повторяет на том же сообщении. Ошибка чтения или commit
// останавливает Consume, и через паузу чтение начинается заново.
func runConsumer(ctx context.Context, consumer kafkaConsumer, topic string, applier decodedApplier) error {
	slog.Info("kafka consumer started", "topic", topic)
	for {
		err := consumer.Consume(ctx, func(key, value []byte) error {
			var m messages.VehicleDecoded
			if err := json.Unmarshal(value, &m); err != nil {
				slog.Error("skip malformed vehicle.decoded", "key", string(key), "error", err.Error())
				return nil
			}
			if err := applier.ApplyDecoded(ctx, m); err != nil {
				if errors.Is(err, decodeproxy.ErrInvalidVIN) {
					slog.Error("skip vehicle.decoded", "key", string(key), "error", err.Error())
					return nil
				}
				return errors.Wrap(err, "apply vehicle decoded")
			}
			return nil
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Error("kafka consumer stopped", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
