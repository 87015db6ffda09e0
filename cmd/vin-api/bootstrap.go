package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/VinBox/config"
	"github.com/BearBump/VinBox/internal/broker/kafka"
	"github.com/BearBump/VinBox/internal/broker/messages"
	"github.com/BearBump/VinBox/internal/cache/rediscache"
	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/integrations/decoder/fake"
	"github.com/BearBump/VinBox/internal/integrations/decoder/vpic"
	"github.com/BearBump/VinBox/internal/services/decodeproxy"
	"github.com/BearBump/VinBox/internal/storage/pgvehicle"
)

type vinAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    vinAPIOpts
	svc     *decodeproxy.Service
	closers []func()
}

func (a *vinAPIApp) Close() {
	a.cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func mustBootstrapVinAPI() *vinAPIApp {
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
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.VinBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.VehicleDecodedTopicName
	if topic == "" {
		topic = messages.TopicVehicleDecoded
	}
	failureTTL := time.Duration(cfg.VinBox.FailureTTLSeconds) * time.Second
	if failureTTL <= 0 {
		failureTTL = decodeproxy.DefaultFailureTTL
	}
	rlPerMin := int64(cfg.VinBox.UpstreamRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	app := &vinAPIApp{}

	st, err := pgvehicle.New(cfg.Database.ConnString())
	if err != nil {
		panic(err)
	}
	app.closers = append(app.closers, st.Close)

	rc := rediscache.New(cfg.Redis.Addr(), cfg.Redis.KeyPrefix)
	app.closers = append(app.closers, func() { _ = rc.Close() })

	rl := rediscache.NewRateLimiter(cfg.Redis.Addr(), rlPerMin)
	app.closers = append(app.closers, func() { _ = rl.Close() })

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	app.closers = append(app.closers, func() { _ = producer.Close() })

	app.svc = decodeproxy.New(st, rc, newRegistry(cfg),
		decodeproxy.WithLimiter(rl),
		decodeproxy.WithProducer(producer, topic),
		decodeproxy.WithFailureTTL(failureTTL),
	)

	app.opts = vinAPIOpts{
		httpAddr:    httpAddr,
		swaggerPath: swaggerPath,
		tokens:      cfg.VinBox.APITokens,
		ready: func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return errors.Wrap(rc.Ping(ctx), "ready")
		},
	}

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return app
}

// newRegistry: vpic_base_url "fake" включает локальный фейк (демо без сети).
func newRegistry(cfg *config.Config) decoder.Provider {
	if cfg.VinBox.VPICBaseURL == "fake" {
		return fake.New()
	}
	timeout := time.Duration(cfg.VinBox.UpstreamTimeoutSeconds) * time.Second
	return vpic.New(cfg.VinBox.VPICBaseURL).WithTimeout(timeout)
}
