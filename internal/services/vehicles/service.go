// Package vehicles содержит клиентский конвейер декодирования VIN: валидация, локальный кэш,
// прокси бэкенда (если есть токен) и публичный реестр как запасной путь.
package vehicles

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/metrics"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
	"golang.org/x/sync/singleflight"
)

type Cache interface {
	Get(vin string) (models.VehicleRecord, bool)
	Put(rec models.VehicleRecord)
}

// Proxy: авторизованный бэкенд-декодер.
type Proxy interface {
	Decode(ctx context.Context, vin, token string) (models.VehicleAttributes, error)
}

// Credentials пользователя. nil или пустой токен означает "без авторизации".
type Credentials struct {
	Token string
}

func (c *Credentials) present() bool {
	return c != nil && c.Token != ""
}

const DefaultTimeout = 10 * time.Second

type Service struct {
	cache    Cache
	registry decoder.Provider
	proxy    Proxy

	sf           singleflight.Group
	singleFlight bool
	timeout      time.Duration
	now          func() time.Time
}

type Option func(*Service)

// WithoutSingleFlight отключает склейку параллельных запросов одного VIN
// (тогда последняя запись в кэш побеждает).
func WithoutSingleFlight() Option {
	return func(s *Service) { s.singleFlight = false }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New: proxy может быть nil, тогда всегда идём в реестр напрямую.
func New(c Cache, registry decoder.Provider, proxy Proxy, opts ...Option) *Service {
	s := &Service{
		cache:        c,
		registry:     registry,
		proxy:        proxy,
		singleFlight: true,
		timeout:      DefaultTimeout,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Decode всегда возвращает запись и никогда не возвращает ошибку: все сбои превращаются в Valid=false + Error.
func (s *Service) Decode(ctx context.Context, raw string, creds *Credentials) models.VehicleRecord {
	v := vin.Normalize(raw)
	if !vin.IsValid(v) {
		metrics.DecodeTotal.WithLabelValues("client", "none", models.FailureInvalid).Inc()
		return models.NewFailedRecord(v, models.FailureInvalid, models.ErrInvalidVINFormat, s.now())
	}

	if rec, ok := s.cache.Get(v); ok {
		metrics.DecodeTotal.WithLabelValues("client", models.SourceCache, metrics.Outcome(rec.Valid, rec.FailureKind)).Inc()
		slog.Debug("vin cache hit", "vin", v, "valid", rec.Valid)
		return rec
	}

	if !s.singleFlight {
		return s.resolve(ctx, v, creds)
	}

	// авторизованный и анонимный запросы идут разными маршрутами и полёт не делят
	ch := s.sf.DoChan(s.flightKey(v, creds), func() (any, error) {
		// пока ждали очередь, запись могла появиться
		if rec, ok := s.cache.Get(v); ok {
			return rec, nil
		}
		return s.resolve(ctx, v, creds), nil
	})
	select {
	case r := <-ch:
		return r.Val.(models.VehicleRecord)
	case <-ctx.Done():
		// запрос доедет и попадёт в кэш, просто результат уже некому отдать
		return models.NewFailedRecord(v, models.FailureNetwork, models.ErrRequestCanceled, s.now())
	}
}

func (s *Service) flightKey(v string, creds *Credentials) string {
	if s.useProxy(creds) {
		return v + "|proxy"
	}
	return v + "|registry"
}

func (s *Service) useProxy(creds *Credentials) bool {
	return creds.present() && s.proxy != nil
}

// Prefetch запускает декодирование в фоне (например, пока пользователь заполняет форму).
// Отмена ctx вызывающего не прерывает запрос.
func (s *Service) Prefetch(ctx context.Context, raw string, creds *Credentials) <-chan models.VehicleRecord {
	out := make(chan models.VehicleRecord, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		out <- s.Decode(detached, raw, creds)
		close(out)
	}()
	return out
}

// resolve: у прокси и реестра свои таймауты, зависший прокси не съедает время запасного пути.
func (s *Service) resolve(parent context.Context, v string, creds *Credentials) models.VehicleRecord {
	base := context.WithoutCancel(parent)

	var (
		attrs  models.VehicleAttributes
		err    error
		source string
	)

	if s.useProxy(creds) {
		ctx, cancel := context.WithTimeout(base, s.timeout)
		start := time.Now()
		attrs, err = s.proxy.Decode(ctx, v, creds.Token)
		cancel()
		metrics.UpstreamLatency.WithLabelValues("proxy").Observe(time.Since(start).Seconds())
		if err == nil {
			source = models.SourceProxy
		} else {
			slog.Warn("decode proxy failed, falling back to registry", "vin", v, "error", err.Error())
		}
	}

	if source == "" {
		ctx, cancel := context.WithTimeout(base, s.timeout)
		start := time.Now()
		attrs, err = s.registry.Decode(ctx, v)
		cancel()
		metrics.UpstreamLatency.WithLabelValues(s.registry.Name()).Observe(time.Since(start).Seconds())
		source = models.SourceUpstream
	}

	var rec models.VehicleRecord
	if err != nil {
		slog.Error("decode vin", "vin", v, "error", err.Error())
		rec = models.NewFailedRecord(v, models.FailureNetwork, models.ErrRegistryFailed, s.now())
	} else {
		rec = models.NewVehicleRecord(v, attrs, s.now())
	}
	rec.Source = source

	s.cache.Put(rec)
	metrics.DecodeTotal.WithLabelValues("client", source, metrics.Outcome(rec.Valid, rec.FailureKind)).Inc()
	slog.Debug("vin decoded", "vin", v, "source", source, "valid", rec.Valid)
	return rec
}
