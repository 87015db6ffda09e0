// Package decodeproxy реализует серверную сторону декодирования VIN: Redis, затем Postgres,
// затем публичный реестр под общим лимитом. Новые результаты уходят в Kafka.
package decodeproxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/BearBump/VinBox/internal/broker/messages"
	"github.com/BearBump/VinBox/internal/cache"
	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/metrics"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/storage/pgvehicle"
	"github.com/BearBump/VinBox/internal/vin"
)

var ErrInvalidVIN = errors.New("invalid vin")

const DefaultFailureTTL = 15 * time.Minute

type Repository interface {
	GetVehicle(ctx context.Context, vin string) (*models.VehicleRecord, error)
	UpsertVehicle(ctx context.Context, u pgvehicle.VehicleUpdate) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Limiter interface {
	AllowUpstream(ctx context.Context, upstream string) (bool, error)
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	registry decoder.Provider
	limiter  Limiter
	producer Producer
	topic    string

	failureTTL time.Duration
	now        func() time.Time
	sf         singleflight.Group
}

type Option func(*Service)

func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithProducer: без продюсера результат пишется в repo напрямую.
func WithProducer(p Producer, topic string) Option {
	return func(s *Service) {
		s.producer = p
		if topic != "" {
			s.topic = topic
		}
	}
}

func WithFailureTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.failureTTL = d
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

// New: repo и c могут быть nil (тогда соответствующий уровень пропускается).
func New(repo Repository, c cache.BytesCache, registry decoder.Provider, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		cache:      c,
		registry:   registry,
		topic:      messages.TopicVehicleDecoded,
		failureTTL: DefaultFailureTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Decode отдаёт запись для VIN. Ошибка бывает только одна (ErrInvalidVIN);
// сбои инфраструктуры логируются, сбои реестра становятся записью valid=false.
func (s *Service) Decode(ctx context.Context, raw string) (models.VehicleRecord, error) {
	v := vin.Normalize(raw)
	if !vin.IsValid(v) {
		metrics.DecodeTotal.WithLabelValues("proxy", "none", models.FailureInvalid).Inc()
		return models.VehicleRecord{}, ErrInvalidVIN
	}

	if rec, ok := s.fromCache(ctx, v); ok {
		s.count(models.SourceCache, rec)
		return rec, nil
	}
	if rec, ok := s.fromStore(ctx, v); ok {
		s.count(models.SourceStore, rec)
		return rec, nil
	}

	// запрос к реестру доводится до конца, даже если первый клиент отвалился
	detached := context.WithoutCancel(ctx)
	r, _, _ := s.sf.Do(v, func() (any, error) {
		return s.fromUpstream(detached, v), nil
	})
	rec := r.(models.VehicleRecord)
	s.count(models.SourceUpstream, rec)
	return rec, nil
}

// ApplyDecoded применяет сообщение vehicle.decoded к хранилищу и освежает Redis.
func (s *Service) ApplyDecoded(ctx context.Context, msg messages.VehicleDecoded) error {
	v := vin.Normalize(msg.VIN)
	if !vin.IsValid(v) {
		return errors.Wrapf(ErrInvalidVIN, "message vin %q", msg.VIN)
	}
	if s.repo == nil {
		return errors.New("repository is not configured")
	}
	rec := msg.VehicleRecord.Normalized()
	rec.VIN = v
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = s.now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(s.failureTTL)
	}

	if err := s.repo.UpsertVehicle(ctx, pgvehicle.VehicleUpdate{
		Record:      rec,
		CheckedAt:   msg.CheckedAt,
		NextCheckAt: msg.NextCheckAt,
	}); err != nil {
		return err
	}

	// в БД могла остаться валидная запись, в кэш кладём то, что реально хранится
	stored, err := s.repo.GetVehicle(ctx, v)
	if err == nil && stored != nil {
		s.toCache(ctx, *stored)
	}
	return nil
}

func (s *Service) fromCache(ctx context.Context, v string) (models.VehicleRecord, bool) {
	if s.cache == nil {
		return models.VehicleRecord{}, false
	}
	b, ok, err := s.cache.Get(ctx, cacheKey(v))
	if err != nil {
		slog.Warn("vehicle cache get", "vin", v, "error", err.Error())
		return models.VehicleRecord{}, false
	}
	if !ok {
		return models.VehicleRecord{}, false
	}
	var rec models.VehicleRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.VIN != v {
		slog.Warn("vehicle cache entry is corrupt", "vin", v)
		return models.VehicleRecord{}, false
	}
	return rec.Normalized(), true
}

func (s *Service) fromStore(ctx context.Context, v string) (models.VehicleRecord, bool) {
	if s.repo == nil {
		return models.VehicleRecord{}, false
	}
	rec, err := s.repo.GetVehicle(ctx, v)
	if err != nil {
		slog.Error("get vehicle", "vin", v, "error", err.Error())
		return models.VehicleRecord{}, false
	}
	if rec == nil {
		return models.VehicleRecord{}, false
	}
	if !rec.Valid && !s.now().Before(rec.ResolvedAt.Add(s.failureTTL)) {
		return models.VehicleRecord{}, false
	}
	s.toCache(ctx, *rec)
	return rec.Normalized(), true
}

func (s *Service) fromUpstream(ctx context.Context, v string) models.VehicleRecord {
	now := s.now()
	if s.limiter != nil {
		allowed, err := s.limiter.AllowUpstream(ctx, s.registry.Name())
		if err != nil {
			slog.Warn("upstream rate limiter", "error", err.Error())
		} else if !allowed {
			// отказ лимитера: локальное состояние, его не кэшируем и не публикуем
			slog.Warn("upstream rate limit exceeded", "provider", s.registry.Name(), "vin", v)
			rec := models.NewFailedRecord(v, models.FailureNetwork, models.ErrRegistryFailed, now)
			rec.Source = models.SourceUpstream
			return rec
		}
	}

	rec := decoder.Lookup(ctx, s.registry, v, now)
	s.toCache(ctx, rec)
	s.persist(ctx, rec, now)
	return rec
}

func (s *Service) toCache(ctx context.Context, rec models.VehicleRecord) {
	if s.cache == nil {
		return
	}
	var ttl time.Duration
	if !rec.Valid {
		ttl = rec.ResolvedAt.Add(s.failureTTL).Sub(s.now())
		if ttl <= 0 {
			return
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		slog.Error("marshal vehicle", "vin", rec.VIN, "error", err.Error())
		return
	}
	if err := s.cache.Set(ctx, cacheKey(rec.VIN), b, ttl); err != nil {
		slog.Warn("vehicle cache set", "vin", rec.VIN, "error", err.Error())
	}
}

func (s *Service) persist(ctx context.Context, rec models.VehicleRecord, now time.Time) {
	msg := messages.NewVehicleDecoded(rec, now, now.Add(s.failureTTL))

	if s.producer == nil {
		if s.repo == nil {
			return
		}
		err := s.repo.UpsertVehicle(ctx, pgvehicle.VehicleUpdate{Record: rec, CheckedAt: now, NextCheckAt: msg.NextCheckAt})
		if err != nil {
			slog.Error("upsert vehicle", "vin", rec.VIN, "error", err.Error())
		}
		return
	}

	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal kafka msg", "vin", rec.VIN, "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(rec.VIN), b); err != nil {
		slog.Error("publish vehicle decoded", "vin", rec.VIN, "error", err.Error())
	}
}

func (s *Service) count(source string, rec models.VehicleRecord) {
	metrics.DecodeTotal.WithLabelValues("proxy", source, metrics.Outcome(rec.Valid, rec.FailureKind)).Inc()
}

func cacheKey(v string) string {
	return "vehicle:" + v
}
