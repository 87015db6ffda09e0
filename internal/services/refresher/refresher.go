// Package refresher: воркер, который перепроверяет неуспешные декодирования VIN
// по расписанию и публикует результат в vehicle.decoded.
package refresher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/VinBox/internal/broker/messages"
	"github.com/BearBump/VinBox/internal/integrations/decoder"
	"github.com/BearBump/VinBox/internal/metrics"
	"github.com/BearBump/VinBox/internal/storage/pgvehicle"
)

type Repository interface {
	ClaimStaleFailures(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*pgvehicle.StaleVehicle, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Limiter interface {
	AllowUpstream(ctx context.Context, upstream string) (bool, error)
}

type Refresher struct {
	repo     Repository
	registry decoder.Provider
	producer Producer
	limiter  Limiter

	topic string

	planner *Planner

	pollInterval   time.Duration
	batchSize      int
	concurrency    int
	lease          time.Duration
	publishRetries int
	now            func() time.Time

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalRecovered      atomic.Int64
	totalDeferred       atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

// New: limiter может быть nil.
func New(repo Repository, registry decoder.Provider, producer Producer, limiter Limiter, topic string) *Refresher {
	if topic == "" {
		topic = messages.TopicVehicleDecoded
	}
	return &Refresher{
		repo: repo, registry: registry, producer: producer, limiter: limiter, topic: topic,
		planner:           DefaultPlanner(),
		pollInterval:      30 * time.Second,
		batchSize:         100,
		concurrency:       4,
		lease:             5 * time.Minute,
		publishRetries:    5,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Refresher) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Refresher {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	return r
}

func (r *Refresher) WithPlanner(cfg PlannerConfig) *Refresher {
	r.planner = NewPlanner(cfg, nil)
	return r
}

// Trigger: внеочередной цикл (не блокирует, лишние вызовы схлопываются).
func (r *Refresher) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalRecovered int64      `json:"totalRecovered"`
	TotalDeferred  int64      `json:"totalDeferred"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (r *Refresher) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed:   r.totalClaimed.Load(),
		TotalProcessed: r.totalProcessed.Load(),
		TotalRecovered: r.totalRecovered.Load(),
		TotalDeferred:  r.totalDeferred.Load(),
		TotalErrors:    r.totalErrors.Load(),
		InFlight:       r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	now := r.now().UTC()
	r.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	items, err := r.repo.ClaimStaleFailures(ctx, now, r.batchSize, r.lease)
	if err != nil {
		slog.Error("claim stale failures", "error", err.Error())
		r.setLastError(err)
		return
	}
	r.totalClaimed.Add(int64(len(items)))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, sv := range items {
		r.inFlight.Add(1)
		g.Go(func() error {
			defer r.inFlight.Add(-1)
			if err := r.processOne(ctx, sv); err != nil {
				r.totalErrors.Add(1)
				r.setLastError(err)
				slog.Error("refresh vehicle", "vin", sv.Record.VIN, "error", err.Error())
			}
			r.totalProcessed.Add(1)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Refresher) processOne(ctx context.Context, sv *pgvehicle.StaleVehicle) error {
	now := r.now().UTC()
	v := sv.Record.VIN

	if r.limiter != nil {
		allowed, err := r.limiter.AllowUpstream(ctx, r.registry.Name())
		if err != nil {
			return err
		}
		if !allowed {
			// запись вернётся в выборку, когда истечёт lease
			slog.Warn("upstream rate limit exceeded, deferring", "vin", v)
			r.totalDeferred.Add(1)
			return nil
		}
	}

	rec := decoder.Lookup(ctx, r.registry, v, now)
	next := now.Add(r.planner.NextCheckDelay(rec, sv.CheckFailCount))
	metrics.RefreshTotal.WithLabelValues(metrics.Outcome(rec.Valid, rec.FailureKind)).Inc()
	if rec.Valid {
		r.totalRecovered.Add(1)
	}

	b, err := json.Marshal(messages.NewVehicleDecoded(rec, now, next))
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// Kafka может подняться позже воркера: несколько попыток с растущей паузой.
	var pubErr error
	for i := 0; i < r.publishRetries; i++ {
		if pubErr = r.producer.Publish(ctx, r.topic, []byte(v), b); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return pubErr
}

func (r *Refresher) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
