package refresher

import (
	"math/rand"
	"time"

	"github.com/BearBump/VinBox/internal/models"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	FailureDelay time.Duration // default: 15 minutes (not_found)

	Backoff1 time.Duration // default: 15 minutes
	Backoff2 time.Duration // default: 30 minutes
	Backoff3 time.Duration // default: 60 minutes
	Backoff4 time.Duration // default: 6 hours

	// Jitter: случайная добавка [0, Jitter], чтобы перепроверки не шли пачкой.
	Jitter time.Duration
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		FailureDelay: 15 * time.Minute,

		Backoff1: 15 * time.Minute,
		Backoff2: 30 * time.Minute,
		Backoff3: 60 * time.Minute,
		Backoff4: 6 * time.Hour,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.FailureDelay <= 0 {
		cfg.FailureDelay = def.FailureDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

// NextCheckDelay: через сколько перепроверить запись. Для валидной 0 (не перепроверяется).
// prevFailCount: сколько сетевых ошибок подряд было до этой попытки.
func (p *Planner) NextCheckDelay(rec models.VehicleRecord, prevFailCount int) time.Duration {
	var d time.Duration
	switch {
	case rec.Valid:
		return 0
	case rec.FailureKind == models.FailureNetwork:
		d = p.BackoffDelay(prevFailCount + 1)
	default:
		d = p.cfg.FailureDelay
	}
	if sec := int(p.cfg.Jitter.Seconds()); sec > 0 {
		d += time.Duration(p.r.Intn(sec+1)) * time.Second
	}
	return d
}

func (p *Planner) BackoffDelay(nextFailCount int) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
