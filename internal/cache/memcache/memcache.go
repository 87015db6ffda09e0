// Package memcache: локальный (в пределах процесса) кэш результатов декодирования VIN.
//
// Успешные записи живут всё время жизни кэша. Неуспешные живут не дольше failureTTL,
// после чего Get считает их отсутствующими, и следующий Decode сходит в сеть заново.
package memcache

import (
	"sync"
	"time"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
)

// DefaultFailureTTL: единый срок хранения неуспешных записей.
const DefaultFailureTTL = 15 * time.Minute

type entry struct {
	rec      models.VehicleRecord
	expireAt time.Time // zero => без срока
}

type Cache struct {
	mu         sync.Mutex
	m          map[string]entry
	failureTTL time.Duration
	now        func() time.Time
}

type Option func(*Cache)

func WithFailureTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.failureTTL = d
		}
	}
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		m:          make(map[string]entry),
		failureTTL: DefaultFailureTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) FailureTTL() time.Duration {
	return c.failureTTL
}

// Get возвращает запись, если она есть и не просрочена. Просроченную удаляет.
func (c *Cache) Get(v string) (models.VehicleRecord, bool) {
	key := vin.Normalize(v)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return models.VehicleRecord{}, false
	}
	if !e.expireAt.IsZero() && !c.now().Before(e.expireAt) {
		delete(c.m, key)
		return models.VehicleRecord{}, false
	}
	return e.rec, true
}

// Put вставляет или перезаписывает запись по rec.VIN (last writer wins).
func (c *Cache) Put(rec models.VehicleRecord) {
	key := vin.Normalize(rec.VIN)
	e := entry{rec: rec}
	if !rec.Valid {
		e.expireAt = c.now().Add(c.failureTTL)
	}

	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
}

func (c *Cache) Delete(v string) {
	c.mu.Lock()
	delete(c.m, vin.Normalize(v))
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry)
	c.mu.Unlock()
}

// Len считает и просроченные, но ещё не вычищенные записи.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
