package scanner

import (
	"sync"

	"github.com/BearBump/VinBox/internal/metrics"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
)

// Dispatcher фильтрует кандидатов и отдаёт потребителю не больше одного за сессию.
type Dispatcher struct {
	mu      sync.Mutex
	last    string
	done    bool
	halt    func()
	consume func(models.ScanCandidate)
}

func NewDispatcher(halt func(), consume func(models.ScanCandidate)) *Dispatcher {
	if halt == nil {
		halt = func() {}
	}
	if consume == nil {
		consume = func(models.ScanCandidate) {}
	}
	return &Dispatcher{halt: halt, consume: consume}
}

// OnCandidate возвращает true, если кандидат ушёл потребителю.
// Повтор предыдущего payload и невалидный по своему виду payload молча отбрасываются.
// После первой отдачи сессия остановлена, и все следующие кандидаты игнорируются.
func (d *Dispatcher) OnCandidate(c models.ScanCandidate) bool {
	d.mu.Lock()
	if d.done || c.Payload == d.last {
		d.mu.Unlock()
		return false
	}
	d.last = c.Payload
	if !vin.Matches(c.Kind, c.Payload) {
		d.mu.Unlock()
		return false
	}
	d.done = true
	d.mu.Unlock()

	d.halt()
	metrics.ScanDispatchTotal.WithLabelValues(string(c.Kind)).Inc()
	d.consume(c)
	return true
}

func (d *Dispatcher) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}
