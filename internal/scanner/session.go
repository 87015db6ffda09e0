package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/pkg/errors"

	"github.com/BearBump/VinBox/internal/models"
)

const DefaultInterval = 500 * time.Millisecond

const (
	StateIdle     = "idle"
	StateSampling = "sampling"

	EventStart     = "start"
	EventCandidate = "candidate"
	EventStop      = "stop"
)

type SessionOption func(*Session)

// WithInterval задаёт период выборки кадров.
func WithInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// OnResult: потребитель кандидата. Вызывается синхронно, после остановки выборки.
func OnResult(fn func(models.ScanCandidate)) SessionOption {
	return func(s *Session) {
		s.onResult = fn
	}
}

// WithDecoder: декодер для найденного VIN. Запускается асинхронно и может пережить сессию.
func WithDecoder(fn func(ctx context.Context, vin string)) SessionOption {
	return func(s *Session) {
		s.decode = fn
	}
}

// Session: одна сессия сканирования: idle -> sampling -> idle.
type Session struct {
	ID string

	source     FrameSource
	classifier FrameClassifier
	interval   time.Duration
	onResult   func(models.ScanCandidate)
	decode     func(ctx context.Context, vin string)

	fsm        *fsm.FSM
	dispatcher *Dispatcher

	stopCh    chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error

	mu     sync.Mutex
	result *models.ScanCandidate
	frames int
}

func NewSession(src FrameSource, cls FrameClassifier, opts ...SessionOption) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		source:     src,
		classifier: cls,
		interval:   DefaultInterval,
		stopCh:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	s.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventStart, Src: []string{StateIdle}, Dst: StateSampling},
			{Name: EventCandidate, Src: []string{StateSampling}, Dst: StateIdle},
			{Name: EventStop, Src: []string{StateSampling}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				slog.Debug("scan session state", "session", s.ID, "from", e.Src, "to", e.Dst, "event", e.Event)
			},
		},
	)

	s.dispatcher = NewDispatcher(
		func() { s.transition(EventCandidate) },
		func(c models.ScanCandidate) {
			s.mu.Lock()
			s.result = &c
			s.mu.Unlock()
			if s.onResult != nil {
				s.onResult(c)
			}
		},
	)
	return s
}

// State: текущее состояние автомата.
func (s *Session) State() string {
	return s.fsm.Current()
}

// Frames: сколько кадров прошло через классификатор.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Stop останавливает выборку. Повторный вызов ничего не делает.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run крутит выборку до первого кандидата, Stop, отмены ctx или конца источника.
// Кадры обрабатываются строго по одному; тики, пришедшие во время обработки, пропускаются.
// Источник закрывается ровно один раз на любом пути выхода.
func (s *Session) Run(ctx context.Context) (models.ScanCandidate, bool, error) {
	defer s.closeSource()

	if err := s.fsm.Event(context.WithoutCancel(ctx), EventStart); err != nil {
		return models.ScanCandidate{}, false, errors.Wrap(err, "start session")
	}
	slog.Info("scan session started", "session", s.ID, "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.transition(EventStop)
			return models.ScanCandidate{}, false, ctx.Err()
		case <-s.stopCh:
			s.transition(EventStop)
			return models.ScanCandidate{}, false, nil
		case <-ticker.C:
		}

		frame, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceExhausted) || errors.Is(err, ErrSourceClosed) {
				s.transition(EventStop)
				return models.ScanCandidate{}, false, nil
			}
			if ctx.Err() == nil {
				slog.Warn("frame read failed", "session", s.ID, "error", err.Error())
			}
			continue
		}

		s.mu.Lock()
		s.frames++
		s.mu.Unlock()

		c, ok := s.classifier.Classify(frame)
		if !ok {
			continue
		}
		if s.dispatcher.OnCandidate(c) {
			slog.Info("scan candidate dispatched", "session", s.ID, "kind", string(c.Kind), "payload", c.Payload)
			if c.Kind == models.ScanKindVin && s.decode != nil {
				go s.decode(context.WithoutCancel(ctx), c.Payload)
			}
			return c, true, nil
		}
	}
}

// Result: отданный кандидат, если он был.
func (s *Session) Result() (models.ScanCandidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return models.ScanCandidate{}, false
	}
	return *s.result, true
}

func (s *Session) transition(event string) {
	if !s.fsm.Can(event) {
		return
	}
	if err := s.fsm.Event(context.Background(), event); err != nil {
		slog.Warn("scan session transition failed", "session", s.ID, "event", event, "error", err.Error())
	}
}

func (s *Session) closeSource() {
	s.closeOnce.Do(func() {
		s.closeErr = s.source.Close()
		if s.closeErr != nil {
			slog.Warn("close frame source", "session", s.ID, "error", s.closeErr.Error())
		}
	})
}
