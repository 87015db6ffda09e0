package decoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/BearBump/VinBox/internal/models"
)

// Provider резолвит VIN в атрибуты автомобиля.
//
// Отсутствие данных не ошибка: провайдер возвращает то, что нашёл, а валидность
// записи считает вызывающий. Ошибка означает, что до источника не достучались
// (сеть, таймаут, не-2xx).
type Provider interface {
	Name() string
	Decode(ctx context.Context, vin string) (models.VehicleAttributes, error)
}

// ErrUpstreamUnavailable: источник ответил, но сообщил, что сам не смог получить данные.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// HTTPStatusError: источник вернул не-2xx.
type HTTPStatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}
