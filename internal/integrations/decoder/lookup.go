package decoder

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/VinBox/internal/metrics"
	"github.com/BearBump/VinBox/internal/models"
)

// Lookup спрашивает провайдера и собирает запись. Ошибка провайдера становится
// записью network, ответ без года/марки/модели даёт not_found.
func Lookup(ctx context.Context, p Provider, vin string, now time.Time) models.VehicleRecord {
	start := time.Now()
	attrs, err := p.Decode(ctx, vin)
	metrics.UpstreamLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	var rec models.VehicleRecord
	if err != nil {
		slog.Error("decode vin", "provider", p.Name(), "vin", vin, "error", err.Error())
		rec = models.NewFailedRecord(vin, models.FailureNetwork, models.ErrRegistryFailed, now)
	} else {
		rec = models.NewVehicleRecord(vin, attrs, now)
	}
	rec.Source = models.SourceUpstream
	return rec
}
