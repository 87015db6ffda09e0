package messages

import (
	"time"

	"github.com/BearBump/VinBox/internal/models"
)

const TopicVehicleDecoded = "vehicle.decoded"

// VehicleDecoded: результат декодирования VIN, ключ сообщения: VIN.
type VehicleDecoded struct {
	models.VehicleRecord

	CheckedAt   time.Time `json:"checkedAt"`
	NextCheckAt time.Time `json:"nextCheckAt,omitzero"`
}

func NewVehicleDecoded(rec models.VehicleRecord, checkedAt, nextCheckAt time.Time) VehicleDecoded {
	m := VehicleDecoded{VehicleRecord: rec, CheckedAt: checkedAt.UTC()}
	if !rec.Valid {
		m.NextCheckAt = nextCheckAt.UTC()
	}
	return m
}
