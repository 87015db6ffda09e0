package fake

import (
	"context"
	"strconv"
	"strings"

	"github.com/BearBump/VinBox/internal/models"
)

// FakeClient: офлайн-декодер для демо и обвязки без сети.
// Марку определяем по WMI (первые 3 символа), год по 10-й позиции.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "fake" }

var wmiMakes = map[string][2]string{
	"1HG": {"Honda", "Accord"},
	"2HG": {"Honda", "Civic"},
	"JHM": {"Honda", "Fit"},
	"1FA": {"Ford", "Mustang"},
	"1FT": {"Ford", "F-150"},
	"1G1": {"Chevrolet", "Malibu"},
	"4T1": {"Toyota", "Camry"},
	"5YJ": {"Tesla", "Model 3"},
	"WBA": {"BMW", "3 Series"},
}

// Год по 10-му символу (цикл 2010-2039; для демо этого хватает).
const yearCodes = "ABCDEFGHJKLMNPRSTVWXY123456789"

func (f *FakeClient) Decode(ctx context.Context, vin string) (models.VehicleAttributes, error) {
	if err := ctx.Err(); err != nil {
		return models.VehicleAttributes{}, err
	}
	if len(vin) < 10 {
		return models.VehicleAttributes{}, nil
	}
	mm, ok := wmiMakes[vin[:3]]
	if !ok {
		return models.VehicleAttributes{}, nil
	}
	attrs := models.VehicleAttributes{
		Make:  ptr(mm[0]),
		Model: ptr(mm[1]),
	}
	if i := strings.IndexByte(yearCodes, vin[9]); i >= 0 {
		attrs.Year = ptr(strconv.Itoa(2010 + i))
	}
	return attrs, nil
}

func ptr(s string) *string { return &s }
