package models

import "time"

// Причины неуспешного декодирования VIN.
const (
	FailureNone     = ""
	FailureInvalid  = "invalid"
	FailureNotFound = "not_found"
	FailureNetwork  = "network"
)

// Откуда пришла запись.
const (
	SourceUpstream = "upstream"
	SourceProxy    = "proxy"
	SourceStore    = "store"
	SourceCache    = "cache"
)

const (
	ErrInvalidVINFormat = "Invalid VIN format"
	ErrVehicleNotFound  = "Vehicle information not found for this VIN"
	ErrRegistryFailed   = "Unable to reach vehicle registry"
	ErrRequestCanceled  = "Decode request was canceled"
)

// VehicleAttributes: атрибуты, которые умеет вернуть реестр. nil означает "реестр не прислал".
type VehicleAttributes struct {
	Year         *string `json:"year,omitempty"`
	Make         *string `json:"make,omitempty"`
	Model        *string `json:"model,omitempty"`
	Trim         *string `json:"trim,omitempty"`
	Engine       *string `json:"engine,omitempty"`
	Displacement *string `json:"displacement,omitempty"`
	Cylinders    *string `json:"cylinders,omitempty"`
	FuelType     *string `json:"fuelType,omitempty"`
	VehicleType  *string `json:"vehicleType,omitempty"`
	BodyClass    *string `json:"bodyClass,omitempty"`
	DriveType    *string `json:"driveType,omitempty"`
	Transmission *string `json:"transmission,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	PlantCity    *string `json:"plantCity,omitempty"`
	PlantState   *string `json:"plantState,omitempty"`
}

// HasRequired: год, марка и модель присутствуют и не пустые.
func (a VehicleAttributes) HasRequired() bool {
	return nonEmpty(a.Year) && nonEmpty(a.Make) && nonEmpty(a.Model)
}

// VehicleRecord: результат попытки декодировать VIN (успешной или нет).
type VehicleRecord struct {
	VIN   string `json:"vin"`
	Valid bool   `json:"valid"`

	VehicleAttributes

	Error       *string   `json:"error,omitempty"`
	FailureKind string    `json:"failureKind,omitempty"`
	Source      string    `json:"source,omitempty"`
	ResolvedAt  time.Time `json:"resolvedAt"`
}

// NewVehicleRecord строит запись и вычисляет Valid по атрибутам.
// Если обязательных полей нет: запись считается not_found.
func NewVehicleRecord(vin string, attrs VehicleAttributes, resolvedAt time.Time) VehicleRecord {
	rec := VehicleRecord{
		VIN:               vin,
		VehicleAttributes: attrs,
		ResolvedAt:        resolvedAt.UTC(),
	}
	rec.Valid = attrs.HasRequired()
	if !rec.Valid {
		rec.FailureKind = FailureNotFound
		rec.Error = strPtr(ErrVehicleNotFound)
	}
	return rec
}

// NewFailedRecord строит запись-ошибку без атрибутов.
func NewFailedRecord(vin, kind, msg string, resolvedAt time.Time) VehicleRecord {
	return VehicleRecord{
		VIN:         vin,
		Valid:       false,
		Error:       strPtr(msg),
		FailureKind: kind,
		ResolvedAt:  resolvedAt.UTC(),
	}
}

// Normalized заново проверяет инвариант valid <=> year/make/model.
// Нужен для записей, пришедших извне (прокси, кэш, БД).
func (r VehicleRecord) Normalized() VehicleRecord {
	valid := r.HasRequired()
	if valid == r.Valid && (valid || r.Error != nil) {
		return r
	}
	r.Valid = valid
	if valid {
		r.Error = nil
		r.FailureKind = FailureNone
		return r
	}
	if r.FailureKind == FailureNone {
		r.FailureKind = FailureNotFound
	}
	if r.Error == nil || *r.Error == "" {
		r.Error = strPtr(ErrVehicleNotFound)
	}
	return r
}

func (r VehicleRecord) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

func strPtr(s string) *string { return &s }
