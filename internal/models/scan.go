package models

type ScanKind string

const (
	ScanKindVin     ScanKind = "vin"
	ScanKindBarcode ScanKind = "barcode"
)

// ScanCandidate: строка, которую эвристика "увидела" в кадре. Нигде не хранится.
type ScanCandidate struct {
	Kind    ScanKind `json:"kind"`
	Payload string   `json:"payload"`
}
