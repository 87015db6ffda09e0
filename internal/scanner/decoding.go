package scanner

import (
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
)

// DecodingClassifier реально читает 1D-штрихкоды кадра (Code 39 на наклейках с VIN,
// Code 128, EAN-13). Текст распознаётся как VIN или как номер штрихкода.
type DecodingClassifier struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewDecodingClassifier() *DecodingClassifier {
	return &DecodingClassifier{
		readers: []gozxing.Reader{
			oned.NewCode39Reader(),
			oned.NewCode128Reader(),
			oned.NewEAN13Reader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *DecodingClassifier) Classify(img image.Image) (models.ScanCandidate, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return models.ScanCandidate{}, false
	}
	for _, r := range d.readers {
		res, err := r.Decode(bmp, d.hints)
		r.Reset()
		if err != nil || res == nil {
			continue
		}
		if c, ok := candidateFromText(res.GetText()); ok {
			return c, true
		}
	}
	return models.ScanCandidate{}, false
}

// candidateFromText: на импортных авто Code 39 часто несёт VIN с лидирующей "I".
func candidateFromText(text string) (models.ScanCandidate, bool) {
	text = strings.TrimSpace(text)
	v := vin.Normalize(text)
	if len(v) == 18 && v[0] == 'I' {
		v = v[1:]
	}
	if vin.IsValid(v) {
		return models.ScanCandidate{Kind: models.ScanKindVin, Payload: v}, true
	}
	if vin.IsBarcode(text) {
		return models.ScanCandidate{Kind: models.ScanKindBarcode, Payload: text}, true
	}
	return models.ScanCandidate{}, false
}

// FirstOf опрашивает классификаторы по очереди и отдаёт первый результат.
type FirstOf []FrameClassifier

func (f FirstOf) Classify(img image.Image) (models.ScanCandidate, bool) {
	for _, c := range f {
		if cand, ok := c.Classify(img); ok {
			return cand, true
		}
	}
	return models.ScanCandidate{}, false
}
