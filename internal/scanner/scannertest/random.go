// Package scannertest: заглушки сканера для тестов и демо без камеры.
package scannertest

import (
	"image"
	"math/rand"
	"sync"

	"github.com/BearBump/VinBox/internal/models"
)

var (
	SampleVINs     = []string{"1HGBH41JXMN109186", "1M8GDM9AXKP042788", "5YJSA1E26HF000337"}
	SampleBarcodes = []string{"4006381333931", "012345678905", "96385074"}
)

// DefaultProbability: доля кадров, в которых заглушка что-то "видит".
const DefaultProbability = 0.05

// RandomClassifier с вероятностью p "находит" что-то в любом кадре.
// Содержимое кадра не смотрит; только для тестов.
type RandomClassifier struct {
	mu sync.Mutex
	r  *rand.Rand
	p  float64
}

func NewRandomClassifier(r *rand.Rand, p float64) *RandomClassifier {
	if p <= 0 || p > 1 {
		p = DefaultProbability
	}
	return &RandomClassifier{r: r, p: p}
}

func (c *RandomClassifier) Classify(image.Image) (models.ScanCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.r.Float64() >= c.p {
		return models.ScanCandidate{}, false
	}
	if c.r.Intn(2) == 0 {
		return models.ScanCandidate{Kind: models.ScanKindVin, Payload: SampleVINs[c.r.Intn(len(SampleVINs))]}, true
	}
	return models.ScanCandidate{Kind: models.ScanKindBarcode, Payload: SampleBarcodes[c.r.Intn(len(SampleBarcodes))]}, true
}
