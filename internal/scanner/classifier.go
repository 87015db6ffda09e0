package scanner

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"math/rand"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
)

// FrameClassifier решает, есть ли в кадре штрихкод/VIN, и если да, возвращает кандидата.
type FrameClassifier interface {
	Classify(img image.Image) (models.ScanCandidate, bool)
}

// HeuristicConfig: пороги эвристики. Нули заменяются значениями по умолчанию.
type HeuristicConfig struct {
	DarkThreshold  uint8   // граница тёмный/светлый, 0..255
	MinTransitions int     // строка "похожа на штрихкод", если переходов не меньше
	MaxTransitions int     // и не больше (дальше: шум)
	MinBarcodeRows int     // сколько строк должно совпасть
	EdgeDelta      int     // разница яркости с соседом, считающаяся краем
	GridStep       int     // шаг разреженной сетки, px
	EdgeDensity    float64 // доля краёв, выше которой считаем, что в кадре текст
}

func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		DarkThreshold:  128,
		MinTransitions: 20,
		MaxTransitions: 200,
		MinBarcodeRows: 3,
		EdgeDelta:      30,
		GridStep:       4,
		EdgeDensity:    0.1,
	}
}

// HeuristicClassifier: приближение: не декодирует символику и не делает OCR,
// только решает "похоже ли", и синтезирует синтаксически верный payload из хэша кадра.
// Одинаковый кадр всегда даёт одинаковый payload, поэтому дедуп диспетчера работает.
type HeuristicClassifier struct {
	cfg HeuristicConfig
}

func NewHeuristicClassifier(cfg HeuristicConfig) *HeuristicClassifier {
	def := DefaultHeuristicConfig()
	if cfg.DarkThreshold == 0 {
		cfg.DarkThreshold = def.DarkThreshold
	}
	if cfg.MinTransitions <= 0 {
		cfg.MinTransitions = def.MinTransitions
	}
	if cfg.MaxTransitions <= 0 {
		cfg.MaxTransitions = def.MaxTransitions
	}
	if cfg.MaxTransitions < cfg.MinTransitions {
		cfg.MaxTransitions = cfg.MinTransitions
	}
	if cfg.MinBarcodeRows <= 0 {
		cfg.MinBarcodeRows = def.MinBarcodeRows
	}
	if cfg.EdgeDelta <= 0 {
		cfg.EdgeDelta = def.EdgeDelta
	}
	if cfg.GridStep <= 0 {
		cfg.GridStep = def.GridStep
	}
	if cfg.EdgeDensity <= 0 {
		cfg.EdgeDensity = def.EdgeDensity
	}
	return &HeuristicClassifier{cfg: cfg}
}

func (h *HeuristicClassifier) Classify(img image.Image) (models.ScanCandidate, bool) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return models.ScanCandidate{}, false
	}
	if rows, sig := h.barcodeRows(img); rows >= h.cfg.MinBarcodeRows {
		return models.ScanCandidate{Kind: models.ScanKindBarcode, Payload: barcodePayload(sig)}, true
	}
	if density, sig := h.edgeDensity(img); density > h.cfg.EdgeDensity {
		return models.ScanCandidate{Kind: models.ScanKindVin, Payload: vinPayload(sig)}, true
	}
	return models.ScanCandidate{}, false
}

// barcodeRows считает строки центральной полосы с "правильным" числом переходов тёмный/светлый.
func (h *HeuristicClassifier) barcodeRows(img image.Image) (int, uint64) {
	b := img.Bounds()
	height := b.Dy()
	mid := b.Min.Y + height/2
	y0, y1 := mid-height/8, mid+height/8
	step := height / 40
	if step < 1 {
		step = 1
	}

	sig := fnv.New64a()
	qualified := 0
	for y := y0; y <= y1 && y < b.Max.Y; y += step {
		transitions := 0
		prevDark := brightness(img, b.Min.X, y) < h.cfg.DarkThreshold
		for x := b.Min.X + 2; x < b.Max.X; x += 2 {
			dark := brightness(img, x, y) < h.cfg.DarkThreshold
			if dark != prevDark {
				transitions++
				prevDark = dark
			}
		}
		if transitions >= h.cfg.MinTransitions && transitions <= h.cfg.MaxTransitions {
			qualified++
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(y-b.Min.Y)<<32|uint64(transitions))
			_, _ = sig.Write(buf[:])
		}
	}
	return qualified, sig.Sum64()
}

// edgeDensity: доля точек разреженной сетки, отличающихся от соседа слева или справа.
func (h *HeuristicClassifier) edgeDensity(img image.Image) (float64, uint64) {
	b := img.Bounds()
	sig := fnv.New64a()
	samples, edges := 0, 0
	for y := b.Min.Y + 1; y < b.Max.Y-1; y += h.cfg.GridStep {
		for x := b.Min.X + 1; x < b.Max.X-1; x += h.cfg.GridStep {
			c := int(brightness(img, x, y))
			l := int(brightness(img, x-1, y))
			r := int(brightness(img, x+1, y))
			samples++
			if abs(c-l) > h.cfg.EdgeDelta || abs(c-r) > h.cfg.EdgeDelta {
				edges++
				_, _ = sig.Write([]byte{byte(x), byte(y), byte(c)})
			}
		}
	}
	if samples == 0 {
		return 0, 0
	}
	return float64(edges) / float64(samples), sig.Sum64()
}

// brightness: (r+g+b)/3 в шкале 0..255.
func brightness(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(((r + g + b) / 3) >> 8)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func barcodePayload(sig uint64) string {
	return fmt.Sprintf("%012d", sig%1_000_000_000_000)
}

const vinAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

// vinPayload собирает 17 символов из алфавита VIN и проставляет контрольную цифру.
func vinPayload(sig uint64) string {
	r := rand.New(rand.NewSource(int64(sig)))
	buf := make([]byte, 17)
	for i := range buf {
		buf[i] = vinAlphabet[r.Intn(len(vinAlphabet))]
	}
	buf[8] = vin.CheckDigit(string(buf))
	return string(buf)
}
