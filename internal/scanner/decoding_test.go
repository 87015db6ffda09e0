package scanner

import (
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/VinBox/internal/models"
)

func TestDecodingClassifier_Code39VIN(t *testing.T) {
	img, err := oned.NewCode39Writer().Encode("1HGBH41JXMN109186", gozxing.BarcodeFormat_CODE_39, 600, 120, nil)
	require.NoError(t, err)

	c, ok := NewDecodingClassifier().Classify(img)
	require.True(t, ok)
	require.Equal(t, models.ScanCandidate{Kind: models.ScanKindVin, Payload: "1HGBH41JXMN109186"}, c)
}

func TestDecodingClassifier_EAN13(t *testing.T) {
	img, err := oned.NewEAN13Writer().Encode("4006381333931", gozxing.BarcodeFormat_EAN_13, 400, 120, nil)
	require.NoError(t, err)

	c, ok := NewDecodingClassifier().Classify(img)
	require.True(t, ok)
	require.Equal(t, models.ScanCandidate{Kind: models.ScanKindBarcode, Payload: "4006381333931"}, c)
}

func TestDecodingClassifier_Blank(t *testing.T) {
	_, ok := NewDecodingClassifier().Classify(solid(300, 100, color.Gray{Y: 255}))
	require.False(t, ok)
}
