package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/scanner"
	"github.com/BearBump/VinBox/internal/vin"
)

const testVIN = "1HGBH41JXMN109186"

func writePNG(t *testing.T, dir, name string, img image.Image) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func blank(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// checker: мелкая шахматка в верхней четверти кадра: для эвристики это текст VIN.
func checker(w, h int) *image.Gray {
	img := blank(w, h)
	for y := 0; y < h/4; y++ {
		for x := 0; x < w; x++ {
			if ((x/2)+(y/2))%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func execute(t *testing.T, ctx context.Context, args ...string) (scanOutput, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newScanCommand(ctx, &out)
	if args == nil {
		args = []string{} // иначе cobra возьмёт os.Args
	}
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	var res scanOutput
	if err == nil {
		require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	}
	return res, err
}

func TestScan_DirectVIN_Fake(t *testing.T) {
	res, err := execute(t, context.Background(), "--vin", " 1hgbh41jxmn109186 ", "--vpic", "fake")
	require.NoError(t, err)
	require.NotNil(t, res.Vehicle)
	require.Nil(t, res.Candidate)
	require.True(t, res.Vehicle.Valid)
	require.Equal(t, testVIN, res.Vehicle.VIN)
	require.Equal(t, "Honda", *res.Vehicle.Make)
}

func TestScan_DirectVIN_Invalid(t *testing.T) {
	res, err := execute(t, context.Background(), "--vin", "NOPE", "--vpic", "fake")
	require.NoError(t, err)
	require.False(t, res.Vehicle.Valid)
	require.Equal(t, models.FailureInvalid, res.Vehicle.FailureKind)
}

func TestScan_DirectVIN_ViaProxy(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		y, mk, md := "1991", "Honda", "Accord"
		rec := models.NewVehicleRecord(testVIN, models.VehicleAttributes{Year: &y, Make: &mk, Model: &md}, time.Now())
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	res, err := execute(t, context.Background(),
		"--vin", testVIN, "--proxy", srv.URL, "--token", "t0k", "--vpic", "fake")
	require.NoError(t, err)
	require.Equal(t, "Bearer t0k", gotAuth)
	require.True(t, res.Vehicle.Valid)
	require.Equal(t, "Accord", *res.Vehicle.Model)
}

func TestScan_Frames_VINCandidateDecoded(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "000.png", blank(400, 200))
	writePNG(t, dir, "001.png", checker(400, 200))

	res, err := execute(t, context.Background(),
		"--frames", dir, "--vpic", "fake", "--interval", "5ms", "--deadline", "5s")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	require.GreaterOrEqual(t, res.Frames, 2)
	require.NotNil(t, res.Candidate)
	require.Equal(t, models.ScanKindVin, res.Candidate.Kind)
	require.True(t, vin.IsValid(res.Candidate.Payload))
	require.NotNil(t, res.Vehicle)
	require.Equal(t, res.Candidate.Payload, res.Vehicle.VIN)
}

func TestScan_Frames_NothingFound(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "000.png", blank(100, 100))

	start := time.Now()
	_, err := execute(t, context.Background(),
		"--frames", dir, "--vpic", "fake", "--interval", "5ms", "--deadline", "100ms")
	require.ErrorIs(t, err, errNoCandidate)
	require.Equal(t, 2, exitCode(err))
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestScan_ValidateFlags(t *testing.T) {
	_, err := execute(t, context.Background())
	require.Error(t, err)

	_, err = execute(t, context.Background(), "--vin", testVIN, "--frames", "/tmp")
	require.Error(t, err)

	_, err = execute(t, context.Background(), "--vin", testVIN, "--classifier", "ocr")
	require.Error(t, err)

	_, err = execute(t, context.Background(), "--vin", testVIN, "--token", "x")
	require.Error(t, err)
	require.Equal(t, 1, exitCode(err))
	require.Equal(t, 0, exitCode(nil))
}

func TestScan_DecodingClassifierSelected(t *testing.T) {
	o := newScanOptions()
	o.Classifier = classifierDecoding
	_, ok := o.classifier().(scanner.FirstOf)
	require.True(t, ok)

	o.Classifier = classifierHeuristic
	_, ok = o.classifier().(*scanner.HeuristicClassifier)
	require.True(t, ok)
}
