package scanner

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticSource_NoLoop(t *testing.T) {
	a, b := solid(4, 4, color.Gray{Y: 1}), solid(4, 4, color.Gray{Y: 2})
	s := NewStaticSource(false, a, b)
	ctx := context.Background()

	got, err := s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, a, got)
	got, err = s.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, b, got)

	_, err = s.Next(ctx)
	require.ErrorIs(t, err, ErrSourceExhausted)
}

func TestStaticSource_LoopAndClose(t *testing.T) {
	a := solid(4, 4, color.Gray{Y: 1})
	s := NewStaticSource(true, a)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, a, got)
	}

	require.NoError(t, s.Close())
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, ErrSourceClosed)
	require.Equal(t, 1, s.Closes())
}

func TestStaticSource_Empty(t *testing.T) {
	_, err := NewStaticSource(true).Next(context.Background())
	require.ErrorIs(t, err, ErrSourceExhausted)
}

func TestStaticSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStaticSource(true, solid(4, 4, color.Gray{})).Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func writePNG(t *testing.T, path string, w, h int, c color.Gray) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, solid(w, h, c)))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 3, 3, color.Gray{Y: 200})
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2, color.Gray{Y: 10})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	s, err := NewDirSource(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// по алфавиту и по кругу: a, b, a
	for _, want := range []int{2, 3, 2} {
		img, err := s.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, img.Bounds().Dx())
	}

	require.NoError(t, s.Close())
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, ErrSourceClosed)
}

func TestDirSource_Errors(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	_, err = NewDirSource(t.TempDir())
	require.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))
	s, err := NewDirSource(dir)
	require.NoError(t, err)
	_, err = s.Next(context.Background())
	require.Error(t, err)
}
