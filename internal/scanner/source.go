package scanner

import (
	"context"
	"image"
	_ "image/jpeg" // кадры с камеры приходят в JPEG
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrSourceClosed    = errors.New("frame source closed")
	ErrSourceExhausted = errors.New("frame source exhausted")
)

// FrameSource: "дай следующий кадр". Жизненным циклом камеры (права, старт) владеет не сканер;
// сканер только гарантирует, что Close будет вызван ровно один раз при завершении сессии.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// StaticSource отдаёт заранее подготовленные кадры (тесты, демо).
type StaticSource struct {
	mu     sync.Mutex
	frames []image.Image
	i      int
	loop   bool
	closed bool
	closes int
}

func NewStaticSource(loop bool, frames ...image.Image) *StaticSource {
	return &StaticSource{frames: frames, loop: loop}
}

func (s *StaticSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if len(s.frames) == 0 {
		return nil, ErrSourceExhausted
	}
	if s.i >= len(s.frames) {
		if !s.loop {
			return nil, ErrSourceExhausted
		}
		s.i = 0
	}
	f := s.frames[s.i]
	s.i++
	return f, nil
}

func (s *StaticSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.closes++
	s.mu.Unlock()
	return nil
}

// Closes: сколько раз вызывали Close (для проверок в тестах).
func (s *StaticSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// DirSource проигрывает PNG/JPEG-файлы каталога по кругу, имитируя камеру.
type DirSource struct {
	mu     sync.Mutex
	files  []string
	i      int
	closed bool
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read frames dir")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frames in %s", dir)
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

func (s *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSourceClosed
	}
	path := s.files[s.i%len(s.files)]
	s.i++
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open frame")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode frame %s", filepath.Base(path))
	}
	return img, nil
}

func (s *DirSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
