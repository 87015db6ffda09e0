package scanner

import (
	"image"
	"image/color"
)

func solid(w, h int, c color.Gray) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, c)
		}
	}
	return img
}

// stripes: вертикальные полосы шириной 4px по всей высоте.
func stripes(w, h int) *image.Gray {
	img := solid(w, h, color.Gray{Y: 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

// textured: мелкая шахматка в верхней четверти кадра, центр пустой.
func textured(w, h int) *image.Gray {
	img := solid(w, h, color.Gray{Y: 255})
	for y := 0; y < h/4; y++ {
		for x := 0; x < w; x++ {
			if ((x/2)+(y/2))%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}
