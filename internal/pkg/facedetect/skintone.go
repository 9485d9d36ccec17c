package facedetect

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	analysisSize = 160

	minCb = 77
	maxCb = 127
	minCr = 133
	maxCr = 173

	minAreaRatio = 0.02
	minAspect    = 0.4
	maxAspect    = 2.5
)

// SkinToneDetector marks face-sized blobs of skin-coloured pixels. It needs
// no model file.
type SkinToneDetector struct {
	Size int
}

func NewSkinToneDetector() *SkinToneDetector {
	return &SkinToneDetector{Size: analysisSize}
}

func (d *SkinToneDetector) Detect(img image.Image) []image.Rectangle {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil
	}

	small := imaging.Fit(img, d.Size, d.Size, imaging.Box)
	sb := small.Bounds()
	w, h := sb.Dx(), sb.Dy()
	sx := float64(bounds.Dx()) / float64(w)
	sy := float64(bounds.Dy()) / float64(h)

	skin := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.NRGBAAt(x, y)
			_, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			skin[y*w+x] = cb >= minCb && cb <= maxCb && cr >= minCr && cr <= maxCr
		}
	}

	minArea := int(minAreaRatio * float64(w*h))
	var faces []image.Rectangle
	for _, blob := range components(skin, w, h) {
		if blob.area < minArea {
			continue
		}
		aspect := float64(blob.box.Dx()) / float64(blob.box.Dy())
		if aspect < minAspect || aspect > maxAspect {
			continue
		}
		faces = append(faces, image.Rect(
			bounds.Min.X+int(float64(blob.box.Min.X)*sx),
			bounds.Min.Y+int(float64(blob.box.Min.Y)*sy),
			bounds.Min.X+int(float64(blob.box.Max.X)*sx+0.5),
			bounds.Min.Y+int(float64(blob.box.Max.Y)*sy+0.5),
		))
	}
	return faces
}

type blob struct {
	box  image.Rectangle
	area int
}

// components labels 4-connected true cells in raster order.
func components(mask []bool, w, h int) []blob {
	seen := make([]bool, len(mask))
	var blobs []blob
	var stack []int

	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		b := blob{box: image.Rect(start%w, start/w, start%w+1, start/w+1)}

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			b.area++
			b.box = b.box.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		blobs = append(blobs, b)
	}
	return blobs
}
