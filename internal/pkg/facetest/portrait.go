// Package facetest builds synthetic face fixtures for tests.
package facetest

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
)

const (
	Width  = 200
	Height = 240
)

var (
	Background = color.NRGBA{R: 40, G: 60, B: 160, A: 255}
	Skin       = color.NRGBA{R: 224, G: 172, B: 105, A: 255}

	faceCenter  = image.Point{X: 100, Y: 120}
	EyeRegion   = image.Rect(60, 90, 90, 110)
	MouthRegion = image.Rect(80, 150, 120, 170)
)

const (
	faceRX = 60
	faceRY = 80
)

// Portrait returns a skin-coloured ellipse on a blue background.
func Portrait() *image.NRGBA {
	img := imaging.New(Width, Height, Background)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if inFace(x, y) {
				img.SetNRGBA(x, y, Skin)
			}
		}
	}
	return img
}

// Blank has no skin pixels at all.
func Blank() *image.NRGBA {
	return imaging.New(Width, Height, Background)
}

// Segmentation labels the face ellipse 1, an eye 2 and the mouth 3.
func Segmentation() *image.Gray {
	seg := image.NewGray(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			p := image.Point{X: x, Y: y}
			switch {
			case p.In(EyeRegion):
				seg.SetGray(x, y, color.Gray{Y: 2})
			case p.In(MouthRegion):
				seg.SetGray(x, y, color.Gray{Y: 3})
			case inFace(x, y):
				seg.SetGray(x, y, color.Gray{Y: 1})
			}
		}
	}
	return seg
}

// Landmarks returns 68 points laid out like a frontal face with the eye
// centroids at (75, 100) and (125, 100).
func Landmarks() []entity.Point {
	points := make([]entity.Point, 68)

	// jaw 0..16 along the lower half of the face
	for i := 0; i <= 16; i++ {
		a := math.Pi - float64(i)*math.Pi/16
		points[i] = entity.Point{
			X: float64(faceCenter.X) + 55*math.Cos(a),
			Y: float64(faceCenter.Y) + 75*math.Sin(a),
		}
	}
	// brows 17..26
	for i := 17; i <= 26; i++ {
		points[i] = entity.Point{X: 58 + float64(i-17)*9, Y: 85}
	}
	// nose 27..35
	for i := 27; i <= 35; i++ {
		points[i] = entity.Point{X: 100, Y: 100 + float64(i-27)*5}
	}
	eye := []entity.Point{{X: -6, Y: 0}, {X: -3, Y: -3}, {X: 3, Y: -3}, {X: 6, Y: 0}, {X: 3, Y: 3}, {X: -3, Y: 3}}
	for i, off := range eye {
		points[36+i] = entity.Point{X: 75 + off.X, Y: 100 + off.Y}
		points[42+i] = entity.Point{X: 125 + off.X, Y: 100 + off.Y}
	}
	// mouth 48..67
	for i := 48; i < 68; i++ {
		a := float64(i-48) * 2 * math.Pi / 20
		points[i] = entity.Point{X: 100 + 18*math.Cos(a), Y: 160 + 8*math.Sin(a)}
	}
	return points
}

// Rotated returns the landmarks turned by angle degrees about the image
// center, matching how a tilted photo would place them.
func Rotated(landmarks []entity.Point, angle float64) []entity.Point {
	rad := angle * math.Pi / 180
	cx, cy := float64(Width/2), float64(Height/2)
	out := make([]entity.Point, len(landmarks))
	for i, p := range landmarks {
		dx, dy := p.X-cx, p.Y-cy
		out[i] = entity.Point{
			X: cx + dx*math.Cos(rad) - dy*math.Sin(rad),
			Y: cy + dx*math.Sin(rad) + dy*math.Cos(rad),
		}
	}
	return out
}

// PNG encodes img, panicking on failure since fixtures are always valid.
func PNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Input bundles the default fixture as a job submission.
func Input() entity.JobInput {
	return entity.JobInput{
		Image:        PNG(Portrait()),
		Landmarks:    Landmarks(),
		Segmentation: PNG(Segmentation()),
	}
}

func inFace(x, y int) bool {
	dx := float64(x-faceCenter.X) / faceRX
	dy := float64(y-faceCenter.Y) / faceRY
	return dx*dx+dy*dy <= 1
}
