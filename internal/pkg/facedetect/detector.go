// Package facedetect provides the sanity check that a submitted image shows
// a face where the landmarks say it is.
package facedetect

import (
	"fmt"
	"image"
	"math"

	"github.com/ds124wfegd/facesvg/internal/entity"
)

const (
	KindSkinTone = "skintone"
	KindPigo     = "pigo"
	KindNone     = "none"
)

// Detector finds candidate face rectangles in image coordinates.
type Detector interface {
	Detect(img image.Image) []image.Rectangle
}

// New builds the detector named by kind. KindNone returns a nil detector,
// which Validate treats as "always passes".
func New(kind, cascadePath string) (Detector, error) {
	switch kind {
	case "", KindSkinTone:
		return NewSkinToneDetector(), nil
	case KindPigo:
		d, err := NewPigoDetector(cascadePath)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown face detector %q", kind)
	}
}

// Validate passes when d finds a face overlapping the landmark bounding box,
// or any face at all when there are no landmarks.
func Validate(d Detector, img image.Image, landmarks []entity.Point) error {
	if d == nil {
		return nil
	}

	faces := d.Detect(img)
	if len(faces) == 0 {
		return entity.ErrNoFaceDetected
	}
	if len(landmarks) == 0 {
		return nil
	}

	box := landmarkBox(landmarks).Add(img.Bounds().Min)
	for _, f := range faces {
		if f.Overlaps(box) {
			return nil
		}
	}
	return entity.ErrNoFaceDetected
}

func landmarkBox(landmarks []entity.Point) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range landmarks {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	// a single landmark still has to cover one pixel
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Floor(maxX))+1, int(math.Floor(maxY))+1,
	)
}
