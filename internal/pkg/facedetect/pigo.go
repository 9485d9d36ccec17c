package facedetect

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

const (
	pigoMinSize     = 20
	pigoShiftFactor = 0.1
	pigoScaleFactor = 1.1
	pigoIoU         = 0.2
	pigoMinQuality  = 5.0
)

// PigoDetector runs a pico cascade (for example pigo's "facefinder").
type PigoDetector struct {
	classifier *pigo.Pigo
}

func NewPigoDetector(cascadePath string) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier}, nil
}

func (d *PigoDetector) Detect(img image.Image) []image.Rectangle {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()

	params := pigo.CascadeParams{
		MinSize:     pigoMinSize,
		MaxSize:     max(rows, cols),
		ShiftFactor: pigoShiftFactor,
		ScaleFactor: pigoScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, pigoIoU)

	var faces []image.Rectangle
	for _, det := range dets {
		if det.Q < pigoMinQuality {
			continue
		}
		half := det.Scale / 2
		faces = append(faces, image.Rect(
			det.Col-half, det.Row-half, det.Col+half, det.Row+half,
		).Add(b.Min))
	}
	return faces
}
