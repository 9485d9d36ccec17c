package facedetect

import (
	"image"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/facetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector []image.Rectangle

func (s stubDetector) Detect(image.Image) []image.Rectangle { return s }

func TestValidate(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	face := image.Rect(20, 20, 80, 80)

	tests := []struct {
		name      string
		detector  Detector
		landmarks []entity.Point
		wantErr   error
	}{
		{
			name:     "disabled detector",
			detector: nil,
		},
		{
			name:     "nothing detected",
			detector: stubDetector{},
			wantErr:  entity.ErrNoFaceDetected,
		},
		{
			name:     "face without landmarks",
			detector: stubDetector{face},
		},
		{
			name:      "face overlapping landmarks",
			detector:  stubDetector{face},
			landmarks: []entity.Point{{X: 40, Y: 40}, {X: 60, Y: 70}},
		},
		{
			name:      "face away from landmarks",
			detector:  stubDetector{face},
			landmarks: []entity.Point{{X: 85, Y: 85}, {X: 95, Y: 95}},
			wantErr:   entity.ErrNoFaceDetected,
		},
		{
			name:      "single landmark inside face",
			detector:  stubDetector{face},
			landmarks: []entity.Point{{X: 50, Y: 50}},
		},
		{
			name:      "second face matches",
			detector:  stubDetector{image.Rect(0, 0, 5, 5), face},
			landmarks: []entity.Point{{X: 30, Y: 30}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.detector, img, tt.landmarks)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSkinToneDetectorFindsPortrait(t *testing.T) {
	faces := NewSkinToneDetector().Detect(facetest.Portrait())

	require.Len(t, faces, 1)
	// ellipse spans x 40..160, y 40..200
	assert.True(t, faces[0].Overlaps(image.Rect(60, 80, 140, 180)))
	assert.InDelta(t, 120, faces[0].Dx(), 6)
	assert.InDelta(t, 160, faces[0].Dy(), 6)
}

func TestSkinToneDetectorIgnoresNonFaces(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{name: "no skin", img: facetest.Blank()},
		{name: "speck", img: withRect(facetest.Blank(), image.Rect(10, 10, 14, 14))},
		{name: "thin strip", img: withRect(facetest.Blank(), image.Rect(0, 100, 200, 120))},
		{name: "empty image", img: image.NewNRGBA(image.Rect(0, 0, 0, 0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, NewSkinToneDetector().Detect(tt.img))
		})
	}
}

func TestValidatePortrait(t *testing.T) {
	d := NewSkinToneDetector()

	assert.NoError(t, Validate(d, facetest.Portrait(), facetest.Landmarks()))
	assert.ErrorIs(t, Validate(d, facetest.Blank(), facetest.Landmarks()), entity.ErrNoFaceDetected)
}

func TestNew(t *testing.T) {
	d, err := New("", "")
	require.NoError(t, err)
	assert.IsType(t, &SkinToneDetector{}, d)

	d, err = New(KindNone, "")
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = New("haar", "")
	assert.Error(t, err)

	_, err = New(KindPigo, "/nonexistent/facefinder")
	assert.Error(t, err)
}

func withRect(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	patch := imaging.New(r.Dx(), r.Dy(), facetest.Skin)
	return imaging.Paste(img, patch, r.Min)
}
