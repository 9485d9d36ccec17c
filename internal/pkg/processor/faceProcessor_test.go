package processor

import (
	"encoding/base64"
	"encoding/xml"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/facedetect"
	"github.com/ds124wfegd/facesvg/internal/pkg/facetest"
	"github.com/ds124wfegd/facesvg/internal/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type svgSummary struct {
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
	Paths  []struct {
		D string `xml:"d,attr"`
	} `xml:"path"`
}

func decodeSVG(t *testing.T, encoded string) svgSummary {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	var s svgSummary
	require.NoError(t, xml.Unmarshal(raw, &s))
	return s
}

func TestProcessPortrait(t *testing.T) {
	p := NewFaceProcessor(facedetect.NewSkinToneDetector())

	result, err := p.Process(facetest.Input())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"1", "2", "3"}, result.MaskContours.Regions())

	doc := decodeSVG(t, result.SVG)
	assert.Len(t, doc.Paths, result.MaskContours.Count())
	// landmark box 110x110 padded by 22 on each side
	assert.InDelta(t, 154, doc.Width, 2)
	assert.InDelta(t, 154, doc.Height, 2)

	for _, rc := range result.MaskContours {
		for _, c := range rc.Contours {
			require.Greater(t, len(c), 2)
			for _, pt := range c {
				assert.True(t, pt.X >= 0 && pt.Y >= 0 && pt.X < float64(doc.Width) && pt.Y < float64(doc.Height),
					"region %s point %v outside canvas", rc.Region, pt)
			}
		}
	}
}

func TestProcessTiltedLandmarks(t *testing.T) {
	in := facetest.Input()
	in.Landmarks = facetest.Rotated(facetest.Landmarks(), 15)
	require.InDelta(t, 15, geometry.DetectAngle(in.Landmarks), 1e-6)

	result, err := NewFaceProcessor(facedetect.NewSkinToneDetector()).Process(in)

	require.NoError(t, err)
	contours, ok := result.MaskContours.Get("1")
	require.True(t, ok)
	assert.NotEmpty(t, contours)
}

func TestProcessErrors(t *testing.T) {
	valid := facetest.Input()

	tests := []struct {
		name    string
		mutate  func(in *entity.JobInput)
		wantErr error
	}{
		{
			name:    "image is not an image",
			mutate:  func(in *entity.JobInput) { in.Image = []byte("definitely not a png") },
			wantErr: entity.ErrDecode,
		},
		{
			name:    "empty image",
			mutate:  func(in *entity.JobInput) { in.Image = nil },
			wantErr: entity.ErrDecode,
		},
		{
			name:    "segmentation is not an image",
			mutate:  func(in *entity.JobInput) { in.Segmentation = []byte{0x89, 0x50, 0x4e} },
			wantErr: entity.ErrDecode,
		},
		{
			name:    "no face in image",
			mutate:  func(in *entity.JobInput) { in.Image = facetest.PNG(facetest.Blank()) },
			wantErr: entity.ErrNoFaceDetected,
		},
		{
			name: "landmarks away from the face",
			mutate: func(in *entity.JobInput) {
				in.Landmarks = []entity.Point{{X: 2, Y: 2}, {X: 20, Y: 20}}
			},
			wantErr: entity.ErrNoFaceDetected,
		},
	}

	p := NewFaceProcessor(facedetect.NewSkinToneDetector())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			in.Landmarks = append([]entity.Point(nil), valid.Landmarks...)
			tt.mutate(&in)

			result, err := p.Process(in)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}
}

func TestProcessEmptySegmentation(t *testing.T) {
	in := facetest.Input()
	in.Segmentation = facetest.PNG(image.NewGray(image.Rect(0, 0, facetest.Width, facetest.Height)))

	result, err := NewFaceProcessor(nil).Process(in)

	require.NoError(t, err)
	assert.Empty(t, result.MaskContours)
	assert.Empty(t, decodeSVG(t, result.SVG).Paths)
}

func TestProcessResizesSegmentation(t *testing.T) {
	in := facetest.Input()
	half := imaging.Resize(facetest.Segmentation(), facetest.Width/2, facetest.Height/2, imaging.NearestNeighbor)
	in.Segmentation = facetest.PNG(half)

	result, err := NewFaceProcessor(nil).Process(in)

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, result.MaskContours.Regions())
}

func TestProcessKeepsSixteenBitRegionIDs(t *testing.T) {
	seg := facetest.Segmentation()
	wide := image.NewGray16(seg.Bounds())
	for i, v := range seg.Pix {
		id := uint16(v)
		if id == 3 {
			id = 300
		}
		wide.SetGray16(i%facetest.Width, i/facetest.Width, color.Gray16{Y: id})
	}

	tests := []struct {
		name     string
		landmark []entity.Point
	}{
		{name: "upright", landmark: facetest.Landmarks()},
		{name: "tilted", landmark: facetest.Rotated(facetest.Landmarks(), 12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := facetest.Input()
			in.Landmarks = tt.landmark
			in.Segmentation = facetest.PNG(wide)

			result, err := NewFaceProcessor(nil).Process(in)

			require.NoError(t, err)
			assert.Equal(t, []string{"1", "2", "300"}, result.MaskContours.Regions())
		})
	}
}

func TestProcessWithoutDetectorAcceptsBlankImage(t *testing.T) {
	in := facetest.Input()
	in.Image = facetest.PNG(facetest.Blank())

	_, err := NewFaceProcessor(nil).Process(in)

	assert.NoError(t, err)
}

func TestProcessIsDeterministic(t *testing.T) {
	p := NewFaceProcessor(facedetect.NewSkinToneDetector())

	first, err := p.Process(facetest.Input())
	require.NoError(t, err)
	second, err := p.Process(facetest.Input())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

type panickingDetector struct{}

func (panickingDetector) Detect(image.Image) []image.Rectangle { panic("boom") }

func TestProcessRecoversPanics(t *testing.T) {
	result, err := NewFaceProcessor(panickingDetector{}).Process(facetest.Input())

	assert.ErrorIs(t, err, entity.ErrInternalComputation)
	assert.Contains(t, err.Error(), "boom")
	assert.Nil(t, result)
}
