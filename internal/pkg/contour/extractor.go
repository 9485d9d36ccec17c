// Package contour turns a labeled segmentation raster into simplified
// polygons per region.
package contour

import (
	"image"
	"math"
	"strconv"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

const (
	DefaultKernelSize   = 7
	DefaultBlurSigma    = 3.0
	DefaultMinArea      = 20.0
	DefaultEpsilonRatio = 0.005

	// 0.5 on a 0..255 scale
	binarizeThreshold = 127
)

type Extractor struct {
	KernelSize   int
	BlurSigma    float64
	MinArea      float64
	EpsilonRatio float64
}

func NewExtractor() *Extractor {
	return &Extractor{
		KernelSize:   DefaultKernelSize,
		BlurSigma:    DefaultBlurSigma,
		MinArea:      DefaultMinArea,
		EpsilonRatio: DefaultEpsilonRatio,
	}
}

// Smooth closes small holes with a disk kernel, blurs the result and
// re-binarizes it at half intensity.
func (e *Extractor) Smooth(mask *image.Gray) *Bitmap {
	closing := gift.New(
		gift.Maximum(e.KernelSize, true),
		gift.Minimum(e.KernelSize, true),
	)
	closed := image.NewGray(closing.Bounds(mask.Bounds()))
	closing.Draw(closed, mask)

	blurred := imaging.Blur(closed, e.BlurSigma)

	b := blurred.Bounds()
	out := NewBitmap(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := blurred.Pix[y*blurred.Stride:]
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = row[x*4] > binarizeThreshold
		}
	}
	return out
}

// Extract returns the contours of every region in ascending id order.
// Regions whose contours are all filtered out are left out.
func (e *Extractor) Extract(labels *LabelMap) entity.ContourSet {
	set := entity.ContourSet{}
	for _, id := range labels.Regions() {
		smoothed := e.Smooth(labels.Mask(id))
		contours := e.Simplify(TraceExternal(smoothed))
		if len(contours) == 0 {
			continue
		}
		set = append(set, entity.RegionContours{
			Region:   strconv.Itoa(id),
			Contours: contours,
		})
	}
	return set
}

// Simplify drops borders enclosing less than MinArea and reduces the rest
// with Douglas-Peucker at EpsilonRatio of their perimeter. Only polygons with
// more than two vertices survive.
func (e *Extractor) Simplify(borders [][]image.Point) []entity.Contour {
	var contours []entity.Contour
	for _, border := range borders {
		ring := toRing(compress(border))
		if math.Abs(planar.Area(ring)) < e.MinArea {
			continue
		}

		epsilon := e.EpsilonRatio * planar.Length(ring)
		simplified := simplify.DouglasPeucker(epsilon).Ring(ring.Clone())

		contour := fromRing(simplified)
		if len(contour) > 2 {
			contours = append(contours, contour)
		}
	}
	return contours
}

func toRing(points []image.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		ring = append(ring, orb.Point{float64(p.X), float64(p.Y)})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}

// fromRing drops the closing vertex; contours are implicitly closed.
func fromRing(ring orb.Ring) entity.Contour {
	if len(ring) > 1 && ring[0].Equal(ring[len(ring)-1]) {
		ring = ring[:len(ring)-1]
	}
	contour := make(entity.Contour, len(ring))
	for i, p := range ring {
		contour[i] = entity.Point{X: p.X(), Y: p.Y()}
	}
	return contour
}
