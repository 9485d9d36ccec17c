// Package geometry aligns a face image and its landmark annotations.
//
// Every raster transform goes through Transform, which applies one affine
// matrix to the image, the optional label raster and the landmarks together,
// so the three coordinate spaces cannot drift apart.
package geometry

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	leftEyeFirst  = 36
	rightEyeFirst = 42
	eyeEnd        = 48

	// MinRotation is the smallest angle (degrees) worth resampling for.
	MinRotation = 1.0
	cropPadding = 0.2
)

// Frame bundles a raster with everything that lives in its coordinate space.
// Labels is optional; each pixel value is a region id. It is resampled with
// nearest neighbour and never leaves 16-bit gray, so ids stay exact.
type Frame struct {
	Image     image.Image
	Labels    *image.Gray16
	Landmarks []entity.Point
}

// DetectAngle returns the in-plane rotation in degrees given by the line
// between the eye centroids, or 0 when the eye landmarks are missing.
func DetectAngle(landmarks []entity.Point) float64 {
	if len(landmarks) < eyeEnd {
		return 0.0
	}

	left := centroid(landmarks[leftEyeFirst:rightEyeFirst])
	right := centroid(landmarks[rightEyeFirst:eyeEnd])

	dy := right.Y - left.Y
	dx := right.X - left.X
	return math.Atan2(dy, dx) * 180 / math.Pi
}

func centroid(points []entity.Point) entity.Point {
	var c entity.Point
	for _, p := range points {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(points))
	return entity.Point{X: c.X / n, Y: c.Y / n}
}

// Affine is a 2x3 matrix [a b c; d e f] acting on pixel-center coordinates.
type Affine [6]float64

// RotationMatrix rotates by angle degrees (counter-clockwise on screen)
// about (cx, cy) with unit scale.
func RotationMatrix(cx, cy, angle float64) Affine {
	rad := angle * math.Pi / 180
	alpha := math.Cos(rad)
	beta := math.Sin(rad)
	return Affine{
		alpha, beta, (1-alpha)*cx - beta*cy,
		-beta, alpha, beta*cx + (1-alpha)*cy,
	}
}

func (m Affine) Apply(p entity.Point) entity.Point {
	return entity.Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Rotate turns the frame about the image's integer center. Angles under
// MinRotation return the frame untouched.
func Rotate(f Frame, angle float64) Frame {
	if math.Abs(angle) < MinRotation {
		return f
	}
	b := f.Image.Bounds()
	m := RotationMatrix(float64(b.Dx()/2), float64(b.Dy()/2), angle)
	return Transform(f, m)
}

// Transform applies m to the image, the labels and every landmark. Output
// rasters keep their input size; uncovered pixels are zero.
func Transform(f Frame, m Affine) Frame {
	b := f.Image.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	warp(img, f.Image, m, draw.BiLinear)

	out := Frame{Image: img}
	if f.Labels != nil {
		lb := f.Labels.Bounds()
		labels := image.NewGray16(image.Rect(0, 0, lb.Dx(), lb.Dy()))
		warp(labels, f.Labels, m, draw.NearestNeighbor)
		out.Labels = labels
	}
	out.Landmarks = make([]entity.Point, len(f.Landmarks))
	for i, p := range f.Landmarks {
		out.Landmarks[i] = m.Apply(p)
	}
	return out
}

// warp resamples src through m into dst. x/image/draw samples at pixel
// centers (+0.5) while landmarks use integer centers, so the matrix is
// conjugated by a half-pixel shift.
func warp(dst draw.Image, src image.Image, m Affine, interp draw.Transformer) {
	b := src.Bounds()

	ox := 0.5 + float64(b.Min.X)
	oy := 0.5 + float64(b.Min.Y)
	s2d := f64.Aff3{
		m[0], m[1], m[2] + 0.5 - m[0]*ox - m[1]*oy,
		m[3], m[4], m[5] + 0.5 - m[3]*ox - m[4]*oy,
	}
	interp.Transform(dst, s2d, src, b, draw.Src, nil)
}

// Crop cuts the frame to the landmark bounding box padded by 20% of its size
// on each axis and re-bases the landmarks to the crop origin.
func Crop(f Frame) Frame {
	if len(f.Landmarks) == 0 {
		return f
	}

	mp := make(orb.MultiPoint, len(f.Landmarks))
	for i, p := range f.Landmarks {
		mp[i] = orb.Point{p.X, p.Y}
	}
	bound := mp.Bound()
	padX := (bound.Max.X() - bound.Min.X()) * cropPadding
	padY := (bound.Max.Y() - bound.Min.Y()) * cropPadding

	b := f.Image.Bounds()
	x1 := max(0, int(bound.Min.X()-padX))
	y1 := max(0, int(bound.Min.Y()-padY))
	x2 := min(b.Dx(), int(bound.Max.X()+padX))
	y2 := min(b.Dy(), int(bound.Max.Y()+padY))
	if x2 <= x1 || y2 <= y1 {
		return f
	}

	rect := image.Rect(x1, y1, x2, y2).Add(b.Min)
	out := Frame{Image: imaging.Crop(f.Image, rect)}
	if f.Labels != nil {
		out.Labels = cropLabels(f.Labels, rect.Sub(b.Min).Add(f.Labels.Bounds().Min))
	}
	out.Landmarks = make([]entity.Point, len(f.Landmarks))
	for i, p := range f.Landmarks {
		out.Landmarks[i] = entity.Point{X: p.X - float64(x1), Y: p.Y - float64(y1)}
	}
	return out
}

// cropLabels copies rect out of labels into a raster based at the origin.
func cropLabels(labels *image.Gray16, rect image.Rectangle) *image.Gray16 {
	rect = rect.Intersect(labels.Bounds())
	dst := image.NewGray16(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Copy(dst, image.Point{}, labels, rect, draw.Src, nil)
	return dst
}

// ResizeLabels scales labels to size with nearest neighbour.
func ResizeLabels(labels *image.Gray16, size image.Point) *image.Gray16 {
	if labels.Bounds().Size() == size {
		return labels
	}
	dst := image.NewGray16(image.Rect(0, 0, size.X, size.Y))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), labels, labels.Bounds(), draw.Src, nil)
	return dst
}
