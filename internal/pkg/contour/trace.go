package contour

import "image"

// Bitmap is a binary raster produced by Smooth.
type Bitmap struct {
	Width  int
	Height int
	Pix    []bool
}

func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{Width: width, Height: height, Pix: make([]bool, width*height)}
}

func (b *Bitmap) At(x, y int) bool {
	return b.Pix[y*b.Width+x]
}

func (b *Bitmap) Set(x, y int, v bool) {
	b.Pix[y*b.Width+x] = v
}

// neighbours in clockwise screen order starting east (y grows downwards)
var neighbours = [8]image.Point{
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
}

const (
	dirEast = 0
	dirWest = 4
)

func direction(d image.Point) int {
	for i, n := range neighbours {
		if n == d {
			return i
		}
	}
	return -1
}

type borderInfo struct {
	outer  bool
	parent int32
}

// tracer implements Suzuki-Abe border following over a zero-padded copy of
// the bitmap. Cells hold 0, 1, or a signed border number.
type tracer struct {
	w, h int
	f    []int32
}

func newTracer(b *Bitmap) *tracer {
	t := &tracer{w: b.Width + 2, h: b.Height + 2}
	t.f = make([]int32, t.w*t.h)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.At(x, y) {
				t.f[(y+1)*t.w+x+1] = 1
			}
		}
	}
	return t
}

func (t *tracer) at(p image.Point) int32 {
	return t.f[p.Y*t.w+p.X]
}

func (t *tracer) set(p image.Point, v int32) {
	t.f[p.Y*t.w+p.X] = v
}

// TraceExternal returns the outermost borders of the foreground in raster
// order of their first pixel. Hole borders and anything nested inside a hole
// are dropped.
func TraceExternal(b *Bitmap) [][]image.Point {
	t := newTracer(b)

	// index 1 is the frame, which counts as a hole border
	borders := []borderInfo{{}, {outer: false}}
	nbd := int32(1)
	var out [][]image.Point

	for y := 1; y < t.h-1; y++ {
		lnbd := int32(1)
		for x := 1; x < t.w-1; x++ {
			p := image.Point{X: x, Y: y}
			v := t.at(p)
			if v == 0 {
				continue
			}

			var from int
			var outer bool
			switch {
			case v == 1 && t.f[y*t.w+x-1] == 0:
				outer = true
				from = dirWest
			case v >= 1 && t.f[y*t.w+x+1] == 0:
				from = dirEast
				if v > 1 {
					lnbd = v
				}
			default:
				if v != 1 {
					lnbd = abs32(v)
				}
				continue
			}
			nbd++

			prev := borders[lnbd]
			parent := lnbd
			if prev.outer == outer {
				parent = prev.parent
			}
			borders = append(borders, borderInfo{outer: outer, parent: parent})

			points := t.follow(p, from, nbd)
			if outer && parent == 1 {
				for i := range points {
					points[i] = points[i].Sub(image.Point{X: 1, Y: 1})
				}
				out = append(out, points)
			}

			if v := t.at(p); v != 1 {
				lnbd = abs32(v)
			}
		}
	}
	return out
}

func (t *tracer) follow(start image.Point, from int, nbd int32) []image.Point {
	first := -1
	for k := 0; k < 8; k++ {
		d := (from + k) % 8
		if t.at(start.Add(neighbours[d])) != 0 {
			first = d
			break
		}
	}
	if first < 0 {
		t.set(start, -nbd)
		return []image.Point{start}
	}

	p1 := start.Add(neighbours[first])
	p2, p3 := p1, start
	var points []image.Point
	for {
		points = append(points, p3)

		d2 := direction(p2.Sub(p3))
		eastZero := false
		var p4 image.Point
		for k := 1; k <= 8; k++ {
			d := (d2 - k + 8) % 8
			q := p3.Add(neighbours[d])
			if t.at(q) != 0 {
				p4 = q
				break
			}
			if d == dirEast {
				eastZero = true
			}
		}

		if eastZero {
			t.set(p3, -nbd)
		} else if t.at(p3) == 1 {
			t.set(p3, nbd)
		}

		if p4 == start && p3 == p1 {
			break
		}
		p2, p3 = p3, p4
	}
	return points
}

// compress drops vertices that continue a straight horizontal, vertical or
// diagonal run.
func compress(points []image.Point) []image.Point {
	n := len(points)
	if n < 3 {
		return points
	}
	out := make([]image.Point, 0, n)
	for i, p := range points {
		prev := points[(i+n-1)%n]
		next := points[(i+1)%n]
		if p.Sub(prev) != next.Sub(p) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return points[:1]
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
