package contour

import (
	"image"
	"image/color"
	"sort"
)

// LabelMap is a segmentation raster: 0 is background, any positive value a
// region id.
type LabelMap struct {
	Width  int
	Height int
	Pix    []int
}

func NewLabelMap(width, height int) *LabelMap {
	return &LabelMap{Width: width, Height: height, Pix: make([]int, width*height)}
}

// LabelsFromImage reads region ids from gray values. 16-bit gray images keep
// their full range, anything else goes through 8-bit luminance.
func LabelsFromImage(img image.Image) *LabelMap {
	b := img.Bounds()
	m := NewLabelMap(b.Dx(), b.Dy())

	if g16, ok := img.(*image.Gray16); ok {
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				m.Pix[y*m.Width+x] = int(g16.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return m
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			m.Pix[y*m.Width+x] = int(g.Y)
		}
	}
	return m
}

func (m *LabelMap) At(x, y int) int {
	return m.Pix[y*m.Width+x]
}

func (m *LabelMap) Set(x, y, id int) {
	m.Pix[y*m.Width+x] = id
}

// Regions returns the distinct positive ids in ascending order.
func (m *LabelMap) Regions() []int {
	seen := make(map[int]struct{})
	for _, v := range m.Pix {
		if v > 0 {
			seen[v] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Mask returns a 0/255 gray image of the pixels equal to id.
func (m *LabelMap) Mask(id int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v == id {
			mask.Pix[i] = 0xff
		}
	}
	return mask
}

// Gray16 stores the ids as 16-bit gray values, the form the geometry stage
// resamples. Ids above 65535 saturate.
func (m *LabelMap) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v > 0xffff {
			v = 0xffff
		}
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}
	return img
}
