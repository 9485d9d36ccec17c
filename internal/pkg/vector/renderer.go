// Package vector renders region contours as an SVG overlay.
package vector

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/ds124wfegd/facesvg/internal/entity"
)

const fallbackColor = "#CCCCCC"

var palette = map[string]string{
	"1": "#FF6B6B",
	"2": "#4ECDC4",
	"3": "#45B7D1",
	"4": "#96CEB4",
	"5": "#FECA57",
	"6": "#FFA07A",
}

// Color returns the stroke colour for a region id.
func Color(region string) string {
	if c, ok := palette[region]; ok {
		return c
	}
	return fallbackColor
}

type Path struct {
	Region string
	Color  string
	D      string
}

// Document is an SVG canvas sized to the normalized image.
type Document struct {
	Width  int
	Height int
	Paths  []Path
}

// Render builds one path per contour, regions in set order. Contours with
// fewer than three points are skipped.
func Render(width, height int, set entity.ContourSet) *Document {
	doc := &Document{Width: width, Height: height}
	for _, rc := range set {
		color := Color(rc.Region)
		for _, c := range rc.Contours {
			if len(c) < 3 {
				continue
			}
			doc.Paths = append(doc.Paths, Path{Region: rc.Region, Color: color, D: pathData(c)})
		}
	}
	return doc
}

func pathData(c entity.Contour) string {
	var sb strings.Builder
	for i, p := range c {
		if i == 0 {
			sb.WriteString("M ")
		} else {
			sb.WriteString(" L ")
		}
		sb.WriteString(formatCoord(p.X))
		sb.WriteByte(',')
		sb.WriteString(formatCoord(p.Y))
	}
	sb.WriteString(" Z")
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Encode writes the document as SVG. Equal documents encode to equal bytes.
func (d *Document) Encode() []byte {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Startview(d.Width, d.Height, 0, 0, d.Width, d.Height)
	for _, p := range d.Paths {
		canvas.Path(p.D,
			`fill="none"`,
			fmt.Sprintf(`stroke="%s"`, p.Color),
			`stroke-width="2"`,
			`stroke-dasharray="5,5"`,
			`opacity="0.9"`,
		)
	}
	canvas.End()
	return buf.Bytes()
}

func (d *Document) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Encode())
}
